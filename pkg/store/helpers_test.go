package store_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ratio1/odata_sdk_go/pkg/connection"
	"github.com/Ratio1/odata_sdk_go/pkg/request"
)

type captured struct {
	path  string
	query url.Values
}

// captureServer answers every request with body and reports the first one seen.
func captureServer(t *testing.T, body string) (*httptest.Server, <-chan captured) {
	t.Helper()
	seen := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case seen <- captured{path: r.URL.Path, query: r.URL.Query()}:
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func mustConnect(t *testing.T, rawURL string, opts ...connection.Option) *connection.Connection {
	t.Helper()
	conn, err := connection.New(rawURL, opts...)
	require.NoError(t, err)
	return conn
}

func newEntryTemplate(conn connection.Service, kind string) (request.Operation, error) {
	r, err := request.NewEntryRequest(conn)
	if err != nil {
		return nil, err
	}
	r.URI().SetResourceKind(kind)
	return r, nil
}
