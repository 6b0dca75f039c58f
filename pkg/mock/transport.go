package mock

import (
	"net/http"
	"net/http/httptest"
)

// Transport returns a RoundTripper that serves every request from the mock
// in-process, whatever host the request names.
func (m *Mock) Transport() http.RoundTripper {
	return &roundTripper{handler: m.Handler()}
}

type roundTripper struct {
	handler http.Handler
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	in := req.Clone(req.Context())
	if in.Body == nil {
		in.Body = http.NoBody
	}
	in.RequestURI = req.URL.RequestURI()

	rec := httptest.NewRecorder()
	rt.handler.ServeHTTP(rec, in)
	if req.Body != nil {
		_ = req.Body.Close()
	}

	resp := rec.Result()
	resp.Request = req
	return resp, nil
}
