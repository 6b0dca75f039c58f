package store_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/odata_sdk_go/pkg/apierrors"
	"github.com/Ratio1/odata_sdk_go/pkg/async"
	"github.com/Ratio1/odata_sdk_go/pkg/connection"
	"github.com/Ratio1/odata_sdk_go/pkg/dialect"
	"github.com/Ratio1/odata_sdk_go/pkg/expr"
	"github.com/Ratio1/odata_sdk_go/pkg/store"
)

type spyService struct {
	*connection.Connection

	mu      sync.Mutex
	calls   []string
	urls    []string
	entries []map[string]any
}

func newSpy(t *testing.T) *spyService {
	t.Helper()
	conn, err := connection.New("http://example.test/odata")
	require.NoError(t, err)
	return &spyService{Connection: conn}
}

func (s *spyService) record(kind string, target connection.Target, entry map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, kind)
	s.urls = append(s.urls, target.Build(false))
	s.entries = append(s.entries, entry)
}

func (s *spyService) CreateEntry(ctx context.Context, t connection.Target, entry map[string]any, opts connection.Options) *connection.Call {
	s.record("create", t, entry)
	return s.ExecuteRequest(ctx, t, opts, connection.TransportOptions{Method: http.MethodPost, Result: entry})
}

func (s *spyService) UpdateEntry(ctx context.Context, t connection.Target, entry map[string]any, opts connection.Options) *connection.Call {
	s.record("update", t, entry)
	return s.ExecuteRequest(ctx, t, opts, connection.TransportOptions{Method: http.MethodPut, Result: entry})
}

func newStore(t *testing.T, cfg store.Config) *store.Store {
	t.Helper()
	s, err := store.New(cfg)
	require.NoError(t, err)
	return s
}

func wait[T any](t *testing.T, h *async.Handle[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.Wait(ctx)
}

func intp(n int) *int { return &n }

func TestNewRequiresConnection(t *testing.T) {
	_, err := store.New(store.Config{})
	require.Error(t, err)
	assert.True(t, apierrors.IsConfiguration(err))
}

func TestPutCreateOrUpdate(t *testing.T) {
	tests := []struct {
		name string
		opts *store.PutOptions
		want string
	}{
		{"nil options", nil, "create"},
		{"overwrite unset", &store.PutOptions{}, "create"},
		{"overwrite false", &store.PutOptions{Overwrite: false}, "create"},
		{"overwrite true", &store.PutOptions{Overwrite: true}, "update"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			spy := newSpy(t)
			s := newStore(t, store.Config{Connection: spy, ResourceKind: expr.Literal("accounts")})

			h := s.Put(context.Background(), store.Entry{"id": "7", "Name": "Acme"}, tc.opts)
			got, err := wait(t, h)
			require.NoError(t, err)
			assert.Equal(t, "Acme", got["Name"])
			require.Equal(t, []string{tc.want}, spy.calls)
		})
	}
}

func TestPutUpdateAddressesEntry(t *testing.T) {
	spy := newSpy(t)
	s := newStore(t, store.Config{Connection: spy, ResourceKind: expr.Literal("accounts"), EntityName: "Account"})

	entry := store.Entry{"id": "7", "__metadata": map[string]any{"etag": "v1"}}
	_, err := wait(t, s.Put(context.Background(), entry, &store.PutOptions{Overwrite: true}))
	require.NoError(t, err)

	require.Len(t, spy.urls, 1)
	assert.Equal(t, "http://example.test/odata/accounts(id%3D7)", spy.urls[0])
	assert.Equal(t, "Account", s.GetEntity(spy.entries[0]))
	assert.Equal(t, "v1", s.GetVersion(spy.entries[0]))
}

func TestPutStampsCustomPropertiesOntoWireFields(t *testing.T) {
	type sent struct {
		method  string
		path    string
		ifMatch string
		body    map[string]any
	}
	seen := make(chan sent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		seen <- sent{method: r.Method, path: r.URL.Path, ifMatch: r.Header.Get(connection.HeaderIfMatch), body: body}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"d":{"Key":"7","Ver":"v10"}}`))
	}))
	defer srv.Close()

	s := newStore(t, store.Config{
		Connection:      mustConnect(t, srv.URL+"/odata"),
		ResourceKind:    expr.Literal("accounts"),
		IDProperty:      "Key",
		VersionProperty: "Ver",
	})
	_, err := wait(t, s.Put(context.Background(), store.Entry{"Key": "7", "Name": "x", "Ver": "v9"}, &store.PutOptions{Overwrite: true}))
	require.NoError(t, err)

	got := <-seen
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/odata/accounts(id=7)", got.path)
	assert.Equal(t, "v9", got.ifMatch)
	assert.Equal(t, "7", got.body["id"])
	assert.Equal(t, map[string]any{"etag": "v9"}, got.body["__metadata"])
	assert.Equal(t, "v9", got.body["Ver"])
}

func TestPutKeepsExistingWireValues(t *testing.T) {
	spy := newSpy(t)
	s := newStore(t, store.Config{Connection: spy, ResourceKind: expr.Literal("accounts")})

	entry := store.Entry{"id": 7, "__metadata": map[string]any{"etag": "v1"}}
	_, err := wait(t, s.Put(context.Background(), entry, &store.PutOptions{Overwrite: true, Version: "v2"}))
	require.NoError(t, err)

	require.Len(t, spy.entries, 1)
	assert.Equal(t, 7, spy.entries[0]["id"])
	assert.Equal(t, "v2", s.GetVersion(spy.entries[0]))
}

func TestAddNeverOverwrites(t *testing.T) {
	spy := newSpy(t)
	s := newStore(t, store.Config{Connection: spy, ResourceKind: expr.Literal("accounts")})

	_, err := wait(t, s.Add(context.Background(), store.Entry{"Name": "Acme"}, &store.PutOptions{Overwrite: true}))
	require.NoError(t, err)
	assert.Equal(t, []string{"create"}, spy.calls)
	assert.Equal(t, "http://example.test/odata/accounts", spy.urls[0])
}

func TestQueryPage(t *testing.T) {
	srv, seen := captureServer(t, `{"d":{"results":[{"id":"3","Name":"c"}],"__count":5}}`)
	conn := mustConnect(t, srv.URL+"/odata")
	s := newStore(t, store.Config{
		Connection:   conn,
		ResourceKind: expr.Literal("accounts"),
		Select:       expr.Literal([]string{"Name"}),
	})

	h := s.Query(context.Background(), "active=true", &store.QueryOptions{Start: intp(2), Count: intp(1)})
	items, err := wait(t, h)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0]["Name"])
	assert.Equal(t, 5, h.Total())

	got := <-seen
	assert.Equal(t, "/odata/accounts", got.path)
	assert.Equal(t, "(active=true)", got.query.Get("$filter"))
	assert.Equal(t, "1", got.query.Get("$top"))
	assert.Equal(t, "2", got.query.Get("$skip"))
	assert.Equal(t, "allpages", got.query.Get("$inlinecount"))
	assert.Equal(t, "Name,id", got.query.Get("$select"))
}

func TestQueryRejectsInvalidFeed(t *testing.T) {
	for name, body := range map[string]string{
		"missing results":  `{"d":{"__count":5}}`,
		"empty body":       ``,
		"results not list": `{"d":{"results":{}}}`,
	} {
		body := body
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			conn, err := connection.New(srv.URL + "/odata")
			require.NoError(t, err)
			s := newStore(t, store.Config{Connection: conn, ResourceKind: expr.Literal("accounts")})

			h := s.Query(context.Background(), "", nil)
			_, err = wait(t, h)
			require.Error(t, err)
			assert.True(t, apierrors.IsInvalidResponse(err))
			assert.Equal(t, -1, h.Total())
		})
	}
}

func TestQueryCombinesConditions(t *testing.T) {
	srv, seen := captureServer(t, `{"d":{"results":[]}}`)
	conn := mustConnect(t, srv.URL+"/odata")

	type scope struct{ owner string }
	s := newStore(t, store.Config{
		Connection:   conn,
		Scope:        scope{owner: "me"},
		ResourceKind: expr.Literal("accounts"),
		Where: expr.Deferred(func(sc any, _ ...any) string {
			return "Owner eq '" + sc.(scope).owner + "'"
		}),
		OrderBy: expr.Literal([]string{"Name"}),
		Include: expr.Literal([]string{"Contacts"}),
	})

	h := s.Query(context.Background(), "Status eq 'Active'", &store.QueryOptions{
		Sort:  expr.Literal([]string{"Name desc", "Id"}),
		Where: "Type eq 'Customer'",
	})
	items, err := wait(t, h)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, -1, h.Total())

	query := (<-seen).query
	assert.Equal(t, "(Owner eq 'me') and (Status eq 'Active') and (Type eq 'Customer')", query.Get("$filter"))
	assert.Equal(t, "Name desc,Id", query.Get("$orderby"))
	assert.Equal(t, "Contacts", query.Get("$expand"))
	assert.NotContains(t, query, "$top")
	assert.NotContains(t, query, "$skip")
}

func TestQuerySData(t *testing.T) {
	srv, seen := captureServer(t, `{"$resources":[{"$key":"A1"},{"$key":"A2"}],"$totalResults":7}`)
	conn := mustConnect(t, srv.URL+"/sdata/slx/dynamic/-", connection.WithDialect(dialect.SData{}))
	s := newStore(t, store.Config{
		Connection:   conn,
		ResourceKind: expr.Literal("accounts"),
		Select:       expr.Literal([]string{"Name"}),
	})

	h := s.Query(context.Background(), "Name like 'A%'", &store.QueryOptions{Start: intp(2), Count: intp(2)})
	items, err := wait(t, h)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "A2", s.GetIdentity(items[1]))
	assert.Equal(t, 7, h.Total())

	got := <-seen
	assert.Equal(t, "/sdata/slx/dynamic/-/accounts", got.path)
	assert.Equal(t, "(Name like 'A%')", got.query.Get("where"))
	assert.Equal(t, "Name,$key", got.query.Get("select"))
	assert.Equal(t, "2", got.query.Get("count"))
	assert.Equal(t, "3", got.query.Get("startIndex"))
}

func TestGetBuildsEntryRequest(t *testing.T) {
	srv, seen := captureServer(t, `{"d":{"id":"42","Name":"Acme"}}`)
	conn := mustConnect(t, srv.URL+"/odata")
	s := newStore(t, store.Config{
		Connection:   conn,
		ResourceKind: expr.Literal("accounts"),
		Select:       expr.Literal([]string{"Name"}),
		Include:      expr.Literal([]string{"Address"}),
	})

	entry, err := wait(t, s.Get(context.Background(), "42", nil))
	require.NoError(t, err)
	assert.Equal(t, "Acme", entry["Name"])
	got := <-seen
	assert.Equal(t, "/odata/accounts(id=42)", got.path)
	assert.Equal(t, "Name", got.query.Get("$select"))
	assert.Equal(t, "Address", got.query.Get("$expand"))
}

func TestGetRejectsEmptyEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	defer srv.Close()

	conn, err := connection.New(srv.URL + "/odata")
	require.NoError(t, err)
	s := newStore(t, store.Config{Connection: conn, ResourceKind: expr.Literal("accounts")})

	_, err = wait(t, s.Get(context.Background(), "1", nil))
	assert.True(t, apierrors.IsInvalidResponse(err))
}

func TestGetTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	conn, err := connection.New(srv.URL + "/odata")
	require.NoError(t, err)
	s := newStore(t, store.Config{Connection: conn, ResourceKind: expr.Literal("accounts")})

	_, err = wait(t, s.Get(context.Background(), "1", nil))
	require.Error(t, err)
	assert.True(t, apierrors.IsTransport(err))
	assert.Equal(t, http.StatusNotFound, apierrors.StatusCode(err))
}

func TestCancelPendingGet(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	conn, err := connection.New(srv.URL + "/odata")
	require.NoError(t, err)
	s := newStore(t, store.Config{Connection: conn, ResourceKind: expr.Literal("accounts")})

	h := s.Get(context.Background(), "1", nil)
	<-started
	require.True(t, h.Cancel())

	_, err = wait(t, h)
	require.Error(t, err)
	var aborted *apierrors.AbortedError
	require.ErrorAs(t, err, &aborted)
	assert.True(t, aborted.Aborted())
	assert.Equal(t, 0, aborted.Status())
	assert.Equal(t, async.Rejected, h.State())

	assert.False(t, h.Resolve(store.Entry{"late": true}))
	assert.False(t, h.Cancel())
}

func TestDateRoundTrip(t *testing.T) {
	for _, wire := range []string{"/Date(1262304000000)/", "/Date(1262304000000+0200)/"} {
		wire := wire
		t.Run(wire, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"d":{"id":"1","CreateDate":"` + wire + `"}}`))
			}))
			defer srv.Close()

			conn, err := connection.New(srv.URL + "/odata")
			require.NoError(t, err)
			spy := &spyService{Connection: conn}
			s := newStore(t, store.Config{Connection: spy, ResourceKind: expr.Literal("accounts"), DoDateConversion: true})

			entry, err := wait(t, s.Get(context.Background(), "1", nil))
			require.NoError(t, err)
			created, ok := entry["CreateDate"].(time.Time)
			require.True(t, ok)
			assert.True(t, created.Equal(time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)))

			_, err = wait(t, s.Put(context.Background(), entry, &store.PutOptions{Overwrite: true}))
			require.NoError(t, err)
			require.Len(t, spy.entries, 1)
			assert.Equal(t, wire, spy.entries[0]["CreateDate"])
		})
	}
}

func TestDateSerializationUsesISOForXML(t *testing.T) {
	conn, err := connection.New("http://example.test/odata", connection.WithJSON(false))
	require.NoError(t, err)
	s := newStore(t, store.Config{Connection: conn})

	entry := s.HandleDateSerialization(store.Entry{"At": time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), "Name": "x"})
	assert.Equal(t, "2010-01-01T00:00:00Z", entry["At"])
	assert.Equal(t, "x", entry["Name"])
}

func TestMetadataAccessors(t *testing.T) {
	s := newStore(t, store.Config{Connection: newSpy(t)})

	assert.Nil(t, s.GetMetadata(nil))

	entry := store.Entry{"id": "9", "__metadata": map[string]any{"type": "Account", "etag": "e"}}
	md := s.GetMetadata(entry)
	require.NotNil(t, md)
	assert.Equal(t, &store.Metadata{ID: "9", Entity: "Account", Version: "e"}, md)
	assert.Nil(t, s.GetIdentity(store.Entry{}))
}

func TestRemoveNotImplemented(t *testing.T) {
	s := newStore(t, store.Config{Connection: newSpy(t)})
	_, err := wait(t, s.Remove(context.Background(), "1"))
	assert.ErrorIs(t, err, apierrors.ErrNotImplemented)
}

func TestBatchedCallsReject(t *testing.T) {
	conn, err := connection.New("http://example.test/odata")
	require.NoError(t, err)
	batch := connection.NewBatch()
	conn.SetBatchScope(batch)
	s := newStore(t, store.Config{Connection: conn, ResourceKind: expr.Literal("accounts")})

	_, err = wait(t, s.Get(context.Background(), "1", nil))
	assert.ErrorIs(t, err, apierrors.ErrBatched)
	_, err = wait(t, s.Put(context.Background(), store.Entry{"Name": "x"}, nil))
	assert.ErrorIs(t, err, apierrors.ErrBatched)
	assert.Equal(t, 2, batch.Len())
}

func TestRequestTemplateAndExecutor(t *testing.T) {
	srv, seen := captureServer(t, `{"d":{"results":[{"id":"1"}],"__count":1}}`)
	conn := mustConnect(t, srv.URL+"/odata")

	s := newStore(t, store.Config{
		Connection:     conn,
		ExecuteQueryAs: store.ReadFeed,
	})
	tmpl, err := newEntryTemplate(conn, "contacts")
	require.NoError(t, err)

	h := s.Query(context.Background(), "", &store.QueryOptions{Target: store.Target{Request: expr.Literal(tmpl)}})
	items, err := wait(t, h)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "/odata/contacts", (<-seen).path)

	// the template itself is never mutated
	_, ok := tmpl.URI().QueryOption("$inlinecount")
	assert.False(t, ok)
}
