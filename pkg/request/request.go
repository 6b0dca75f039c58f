// Package request wraps one logical operation against a connection. Each
// request owns a private copy of the connection's base address, so callers
// can add path segments and query options without affecting other requests.
// EntryRequest reads a single entry and CollectionRequest reads a feed; the
// flavour is chosen at construction.
package request

import (
	"context"

	"github.com/google/uuid"

	"github.com/Ratio1/odata_sdk_go/pkg/apierrors"
	"github.com/Ratio1/odata_sdk_go/pkg/connection"
	"github.com/Ratio1/odata_sdk_go/pkg/uri"
)

// Operation is a request a store can execute.
type Operation interface {
	connection.Target
	URI() uri.Address
	Connection() connection.Service

	Read(ctx context.Context, opts connection.Options) *connection.Call
	ReadEntry(ctx context.Context, opts connection.Options) *connection.Call
	ReadFeed(ctx context.Context, opts connection.Options) *connection.Call
	Create(ctx context.Context, entry map[string]any, opts connection.Options) *connection.Call
	Update(ctx context.Context, entry map[string]any, opts connection.Options) *connection.Call
	Delete(ctx context.Context, entry map[string]any, opts connection.Options) *connection.Call
	Execute(ctx context.Context, entry map[string]any, opts connection.Options) *connection.Call

	CloneOperation() Operation
}

// Request is the state shared by every request flavour.
type Request struct {
	id   string
	conn connection.Service
	uri  uri.Address
}

// New returns a request bound to conn. A nil connection is a configuration error.
func New(conn connection.Service) (*Request, error) {
	if isNil(conn) {
		return nil, apierrors.NewConfigurationError("request", "all requests require a connection")
	}
	return &Request{
		id:   uuid.NewString(),
		conn: conn,
		uri:  conn.URI(),
	}, nil
}

func isNil(conn connection.Service) bool {
	if conn == nil {
		return true
	}
	c, ok := conn.(*connection.Connection)
	return ok && c == nil
}

// ID returns the identifier carried in events and logs.
func (r *Request) ID() string { return r.id }

// Connection returns the owning connection.
func (r *Request) Connection() connection.Service { return r.conn }

// URI returns the request's own address. Mutations affect only this request.
func (r *Request) URI() uri.Address { return r.uri }

// SetURI replaces the request's address.
func (r *Request) SetURI(addr uri.Address) {
	if addr != nil {
		r.uri = addr
	}
}

// Build renders the request URL.
func (r *Request) Build(excludeQuery bool) string {
	return r.uri.Build(excludeQuery)
}

// Clone returns a copy with a fresh id and an independent address.
func (r *Request) Clone() *Request {
	return &Request{id: uuid.NewString(), conn: r.conn, uri: r.uri.Clone()}
}

// ReadEntry reads the addressed entry.
func (r *Request) ReadEntry(ctx context.Context, opts connection.Options) *connection.Call {
	return r.conn.ReadEntry(ctx, r, opts)
}

// ReadFeed reads the addressed collection.
func (r *Request) ReadFeed(ctx context.Context, opts connection.Options) *connection.Call {
	return r.conn.ReadFeed(ctx, r, opts)
}

// Create posts entry to the addressed collection.
func (r *Request) Create(ctx context.Context, entry map[string]any, opts connection.Options) *connection.Call {
	return r.conn.CreateEntry(ctx, r, entry, opts)
}

// Update replaces the addressed entry.
func (r *Request) Update(ctx context.Context, entry map[string]any, opts connection.Options) *connection.Call {
	return r.conn.UpdateEntry(ctx, r, entry, opts)
}

// Delete removes the addressed entry.
func (r *Request) Delete(ctx context.Context, entry map[string]any, opts connection.Options) *connection.Call {
	return r.conn.DeleteEntry(ctx, r, entry, opts)
}

// Execute invokes the addressed service operation with entry as its body.
func (r *Request) Execute(ctx context.Context, entry map[string]any, opts connection.Options) *connection.Call {
	return r.conn.ExecuteServiceOperation(ctx, r, entry, opts)
}
