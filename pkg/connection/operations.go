package connection

import (
	"context"
	"net/http"
	"strings"
)

// ReadFeed reads a collection. With opts.HTTPMethodOverride the request is
// sent as a POST to the URL without its query, carrying the query string as
// the body and X-HTTP-Method-Override: GET.
func (c *Connection) ReadFeed(ctx context.Context, t Target, opts Options) *Call {
	if call, ok := c.enqueueOp(t, BatchOperation{Method: http.MethodGet}); ok {
		return call
	}
	var topts TransportOptions
	if opts.HTTPMethodOverride {
		base := t.Build(true)
		query := strings.TrimPrefix(strings.TrimPrefix(t.Build(false), base), "?")
		topts = TransportOptions{
			Method: http.MethodPost,
			URL:    base,
			Body:   []byte(query),
			Header: http.Header{
				HeaderHTTPMethodOverride: {http.MethodGet},
				"Content-Type":           {"application/x-www-form-urlencoded"},
			},
		}
	}
	return c.ExecuteRequest(ctx, t, opts, topts)
}

// ReadEntry reads a single entry.
func (c *Connection) ReadEntry(ctx context.Context, t Target, opts Options) *Call {
	if call, ok := c.enqueueOp(t, BatchOperation{Method: http.MethodGet}); ok {
		return call
	}
	return c.ExecuteRequest(ctx, t, opts, TransportOptions{})
}

// CreateEntry POSTs entry.
func (c *Connection) CreateEntry(ctx context.Context, t Target, entry map[string]any, opts Options) *Call {
	return c.writeEntry(ctx, t, http.MethodPost, entry, opts)
}

// UpdateEntry PUTs entry, sending its concurrency token as If-Match.
func (c *Connection) UpdateEntry(ctx context.Context, t Target, entry map[string]any, opts Options) *Call {
	return c.writeEntry(ctx, t, http.MethodPut, entry, opts)
}

// DeleteEntry DELETEs the target, sending the entry's concurrency token as If-Match.
func (c *Connection) DeleteEntry(ctx context.Context, t Target, entry map[string]any, opts Options) *Call {
	etag := c.ExtractETagFromEntry(entry)
	if call, ok := c.enqueueOp(t, BatchOperation{Method: http.MethodDelete, ETag: etag}); ok {
		return call
	}
	return c.ExecuteRequest(ctx, t, opts, TransportOptions{Method: http.MethodDelete, ETag: etag})
}

// ExecuteServiceOperation POSTs entry to a service operation. It is never batched.
func (c *Connection) ExecuteServiceOperation(ctx context.Context, t Target, entry map[string]any, opts Options) *Call {
	body, err := c.PrepareEntry(entry)
	if err != nil {
		return c.failed(t, http.MethodPost, opts, err)
	}
	return c.ExecuteRequest(ctx, t, opts, TransportOptions{Method: http.MethodPost, Body: body})
}

// CommitBatch submits the batch endpoint with a plain POST. No batch body is
// serialised.
func (c *Connection) CommitBatch(ctx context.Context, t Target, opts Options) *Call {
	return c.ExecuteRequest(ctx, t, opts, TransportOptions{Method: http.MethodPost})
}

func (c *Connection) writeEntry(ctx context.Context, t Target, method string, entry map[string]any, opts Options) *Call {
	etag := c.ExtractETagFromEntry(entry)
	if call, ok := c.enqueueOp(t, BatchOperation{Method: method, Data: entry, ETag: etag}); ok {
		return call
	}
	body, err := c.PrepareEntry(entry)
	if err != nil {
		return c.failed(t, method, opts, err)
	}
	return c.ExecuteRequest(ctx, t, opts, TransportOptions{Method: method, Body: body, ETag: etag})
}

func (c *Connection) enqueueOp(t Target, op BatchOperation) (*Call, bool) {
	batch := c.BatchScope()
	if batch == nil {
		return nil, false
	}
	op.URL = t.Build(false)
	batch.Add(op)

	call := newCall(t.ID(), op.Method, op.URL)
	call.queued = true
	call.finish(nil)
	return call, true
}

func (c *Connection) failed(t Target, method string, opts Options, err error) *Call {
	call := newCall(t.ID(), method, t.Build(false))
	call.finish(err)
	if opts.Failure != nil {
		opts.Failure(err)
	}
	return call
}
