package request

import (
	"context"
	"strconv"

	"github.com/Ratio1/odata_sdk_go/pkg/connection"
)

// CollectionRequest addresses a feed.
type CollectionRequest struct {
	*Request
	count int
	start int
}

var _ Operation = (*CollectionRequest)(nil)

// NewCollectionRequest returns a feed request bound to conn.
func NewCollectionRequest(conn connection.Service) (*CollectionRequest, error) {
	r, err := New(conn)
	if err != nil {
		return nil, err
	}
	return &CollectionRequest{Request: r, count: -1, start: -1}, nil
}

// Read reads the feed.
func (r *CollectionRequest) Read(ctx context.Context, opts connection.Options) *connection.Call {
	return r.ReadFeed(ctx, opts)
}

// Count returns the page size, or -1 when unset.
func (r *CollectionRequest) Count() int { return r.count }

// SetCount sets the page size. A negative value removes it.
func (r *CollectionRequest) SetCount(n int) {
	key := r.conn.Dialect().Keys().Count
	if n < 0 {
		r.count = -1
		r.uri.RemoveQueryOption(key)
		return
	}
	r.count = n
	r.uri.SetQueryOption(key, strconv.Itoa(n))
}

// StartIndex returns the zero-based offset, or -1 when unset.
func (r *CollectionRequest) StartIndex() int { return r.start }

// SetStartIndex sets the zero-based offset. A negative value removes it.
func (r *CollectionRequest) SetStartIndex(n int) {
	d := r.conn.Dialect()
	key := d.Keys().Start
	if n < 0 {
		r.start = -1
		r.uri.RemoveQueryOption(key)
		return
	}
	r.start = n
	r.uri.SetQueryOption(key, d.StartIndex(n))
}

// Clone returns an independent copy.
func (r *CollectionRequest) Clone() *CollectionRequest {
	return &CollectionRequest{Request: r.Request.Clone(), count: r.count, start: r.start}
}

func (r *CollectionRequest) CloneOperation() Operation { return r.Clone() }
