package request

import (
	"context"

	"github.com/Ratio1/odata_sdk_go/pkg/connection"
)

// EntryRequest addresses a single entry.
type EntryRequest struct {
	*Request
}

var _ Operation = (*EntryRequest)(nil)

// NewEntryRequest returns an entry request bound to conn.
func NewEntryRequest(conn connection.Service) (*EntryRequest, error) {
	r, err := New(conn)
	if err != nil {
		return nil, err
	}
	return &EntryRequest{Request: r}, nil
}

// Read reads the entry.
func (r *EntryRequest) Read(ctx context.Context, opts connection.Options) *connection.Call {
	return r.ReadEntry(ctx, opts)
}

// Clone returns an independent copy.
func (r *EntryRequest) Clone() *EntryRequest {
	return &EntryRequest{Request: r.Request.Clone()}
}

func (r *EntryRequest) CloneOperation() Operation { return r.Clone() }
