package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Ratio1/odata_sdk_go/internal/envelope"
	"github.com/Ratio1/odata_sdk_go/pkg/apierrors"
	"github.com/Ratio1/odata_sdk_go/pkg/async"
	"github.com/Ratio1/odata_sdk_go/pkg/connection"
	"github.com/Ratio1/odata_sdk_go/pkg/dialect"
	"github.com/Ratio1/odata_sdk_go/pkg/request"
)

// Get reads the entry identified by id. An empty id falls back to the
// configured resource predicate.
func (s *Store) Get(ctx context.Context, id string, opts *GetOptions) *async.Handle[Entry] {
	if opts == nil {
		opts = &GetOptions{}
	}
	h := async.New[Entry]()
	op, err := s.createEntryRequest(id, opts.Target, true)
	if err != nil {
		h.Reject(err)
		return h
	}

	exec := s.cfg.ExecuteGetAs
	if exec == nil {
		exec = func(ctx context.Context, op request.Operation, o connection.Options) *connection.Call {
			return op.Read(ctx, o)
		}
	}
	call := exec(ctx, op, connection.Options{
		Success: func(body []byte) { s.onEntry(h, body) },
		Failure: func(err error) { h.Reject(err) },
		Abort:   func(err error) { h.Reject(err) },
	})
	s.track(h, call, "get")
	return h
}

// Query reads one page of entries matching query. The handle's Total is the
// service-reported total, or -1 when the service reports none.
func (s *Store) Query(ctx context.Context, query string, opts *QueryOptions) *async.Handle[[]Entry] {
	if opts == nil {
		opts = &QueryOptions{}
	}
	h := async.New[[]Entry]()
	op, err := s.createFeedRequest(query, *opts)
	if err != nil {
		h.Reject(err)
		return h
	}

	exec := s.cfg.ExecuteQueryAs
	if exec == nil {
		if _, isEntry := op.(*request.EntryRequest); isEntry {
			exec = ReadFeed
		} else {
			exec = func(ctx context.Context, op request.Operation, o connection.Options) *connection.Call {
				return op.Read(ctx, o)
			}
		}
	}
	call := exec(ctx, op, connection.Options{
		Success:            func(body []byte) { s.onFeed(h, body) },
		Failure:            func(err error) { h.Reject(err) },
		Abort:              func(err error) { h.Reject(err) },
		HTTPMethodOverride: opts.HTTPMethodOverride,
	})
	s.track(h, call, "query")
	return h
}

// Put stores entry. Identity, entity name and version are stamped onto entry
// in place, and time.Time values are replaced by their wire encoding. Without
// opts.Overwrite the entry is created; with it the addressed entry is updated.
func (s *Store) Put(ctx context.Context, entry Entry, opts *PutOptions) *async.Handle[Entry] {
	if opts == nil {
		opts = &PutOptions{}
	}
	h := async.New[Entry]()
	if entry == nil {
		entry = Entry{}
	}

	id := opts.ID
	if id == "" {
		id = identityString(s.GetIdentity(entry))
	}
	entity := opts.Entity
	if entity == "" {
		entity = s.cfg.EntityName
	}
	version := opts.Version
	if version == "" {
		version = identityString(s.GetVersion(entry))
	}
	s.stamp(entry, id, entity, version, opts)
	s.HandleDateSerialization(entry)

	op, err := s.createEntryRequest(id, opts.Target, opts.Overwrite)
	if err != nil {
		h.Reject(err)
		return h
	}

	o := connection.Options{
		Success: func(body []byte) { s.onTransmit(h, body) },
		Failure: func(err error) { h.Reject(err) },
		Abort:   func(err error) { h.Reject(err) },
	}
	var call *connection.Call
	if opts.Overwrite {
		call = op.Update(ctx, entry, o)
	} else {
		call = op.Create(ctx, entry, o)
	}
	s.track(h, call, "put")
	return h
}

// stamp writes identity, entity and version onto the dialect's wire fields.
// Explicit option values always win; resolved values only fill empty fields.
func (s *Store) stamp(entry Entry, id, entity, version string, opts *PutOptions) {
	f := s.dialect.Fields()
	if opts.ID == "" {
		if _, ok := dialect.GetPath(entry, f.Identity); ok {
			id = ""
		}
	}
	if opts.Version == "" {
		if _, ok := dialect.GetPath(entry, f.Version); ok {
			version = ""
		}
	}
	s.dialect.Stamp(entry, id, entity, version)
}

// Add creates entry. It is Put with Overwrite forced off.
func (s *Store) Add(ctx context.Context, entry Entry, opts *PutOptions) *async.Handle[Entry] {
	var o PutOptions
	if opts != nil {
		o = *opts
	}
	o.Overwrite = false
	return s.Put(ctx, entry, &o)
}

// Remove is not supported; the returned handle is always rejected with
// apierrors.ErrNotImplemented.
func (s *Store) Remove(_ context.Context, id string) *async.Handle[Entry] {
	return async.RejectedWith[Entry](fmt.Errorf("store: remove %q: %w", id, apierrors.ErrNotImplemented))
}

type settler interface {
	OnCancel(fn func())
	Reject(err error) bool
	State() async.State
	Err() error
}

// track wires cancellation of h to call and rejects h when call was queued
// on a batch scope.
func (s *Store) track(h settler, call *connection.Call, op string) {
	if call == nil {
		return
	}
	if call.Queued() {
		h.Reject(fmt.Errorf("store: %s %s: %w", op, call.URL(), apierrors.ErrBatched))
		return
	}
	h.OnCancel(call.Abort)
	if h.State() == async.Rejected && apierrors.IsAborted(h.Err()) {
		call.Abort()
	}
	s.logger.Debug("store request issued",
		zap.String("op", op),
		zap.String("request_id", call.ID()),
		zap.String("url", call.URL()),
	)
}

func (s *Store) onEntry(h *async.Handle[Entry], body []byte) {
	entry, err := decodeEntry(body)
	if err != nil || entry == nil {
		h.Reject(apierrors.NewInvalidResponseError("the entry result is invalid", body))
		return
	}
	if s.cfg.DoDateConversion {
		s.HandleDateConversion(entry)
	}
	h.Resolve(entry)
}

func (s *Store) onTransmit(h *async.Handle[Entry], body []byte) {
	entry, err := decodeEntry(body)
	if err != nil {
		h.Reject(apierrors.NewInvalidResponseError("the entry result is invalid", body))
		return
	}
	if entry != nil && s.cfg.DoDateConversion {
		s.HandleDateConversion(entry)
	}
	h.Resolve(entry)
}

func (s *Store) onFeed(h *async.Handle[[]Entry], body []byte) {
	if isEmpty(body) {
		h.Reject(apierrors.NewInvalidResponseError("the feed result is invalid", body))
		return
	}
	raw, err := envelope.Items(body, s.cfg.ItemsProperty)
	if err != nil {
		h.Reject(apierrors.NewInvalidResponseError("the feed result is invalid: "+err.Error(), body))
		return
	}
	items := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal(r, &e); err != nil {
			h.Reject(apierrors.NewInvalidResponseError("the feed result is invalid: "+err.Error(), body))
			return
		}
		if s.cfg.DoDateConversion {
			s.HandleDateConversion(e)
		}
		items = append(items, e)
	}
	h.ResolveWithTotal(items, envelope.Total(body, s.dialect.Fields().Total))
}

// decodeEntry returns nil for an empty or null body.
func decodeEntry(body []byte) (Entry, error) {
	if isEmpty(body) {
		return nil, nil
	}
	var e Entry
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, err
	}
	return e, nil
}

func isEmpty(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}
