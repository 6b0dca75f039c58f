// Package store translates store-level intents (get an entity, query a page,
// put or add an object) into requests against an OData or SData connection
// and settles an async.Handle with the normalized result.
//
// Every option in Config is an expr.Value, resolved against Config.Scope (or
// the store itself) immediately before each request is built. A store keeps
// no entity cache: every call builds a fresh request and a fresh handle.
package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/Ratio1/odata_sdk_go/pkg/apierrors"
	"github.com/Ratio1/odata_sdk_go/pkg/connection"
	"github.com/Ratio1/odata_sdk_go/pkg/dialect"
	"github.com/Ratio1/odata_sdk_go/pkg/expr"
	"github.com/Ratio1/odata_sdk_go/pkg/request"
	"github.com/Ratio1/odata_sdk_go/pkg/uri"
)

// Entry is a decoded resource.
type Entry = map[string]any

// Executor runs op in place of the request's default read.
type Executor func(ctx context.Context, op request.Operation, opts connection.Options) *connection.Call

// ReadFeed and ReadEntry are ready-made executors.
var (
	ReadFeed  Executor = func(ctx context.Context, op request.Operation, opts connection.Options) *connection.Call { return op.ReadFeed(ctx, opts) }
	ReadEntry Executor = func(ctx context.Context, op request.Operation, opts connection.Options) *connection.Call { return op.ReadEntry(ctx, opts) }
)

// Config describes a store.
type Config struct {
	Connection connection.Service

	// Scope is passed to deferred values. Defaults to the store.
	Scope any

	// Request, when set, is cloned for every call instead of building one
	// from ResourceKind, ResourcePredicate, PathSegments and QueryArgs.
	Request           expr.Value[request.Operation]
	ResourceKind      expr.Value[string]
	ResourcePredicate expr.Value[string]
	PathSegments      expr.Value[[]uri.PathSegment]
	QueryArgs         expr.Value[map[string]string]

	Select  expr.Value[[]string]
	Include expr.Value[[]string]
	OrderBy expr.Value[[]string]
	Where   expr.Value[string]

	// EntityName is stamped on outgoing entries.
	EntityName string

	// Property paths. Empty values default to the connection's dialect.
	ItemsProperty   string
	IDProperty      string
	EntityProperty  string
	VersionProperty string

	// DoDateConversion converts wire date strings on incoming entries.
	DoDateConversion bool

	ExecuteGetAs   Executor
	ExecuteQueryAs Executor

	Logger *zap.Logger
}

// Store is a query-translation store over one connection.
type Store struct {
	cfg     Config
	dialect dialect.Dialect
	logger  *zap.Logger
}

// Metadata groups the identity, entity name and version of an entry.
type Metadata struct {
	ID      any
	Entity  any
	Version any
}

// New validates cfg and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Connection == nil {
		return nil, apierrors.NewConfigurationError("store", "a connection is required")
	}
	d := cfg.Connection.Dialect()
	f := d.Fields()
	if cfg.ItemsProperty == "" {
		cfg.ItemsProperty = f.Items
	}
	if cfg.IDProperty == "" {
		cfg.IDProperty = f.Identity
	}
	if cfg.EntityProperty == "" {
		cfg.EntityProperty = f.Entity
	}
	if cfg.VersionProperty == "" {
		cfg.VersionProperty = f.Version
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{cfg: cfg, dialect: d, logger: logger.With(zap.String("component", "store"))}, nil
}

// Connection returns the store's connection.
func (s *Store) Connection() connection.Service { return s.cfg.Connection }

func (s *Store) scope() any {
	if s.cfg.Scope != nil {
		return s.cfg.Scope
	}
	return s
}

// GetIdentity returns the identity of entry.
func (s *Store) GetIdentity(entry Entry) any {
	v, _ := dialect.GetPath(entry, s.cfg.IDProperty)
	return v
}

// GetEntity returns the entity name of entry.
func (s *Store) GetEntity(entry Entry) any {
	v, _ := dialect.GetPath(entry, s.cfg.EntityProperty)
	return v
}

// GetVersion returns the version marker of entry.
func (s *Store) GetVersion(entry Entry) any {
	v, _ := dialect.GetPath(entry, s.cfg.VersionProperty)
	return v
}

// GetMetadata returns the identity, entity and version of entry, or nil when
// entry is nil.
func (s *Store) GetMetadata(entry Entry) *Metadata {
	if entry == nil {
		return nil
	}
	return &Metadata{
		ID:      s.GetIdentity(entry),
		Entity:  s.GetEntity(entry),
		Version: s.GetVersion(entry),
	}
}
