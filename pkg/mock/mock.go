// Package mock implements an in-memory resource service that speaks the
// OData or SData dialect. It backs the sandbox server and the "mock" runtime
// mode, and can be mounted in-process through Transport so a Connection talks
// to it without a listener.
package mock

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Ratio1/odata_sdk_go/internal/devseed"
	"github.com/Ratio1/odata_sdk_go/pkg/dialect"
)

var (
	// ErrNotFound is returned when the addressed resource does not exist.
	ErrNotFound = errors.New("mock: resource not found")

	// ErrConflict is returned when creating a resource whose id is taken.
	ErrConflict = errors.New("mock: resource already exists")

	// ErrPreconditionFailed is returned when If-Match does not match the stored ETag.
	ErrPreconditionFailed = errors.New("mock: precondition failed")
)

// Resource is a stored entry as rendered on the wire.
type Resource = map[string]any

type record struct {
	id        string
	data      map[string]any
	etag      string
	updatedAt time.Time
}

// Mock is an in-memory resource service.
type Mock struct {
	mu       sync.RWMutex
	kinds    map[string]map[string]*record
	seq      int
	dialect  dialect.Dialect
	basePath string
	now      func() time.Time
}

// Option configures the mock instance.
type Option func(*Mock)

// WithClock overrides the clock used for modification stamps.
func WithClock(fn func() time.Time) Option {
	return func(m *Mock) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithDialect selects the wire dialect. OData is the default.
func WithDialect(d dialect.Dialect) Option {
	return func(m *Mock) {
		if d != nil {
			m.dialect = d
		}
	}
}

// WithBasePath mounts the service under p, for example "/odata" or
// "/sdata/slx/dynamic/-".
func WithBasePath(p string) Option {
	return func(m *Mock) {
		m.basePath = "/" + strings.Trim(p, "/")
		if m.basePath == "/" {
			m.basePath = ""
		}
	}
}

// New creates an empty mock service.
func New(opts ...Option) *Mock {
	m := &Mock{
		kinds:   make(map[string]map[string]*record),
		dialect: dialect.OData{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dialect returns the dialect the mock speaks.
func (m *Mock) Dialect() dialect.Dialect { return m.dialect }

// BasePath returns the mount path of the service.
func (m *Mock) BasePath() string { return m.basePath }

// Seed loads initial resources. Entries without an id get a generated one.
func (m *Mock) Seed(entries []devseed.ResourceSeedEntry) error {
	for _, e := range entries {
		data := cloneMap(e.Data)
		if e.ID != "" {
			dialect.SetPath(data, m.dialect.Fields().Identity, e.ID)
		}
		if _, err := m.Create(e.Kind, data); err != nil {
			return fmt.Errorf("mock: seed %s/%s: %w", e.Kind, e.ID, err)
		}
	}
	return nil
}

// Get returns the rendered resource.
func (m *Mock) Get(kind, id string) (Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.kinds[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.render(kind, rec), nil
}

// Create stores data under kind. The identity is taken from data when
// present, otherwise generated.
func (m *Mock) Create(kind string, data Resource) (Resource, error) {
	if strings.TrimSpace(kind) == "" {
		return nil, fmt.Errorf("mock: kind is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := dialect.GetPathString(data, m.dialect.Fields().Identity)
	if n, ok := data[m.dialect.Fields().Identity].(float64); ok && id == "" {
		id = strconv.FormatFloat(n, 'f', -1, 64)
	}
	items := m.kinds[kind]
	if items == nil {
		items = make(map[string]*record)
		m.kinds[kind] = items
	}
	if id == "" {
		id = m.nextID(items)
	} else if _, taken := items[id]; taken {
		return nil, ErrConflict
	}

	rec := &record{id: id, data: m.strip(data), etag: newETag(), updatedAt: m.now()}
	items[id] = rec
	return m.render(kind, rec), nil
}

// Update replaces the stored data. A non-empty ifMatch must equal the
// current ETag.
func (m *Mock) Update(kind, id, ifMatch string, data Resource) (Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.kinds[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	if ifMatch != "" && ifMatch != rec.etag {
		return nil, ErrPreconditionFailed
	}
	rec.data = m.strip(data)
	rec.etag = newETag()
	rec.updatedAt = m.now()
	return m.render(kind, rec), nil
}

// Delete removes a resource. A non-empty ifMatch must equal the current ETag.
func (m *Mock) Delete(kind, id, ifMatch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.kinds[kind][id]
	if !ok {
		return ErrNotFound
	}
	if ifMatch != "" && ifMatch != rec.etag {
		return ErrPreconditionFailed
	}
	delete(m.kinds[kind], id)
	return nil
}

// Query describes a feed read. Negative Start or Count means unset.
type Query struct {
	Where   string
	OrderBy []string
	Select  []string
	Start   int
	Count   int
}

// Page is one page of a feed.
type Page struct {
	Items []Resource
	Total int
}

// List evaluates q against the resources of kind.
func (m *Mock) List(kind string, q Query) (Page, error) {
	cond, err := parseWhere(q.Where)
	if err != nil {
		return Page{}, err
	}
	order, err := parseOrderBy(q.OrderBy)
	if err != nil {
		return Page{}, err
	}

	m.mu.RLock()
	items := make([]Resource, 0, len(m.kinds[kind]))
	for _, rec := range m.kinds[kind] {
		r := m.render(kind, rec)
		if cond.match(r) {
			items = append(items, r)
		}
	}
	m.mu.RUnlock()

	idField := m.dialect.Fields().Identity
	sort.SliceStable(items, func(i, j int) bool {
		if c := order.compare(items[i], items[j]); c != 0 {
			return c < 0
		}
		return compareValues(items[i][idField], items[j][idField]) < 0
	})

	total := len(items)
	if q.Start > 0 {
		if q.Start >= len(items) {
			items = items[:0]
		} else {
			items = items[q.Start:]
		}
	}
	if q.Count >= 0 && q.Count < len(items) {
		items = items[:q.Count]
	}
	if len(q.Select) > 0 {
		for i, r := range items {
			items[i] = m.project(r, q.Select)
		}
	}
	return Page{Items: items, Total: total}, nil
}

func (m *Mock) nextID(items map[string]*record) string {
	for {
		m.seq++
		id := strconv.Itoa(m.seq)
		if _, taken := items[id]; !taken {
			return id
		}
	}
}

// metaKeys are the top-level properties the dialect stamps on entries.
func (m *Mock) metaKeys() []string {
	f := m.dialect.Fields()
	paths := append([]string{f.Identity, f.Entity, f.Version}, f.ETag...)
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, strings.SplitN(p, ".", 2)[0])
	}
	return keys
}

func (m *Mock) strip(data Resource) map[string]any {
	out := cloneMap(data)
	for _, k := range m.metaKeys() {
		delete(out, k)
	}
	return out
}

func (m *Mock) render(kind string, rec *record) Resource {
	out := cloneMap(rec.data)
	m.dialect.Stamp(out, rec.id, kind, rec.etag)
	return out
}

func (m *Mock) project(r Resource, fields []string) Resource {
	out := make(Resource, len(fields)+3)
	for _, k := range m.metaKeys() {
		if v, ok := r[k]; ok {
			out[k] = v
		}
	}
	for _, f := range fields {
		key := strings.SplitN(strings.TrimSpace(f), ".", 2)[0]
		if v, ok := r[key]; ok {
			out[key] = v
		}
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func newETag() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf[:])
}
