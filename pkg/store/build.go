package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Ratio1/odata_sdk_go/pkg/expr"
	"github.com/Ratio1/odata_sdk_go/pkg/request"
	"github.com/Ratio1/odata_sdk_go/pkg/uri"
)

// Target overrides the store's addressing for a single call. Unset values
// fall back to the store configuration.
type Target struct {
	Request           expr.Value[request.Operation]
	ResourceKind      expr.Value[string]
	ResourcePredicate expr.Value[string]
	PathSegments      expr.Value[[]uri.PathSegment]
	QueryArgs         expr.Value[map[string]string]
	Select            expr.Value[[]string]
	Include           expr.Value[[]string]
}

// GetOptions tune Get.
type GetOptions struct {
	Target
}

// QueryOptions tune Query.
type QueryOptions struct {
	Target

	Sort  expr.Value[[]string]
	Where string

	// Count and Start page the feed. Nil leaves the option off the request.
	Count *int
	Start *int

	HTTPMethodOverride bool
}

// PutOptions tune Put and Add.
type PutOptions struct {
	Target

	ID      string
	Entity  string
	Version string

	// Overwrite updates an existing entry instead of creating one.
	Overwrite bool
}

func (s *Store) template(t Target) (request.Operation, bool) {
	v := t.Request.Or(s.cfg.Request)
	if !v.IsSet() {
		return nil, false
	}
	op := expr.Resolve(v, s)
	if op == nil {
		return nil, false
	}
	return op.CloneOperation(), true
}

// address applies kind, predicate, extra segments and query arguments.
func (s *Store) address(addr uri.Address, t Target, predicate string) {
	scope := s.scope()
	kind := expr.Resolve(t.ResourceKind.Or(s.cfg.ResourceKind), scope)
	segments := expr.Resolve(t.PathSegments.Or(s.cfg.PathSegments), scope)
	args := expr.Resolve(t.QueryArgs.Or(s.cfg.QueryArgs), scope)

	if kind != "" {
		addr.SetResourceKind(kind)
	}
	if predicate != "" {
		addr.SetResourceSelector(predicate)
	}
	if len(segments) > 0 {
		addr.AppendPathSegment(segments...)
	}
	if len(args) > 0 {
		addr.SetQueryOptions(args, false)
	}
}

func (s *Store) createEntryRequest(id string, t Target, withPredicate bool) (request.Operation, error) {
	op, ok := s.template(t)
	if !ok {
		r, err := request.NewEntryRequest(s.cfg.Connection)
		if err != nil {
			return nil, err
		}
		if id == "" {
			id = expr.Resolve(t.ResourcePredicate.Or(s.cfg.ResourcePredicate), s.scope())
		}
		predicate := ""
		if withPredicate {
			predicate = s.dialect.Selector(id)
		}
		s.address(r.URI(), t, predicate)
		op = r
	}

	keys := s.dialect.Keys()
	addr := op.URI()
	if sel := expr.Resolve(t.Select.Or(s.cfg.Select), s.scope()); len(sel) > 0 {
		addr.SetQueryOption(keys.Select, strings.Join(sel, ","))
	}
	if inc := expr.Resolve(t.Include.Or(s.cfg.Include), s.scope()); len(inc) > 0 {
		addr.SetQueryOption(keys.Include, strings.Join(inc, ","))
	}
	return op, nil
}

func (s *Store) createFeedRequest(query string, opts QueryOptions) (request.Operation, error) {
	scope := s.scope()
	op, ok := s.template(opts.Target)
	if !ok {
		r, err := request.NewCollectionRequest(s.cfg.Connection)
		if err != nil {
			return nil, err
		}
		predicate := expr.Resolve(opts.ResourcePredicate.Or(s.cfg.ResourcePredicate), scope)
		s.address(r.URI(), opts.Target, predicate)
		op = r
	}

	keys := s.dialect.Keys()
	addr := op.URI()

	if sel := expr.Resolve(opts.Select.Or(s.cfg.Select), scope); len(sel) > 0 {
		sel = withField(sel, s.cfg.IDProperty)
		addr.SetQueryOption(keys.Select, strings.Join(sel, ","))
	}
	if inc := expr.Resolve(opts.Include.Or(s.cfg.Include), scope); len(inc) > 0 {
		addr.SetQueryOption(keys.Include, strings.Join(inc, ","))
	}
	if order := expr.Resolve(opts.Sort.Or(s.cfg.OrderBy), scope); len(order) > 0 {
		addr.SetQueryOption(keys.OrderBy, strings.Join(order, ","))
	}

	var conditions []string
	for _, c := range []string{expr.Resolve(s.cfg.Where, scope), query, opts.Where} {
		if c != "" {
			conditions = append(conditions, c)
		}
	}
	if len(conditions) > 0 {
		addr.SetQueryOption(keys.Where, "("+strings.Join(conditions, ") and (")+")")
	}

	if opts.Count != nil {
		setCount(op, keys.Count, *opts.Count)
	}
	if opts.Start != nil && *opts.Start > 0 {
		if cr, ok := op.(*request.CollectionRequest); ok {
			cr.SetStartIndex(*opts.Start)
		} else {
			addr.SetQueryOption(keys.Start, s.dialect.StartIndex(*opts.Start))
		}
	}
	if keys.InlineCount != "" {
		addr.SetQueryOption(keys.InlineCount, keys.InlineCountValue)
	}
	return op, nil
}

func setCount(op request.Operation, key string, n int) {
	if cr, ok := op.(*request.CollectionRequest); ok {
		cr.SetCount(n)
		return
	}
	op.URI().SetQueryOption(key, strconv.Itoa(n))
}

// withField returns fields with name appended when missing. fields is not modified.
func withField(fields []string, name string) []string {
	for _, f := range fields {
		if f == name {
			return fields
		}
	}
	out := make([]string, 0, len(fields)+1)
	out = append(out, fields...)
	return append(out, name)
}

func identityString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
