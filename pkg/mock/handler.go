package mock

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Ratio1/odata_sdk_go/pkg/dialect"
)

const (
	headerIfMatch            = "If-Match"
	headerHTTPMethodOverride = "X-HTTP-Method-Override"
)

// Handler returns the HTTP surface of the mock. Resources live at
// <base>/<kind> (feeds) and <base>/<kind>(<predicate>) (entries).
func (m *Mock) Handler(middleware ...gin.HandlerFunc) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware...)
	r.Any(m.basePath+"/*resource", m.serve)
	return r
}

func (m *Mock) serve(c *gin.Context) {
	seg := strings.Trim(c.Param("resource"), "/")
	if seg == "" || strings.Contains(seg, "/") {
		m.fail(c, http.StatusNotFound, "unknown resource "+strconv.Quote(seg))
		return
	}
	kind, predicate := splitSegment(seg)

	switch c.Request.Method {
	case http.MethodGet:
		if predicate == "" {
			m.serveFeed(c, kind, c.Request.URL.Query())
			return
		}
		m.serveEntry(c, kind, predicate)
	case http.MethodPost:
		if strings.EqualFold(c.GetHeader(headerHTTPMethodOverride), http.MethodGet) {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				m.fail(c, http.StatusBadRequest, err.Error())
				return
			}
			values, err := url.ParseQuery(string(body))
			if err != nil {
				m.fail(c, http.StatusBadRequest, err.Error())
				return
			}
			m.serveFeed(c, kind, values)
			return
		}
		if predicate != "" {
			m.fail(c, http.StatusMethodNotAllowed, "POST targets a collection")
			return
		}
		data, ok := m.bindEntry(c)
		if !ok {
			return
		}
		created, err := m.Create(kind, data)
		if err != nil {
			m.failErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, m.wrap(created))
	case http.MethodPut:
		id, ok := m.requireID(c, predicate)
		if !ok {
			return
		}
		data, ok := m.bindEntry(c)
		if !ok {
			return
		}
		updated, err := m.Update(kind, id, c.GetHeader(headerIfMatch), data)
		if err != nil {
			m.failErr(c, err)
			return
		}
		c.JSON(http.StatusOK, m.wrap(updated))
	case http.MethodDelete:
		id, ok := m.requireID(c, predicate)
		if !ok {
			return
		}
		if err := m.Delete(kind, id, c.GetHeader(headerIfMatch)); err != nil {
			m.failErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	default:
		m.fail(c, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (m *Mock) serveEntry(c *gin.Context, kind, predicate string) {
	if dialect.IsRawPredicate(predicate) {
		page, err := m.List(kind, Query{Where: predicate, Start: -1, Count: 1})
		if err != nil {
			m.failErr(c, err)
			return
		}
		if len(page.Items) == 0 {
			m.failErr(c, ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, m.wrap(page.Items[0]))
		return
	}
	entry, err := m.Get(kind, m.predicateID(predicate))
	if err != nil {
		m.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m.wrap(entry))
}

func (m *Mock) serveFeed(c *gin.Context, kind string, values url.Values) {
	keys := m.dialect.Keys()
	q := Query{
		Where:   values.Get(keys.Where),
		OrderBy: splitList(values.Get(keys.OrderBy)),
		Select:  splitList(values.Get(keys.Select)),
		Start:   -1,
		Count:   -1,
	}
	if raw := values.Get(keys.Count); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			m.fail(c, http.StatusBadRequest, "invalid "+keys.Count)
			return
		}
		q.Count = n
	}
	if raw := values.Get(keys.Start); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			m.fail(c, http.StatusBadRequest, "invalid "+keys.Start)
			return
		}
		base, _ := strconv.Atoi(m.dialect.StartIndex(0))
		q.Start = n - base
	}

	page, err := m.List(kind, q)
	if err != nil {
		m.failErr(c, err)
		return
	}

	f := m.dialect.Fields()
	feed := map[string]any{f.Items: page.Items}
	if keys.InlineCount == "" || values.Get(keys.InlineCount) == keys.InlineCountValue {
		feed[f.Total] = page.Total
	}
	c.JSON(http.StatusOK, m.wrap(feed))
}

func (m *Mock) bindEntry(c *gin.Context) (Resource, bool) {
	var data Resource
	if err := json.NewDecoder(c.Request.Body).Decode(&data); err != nil {
		m.fail(c, http.StatusBadRequest, "invalid entry: "+err.Error())
		return nil, false
	}
	if data == nil {
		data = Resource{}
	}
	return data, true
}

func (m *Mock) requireID(c *gin.Context, predicate string) (string, bool) {
	id := m.predicateID(predicate)
	if id == "" || dialect.IsRawPredicate(predicate) {
		m.fail(c, http.StatusBadRequest, "a key predicate is required")
		return "", false
	}
	return id, true
}

// predicateID extracts the key from id=<key>, '<key>' or a bare key.
func (m *Mock) predicateID(predicate string) string {
	p := strings.TrimSpace(predicate)
	p = strings.TrimPrefix(p, m.dialect.Fields().Identity+"=")
	return strings.Trim(p, "'\"")
}

func (m *Mock) wrap(payload any) any {
	if env := m.dialect.Fields().Envelope; env != "" {
		return map[string]any{env: payload}
	}
	return payload
}

func (m *Mock) failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		m.fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		m.fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrPreconditionFailed):
		m.fail(c, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, ErrUnsupportedFilter):
		m.fail(c, http.StatusBadRequest, err.Error())
	default:
		m.fail(c, http.StatusInternalServerError, err.Error())
	}
}

func (m *Mock) fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func splitSegment(seg string) (kind, predicate string) {
	open := strings.IndexByte(seg, '(')
	if open <= 0 || !strings.HasSuffix(seg, ")") {
		return seg, ""
	}
	return seg[:open], seg[open+1 : len(seg)-1]
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
