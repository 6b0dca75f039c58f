package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Ratio1/odata_sdk_go/internal/httpx"
	"github.com/Ratio1/odata_sdk_go/internal/tracing"
	"github.com/Ratio1/odata_sdk_go/pkg/apierrors"
)

// Options carries the caller's callbacks for one request. Success receives
// the unwrapped response payload.
type Options struct {
	Success  func(result []byte)
	Failure  func(err error)
	Abort    func(err error)
	Progress func(read, total int64)

	// HTTPMethodOverride sends a feed read as a POST carrying the query in the body.
	HTTPMethodOverride bool
}

// TransportOptions override the defaults of a single exchange.
type TransportOptions struct {
	Method string
	URL    string
	Body   []byte
	Header http.Header
	ETag   string

	// PreventCache overrides the connection flag when non-nil.
	PreventCache *bool

	// Result, when non-nil, is reported as the response without any network
	// call. It may be raw JSON bytes or any value that marshals to JSON.
	Result any
}

// Call tracks one executed or queued exchange.
type Call struct {
	id     string
	method string
	url    string
	queued bool

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func newCall(id, method, url string) *Call {
	return &Call{id: id, method: method, url: url, cancel: func() {}, done: make(chan struct{})}
}

func (c *Call) finish(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// ID returns the request identifier.
func (c *Call) ID() string { return c.id }

// Method returns the HTTP method used.
func (c *Call) Method() string { return c.method }

// URL returns the URL requested.
func (c *Call) URL() string { return c.url }

// Queued reports whether the call was recorded on a batch scope instead of executed.
func (c *Call) Queued() bool { return c.queued }

// Abort cancels the exchange. It is a no-op once the call has finished.
func (c *Call) Abort() { c.cancel() }

// Done is closed when the call settles.
func (c *Call) Done() <-chan struct{} { return c.done }

// Wait blocks until the call settles and returns its error.
func (c *Call) Wait() error {
	<-c.done
	return c.err
}

// ExecuteRequest performs one exchange for t. Defaults (GET, no body, the
// connection's cache and credential settings) are merged with topts, and the
// connection headers are merged with topts.Header, the latter winning. A
// non-nil topts.Result is reported synchronously without touching the network.
func (c *Connection) ExecuteRequest(ctx context.Context, t Target, opts Options, topts TransportOptions) *Call {
	if ctx == nil {
		ctx = context.Background()
	}
	snap := c.snapshot()

	method := topts.Method
	if method == "" {
		method = http.MethodGet
	}
	target := topts.URL
	if target == "" {
		target = t.Build(false)
	}
	call := newCall(t.ID(), method, target)

	if topts.Result != nil {
		c.shortCircuit(call, opts, topts.Result)
		return call
	}

	preventCache := snap.preventCache
	if topts.PreventCache != nil {
		preventCache = *topts.PreventCache
	}
	if preventCache {
		target = withCacheBuster(target, c.now())
		call.url = target
	}

	header := c.CreateHeadersForRequest()
	for k, values := range topts.Header {
		header[http.CanonicalHeaderKey(k)] = append([]string(nil), values...)
	}
	if topts.ETag != "" {
		header.Set(HeaderIfMatch, topts.ETag)
	}

	req := &httpx.Request{
		Method: method,
		URL:    target,
		Header: header,
	}
	if len(topts.Body) > 0 {
		req.Body = bytes.NewReader(topts.Body)
	}
	if snap.credentialed && snap.userName != "" {
		req.BasicAuth = &httpx.BasicAuth{User: snap.userName, Password: snap.password}
	}

	runCtx, cancel := context.WithCancel(ctx)
	call.cancel = cancel

	c.logger.Debug("executing request",
		zap.String("request_id", call.id),
		zap.String("method", method),
		zap.String("url", target),
	)

	go func() {
		defer cancel()
		c.run(runCtx, call, req, opts)
	}()
	return call
}

func (c *Connection) run(ctx context.Context, call *Call, req *httpx.Request, opts Options) {
	ctx, span := tracing.Start(ctx, call.method+" "+c.dialect.Name(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(tracing.AttrKeyHTTPMethod, call.method),
			attribute.String(tracing.AttrKeyHTTPURL, call.url),
			attribute.String(tracing.AttrKeyRequestID, call.id),
			attribute.String(tracing.AttrKeyDialect, c.dialect.Name()),
		),
	)
	defer span.End()

	start := c.now()
	body, status, err := c.roundTrip(ctx, req, opts.Progress)
	if err == nil {
		var result []byte
		result, err = c.ProcessResponse(body)
		if err == nil {
			span.SetAttributes(attribute.Int(tracing.AttrKeyHTTPStatusCode, status))
			c.notify(Event{Kind: EventComplete, RequestID: call.id, Method: call.method, URL: call.url,
				StatusCode: status, Duration: c.now().Sub(start), Result: result})
			call.finish(nil)
			if opts.Success != nil {
				opts.Success(result)
			}
			return
		}
	}

	err = c.classify(ctx, call, err)
	tracing.SetSpanError(ctx, err)
	event := Event{Kind: EventFailure, RequestID: call.id, Method: call.method, URL: call.url,
		StatusCode: apierrors.StatusCode(err), Duration: c.now().Sub(start), Err: err}
	if apierrors.IsAborted(err) {
		event.Kind = EventAbort
	}
	c.notify(event)
	call.finish(err)

	if event.Kind == EventAbort {
		if opts.Abort != nil {
			opts.Abort(err)
		} else if opts.Failure != nil {
			opts.Failure(err)
		}
		return
	}
	if opts.Failure != nil {
		opts.Failure(err)
	}
}

func (c *Connection) roundTrip(ctx context.Context, req *httpx.Request, progress func(read, total int64)) ([]byte, int, error) {
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	var rc io.ReadCloser = resp.Body
	if progress != nil {
		rc = &progressReader{ReadCloser: resp.Body, total: resp.ContentLength, fn: progress}
	}
	body, err := httpx.ReadAllAndClose(rc)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// classify maps transport errors onto the public error taxonomy.
func (c *Connection) classify(ctx context.Context, call *Call, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return apierrors.NewAbortedError(call.method + " " + call.url)
	}
	te := &apierrors.TransportError{Method: call.method, URL: call.url, Cause: err}
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		te.StatusCode = httpErr.StatusCode
		te.Body = httpErr.Body
	}
	return te
}

func (c *Connection) shortCircuit(call *Call, opts Options, value any) {
	raw, err := resultBytes(value)
	if err == nil {
		raw, err = c.ProcessResponse(raw)
	}
	if err != nil {
		err = apierrors.NewInvalidResponseError("connection: encode supplied result: "+err.Error(), nil)
		call.finish(err)
		if opts.Failure != nil {
			opts.Failure(err)
		}
		return
	}
	c.notify(Event{Kind: EventComplete, RequestID: call.id, Method: call.method, URL: call.url, Result: raw})
	call.finish(nil)
	if opts.Success != nil {
		opts.Success(raw)
	}
}

func resultBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return httpx.MarshalJSON(v)
	}
}

func (c *Connection) notify(e Event) {
	if c.notifier != nil {
		c.notifier.Notify(e)
	}
}

func withCacheBuster(target string, now time.Time) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + "_=" + strconv.FormatInt(now.UnixMilli(), 10)
}

type progressReader struct {
	io.ReadCloser
	read  int64
	total int64
	fn    func(read, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.ReadCloser.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.fn(p.read, p.total)
	}
	return n, err
}
