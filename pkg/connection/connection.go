package connection

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ratio1/odata_sdk_go/internal/envelope"
	"github.com/Ratio1/odata_sdk_go/internal/httpx"
	"github.com/Ratio1/odata_sdk_go/pkg/apierrors"
	"github.com/Ratio1/odata_sdk_go/pkg/dialect"
	"github.com/Ratio1/odata_sdk_go/pkg/uri"
)

// Header names
const (
	HeaderAuthorizationMode  = "X-Authorization-Mode"
	HeaderAuthorization      = "Authorization"
	HeaderXAuthorization     = "X-Authorization"
	HeaderIfMatch            = "If-Match"
	HeaderHTTPMethodOverride = "X-HTTP-Method-Override"
)

// Target is the request being executed.
type Target interface {
	ID() string
	Build(excludeQuery bool) string
}

// Service is the part of a Connection that requests and stores use.
type Service interface {
	Dialect() dialect.Dialect
	URI() uri.Address
	JSON() bool

	ReadFeed(ctx context.Context, t Target, opts Options) *Call
	ReadEntry(ctx context.Context, t Target, opts Options) *Call
	CreateEntry(ctx context.Context, t Target, entry map[string]any, opts Options) *Call
	UpdateEntry(ctx context.Context, t Target, entry map[string]any, opts Options) *Call
	DeleteEntry(ctx context.Context, t Target, entry map[string]any, opts Options) *Call
	ExecuteServiceOperation(ctx context.Context, t Target, entry map[string]any, opts Options) *Call
}

// Connection talks to one OData or SData service.
type Connection struct {
	mu sync.RWMutex

	uri                    uri.Address
	dialect                dialect.Dialect
	userName               string
	password               string
	useCredentialedRequest bool
	json                   bool
	preventCache           bool
	batch                  *Batch

	httpOpts []httpx.Option
	client   *httpx.Client
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

var _ Service = (*Connection)(nil)

// Option configures a Connection.
type Option func(*Connection)

// WithDialect selects the protocol flavour. OData is the default.
func WithDialect(d dialect.Dialect) Option {
	return func(c *Connection) {
		if d != nil {
			c.dialect = d
		}
	}
}

// WithCredentials sets the user name and password sent as basic auth.
func WithCredentials(userName, password string) Option {
	return func(c *Connection) {
		c.userName = userName
		c.password = password
	}
}

// WithCredentialedRequest lets the transport carry the credentials instead of
// explicit authorization headers.
func WithCredentialedRequest(enabled bool) Option {
	return func(c *Connection) {
		c.useCredentialedRequest = enabled
	}
}

// WithJSON selects the JSON wire format (true) or XML/Atom (false).
func WithJSON(enabled bool) Option {
	return func(c *Connection) {
		c.json = enabled
	}
}

// WithPreventCache appends a timestamp parameter to every request URL.
func WithPreventCache(enabled bool) Option {
	return func(c *Connection) {
		c.preventCache = enabled
	}
}

// WithHTTPOptions configures the underlying HTTP client.
func WithHTTPOptions(opts ...httpx.Option) Option {
	return func(c *Connection) {
		c.httpOpts = append(c.httpOpts, opts...)
	}
}

// WithTransport routes requests through rt, for example an in-process mock.
func WithTransport(rt http.RoundTripper) Option {
	return WithHTTPOptions(httpx.WithTransport(rt))
}

// WithNotifier installs the receiver of request events.
func WithNotifier(n Notifier) Option {
	return func(c *Connection) {
		c.notifier = n
	}
}

// WithLogger sets the logger used for request dispatch.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the clock used for cache busting and durations.
func WithClock(now func() time.Time) Option {
	return func(c *Connection) {
		if now != nil {
			c.now = now
		}
	}
}

// New parses rawURL with the selected dialect and returns a Connection.
func New(rawURL string, opts ...Option) (*Connection, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, apierrors.NewConfigurationError("connection", "service URL is required")
	}
	c, err := newConnection(opts)
	if err != nil {
		return nil, err
	}
	c.uri = c.dialect.NewAddress(rawURL)
	return c, nil
}

// NewWithAddress returns a Connection rooted at a prepared address.
func NewWithAddress(addr uri.Address, opts ...Option) (*Connection, error) {
	if addr == nil {
		return nil, apierrors.NewConfigurationError("connection", "address is required")
	}
	c, err := newConnection(opts)
	if err != nil {
		return nil, err
	}
	c.uri = addr.Clone()
	return c, nil
}

func newConnection(opts []Option) (*Connection, error) {
	c := &Connection{
		dialect: dialect.OData{},
		json:    true,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	client, err := httpx.NewClient("", c.httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("connection: init HTTP client: %w", err)
	}
	c.client = client
	c.logger = c.logger.With(zap.String("dialect", c.dialect.Name()))
	return c, nil
}

// URI returns a copy of the base address.
func (c *Connection) URI() uri.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uri.Clone()
}

// Dialect returns the protocol flavour.
func (c *Connection) Dialect() dialect.Dialect {
	return c.dialect
}

// JSON reports whether the JSON wire format is selected.
func (c *Connection) JSON() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.json
}

// SetJSON selects the JSON wire format (true) or XML/Atom (false).
func (c *Connection) SetJSON(enabled bool) {
	c.mu.Lock()
	c.json = enabled
	c.mu.Unlock()
}

// SetUserName sets the basic auth user.
func (c *Connection) SetUserName(userName string) {
	c.mu.Lock()
	c.userName = userName
	c.mu.Unlock()
}

// SetPassword sets the basic auth password.
func (c *Connection) SetPassword(password string) {
	c.mu.Lock()
	c.password = password
	c.mu.Unlock()
}

// SetCredentialedRequest toggles transport-carried credentials.
func (c *Connection) SetCredentialedRequest(enabled bool) {
	c.mu.Lock()
	c.useCredentialedRequest = enabled
	c.mu.Unlock()
}

// SetPreventCache toggles the cache-busting URL parameter.
func (c *Connection) SetPreventCache(enabled bool) {
	c.mu.Lock()
	c.preventCache = enabled
	c.mu.Unlock()
}

// SetBatchScope routes subsequent operations into b.
func (c *Connection) SetBatchScope(b *Batch) {
	c.mu.Lock()
	c.batch = b
	c.mu.Unlock()
}

// ClearBatchScope resumes direct execution.
func (c *Connection) ClearBatchScope() {
	c.SetBatchScope(nil)
}

// BatchScope returns the current batch scope, or nil.
func (c *Connection) BatchScope() *Batch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.batch
}

// CreateBasicAuthToken renders "Basic base64(user:password)".
func (c *Connection) CreateBasicAuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return basicAuthToken(c.userName, c.password)
}

func basicAuthToken(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// CreateHeadersForRequest returns the default headers of every request.
// Authorization headers are only added for a named user when the transport
// does not carry credentials itself. The XML/Atom format adds no content
// headers.
func (c *Connection) CreateHeadersForRequest() http.Header {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h := make(http.Header)
	h.Set(HeaderAuthorizationMode, "no-challenge")
	if c.userName != "" && !c.useCredentialedRequest {
		token := basicAuthToken(c.userName, c.password)
		h.Set(HeaderAuthorization, token)
		h.Set(HeaderXAuthorization, token)
	}
	if c.json {
		h.Set("Content-Type", "application/json")
		h.Set("Accept", "application/json, */*")
	}
	return h
}

// ProcessResponse unwraps the dialect envelope of a JSON body. XML bodies are
// handed to ProcessXML.
func (c *Connection) ProcessResponse(raw []byte) ([]byte, error) {
	if !c.JSON() {
		return c.ProcessXML(raw)
	}
	return envelope.Unwrap(raw, c.dialect.Fields().Envelope), nil
}

// ProcessXML returns the body untouched; XML/Atom parsing is not supported.
func (c *Connection) ProcessXML(raw []byte) ([]byte, error) {
	return raw, nil
}

// PrepareEntry serialises an outgoing entry for the selected wire format.
func (c *Connection) PrepareEntry(entry map[string]any) ([]byte, error) {
	if !c.JSON() {
		return nil, fmt.Errorf("connection: XML entry serialisation: %w", apierrors.ErrNotImplemented)
	}
	data, err := httpx.MarshalJSON(entry)
	if err != nil {
		return nil, fmt.Errorf("connection: encode entry: %w", err)
	}
	return data, nil
}

// ExtractETagFromEntry returns the entry's concurrency token, or "".
func (c *Connection) ExtractETagFromEntry(entry map[string]any) string {
	return dialect.ETag(c.dialect, entry)
}

type snapshot struct {
	userName     string
	password     string
	credentialed bool
	json         bool
	preventCache bool
	batch        *Batch
}

func (c *Connection) snapshot() snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshot{
		userName:     c.userName,
		password:     c.password,
		credentialed: c.useCredentialedRequest,
		json:         c.json,
		preventCache: c.preventCache,
		batch:        c.batch,
	}
}
