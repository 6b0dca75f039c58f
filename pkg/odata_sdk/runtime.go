package odata_sdk

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/Ratio1/odata_sdk_go/internal/config"
	"github.com/Ratio1/odata_sdk_go/internal/devseed"
	"github.com/Ratio1/odata_sdk_go/internal/httpx"
	"github.com/Ratio1/odata_sdk_go/pkg/connection"
	"github.com/Ratio1/odata_sdk_go/pkg/dialect"
	"github.com/Ratio1/odata_sdk_go/pkg/mock"
)

// Config is the resolved runtime configuration.
type Config = config.Config

const (
	ModeAuto = config.ModeAuto
	ModeHTTP = config.ModeHTTP
	ModeMock = config.ModeMock

	// MockHost is the origin used for in-process mock connections.
	MockHost = "http://mock.local"

	DefaultODataPath = "/odata"
	DefaultSDataPath = "/sdata/slx/dynamic/-"
)

// NewFromEnv loads configuration from the environment (and a .env file when
// present) and returns a connection with the resolved mode ("http" or "mock").
func NewFromEnv(opts ...connection.Option) (*connection.Connection, string, error) {
	cfg, err := config.Load("", nil)
	if err != nil {
		return nil, "", fmt.Errorf("odata_sdk: %w", err)
	}
	return New(cfg, opts...)
}

// New returns a connection for cfg. opts are applied after the options
// derived from cfg.
func New(cfg *Config, opts ...connection.Option) (*connection.Connection, string, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	switch cfg.Mode {
	case ModeAuto, "":
		if cfg.URL != "" {
			return newHTTPConnection(cfg, opts)
		}
		return newMockConnection(cfg, opts)
	case ModeHTTP:
		if cfg.URL == "" {
			return nil, "", fmt.Errorf("odata_sdk: HTTP mode requires %s_URL", config.EnvPrefix)
		}
		return newHTTPConnection(cfg, opts)
	case ModeMock:
		return newMockConnection(cfg, opts)
	default:
		return nil, "", fmt.Errorf("odata_sdk: unsupported %s_MODE value %q", config.EnvPrefix, cfg.Mode)
	}
}

// NewMock returns a connection served in-process by a fresh mock, together
// with the mock so callers can seed or inspect it.
func NewMock(cfg *Config, opts ...connection.Option) (*connection.Connection, *mock.Mock, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	d, err := resolveDialect(cfg)
	if err != nil {
		return nil, nil, err
	}
	base := mockBasePath(cfg.URL, d)
	m := mock.New(mock.WithDialect(d), mock.WithBasePath(base))
	if path := strings.TrimSpace(cfg.MockSeed); path != "" {
		entries, err := devseed.LoadResourceSeed(path)
		if err != nil {
			return nil, nil, fmt.Errorf("odata_sdk: load mock seed: %w", err)
		}
		if err := m.Seed(entries); err != nil {
			return nil, nil, fmt.Errorf("odata_sdk: apply mock seed: %w", err)
		}
	}

	all := append(connectionOptions(cfg, d), connection.WithTransport(m.Transport()))
	conn, err := connection.New(MockHost+m.BasePath(), append(all, opts...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("odata_sdk: init mock connection: %w", err)
	}
	return conn, m, nil
}

func newHTTPConnection(cfg *Config, opts []connection.Option) (*connection.Connection, string, error) {
	d, err := resolveDialect(cfg)
	if err != nil {
		return nil, "", err
	}
	conn, err := connection.New(cfg.URL, append(connectionOptions(cfg, d), opts...)...)
	if err != nil {
		return nil, "", fmt.Errorf("odata_sdk: init HTTP connection: %w", err)
	}
	return conn, ModeHTTP, nil
}

func newMockConnection(cfg *Config, opts []connection.Option) (*connection.Connection, string, error) {
	conn, _, err := NewMock(cfg, opts...)
	if err != nil {
		return nil, "", err
	}
	return conn, ModeMock, nil
}

func resolveDialect(cfg *Config) (dialect.Dialect, error) {
	d, ok := dialect.ByName(cfg.Dialect)
	if !ok {
		return nil, fmt.Errorf("odata_sdk: unsupported dialect %q", cfg.Dialect)
	}
	return d, nil
}

func connectionOptions(cfg *Config, d dialect.Dialect) []connection.Option {
	var httpOpts []httpx.Option
	if cfg.Timeout > 0 {
		httpOpts = append(httpOpts, httpx.WithTimeout(cfg.Timeout))
	}
	if cfg.RateLimit > 0 {
		burst := int(math.Ceil(cfg.RateLimit))
		httpOpts = append(httpOpts, httpx.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
	}

	opts := []connection.Option{
		connection.WithDialect(d),
		connection.WithJSON(cfg.JSON),
		connection.WithPreventCache(cfg.PreventCache),
		connection.WithCredentialedRequest(cfg.Credentialed),
		connection.WithHTTPOptions(httpOpts...),
	}
	if cfg.Username != "" {
		opts = append(opts, connection.WithCredentials(cfg.Username, cfg.Password))
	}
	return opts
}

func mockBasePath(rawURL string, d dialect.Dialect) string {
	if rawURL != "" {
		if u, err := url.Parse(rawURL); err == nil && strings.Trim(u.Path, "/") != "" {
			return u.Path
		}
	}
	if d.Name() == (dialect.SData{}).Name() {
		return DefaultSDataPath
	}
	return DefaultODataPath
}
