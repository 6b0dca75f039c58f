package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Ratio1/odata_sdk_go/internal/devseed"
	"github.com/Ratio1/odata_sdk_go/internal/logging"
	"github.com/Ratio1/odata_sdk_go/pkg/dialect"
	"github.com/Ratio1/odata_sdk_go/pkg/mock"
	"github.com/Ratio1/odata_sdk_go/pkg/odata_sdk"
)

type failConfig struct {
	rate float64
	code int
}

func main() {
	fs := pflag.NewFlagSet("odata-sandbox", pflag.ExitOnError)
	addr := fs.String("addr", ":8787", "listen address")
	seed := fs.String("seed", "", "path to a JSON or YAML resource seed")
	dialectName := fs.String("dialect", "odata", "protocol dialect: odata or sdata")
	base := fs.String("base", "", "service base path (defaults per dialect)")
	latency := fs.Duration("latency", 0, "artificial latency to inject per request")
	fail := fs.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	logOpts := logging.NewOptions()
	logOpts.AddFlags(fs)
	_ = fs.Parse(os.Args[1:])

	logger, err := logOpts.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "odata-sandbox: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger, *addr, *seed, *dialectName, *base, *latency, *fail); err != nil {
		logger.Fatal("sandbox failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, addr, seed, dialectName, base string, latency time.Duration, fail string) error {
	d, ok := dialect.ByName(dialectName)
	if !ok {
		return fmt.Errorf("unsupported dialect %q", dialectName)
	}
	if base == "" {
		base = odata_sdk.DefaultODataPath
		if d.Name() == (dialect.SData{}).Name() {
			base = odata_sdk.DefaultSDataPath
		}
	}

	m := mock.New(mock.WithDialect(d), mock.WithBasePath(base))
	if seed != "" {
		entries, err := devseed.LoadResourceSeed(seed)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		if err := m.Seed(entries); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		logger.Info("seed applied", zap.String("path", seed), zap.Int("entries", len(entries)))
	}

	failCfg, err := parseFailConfig(fail)
	if err != nil {
		return fmt.Errorf("parse fail flag: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(accessLog(logger), withLatency(latency), withFailures(failCfg, rand.Float64)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("odata-sandbox listening", zap.String("addr", addr), zap.String("dialect", d.Name()), zap.String("base", m.BasePath()))
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	fmt.Println()
	fmt.Println("export ODATA_MODE=http")
	fmt.Printf("export ODATA_DIALECT=%s\n", d.Name())
	fmt.Printf("export ODATA_URL=http://%s%s\n", host, m.BasePath())
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func withLatency(delay time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

func withFailures(cfg failConfig, roll func() float64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.rate > 0 && roll() < cfg.rate {
			status := cfg.code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "failure injected"})
			return
		}
		c.Next()
	}
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return failConfig{}, err
			}
			if val < 0 || val > 1 {
				return failConfig{}, fmt.Errorf("fail rate %v out of range [0,1]", val)
			}
			cfg.rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return failConfig{}, err
			}
			cfg.code = val
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}
