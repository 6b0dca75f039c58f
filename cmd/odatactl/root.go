package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ratio1/odata_sdk_go/internal/config"
	"github.com/Ratio1/odata_sdk_go/internal/metrics"
	"github.com/Ratio1/odata_sdk_go/pkg/connection"
	"github.com/Ratio1/odata_sdk_go/pkg/expr"
	"github.com/Ratio1/odata_sdk_go/pkg/odata_sdk"
	"github.com/Ratio1/odata_sdk_go/pkg/store"
)

const example = `  # Read one account from a live service
  odatactl get accounts 42 --url http://localhost:8787/odata --mode http

  # Query the second page of active contacts on an SData endpoint
  odatactl query contacts --dialect sdata --where "Active eq true" --count 10 --start 10

  # Fetch three pages concurrently from the in-process mock
  odatactl query accounts --mode mock --mock-seed seed.yaml --count 2 --pages 3`

var progressMessage = color.GreenString("==>")

// session is the state shared by every subcommand of one invocation.
type session struct {
	cfg      *config.Config
	conn     *connection.Connection
	mode     string
	logger   *zap.Logger
	registry *prometheus.Registry
}

type rootOptions struct {
	configFile string
	stats      bool
	timeout    time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "odatactl",
		Short:         "Query and update OData and SData resources",
		Example:       example,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pfs := cmd.PersistentFlags()
	config.AddFlags(pfs)
	config.Default().Log.AddFlags(pfs)
	pfs.StringVarP(&opts.configFile, "config", "c", "", "Read configuration from `FILE` (yaml, json or toml).")
	pfs.BoolVar(&opts.stats, "stats", false, "Print request statistics after the command completes.")
	pfs.DurationVar(&opts.timeout, "wait", time.Minute, "Maximum time to wait for the command to complete.")

	cmd.AddCommand(
		newGetCommand(opts),
		newQueryCommand(opts),
		newPutCommand(opts),
	)
	return cmd
}

// withSession loads configuration from flags, environment and the optional
// config file, opens a connection and runs fn under the wait deadline.
func withSession(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, s *session) error) error {
	cfg, err := config.Load(opts.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := cfg.Log.Build()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry, cfg.Dialect)
	conn, mode, err := odata_sdk.New(cfg,
		connection.WithLogger(logger),
		connection.WithNotifier(connection.MultiNotifier{connection.LogNotifier(logger), recorder}),
	)
	if err != nil {
		return err
	}
	s := &session{cfg: cfg, conn: conn, mode: mode, logger: logger, registry: registry}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s %s\n", progressMessage, mode, conn.URI().Build(true))

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	if err := fn(ctx, s); err != nil {
		return err
	}
	if opts.stats {
		return s.printStats(cmd.ErrOrStderr())
	}
	return nil
}

func (s *session) newStore(kind string, sel []string) (*store.Store, error) {
	cfg := store.Config{
		Connection:       s.conn,
		ResourceKind:     expr.Literal(kind),
		DoDateConversion: true,
		Logger:           s.logger,
	}
	if len(sel) > 0 {
		cfg.Select = expr.Literal(sel)
	}
	return store.New(cfg)
}

func (s *session) printStats(w io.Writer) error {
	families, err := s.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if mf.GetName() != "odata_client_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "dialect" {
					continue
				}
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			fmt.Fprintf(w, "%s requests{%s} %s\n", progressMessage, strings.Join(labels, ","),
				color.CyanString("%.0f", m.GetCounter().GetValue()))
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
