package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Ratio1/odata_sdk_go/pkg/expr"
	"github.com/Ratio1/odata_sdk_go/pkg/store"
)

func newGetCommand(root *rootOptions) *cobra.Command {
	var sel []string
	cmd := &cobra.Command{
		Use:   "get KIND ID",
		Short: "Read a single entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, root, func(ctx context.Context, s *session) error {
				st, err := s.newStore(args[0], sel)
				if err != nil {
					return err
				}
				entry, err := st.Get(ctx, args[1], nil).Wait(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), entry)
			})
		},
	}
	cmd.Flags().StringSliceVar(&sel, "select", nil, "Properties to return.")
	return cmd
}

type queryOptions struct {
	where    string
	orderBy  []string
	sel      []string
	count    int
	start    int
	pages    int
	parallel int
	override bool
}

func newQueryCommand(root *rootOptions) *cobra.Command {
	o := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query KIND",
		Short: "Read a page of entries, or several pages concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.pages > 1 && o.count <= 0 {
				return errors.New("--pages requires a positive --count")
			}
			return withSession(cmd, root, func(ctx context.Context, s *session) error {
				st, err := s.newStore(args[0], o.sel)
				if err != nil {
					return err
				}
				result, err := runQuery(ctx, st, o)
				if err != nil {
					return err
				}
				if result.Total >= 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s of %s\n", progressMessage,
						color.CyanString("%d", len(result.Items)), color.CyanString("%d", result.Total))
				}
				return writeJSON(cmd.OutOrStdout(), result.Items)
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&o.where, "where", "", "Filter expression.")
	fs.StringSliceVar(&o.orderBy, "order-by", nil, "Sort expressions, for example \"Name desc\".")
	fs.StringSliceVar(&o.sel, "select", nil, "Properties to return.")
	fs.IntVar(&o.count, "count", -1, "Page size, negative for the service default.")
	fs.IntVar(&o.start, "start", 0, "Zero-based index of the first entry.")
	fs.IntVar(&o.pages, "pages", 1, "Number of consecutive pages to fetch.")
	fs.IntVar(&o.parallel, "parallel", 4, "Maximum pages fetched at once.")
	fs.BoolVar(&o.override, "method-override", false, "Send the query as a POST body with X-HTTP-Method-Override.")
	return cmd
}

type queryResult struct {
	Items []store.Entry
	Total int
}

// runQuery fetches o.pages consecutive pages with at most o.parallel in
// flight and returns them in order. Total is taken from the first page.
func runQuery(ctx context.Context, st *store.Store, o *queryOptions) (queryResult, error) {
	pages := o.pages
	if pages < 1 {
		pages = 1
	}
	results := make([][]store.Entry, pages)
	totals := make([]int, pages)

	g, gctx := errgroup.WithContext(ctx)
	if o.parallel > 0 {
		g.SetLimit(o.parallel)
	}
	for i := 0; i < pages; i++ {
		i := i
		g.Go(func() error {
			qo := &store.QueryOptions{Where: o.where, HTTPMethodOverride: o.override}
			if len(o.orderBy) > 0 {
				qo.Sort = expr.Literal(o.orderBy)
			}
			if o.count >= 0 {
				count := o.count
				qo.Count = &count
			}
			start := o.start + i*max(o.count, 0)
			if start > 0 {
				qo.Start = &start
			}
			h := st.Query(gctx, "", qo)
			items, err := h.Wait(gctx)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			results[i] = items
			totals[i] = h.Total()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return queryResult{}, err
	}

	out := queryResult{Total: totals[0]}
	for _, items := range results {
		out.Items = append(out.Items, items...)
	}
	return out, nil
}

func newPutCommand(root *rootOptions) *cobra.Command {
	var (
		data      string
		id        string
		version   string
		entity    string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "put KIND",
		Short: "Create an entry, or update one with --overwrite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := store.Entry{}
			if data != "" {
				if err := json.Unmarshal([]byte(data), &entry); err != nil {
					return fmt.Errorf("decode --data: %w", err)
				}
			}
			if overwrite && id == "" {
				return errors.New("--overwrite requires --id")
			}
			return withSession(cmd, root, func(ctx context.Context, s *session) error {
				st, err := s.newStore(args[0], nil)
				if err != nil {
					return err
				}
				saved, err := st.Put(ctx, entry, &store.PutOptions{
					ID:        id,
					Entity:    entity,
					Version:   version,
					Overwrite: overwrite,
				}).Wait(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), saved)
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&data, "data", "d", "", "Entry as a JSON object.")
	fs.StringVar(&id, "id", "", "Identity of the entry.")
	fs.StringVar(&version, "version", "", "Concurrency token sent as If-Match.")
	fs.StringVar(&entity, "entity", "", "Entity type name stamped on the entry.")
	fs.BoolVar(&overwrite, "overwrite", false, "Update the entry addressed by --id.")
	return cmd
}
