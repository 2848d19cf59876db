package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/dirquery/internal/query"
)

func newCountCommand(root *rootOptions) *cobra.Command {
	flags := &searchFlags{}
	var long bool

	cmd := &cobra.Command{
		Use:   "count [filter]",
		Short: "Count the entries matching a filter",
		Long: `Count the entries matching a filter. Entries are paged through with
only the "1.1" attribute requested, so no values cross the wire.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			s, err := root.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			qopts, err := flags.options(root)
			if err != nil {
				return err
			}
			if long {
				qopts = append(qopts, query.WithLongCount())
			} else {
				qopts = append(qopts, query.WithCount())
			}
			opts, err := query.NewListingOptions(filterArg(args), qopts...)
			if err != nil {
				return err
			}

			command := query.NewCommand(s.conn, opts,
				query.WithDefaultPageSize(root.cfg.Query.DefaultPageSize),
				query.WithLogger(root.logger),
				query.WithMetrics(s.metrics),
			)

			var n int64
			if long {
				n, err = command.LongCount(ctx)
			} else {
				var c int
				c, err = command.Count(ctx)
				n = int64(c)
			}
			if err != nil {
				return err
			}

			if root.format == "json" {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "{\"count\": %d}\n", n)
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&long, "long", false, "count past the 32-bit limit")
	return cmd
}
