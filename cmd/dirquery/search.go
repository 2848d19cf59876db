package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/dirquery/internal/directory"
	"github.com/KilimcininKorOglu/dirquery/internal/ldap"
	"github.com/KilimcininKorOglu/dirquery/internal/query"
)

const defaultFilter = "(objectClass=*)"

// searchFlags are shared by search and count.
type searchFlags struct {
	base      string
	scope     string
	attrs     []string
	sort      []string
	pageSize  int
	skip      int
	take      int
	noPaging  bool
	timeLimit int
}

func (f *searchFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.base, "base", "b", "", "search base (default directory.baseDN)")
	fl.StringVarP(&f.scope, "scope", "s", "sub", "search scope (base|one|sub)")
	fl.IntVar(&f.pageSize, "page-size", 0, "entries per page (default query.defaultPageSize)")
	fl.IntVar(&f.skip, "skip", 0, "entries to skip")
	fl.IntVar(&f.take, "take", -1, "maximum entries to return")
	fl.BoolVar(&f.noPaging, "no-paging", false, "send a single request without the paged results control")
	fl.IntVar(&f.timeLimit, "time-limit", 0, "server time limit in seconds")
}

func parseScope(s string) (ldap.SearchScope, error) {
	switch strings.ToLower(s) {
	case "base":
		return ldap.ScopeBaseObject, nil
	case "one", "onelevel":
		return ldap.ScopeSingleLevel, nil
	case "sub", "subtree":
		return ldap.ScopeWholeSubtree, nil
	}
	return 0, fmt.Errorf("invalid scope %q: must be base, one or sub", s)
}

// parseSortKeys reads "attr" as ascending and "-attr" as descending.
func parseSortKeys(specs []string) []ldap.SortKey {
	keys := make([]ldap.SortKey, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if name, ok := strings.CutPrefix(spec, "-"); ok {
			keys = append(keys, ldap.SortKey{Attribute: name, Reverse: true})
			continue
		}
		keys = append(keys, ldap.SortKey{Attribute: strings.TrimPrefix(spec, "+")})
	}
	return keys
}

// options turns the flags into query options, falling back to the
// configured defaults.
func (f *searchFlags) options(o *rootOptions) ([]query.Option, error) {
	scope, err := parseScope(f.scope)
	if err != nil {
		return nil, err
	}
	if limit := o.cfg.Query.MaxPageSize; limit > 0 && f.pageSize > limit {
		return nil, fmt.Errorf("page size %d exceeds query.maxPageSize %d", f.pageSize, limit)
	}

	base := f.base
	if base == "" {
		base = o.cfg.Directory.BaseDN
	}

	opts := []query.Option{
		query.WithBaseDN(base),
		query.WithScope(scope),
		query.WithSkip(f.skip),
	}
	if len(f.attrs) > 0 {
		opts = append(opts, query.WithAttributes(f.attrs...))
	}
	if keys := parseSortKeys(f.sort); len(keys) > 0 {
		opts = append(opts, query.WithSort(keys...))
	}
	if f.pageSize > 0 {
		opts = append(opts, query.WithPageSize(f.pageSize))
	}
	if f.take >= 0 {
		opts = append(opts, query.WithTake(f.take))
	}
	if f.noPaging {
		opts = append(opts, query.WithoutPaging())
	}
	if f.timeLimit > 0 {
		opts = append(opts, query.WithTimeLimit(f.timeLimit))
	}
	return opts, nil
}

func filterArg(args []string) string {
	if len(args) == 0 {
		return defaultFilter
	}
	return args[0]
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

func newSearchCommand(root *rootOptions) *cobra.Command {
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search [filter]",
		Short: "Search the directory and print the matching entries",
		Long: `Search the directory with an RFC 4515 filter and print each entry.

Results are fetched page by page with the simple paged results control
unless --no-paging is given or --skip plus --take fit in one page.
Text output is LDIF; values that are not UTF-8 are base64 encoded.`,
		Example: `  dirquery search -b ou=people,dc=example,dc=com '(mail=*)' -a cn -a mail
  dirquery search --fixture people.yaml --sort -employeeNumber --take 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, root, flags, filterArg(args))
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVarP(&flags.attrs, "attrs", "a", nil, "attributes to return (default all)")
	cmd.Flags().StringSliceVar(&flags.sort, "sort", nil, "server-side sort keys; prefix with - for descending")
	return cmd
}

func runSearch(cmd *cobra.Command, root *rootOptions, flags *searchFlags, filter string) error {
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
	opts, err := query.NewListingOptions(filter, qopts...)
	if err != nil {
		return err
	}

	command := query.NewCommand(s.conn, opts,
		query.WithDefaultPageSize(root.cfg.Query.DefaultPageSize),
		query.WithLogger(root.logger),
		query.WithMetrics(s.metrics),
	)

	out := newPrinter(root.format, cmd.OutOrStdout())
	err = query.Each(ctx, command.Execute(ctx), func(l directory.Listing) error {
		return out.entry(l)
	})
	if err != nil {
		return err
	}
	for _, ref := range command.References() {
		out.reference(ref)
	}
	root.logger.Debug("search complete", "requests", command.Requests(), "entries", out.count)
	return out.flush()
}
