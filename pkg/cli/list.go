package cli

import (
	"fmt"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/getmockd/pillbox/pkg/cli/internal/output"
	"github.com/getmockd/pillbox/pkg/fixture"
)

// ListEntry is one fixture in list output.
type ListEntry struct {
	Key         string `json:"key"`
	Service     string `json:"service"`
	Operation   string `json:"operation"`
	Index       int    `json:"index"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Format      string `json:"format"`
}

func newListCmd(g *globalFlags) *cobra.Command {
	var service, operation string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recorded fixtures",
		Long: `List the fixtures in the configured store, grouped by service.

Service and operation filters are glob patterns:

  pillbox list --service 's3' --operation 'Get*'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range []string{service, operation} {
				if !doublestar.ValidatePattern(p) {
					return fmt.Errorf("invalid pattern %q", p)
				}
			}
			store, cfg, err := g.openStore(cmd)
			if err != nil {
				return err
			}
			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			out := make([]ListEntry, 0, len(entries))
			for _, e := range entries {
				if !matchGlob(service, e.Identity.Service) || !matchGlob(operation, e.Identity.Operation) {
					continue
				}
				out = append(out, toListEntry(e))
			}

			w := cmd.OutOrStdout()
			return g.printResult(w, out, func() {
				if len(out) == 0 {
					fmt.Fprintf(w, "No %s fixtures found in %s\n", cfg.Format, location(cfg.Dir, store))
					return
				}
				title := cases.Title(language.English)
				for i, group := range groupByService(out) {
					if i > 0 {
						fmt.Fprintln(w)
					}
					fmt.Fprintf(w, "%s (%d):\n", title.String(group[0].Service), len(group))
					tw := output.Table(w)
					fmt.Fprintln(tw, "  OPERATION\tINDEX\tFINGERPRINT\tKEY")
					for _, e := range group {
						fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", e.Operation, strconv.Itoa(e.Index), shortFingerprint(e.Fingerprint), e.Key)
					}
					_ = tw.Flush()
				}
			})
		},
	}

	cmd.Flags().StringVarP(&service, "service", "s", "*", "Service glob")
	cmd.Flags().StringVarP(&operation, "operation", "o", "*", "Operation glob")
	return cmd
}

func matchGlob(pattern, value string) bool {
	ok, err := doublestar.Match(pattern, value)
	return err == nil && ok
}

func toListEntry(e fixture.Entry) ListEntry {
	return ListEntry{
		Key:         e.Key,
		Service:     e.Identity.Service,
		Operation:   e.Identity.Operation,
		Index:       e.Index,
		Fingerprint: e.Identity.Fingerprint,
		Format:      e.Format,
	}
}

// groupByService splits entries sorted by identity into runs sharing a
// service.
func groupByService(entries []ListEntry) [][]ListEntry {
	var groups [][]ListEntry
	for _, e := range entries {
		n := len(groups)
		if n > 0 && groups[n-1][0].Service == e.Service {
			groups[n-1] = append(groups[n-1], e)
			continue
		}
		groups = append(groups, []ListEntry{e})
	}
	return groups
}

func shortFingerprint(fp string) string {
	if fp == "" {
		return "-"
	}
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func location(dir string, store *fixture.Store) string {
	if d := store.Bucket().Driver(); d != "fs" {
		return string(d) + " store"
	}
	return dir
}
