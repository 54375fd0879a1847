package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/pillbox/internal/storage"
	"github.com/getmockd/pillbox/pkg/cli/internal/output"
	"github.com/getmockd/pillbox/pkg/codec"
	"github.com/getmockd/pillbox/pkg/fixture"
)

// ConvertOutput is the JSON form of a convert run.
type ConvertOutput struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Converted []string `json:"converted"`
	Skipped   []string `json:"skipped,omitempty"`
	Deleted   int      `json:"deleted"`
}

func newConvertCmd(g *globalFlags) *cobra.Command {
	var (
		to     string
		force  bool
		remove bool
	)

	cmd := &cobra.Command{
		Use:   "convert --to <format>",
		Short: "Rewrite fixtures in another format",
		Long: `Rewrite every fixture of the configured format (--format, default json)
in the target format, next to the original. Indices are kept, so replay
order does not change.

  pillbox convert --dir testdata/fixtures --to yaml --delete`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := codec.Lookup(to)
			if err != nil {
				return err
			}
			store, _, err := g.openStore(cmd)
			if err != nil {
				return err
			}
			if target.Name() == store.Format().Name() {
				return fmt.Errorf("fixtures are already %s", target.Name())
			}
			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			bucket := store.Bucket()
			w := cmd.OutOrStdout()
			out := ConvertOutput{From: store.Format().Name(), To: target.Name(), Converted: []string{}}
			for _, e := range entries {
				rec, err := store.Load(ctx, e.Key)
				if err != nil {
					return err
				}
				data, err := fixture.Encode(target, rec)
				if err != nil {
					return fmt.Errorf("encode %s: %w", e.Key, err)
				}
				newKey := strings.TrimSuffix(e.Key, "."+store.Format().Extension()) + "." + target.Extension()

				err = bucket.Create(ctx, newKey, data)
				if errors.Is(err, storage.ErrExists) && force {
					if err = bucket.Delete(ctx, newKey); err == nil {
						err = bucket.Create(ctx, newKey, data)
					}
				}
				if errors.Is(err, storage.ErrExists) {
					out.Skipped = append(out.Skipped, newKey)
					if !g.jsonOutput {
						output.Warn(cmd.ErrOrStderr(), "%s exists, skipping (use --force to overwrite)", newKey)
					}
					continue
				}
				if err != nil {
					return err
				}
				out.Converted = append(out.Converted, newKey)

				if remove {
					if err := bucket.Delete(ctx, e.Key); err != nil {
						return err
					}
					out.Deleted++
				}
			}

			return g.printResult(w, out, func() {
				fmt.Fprintf(w, "Converted %d fixtures from %s to %s", len(out.Converted), out.From, out.To)
				if remove {
					fmt.Fprintf(w, ", deleted %d originals", out.Deleted)
				}
				fmt.Fprintln(w)
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Target format: json, yaml or gob")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite fixtures that already exist in the target format")
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete originals after converting")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
