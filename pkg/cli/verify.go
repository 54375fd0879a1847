package cli

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/pillbox/pkg/cli/internal/output"
	"github.com/getmockd/pillbox/pkg/codec"
	"github.com/getmockd/pillbox/pkg/fixture"
)

// VerifyResult is the outcome for one stored file.
type VerifyResult struct {
	Key   string `json:"key"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// VerifyOutput is the JSON form of a verify run.
type VerifyOutput struct {
	Checked int            `json:"checked"`
	Failed  int            `json:"failed"`
	Skipped int            `json:"skipped"`
	Results []VerifyResult `json:"results"`
}

func newVerifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every fixture decodes",
		Long: `Decode every fixture file in the store, whatever its format, and check
it against the fixture schema and naming rules. Files without a fixture
extension and files in subdirectories are skipped.

Exits non-zero if any fixture fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := g.openStore(cmd)
			if err != nil {
				return err
			}
			keys, err := store.Bucket().List(cmd.Context(), "")
			if err != nil {
				return err
			}

			var out VerifyOutput
			for _, key := range keys {
				if store.Prefix() != "" && !strings.HasPrefix(key, store.Prefix()+".") {
					continue
				}
				// Nested directories hold other tests' fixtures.
				if strings.Contains(key, "/") {
					out.Skipped++
					continue
				}
				if _, ok := codec.ByExtension(path.Ext(key)); !ok {
					out.Skipped++
					continue
				}
				out.Checked++
				res := VerifyResult{Key: key, OK: true}
				if err := verifyOne(cmd, store, key); err != nil {
					res.OK = false
					res.Error = err.Error()
					out.Failed++
				}
				out.Results = append(out.Results, res)
			}

			w := cmd.OutOrStdout()
			if err := g.printResult(w, out, func() {
				if out.Failed > 0 {
					tw := output.Table(w)
					fmt.Fprintln(tw, "KEY\tERROR")
					for _, r := range out.Results {
						if !r.OK {
							fmt.Fprintf(tw, "%s\t%s\n", r.Key, r.Error)
						}
					}
					_ = tw.Flush()
				}
				fmt.Fprintf(w, "%d fixtures checked, %d failed, %d skipped\n", out.Checked, out.Failed, out.Skipped)
			}); err != nil {
				return err
			}
			if out.Failed > 0 {
				return fmt.Errorf("%d of %d fixtures failed verification", out.Failed, out.Checked)
			}
			return nil
		},
	}
}

func verifyOne(cmd *cobra.Command, store *fixture.Store, key string) error {
	if _, ok := fixture.ParseKey(key, store.Prefix()); !ok {
		return fmt.Errorf("name does not match service.operation[.fingerprint]_N.ext")
	}
	_, err := readFixture(cmd, store, key)
	return err
}
