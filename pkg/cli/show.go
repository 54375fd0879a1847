package cli

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/pillbox/pkg/codec"
	"github.com/getmockd/pillbox/pkg/fixture"
)

// ShowOutput is the JSON form of a shown fixture.
type ShowOutput struct {
	Key        string `json:"key"`
	StatusCode int    `json:"status_code"`
	Data       any    `json:"data"`
}

func newShowCmd(g *globalFlags) *cobra.Command {
	var as string

	cmd := &cobra.Command{
		Use:   "show <key> | show <service.operation[.fingerprint]> <index>",
		Short: "Print one fixture",
		Long: `Print a fixture decoded from its stored format.

The fixture is named either by its key or by identity and index:

  pillbox show ec2.DescribeAddresses_1.json
  pillbox show ec2.DescribeAddresses 2 --as yaml`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := g.openStore(cmd)
			if err != nil {
				return err
			}
			key := args[0]
			if len(args) == 2 {
				key, err = keyFor(store, args[0], args[1])
				if err != nil {
					return err
				}
			}
			rec, err := readFixture(cmd, store, key)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if g.jsonOutput {
				data, err := codec.Tagged(rec.Data)
				if err != nil {
					return err
				}
				return g.printResult(w, ShowOutput{Key: key, StatusCode: rec.StatusCode, Data: data}, nil)
			}
			target := store.Format()
			if as != "" {
				if target, err = codec.Lookup(as); err != nil {
					return err
				}
			}
			if target.Name() == codec.FormatGob {
				return fmt.Errorf("cannot print %s fixtures; use --as json or yaml", codec.FormatGob)
			}
			out, err := fixture.Encode(target, rec)
			if err != nil {
				return err
			}
			_, err = w.Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "Print in this format instead of the stored one (json or yaml)")
	return cmd
}

// keyFor builds a key from a dotted identity and an index.
func keyFor(store *fixture.Store, identity, index string) (string, error) {
	n, err := strconv.Atoi(index)
	if err != nil || n < 1 {
		return "", fmt.Errorf("index must be a positive integer, got %q", index)
	}
	parts := strings.Split(identity, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("identity must be service.operation or service.operation.fingerprint, got %q", identity)
	}
	id := fixture.Identity{Service: parts[0], Operation: parts[1]}
	if len(parts) == 3 {
		id.Fingerprint = parts[2]
	}
	if err := id.Validate(); err != nil {
		return "", err
	}
	return store.Key(id, n), nil
}

// readFixture decodes key with the codec its extension names.
func readFixture(cmd *cobra.Command, store *fixture.Store, key string) (fixture.Record, error) {
	c, ok := codec.ByExtension(path.Ext(key))
	if !ok {
		return fixture.Record{}, fmt.Errorf("%s: unknown fixture extension", key)
	}
	raw, err := store.Bucket().Read(cmd.Context(), key)
	if err != nil {
		return fixture.Record{}, fmt.Errorf("%s: %w", key, err)
	}
	return fixture.Decode(c, key, raw)
}
