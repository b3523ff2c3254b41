package stemma

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/urfave/cli/v2"
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
	"gitlab.com/stemma-project/stemma/internal/stemma/repairstore"
)

func databasePathFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "db-path",
		Usage: "Path to the repair payload database, overrides the configuration",
	}
}

// databasePath resolves the database directory from the db-path flag or,
// failing that, the configured repair store path.
func databasePath(ctx *cli.Context) (string, error) {
	if path := ctx.String("db-path"); path != "" {
		return path, nil
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return "", err
	}
	if cfg.RepairStore.Path == "" {
		return "", fmt.Errorf("no database path given, use --db-path or configure repair_store.path")
	}
	return cfg.RepairStore.Path, nil
}

func newStoreCmd() *cli.Command {
	return &cli.Command{
		Name:        "store",
		Usage:       "Inspect a repair payload database",
		UsageText:   "stemma store <subcommand>",
		Description: "This command allows you to inspect the repair payload store. It provides subcommands to list and get payloads from the database.",
		Subcommands: []*cli.Command{
			newStoreListCmd(),
			newStoreGetCmd(),
		},
	}
}

func openDatabase(path string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithReadOnly(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func newStoreListCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all stored revisions, example usage: stemma store list --db-path <db-path>",
		Flags: []cli.Flag{
			databasePathFlag(),
		},
		Action: func(ctx *cli.Context) (returnErr error) {
			if ctx.NArg() > 0 {
				return fmt.Errorf("no arguments required, use -h for help")
			}

			path, err := databasePath(ctx)
			if err != nil {
				return err
			}
			db, err := openDatabase(path)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					returnErr = errors.Join(returnErr, fmt.Errorf("closing database: %w", err))
				}
			}()

			return db.View(func(txn *badger.Txn) error {
				opts := badger.DefaultIteratorOptions
				opts.Prefix = []byte(repairstore.KeyPrefix)

				it := txn.NewIterator(opts)
				defer it.Close()

				for it.Rewind(); it.Valid(); it.Next() {
					item := it.Item()
					rev, err := parseRevisionKey(item.Key())
					if err != nil {
						return err
					}
					fmt.Fprintf(ctx.App.Writer, "%s (%d bytes)\n", formatRevision(rev), item.ValueSize())
				}
				return nil
			})
		},
	}
}

func newStoreGetCmd() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get the payload of a revision, example usage: stemma store get --db-path <db-path> <session>:<ordinal>",
		ArgsUsage: "<revision>",
		Flags: []cli.Flag{
			databasePathFlag(),
		},
		Action: func(ctx *cli.Context) (returnErr error) {
			if ctx.NArg() != 1 {
				return fmt.Errorf("exactly one argument required")
			}

			rev, err := parseRevision(ctx.Args().First())
			if err != nil {
				return err
			}

			path, err := databasePath(ctx)
			if err != nil {
				return err
			}
			db, err := openDatabase(path)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					returnErr = errors.Join(returnErr, fmt.Errorf("closing database: %w", err))
				}
			}()

			return db.View(func(txn *badger.Txn) error {
				item, err := txn.Get(repairstore.RevisionKey(rev))
				if err != nil {
					return fmt.Errorf("get payload: %w", err)
				}
				return item.Value(func(value []byte) error {
					fmt.Fprintf(ctx.App.Writer, "%s\n", value)
					return nil
				})
			})
		},
	}
}

// parseRevisionKey decodes a database key back into the revision it stores.
func parseRevisionKey(key []byte) (graph.RevisionTag, error) {
	raw := key[len(repairstore.KeyPrefix):]
	if len(raw) != 16+8 {
		return graph.RevisionTag{}, fmt.Errorf("malformed key %q", key)
	}

	var rev graph.RevisionTag
	copy(rev.Session[:], raw[:16])
	rev.Ordinal = binary.BigEndian.Uint64(raw[16:])
	return rev, nil
}

// parseRevision parses "<session-hex>:<ordinal>" with the full 32 hex digit
// session identifier.
func parseRevision(arg string) (graph.RevisionTag, error) {
	session, ordinal, ok := strings.Cut(arg, ":")
	if !ok {
		return graph.RevisionTag{}, fmt.Errorf("malformed revision %q, expected <session>:<ordinal>", arg)
	}

	raw, err := hex.DecodeString(session)
	if err != nil || len(raw) != 16 {
		return graph.RevisionTag{}, fmt.Errorf("malformed session identifier %q", session)
	}

	var rev graph.RevisionTag
	copy(rev.Session[:], raw)
	if rev.Ordinal, err = strconv.ParseUint(ordinal, 10, 64); err != nil {
		return graph.RevisionTag{}, fmt.Errorf("malformed ordinal %q: %w", ordinal, err)
	}
	return rev, nil
}

// formatRevision renders the revision with its full session identifier so
// that the output can be passed back to the get subcommand.
func formatRevision(rev graph.RevisionTag) string {
	return fmt.Sprintf("%s:%d", hex.EncodeToString(rev.Session[:]), rev.Ordinal)
}
