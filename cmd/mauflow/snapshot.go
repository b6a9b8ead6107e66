package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hylla/mauflow/internal/adapters/storage/sqlite"
	"github.com/hylla/mauflow/internal/app"
)

func (c *cli) exportCommand() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every collaboration collection as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, "export", func(ctx context.Context, s *session) error {
				return runExport(ctx, s.engine, outPath, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func (c *cli) importCommand() *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace every collaboration collection from a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" {
				return errors.New("--in is required")
			}
			return c.withSession(cmd, "import", func(ctx context.Context, s *session) error {
				return runImport(ctx, s.engine, inPath, cmd.InOrStdin())
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file ('-' for stdin)")
	return cmd
}

// runExport encodes a snapshot to outPath, or stdout for "-".
func runExport(ctx context.Context, engine *app.Engine, outPath string, stdout io.Writer) error {
	snap, err := engine.ExportSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// runImport decodes a snapshot from inPath, or stdin for "-", and replaces stored state.
func runImport(ctx context.Context, engine *app.Engine, inPath string, stdin io.Reader) error {
	var (
		content []byte
		err     error
	)
	if inPath == "-" {
		content, err = io.ReadAll(stdin)
	} else {
		content, err = os.ReadFile(inPath)
	}
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return fmt.Errorf("decode snapshot json: %w", err)
	}
	if err := engine.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	encoded = append(encoded, '\n')
	_, err = w.Write(encoded)
	return err
}

func (c *cli) storageCommand() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "List stored keys with their size and last write time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, "storage", func(ctx context.Context, s *session) error {
				repo, ok := s.store.(*sqlite.Repository)
				if !ok {
					return errors.New("storage listing needs the sqlite store; drop --ephemeral")
				}
				items, err := repo.Items(ctx, prefix)
				if err != nil {
					return err
				}
				renderStorageItems(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list keys with this prefix")
	return cmd
}
