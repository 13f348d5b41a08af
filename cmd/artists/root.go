package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/artists-registry/constants"
	"github.com/joseph-ayodele/artists-registry/internal/app"
	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/export"
	"github.com/joseph-ayodele/artists-registry/internal/extract"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

type cli struct {
	verbose bool
	cfg     *common.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "artists",
		Short:         "Extract artist profiles from PDF, Word and image documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := common.LoadConfig()
			if err != nil {
				return err
			}
			if c.verbose {
				cfg.Log.Level = "debug"
			}
			c.cfg = cfg
			c.logger = common.NewLoggerWriter(cmd.ErrOrStderr(), "artists", cfg.Log)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(c.extractCmd(), c.batchCmd(), c.serveCmd())
	return root
}

func (c *cli) extractCmd() *cobra.Command {
	var fileType string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract one document and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if fileType == "" {
				fileType = filepath.Ext(path)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pipe := app.NewPipeline(c.cfg, nil, c.logger)
			res, err := pipe.Orchestrator.Extract(ctx, path, constants.NormalizeExt(fileType))
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&fileType, "type", "", "file type override (pdf, docx, doc, jpg, png...)")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "extraction timeout")
	return cmd
}

func writeResult(w io.Writer, res extract.ExtractionResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func (c *cli) batchCmd() *cobra.Command {
	var out string
	var perFile time.Duration
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Extract every supported document under a directory into an XLSX summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if out == "" {
				out = filepath.Join(filepath.Dir(filepath.Clean(dir)), "results.xlsx")
			}
			files, err := supportedFiles(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no supported documents under %s", dir)
			}

			pipe := app.NewPipeline(c.cfg, nil, c.logger)
			rows := make([]export.BatchRow, 0, len(files))
			failed := 0
			for _, f := range files {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), perFile)
				res, xerr := pipe.Orchestrator.Extract(ctx, f, constants.NormalizeExt(filepath.Ext(f)))
				cancel()
				rel, _ := filepath.Rel(dir, f)
				if xerr != nil {
					failed++
					c.logger.Warn("batch file failed", "file", rel, "error", xerr)
				}
				rows = append(rows, export.BatchRow{File: rel, Result: res, Err: xerr})
			}

			data, err := export.BatchXLSX(rows)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return common.WrapError(err, "write batch summary")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d files (%d failed), summary written to %s\n", len(files), failed, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output XLSX path (default <parent of dir>/results.xlsx)")
	cmd.Flags().DurationVar(&perFile, "timeout", 3*time.Minute, "per-file extraction timeout")
	return cmd
}

// supportedFiles walks dir and returns supported documents in lexical order.
func supportedFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if constants.IsSupported(constants.NormalizeExt(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, common.WrapError(err, "walk "+dir)
	}
	sort.Strings(files)
	return files, nil
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Serve(ctx, c.cfg, c.logger)
		},
	}
}
