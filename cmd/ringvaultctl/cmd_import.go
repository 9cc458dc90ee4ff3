package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ringvault/ringvault/internal/clock"
	"github.com/ringvault/ringvault/internal/config"
	"github.com/ringvault/ringvault/internal/importer"
	"github.com/ringvault/ringvault/internal/ingest/qring"
	"github.com/ringvault/ringvault/internal/reconcile"
	"github.com/ringvault/ringvault/internal/storage"
)

var (
	importConfig string
	importDryRun bool

	importCmd = &cobra.Command{
		Use:   "import [export dir]",
		Short: "Replay export files directly into the snapshot file",
		Long: `Replays export files through the same reconciliation path as the
upload endpoint, writing to the configured snapshot file. Stop the server
first: it does not watch the file and would overwrite the result.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
)

func init() {
	importCmd.Flags().StringVar(&importConfig, "config", "", "server config file (defaults plus env when empty)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "report counts without writing")
}

func runImport(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("export path %s does not exist or is not a directory", dir)
	}

	cfg, err := config.Load(importConfig)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	file, err := storage.NewSnapshotFile(cfg.SnapshotPath(), cfg.Storage.Compress)
	if err != nil {
		return err
	}
	defer file.Close()

	norm := clock.NewNormalizer(clock.System{})
	engine := reconcile.NewEngine(norm)
	store := storage.NewStore(file, clock.System{}, log)
	if err := store.Load(engine); err != nil {
		return fmt.Errorf("restoring snapshot: %w", err)
	}

	if importDryRun {
		log.Info().Msg("DRY RUN mode, nothing will be written")
	}

	imp := importer.New(qring.NewProvider(store, engine, norm, log), log, importDryRun)
	stats, err := imp.Import(cmd.Context(), dir)
	if stats != nil {
		printImportStats(cmd, stats)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	log.Info().Str("path", cfg.SnapshotPath()).Msg("import complete")
	return nil
}

func printImportStats(cmd *cobra.Command, stats *importer.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Import Summary ===")
	fmt.Fprintf(out, "  Files processed:  %d\n", stats.FilesProcessed)
	fmt.Fprintf(out, "  Files skipped:    %d (empty)\n", stats.FilesSkipped)
	fmt.Fprintf(out, "  Files errored:    %d\n", stats.FilesErrored)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Batches:          %d\n", stats.Batches)
	fmt.Fprintf(out, "  Received:         %d\n", stats.Received)
	fmt.Fprintf(out, "  New:              %d\n", stats.New)
	fmt.Fprintf(out, "  Updated:          %d\n", stats.Updated)
	fmt.Fprintf(out, "  Duplicate:        %d\n", stats.Duplicate)
	fmt.Fprintf(out, "  Future:           %d\n", stats.Future)
	fmt.Fprintf(out, "  Skipped:          %d\n", stats.Skipped)
	printPerKind(out, stats.PerKind)
	printRejected(out, stats.RejectedTypes)
	fmt.Fprintln(out)
}

func printPerKind(out io.Writer, perKind map[string]int) {
	if len(perKind) == 0 {
		return
	}
	kinds := make([]string, 0, len(perKind))
	for k := range perKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Fprintln(out, "\n  Per kind:")
	for _, k := range kinds {
		fmt.Fprintf(out, "    %-20s %d\n", k, perKind[k])
	}
}

func printRejected(out io.Writer, rejected []string) {
	if len(rejected) == 0 {
		return
	}
	fmt.Fprintln(out, "\n  Rejected types (unsupported):")
	for _, r := range rejected {
		fmt.Fprintf(out, "    - %s\n", r)
	}
}
