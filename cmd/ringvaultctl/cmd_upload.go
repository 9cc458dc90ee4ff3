package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ringvault/ringvault/internal/upload"
)

var (
	uploadServer      string
	uploadDryRun      bool
	uploadBatchSize   int
	uploadConcurrency int
	uploadRate        float64
	uploadStateDir    string

	uploadCmd = &cobra.Command{
		Use:   "upload [export dir]",
		Short: "Send companion app export files to a RingVault server",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpload,
	}
)

func init() {
	f := uploadCmd.Flags()
	f.StringVar(&uploadServer, "server", "http://localhost:5002", "RingVault server URL")
	f.BoolVar(&uploadDryRun, "dry-run", false, "parse and count files without sending")
	f.IntVar(&uploadBatchSize, "batch-size", 1000, "max records per request (0 sends each payload whole)")
	f.IntVar(&uploadConcurrency, "concurrency", 2, "kinds sent in parallel per file")
	f.Float64Var(&uploadRate, "rate", 10, "max requests per second (0 for unlimited)")
	f.StringVar(&uploadStateDir, "state-dir", "", "state database directory (default ~/.ringvault-upload)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("export path %s does not exist or is not a directory", dir)
	}

	stateDir := uploadStateDir
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("finding home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".ringvault-upload")
	}

	state, err := upload.OpenStateDB(stateDir)
	if err != nil {
		return err
	}
	defer state.Close()

	client := upload.NewClient(uploadServer)
	if uploadDryRun {
		log.Info().Msg("DRY RUN mode, files will be parsed but not sent")
	} else if err := client.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("server %s not reachable: %w", uploadServer, err)
	}

	u := upload.New(client, state, dir, upload.Options{
		DryRun:      uploadDryRun,
		BatchSize:   uploadBatchSize,
		Concurrency: uploadConcurrency,
		Rate:        uploadRate,
	}, log)
	stats, err := u.Run(cmd.Context())
	if stats != nil {
		printUploadStats(cmd, stats)
	}
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	log.Info().Msg("upload complete")
	return nil
}

func printUploadStats(cmd *cobra.Command, stats *upload.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Upload Summary ===")
	fmt.Fprintf(out, "  Files total:      %d\n", stats.FilesTotal)
	fmt.Fprintf(out, "  Files uploaded:   %d\n", stats.FilesUploaded)
	fmt.Fprintf(out, "  Files skipped:    %d (already uploaded)\n", stats.FilesSkipped)
	fmt.Fprintf(out, "  Files errored:    %d\n", stats.FilesErrored)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Batches sent:     %d\n", stats.BatchesSent)
	fmt.Fprintf(out, "  Records sent:     %d\n", stats.RecordsSent)
	printPerKind(out, stats.PerKind)
	printRejected(out, stats.RejectedTypes)
	fmt.Fprintln(out)
}
