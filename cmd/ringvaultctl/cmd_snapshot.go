package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/storage"
)

var (
	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Work with snapshot files",
	}
	snapshotInspectCmd = &cobra.Command{
		Use:   "inspect [file]",
		Short: "Print record counts and last update per kind",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshotInspect,
	}
)

func runSnapshotInspect(cmd *cobra.Command, args []string) error {
	file, err := storage.NewSnapshotFile(args[0], false)
	if err != nil {
		return err
	}
	defer file.Close()

	snap, err := file.Load()
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	if snap == nil {
		return fmt.Errorf("%s does not exist", args[0])
	}

	counts := snap.Counts()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tRECORDS\tLAST UPDATE")
	total := 0
	for _, k := range models.AllKinds() {
		last := snap.LastUpdate[k]
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", k, counts[k], last)
		total += counts[k]
	}
	fmt.Fprintf(w, "total\t%d\t\n", total)
	return w.Flush()
}
