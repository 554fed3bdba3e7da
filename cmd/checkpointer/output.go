package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/checkpoint"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/committer"
	"github.com/fatih/color"
)

var (
	added    = color.New(color.FgGreen)
	removed  = color.New(color.FgRed)
	modified = color.New(color.FgYellow)
	faint    = color.New(color.Faint)
	ok       = color.New(color.FgGreen, color.Bold)
	failed   = color.New(color.FgRed, color.Bold)
)

func printRecordSummary(w io.Writer, record *checkpoint.CheckpointRecord) {
	fmt.Fprintf(w, "sequence:  %d\n", record.Sequence)
	fmt.Fprintf(w, "root:      %s\n", record.Root)
	fmt.Fprintf(w, "leaves:    %d\n", record.Metadata.LeafCount)
	fmt.Fprintf(w, "bytes:     %d\n", record.Metadata.TotalBytes)
	fmt.Fprintf(w, "hash:      %s\n", record.Metadata.HashAlgorithm)
	fmt.Fprintf(w, "timestamp: %s\n", record.Timestamp.Format(time.RFC3339))
}

func printDiff(w io.Writer, from, to uint64, diff *checkpoint.DiffResult) {
	faint.Fprintf(w, "checkpoint %d -> %d\n", from, to)
	for _, path := range diff.Added {
		added.Fprintf(w, "+ %s\n", path)
	}
	for _, path := range diff.Removed {
		removed.Fprintf(w, "- %s\n", path)
	}
	for _, path := range diff.Modified {
		modified.Fprintf(w, "~ %s\n", path)
	}
	faint.Fprintf(w, "%d added, %d removed, %d modified, %d unchanged\n",
		len(diff.Added), len(diff.Removed), len(diff.Modified), diff.UnchangedCount)
}

func printList(w io.Writer, records []*checkpoint.CheckpointRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQUENCE\tROOT\tLEAVES\tBYTES\tTIMESTAMP")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n",
			r.Sequence, r.Root, r.Metadata.LeafCount, r.Metadata.TotalBytes, r.Timestamp.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func printVerification(w io.Writer, path string, result *committer.InclusionProof) {
	verdict := func(valid bool) string {
		if valid {
			return ok.Sprint("valid")
		}
		return failed.Sprint("INVALID")
	}

	fmt.Fprintf(w, "%s in checkpoint %d (%s)\n", path, result.Sequence, result.Root)
	fmt.Fprintf(w, "  local:  %s\n", verdict(result.LocalValid))
	if result.RemoteValid != nil {
		fmt.Fprintf(w, "  remote: %s\n", verdict(*result.RemoteValid))
	}
}
