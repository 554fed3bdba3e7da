package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/checkpoint"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/committer"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/config"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/urfave/cli/v2"
)

func runCommit(c *cli.Context) error {
	rt, err := newRuntime(c, true)
	if err != nil {
		return err
	}
	defer rt.close()

	record, err := rt.committer.RunCycle(c.Context)
	if err != nil {
		var unavailable *committer.StoreUnavailableError
		if errors.As(err, &unavailable) {
			rt.logger.Sugar().Errorw("Commit left pending; rerun commit to retry without rebuilding",
				"root", unavailable.Root.String(),
				"attempts", unavailable.Attempts,
			)
		}
		return err
	}

	printRecordSummary(c.App.Writer, record)
	return nil
}

func runProve(c *cli.Context) error {
	rt, err := newRuntime(c, false)
	if err != nil {
		return err
	}
	defer rt.close()

	result, err := rt.committer.Prove(c.Uint64("sequence"), c.String("path"))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runVerify(c *cli.Context) error {
	rt, err := newRuntime(c, false)
	if err != nil {
		return err
	}
	defer rt.close()

	sequence := c.Uint64("sequence")
	path := c.String("path")

	if path == "" {
		record, err := rt.store.LoadCheckpoint(sequence)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: sequence %d", committer.ErrCheckpointNotFound, sequence)
		}
		h, err := merkle.HasherByName(record.Metadata.HashAlgorithm)
		if err != nil {
			return err
		}
		if err := record.VerifyAll(h); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "checkpoint %d: all %d leaves verified against %s\n",
			record.Sequence, len(record.Leaves), record.Root)
		return nil
	}

	var result *committer.InclusionProof
	if c.Bool("remote") {
		result, err = rt.committer.VerifyRemote(c.Context, sequence, path)
	} else {
		result, err = rt.committer.Prove(sequence, path)
	}
	if err != nil {
		return err
	}

	printVerification(c.App.Writer, path, result)
	if !result.LocalValid {
		return cli.Exit("verification failed", 1)
	}
	return nil
}

func runDiff(c *cli.Context) error {
	rt, err := newRuntime(c, false)
	if err != nil {
		return err
	}
	defer rt.close()

	diff, err := rt.committer.Diff(c.Uint64("from"), c.Uint64("to"))
	if err != nil {
		return err
	}

	printDiff(c.App.Writer, c.Uint64("from"), c.Uint64("to"), diff)
	return nil
}

func runList(c *cli.Context) error {
	rt, err := newRuntime(c, false)
	if err != nil {
		return err
	}
	defer rt.close()

	records, err := rt.store.ListCheckpoints()
	if err != nil {
		return err
	}
	printList(c.App.Writer, records)
	return nil
}

func runExport(c *cli.Context) error {
	rt, err := newRuntime(c, false)
	if err != nil {
		return err
	}
	defer rt.close()

	sequence := c.Uint64("sequence")
	record, err := rt.store.LoadCheckpoint(sequence)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: sequence %d", committer.ErrCheckpointNotFound, sequence)
	}

	if out := c.String("out"); out != "" {
		if err := checkpoint.ExportFile(out, record); err != nil {
			return err
		}
		rt.logger.Sugar().Infow("Checkpoint exported", "sequence", sequence, "path", out)
		return nil
	}

	format, err := checkpoint.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	return checkpoint.Export(c.App.Writer, record, format)
}

func runInitConfig(c *cli.Context) error {
	out := c.String("out")
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("%s already exists", out)
	}

	if err := config.WriteConfigFile(out, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", out)
	return nil
}
