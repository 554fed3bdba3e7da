package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/config"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a TOML config file; flags override its values",
			EnvVars: []string{config.EnvCheckpointConfig},
		},
		&cli.StringFlag{
			Name:    "hash-algorithm",
			Usage:   fmt.Sprintf("Leaf and node hash: %v", merkle.SupportedHashers()),
			EnvVars: []string{config.EnvCheckpointHashAlgorithm},
		},
		&cli.StringFlag{
			Name:    "persistence-type",
			Usage:   "Local checkpoint store: memory, badger or redis",
			EnvVars: []string{config.EnvCheckpointPersistenceType},
		},
		&cli.StringFlag{
			Name:    "data-path",
			Usage:   "Badger data directory",
			EnvVars: []string{config.EnvCheckpointDataPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis host:port",
			EnvVars: []string{config.EnvCheckpointRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{config.EnvCheckpointRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number",
			EnvVars: []string{config.EnvCheckpointRedisDB},
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Usage:   "Prefix for every Redis key",
			EnvVars: []string{config.EnvCheckpointRedisKeyPrefix},
		},
		&cli.StringFlag{
			Name:    "authority-type",
			Usage:   "Authoritative store: memory or contract",
			EnvVars: []string{config.EnvCheckpointAuthorityType},
		},
		&cli.StringFlag{
			Name:    "rpc-url",
			Aliases: []string{"rpc"},
			Usage:   "Ethereum RPC endpoint URL",
			EnvVars: []string{config.EnvCheckpointRPCURL},
		},
		&cli.Uint64Flag{
			Name:    "chain-id",
			Aliases: []string{"chain"},
			Usage:   fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
			EnvVars: []string{config.EnvCheckpointChainID},
		},
		&cli.StringFlag{
			Name:    "registry-address",
			Usage:   "CheckpointRegistry contract address",
			EnvVars: []string{config.EnvCheckpointRegistryAddress},
		},
		&cli.StringFlag{
			Name:    "private-key",
			Usage:   "ECDSA private key (hex) that signs submissions",
			EnvVars: []string{config.EnvCheckpointPrivateKey},
		},
		&cli.IntFlag{
			Name:    "max-attempts",
			Usage:   "Submission attempts per commit",
			EnvVars: []string{config.EnvCheckpointMaxAttempts},
		},
		&cli.DurationFlag{
			Name:    "initial-backoff",
			Usage:   "Delay after the first failed submission",
			EnvVars: []string{config.EnvCheckpointInitialBackoff},
		},
		&cli.DurationFlag{
			Name:    "max-backoff",
			Usage:   "Upper bound for the delay between submissions",
			EnvVars: []string{config.EnvCheckpointMaxBackoff},
		},
		&cli.Float64Flag{
			Name:    "submits-per-second",
			Usage:   "Rate limit for submissions; 0 disables",
			EnvVars: []string{config.EnvCheckpointSubmitsPerSec},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "Enable debug logging",
			EnvVars: []string{config.EnvCheckpointDebug},
		},
	}
}

func newApp() *cli.App {
	sequenceFlag := &cli.Uint64Flag{
		Name:     "sequence",
		Aliases:  []string{"s"},
		Usage:    "Checkpoint sequence reference",
		Required: true,
	}
	pathFlag := &cli.StringFlag{
		Name:     "path",
		Aliases:  []string{"p"},
		Usage:    "Logical path of the leaf",
		Required: true,
	}

	return &cli.App{
		Name:  "checkpointer",
		Usage: "Merkle checkpoint commitment tool",
		Description: `Commits snapshots of a directory to a single merkle root, publishes the root
to an authoritative store and answers inclusion questions about past checkpoints.`,
		Version: "1.0.0",
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			{
				Name:  "commit",
				Usage: "Snapshot the source directory and commit its root",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "source-dir",
						Aliases: []string{"d"},
						Usage:   "Directory to checkpoint",
						EnvVars: []string{config.EnvCheckpointSourceDir},
					},
					&cli.BoolFlag{
						Name:    "include-hidden",
						Usage:   "Include dot files and directories",
						EnvVars: []string{config.EnvCheckpointIncludeHidden},
					},
				},
				Action: runCommit,
			},
			{
				Name:   "prove",
				Usage:  "Print the inclusion proof for a leaf",
				Flags:  []cli.Flag{sequenceFlag, pathFlag},
				Action: runProve,
			},
			{
				Name:  "verify",
				Usage: "Replay inclusion checks from the local record",
				Flags: []cli.Flag{
					sequenceFlag,
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"p"},
						Usage:   "Logical path of the leaf; every leaf when empty",
					},
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Also ask the authoritative store's verifier",
					},
				},
				Action: runVerify,
			},
			{
				Name:  "diff",
				Usage: "Compare two checkpoints",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "from", Usage: "Older sequence", Required: true},
					&cli.Uint64Flag{Name: "to", Usage: "Newer sequence", Required: true},
				},
				Action: runDiff,
			},
			{
				Name:   "list",
				Usage:  "List stored checkpoints",
				Action: runList,
			},
			{
				Name:  "export",
				Usage: "Write a checkpoint record as JSON or YAML",
				Flags: []cli.Flag{
					sequenceFlag,
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file; format follows the extension. Stdout when empty",
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "json or yaml when writing to stdout",
						Value: "json",
					},
				},
				Action: runExport,
			},
			{
				Name:  "init-config",
				Usage: "Write a default config file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Destination path",
						Value:   "checkpointer.toml",
					},
				},
				Action: runInitConfig,
			},
		},
	}
}
