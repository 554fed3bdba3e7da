package directoryLeafSource

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/leafSource"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
	"go.uber.org/zap"
)

// DirectoryLeafSourceConfig configures a directory-backed leaf source
type DirectoryLeafSourceConfig struct {
	// Root is the directory whose regular files become leaves
	Root string
	// IncludeHidden includes files and directories whose name starts with "."
	IncludeHidden bool
}

// DirectoryLeafSource turns the regular files under a directory into leaves.
// Logical paths are slash-separated and relative to the root; leaves are ordered
// lexically by logical path.
type DirectoryLeafSource struct {
	config *DirectoryLeafSourceConfig
	logger *zap.Logger
}

func NewDirectoryLeafSource(cfg *DirectoryLeafSourceConfig, logger *zap.Logger) (*DirectoryLeafSource, error) {
	if cfg == nil || cfg.Root == "" {
		return nil, fmt.Errorf("directory leaf source requires a root directory")
	}
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat leaf root %s: %w", cfg.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("leaf root %s is not a directory", cfg.Root)
	}
	return &DirectoryLeafSource{
		config: cfg,
		logger: logger,
	}, nil
}

// Leaves reads every file into memory before returning, so the caller hashes a
// single consistent snapshot. Any unreadable file aborts the whole call.
func (d *DirectoryLeafSource) Leaves(ctx context.Context) ([]*types.LeafContent, error) {
	paths, err := d.listFiles()
	if err != nil {
		return nil, &leafSource.LeafReadError{Err: err}
	}

	leaves := make([]*types.LeafContent, 0, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		full := filepath.Join(d.config.Root, filepath.FromSlash(rel))
		info, err := os.Stat(full)
		if err != nil {
			return nil, &leafSource.LeafReadError{Path: rel, Err: err}
		}
		content, err := os.ReadFile(full)
		if err != nil {
			return nil, &leafSource.LeafReadError{Path: rel, Err: err}
		}

		leaves = append(leaves, &types.LeafContent{
			LogicalPath: rel,
			Content:     content,
			ObservedAt:  info.ModTime().UTC(),
		})
	}

	d.logger.Sugar().Debugw("Captured directory snapshot", "root", d.config.Root, "leaves", len(leaves))
	return leaves, nil
}

func (d *DirectoryLeafSource) listFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(d.config.Root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == d.config.Root {
			return nil
		}
		if !d.config.IncludeHidden && strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(d.config.Root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}
