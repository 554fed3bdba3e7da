package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// Format selects the on-disk encoding of an exported checkpoint
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml"
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported checkpoint format %q", s)
	}
}

// FormatForPath infers the format from a file extension, defaulting to JSON
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Export writes the record in the given format
func Export(w io.Writer, rec *CheckpointRecord, format Format) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to export invalid checkpoint: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(rec, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(rec)
	default:
		return fmt.Errorf("unsupported checkpoint format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint %d: %w", rec.Sequence, err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write checkpoint %d: %w", rec.Sequence, err)
	}
	return nil
}

// Import reads a record previously written by Export and validates it
func Import(r io.Reader, format Format) (*CheckpointRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var rec CheckpointRecord
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &rec)
	case FormatYAML:
		err = yaml.Unmarshal(data, &rec)
	default:
		return nil, fmt.Errorf("unsupported checkpoint format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("imported checkpoint is invalid: %w", err)
	}
	return &rec, nil
}

// ExportFile writes the record to path, choosing the format from the extension
func ExportFile(path string, rec *CheckpointRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Export(f, rec, FormatForPath(path)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ImportFile reads a record from path, choosing the format from the extension
func ImportFile(path string) (*CheckpointRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Import(f, FormatForPath(path))
}
