package checkpoint

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/stretchr/testify/require"
)

func TestExportImport(t *testing.T) {
	rec := mustBuild(t, sourceOf("a.txt", "hello", "b.txt", "world", "c.txt", "!")).Seal(42)

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Export(&buf, rec, format))
			require.Contains(t, buf.String(), rec.Root.String())

			imported, err := Import(&buf, format)
			require.NoError(t, err)
			require.Equal(t, rec.Sequence, imported.Sequence)
			require.Equal(t, rec.Root, imported.Root)
			require.Equal(t, rec.Leaves[1].ContentHash, imported.Leaves[1].ContentHash)
			require.True(t, rec.Timestamp.Equal(imported.Timestamp))

			// The replayed record must still prove every leaf on its own
			require.NoError(t, imported.VerifyAll(merkle.DefaultHasher()))
		})
	}
}

func TestExportImportFile(t *testing.T) {
	rec := mustBuild(t, sourceOf("a.txt", "hello")).Seal(1)
	dir := t.TempDir()

	for _, name := range []string{"ckpt.json", "ckpt.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, ExportFile(path, rec))

		imported, err := ImportFile(path)
		require.NoError(t, err)
		require.Equal(t, rec.Root, imported.Root)
	}
}

func TestImport_RejectsInvalidRecord(t *testing.T) {
	_, err := Import(bytes.NewBufferString(`{"sequence":1,"metadata":{"leafCount":2},"leaves":[],"proofs":[]}`), FormatJSON)
	require.ErrorContains(t, err, "invalid")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YML")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, f)

	_, err = ParseFormat("toml")
	require.Error(t, err)

	require.Equal(t, FormatJSON, FormatForPath("x.json"))
	require.Equal(t, FormatYAML, FormatForPath("x.yaml"))
	require.Equal(t, FormatJSON, FormatForPath("x"))
}
