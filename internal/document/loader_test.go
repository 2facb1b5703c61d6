package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Paris is the capital of France."), 0o644))

	pages, err := NewLoader().Load(context.Background(), FromPath(path))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "notes.txt", pages[0].Document)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "Paris is the capital of France.", pages[0].Text)
	assert.NotEqual(t, pages[0].DocumentID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestLoadFromBytes(t *testing.T) {
	pages, err := NewLoader().Load(context.Background(), FromBytes("inline.txt", []byte("some text")))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "inline.txt", pages[0].Document)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), FromPath("/nonexistent/missing.txt"))
	require.Error(t, err)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "missing.txt", loadErr.Name)
}

func TestLoadEmptyDocument(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), FromBytes("empty.txt", nil))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadNoExtractableText(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), FromBytes("blank.txt", []byte("   \n\n  ")))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Error(), "no extractable text")
}

func TestLoadCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader().Load(ctx, FromBytes("x.txt", []byte("text")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSourceFileType(t *testing.T) {
	assert.Equal(t, ".txt", FromPath("/tmp/a.txt").fileType())
	assert.Equal(t, ".docx", FromBytes("report.docx", nil).fileType())
	// extensionless sources default to PDF
	assert.Equal(t, ".pdf", FromBytes("mystery", nil).fileType())
}
