package textextract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTXT(t *testing.T) {
	data := []byte("  The quick brown fox.\n")
	doc, err := Extract(bytes.NewReader(data), int64(len(data)), ".txt")
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 1, doc.Pages[0].Number)
	assert.Equal(t, "The quick brown fox.", doc.Pages[0].Content)
	assert.Equal(t, "txt", doc.Metadata["type"])
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t, `<?xml version="1.0"?><w:document><w:body><w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t>world</w:t></w:r></w:p></w:body></w:document>`)

	doc, err := Extract(bytes.NewReader(data), int64(len(data)), ".docx")
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Contains(t, doc.Pages[0].Content, "Hello")
	assert.Contains(t, doc.Pages[0].Content, "world")
	assert.Equal(t, "docx", doc.Metadata["type"])
}

func TestExtractDOCXCorrupt(t *testing.T) {
	data := []byte("not a zip archive")
	_, err := Extract(bytes.NewReader(data), int64(len(data)), ".docx")
	assert.Error(t, err)
}

func TestExtractUnsupportedType(t *testing.T) {
	data := []byte("whatever")
	_, err := Extract(bytes.NewReader(data), int64(len(data)), ".csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestExtractTypeAliases(t *testing.T) {
	data := []byte("plain text")
	for _, ft := range []string{".txt", "txt", "text/plain"} {
		t.Run(ft, func(t *testing.T) {
			doc, err := Extract(bytes.NewReader(data), int64(len(data)), ft)
			require.NoError(t, err)
			assert.Equal(t, "plain text", doc.Pages[0].Content)
		})
	}
}

func TestSupportedTypes(t *testing.T) {
	assert.ElementsMatch(t, []string{".pdf", ".docx", ".txt"}, SupportedTypes())
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
