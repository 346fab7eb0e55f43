package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_Txt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("passport number X1234567"), 0o644))

	got := Text(path)
	assert.Equal(t, "passport number X1234567", got)
}

func TestText_UnsupportedExtension(t *testing.T) {
	got := Text("/tmp/whatever.exe")
	assert.Equal(t, "[Unsupported file type: whatever.exe]", got)
}

func TestText_BrokenPDFNeverErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a real pdf"), 0o644))

	got := Text(path)
	assert.Contains(t, got, "[PDF Extraction Error:")
	assert.Contains(t, got, "broken.pdf")
}

func TestText_MissingTxtFile(t *testing.T) {
	got := Text(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Contains(t, got, "[TXT Read Error:")
}

func TestIsFailureMarker(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"[PDF Extraction Error: failed to open pdf - doc.pdf]", true},
		{"[TXT Read Error: permission denied - notes.txt]", true},
		{"[Document Extraction Error: bad zip - resume.docx]", true},
		{"[Unsupported file type: payload.exe]", true},
		{"  [PDF Extraction Error: timeout - scan.pdf]  ", true},
		{"passport number X1234567", false},
		{"[a-number] the bracketed category code", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsFailureMarker(tt.text), "text %q", tt.text)
	}
}
