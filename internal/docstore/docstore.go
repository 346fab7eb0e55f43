// Package docstore keeps each session's uploaded documents and generated
// outputs on disk, keyed by the caller-supplied session id. Two sessions
// never share a directory.
package docstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/extract"
	"github.com/immihelp/formapi/pkg/logging"
)

var allowedExtensions = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
	".docx": true,
	".rtf":  true,
}

type Store struct {
	uploadsRoot string
	filledRoot  string
	extractText func(path string) string
	logger      *logging.Logger
}

func NewStore(uploadsRoot, filledRoot string) *Store {
	return &Store{
		uploadsRoot: uploadsRoot,
		filledRoot:  filledRoot,
		extractText: extract.Text,
		logger:      logging.NewLogger("DocumentStore"),
	}
}

// NewStoreWithExtractor substitutes the text-extraction collaborator,
// for tests.
func NewStoreWithExtractor(uploadsRoot, filledRoot string, extractText func(string) string) *Store {
	s := NewStore(uploadsRoot, filledRoot)
	s.extractText = extractText
	return s
}

// Save writes an uploaded file into the session's upload directory,
// creating it on first use. Returns the stored filename.
func (s *Store) Save(sessionID, filename string, r io.Reader) (string, error) {
	if sessionID == "" {
		return "", apperr.New(apperr.StorageError, "session_id is required to save a file.")
	}

	safe := sanitizeFilename(filename)
	if safe == "" {
		return "", apperr.New(apperr.InvalidFile, "No filename provided.")
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(safe))] {
		return "", apperr.Newf(apperr.InvalidFile, "File type not allowed: %s", safe)
	}

	sessionDir := filepath.Join(s.uploadsRoot, sessionID)
	if err := os.MkdirAll(sessionDir, 0o750); err != nil {
		return "", apperr.Wrap(apperr.StorageError, "Could not create session directory.", err)
	}

	dst, err := os.Create(filepath.Join(sessionDir, safe))
	if err != nil {
		return "", apperr.Wrap(apperr.StorageError, fmt.Sprintf("Could not save file %s.", safe), err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", apperr.Wrap(apperr.StorageError, fmt.Sprintf("Could not write file %s.", safe), err)
	}

	s.logger.Debug("saved upload", "session", sessionID, "file", safe)
	return safe, nil
}

// AggregateText concatenates the extracted text of every file in the
// session's upload directory, each prefixed with a content marker.
// Files are visited in name order so the result is deterministic.
// A session with no uploads yields the empty string.
func (s *Store) AggregateText(sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}

	sessionDir := filepath.Join(s.uploadsRoot, sessionID)
	entries, err := os.ReadDir(sessionDir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.StorageError, "Could not read session documents.", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("\n--- Content from %s ---\n", name))
		sb.WriteString(s.extractText(filepath.Join(sessionDir, name)))
		sb.WriteString("\n")
	}

	s.logger.Debug("aggregated session content", "session", sessionID, "files", len(names), "chars", sb.Len())
	return sb.String(), nil
}

// Purge removes the session's upload and filled-form directories.
// Idempotent: purging a session that never uploaded anything is a no-op.
func (s *Store) Purge(sessionID string) {
	if sessionID == "" {
		return
	}
	for _, dir := range []string{
		filepath.Join(s.uploadsRoot, sessionID),
		filepath.Join(s.filledRoot, sessionID),
	} {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Error("purge failed", "dir", dir, "error", err)
		}
	}
}

// OutputDir returns (and creates) the session's filled-form directory.
func (s *Store) OutputDir(sessionID string) (string, error) {
	dir := filepath.Join(s.filledRoot, sessionID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", apperr.Wrap(apperr.PdfWriteError, "Could not create output directory.", err)
	}
	return dir, nil
}

// RemoveOutput deletes one generated file; best effort.
func (s *Store) RemoveOutput(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Error("removing output failed", "path", path, "error", err)
	}
}

// sanitizeFilename strips any path components and characters that could
// escape the session directory.
func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var sb strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	trimmed := strings.Trim(sb.String(), "._")
	if trimmed == "" {
		return ""
	}
	return sb.String()
}
