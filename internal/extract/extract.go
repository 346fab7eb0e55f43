// Package extract pulls plain text out of uploaded documents. It never
// returns an error: any failure yields a bracketed placeholder so that
// aggregating a session's documents is not aborted by one bad file.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"

	"github.com/immihelp/formapi/pkg/logging"
)

var logger = logging.NewLogger("TextExtractor")

const pageExtractTimeout = 10 * time.Second

// Text extracts the content of the file at path. The returned string is
// either the document text or a "[... Error: ...]" marker.
func Text(path string) string {
	base := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := extractPDF(path)
		if err != nil {
			logger.Error("pdf extraction failed", "file", base, "error", err)
			return fmt.Sprintf("[PDF Extraction Error: %v - %s]", err, base)
		}
		return text

	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("txt read failed", "file", base, "error", err)
			return fmt.Sprintf("[TXT Read Error: %v - %s]", err, base)
		}
		return string(data)

	case ".docx", ".rtf", ".odt":
		text, err := cat.File(path)
		if err != nil {
			logger.Error("document extraction failed", "file", base, "error", err)
			return fmt.Sprintf("[Document Extraction Error: %v - %s]", err, base)
		}
		return text

	default:
		return fmt.Sprintf("[Unsupported file type: %s]", base)
	}
}

// IsFailureMarker reports whether text is one of the bracketed
// placeholders Text returns instead of document content.
func IsFailureMarker(text string) bool {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "[") || !strings.HasSuffix(t, "]") {
		return false
	}
	return strings.Contains(t, "Error:") || strings.HasPrefix(t, "[Unsupported file type:")
}

func extractPDF(path string) (string, error) {
	f, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var sb strings.Builder
	numPages := f.NumPage()
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// keep going with the remaining pages
			logger.Error("error parsing page content", "page", i, "error", err)
			continue
		}
		sb.WriteString(content)
		sb.WriteString(fmt.Sprintf("\n--- Page %d ---\n", i))
	}
	return sb.String(), nil
}

// protectExtract bounds GetPlainText, which can hang on malformed pages.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageExtractTimeout):
		return "", errors.New("timeout")
	}
}
