package formfill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/formcfg"
	"github.com/immihelp/formapi/internal/metrics"
	"github.com/immihelp/formapi/pkg/logging"
)

// Service runs one fill-form request end to end:
// config → documents → extraction → mapping → PDF.
type Service interface {
	FillForm(ctx context.Context, sessionID, formType string) (Result, error)
}

type Result struct {
	// OutputPath is unique per request (it embeds a request token), so
	// concurrent fills for the same session never clobber each other.
	OutputPath string
	// DownloadFilename is the deterministic attachment name,
	// filled_<form_type>_<session_id>.pdf.
	DownloadFilename string
}

type ConfigLoader interface {
	Load(formType string) (*formcfg.FormConfig, error)
}

type DocumentReader interface {
	AggregateText(sessionID string) (string, error)
	OutputDir(sessionID string) (string, error)
}

type DataExtractor interface {
	Extract(ctx context.Context, documentText string, cfg *formcfg.FormConfig) (ExtractedData, error)
}

type PDFFiller interface {
	Fill(templatePath string, values FieldValues) ([]byte, error)
}

type service struct {
	configs   ConfigLoader
	documents DocumentReader
	extractor DataExtractor
	filler    PDFFiller
	// templates in a config are relative to this directory
	templateBase string
	logger       *logging.Logger
}

// NewService wires the pipeline from explicit collaborators; nothing is
// global, so tests swap in fakes.
func NewService(configs ConfigLoader, documents DocumentReader, extractor DataExtractor, filler PDFFiller, templateBase string) Service {
	return &service{
		configs:      configs,
		documents:    documents,
		extractor:    extractor,
		filler:       filler,
		templateBase: templateBase,
		logger:       logging.NewLogger("FormFillService"),
	}
}

// FillForm walks the linear pipeline. The first failing step aborts the
// rest; error kinds pass through untouched so the boundary layer picks
// status codes. Cleanup of uploads and delivered output is the caller's
// job, never this service's.
func (s *service) FillForm(ctx context.Context, sessionID, formType string) (Result, error) {
	log := s.logger.With("session", sessionID, "formType", formType)
	log.Info("starting form fill")

	cfg, err := s.loadConfigStep(formType)
	if err != nil {
		return Result{}, err
	}

	documentText, err := s.aggregateStep(sessionID)
	if err != nil {
		return Result{}, err
	}

	extracted, err := s.extractStep(ctx, documentText, cfg)
	if err != nil {
		return Result{}, err
	}

	values := MapFields(extracted, cfg.Fields)
	log.Debug("mapped extracted data", "extracted", len(extracted), "pdfValues", len(values))

	return s.fillStep(sessionID, formType, cfg, values)
}

func (s *service) loadConfigStep(formType string) (*formcfg.FormConfig, error) {
	start := time.Now()
	defer func() { metrics.CaptureStepDuration("load_config", time.Since(start)) }()
	return s.configs.Load(formType)
}

func (s *service) aggregateStep(sessionID string) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureStepDuration("aggregate_documents", time.Since(start)) }()
	return s.documents.AggregateText(sessionID)
}

func (s *service) extractStep(ctx context.Context, documentText string, cfg *formcfg.FormConfig) (ExtractedData, error) {
	start := time.Now()
	defer func() { metrics.CaptureStepDuration("llm_extraction", time.Since(start)) }()
	return s.extractor.Extract(ctx, documentText, cfg)
}

func (s *service) fillStep(sessionID, formType string, cfg *formcfg.FormConfig, values FieldValues) (Result, error) {
	start := time.Now()
	defer func() { metrics.CaptureStepDuration("pdf_fill", time.Since(start)) }()

	templatePath := cfg.TemplatePath
	if !filepath.IsAbs(templatePath) {
		templatePath = filepath.Join(s.templateBase, templatePath)
	}

	rendered, err := s.filler.Fill(templatePath, values)
	if err != nil {
		return Result{}, err
	}

	outDir, err := s.documents.OutputDir(sessionID)
	if err != nil {
		return Result{}, err
	}

	safeForm := sanitizeFormType(formType)
	outputName := fmt.Sprintf("%s-filled-%s-%s.pdf", sessionID, safeForm, uuid.New().String())
	outputPath := filepath.Join(outDir, outputName)

	if err := os.WriteFile(outputPath, rendered, 0o640); err != nil {
		return Result{}, apperr.Wrap(apperr.PdfWriteError, "Failed to save the filled PDF.", err)
	}

	s.logger.Info("filled form written", "session", sessionID, "formType", formType, "bytes", len(rendered))
	return Result{
		OutputPath:       outputPath,
		DownloadFilename: fmt.Sprintf("filled_%s_%s.pdf", safeForm, sessionID),
	}, nil
}

func sanitizeFormType(formType string) string {
	var sb strings.Builder
	for _, r := range formType {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
