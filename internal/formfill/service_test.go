package formfill

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/formcfg"
)

// --- fakes -----------------------------------------------------------

type fakeConfigs struct {
	configs map[string]*formcfg.FormConfig
}

func (f *fakeConfigs) Load(formType string) (*formcfg.FormConfig, error) {
	cfg, ok := f.configs[formType]
	if !ok {
		return nil, apperr.Newf(apperr.ConfigNotFound, "Configuration for form type %q not found.", formType)
	}
	return cfg, nil
}

type fakeDocuments struct {
	text   string
	outDir string
}

func (f *fakeDocuments) AggregateText(sessionID string) (string, error) { return f.text, nil }
func (f *fakeDocuments) OutputDir(sessionID string) (string, error) {
	dir := filepath.Join(f.outDir, sessionID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	return dir, nil
}

type fakeExtractor struct {
	data  ExtractedData
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, cfg *formcfg.FormConfig) (ExtractedData, error) {
	f.calls++
	if text == "" {
		return ExtractedData{}, nil
	}
	return f.data, f.err
}

type fakeFiller struct {
	lastTemplate string
	lastValues   FieldValues
	err          error
}

func (f *fakeFiller) Fill(templatePath string, values FieldValues) ([]byte, error) {
	f.lastTemplate = templatePath
	f.lastValues = values
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-rendered"), nil
}

// --- fixtures --------------------------------------------------------

func textFieldConfig() *formcfg.FormConfig {
	return &formcfg.FormConfig{
		FormID:       "I-765",
		FormName:     "Application for Employment Authorization",
		TemplatePath: "templates/i-765.pdf",
		Fields: []formcfg.FieldSpec{
			{ID: "full_name", PDFFieldName: "FullName", DataType: formcfg.TypeText},
		},
	}
}

func checkboxConfig() *formcfg.FormConfig {
	return &formcfg.FormConfig{
		FormID:       "I-765",
		TemplatePath: "templates/i-765.pdf",
		Fields: []formcfg.FieldSpec{
			{ID: "is_male", PDFFieldName: "GenderMale", DataType: formcfg.TypeBooleanCheckbox, CheckboxTrueForPDF: "1"},
		},
	}
}

func newTestService(t *testing.T, cfg *formcfg.FormConfig, docs *fakeDocuments, ex *fakeExtractor, filler *fakeFiller) Service {
	t.Helper()
	if docs.outDir == "" {
		docs.outDir = t.TempDir()
	}
	return NewService(
		&fakeConfigs{configs: map[string]*formcfg.FormConfig{"i-765": cfg}},
		docs, ex, filler,
		"/data",
	)
}

// --- tests -----------------------------------------------------------

func TestFillForm_TextFieldEndToEnd(t *testing.T) {
	filler := &fakeFiller{}
	ex := &fakeExtractor{data: ExtractedData{"full_name": "Jane Q. Public"}}
	svc := newTestService(t, textFieldConfig(), &fakeDocuments{text: "Jane Q. Public"}, ex, filler)

	res, err := svc.FillForm(context.Background(), "sess-1", "i-765")
	require.NoError(t, err)

	assert.Equal(t, FieldValues{"FullName": "Jane Q. Public"}, filler.lastValues)
	assert.Equal(t, filepath.Join("/data", "templates/i-765.pdf"), filler.lastTemplate)
	assert.Equal(t, "filled_i-765_sess-1.pdf", res.DownloadFilename)

	written, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-rendered", string(written))
}

func TestFillForm_NegativeCheckboxEmitsNothing(t *testing.T) {
	filler := &fakeFiller{}
	ex := &fakeExtractor{data: ExtractedData{"is_male": "No"}}
	svc := newTestService(t, checkboxConfig(), &fakeDocuments{text: "some doc"}, ex, filler)

	_, err := svc.FillForm(context.Background(), "sess-1", "i-765")
	require.NoError(t, err)
	assert.Empty(t, filler.lastValues)
}

func TestFillForm_UnknownFormType(t *testing.T) {
	filler := &fakeFiller{}
	ex := &fakeExtractor{}
	docs := &fakeDocuments{text: "doc", outDir: t.TempDir()}
	svc := newTestService(t, textFieldConfig(), docs, ex, filler)

	_, err := svc.FillForm(context.Background(), "sess-1", "i-999")
	require.Error(t, err)
	assert.Equal(t, apperr.ConfigNotFound, apperr.KindOf(err))
	assert.Zero(t, ex.calls, "pipeline must abort before extraction")

	entries, _ := os.ReadDir(docs.outDir)
	assert.Empty(t, entries, "no output may be created on failure")
}

func TestFillForm_TemplateNotFoundAfterExtraction(t *testing.T) {
	filler := &fakeFiller{err: apperr.Newf(apperr.TemplateNotFound, "PDF template %q not found.", "templates/i-765.pdf")}
	ex := &fakeExtractor{data: ExtractedData{"full_name": "Jane"}}
	docs := &fakeDocuments{text: "doc", outDir: t.TempDir()}
	svc := newTestService(t, textFieldConfig(), docs, ex, filler)

	_, err := svc.FillForm(context.Background(), "sess-1", "i-765")
	require.Error(t, err)
	assert.Equal(t, apperr.TemplateNotFound, apperr.KindOf(err))
	assert.Equal(t, 1, ex.calls, "extraction may run before the template is touched")

	entries, _ := os.ReadDir(docs.outDir)
	assert.Empty(t, entries)
}

func TestFillForm_EmptySessionFillsWithNoData(t *testing.T) {
	filler := &fakeFiller{lastValues: FieldValues{"stale": "x"}}
	ex := &fakeExtractor{data: ExtractedData{"full_name": "should not be used"}}
	svc := newTestService(t, textFieldConfig(), &fakeDocuments{text: ""}, ex, filler)

	res, err := svc.FillForm(context.Background(), "sess-1", "i-765")
	require.NoError(t, err)
	assert.Empty(t, filler.lastValues, "no uploads means an untouched template")
	assert.NotEmpty(t, res.OutputPath)
}

func TestFillForm_ExtractionErrorAborts(t *testing.T) {
	filler := &fakeFiller{}
	ex := &fakeExtractor{err: apperr.New(apperr.ExtractionParseError, "Failed to parse extraction result from the language model.")}
	svc := newTestService(t, textFieldConfig(), &fakeDocuments{text: "doc"}, ex, filler)

	_, err := svc.FillForm(context.Background(), "sess-1", "i-765")
	require.Error(t, err)
	assert.Equal(t, apperr.ExtractionParseError, apperr.KindOf(err))
	assert.Empty(t, filler.lastTemplate, "filler must not run after a failed extraction")
}

func TestFillForm_RepeatedFillsGetDistinctOutputPaths(t *testing.T) {
	filler := &fakeFiller{}
	ex := &fakeExtractor{data: ExtractedData{"full_name": "Jane"}}
	docs := &fakeDocuments{text: "doc", outDir: t.TempDir()}
	svc := newTestService(t, textFieldConfig(), docs, ex, filler)

	first, err := svc.FillForm(context.Background(), "sess-1", "i-765")
	require.NoError(t, err)
	second, err := svc.FillForm(context.Background(), "sess-1", "i-765")
	require.NoError(t, err)

	assert.NotEqual(t, first.OutputPath, second.OutputPath)
	assert.Equal(t, first.DownloadFilename, second.DownloadFilename)
}
