// Package formcfg loads the declarative per-form extraction schemas. One
// JSON document per supported form type lives in the form-configs
// directory; the filename stem is the form type.
package formcfg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/pkg/logging"
)

// Field data types. Unknown values fall back to text at mapping time so
// configs can grow new types without breaking older binaries.
const (
	TypeText            = "text"
	TypeTextUppercase   = "text_uppercase"
	TypeBooleanCheckbox = "boolean_checkbox"
	TypeBooleanRadio    = "boolean_radio"
)

type FieldSpec struct {
	ID                 string `json:"id"`
	DescriptionForLLM  string `json:"description_for_llm"`
	PDFFieldName       string `json:"pdf_field_name"`
	DataType           string `json:"data_type"`
	CheckboxTrueForPDF string `json:"checkbox_true_value_for_pdf,omitempty"`
}

type FormConfig struct {
	FormID       string      `json:"form_id"`
	FormName     string      `json:"form_name"`
	TemplatePath string      `json:"template_path"`
	SystemPrompt string      `json:"system_prompt,omitempty"`
	Fields       []FieldSpec `json:"fields"`
}

// FieldIDs returns the declared field ids in declaration order.
func (c *FormConfig) FieldIDs() []string {
	ids := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		ids = append(ids, f.ID)
	}
	return ids
}

type Loader struct {
	configsDir string
	logger     *logging.Logger
}

func NewLoader(configsDir string) *Loader {
	return &Loader{
		configsDir: configsDir,
		logger:     logging.NewLogger("FormConfigLoader"),
	}
}

// Load resolves formType to <configsDir>/<formType>.json. Pure read,
// idempotent for a static resource.
func (l *Loader) Load(formType string) (*FormConfig, error) {
	if formType == "" || formType != filepath.Base(formType) || strings.ContainsAny(formType, "./\\") {
		return nil, apperr.Newf(apperr.ConfigNotFound, "Configuration for form type %q not found.", formType)
	}

	path := filepath.Join(l.configsDir, formType+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, apperr.Newf(apperr.ConfigNotFound, "Configuration for form type %q not found.", formType)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, fmt.Sprintf("Could not read configuration for form type %q.", formType), err)
	}

	var cfg FormConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, apperr.Wrap(apperr.ConfigInvalid, fmt.Sprintf("Invalid JSON in configuration for form type %q.", formType), err)
	}
	if err := validate(&cfg, formType); err != nil {
		return nil, err
	}

	l.logger.Debug("loaded form config", "formType", formType, "fields", len(cfg.Fields))
	return &cfg, nil
}

// List scans the configs directory and returns {id, name} for every
// valid document, skipping unparsable ones.
func (l *Loader) List() ([]Summary, error) {
	entries, err := os.ReadDir(l.configsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "Could not list form configurations.", err)
	}

	var forms []Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		formType := strings.TrimSuffix(e.Name(), ".json")
		cfg, err := l.Load(formType)
		if err != nil {
			l.logger.Warn("skipping invalid form config", "file", e.Name(), "error", err)
			continue
		}
		forms = append(forms, Summary{ID: cfg.FormID, Name: cfg.FormName})
	}
	return forms, nil
}

type Summary struct {
	ID   string
	Name string
}

func validate(cfg *FormConfig, formType string) error {
	if len(cfg.Fields) == 0 {
		return apperr.Newf(apperr.ConfigInvalid, "Configuration for form type %q declares no fields.", formType)
	}
	if cfg.TemplatePath == "" {
		return apperr.Newf(apperr.ConfigInvalid, "Configuration for form type %q has no template_path.", formType)
	}
	seen := make(map[string]bool, len(cfg.Fields))
	for i, f := range cfg.Fields {
		if f.ID == "" {
			return apperr.Newf(apperr.ConfigInvalid, "Field %d in form type %q has no id.", i, formType)
		}
		if f.PDFFieldName == "" {
			return apperr.Newf(apperr.ConfigInvalid, "Field %q in form type %q has no pdf_field_name.", f.ID, formType)
		}
		if seen[f.ID] {
			return apperr.Newf(apperr.ConfigInvalid, "Duplicate field id %q in form type %q.", f.ID, formType)
		}
		seen[f.ID] = true
	}
	if cfg.FormID == "" {
		cfg.FormID = formType
	}
	if cfg.FormName == "" {
		cfg.FormName = cfg.FormID
	}
	return nil
}
