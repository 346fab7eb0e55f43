package formfill

import (
	"fmt"
	"strings"

	"github.com/immihelp/formapi/internal/config"
	"github.com/immihelp/formapi/internal/formcfg"
)

// ExtractedData maps field ids to the raw values the model produced.
// Values are untyped; MapFields interprets them per the field spec.
type ExtractedData map[string]any

// FieldValues maps PDF field names to the final values ready for
// injection. A missing key means "leave the field at its template
// default".
type FieldValues map[string]any

// MapFields transforms extracted values into PDF-field-keyed values
// according to each field's declared data type. Pure and deterministic;
// unknown data types behave like text so configs can evolve without
// breaking older binaries.
func MapFields(extracted ExtractedData, fields []formcfg.FieldSpec) FieldValues {
	values := make(FieldValues)

	for _, field := range fields {
		raw, ok := extracted[field.ID]
		if !ok || raw == nil {
			continue
		}
		text := valueString(raw)
		if strings.EqualFold(text, config.NotFoundSentinel) {
			continue
		}

		switch field.DataType {
		case formcfg.TypeBooleanCheckbox:
			if !isAffirmative(raw) {
				continue //absence means unchecked
			}
			if field.CheckboxTrueForPDF != "" {
				values[field.PDFFieldName] = field.CheckboxTrueForPDF
			} else {
				values[field.PDFFieldName] = true
			}

		case formcfg.TypeBooleanRadio:
			// the value is expected to already be the option's export code
			values[field.PDFFieldName] = text

		case formcfg.TypeTextUppercase:
			values[field.PDFFieldName] = strings.ToUpper(text)

		default: //text and anything newer
			values[field.PDFFieldName] = text
		}
	}

	return values
}

func isAffirmative(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(valueString(v))) {
	case "yes", "true", "1":
		return true
	}
	return false
}

func valueString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
