// Package pdffill injects field values into a fillable PDF template. It
// only touches AcroForm field values; page content and layout come out
// byte-identical in structure to the template.
package pdffill

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/formfill"
	"github.com/immihelp/formapi/pkg/logging"
)

type Filler struct {
	logger *logging.Logger
}

func NewFiller() *Filler {
	return &Filler{logger: logging.NewLogger("PDFFiller")}
}

// Fill renders the template with the given values. Keys that name no
// field in the template are ignored: config/template mismatches are an
// authoring concern, not a runtime failure.
func (f *Filler) Fill(templatePath string, values formfill.FieldValues) ([]byte, error) {
	file, err := os.Open(templatePath)
	if os.IsNotExist(err) {
		return nil, apperr.Newf(apperr.TemplateNotFound, "PDF template %q not found.", templatePath)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.PdfWriteError, "Could not open the PDF template.", err)
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		return nil, apperr.Wrap(apperr.PdfWriteError, "Could not parse the PDF template.", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, apperr.Wrap(apperr.PdfWriteError, "Could not parse the PDF template.", err)
	}

	applied, err := f.applyValues(ctx, values)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("applied field values", "template", templatePath, "requested", len(values), "applied", applied)

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, apperr.Wrap(apperr.PdfWriteError, "Could not render the filled PDF.", err)
	}
	return buf.Bytes(), nil
}

// applyValues walks the AcroForm field tree and sets V (and AS for
// button fields) on every field whose fully qualified or terminal name
// appears in values. Returns how many fields were written.
func (f *Filler) applyValues(ctx *model.Context, values formfill.FieldValues) (int, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return 0, apperr.Wrap(apperr.PdfWriteError, "Could not read the PDF catalog.", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		// a template without form fields is a valid, if useless, target
		f.logger.Warn("template has no AcroForm dictionary")
		return 0, nil
	}

	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return 0, apperr.Wrap(apperr.PdfWriteError, "Could not dereference the AcroForm dictionary.", err)
	}
	if acroFormDict == nil {
		return 0, nil
	}

	// let viewers regenerate appearances for the values we set
	acroFormDict["NeedAppearances"] = types.Boolean(true)

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return 0, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return 0, apperr.Wrap(apperr.PdfWriteError, "Could not dereference the Fields array.", err)
	}

	applied := 0
	for _, fieldRef := range fieldsArray {
		n, err := f.walkField(ctx, fieldRef, "", values)
		if err != nil {
			return applied, err
		}
		applied += n
	}
	return applied, nil
}

func (f *Filler) walkField(ctx *model.Context, fieldObj types.Object, prefix string, values formfill.FieldValues) (int, error) {
	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil || fieldDict == nil {
		// skip unreadable nodes, same as the rest of the tree walk
		return 0, nil
	}

	partial := ""
	if nameObj, found := fieldDict.Find("T"); found {
		if name, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil {
			partial = name
		}
	}

	full := partial
	if prefix != "" && partial != "" {
		full = prefix + "." + partial
	} else if partial == "" {
		full = prefix
	}

	applied := 0
	if value, ok := lookupValue(values, full, partial); ok {
		if f.setFieldValue(ctx, fieldDict, value) {
			applied++
		}
	}

	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kidsArray, err := ctx.DereferenceArray(kidsObj); err == nil {
			for _, kid := range kidsArray {
				n, err := f.walkField(ctx, kid, full, values)
				if err != nil {
					return applied, err
				}
				applied += n
			}
		}
	}
	return applied, nil
}

// lookupValue matches on the fully qualified name first, then on the
// terminal name, so configs can use whichever the authoring tool shows.
func lookupValue(values formfill.FieldValues, full, partial string) (any, bool) {
	if v, ok := values[full]; ok && full != "" {
		return v, true
	}
	if v, ok := values[partial]; ok && partial != "" {
		return v, true
	}
	return nil, false
}

func (f *Filler) setFieldValue(ctx *model.Context, fieldDict types.Dict, value any) bool {
	switch fieldType(ctx, fieldDict) {
	case "Btn":
		// checkboxes and radio groups take a name object, the export
		// value of the widget to switch on
		fieldDict["V"] = types.Name(exportName(value))
		fieldDict["AS"] = types.Name(exportName(value))
	case "Ch", "Tx", "":
		fieldDict["V"] = types.StringLiteral(fmt.Sprintf("%v", value))
	default:
		// signatures and anything exotic are left alone
		return false
	}
	return true
}

// fieldType resolves the FT entry, walking Parent for inherited types.
func fieldType(ctx *model.Context, fieldDict types.Dict) string {
	if ftObj, found := fieldDict.Find("FT"); found {
		if name, err := ctx.DereferenceName(ftObj, model.V10, nil); err == nil {
			return string(name)
		}
	}
	if parentObj, found := fieldDict.Find("Parent"); found {
		if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
			return fieldType(ctx, parentDict)
		}
	}
	return ""
}

// exportName turns a mapped value into the name written for a button
// field: boolean true means the conventional "Yes" state.
func exportName(value any) string {
	if b, ok := value.(bool); ok {
		if b {
			return "Yes"
		}
		return "Off"
	}
	return fmt.Sprintf("%v", value)
}
