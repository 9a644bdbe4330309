package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/aggregate"
	"github.com/roach88/cascade/internal/formula"
	"github.com/roach88/cascade/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Model errors (E101-E109)
	ErrModelNameEmpty   = "E101" // model name is required
	ErrModelNoFields    = "E102" // at least one field required
	ErrDuplicateModel   = "E103" // duplicate model name
	ErrInvalidFieldType = "E104" // invalid type string
	ErrDuplicateField   = "E105" // duplicate field id
	ErrFieldIDEmpty     = "E106" // field id is required

	// Link errors (E110-E119)
	ErrUnknownLinkModel = "E110" // link targets an unknown model
	ErrUnknownInverse   = "E111" // inverse field does not exist
	ErrInverseMismatch  = "E112" // inverse is not a link back to this model

	// Computed field errors (E120-E129)
	ErrNotALinkField       = "E120" // lookup/summary link is not a link field
	ErrUnknownForeignField = "E121" // foreign field does not exist
	ErrInvalidOperation    = "E122" // unknown summary operation
	ErrNegativePrecision   = "E123" // precision below zero
	ErrUnknownFormulaRef   = "E124" // formula references an unknown field
	ErrInvalidFormula      = "E125" // formula does not parse
	ErrInvalidResultType   = "E126" // formula result type is not a stored type
)

// formulaResultTypes are the value types a formula may declare.
var formulaResultTypes = map[string]bool{
	ir.FieldText:   true,
	ir.FieldNumber: true,
	ir.FieldBool:   true,
	ir.FieldDate:   true,
	ir.FieldJSON:   true,
}

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateModels checks a set of compiled models against each other.
// Returns all errors found (does not fail-fast).
func ValidateModels(specs []ir.ModelSpec) []ValidationError {
	v := &modelValidator{
		byName: make(map[string]*ir.ModelSpec, len(specs)),
		eval:   formula.NewEvaluator(),
	}

	for i := range specs {
		spec := &specs[i]
		if strings.TrimSpace(spec.Name) == "" {
			v.add(fmt.Sprintf("model[%d]", i), "model name is required", ErrModelNameEmpty)
			continue
		}
		if _, dup := v.byName[spec.Name]; dup {
			v.add(spec.Name, fmt.Sprintf("duplicate model %q", spec.Name), ErrDuplicateModel)
			continue
		}
		v.byName[spec.Name] = spec
	}

	for i := range specs {
		v.validateModel(&specs[i])
	}
	return v.errs
}

type modelValidator struct {
	byName map[string]*ir.ModelSpec
	eval   *formula.Evaluator
	errs   []ValidationError
}

func (v *modelValidator) add(field, msg, code string) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: msg, Code: code})
}

func (v *modelValidator) validateModel(spec *ir.ModelSpec) {
	if spec.Name == "" {
		return
	}
	if len(spec.Fields) == 0 {
		v.add(spec.Name, "at least one field is required", ErrModelNoFields)
		return
	}

	seen := make(map[string]bool, len(spec.Fields))
	for i, fs := range spec.Fields {
		path := fmt.Sprintf("%s.fields.%s", spec.Name, fs.ID)
		if fs.ID == "" {
			v.add(fmt.Sprintf("%s.fields[%d]", spec.Name, i), "field id is required", ErrFieldIDEmpty)
			continue
		}
		if seen[fs.ID] {
			v.add(path, fmt.Sprintf("duplicate field %q", fs.ID), ErrDuplicateField)
			continue
		}
		seen[fs.ID] = true

		if !ir.ValidFieldTypes[fs.Type] {
			v.add(path+".type", fmt.Sprintf("invalid field type %q", fs.Type), ErrInvalidFieldType)
			continue
		}

		switch fs.Type {
		case ir.FieldLink:
			v.validateLink(spec, path, fs)
		case ir.FieldLookup, ir.FieldSummary:
			v.validateLinked(spec, path, fs)
		case ir.FieldFormula:
			v.validateFormula(spec, path, fs)
		}
	}
}

func (v *modelValidator) validateLink(spec *ir.ModelSpec, path string, fs ir.FieldSpec) {
	target, ok := v.byName[fs.Model]
	if !ok {
		v.add(path+".model", fmt.Sprintf("unknown model %q", fs.Model), ErrUnknownLinkModel)
		return
	}
	if fs.Inverse == "" {
		return
	}
	inv, ok := fieldOf(target, fs.Inverse)
	if !ok {
		v.add(path+".inverse", fmt.Sprintf("model %q has no field %q", fs.Model, fs.Inverse), ErrUnknownInverse)
		return
	}
	if inv.Type != ir.FieldLink || inv.Model != spec.Name {
		v.add(path+".inverse",
			fmt.Sprintf("%s.%s is not a link back to %s", fs.Model, fs.Inverse, spec.Name),
			ErrInverseMismatch)
		return
	}
	if inv.Inverse != "" && inv.Inverse != fs.ID {
		v.add(path+".inverse",
			fmt.Sprintf("%s.%s names inverse %q, not %q", fs.Model, fs.Inverse, inv.Inverse, fs.ID),
			ErrInverseMismatch)
	}
}

func (v *modelValidator) validateLinked(spec *ir.ModelSpec, path string, fs ir.FieldSpec) {
	if fs.Type == ir.FieldSummary {
		if _, err := aggregate.ParseOp(fs.Op); err != nil {
			v.add(path+".op", err.Error(), ErrInvalidOperation)
		}
		if fs.Precision != nil && *fs.Precision < 0 {
			v.add(path+".precision", "precision must not be negative", ErrNegativePrecision)
		}
	}

	link, ok := fieldOf(spec, fs.Link)
	if !ok || link.Type != ir.FieldLink {
		v.add(path+".link", fmt.Sprintf("%q is not a link field of %s", fs.Link, spec.Name), ErrNotALinkField)
		return
	}
	target, ok := v.byName[link.Model]
	if !ok {
		// reported on the link field itself
		return
	}
	if _, ok := fieldOf(target, fs.Field); !ok {
		v.add(path+".field", fmt.Sprintf("model %q has no field %q", link.Model, fs.Field), ErrUnknownForeignField)
	}
}

func (v *modelValidator) validateFormula(spec *ir.ModelSpec, path string, fs ir.FieldSpec) {
	if fs.Result != "" && !formulaResultTypes[fs.Result] {
		v.add(path+".result", fmt.Sprintf("invalid result type %q", fs.Result), ErrInvalidResultType)
	}
	for _, ref := range formula.References(fs.Expr) {
		if _, ok := fieldOf(spec, ref); !ok {
			v.add(path+".expr", fmt.Sprintf("unknown field {%s}", ref), ErrUnknownFormulaRef)
		}
	}
	if err := v.eval.Compile(fs.Expr); err != nil {
		v.add(path+".expr", err.Error(), ErrInvalidFormula)
	}
}

func fieldOf(spec *ir.ModelSpec, id string) (ir.FieldSpec, bool) {
	for _, fs := range spec.Fields {
		if fs.ID == id {
			return fs, true
		}
	}
	return ir.FieldSpec{}, false
}
