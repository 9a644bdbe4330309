package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cascade/internal/ir"
)

// fieldAttributes lists the attributes each field type accepts besides
// "type".
var fieldAttributes = map[string][]string{
	ir.FieldLink:    {"model", "inverse"},
	ir.FieldLookup:  {"link", "field"},
	ir.FieldSummary: {"link", "field", "op", "precision"},
	ir.FieldFormula: {"expr", "result"},
}

// CompileModels compiles every model under the top-level "model" struct,
// in declaration order.
//
//	model: Invoice: fields: {
//	    number:     {type: "text"}
//	    flights:    {type: "link", model: "Flight", inverse: "invoice"}
//	    totalPrice: {type: "summary", link: "flights", field: "price", op: "SUM", precision: 2}
//	}
func CompileModels(v cue.Value) ([]ir.ModelSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return []ir.ModelSpec{}, nil
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	specs := []ir.ModelSpec{}
	for iter.Next() {
		spec, err := CompileModel(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// CompileModel parses one CUE model struct into a ModelSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: Invoice: fields: { ... }`)
//	spec, err := CompileModel(v.LookupPath(cue.ParsePath("model.Invoice")))
func CompileModel(v cue.Value) (*ir.ModelSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ModelSpec{Fields: []ir.FieldSpec{}}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		fs, err := compileField(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Fields = append(spec.Fields, fs)
	}

	if len(spec.Fields) == 0 {
		return nil, &CompileError{
			Field:   "fields",
			Message: "at least one field is required",
			Pos:     fieldsVal.Pos(),
		}
	}
	return spec, nil
}

func compileField(id string, v cue.Value) (ir.FieldSpec, error) {
	fs := ir.FieldSpec{ID: id}

	typ, err := stringAttr(v, "type", true)
	if err != nil {
		return fs, err
	}
	if !ir.ValidFieldTypes[typ] {
		return fs, &CompileError{
			Field:   fmt.Sprintf("fields.%s.type", id),
			Message: fmt.Sprintf("unknown field type %q", typ),
			Pos:     v.LookupPath(cue.ParsePath("type")).Pos(),
		}
	}
	fs.Type = typ

	if err := checkAttributes(id, typ, v); err != nil {
		return fs, err
	}

	switch typ {
	case ir.FieldLink:
		if fs.Model, err = stringAttr(v, "model", true); err != nil {
			return fs, err
		}
		if fs.Inverse, err = stringAttr(v, "inverse", false); err != nil {
			return fs, err
		}
	case ir.FieldLookup, ir.FieldSummary:
		if fs.Link, err = stringAttr(v, "link", true); err != nil {
			return fs, err
		}
		if fs.Field, err = stringAttr(v, "field", true); err != nil {
			return fs, err
		}
		if typ == ir.FieldSummary {
			if fs.Op, err = stringAttr(v, "op", true); err != nil {
				return fs, err
			}
			if p := v.LookupPath(cue.ParsePath("precision")); p.Exists() {
				n, err := p.Int64()
				if err != nil {
					return fs, formatCUEError(err)
				}
				precision := int(n)
				fs.Precision = &precision
			}
		}
	case ir.FieldFormula:
		if fs.Expr, err = stringAttr(v, "expr", true); err != nil {
			return fs, err
		}
		if fs.Result, err = stringAttr(v, "result", false); err != nil {
			return fs, err
		}
	}
	return fs, nil
}

// checkAttributes rejects attributes the field type does not use.
func checkAttributes(id, typ string, v cue.Value) error {
	allowed := map[string]bool{"type": true}
	for _, a := range fieldAttributes[typ] {
		allowed[a] = true
	}

	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	var unknown []string
	for iter.Next() {
		if !allowed[iter.Label()] {
			unknown = append(unknown, iter.Label())
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &CompileError{
		Field:   fmt.Sprintf("fields.%s", id),
		Message: fmt.Sprintf("attribute %q not allowed for %s fields", unknown[0], typ),
		Pos:     v.Pos(),
	}
}

func stringAttr(v cue.Value, name string, required bool) (string, error) {
	attr := v.LookupPath(cue.ParsePath(name))
	if !attr.Exists() {
		if required {
			return "", &CompileError{
				Field:   name,
				Message: name + " is required",
				Pos:     v.Pos(),
			}
		}
		return "", nil
	}
	s, err := attr.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
