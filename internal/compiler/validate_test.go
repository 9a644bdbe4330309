package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/testutil"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateModels_Valid(t *testing.T) {
	assert.Empty(t, ValidateModels(testutil.InvoiceModels()))
	assert.Empty(t, ValidateModels(testutil.PingPongModels()), "cycles are not validation errors")
}

func TestValidateModels_DuplicateModel(t *testing.T) {
	specs := []ir.ModelSpec{
		{Name: "A", Fields: []ir.FieldSpec{{ID: "x", Type: ir.FieldText}}},
		{Name: "A", Fields: []ir.FieldSpec{{ID: "y", Type: ir.FieldText}}},
	}
	errs := ValidateModels(specs)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateModel, errs[0].Code)
}

func TestValidateModels_ModelShape(t *testing.T) {
	specs := []ir.ModelSpec{
		{Name: "", Fields: []ir.FieldSpec{{ID: "x", Type: ir.FieldText}}},
		{Name: "Empty"},
	}
	assert.Equal(t, []string{ErrModelNameEmpty, ErrModelNoFields}, codes(ValidateModels(specs)))
}

func TestValidateModels_FieldShape(t *testing.T) {
	specs := []ir.ModelSpec{{
		Name: "M",
		Fields: []ir.FieldSpec{
			{ID: "x", Type: ir.FieldText},
			{ID: "x", Type: ir.FieldNumber},
			{ID: "", Type: ir.FieldText},
			{ID: "f", Type: "float"},
		},
	}}
	errs := ValidateModels(specs)
	assert.Equal(t, []string{ErrDuplicateField, ErrFieldIDEmpty, ErrInvalidFieldType}, codes(errs))
	assert.Equal(t, "M.fields.f.type", errs[2].Field)
}

func TestValidateModels_Links(t *testing.T) {
	tests := []struct {
		name  string
		specs []ir.ModelSpec
		code  string
	}{
		{
			name: "unknown target model",
			specs: []ir.ModelSpec{
				{Name: "A", Fields: []ir.FieldSpec{{ID: "b", Type: ir.FieldLink, Model: "Missing"}}},
			},
			code: ErrUnknownLinkModel,
		},
		{
			name: "unknown inverse",
			specs: []ir.ModelSpec{
				{Name: "A", Fields: []ir.FieldSpec{{ID: "b", Type: ir.FieldLink, Model: "B", Inverse: "nope"}}},
				{Name: "B", Fields: []ir.FieldSpec{{ID: "x", Type: ir.FieldText}}},
			},
			code: ErrUnknownInverse,
		},
		{
			name: "inverse is not a link",
			specs: []ir.ModelSpec{
				{Name: "A", Fields: []ir.FieldSpec{{ID: "b", Type: ir.FieldLink, Model: "B", Inverse: "x"}}},
				{Name: "B", Fields: []ir.FieldSpec{{ID: "x", Type: ir.FieldText}}},
			},
			code: ErrInverseMismatch,
		},
		{
			name: "inverse names another field",
			specs: []ir.ModelSpec{
				{Name: "A", Fields: []ir.FieldSpec{
					{ID: "b", Type: ir.FieldLink, Model: "B", Inverse: "a"},
					{ID: "other", Type: ir.FieldText},
				}},
				{Name: "B", Fields: []ir.FieldSpec{{ID: "a", Type: ir.FieldLink, Model: "A", Inverse: "other"}}},
			},
			code: ErrInverseMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateModels(tt.specs)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.code, errs[0].Code)
		})
	}
}

func TestValidateModels_ComputedFields(t *testing.T) {
	neg := -1
	base := func(fields ...ir.FieldSpec) []ir.ModelSpec {
		return []ir.ModelSpec{
			{Name: "Order", Fields: append([]ir.FieldSpec{
				{ID: "name", Type: ir.FieldText},
				{ID: "items", Type: ir.FieldLink, Model: "Item", Inverse: "order"},
			}, fields...)},
			{Name: "Item", Fields: []ir.FieldSpec{
				{ID: "price", Type: ir.FieldNumber},
				{ID: "order", Type: ir.FieldLink, Model: "Order", Inverse: "items"},
			}},
		}
	}

	tests := []struct {
		name  string
		field ir.FieldSpec
		code  string
	}{
		{"link is not a link field", ir.FieldSpec{ID: "c", Type: ir.FieldLookup, Link: "name", Field: "price"}, ErrNotALinkField},
		{"unknown link field", ir.FieldSpec{ID: "c", Type: ir.FieldLookup, Link: "nope", Field: "price"}, ErrNotALinkField},
		{"unknown foreign field", ir.FieldSpec{ID: "c", Type: ir.FieldSummary, Link: "items", Field: "cost", Op: "SUM"}, ErrUnknownForeignField},
		{"bad operation", ir.FieldSpec{ID: "c", Type: ir.FieldSummary, Link: "items", Field: "price", Op: "MEDIAN"}, ErrInvalidOperation},
		{"negative precision", ir.FieldSpec{ID: "c", Type: ir.FieldSummary, Link: "items", Field: "price", Op: "SUM", Precision: &neg}, ErrNegativePrecision},
		{"formula unknown field", ir.FieldSpec{ID: "c", Type: ir.FieldFormula, Expr: "{missing} + 1"}, ErrUnknownFormulaRef},
		{"formula syntax", ir.FieldSpec{ID: "c", Type: ir.FieldFormula, Expr: "{name} +"}, ErrInvalidFormula},
		{"formula result type", ir.FieldSpec{ID: "c", Type: ir.FieldFormula, Expr: "{name}", Result: "link"}, ErrInvalidResultType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateModels(base(tt.field))
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
		})
	}
}

func TestValidateModels_CollectsAllErrors(t *testing.T) {
	specs := []ir.ModelSpec{{
		Name: "M",
		Fields: []ir.FieldSpec{
			{ID: "a", Type: ir.FieldLink, Model: "X"},
			{ID: "b", Type: ir.FieldFormula, Expr: "{nope}"},
		},
	}}
	assert.Equal(t, []string{ErrUnknownLinkModel, ErrUnknownFormulaRef}, codes(ValidateModels(specs)))
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "M.fields.x", Message: "bad", Code: ErrInvalidFieldType}
	assert.Equal(t, "[E104] M.fields.x: bad", err.Error())

	err.Line = 7
	assert.Equal(t, "[E104] line 7: M.fields.x: bad", err.Error())
}
