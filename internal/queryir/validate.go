package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// ValidationResult contains the problems found in a query.
type ValidationResult struct {
	// IsValid is true when the query can be compiled by every backend.
	IsValid bool

	// Warnings lists every problem found. Empty when IsValid is true.
	Warnings []string
}

// Validate checks a query before it reaches a backend:
//  1. Model and field names are non-empty and contain no double quote
//  2. Null comparisons are flagged (they never match)
//  3. Empty In lists are flagged (they never match)
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		IsValid:  len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// ValidFieldName reports whether a field name can be addressed in a JSON path.
func ValidFieldName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "\"\\")
}

type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addWarning("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addWarning("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.Model == "" {
		v.addWarning("select without model")
	}
	if sel.Limit < 0 {
		v.addWarning("negative limit %d", sel.Limit)
	}
	for _, s := range sel.Sort {
		v.checkField(s.Field)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) checkField(field string) {
	if !ValidFieldName(field) {
		v.addWarning("invalid field name %q", field)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		return
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addWarning("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	v.checkField(eq.Field)
	switch eq.Value.(type) {
	case nil, ir.IRNull:
		v.addWarning("field '%s' compared to null never matches", eq.Field)
	case ir.IRArray, ir.IRObject:
		v.addWarning("field '%s' compared to a composite value", eq.Field)
	}
}

func (v *validator) validateIn(in In) {
	v.checkField(in.Field)
	if len(in.Values) == 0 {
		v.addWarning("field '%s' matched against an empty list", in.Field)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}
