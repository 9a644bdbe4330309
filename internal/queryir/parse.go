package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// ParseFilter parses a command-line filter into a predicate.
//
// Supported expression formats:
//   - "field == value" or "field = value" → Equals
//   - "field in (a, b, c)" → In
//   - "expr1 AND expr2" → And
//
// Values are JSON literals ("paid", 12, true, null); anything that is not
// valid JSON is taken as a plain string. An empty filter returns nil,
// which selects every record.
func ParseFilter(filter string) (Predicate, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}

	parts := splitByAnd(filter)
	if len(parts) == 1 {
		return parseComparison(parts[0])
	}

	predicates := make([]Predicate, 0, len(parts))
	for _, part := range parts {
		p, err := parseComparison(part)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, p)
	}
	return And{Predicates: predicates}, nil
}

// splitByAnd splits a filter by AND (case insensitive).
func splitByAnd(filter string) []string {
	var parts []string
	remaining := filter
	for {
		idx := strings.Index(strings.ToLower(remaining), " and ")
		if idx == -1 {
			return append(parts, strings.TrimSpace(remaining))
		}
		parts = append(parts, strings.TrimSpace(remaining[:idx]))
		remaining = remaining[idx+len(" and "):]
	}
}

func parseComparison(expr string) (Predicate, error) {
	if field, list, ok := cutIn(expr); ok {
		if err := checkField(field, expr); err != nil {
			return nil, err
		}
		var values []ir.IRValue
		for _, v := range strings.Split(list, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, parseValue(v))
			}
		}
		return In{Field: field, Values: values}, nil
	}

	if strings.Contains(expr, "!=") {
		return nil, fmt.Errorf("unsupported operator != in: %s", expr)
	}
	field, value, ok := strings.Cut(expr, "==")
	if !ok {
		field, value, ok = strings.Cut(expr, "=")
	}
	if !ok {
		return nil, fmt.Errorf("unsupported expression (no == found): %s", expr)
	}

	field = strings.TrimSpace(field)
	if err := checkField(field, expr); err != nil {
		return nil, err
	}
	return Equals{Field: field, Value: parseValue(strings.TrimSpace(value))}, nil
}

// cutIn splits "field in (a, b)".
func cutIn(expr string) (field, list string, ok bool) {
	idx := strings.Index(strings.ToLower(expr), " in ")
	if idx == -1 {
		return "", "", false
	}
	rest := strings.TrimSpace(expr[idx+len(" in "):])
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", "", false
	}
	return strings.TrimSpace(expr[:idx]), rest[1 : len(rest)-1], true
}

func checkField(field, expr string) error {
	if !ValidFieldName(field) {
		return fmt.Errorf("invalid field name %q in: %s", field, expr)
	}
	return nil
}

// parseValue decodes a literal; single quotes are accepted for strings.
func parseValue(s string) ir.IRValue {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return ir.IRString(s[1 : len(s)-1])
	}
	return ir.ParseLiteral(s)
}
