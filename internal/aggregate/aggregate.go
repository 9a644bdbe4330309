// Package aggregate implements the reducers behind summary fields.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// Op names a summary operation.
type Op string

const (
	Sum         Op = "SUM"
	Average     Op = "AVERAGE"
	Count       Op = "COUNT"
	Min         Op = "MIN"
	Max         Op = "MAX"
	Concatenate Op = "CONCATENATE"
	List        Op = "LIST"
	ListNames   Op = "LIST_NAMES"
)

// ValidOps defines allowed operations.
var ValidOps = map[Op]bool{
	Sum:         true,
	Average:     true,
	Count:       true,
	Min:         true,
	Max:         true,
	Concatenate: true,
	List:        true,
	ListNames:   true,
}

// ParseOp converts a schema operation name, case-insensitively.
func ParseOp(s string) (Op, error) {
	op := Op(strings.ToUpper(strings.TrimSpace(s)))
	if !ValidOps[op] {
		return "", fmt.Errorf("unknown summary operation %q", s)
	}
	return op, nil
}

// Numeric reports whether the operation yields a number.
func (op Op) Numeric() bool {
	switch op {
	case Sum, Average, Count, Min, Max:
		return true
	}
	return false
}

// Empty is the value of a summary with no linked records.
func (op Op) Empty() ir.IRValue {
	if op.Numeric() {
		return ir.IRNumber(0)
	}
	return ir.IRString("")
}

// NameResolver maps identifiers (typically user ids) to display names.
type NameResolver interface {
	ResolveNames(ctx context.Context, ids []string) (map[string]string, error)
}

// StaticNames is a NameResolver backed by a fixed map.
type StaticNames map[string]string

// ResolveNames implements NameResolver.
func (s StaticNames) ResolveNames(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := s[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// Options tune an aggregation.
type Options struct {
	// Precision rounds numeric results to this many decimals when set.
	Precision *int

	// Names resolves identifiers for LIST_NAMES. Without one, ids are kept.
	Names NameResolver
}

// Apply reduces the values gathered from linked records. A nil entry or
// IRNull stands for a record without the field: numeric operations skip
// it, LIST keeps it as null.
func Apply(ctx context.Context, op Op, values []ir.IRValue, opts Options) (ir.IRValue, error) {
	switch op {
	case Sum, Average, Count, Min, Max:
		return numeric(op, values, opts.Precision), nil
	case Concatenate:
		return concatenate(values), nil
	case List:
		return list(values), nil
	case ListNames:
		return listNames(ctx, values, opts.Names)
	default:
		return nil, fmt.Errorf("unknown summary operation %q", op)
	}
}

func numeric(op Op, values []ir.IRValue, precision *int) ir.IRValue {
	nums := numbers(values)

	var result float64
	switch op {
	case Count:
		result = float64(len(nums))
	case Sum:
		for _, n := range nums {
			result += n
		}
	case Average:
		if len(nums) > 0 {
			for _, n := range nums {
				result += n
			}
			result /= float64(len(nums))
		}
	case Min:
		if len(nums) > 0 {
			result = nums[0]
			for _, n := range nums[1:] {
				result = math.Min(result, n)
			}
		}
	case Max:
		if len(nums) > 0 {
			result = nums[0]
			for _, n := range nums[1:] {
				result = math.Max(result, n)
			}
		}
	}

	if precision != nil {
		result = Round(result, *precision)
	}
	return ir.IRNumber(result)
}

// Round rounds to the given number of decimals, half away from zero.
func Round(f float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(f*pow) / pow
}

// numbers flattens one level of arrays (lookups of multi-links) and keeps
// numbers and numeric strings.
func numbers(values []ir.IRValue) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range flatten(values) {
		switch val := v.(type) {
		case ir.IRNumber:
			if !val.IsNaN() {
				out = append(out, float64(val))
			}
		case ir.IRString:
			if f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64); err == nil && !math.IsNaN(f) {
				out = append(out, f)
			}
		}
	}
	return out
}

func flatten(values []ir.IRValue) []ir.IRValue {
	out := make([]ir.IRValue, 0, len(values))
	for _, v := range values {
		if arr, ok := v.(ir.IRArray); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func concatenate(values []ir.IRValue) ir.IRValue {
	parts := make([]string, 0, len(values))
	for _, v := range flatten(values) {
		if s, ok := Text(v); ok {
			parts = append(parts, s)
		}
	}
	return ir.IRString(strings.Join(parts, ", "))
}

func list(values []ir.IRValue) ir.IRValue {
	out := make(ir.IRArray, len(values))
	for i, v := range values {
		if v == nil {
			v = ir.IRNull{}
		}
		out[i] = v
	}
	return out
}

func listNames(ctx context.Context, values []ir.IRValue, names NameResolver) (ir.IRValue, error) {
	var ids []string
	for _, v := range flatten(values) {
		if s, ok := Text(v); ok && s != "" {
			ids = append(ids, s)
		}
	}

	resolved := map[string]string{}
	if names != nil && len(ids) > 0 {
		var err error
		resolved, err = names.ResolveNames(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("resolve names: %w", err)
		}
	}

	out := make(ir.IRArray, 0, len(ids))
	for _, id := range ids {
		if name, ok := resolved[id]; ok {
			out = append(out, ir.IRString(name))
			continue
		}
		out = append(out, ir.IRString(id))
	}
	return out, nil
}

// Text renders a scalar as display text. Null, undefined and composite
// values have no text form.
func Text(v ir.IRValue) (string, bool) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), true
	case ir.IRNumber:
		b, err := ir.MarshalIRValue(val)
		if err != nil {
			return "", false
		}
		return string(b), true
	case ir.IRBool:
		return strconv.FormatBool(bool(val)), true
	}
	return "", false
}
