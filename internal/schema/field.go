// Package schema holds the runtime model registry: every field of every
// model as a closed set of field kinds, plus the precomputed sourceFor
// edges that drive propagation.
package schema

import "github.com/roach88/cascade/internal/aggregate"

// Kind identifies a field variant.
type Kind int

const (
	KindStored Kind = iota
	KindLookup
	KindSummary
	KindFormula
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindStored:
		return "stored"
	case KindLookup:
		return "lookup"
	case KindSummary:
		return "summary"
	case KindFormula:
		return "formula"
	case KindLink:
		return "link"
	}
	return "unknown"
}

// Field is a sealed sum type over the field kinds. Dispatch with a type
// switch on *Stored, *Lookup, *Summary, *Formula and *Link.
type Field interface {
	ID() string
	Kind() Kind
	field()
}

// Stored is a plain value written by users or imports.
type Stored struct {
	FieldID   string
	ValueType string // ir.FieldText, ir.FieldNumber, ...
}

// Lookup copies a field from the records linked through LinkFieldID.
type Lookup struct {
	FieldID        string
	LinkFieldID    string
	ForeignFieldID string

	// Numeric is resolved from the foreign field when the registry is built.
	Numeric bool
}

// Summary aggregates a field over the records linked through LinkFieldID.
type Summary struct {
	FieldID        string
	LinkFieldID    string
	ForeignFieldID string
	Operation      aggregate.Op
	Precision      *int
}

// Formula is an expression over fields of the same record.
type Formula struct {
	FieldID        string
	Expression     string
	SourceFieldIDs []string
	ResultType     string
}

// Link relates records of this model to records of ForeignModelID.
// ForeignLinkFieldID is the inverse field on the foreign model, if any.
type Link struct {
	FieldID            string
	ForeignModelID     string
	ForeignLinkFieldID string
}

func (f *Stored) ID() string  { return f.FieldID }
func (f *Lookup) ID() string  { return f.FieldID }
func (f *Summary) ID() string { return f.FieldID }
func (f *Formula) ID() string { return f.FieldID }
func (f *Link) ID() string    { return f.FieldID }

func (*Stored) Kind() Kind  { return KindStored }
func (*Lookup) Kind() Kind  { return KindLookup }
func (*Summary) Kind() Kind { return KindSummary }
func (*Formula) Kind() Kind { return KindFormula }
func (*Link) Kind() Kind    { return KindLink }

func (*Stored) field()  {}
func (*Lookup) field()  {}
func (*Summary) field() {}
func (*Formula) field() {}
func (*Link) field()    {}

// IsComputed reports whether the engine owns the field's value.
func IsComputed(f Field) bool {
	switch f.(type) {
	case *Lookup, *Summary, *Formula:
		return true
	}
	return false
}

// IsNumeric reports whether the field holds numbers.
func IsNumeric(f Field) bool {
	switch v := f.(type) {
	case *Stored:
		return v.ValueType == "number"
	case *Lookup:
		return v.Numeric
	case *Summary:
		return v.Operation.Numeric()
	case *Formula:
		return v.ResultType == "number"
	}
	return false
}

// LocalSources returns the fields of the same record whose change makes
// f stale: formula inputs, or the link field of a lookup or summary.
func LocalSources(f Field) []string {
	switch v := f.(type) {
	case *Formula:
		return v.SourceFieldIDs
	case *Lookup:
		return []string{v.LinkFieldID}
	case *Summary:
		return []string{v.LinkFieldID}
	}
	return nil
}
