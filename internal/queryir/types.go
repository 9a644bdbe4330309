package queryir

import "github.com/roach88/cascade/internal/ir"

// IDField is the reserved field name addressing the record identifier.
const IDField = "id"

// Query represents an abstract query in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition over record fields.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal_value
//   - In: field is one of the literal values
//   - And: all predicates must be true
type Predicate interface {
	predicateNode()
}

// Select reads the records of one model.
//
//	Select{
//	  Model:  "Flight",
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "carrier", Value: ir.IRString("KL")},
//	    In{Field: "id", Values: []ir.IRValue{ir.IRString("f-1"), ir.IRString("f-2")}},
//	  }},
//	  Sort: []Sort{{Field: "price", Desc: true}},
//	}
type Select struct {
	Model  string    // Model whose records are read
	Filter Predicate // nil = every record of the model
	Sort   []Sort    // applied before the id tiebreaker
	Limit  int       // 0 = unlimited
}

func (Select) queryNode() {}

// Sort orders results by one field.
type Sort struct {
	Field string
	Desc  bool
}

// Equals represents a field-equals-literal predicate.
// Null never equals anything; absent fields never match.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// In matches records whose field equals any of Values.
// An empty Values list matches nothing.
type In struct {
	Field  string
	Values []ir.IRValue
}

func (In) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// Empty Predicates means "always true".
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// IDIn is a convenience predicate selecting records by id.
func IDIn(ids ...string) In {
	vals := make([]ir.IRValue, len(ids))
	for i, id := range ids {
		vals[i] = ir.IRString(id)
	}
	return In{Field: IDField, Values: vals}
}

// ByID selects a single record by id.
func ByID(id string) Equals {
	return Equals{Field: IDField, Value: ir.IRString(id)}
}
