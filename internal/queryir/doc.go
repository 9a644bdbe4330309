// Package queryir provides the abstract query representation used by the
// storage collaborator's find operations.
//
// Records are schema-less JSON documents, so predicates name record
// fields rather than columns. The reserved field "id" addresses the record
// identifier. Backends (see querysql) decide how a field is reached.
//
//	[CLI --where / engine] → [Query IR] → [SQL Backend]
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	case And:
//	}
//
// Every query has a deterministic order: explicit Sort keys first, then
// the record id as tiebreaker.
package queryir
