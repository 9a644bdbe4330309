// Package engine propagates record changes through computed fields.
//
// A model's computed fields are lookups (copy a field of linked records),
// summaries (aggregate a field of linked records) and formulas (an
// expression over the record's own fields). When a record changes, the
// engine recomputes the computed fields that depend on the change, then
// the computed fields of linked records that depend on those, and so on,
// collecting every resulting update into one txn.Transaction.
//
// Orchestrators:
//
//	UpdateOneDeep                           one record, explicit changes
//	UpdateManyDeep / UpdateAllDeep          full recompute, pre-warmed bulk scope
//	UpdateLink                              both endpoints of a changed link
//	UpdateForeignRecords[ForMultipleRecords] neighbours of deleted records
//
// Each call takes one token from the TokenGenerator. The token is the
// transaction id and names the call's cache scope ("op:<token>" or
// "bulk:<token>"), which is disposed when the call commits.
//
// Propagation:
//
// Work is a FIFO worklist of records to recompute. Pending work for the
// same record is coalesced: changes merge, and the lowest depth wins.
// Every hop through a link adds one to the depth; at MaxDepth the cascade
// is truncated and a DEPTH_EXCEEDED warning is returned. A cascade
// processes at most MaxSteps records.
//
// Reads go through the cache scope and are patched with the
// transaction's pending updates, so later steps see earlier writes.
// Records found missing are marked deleted in the scope and never read
// again during the call.
//
// Failures never abort a cascade: unresolvable models and fields, failed
// evaluations and storage errors are logged and returned as
// RuntimeError warnings, and the affected field or record is skipped.
package engine
