// Package harness runs YAML scenarios against the computed-field engine.
//
// A scenario seeds a fresh in-memory database, applies a sequence of
// mutations, and checks the records and the operations each mutation
// committed.
//
// # Scenario Format
//
//	name: invoice_link
//	description: "Linking a flight recomputes the invoice totals"
//	schema: |
//	  model: Invoice: fields: {
//	    flights:    {type: "link", model: "Flight", inverse: "invoice"}
//	    totalPrice: {type: "summary", link: "flights", field: "price", op: "SUM"}
//	  }
//	  model: Flight: fields: {
//	    price:   {type: "number"}
//	    invoice: {type: "link", model: "Invoice", inverse: "flights"}
//	  }
//	seed:
//	  records:
//	    - {model: Invoice, id: i1}
//	    - {model: Flight, id: f1, fields: {price: 100}}
//	steps:
//	  - link: {model: Invoice, id: i1, field: flights, to: f1}
//	assertions:
//	  - type: record_equals
//	    model: Invoice
//	    id: i1
//	    expect: {totalPrice: 100}
//
// schema may be omitted when the caller passes the models to Run.
// Steps are one of set, link, unlink, delete or recompute.
//
// # Assertion Types
//
//   - record_equals: the stored record includes the expected fields
//   - operation_count: a step (or the whole run) applied exactly count operations
//   - operation_contains: some operation on model/id carried the expected updates
//   - no_operations: a step committed nothing
//
// # Deterministic Testing
//
// Transaction ids come from a counting generator and the trace leaves them
// out, so TraceJSON is stable across runs and suitable for golden files.
package harness
