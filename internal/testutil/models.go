package testutil

import "github.com/roach88/cascade/internal/ir"

// InvoiceModels returns the Invoice/Flight schema used across tests:
//
//	Invoice.flights  link -> Flight (inverse Flight.invoice)
//	Invoice.totalPrice = SUM(Flight.price)
//	Invoice.flightCount = COUNT(Flight.price)
//	Invoice.totalWithTax = round({totalPrice} * 1.2, 2)
//	Flight.invoiceNumber = lookup Invoice.number
func InvoiceModels() []ir.ModelSpec {
	two := 2
	return []ir.ModelSpec{
		{
			Name: "Invoice",
			Fields: []ir.FieldSpec{
				{ID: "number", Type: ir.FieldText},
				{ID: "flights", Type: ir.FieldLink, Model: "Flight", Inverse: "invoice"},
				{ID: "totalPrice", Type: ir.FieldSummary, Link: "flights", Field: "price", Op: "SUM", Precision: &two},
				{ID: "flightCount", Type: ir.FieldSummary, Link: "flights", Field: "price", Op: "COUNT"},
				{ID: "totalWithTax", Type: ir.FieldFormula, Expr: "round({totalPrice} * 1.2, 2)", Result: ir.FieldNumber},
				{ID: "carriers", Type: ir.FieldSummary, Link: "flights", Field: "carrier", Op: "CONCATENATE"},
			},
		},
		{
			Name: "Flight",
			Fields: []ir.FieldSpec{
				{ID: "carrier", Type: ir.FieldText},
				{ID: "price", Type: ir.FieldNumber},
				{ID: "invoice", Type: ir.FieldLink, Model: "Invoice", Inverse: "flights"},
				{ID: "invoiceNumber", Type: ir.FieldLookup, Link: "invoice", Field: "number"},
			},
		},
	}
}

// PingPongModels returns two models whose computed fields feed each other
// through a link, forming an A -> B -> A cycle.
//
//	A.out = {in} + 1, A.in = lookup B.out
//	B.out = {in} + 1, B.in = lookup A.out
func PingPongModels() []ir.ModelSpec {
	side := func(name, other string) ir.ModelSpec {
		return ir.ModelSpec{
			Name: name,
			Fields: []ir.FieldSpec{
				{ID: "peer", Type: ir.FieldLink, Model: other, Inverse: "peer"},
				{ID: "in", Type: ir.FieldLookup, Link: "peer", Field: "out"},
				{ID: "out", Type: ir.FieldFormula, Expr: "coalesce({in}, 0) + 1", Result: ir.FieldNumber},
			},
		}
	}
	return []ir.ModelSpec{side("A", "B"), side("B", "A")}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
