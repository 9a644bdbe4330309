package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/testutil"
)

const invoiceSeed = `
seed:
  records:
    - {model: Invoice, id: i1, fields: {number: INV-1}}
    - {model: Flight, id: f1, fields: {carrier: AF, price: 100}}
    - {model: Flight, id: f2, fields: {carrier: BA, price: 200}}
  links:
    - {model: Invoice, id: i1, field: flights, to: f1}
    - {model: Invoice, id: i1, field: flights, to: f2}
`

func parse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return scenario
}

func TestRun_SetCascades(t *testing.T) {
	scenario := parse(t, `
name: set_cascades
description: "A price change reaches the invoice formula"
`+invoiceSeed+`
steps:
  - set: {model: Flight, id: f1, fields: {price: 150}}
assertions:
  - type: operation_count
    step: 0
    count: 2
  - type: operation_contains
    model: Invoice
    id: i1
    expect: {totalPrice: 350, totalWithTax: 420}
  - type: record_equals
    model: Invoice
    id: i1
    expect: {totalPrice: 350, flightCount: 2, carriers: "AF, BA"}
`)

	result, err := Run(scenario, testutil.InvoiceModels())
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "set", result.Trace[0].Action)
	assert.Equal(t, "txn-3", result.Trace[0].TransactionID, "seed used txn-1 and txn-2")
}

func TestRun_LinkUnlinkDelete(t *testing.T) {
	scenario := parse(t, `
name: link_lifecycle
description: "Links drive summaries and lookups"
`+invoiceSeed+`
steps:
  - set: {model: Flight, id: f3, fields: {carrier: LH, price: 125}}
  - link: {model: Invoice, id: i1, field: flights, to: f3}
  - link: {model: Invoice, id: i1, field: flights, to: f3}
  - unlink: {model: Invoice, id: i1, field: flights, to: f3}
  - delete: {model: Flight, ids: [f2]}
assertions:
  - type: operation_contains
    step: 1
    model: Invoice
    id: i1
    expect: {totalPrice: 425, carriers: "AF, BA, LH"}
  - type: operation_contains
    step: 1
    model: Flight
    id: f3
    expect: {invoiceNumber: INV-1}
  - type: no_operations
    step: 2
  - type: record_equals
    model: Flight
    id: f3
    expect: {invoiceNumber: ""}
  - type: record_equals
    model: Invoice
    id: i1
    expect: {totalPrice: 100, flightCount: 1, carriers: AF, totalWithTax: 120}
`)

	result, err := Run(scenario, testutil.InvoiceModels())
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Trace, 5)
}

func TestRun_Recompute(t *testing.T) {
	scenario := parse(t, `
name: recompute_noop
description: "Recomputing fresh records changes nothing"
`+invoiceSeed+`
steps:
  - recompute: {model: Invoice}
  - recompute: {model: Flight, where: "carrier = AF"}
  - recompute: {model: Flight, ids: [f1, f2]}
assertions:
  - type: operation_count
    count: 0
`)

	result, err := Run(scenario, testutil.InvoiceModels())
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FailingAssertion(t *testing.T) {
	scenario := parse(t, `
name: wrong_total
description: "Reports mismatched values"
`+invoiceSeed+`
steps:
  - set: {model: Flight, id: f1, fields: {price: 150}}
assertions:
  - type: record_equals
    model: Invoice
    id: i1
    expect: {totalPrice: 999}
`)

	result, err := Run(scenario, testutil.InvoiceModels())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "totalPrice: got 350, want 999")
}

func TestRun_InlineSchema(t *testing.T) {
	scenario := parse(t, `
name: inline
description: "Models come from the scenario"
schema: |
  model: Order: fields: {
    qty:   {type: "number"}
    price: {type: "number"}
    total: {type: "formula", expr: "{qty} * {price}", result: "number"}
  }
steps:
  - set: {model: Order, id: o1, fields: {qty: 3, price: 4}}
assertions:
  - type: record_equals
    model: Order
    id: o1
    expect: {total: 12}
`)

	result, err := Run(scenario, nil)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SchemaErrors(t *testing.T) {
	noSchema := parse(t, `
name: no_schema
description: d
steps: [{set: {model: M, id: a}}]
assertions: [{type: operation_count, count: 0}]
`)
	_, err := Run(noSchema, nil)
	assert.ErrorContains(t, err, "no schema")

	bad := parse(t, `
name: bad_schema
description: d
schema: |
  model: M: fields: {a: {type: "lookup", link: "nope", field: "x"}}
steps: [{set: {model: M, id: a}}]
assertions: [{type: operation_count, count: 0}]
`)
	_, err = Run(bad, nil)
	assert.ErrorContains(t, err, "invalid schema")
}

func TestRun_StepError(t *testing.T) {
	scenario := parse(t, `
name: bad_link
description: "Linking a missing record fails the run"
`+invoiceSeed+`
steps:
  - link: {model: Invoice, id: i1, field: flights, to: ghost}
assertions:
  - type: operation_count
    count: 0
`)

	_, err := Run(scenario, testutil.InvoiceModels())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 0 (link)")
}
