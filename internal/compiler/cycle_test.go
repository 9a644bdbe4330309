package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/schema"
	"github.com/roach88/cascade/internal/testutil"
)

func TestAnalyzeCycles_Empty(t *testing.T) {
	warnings := AnalyzeCycles(nil)
	assert.Empty(t, warnings, "no models should produce no warnings")
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	warnings := AnalyzeCycles(testutil.InvoiceModels())
	assert.Empty(t, warnings, "invoice schema is acyclic")
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	specs := []ir.ModelSpec{{
		Name: "Counter",
		Fields: []ir.FieldSpec{
			{ID: "n", Type: ir.FieldFormula, Expr: "coalesce({n}, 0) + 1", Result: ir.FieldNumber},
		},
	}}

	warnings := AnalyzeCycles(specs)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Counter.n", "Counter.n"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "depends on itself")
}

func TestAnalyzeCycles_LocalTwoFieldCycle(t *testing.T) {
	specs := []ir.ModelSpec{{
		Name: "M",
		Fields: []ir.FieldSpec{
			{ID: "a", Type: ir.FieldFormula, Expr: "{b}"},
			{ID: "b", Type: ir.FieldFormula, Expr: "{a}"},
			{ID: "c", Type: ir.FieldFormula, Expr: "{a}"},
		},
	}}

	warnings := AnalyzeCycles(specs)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"M.a", "M.b", "M.a"}, warnings[0].Path)
	assert.Equal(t, "Computed field cycle detected: M.a → M.b → M.a", warnings[0].Message)
}

func TestAnalyzeCycles_CrossModelCycle(t *testing.T) {
	warnings := AnalyzeCycles(testutil.PingPongModels())
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A.in", "A.out", "B.in", "B.out", "A.in"}, warnings[0].Path)
}

func TestAnalyzeCycles_Deterministic(t *testing.T) {
	first := AnalyzeCycles(testutil.PingPongModels())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AnalyzeCycles(testutil.PingPongModels()))
	}
}

func TestAnalyzeCycles_InvalidSchema(t *testing.T) {
	specs := []ir.ModelSpec{
		{Name: "A", Fields: []ir.FieldSpec{{ID: "x", Type: ir.FieldText}}},
		{Name: "A", Fields: []ir.FieldSpec{{ID: "x", Type: ir.FieldText}}},
	}
	assert.Empty(t, AnalyzeCycles(specs))
}

func TestBuildDependencyGraph_Invoice(t *testing.T) {
	reg, err := schema.New(testutil.InvoiceModels())
	require.NoError(t, err)

	graph := buildDependencyGraph(reg)
	assert.Equal(t, []string{"Invoice.flightCount", "Invoice.totalPrice"}, graph["Flight.price"])
	assert.Equal(t, []string{"Invoice.totalWithTax"}, graph["Invoice.totalPrice"])
	assert.Equal(t, []string{"Flight.invoiceNumber"}, graph["Invoice.number"])
	assert.Empty(t, graph["Invoice.totalWithTax"])
}

func TestHasSelfLoop(t *testing.T) {
	graph := dependencyGraph{
		"a": {"a", "b"},
		"b": {"c"},
	}
	assert.True(t, hasSelfLoop("a", graph))
	assert.False(t, hasSelfLoop("b", graph))
	assert.False(t, hasSelfLoop("missing", graph))
}

func TestTarjanSCC_DAG(t *testing.T) {
	graph := dependencyGraph{
		"a": {"b"},
		"b": {"c"},
	}
	sccs := tarjanSCC(graph)
	for _, scc := range sccs {
		assert.Len(t, scc, 1, "DAG components are single nodes")
	}
}

func TestTarjanSCC_TwoNodeCycle(t *testing.T) {
	graph := dependencyGraph{
		"a": {"b"},
		"b": {"a"},
	}
	sccs := tarjanSCC(graph)
	require.Len(t, sccs, 1)
	assert.Equal(t, []string{"a", "b"}, sccs[0])
}

func TestReconstructCyclePath_Empty(t *testing.T) {
	assert.Equal(t, []string{}, reconstructCyclePath(nil, dependencyGraph{}))
}
