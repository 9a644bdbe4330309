package schema

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/cascade/internal/aggregate"
	"github.com/roach88/cascade/internal/formula"
	"github.com/roach88/cascade/internal/ir"
)

// SourceRef names a computed field that depends on another field.
// LinkFieldID is empty when the dependency is within one record; otherwise
// it is the link field, on ModelID, through which the dependency flows.
type SourceRef struct {
	ModelID     string `json:"model_id"`
	FieldID     string `json:"field_id"`
	LinkFieldID string `json:"link_field_id,omitempty"`
}

// CrossRecord reports whether the dependency crosses a link.
func (s SourceRef) CrossRecord() bool {
	return s.LinkFieldID != ""
}

// Model is one model with its fields in declaration order.
type Model struct {
	ID     string
	Fields []Field

	byID     map[string]Field
	computed []Field
}

// Field returns a field by id.
func (m *Model) Field(id string) (Field, bool) {
	f, ok := m.byID[id]
	return f, ok
}

// ComputedFields returns lookup, summary and formula fields in
// declaration order.
func (m *Model) ComputedFields() []Field {
	return m.computed
}

// FieldIDs returns every field id in declaration order.
func (m *Model) FieldIDs() []string {
	ids := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		ids[i] = f.ID()
	}
	return ids
}

// Registry is the immutable schema view used by the engine. It is safe
// for concurrent use.
type Registry struct {
	specs  []ir.ModelSpec
	order  []string
	models map[string]*Model

	// sourceFor[model][field] lists the computed fields that must be
	// recomputed when field changes.
	sourceFor map[string]map[string][]SourceRef
}

// New builds a registry from compiled model specs.
//
// Structural problems (duplicate ids, unknown field types or operations)
// are errors. References to models or fields that do not exist are
// tolerated: the affected edges are dropped and logged, and propagation
// treats them as no-ops.
func New(specs []ir.ModelSpec) (*Registry, error) {
	r := &Registry{
		specs:     specs,
		models:    make(map[string]*Model, len(specs)),
		sourceFor: make(map[string]map[string][]SourceRef),
	}

	for _, spec := range specs {
		if _, dup := r.models[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate model %q", spec.Name)
		}
		m, err := buildModel(spec)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", spec.Name, err)
		}
		r.models[spec.Name] = m
		r.order = append(r.order, spec.Name)
	}

	r.resolveLookupTypes()
	r.buildSourceFor()
	return r, nil
}

func buildModel(spec ir.ModelSpec) (*Model, error) {
	m := &Model{ID: spec.Name, byID: make(map[string]Field, len(spec.Fields))}
	for _, fs := range spec.Fields {
		if fs.ID == "" {
			return nil, fmt.Errorf("field without id")
		}
		if _, dup := m.byID[fs.ID]; dup {
			return nil, fmt.Errorf("duplicate field %q", fs.ID)
		}
		f, err := fieldFromSpec(fs)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fs.ID, err)
		}
		m.Fields = append(m.Fields, f)
		m.byID[fs.ID] = f
		if IsComputed(f) {
			m.computed = append(m.computed, f)
		}
	}
	return m, nil
}

func fieldFromSpec(fs ir.FieldSpec) (Field, error) {
	switch fs.Type {
	case ir.FieldLink:
		return &Link{FieldID: fs.ID, ForeignModelID: fs.Model, ForeignLinkFieldID: fs.Inverse}, nil
	case ir.FieldLookup:
		return &Lookup{FieldID: fs.ID, LinkFieldID: fs.Link, ForeignFieldID: fs.Field}, nil
	case ir.FieldSummary:
		op, err := aggregate.ParseOp(fs.Op)
		if err != nil {
			return nil, err
		}
		return &Summary{FieldID: fs.ID, LinkFieldID: fs.Link, ForeignFieldID: fs.Field, Operation: op, Precision: fs.Precision}, nil
	case ir.FieldFormula:
		result := fs.Result
		if result == "" {
			result = ir.FieldText
		}
		return &Formula{FieldID: fs.ID, Expression: fs.Expr, SourceFieldIDs: formula.References(fs.Expr), ResultType: result}, nil
	default:
		if !ir.ValidFieldTypes[fs.Type] {
			return nil, fmt.Errorf("unknown field type %q", fs.Type)
		}
		return &Stored{FieldID: fs.ID, ValueType: fs.Type}, nil
	}
}

// resolveLookupTypes marks lookups numeric when the field they copy is.
// Lookups of lookups are followed; cycles resolve to non-numeric.
func (r *Registry) resolveLookupTypes() {
	visiting := map[*Lookup]bool{}
	var resolve func(modelID string, l *Lookup) bool
	resolve = func(modelID string, l *Lookup) bool {
		if visiting[l] {
			return false
		}
		visiting[l] = true
		defer delete(visiting, l)

		link, ok := r.linkField(modelID, l.LinkFieldID)
		if !ok {
			return false
		}
		foreign, ok := r.Field(link.ForeignModelID, l.ForeignFieldID)
		if !ok {
			return false
		}
		if fl, isLookup := foreign.(*Lookup); isLookup {
			return resolve(link.ForeignModelID, fl)
		}
		return IsNumeric(foreign)
	}

	for _, id := range r.order {
		for _, f := range r.models[id].Fields {
			if l, ok := f.(*Lookup); ok {
				l.Numeric = resolve(id, l)
			}
		}
	}
}

func (r *Registry) buildSourceFor() {
	for _, modelID := range r.order {
		m := r.models[modelID]
		for _, f := range m.computed {
			local := SourceRef{ModelID: modelID, FieldID: f.ID()}
			for _, src := range LocalSources(f) {
				if _, ok := m.byID[src]; !ok {
					slog.Warn("computed field references unknown field",
						"model_id", modelID, "field_id", f.ID(), "source", src)
					continue
				}
				r.addEdge(modelID, src, local)
			}

			linkFieldID, foreignFieldID := linkedSource(f)
			if linkFieldID == "" {
				continue
			}
			link, ok := r.linkField(modelID, linkFieldID)
			if !ok {
				slog.Warn("computed field has no usable link field",
					"model_id", modelID, "field_id", f.ID(), "link_field_id", linkFieldID)
				continue
			}
			if _, ok := r.Field(link.ForeignModelID, foreignFieldID); !ok {
				slog.Warn("computed field references unknown foreign field",
					"model_id", modelID, "field_id", f.ID(),
					"foreign_model_id", link.ForeignModelID, "foreign_field_id", foreignFieldID)
				continue
			}
			r.addEdge(link.ForeignModelID, foreignFieldID, SourceRef{
				ModelID:     modelID,
				FieldID:     f.ID(),
				LinkFieldID: linkFieldID,
			})
		}
	}
}

func linkedSource(f Field) (linkFieldID, foreignFieldID string) {
	switch v := f.(type) {
	case *Lookup:
		return v.LinkFieldID, v.ForeignFieldID
	case *Summary:
		return v.LinkFieldID, v.ForeignFieldID
	}
	return "", ""
}

func (r *Registry) addEdge(modelID, fieldID string, ref SourceRef) {
	byField, ok := r.sourceFor[modelID]
	if !ok {
		byField = make(map[string][]SourceRef)
		r.sourceFor[modelID] = byField
	}
	if slices.Contains(byField[fieldID], ref) {
		return
	}
	byField[fieldID] = append(byField[fieldID], ref)
}

func (r *Registry) linkField(modelID, fieldID string) (*Link, bool) {
	f, ok := r.Field(modelID, fieldID)
	if !ok {
		return nil, false
	}
	l, ok := f.(*Link)
	return l, ok
}

// Specs returns the model specs the registry was built from.
func (r *Registry) Specs() []ir.ModelSpec {
	return r.specs
}

// Model returns a model by id.
func (r *Registry) Model(id string) (*Model, bool) {
	m, ok := r.models[id]
	return m, ok
}

// ModelIDs returns model ids in declaration order.
func (r *Registry) ModelIDs() []string {
	return r.order
}

// Field returns a field of a model. Unknown model or field reports false.
func (r *Registry) Field(modelID, fieldID string) (Field, bool) {
	m, ok := r.models[modelID]
	if !ok {
		return nil, false
	}
	return m.Field(fieldID)
}

// LinkFieldByID returns a link field of a model.
func (r *Registry) LinkFieldByID(modelID, fieldID string) (*Link, bool) {
	return r.linkField(modelID, fieldID)
}

// FieldsByType returns the fields of a model with the given kind.
func (r *Registry) FieldsByType(modelID string, kind Kind) []Field {
	m, ok := r.models[modelID]
	if !ok {
		return []Field{}
	}
	out := []Field{}
	for _, f := range m.Fields {
		if f.Kind() == kind {
			out = append(out, f)
		}
	}
	return out
}

// LinkField returns the first link field of modelID pointing at
// foreignModelID.
func (r *Registry) LinkField(modelID, foreignModelID string) (*Link, bool) {
	for _, f := range r.FieldsByType(modelID, KindLink) {
		if l := f.(*Link); l.ForeignModelID == foreignModelID {
			return l, true
		}
	}
	return nil, false
}

// ComputedFields returns the computed fields of a model.
func (r *Registry) ComputedFields(modelID string) []Field {
	m, ok := r.models[modelID]
	if !ok {
		return []Field{}
	}
	return m.computed
}

// SourceFor returns the computed fields that depend on a field, local ones
// and cross-record ones.
func (r *Registry) SourceFor(modelID, fieldID string) []SourceRef {
	return r.sourceFor[modelID][fieldID]
}

// FormulaSourceFieldIDs returns the fields a formula field reads.
func (r *Registry) FormulaSourceFieldIDs(modelID, fieldID string) []string {
	f, ok := r.Field(modelID, fieldID)
	if !ok {
		return nil
	}
	if fm, ok := f.(*Formula); ok {
		return fm.SourceFieldIDs
	}
	return nil
}

// ActiveFields returns the field ids a model currently defines.
func (r *Registry) ActiveFields(modelID string) []string {
	m, ok := r.models[modelID]
	if !ok {
		return []string{}
	}
	return m.FieldIDs()
}

// ConnectedModels returns every model reachable from modelID through link
// fields or dependency edges, in either direction, starting with modelID
// itself. A change in any of them can cascade into the others.
func (r *Registry) ConnectedModels(modelID string) []string {
	if _, ok := r.models[modelID]; !ok {
		return []string{}
	}

	adj := make(map[string][]string)
	connect := func(a, b string) {
		if a == b {
			return
		}
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}
	for _, id := range r.order {
		for _, f := range r.FieldsByType(id, KindLink) {
			if l := f.(*Link); r.models[l.ForeignModelID] != nil {
				connect(id, l.ForeignModelID)
			}
		}
		for _, fieldID := range r.models[id].FieldIDs() {
			for _, ref := range r.sourceFor[id][fieldID] {
				connect(id, ref.ModelID)
			}
		}
	}

	seen := map[string]bool{modelID: true}
	out := []string{modelID}
	for i := 0; i < len(out); i++ {
		for _, next := range adj[out[i]] {
			if !seen[next] {
				seen[next] = true
				out = append(out, next)
			}
		}
	}
	return out
}
