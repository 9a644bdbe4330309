package ir

// ModelSpec is a compiled model definition.
type ModelSpec struct {
	Name   string      `json:"name"`
	Fields []FieldSpec `json:"fields"`
}

// FieldSpec is a compiled field definition. Which attributes are set
// depends on Type:
//
//	link     Model, Inverse
//	lookup   Link, Field
//	summary  Link, Field, Op, Precision
//	formula  Expr, Result
type FieldSpec struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Model     string `json:"model,omitempty"`
	Inverse   string `json:"inverse,omitempty"`
	Link      string `json:"link,omitempty"`
	Field     string `json:"field,omitempty"`
	Op        string `json:"op,omitempty"`
	Precision *int   `json:"precision,omitempty"`
	Expr      string `json:"expr,omitempty"`
	Result    string `json:"result,omitempty"`
}

// Field types accepted in model definitions.
const (
	FieldText    = "text"
	FieldNumber  = "number"
	FieldBool    = "bool"
	FieldDate    = "date"
	FieldUser    = "user"
	FieldJSON    = "json"
	FieldLink    = "link"
	FieldLookup  = "lookup"
	FieldSummary = "summary"
	FieldFormula = "formula"
)

// ValidFieldTypes defines allowed field types.
var ValidFieldTypes = map[string]bool{
	FieldText:    true,
	FieldNumber:  true,
	FieldBool:    true,
	FieldDate:    true,
	FieldUser:    true,
	FieldJSON:    true,
	FieldLink:    true,
	FieldLookup:  true,
	FieldSummary: true,
	FieldFormula: true,
}

// Record is a schema-less record of a model.
type Record struct {
	ID      string   `json:"id"`
	ModelID string   `json:"model_id"`
	Fields  IRObject `json:"fields"`
	Version int64    `json:"version"`
}

// Clone returns a copy whose field map can be mutated freely.
func (r Record) Clone() Record {
	r.Fields = r.Fields.Clone()
	return r
}

// Link is one row of the link table. A logical relationship between two
// records is represented by a row whose X side names the link field it was
// created through; the Y side carries the inverse field, if any.
type Link struct {
	ID      string `json:"id"`
	ModelX  string `json:"model_x"`
	RecordX string `json:"record_x"`
	FieldX  string `json:"field_x"`
	ModelY  string `json:"model_y"`
	RecordY string `json:"record_y"`
	FieldY  string `json:"field_y"`
}

// Operation is one pending update in a transaction.
type Operation struct {
	Seq         int64    `json:"seq"`
	ModelID     string   `json:"model_id"`
	RecordID    string   `json:"record_id"`
	Updates     IRObject `json:"updates"`
	BaseVersion int64    `json:"base_version,omitempty"` // 0 disables the version check
}
