package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/queryir"
)

// recordColumns is the column list every record query selects.
const recordColumns = "model_id, id, data, version"

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// Every query ends with ORDER BY ... id ASC COLLATE BINARY so results are
// deterministic. Values and JSON paths are always parameters, never
// interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	switch query := q.(type) {
	case nil:
		return "", nil, fmt.Errorf("cannot compile nil query")
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	if q.Model == "" {
		return "", nil, fmt.Errorf("select without model")
	}

	where := "model_id = ?"
	params := []any{q.Model}
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where += " AND " + filterSQL
		params = append(params, filterParams...)
	}

	orderBy, orderParams, err := c.orderBy(q.Sort)
	if err != nil {
		return "", nil, err
	}
	params = append(params, orderParams...)

	sql := fmt.Sprintf("SELECT %s FROM records WHERE %s ORDER BY %s", recordColumns, where, orderBy)
	if q.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, q.Limit)
	}

	return sql, params, nil
}

// orderBy returns the ORDER BY list. The id tiebreaker is always last.
func (c *SQLCompiler) orderBy(sorts []queryir.Sort) (string, []any, error) {
	var parts []string
	var params []any
	for _, s := range sorts {
		expr, exprParams, err := fieldExpr(s.Field)
		if err != nil {
			return "", nil, fmt.Errorf("sort: %w", err)
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, expr+" "+dir)
		params = append(params, exprParams...)
	}
	parts = append(parts, "id ASC COLLATE BINARY")
	return strings.Join(parts, ", "), params, nil
}

// fieldExpr addresses a record field. The reserved id field is a column;
// everything else is read out of the JSON document with a parameterized
// path.
func fieldExpr(field string) (string, []any, error) {
	if !queryir.ValidFieldName(field) {
		return "", nil, fmt.Errorf("invalid field name %q", field)
	}
	if field == queryir.IDField {
		return "id", nil, nil
	}
	return "json_extract(data, ?)", []any{JSONPath(field)}, nil
}

// JSONPath returns the SQLite JSON path of a top-level record field.
func JSONPath(field string) string {
	return `$."` + field + `"`
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	expr, params, err := fieldExpr(eq.Field)
	if err != nil {
		return "", nil, err
	}
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return expr + " = ?", append(params, param), nil
}

func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}
	expr, params, err := fieldExpr(in.Field)
	if err != nil {
		return "", nil, err
	}
	placeholders := make([]string, len(in.Values))
	for i, v := range in.Values {
		param, err := irValueToParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("convert value %d: %w", i, err)
		}
		placeholders[i] = "?"
		params = append(params, param)
	}
	return fmt.Sprintf("%s IN (%s)", expr, strings.Join(placeholders, ", ")), params, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, "("+sql+")")
		allParams = append(allParams, params...)
	}

	return strings.Join(sqlParts, " AND "), allParams, nil
}

// irValueToParam converts an ir.IRValue to a Go native type for a SQL
// parameter. json_extract yields 1/0 for JSON booleans, which is how the
// driver binds Go bools.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRNumber:
		return float64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case nil, ir.IRNull:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
