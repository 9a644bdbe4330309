package harness

import (
	"context"
	"fmt"

	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/queryir"
	"github.com/roach88/cascade/internal/schema"
	"github.com/roach88/cascade/internal/session"
	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/internal/testutil"
)

// DefaultUser is recorded on transactions of scenarios that set no user.
const DefaultUser = "harness"

// Harness executes one scenario against a session.
type Harness struct {
	session *session.Session
	user    string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with
// counting transaction ids ("txn-1", "txn-2", ...) so traces are
// reproducible. models is used when the scenario declares no inline
// schema.
//
// Execution flow:
// 1. Compile the schema and open a fresh database
// 2. Import and compute the seed data
// 3. Execute the steps, tracing what each committed
// 4. Evaluate assertions and return the result
func Run(scenario *Scenario, models []ir.ModelSpec) (*Result, error) {
	specs, err := scenarioModels(scenario, models)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	sess, err := newSession(st, specs)
	if err != nil {
		return nil, err
	}

	h := &Harness{session: sess, user: scenario.User}
	if h.user == "" {
		h.user = DefaultUser
	}

	ctx := context.Background()

	results, err := sess.Import(ctx, &scenario.Seed, h.user)
	if err != nil {
		return nil, fmt.Errorf("failed to import seed: %w", err)
	}
	for _, res := range results {
		if err := res.Err(); err != nil {
			return nil, fmt.Errorf("failed to compute seed: %w", err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		stepResults, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action(), err)
		}
		result.AddStep(i, step.Action(), stepResults...)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newSession(st *store.Store, specs []ir.ModelSpec) (*session.Session, error) {
	if errs := compiler.ValidateModels(specs); len(errs) > 0 {
		return nil, fmt.Errorf("invalid schema: %w", errs[0])
	}
	reg, err := schema.New(specs)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return session.New(st, reg,
		engine.WithTokenGenerator(testutil.NewCountingTokenGenerator("txn")),
	), nil
}

// scenarioModels compiles the scenario's inline schema, or falls back to
// models.
func scenarioModels(scenario *Scenario, models []ir.ModelSpec) ([]ir.ModelSpec, error) {
	if scenario.Schema == "" {
		if len(models) == 0 {
			return nil, fmt.Errorf("scenario %s: no schema", scenario.Name)
		}
		return models, nil
	}

	v := cuecontext.New().CompileString(scenario.Schema)
	specs, err := compiler.CompileModels(v)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: compile schema: %w", scenario.Name, err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("scenario %s: schema declares no models", scenario.Name)
	}
	return specs, nil
}

// execute runs one step through the session.
func (h *Harness) execute(ctx context.Context, step Step) ([]engine.Result, error) {
	s := h.session
	var (
		res engine.Result
		err error
	)

	switch {
	case step.Set != nil:
		changes, convErr := toObject(step.Set.Fields)
		if convErr != nil {
			return nil, convErr
		}
		res, err = s.Set(ctx, step.Set.Model, step.Set.ID, changes, h.user)
	case step.Link != nil:
		l := step.Link
		res, err = s.Link(ctx, l.Model, l.ID, l.Field, l.To, h.user)
	case step.Unlink != nil:
		l := step.Unlink
		res, err = s.Unlink(ctx, l.Model, l.ID, l.Field, l.To, h.user)
	case step.Delete != nil:
		res, err = s.Delete(ctx, step.Delete.Model, step.Delete.IDs, h.user)
	case step.Recompute != nil:
		r := step.Recompute
		filter, parseErr := queryir.ParseFilter(r.Where)
		if parseErr != nil {
			return nil, parseErr
		}
		res, err = s.Recompute(ctx, r.Model, r.IDs, filter, h.user)
	default:
		return nil, fmt.Errorf("empty step")
	}

	if err != nil {
		return nil, err
	}
	return []engine.Result{res}, nil
}

// toObject converts YAML-decoded fields to an IRObject.
func toObject(fields map[string]any) (ir.IRObject, error) {
	v, err := ir.FromGo(fields)
	if err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	obj, _ := v.(ir.IRObject)
	if obj == nil {
		obj = ir.IRObject{}
	}
	return obj, nil
}
