package recorder

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/pillbox/pkg/codec"
	"github.com/getmockd/pillbox/pkg/hooks"
)

// conditionEnv is what a record condition can see.
type conditionEnv struct {
	Service    string `expr:"service"`
	Operation  string `expr:"operation"`
	StatusCode int    `expr:"status_code"`
	Params     any    `expr:"params"`
	Data       any    `expr:"data"`
}

func newConditionEnv(e *hooks.Event) conditionEnv {
	env := conditionEnv{
		Service:   e.Service,
		Operation: e.Operation,
		Params:    codec.ToGo(e.Params),
	}
	if e.Response != nil {
		env.StatusCode = e.Response.StatusCode
		env.Data = codec.ToGo(e.Response.Parsed)
	}
	return env
}

// condition decides whether a call is recorded.
type condition struct {
	source  string
	program *vm.Program
}

func compileCondition(source string) (*condition, error) {
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(conditionEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile record condition: %w", err)
	}
	return &condition{source: source, program: program}, nil
}

// allows reports whether e should be recorded. A nil condition allows all.
func (c *condition) allows(e *hooks.Event) (bool, error) {
	if c == nil {
		return true, nil
	}
	out, err := expr.Run(c.program, newConditionEnv(e))
	if err != nil {
		return false, fmt.Errorf("evaluate record condition %q: %w", c.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}
