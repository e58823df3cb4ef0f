package listing

import (
	"encoding/json"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RowRule is a compiled boolean expression evaluated against one row.
// The row is exposed to the expression as `row`, e.g.
// `row.status == "archived" || row.locked == true`.
type RowRule struct {
	source string
	prog   *vm.Program
}

// CompileRowRule compiles expression. An empty expression yields a nil rule,
// which never matches.
func CompileRowRule(expression string) (*RowRule, error) {
	if expression == "" {
		return nil, nil
	}
	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile row rule %q: %w", expression, err)
	}
	return &RowRule{source: expression, prog: prog}, nil
}

// String returns the expression source.
func (r *RowRule) String() string {
	if r == nil {
		return ""
	}
	return r.source
}

// Match reports whether row satisfies the rule. Evaluation errors count as
// no match.
func (r *RowRule) Match(row Row) bool {
	if r == nil || r.prog == nil {
		return false
	}
	result, err := expr.Run(r.prog, map[string]any{"row": ruleEnv(row)})
	if err != nil {
		return false
	}
	ok, _ := result.(bool)
	return ok
}

// ruleEnv converts json.Number values so expressions can compare them with
// numeric literals.
func ruleEnv(row Row) map[string]any {
	env := make(map[string]any, len(row))
	for k, v := range row {
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				env[k] = f
				continue
			}
		}
		env[k] = v
	}
	return env
}
