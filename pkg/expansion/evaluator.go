package expansion

import (
	"fmt"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

// Evaluator is the external collaborator spec §4.1 describes: "given
// (header_source, expression_source, bindings: name→value), returns either
// a single value (scalar/list/map) or an error. Evaluator is pure w.r.t.
// its inputs; side effects are forbidden." The engine only consumes this
// interface — it never binds to a concrete embedded language (spec §1
// Out of scope, §9 "Scripted-expression evaluator").
type Evaluator interface {
	Evaluate(headerSource, exprSource string, bindings map[string]any) (any, error)
}

// NullEvaluator rejects every `{{ }}` expression. It is the wired default
// when no real embedded-language binding is configured, so the engine
// fails loudly (ScriptEval) rather than silently treating scripted
// expressions as inert.
type NullEvaluator struct{}

func (NullEvaluator) Evaluate(_, exprSource string, _ map[string]any) (any, error) {
	return nil, apperrors.New(apperrors.KindScriptEval, "NullEvaluator.Evaluate", "", fmt.Errorf("no expression evaluator configured for %q", exprSource))
}

// StaticEvaluator is a reference/test implementation that looks up
// expression source verbatim in a fixed table. It honors the purity
// contract (no side effects, same input always yields same output) without
// embedding any general-purpose language.
type StaticEvaluator struct {
	Results map[string]any
}

func (e StaticEvaluator) Evaluate(_, exprSource string, _ map[string]any) (any, error) {
	v, ok := e.Results[exprSource]
	if !ok {
		return nil, apperrors.New(apperrors.KindScriptEval, "StaticEvaluator.Evaluate", "", fmt.Errorf("no result registered for expression %q", exprSource))
	}
	return v, nil
}
