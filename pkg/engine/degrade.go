package engine

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"

	"github.com/commonshold/core/pkg/contracts"
)

// DefaultDegradeExpression is the compiled-in fallback: only routine
// use and transfer survive a collaborator outage.
const DefaultDegradeExpression = `action in ["Use", "Transfer"]`

// DegradePolicy decides which actions stay allowed while the role source or
// rule store is unreachable. The allow-list is a CEL expression over the
// request, loaded from configuration as policy data, not code. Everything
// outside the list is conservatively rejected during an outage.
type DegradePolicy struct {
	mu  sync.RWMutex
	env *cel.Env
	prg cel.Program
	src string
}

// NewDegradePolicy compiles the expression; empty source selects the
// default.
func NewDegradePolicy(source string) (*DegradePolicy, error) {
	if source == "" {
		source = DefaultDegradeExpression
	}
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("action", types.StringType),
			decls.NewVariable("state", types.StringType),
			decls.NewVariable("quantity_delta", types.DoubleType),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	p := &DegradePolicy{env: env}
	if err := p.Load(source); err != nil {
		return nil, err
	}
	return p, nil
}

// Load swaps in a new expression at runtime. The previous program stays
// active if compilation fails.
func (p *DegradePolicy) Load(source string) error {
	ast, issues := p.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("degrade policy compilation failed: %w", issues.Err())
	}
	prg, err := p.env.Program(ast)
	if err != nil {
		return fmt.Errorf("degrade policy construction failed: %w", err)
	}
	p.mu.Lock()
	p.prg = prg
	p.src = source
	p.mu.Unlock()
	return nil
}

// Source returns the active expression.
func (p *DegradePolicy) Source() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.src
}

// Allows evaluates the request against the allow-list. Evaluation errors
// fail closed.
func (p *DegradePolicy) Allows(req contracts.TransitionRequest, quantityDelta float64) bool {
	p.mu.RLock()
	prg := p.prg
	p.mu.RUnlock()

	out, _, err := prg.Eval(map[string]any{
		"action":         string(req.Action),
		"state":          string(req.Resource.State),
		"quantity_delta": quantityDelta,
	})
	if err != nil {
		return false
	}
	allowed, ok := out.Value().(bool)
	return ok && allowed
}
