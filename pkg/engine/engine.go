// Package engine orchestrates transitions: identity binding, state
// compatibility, permission check, rule evaluation, snapshot computation,
// event recording and receipt issuance, strictly in that order.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/commonshold/core/pkg/audit"
	"github.com/commonshold/core/pkg/contracts"
	"github.com/commonshold/core/pkg/lifecycle"
	"github.com/commonshold/core/pkg/receipts"
	"github.com/commonshold/core/pkg/roles"
	"github.com/commonshold/core/pkg/rules"
)

// PermissionChecker resolves the caller's roles for an action.
type PermissionChecker interface {
	Check(ctx context.Context, agentID string, action contracts.Action) (roles.CheckResult, error)
}

// RuleEvaluator is the pure governance evaluator.
type RuleEvaluator interface {
	Evaluate(req contracts.TransitionRequest, ruleSet []contracts.GovernanceRule) ([]contracts.RuleReceipt, bool)
}

// SpecSource resolves a resource specification and its attached rules.
type SpecSource interface {
	Spec(ctx context.Context, specID string) (*contracts.ResourceSpecification, error)
}

// Registry is the authoritative resource state, backed by the
// content-addressed store.
type Registry interface {
	Resource(ctx context.Context, id string) (*contracts.Resource, error)
	Save(ctx context.Context, r contracts.Resource) error
}

// EventRecorder appends the audit event for an approved transition.
type EventRecorder interface {
	Record(req contracts.TransitionRequest, quantityDelta float64) (*contracts.EconomicEvent, error)
}

// ReceiptIssuer mints the bilateral pair for interaction-class actions.
type ReceiptIssuer interface {
	Issue(ctx context.Context, req receipts.IssueRequest) (*contracts.ReceiptPair, error)
}

// UsageRecorder consumes usage-limit tokens once a transition is approved.
type UsageRecorder interface {
	Record(resourceID, agentID string, maxPerWindow, windowSeconds int)
}

// Metrics receives decision outcomes; nil disables instrumentation.
type Metrics interface {
	Transition(ctx context.Context, action contracts.Action, outcome string)
}

// Engine wires the collaborators together.
type Engine struct {
	checker  PermissionChecker
	rules    RuleEvaluator
	specs    SpecSource
	registry Registry
	recorder EventRecorder
	issuer   ReceiptIssuer
	usage    UsageRecorder
	degrade  *DegradePolicy
	metrics  Metrics
	trail    audit.Logger
	logger   *slog.Logger
	timeout  time.Duration
	clock    func() time.Time
}

// Option configures optional collaborators.
type Option func(*Engine)

func WithIssuer(i ReceiptIssuer) Option { return func(e *Engine) { e.issuer = i } }

func WithUsageRecorder(u UsageRecorder) Option { return func(e *Engine) { e.usage = u } }

func WithMetrics(m Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithAuditTrail(l audit.Logger) Option { return func(e *Engine) { e.trail = l } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithTimeout(d time.Duration) Option { return func(e *Engine) { e.timeout = d } }

func WithDegradePolicy(p *DegradePolicy) Option { return func(e *Engine) { e.degrade = p } }

func WithClock(clock func() time.Time) Option { return func(e *Engine) { e.clock = clock } }

func New(checker PermissionChecker, evaluator RuleEvaluator, specs SpecSource,
	registry Registry, recorder EventRecorder, opts ...Option) (*Engine, error) {

	degrade, err := NewDegradePolicy("")
	if err != nil {
		return nil, err
	}
	e := &Engine{
		checker:  checker,
		rules:    evaluator,
		specs:    specs,
		registry: registry,
		recorder: recorder,
		degrade:  degrade,
		logger:   slog.Default(),
		timeout:  2 * time.Second,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RequestTransition runs the full orchestration for one request. callerID is
// the authenticated identity of the submitter; a mismatch with the request's
// agent is rejected before anything else runs.
func (e *Engine) RequestTransition(ctx context.Context, callerID string, req contracts.TransitionRequest) contracts.TransitionResult {
	return e.request(ctx, callerID, req, nil)
}

// request is the shared single/batch path. specCache, when non-nil, holds
// specifications already resolved for this batch.
func (e *Engine) request(ctx context.Context, callerID string, req contracts.TransitionRequest,
	specCache map[string]*contracts.ResourceSpecification) contracts.TransitionResult {

	result := e.evaluate(ctx, callerID, req, specCache)
	if e.trail != nil {
		if err := audit.RecordDecision(ctx, e.trail, callerID, req, result); err != nil {
			e.logger.Error("audit trail write failed",
				"resource", req.Resource.ID, "error", err)
		}
	}
	return result
}

func (e *Engine) evaluate(ctx context.Context, callerID string, req contracts.TransitionRequest,
	specCache map[string]*contracts.ResourceSpecification) contracts.TransitionResult {

	result := contracts.TransitionResult{EvaluatedAt: e.clock()}

	// 1. Identity binding.
	if callerID == "" || callerID != req.AgentID {
		e.logger.Warn("identity mismatch on transition request",
			"caller", callerID, "claimed_agent", req.AgentID, "resource", req.Resource.ID)
		result.Code = contracts.RejectIdentityMismatch
		result.Reasons = []string{"NotAuthor: requesting agent does not match the authenticated caller"}
		e.count(ctx, req.Action, "rejected")
		return result
	}

	stored, err := e.registry.Resource(ctx, req.Resource.ID)
	if err != nil || stored == nil {
		result.Code = contracts.RejectInvalidStateTransition
		result.Reasons = []string{fmt.Sprintf("resource %s does not exist", req.Resource.ID)}
		e.count(ctx, req.Action, "rejected")
		return result
	}

	// The stored snapshot is authoritative, not the caller's copy.
	req.Resource = *stored

	// 2. State compatibility.
	if ok, reason := lifecycle.Allows(req.Resource.State, req.Action); !ok {
		result.Code = contracts.RejectInvalidStateTransition
		result.Reasons = []string{reason}
		e.count(ctx, req.Action, "rejected")
		return result
	}

	delta := lifecycle.QuantityDelta(req.Action, req.Context.QuantityDelta)

	// 3. Permission check, bounded.
	check, err := e.checkPermission(ctx, req.AgentID, req.Action)
	if err != nil {
		return e.degraded(ctx, req, delta, err)
	}
	if !check.Allowed {
		result.Code = contracts.RejectPermissionDenied
		result.Reasons = []string{check.Status}
		result.NextSteps = []string{requiredRoleStep(check.RequiredRoles)}
		e.count(ctx, req.Action, "rejected")
		return result
	}

	// 4. Governance rules, bounded.
	spec, err := e.resolveSpec(ctx, req.Resource.SpecificationID, specCache)
	if err != nil {
		return e.degraded(ctx, req, delta, err)
	}
	ruleReceipts, passed := e.rules.Evaluate(req, spec.Rules)
	result.RuleReceipts = ruleReceipts
	if !passed {
		result.Code = contracts.RejectRuleViolation
		for _, r := range ruleReceipts {
			if !r.Passed {
				result.Reasons = append(result.Reasons, r.Reason)
			}
		}
		result.NextSteps = []string{"resolve every listed rule violation and resubmit"}
		e.count(ctx, req.Action, "rejected")
		return result
	}

	return e.approve(ctx, req, spec, delta, &result)
}

// approve runs steps 5-7: snapshot, event, receipts.
func (e *Engine) approve(ctx context.Context, req contracts.TransitionRequest,
	spec *contracts.ResourceSpecification, delta float64, result *contracts.TransitionResult) contracts.TransitionResult {

	next, err := e.applySnapshot(ctx, req, delta)
	if err != nil {
		result.Code = contracts.RejectRuleViolation
		result.Reasons = []string{err.Error()}
		e.count(ctx, req.Action, "rejected")
		return *result
	}

	event, err := e.recorder.Record(req, delta)
	if err != nil {
		// An approval without its audit event is worse than a rejection.
		result.Code = contracts.RejectCollaboratorUnavailable
		result.Reasons = []string{fmt.Sprintf("audit event not recorded: %v", err)}
		e.count(ctx, req.Action, "rejected")
		return *result
	}

	e.consumeUsage(req, spec)

	result.Accepted = true
	result.Resource = next
	result.Event = event

	e.issueReceipts(ctx, req, event, result)

	e.count(ctx, req.Action, "approved")
	return *result
}

// issueReceipts mints the bilateral pair for an interaction-class approval.
// Issuance needs only local keys and the pair store, so it runs on the
// degraded path too. A failure never revokes the approval.
func (e *Engine) issueReceipts(ctx context.Context, req contracts.TransitionRequest,
	event *contracts.EconomicEvent, result *contracts.TransitionResult) {

	if !req.Action.InteractionClass() || e.issuer == nil {
		return
	}
	if event.Provider == event.Receiver {
		// A custodian acting on their own resource has no counterparty to
		// countersign, so no pair can exist for this event.
		e.logger.Info("interaction has no counterparty, skipping receipt pair",
			"event", event.ID, "agent", event.Provider, "action", string(req.Action))
		return
	}
	if _, err := e.issuer.Issue(ctx, receipts.IssueRequest{
		Event:           *event,
		CommitmentID:    req.Context.ProcessRef,
		ProviderMetrics: contracts.PerformanceMetrics{Timeliness: 1, Completeness: 1, Accuracy: 1},
		ReceiverMetrics: contracts.PerformanceMetrics{Timeliness: 1, Completeness: 1, Accuracy: 1},
		Context:         req.Context.Note,
	}); err != nil {
		e.logger.Error("receipt issuance failed after approval",
			"event", event.ID, "error", err)
		result.NextSteps = append(result.NextSteps, "receipt issuance failed; reissue from the recorded event")
	}
}

// applySnapshot computes and persists the successor resource.
func (e *Engine) applySnapshot(ctx context.Context, req contracts.TransitionRequest, delta float64) (*contracts.Resource, error) {
	nextState, err := lifecycle.Next(req.Resource.State, req.Action)
	if err != nil {
		return nil, err
	}

	next := req.Resource
	next.State = nextState
	next.Quantity = req.Resource.Quantity + delta
	if next.Quantity < 0 {
		return nil, fmt.Errorf("insufficient quantity: %v %s on hand, delta %v",
			req.Resource.Quantity, req.Resource.Unit, delta)
	}

	switch req.Action {
	case contracts.ActionTransfer, contracts.ActionTransferCustody:
		next.Custodian = req.Context.TargetCustodian
	case contracts.ActionMove:
		next.Location = req.Context.TargetLocation
	}

	if err := e.registry.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("snapshot not persisted: %w", err)
	}
	return &next, nil
}

// degraded is the outage path: the CEL allow-list decides whether a low-risk
// action proceeds with a manual-review flag, everything else is rejected.
// A high-risk action is never silently approved during an outage.
func (e *Engine) degraded(ctx context.Context, req contracts.TransitionRequest, delta float64, cause error) contracts.TransitionResult {
	result := contracts.TransitionResult{EvaluatedAt: e.clock(), Degraded: true}

	e.logger.Warn("collaborator unavailable, entering degraded evaluation",
		"action", string(req.Action), "resource", req.Resource.ID, "cause", cause)

	if !e.degrade.Allows(req, delta) {
		result.Code = contracts.RejectCollaboratorUnavailable
		result.Reasons = []string{
			fmt.Sprintf("collaborator unavailable: %v", cause),
			fmt.Sprintf("action %s is not on the degraded-mode allow-list", req.Action),
		}
		result.NextSteps = []string{"retry once the role and rule sources are reachable"}
		e.count(ctx, req.Action, "rejected_degraded")
		return result
	}

	next, err := e.applySnapshot(ctx, req, delta)
	if err != nil {
		result.Code = contracts.RejectRuleViolation
		result.Reasons = []string{err.Error()}
		e.count(ctx, req.Action, "rejected_degraded")
		return result
	}
	event, err := e.recorder.Record(req, delta)
	if err != nil {
		result.Code = contracts.RejectCollaboratorUnavailable
		result.Reasons = []string{fmt.Sprintf("audit event not recorded: %v", err)}
		e.count(ctx, req.Action, "rejected_degraded")
		return result
	}

	result.Accepted = true
	result.Resource = next
	result.Event = event
	result.NextSteps = []string{"manual review recommended: approved under degraded evaluation"}
	e.issueReceipts(ctx, req, event, &result)
	e.count(ctx, req.Action, "approved_degraded")
	return result
}

// checkPermission bounds the collaborator call so an unresponsive role
// source cannot hang the engine.
func (e *Engine) checkPermission(ctx context.Context, agentID string, action contracts.Action) (roles.CheckResult, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		check roles.CheckResult
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		check, err := e.checker.Check(cctx, agentID, action)
		ch <- outcome{check, err}
	}()
	select {
	case o := <-ch:
		return o.check, o.err
	case <-cctx.Done():
		return roles.CheckResult{}, fmt.Errorf("%w: permission check timed out after %s",
			contracts.ErrCollaboratorUnavailable, e.timeout)
	}
}

// resolveSpec consults the batch cache before the spec source, so one batch
// resolves each distinct rule set exactly once.
func (e *Engine) resolveSpec(ctx context.Context, specID string,
	cache map[string]*contracts.ResourceSpecification) (*contracts.ResourceSpecification, error) {

	if cache != nil {
		if spec, ok := cache[specID]; ok {
			return spec, nil
		}
	}
	spec, err := e.loadSpec(ctx, specID)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache[specID] = spec
	}
	return spec, nil
}

func (e *Engine) loadSpec(ctx context.Context, specID string) (*contracts.ResourceSpecification, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	spec, err := e.specs.Spec(cctx, specID)
	if err != nil {
		return nil, fmt.Errorf("%w: rules for specification %s unreachable: %v",
			contracts.ErrCollaboratorUnavailable, specID, err)
	}
	return spec, nil
}

func (e *Engine) consumeUsage(req contracts.TransitionRequest, spec *contracts.ResourceSpecification) {
	if e.usage == nil {
		return
	}
	for _, rule := range spec.Rules {
		if rule.Type != contracts.RuleUsageLimit {
			continue
		}
		maxPerWindow := intFromParams(rule.Params, "max_per_window")
		if maxPerWindow <= 0 {
			continue
		}
		windowSeconds := intFromParams(rule.Params, "window_seconds")
		if windowSeconds <= 0 {
			windowSeconds = 86400
		}
		e.usage.Record(req.Resource.ID, req.AgentID, maxPerWindow, windowSeconds)
	}
}

func (e *Engine) count(ctx context.Context, action contracts.Action, outcome string) {
	if e.metrics != nil {
		e.metrics.Transition(ctx, action, outcome)
	}
}

func requiredRoleStep(required []roles.Role) string {
	names := make([]string, len(required))
	for i, r := range required {
		names[i] = string(r)
	}
	return fmt.Sprintf("acquire required role: %v", names)
}

func intFromParams(params map[string]any, key string) int {
	switch t := params[key].(type) {
	case int:
		return t
	case float64:
		return int(t)
	}
	return 0
}

// Compile-time wiring checks against the concrete collaborators.
var (
	_ PermissionChecker = (*roles.Checker)(nil)
	_ RuleEvaluator     = (*rules.Evaluator)(nil)
	_ ReceiptIssuer     = (*receipts.Issuer)(nil)
	_ UsageRecorder     = (*rules.RateMeter)(nil)
)
