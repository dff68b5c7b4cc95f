// Package retirement runs the multi-validator, time-delayed protocol behind
// irreversible end-of-life declarations. A declaration collects independent
// validator evidence, all historical custodians get a challenge window, and
// finalization is driven by a scheduled, idempotent expiry check, never by
// a blocking wait.
package retirement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commonshold/core/pkg/contracts"
	"github.com/commonshold/core/pkg/evidence"
)

// DeclarationState tags the declaration lifecycle.
type DeclarationState string

const (
	StateDeclared   DeclarationState = "DECLARED"
	StateValidating DeclarationState = "VALIDATING"
	StateChallenged DeclarationState = "CHALLENGED"
	StateReviewed   DeclarationState = "REVIEWED"
	StateFinalized  DeclarationState = "FINALIZED"
)

// Evidence is a structured attachment supporting a declaration or a
// validation, e.g. inspection notes with an archived blob reference.
type Evidence struct {
	SubmittedBy string    `json:"submitted_by"`
	Kind        string    `json:"kind"`
	Notes       string    `json:"notes"`
	BlobHash    string    `json:"blob_hash,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Challenge halts auto-finalization until a manual review closes it.
type Challenge struct {
	RaisedBy string    `json:"raised_by"`
	Reason   string    `json:"reason"`
	RaisedAt time.Time `json:"raised_at"`
}

// Declaration is one in-flight end-of-life protocol run.
type Declaration struct {
	ID                 string              `json:"id"`
	ResourceID         string              `json:"resource_id"`
	DeclaredBy         string              `json:"declared_by"`
	Evidence           Evidence            `json:"evidence"`
	RequiredValidators int                 `json:"required_validators"`
	Validations        map[string]Evidence `json:"validations"`
	NotifiedCustodians []string            `json:"notified_custodians"`
	Challenge          *Challenge          `json:"challenge,omitempty"`
	State              DeclarationState    `json:"state"`
	WindowEnds         time.Time           `json:"window_ends"`
	DeclaredAt         time.Time           `json:"declared_at"`
	FinalizedAt        *time.Time          `json:"finalized_at,omitempty"`
	FalseDeclaration   bool                `json:"false_declaration,omitempty"`
}

// CustodianSource lists every identity that ever held the resource; they are
// the parties entitled to challenge.
type CustodianSource interface {
	Custodians(resourceID string) []string
}

// Notifier fans a declaration out to the custodians who may challenge it.
type Notifier interface {
	NotifyCustodians(ctx context.Context, declarationID, resourceID string, custodians []string) error
}

// Sink applies the terminal outcome: the resource moves to the disposal
// custodian and its state becomes Retired.
type Sink interface {
	Retire(ctx context.Context, resourceID, disposalCustodian string) error
}

// NegativeSignaler feeds a false declaration back into the reputation
// ledger of the declaring agent.
type NegativeSignaler interface {
	SignalFalseDeclaration(ctx context.Context, declarer, reviewer, resourceID, reason string) error
}

// Metrics counts finalized declarations; nil disables instrumentation.
type Metrics interface {
	RetirementFinalized(ctx context.Context, challenged bool)
}

// Config carries the protocol's tunable thresholds. MinValidators is the
// finalization floor; MaxValidators is the validator pool expected for
// high-value resources.
type Config struct {
	MinValidators     int           `yaml:"min_validators"`      // finalization floor, default 2
	MaxValidators     int           `yaml:"max_validators"`      // pool for high-value resources, default 3
	HighValueQuantity float64       `yaml:"high_value_quantity"` // quantity at which MaxValidators applies
	ChallengeWindow   time.Duration `yaml:"challenge_window"`    // 7-14 days
	DisposalCustodian string        `yaml:"disposal_custodian"`
}

func DefaultConfig() Config {
	return Config{
		MinValidators:     2,
		MaxValidators:     3,
		HighValueQuantity: 100,
		ChallengeWindow:   10 * 24 * time.Hour,
		DisposalCustodian: "commons:disposal",
	}
}

// Coordinator tracks declarations and drives their state machine.
type Coordinator struct {
	mu           sync.Mutex
	declarations map[string]*Declaration
	cfg          Config
	custodians   CustodianSource
	notifier     Notifier
	sink         Sink
	signals      NegativeSignaler
	archive      evidence.Store
	metrics      Metrics
	clock        func() time.Time
}

func NewCoordinator(cfg Config, custodians CustodianSource, notifier Notifier, sink Sink, signals NegativeSignaler) *Coordinator {
	if cfg.MinValidators < 2 {
		cfg.MinValidators = 2
	}
	if cfg.MaxValidators < cfg.MinValidators {
		cfg.MaxValidators = cfg.MinValidators
	}
	if cfg.ChallengeWindow < 7*24*time.Hour {
		cfg.ChallengeWindow = 7 * 24 * time.Hour
	}
	if cfg.ChallengeWindow > 14*24*time.Hour {
		cfg.ChallengeWindow = 14 * 24 * time.Hour
	}
	return &Coordinator{
		declarations: make(map[string]*Declaration),
		cfg:          cfg,
		custodians:   custodians,
		notifier:     notifier,
		sink:         sink,
		signals:      signals,
		clock:        time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (c *Coordinator) WithClock(clock func() time.Time) *Coordinator {
	c.clock = clock
	return c
}

// WithArchive attaches the evidence archive. When set, every evidence blob
// reference is checked against the archive before it is accepted.
func (c *Coordinator) WithArchive(archive evidence.Store) *Coordinator {
	c.archive = archive
	return c
}

// WithMetrics attaches the finalization counter.
func (c *Coordinator) WithMetrics(m Metrics) *Coordinator {
	c.metrics = m
	return c
}

func (c *Coordinator) checkArchived(ctx context.Context, ev Evidence) error {
	if c.archive == nil || ev.BlobHash == "" {
		return nil
	}
	ok, err := c.archive.Exists(ctx, ev.BlobHash)
	if err != nil {
		return fmt.Errorf("%w: evidence reference %s: %v", contracts.ErrInvalidDeclaration, ev.BlobHash, err)
	}
	if !ok {
		return fmt.Errorf("%w: evidence %s is not archived", contracts.ErrInvalidDeclaration, ev.BlobHash)
	}
	return nil
}

// Declare opens the protocol for a resource. The declarer must attach
// evidence and may not later validate or receive the retired resource.
func (c *Coordinator) Declare(ctx context.Context, resource contracts.Resource, declaredBy string, evidence Evidence) (*Declaration, error) {
	if resource.State == contracts.StateRetired {
		return nil, fmt.Errorf("%w: resource %s is already retired", contracts.ErrInvalidDeclaration, resource.ID)
	}
	if evidence.Notes == "" && evidence.BlobHash == "" {
		return nil, fmt.Errorf("%w: declaration requires evidence", contracts.ErrInvalidDeclaration)
	}
	if c.cfg.DisposalCustodian == declaredBy {
		return nil, fmt.Errorf("%w: declarer may not be the disposal sink", contracts.ErrInvalidDeclaration)
	}
	if err := c.checkArchived(ctx, evidence); err != nil {
		return nil, err
	}

	now := c.clock()
	// The validator pool asked for; finalization itself needs only the
	// MinValidators floor.
	required := c.cfg.MinValidators
	if resource.Quantity >= c.cfg.HighValueQuantity {
		required = c.cfg.MaxValidators
	}

	evidence.SubmittedBy = declaredBy
	evidence.SubmittedAt = now

	notified := c.custodians.Custodians(resource.ID)
	decl := &Declaration{
		ID:                 uuid.New().String(),
		ResourceID:         resource.ID,
		DeclaredBy:         declaredBy,
		Evidence:           evidence,
		RequiredValidators: required,
		Validations:        make(map[string]Evidence),
		NotifiedCustodians: notified,
		State:              StateDeclared,
		WindowEnds:         now.Add(c.cfg.ChallengeWindow),
		DeclaredAt:         now,
	}

	if err := c.notifier.NotifyCustodians(ctx, decl.ID, resource.ID, notified); err != nil {
		return nil, fmt.Errorf("custodian notification failed: %w", err)
	}

	c.mu.Lock()
	c.declarations[decl.ID] = decl
	c.mu.Unlock()
	return decl, nil
}

// SubmitValidation records one independent expert's evidence and approval.
func (c *Coordinator) SubmitValidation(ctx context.Context, declarationID, validatorID string, evidence Evidence) error {
	if err := c.checkArchived(ctx, evidence); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	decl, ok := c.declarations[declarationID]
	if !ok {
		return fmt.Errorf("declaration %s: %w", declarationID, contracts.ErrNotFound)
	}
	if validatorID == decl.DeclaredBy {
		return fmt.Errorf("%w: declarer %s may not validate its own declaration",
			contracts.ErrInvalidDeclaration, validatorID)
	}
	switch decl.State {
	case StateDeclared, StateValidating:
		// Open for validation.
	default:
		return fmt.Errorf("declaration %s is %s; validation closed", declarationID, decl.State)
	}
	if _, dup := decl.Validations[validatorID]; dup {
		return fmt.Errorf("validator %s already validated declaration %s", validatorID, declarationID)
	}
	if evidence.Notes == "" && evidence.BlobHash == "" {
		return fmt.Errorf("%w: validation requires evidence", contracts.ErrInvalidDeclaration)
	}

	evidence.SubmittedBy = validatorID
	evidence.SubmittedAt = c.clock()
	decl.Validations[validatorID] = evidence
	decl.State = StateValidating
	return nil
}

// RaiseChallenge halts auto-finalization. Only a notified past custodian
// may challenge, and only while the window is open.
func (c *Coordinator) RaiseChallenge(_ context.Context, declarationID, challengerID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	decl, ok := c.declarations[declarationID]
	if !ok {
		return fmt.Errorf("declaration %s: %w", declarationID, contracts.ErrNotFound)
	}
	if decl.State == StateFinalized || decl.State == StateReviewed {
		return fmt.Errorf("declaration %s is %s; challenge window closed", declarationID, decl.State)
	}
	now := c.clock()
	if now.After(decl.WindowEnds) {
		return fmt.Errorf("challenge window for declaration %s ended %s", declarationID, decl.WindowEnds)
	}
	if !containsString(decl.NotifiedCustodians, challengerID) {
		return fmt.Errorf("%s is not a notified custodian of resource %s", challengerID, decl.ResourceID)
	}
	if decl.Challenge != nil {
		return fmt.Errorf("declaration %s is already challenged", declarationID)
	}

	decl.Challenge = &Challenge{RaisedBy: challengerID, Reason: reason, RaisedAt: now}
	decl.State = StateChallenged
	return nil
}

// Review closes a challenged declaration. A false declaration parks in
// REVIEWED and feeds a negative reputation signal back to the declaring
// agent; a confirmed one returns to VALIDATING and re-enters the
// finalization path on the next expiry check.
func (c *Coordinator) Review(ctx context.Context, declarationID, reviewerID string, falseDeclaration bool) error {
	c.mu.Lock()
	decl, ok := c.declarations[declarationID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("declaration %s: %w", declarationID, contracts.ErrNotFound)
	}
	if decl.State != StateChallenged {
		c.mu.Unlock()
		return fmt.Errorf("declaration %s is %s; only challenged declarations are reviewed", declarationID, decl.State)
	}
	if falseDeclaration {
		decl.State = StateReviewed
	} else {
		decl.State = StateValidating
	}
	decl.FalseDeclaration = falseDeclaration
	declarer := decl.DeclaredBy
	resourceID := decl.ResourceID
	reason := ""
	if decl.Challenge != nil {
		reason = decl.Challenge.Reason
	}
	c.mu.Unlock()

	if falseDeclaration && c.signals != nil {
		if err := c.signals.SignalFalseDeclaration(ctx, declarer, reviewerID, resourceID, reason); err != nil {
			return fmt.Errorf("review recorded but negative signal failed: %w", err)
		}
	}
	return nil
}

// CheckExpiry is the scheduled trigger. Declarations whose validation count
// reached the MinValidators floor, whose window has elapsed and which carry
// no open challenge finalize into the disposal sink. Safe to call any
// number of times.
func (c *Coordinator) CheckExpiry(ctx context.Context) ([]string, error) {
	now := c.clock()

	c.mu.Lock()
	var due []*Declaration
	for _, decl := range c.declarations {
		if decl.State == StateValidating &&
			len(decl.Validations) >= c.cfg.MinValidators &&
			now.After(decl.WindowEnds) {
			due = append(due, decl)
		}
	}
	c.mu.Unlock()

	var finalized []string
	for _, decl := range due {
		if err := c.sink.Retire(ctx, decl.ResourceID, c.cfg.DisposalCustodian); err != nil {
			return finalized, fmt.Errorf("declaration %s: disposal failed: %w", decl.ID, err)
		}
		c.mu.Lock()
		if decl.State == StateValidating { // re-check under lock; idempotent
			decl.State = StateFinalized
			t := now
			decl.FinalizedAt = &t
			finalized = append(finalized, decl.ID)
			if c.metrics != nil {
				c.metrics.RetirementFinalized(ctx, decl.Challenge != nil)
			}
		}
		c.mu.Unlock()
	}
	return finalized, nil
}

// Get returns a copy of a declaration.
func (c *Coordinator) Get(declarationID string) (*Declaration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	decl, ok := c.declarations[declarationID]
	if !ok {
		return nil, fmt.Errorf("declaration %s: %w", declarationID, contracts.ErrNotFound)
	}
	cp := *decl
	return &cp, nil
}

func containsString(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}
