package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/commonshold/core/pkg/contracts"
	"github.com/commonshold/core/pkg/rules"
)

// SpecRegistry owns resource specifications and the governance rules
// attached to them. Rules are validated against their parameter schema at
// attach time and are immutable afterwards; changing governance means
// registering a superseding specification under a strictly higher version.
type SpecRegistry struct {
	mu     sync.RWMutex
	byID   map[string]contracts.ResourceSpecification
	byName map[string]string // name -> current spec ID
	clock  func() time.Time
}

func NewSpecRegistry() *SpecRegistry {
	return &SpecRegistry{
		byID:   make(map[string]contracts.ResourceSpecification),
		byName: make(map[string]string),
		clock:  time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (r *SpecRegistry) WithClock(clock func() time.Time) *SpecRegistry {
	r.clock = clock
	return r
}

// Register validates and stores a specification. A spec with the same name
// as an existing one must carry a strictly higher semver; it then becomes
// the current version for that name. Earlier versions stay resolvable by ID
// so resources instantiated from them keep their governance.
func (r *SpecRegistry) Register(spec contracts.ResourceSpecification) (contracts.ResourceSpecification, error) {
	if spec.Name == "" {
		return spec, fmt.Errorf("specification needs a name")
	}
	version, err := semver.NewVersion(spec.Version)
	if err != nil {
		return spec, fmt.Errorf("specification version %q is not semver: %w", spec.Version, err)
	}
	for i := range spec.Rules {
		rule := &spec.Rules[i]
		if rule.ID == "" {
			rule.ID = uuid.New().String()
		}
		if err := rules.ValidateParams(*rule); err != nil {
			return spec, fmt.Errorf("rule rejected: %w", err)
		}
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = r.clock()
		}
	}
	if spec.ID == "" {
		spec.ID = uuid.New().String()
	}
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = r.clock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if currentID, ok := r.byName[spec.Name]; ok {
		current := r.byID[currentID]
		currentVersion, err := semver.NewVersion(current.Version)
		if err == nil && !version.GreaterThan(currentVersion) {
			return spec, fmt.Errorf("version %s does not supersede current %s for %s",
				spec.Version, current.Version, spec.Name)
		}
	}
	if _, dup := r.byID[spec.ID]; dup {
		return spec, fmt.Errorf("specification %s already registered", spec.ID)
	}

	r.byID[spec.ID] = spec
	r.byName[spec.Name] = spec.ID
	return spec, nil
}

// Spec resolves a specification by ID.
func (r *SpecRegistry) Spec(_ context.Context, id string) (*contracts.ResourceSpecification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("specification %s: %w", id, contracts.ErrNotFound)
	}
	return &spec, nil
}

// Current resolves the newest version registered under a name.
func (r *SpecRegistry) Current(name string) (*contracts.ResourceSpecification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("specification named %q: %w", name, contracts.ErrNotFound)
	}
	spec := r.byID[id]
	return &spec, nil
}
