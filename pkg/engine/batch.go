package engine

import (
	"context"

	"github.com/commonshold/core/pkg/contracts"
)

// BatchRequestTransitions evaluates a set of requests, grouping them by
// specification so each distinct rule set is resolved once per batch.
// Results come back in input order; one rejection never aborts the rest of
// the batch.
func (e *Engine) BatchRequestTransitions(ctx context.Context, callerID string, reqs []contracts.TransitionRequest) []contracts.TransitionResult {
	results := make([]contracts.TransitionResult, len(reqs))

	groups := make(map[string][]int)
	order := make([]string, 0, len(reqs))
	for i, req := range reqs {
		specID := req.Resource.SpecificationID
		if _, seen := groups[specID]; !seen {
			order = append(order, specID)
		}
		groups[specID] = append(groups[specID], i)
	}

	specCache := make(map[string]*contracts.ResourceSpecification, len(order))
	for _, specID := range order {
		for _, i := range groups[specID] {
			results[i] = e.request(ctx, callerID, reqs[i], specCache)
		}
	}
	return results
}
