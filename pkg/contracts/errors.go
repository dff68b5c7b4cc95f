package contracts

import "errors"

// Sentinel errors for conditions that are genuinely exceptional. Permission
// denials, rule violations and illegal state transitions are not errors;
// they come back as rejected TransitionResults.
var (
	// ErrIdentityMismatch flags a request whose claimed agent does not match
	// the authenticated caller. Possible spoofing; always logged.
	ErrIdentityMismatch = errors.New("requesting agent is not the authenticated caller")

	// ErrCollaboratorUnavailable wraps failures of the role source or rule
	// store; the engine takes the degrade path instead of surfacing it.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrReceiptPairInconsistent aborts issuance; both halves are discarded.
	ErrReceiptPairInconsistent = errors.New("receipt pair inconsistent")

	// ErrInvalidDeclaration rejects a malformed or self-serving retirement
	// declaration, e.g. the declarer naming itself as validator.
	ErrInvalidDeclaration = errors.New("invalid lifecycle declaration")

	// ErrNotFound is returned by stores for unknown identifiers.
	ErrNotFound = errors.New("not found")
)
