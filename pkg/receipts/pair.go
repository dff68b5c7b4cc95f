package receipts

import (
	"fmt"
	"time"

	"github.com/commonshold/core/pkg/contracts"
)

// ValidatePair enforces the structural invariants of a receipt pair: both
// halves reference the same event, identities are exactly swapped, and the
// signing timestamps sit within the tolerance window. A pair failing any of
// these is invalid as a whole and must be discarded.
func ValidatePair(pair contracts.ReceiptPair, tolerance time.Duration) error {
	p, r := pair.Provider, pair.Receiver

	if p.EventID == "" || p.EventID != r.EventID {
		return fmt.Errorf("%w: event references differ (%q vs %q)",
			contracts.ErrReceiptPairInconsistent, p.EventID, r.EventID)
	}
	if p.OwnerID != r.Counterparty || r.OwnerID != p.Counterparty {
		return fmt.Errorf("%w: identities are not swapped (%s/%s vs %s/%s)",
			contracts.ErrReceiptPairInconsistent,
			p.OwnerID, p.Counterparty, r.OwnerID, r.Counterparty)
	}
	if p.OwnerID == r.OwnerID {
		return fmt.Errorf("%w: both halves owned by %s", contracts.ErrReceiptPairInconsistent, p.OwnerID)
	}
	skew := p.Signature.SignedAt.Sub(r.Signature.SignedAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return fmt.Errorf("%w: signing timestamps %s apart exceed tolerance %s",
			contracts.ErrReceiptPairInconsistent, skew, tolerance)
	}
	if p.Signature.ContentHash != r.Signature.ContentHash {
		return fmt.Errorf("%w: content hashes differ", contracts.ErrReceiptPairInconsistent)
	}
	return nil
}

// VerifyPair checks both signatures and the structural invariants together.
func VerifyPair(pair contracts.ReceiptPair, tolerance time.Duration) error {
	if err := ValidatePair(pair, tolerance); err != nil {
		return err
	}
	for _, half := range []contracts.ParticipationReceipt{pair.Provider, pair.Receiver} {
		ok, err := VerifyReceipt(half)
		if err != nil {
			return fmt.Errorf("receipt %s: %w", half.ID, err)
		}
		if !ok {
			return fmt.Errorf("%w: signature on receipt %s does not verify",
				contracts.ErrReceiptPairInconsistent, half.ID)
		}
	}
	return nil
}
