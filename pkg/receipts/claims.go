package receipts

import "github.com/commonshold/core/pkg/contracts"

// ClaimsFor maps an interaction-class action to the claim each side of the
// pair attests to. The provider and receiver claims are deliberately
// asymmetric so a receipt cannot be presented as the opposite role.
func ClaimsFor(action contracts.Action) (provider, receiver contracts.ClaimType) {
	switch action {
	case contracts.ActionTransfer, contracts.ActionTransferCustody:
		return contracts.ClaimCustodyTransfer, contracts.ClaimCustodyAcceptance
	case contracts.ActionCommitService:
		return contracts.ClaimServiceCommitment, contracts.ClaimServiceCommitment
	case contracts.ActionFulfillService:
		return contracts.ClaimServiceFulfillment, contracts.ClaimValidation
	case contracts.ActionDeclareEndOfLife:
		return contracts.ClaimLifecycleDeclaration, contracts.ClaimLifecycleValidation
	case contracts.ActionProduce:
		return contracts.ClaimContribution, contracts.ClaimValidation
	default:
		return contracts.ClaimContribution, contracts.ClaimValidation
	}
}
