package lookup

import (
	"context"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

// Outcome classifies a collaborator lookup so callers can branch
// exhaustively instead of interpreting thrown transport errors.
type Outcome string

const (
	OutcomeFound          Outcome = "FOUND"
	OutcomeNotFound       Outcome = "NOT_FOUND"
	OutcomeTransportError Outcome = "TRANSPORT_ERROR"
)

func (o Outcome) String() string { return string(o) }

// ProtectionResult is the identity-protection answer for one legal id.
// Err is populated only for OutcomeTransportError.
type ProtectionResult struct {
	Outcome   Outcome
	Protected bool
	Err       error
}

// PartyResult is the party-id resolution answer for one legal id.
type PartyResult struct {
	Outcome Outcome
	PartyID string
	Err     error
}

// IdentityClient checks whether a legal id belongs to a protected identity.
type IdentityClient interface {
	CheckProtection(ctx context.Context, legalID string) ProtectionResult
}

// PartyClient resolves the messaging party id for a legal id within a
// municipality.
type PartyClient interface {
	ResolveParty(ctx context.Context, legalID string, municipality domain.MunicipalityID) PartyResult
}
