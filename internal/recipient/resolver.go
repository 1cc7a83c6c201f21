package recipient

import (
	"context"

	"go.uber.org/zap"

	"github.com/mkarlsson/invoice-relay/internal/domain"
	"github.com/mkarlsson/invoice-relay/internal/lookup"
)

// Resolver runs the recipient stages of the item lifecycle: legal id
// extraction and validation, the protected-identity check, and party id
// resolution. Each stage returns the advanced item value; a terminal item
// passes through untouched.
type Resolver struct {
	identity lookup.IdentityClient
	party    lookup.PartyClient
	logger   *zap.Logger
}

func NewResolver(identity lookup.IdentityClient, party lookup.PartyClient, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Resolver{
		identity: identity,
		party:    party,
		logger:   logger,
	}
}

// ResolveLegalID extracts and validates the recipient legal id from the
// item filename.
func (r *Resolver) ResolveLegalID(item domain.Item) domain.Item {
	if !item.IsProcessable() {
		return item
	}

	legalID, ok := ExtractLegalID(item.Filename)
	if !ok || !ValidateLegalID(legalID) {
		r.logger.Info("recipient legal id not found or invalid",
			zap.String("filename", item.Filename),
		)
		return item.WithStatus(domain.StatusLegalIDNotFoundOrInvalid)
	}

	return item.WithLegalID(legalID).WithStatus(domain.StatusLegalIDFound)
}

// CheckProtection drops items addressed to protected identities. A lookup
// that fails at the transport layer counts as "not protected" so one flaky
// collaborator call can not block the pipeline; the failure is logged.
func (r *Resolver) CheckProtection(ctx context.Context, item domain.Item) domain.Item {
	if !item.IsProcessable() {
		return item
	}

	result := r.identity.CheckProtection(ctx, FullLegalID(item.LegalID))
	switch result.Outcome {
	case lookup.OutcomeFound:
		if result.Protected {
			r.logger.Info("recipient identity is protected, withholding dispatch",
				zap.String("legalId", MaskLegalID(item.LegalID)),
			)
			return item.WithStatus(domain.StatusLegalIDNotFoundOrInvalid)
		}
	case lookup.OutcomeTransportError:
		r.logger.Warn("identity protection lookup failed, treating as not protected",
			zap.String("legalId", MaskLegalID(item.LegalID)),
			zap.Error(result.Err),
		)
	}

	return item
}

// ResolveParty resolves the messaging party id for the item recipient.
// Lookup failures of any kind degrade to RECIPIENT_PARTY_ID_NOT_FOUND.
func (r *Resolver) ResolveParty(ctx context.Context, item domain.Item, municipality domain.MunicipalityID) domain.Item {
	if !item.IsProcessable() {
		return item
	}

	result := r.party.ResolveParty(ctx, FullLegalID(item.LegalID), municipality)
	switch result.Outcome {
	case lookup.OutcomeFound:
		return item.WithPartyID(result.PartyID).WithStatus(domain.StatusPartyIDFound)
	case lookup.OutcomeTransportError:
		r.logger.Info("party id lookup failed, treating as not found",
			zap.String("legalId", MaskLegalID(item.LegalID)),
			zap.String("municipality", municipality.String()),
			zap.Error(result.Err),
		)
	default:
		r.logger.Info("recipient party id not found",
			zap.String("legalId", MaskLegalID(item.LegalID)),
			zap.String("municipality", municipality.String()),
		)
	}

	return item.WithStatus(domain.StatusPartyIDNotFound)
}

// MaskLegalID keeps the birth date part of a legal id and hides the rest
// in log output.
func MaskLegalID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[:6] + "****"
}
