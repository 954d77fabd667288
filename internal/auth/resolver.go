package auth

import (
	"context"
	"errors"
	"fmt"

	"local-delivery/internal/models"
)

// PartnerLookup finds the Partner record behind a user.
type PartnerLookup interface {
	FindPartnerByOwner(ctx context.Context, ownerID string) (*models.Partner, error)
	FindPartnerByPhone(ctx context.Context, phone string) (*models.Partner, error)
}

// PartnerResolver turns a partner actor into a partner id: the id embedded
// in the token first, then the Partner owned by the user, then the Partner
// registered under the user's phone.
type PartnerResolver struct {
	lookup PartnerLookup
}

func NewPartnerResolver(lookup PartnerLookup) *PartnerResolver {
	return &PartnerResolver{lookup: lookup}
}

// Resolve returns models.ErrNotOnboarded when no step yields a partner.
func (r *PartnerResolver) Resolve(ctx context.Context, a models.Actor) (string, error) {
	if a.Role != models.RolePartner {
		return "", models.ErrWrongRole
	}
	if a.PartnerID != "" {
		return a.PartnerID, nil
	}

	p, err := r.lookup.FindPartnerByOwner(ctx, a.ID)
	if err == nil {
		return p.ID, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return "", fmt.Errorf("auth.Resolve: by owner: %w", err)
	}

	if a.Phone != "" {
		p, err = r.lookup.FindPartnerByPhone(ctx, a.Phone)
		if err == nil {
			return p.ID, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return "", fmt.Errorf("auth.Resolve: by phone: %w", err)
		}
	}
	return "", models.ErrNotOnboarded
}

// WithPartner returns a copy of the actor carrying its resolved partner id.
func (r *PartnerResolver) WithPartner(ctx context.Context, a models.Actor) (models.Actor, error) {
	id, err := r.Resolve(ctx, a)
	if err != nil {
		return a, err
	}
	a.PartnerID = id
	return a, nil
}
