package service

import (
	"context"

	"github.com/pinnity/pinnity/internal/audit"
	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/metrics"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
)

// BusinessService manages vendor business profiles.
type BusinessService struct {
	base
}

func NewBusinessService(store repository.Store, opts ...Option) *BusinessService {
	return &BusinessService{base: newBase(store, opts)}
}

// ForUser returns the business owned by userID.
func (s *BusinessService) ForUser(ctx context.Context, userID id.ID) (*model.Business, error) {
	b, err := s.store.GetBusinessByUser(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrBusinessNotFound)
	}
	return b, nil
}

func (s *BusinessService) Get(ctx context.Context, businessID id.ID) (*model.Business, error) {
	b, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, mapNotFound(err, ErrBusinessNotFound)
	}
	return b, nil
}

// UpdateProfile edits the vendor's own profile. Verification is untouched.
func (s *BusinessService) UpdateProfile(ctx context.Context, userID id.ID, in BusinessInput) (*model.Business, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	b, err := s.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	in.apply(b)
	if err := s.store.UpdateBusinessProfile(ctx, b); err != nil {
		return nil, mapNotFound(err, ErrBusinessNotFound)
	}
	return b, nil
}

// Resubmit moves a rejected business back to pending for another review.
func (s *BusinessService) Resubmit(ctx context.Context, userID id.ID) (*model.Business, error) {
	var b *model.Business
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		owned, err := tx.GetBusinessByUser(ctx, userID)
		if err != nil {
			return mapNotFound(err, ErrBusinessNotFound)
		}
		b, err = tx.GetBusinessForUpdate(ctx, owned.ID)
		if err != nil {
			return mapNotFound(err, ErrBusinessNotFound)
		}
		if b.VerificationStatus != model.VerificationRejected {
			return transitionError("business", b.VerificationStatus, model.VerificationPending)
		}
		b.VerificationStatus = model.VerificationPending
		b.VerifiedAt = nil
		return tx.UpdateVerification(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("business", string(model.VerificationPending))
	s.record(ctx, audit.Event{Action: "business.resubmitted", Resource: audit.ResourceBusiness, ResourceID: b.ID.String(), ActorID: userID.String()})
	return b, nil
}

// List returns businesses, optionally filtered by verification status.
// "verified" is accepted as approved.
func (s *BusinessService) List(ctx context.Context, status string, page Page) ([]model.Business, error) {
	var st model.VerificationStatus
	if status != "" {
		parsed, ok := model.ParseVerificationStatus(status)
		if !ok {
			return nil, invalid("status", "unknown verification status")
		}
		st = parsed
	}
	page = page.normalized()
	return s.store.ListBusinesses(ctx, st, page.Limit, page.Offset)
}
