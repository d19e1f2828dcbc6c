package service

import (
	"context"

	"github.com/pinnity/pinnity/internal/audit"
	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
)

// AdminService covers user management and the dashboard.
type AdminService struct {
	base
}

func NewAdminService(store repository.Store, opts ...Option) *AdminService {
	return &AdminService{base: newBase(store, opts)}
}

func (s *AdminService) ListUsers(ctx context.Context, page Page) ([]model.User, error) {
	page = page.normalized()
	return s.store.ListUsers(ctx, page.Limit, page.Offset)
}

// SetUserType changes a user's role. Admins cannot change their own role, so
// the last admin cannot lock everyone out by accident.
func (s *AdminService) SetUserType(ctx context.Context, adminID, userID id.ID, userType string) (*model.User, error) {
	t, ok := model.ParseUserType(userType)
	if !ok {
		return nil, invalid("user_type", "must be individual, business or admin")
	}
	if adminID == userID {
		return nil, invalid("user_id", "admins cannot change their own role")
	}

	var (
		u    *model.User
		from model.UserType
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		u, err = tx.GetUser(ctx, userID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}
		from = u.UserType
		if err := tx.UpdateUserType(ctx, userID, t); err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}
		u.UserType = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user type changed", "user_id", userID, "from", from, "to", t, "admin_id", adminID)
	s.record(ctx, audit.Event{Action: "user.type_changed", Resource: audit.ResourceUser, ResourceID: userID.String(), ActorID: adminID.String(),
		Metadata: map[string]any{"from": string(from), "to": string(t)}})
	return u, nil
}

// Stats summarizes the marketplace for the admin dashboard.
func (s *AdminService) Stats(ctx context.Context) (*model.Stats, error) {
	users, err := s.store.CountUsersByType(ctx)
	if err != nil {
		return nil, err
	}
	businesses, err := s.store.CountBusinessesByStatus(ctx)
	if err != nil {
		return nil, err
	}
	deals, err := s.store.CountDealsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	redemptions, err := s.store.CountRedemptions(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.Stats{
		UsersByType:        users,
		BusinessesByStatus: businesses,
		DealsByStatus:      deals,
		Redemptions:        redemptions,
	}
	for _, n := range users {
		stats.Users += n
	}
	return stats, nil
}

// Audit returns recent audit events. Backends that cannot be read back, such
// as the log recorder, yield an empty list.
func (s *AdminService) Audit(ctx context.Context, resourceID string, limit int) ([]audit.Event, error) {
	lister, ok := s.audit.(audit.Lister)
	if !ok {
		return []audit.Event{}, nil
	}
	return lister.Recent(ctx, resourceID, Page{Limit: limit}.normalized().Limit)
}
