package service

import (
	"context"
	"errors"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
)

// PreferencesInput is a partial update; nil fields keep their value.
type PreferencesInput struct {
	DealUpdates     *bool `json:"deal_updates"`
	BusinessUpdates *bool `json:"business_updates"`
	Marketing       *bool `json:"marketing"`
	EmailEnabled    *bool `json:"email_enabled"`
}

// NotificationService manages notification preferences and the in-app inbox.
type NotificationService struct {
	base
}

func NewNotificationService(store repository.Store, opts ...Option) *NotificationService {
	return &NotificationService{base: newBase(store, opts)}
}

// preferences returns the stored preferences, creating the defaults on first
// read.
func preferences(ctx context.Context, st repository.Store, userID id.ID) (*model.NotificationPreference, error) {
	p, err := st.GetPreferences(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	def := model.DefaultPreferences(userID)
	if err := st.SavePreferences(ctx, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *NotificationService) Preferences(ctx context.Context, userID id.ID) (*model.NotificationPreference, error) {
	return preferences(ctx, s.store, userID)
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID id.ID, in PreferencesInput) (*model.NotificationPreference, error) {
	var p *model.NotificationPreference
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		p, err = preferences(ctx, tx, userID)
		if err != nil {
			return err
		}
		set := func(dst *bool, v *bool) {
			if v != nil {
				*dst = *v
			}
		}
		set(&p.DealUpdates, in.DealUpdates)
		set(&p.BusinessUpdates, in.BusinessUpdates)
		set(&p.Marketing, in.Marketing)
		set(&p.EmailEnabled, in.EmailEnabled)
		return tx.SavePreferences(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns the newest notifications first.
func (s *NotificationService) List(ctx context.Context, userID id.ID, unreadOnly bool, limit int) ([]model.Notification, error) {
	limit = Page{Limit: limit}.normalized().Limit
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID id.ID) error {
	if err := s.store.MarkNotificationRead(ctx, notificationID, userID, s.now()); err != nil {
		return mapNotFound(err, ErrNotificationNotFound)
	}
	return nil
}

type notice struct {
	kind       model.NotificationKind
	title      string
	body       string
	resourceID string
}

// notify writes a notification for userID inside tx when the user's
// preferences allow that kind. It reports whether a row was written.
func notify(ctx context.Context, tx repository.Store, userID id.ID, n notice) (bool, error) {
	p, err := preferences(ctx, tx, userID)
	if err != nil {
		return false, err
	}
	if n.kind.IsDealUpdate() && !p.DealUpdates {
		return false, nil
	}
	if !n.kind.IsDealUpdate() && !p.BusinessUpdates {
		return false, nil
	}
	err = tx.CreateNotification(ctx, &model.Notification{
		ID:         id.NewNotificationID(),
		UserID:     userID,
		Kind:       n.kind,
		Title:      n.title,
		Body:       n.body,
		ResourceID: n.resourceID,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
