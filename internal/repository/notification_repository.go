package repository

import (
	"context"
	"time"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
)

const preferenceColumns = `id, user_id, deal_updates, business_updates, marketing, email_enabled, updated_at`

const notificationColumns = `id, user_id, kind, title, body, resource_id, read_at, created_at`

func (s *Postgres) GetPreferences(ctx context.Context, userID id.ID) (*model.NotificationPreference, error) {
	var p model.NotificationPreference
	err := s.ex.GetContext(ctx, &p,
		`SELECT `+preferenceColumns+` FROM notification_preferences WHERE user_id = $1`, userID)
	if err != nil {
		return nil, translate(err, "get preferences")
	}
	return &p, nil
}

// SavePreferences upserts on user_id.
func (s *Postgres) SavePreferences(ctx context.Context, p *model.NotificationPreference) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := s.ex.NamedExecContext(ctx, `
		INSERT INTO notification_preferences (`+preferenceColumns+`)
		VALUES (:id, :user_id, :deal_updates, :business_updates, :marketing, :email_enabled, :updated_at)
		ON CONFLICT (user_id) DO UPDATE
		SET deal_updates = EXCLUDED.deal_updates, business_updates = EXCLUDED.business_updates,
			marketing = EXCLUDED.marketing, email_enabled = EXCLUDED.email_enabled,
			updated_at = EXCLUDED.updated_at
	`, p)
	return translate(err, "save preferences")
}

func (s *Postgres) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.CreatedAt = time.Now().UTC()
	_, err := s.ex.NamedExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (:id, :user_id, :kind, :title, :body, :resource_id, :read_at, :created_at)
	`, n)
	return translate(err, "create notification")
}

func (s *Postgres) ListNotifications(ctx context.Context, userID id.ID, unreadOnly bool, limit int) ([]model.Notification, error) {
	notifications := []model.Notification{}
	err := s.ex.SelectContext(ctx, &notifications, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, translate(err, "list notifications")
	}
	return notifications, nil
}

// MarkNotificationRead only touches the caller's own notifications.
func (s *Postgres) MarkNotificationRead(ctx context.Context, notificationID, userID id.ID, at time.Time) error {
	result, err := s.ex.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, $1)
		WHERE id = $2 AND user_id = $3
	`, at, notificationID, userID)
	if err != nil {
		return translate(err, "mark notification read")
	}
	return expectRows(result, "mark notification read")
}
