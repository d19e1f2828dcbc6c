package repository

import (
	"context"
	"time"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
)

const businessColumns = `id, user_id, business_name, category, description, address, phone, website,
	latitude, longitude, verification_status, verification_feedback, verified_at, created_at, updated_at`

// CreateBusiness inserts a business. An empty verification status is
// written as pending.
func (s *Postgres) CreateBusiness(ctx context.Context, b *model.Business) error {
	now := time.Now().UTC()
	if b.VerificationStatus == "" {
		b.VerificationStatus = model.VerificationPending
	}
	b.CreatedAt = now
	b.UpdatedAt = now

	query := `
		INSERT INTO businesses (` + businessColumns + `)
		VALUES (:id, :user_id, :business_name, :category, :description, :address, :phone, :website,
			:latitude, :longitude, :verification_status, :verification_feedback, :verified_at, :created_at, :updated_at)
	`
	_, err := s.ex.NamedExecContext(ctx, query, b)
	return translate(err, "create business")
}

func (s *Postgres) getBusiness(ctx context.Context, op, where string, arg interface{}) (*model.Business, error) {
	var b model.Business
	if err := s.ex.GetContext(ctx, &b, `SELECT `+businessColumns+` FROM businesses `+where, arg); err != nil {
		return nil, translate(err, op)
	}
	return &b, nil
}

func (s *Postgres) GetBusiness(ctx context.Context, businessID id.ID) (*model.Business, error) {
	return s.getBusiness(ctx, "get business", `WHERE id = $1`, businessID)
}

// GetBusinessForUpdate locks the row until the transaction ends.
func (s *Postgres) GetBusinessForUpdate(ctx context.Context, businessID id.ID) (*model.Business, error) {
	return s.getBusiness(ctx, "lock business", `WHERE id = $1 FOR UPDATE`, businessID)
}

func (s *Postgres) GetBusinessByUser(ctx context.Context, userID id.ID) (*model.Business, error) {
	return s.getBusiness(ctx, "get business by user", `WHERE user_id = $1`, userID)
}

// UpdateBusinessProfile writes the vendor-editable fields only.
func (s *Postgres) UpdateBusinessProfile(ctx context.Context, b *model.Business) error {
	b.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE businesses
		SET business_name = :business_name, category = :category, description = :description,
			address = :address, phone = :phone, website = :website,
			latitude = :latitude, longitude = :longitude, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := s.ex.NamedExecContext(ctx, query, b)
	if err != nil {
		return translate(err, "update business")
	}
	return expectRows(result, "update business")
}

// UpdateVerification writes the admin-controlled verification fields.
func (s *Postgres) UpdateVerification(ctx context.Context, b *model.Business) error {
	b.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE businesses
		SET verification_status = :verification_status, verification_feedback = :verification_feedback,
			verified_at = :verified_at, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := s.ex.NamedExecContext(ctx, query, b)
	if err != nil {
		return translate(err, "update verification")
	}
	return expectRows(result, "update verification")
}

func (s *Postgres) ListBusinesses(ctx context.Context, status model.VerificationStatus, limit, offset int) ([]model.Business, error) {
	businesses := []model.Business{}
	query := `SELECT ` + businessColumns + ` FROM businesses
		WHERE ($1::text = '' OR verification_status = $1::text)
		ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	if err := s.ex.SelectContext(ctx, &businesses, query, string(status), limit, offset); err != nil {
		return nil, translate(err, "list businesses")
	}
	return businesses, nil
}

func (s *Postgres) CountBusinessesByStatus(ctx context.Context) (map[string]int, error) {
	counts, err := countByColumn(ctx, s.ex,
		`SELECT verification_status AS key, COUNT(*) AS count FROM businesses GROUP BY verification_status`)
	if err != nil {
		return nil, translate(err, "count businesses")
	}
	return counts, nil
}
