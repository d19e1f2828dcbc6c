package repository

import (
	"context"
	"time"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
)

// AddFavorite relies on UNIQUE(user_id, deal_id); a repeat add inserts nothing.
func (s *Postgres) AddFavorite(ctx context.Context, f *model.Favorite) (bool, error) {
	f.CreatedAt = time.Now().UTC()
	result, err := s.ex.NamedExecContext(ctx, `
		INSERT INTO user_favorites (id, user_id, deal_id, created_at)
		VALUES (:id, :user_id, :deal_id, :created_at)
		ON CONFLICT (user_id, deal_id) DO NOTHING
	`, f)
	if err != nil {
		return false, translate(err, "add favorite")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, translate(err, "add favorite")
	}
	return n > 0, nil
}

func (s *Postgres) RemoveFavorite(ctx context.Context, userID, dealID id.ID) (bool, error) {
	result, err := s.ex.ExecContext(ctx,
		`DELETE FROM user_favorites WHERE user_id = $1 AND deal_id = $2`, userID, dealID)
	if err != nil {
		return false, translate(err, "remove favorite")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, translate(err, "remove favorite")
	}
	return n > 0, nil
}

func (s *Postgres) ListFavoriteDeals(ctx context.Context, userID id.ID) ([]model.Deal, error) {
	deals := []model.Deal{}
	err := s.ex.SelectContext(ctx, &deals, `
		SELECT `+dealColumns+`
		FROM user_favorites f JOIN deals d ON d.id = f.deal_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC
	`, userID)
	if err != nil {
		return nil, translate(err, "list favorites")
	}
	return deals, nil
}
