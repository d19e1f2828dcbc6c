package service

import (
	"context"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
)

// FavoriteService saves deals for later. Adding twice is a no-op.
type FavoriteService struct {
	base
}

func NewFavoriteService(store repository.Store, opts ...Option) *FavoriteService {
	return &FavoriteService{base: newBase(store, opts)}
}

// Add saves the deal and reports whether it was newly saved. save_count
// only moves when a row was inserted.
func (s *FavoriteService) Add(ctx context.Context, userID, dealID id.ID) (bool, error) {
	var added bool
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.GetDeal(ctx, dealID); err != nil {
			return mapNotFound(err, ErrDealNotFound)
		}
		var err error
		added, err = tx.AddFavorite(ctx, &model.Favorite{ID: id.NewFavoriteID(), UserID: userID, DealID: dealID})
		if err != nil || !added {
			return err
		}
		return tx.AdjustSaveCount(ctx, dealID, 1)
	})
	return added, err
}

// Remove unsaves the deal and reports whether a row was deleted.
func (s *FavoriteService) Remove(ctx context.Context, userID, dealID id.ID) (bool, error) {
	var removed bool
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		removed, err = tx.RemoveFavorite(ctx, userID, dealID)
		if err != nil || !removed {
			return err
		}
		return tx.AdjustSaveCount(ctx, dealID, -1)
	})
	return removed, err
}

// List returns the user's saved deals with their effective status.
func (s *FavoriteService) List(ctx context.Context, userID id.ID) ([]DealView, error) {
	deals, err := s.store.ListFavoriteDeals(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]DealView, 0, len(deals))
	for _, d := range deals {
		views = append(views, newView(d, now))
	}
	return views, nil
}
