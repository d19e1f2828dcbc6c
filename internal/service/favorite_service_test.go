package service

import (
	"errors"
	"testing"

	"github.com/pinnity/pinnity/internal/id"
)

func TestFavoritesAreIdempotent(t *testing.T) {
	f := newFixture(t, RedemptionPolicy{EnforceLimits: true})
	admin := f.admin0()
	vendor, _ := f.vendor(admin, true)
	customer := f.customer()
	deal := f.liveDeal(admin, vendor, nil)

	added, err := f.favs.Add(f.ctx, customer.ID, deal.ID)
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	added, err = f.favs.Add(f.ctx, customer.ID, deal.ID)
	if err != nil || added {
		t.Fatalf("second add: added=%v err=%v", added, err)
	}

	d, _ := f.store.GetDeal(f.ctx, deal.ID)
	if d.SaveCount != 1 {
		t.Errorf("expected save_count 1, got %d", d.SaveCount)
	}
	list, _ := f.favs.List(f.ctx, customer.ID)
	if len(list) != 1 {
		t.Errorf("expected one favorite, got %d", len(list))
	}

	for i, want := range []bool{true, false} {
		removed, err := f.favs.Remove(f.ctx, customer.ID, deal.ID)
		if err != nil || removed != want {
			t.Fatalf("remove %d: removed=%v err=%v", i+1, removed, err)
		}
	}
	d, _ = f.store.GetDeal(f.ctx, deal.ID)
	if d.SaveCount != 0 {
		t.Errorf("expected save_count 0, got %d", d.SaveCount)
	}
}

func TestFavoriteUnknownDeal(t *testing.T) {
	f := newFixture(t, RedemptionPolicy{})
	customer := f.customer()

	if _, err := f.favs.Add(f.ctx, customer.ID, id.NewDealID()); !errors.Is(err, ErrDealNotFound) {
		t.Errorf("expected ErrDealNotFound, got %v", err)
	}
}
