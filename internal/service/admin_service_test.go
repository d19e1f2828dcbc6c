package service

import (
	"errors"
	"testing"

	"github.com/pinnity/pinnity/internal/model"
)

func TestSetUserType(t *testing.T) {
	f := newFixture(t, RedemptionPolicy{})
	admin := f.admin0()
	customer := f.customer()

	if _, err := f.admin.SetUserType(f.ctx, admin.ID, admin.ID, "individual"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected self demotion to be refused, got %v", err)
	}
	if _, err := f.admin.SetUserType(f.ctx, admin.ID, customer.ID, "superuser"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected unknown type to be refused, got %v", err)
	}

	u, err := f.admin.SetUserType(f.ctx, admin.ID, customer.ID, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if u.UserType != model.UserAdmin {
		t.Errorf("expected admin, got %s", u.UserType)
	}

	events, err := f.admin.Audit(f.ctx, customer.ID.String(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) == 0 || events[0].Action != "user.type_changed" {
		t.Errorf("expected user.type_changed audit event, got %+v", events)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, RedemptionPolicy{EnforceLimits: true})
	admin := f.admin0()
	vendor, _ := f.vendor(admin, true)
	f.vendor(admin, false)
	customer := f.customer()
	deal := f.liveDeal(admin, vendor, nil)
	if _, err := f.redeem.Redeem(f.ctx, customer.ID, deal.ID); err != nil {
		t.Fatal(err)
	}

	s, err := f.admin.Stats(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Users != 4 {
		t.Errorf("expected 4 users, got %d", s.Users)
	}
	if s.UsersByType["business"] != 2 {
		t.Errorf("expected 2 vendors, got %d", s.UsersByType["business"])
	}
	if s.BusinessesByStatus["approved"] != 1 || s.BusinessesByStatus["pending"] != 1 {
		t.Errorf("unexpected business counts %v", s.BusinessesByStatus)
	}
	if s.DealsByStatus["approved"] != 1 || s.Redemptions != 1 {
		t.Errorf("unexpected deal stats %v / %d", s.DealsByStatus, s.Redemptions)
	}
}
