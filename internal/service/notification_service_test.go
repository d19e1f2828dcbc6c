package service

import (
	"errors"
	"testing"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
)

func TestPreferencesDefaultAndPartialUpdate(t *testing.T) {
	f := newFixture(t, RedemptionPolicy{})
	u := id.NewUserID()

	p, err := f.notes.Preferences(f.ctx, u)
	if err != nil {
		t.Fatal(err)
	}
	if !p.DealUpdates || !p.BusinessUpdates || p.Marketing || !p.EmailEnabled {
		t.Errorf("unexpected defaults: %+v", p)
	}

	on := true
	p, err = f.notes.UpdatePreferences(f.ctx, u, PreferencesInput{Marketing: &on})
	if err != nil {
		t.Fatal(err)
	}
	if !p.Marketing || !p.DealUpdates {
		t.Errorf("expected only marketing to change, got %+v", p)
	}
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t, RedemptionPolicy{EnforceLimits: true})
	admin := f.admin0()
	vendor, _ := f.vendor(admin, true)
	customer := f.customer()

	unread, _ := f.notes.List(f.ctx, vendor.ID, true, 0)
	if len(unread) != 1 || unread[0].Kind != model.NotifyBusinessApproved {
		t.Fatalf("expected one business_approved notification, got %+v", unread)
	}

	if err := f.notes.MarkRead(f.ctx, customer.ID, unread[0].ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("expected another user's notification to be hidden, got %v", err)
	}
	if err := f.notes.MarkRead(f.ctx, vendor.ID, unread[0].ID); err != nil {
		t.Fatal(err)
	}
	unread, _ = f.notes.List(f.ctx, vendor.ID, true, 0)
	if len(unread) != 0 {
		t.Errorf("expected no unread notifications, got %d", len(unread))
	}
}
