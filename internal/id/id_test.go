package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pinnity/pinnity/internal/id"
)

func TestConstructorsUsePrefix(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"User", id.NewUserID, "user_"},
		{"Business", id.NewBusinessID, "biz_"},
		{"Deal", id.NewDealID, "deal_"},
		{"Approval", id.NewApprovalID, "dapr_"},
		{"Favorite", id.NewFavoriteID, "fav_"},
		{"Redemption", id.NewRedemptionID, "rdm_"},
		{"Rating", id.NewRatingID, "rate_"},
		{"Preference", id.NewPreferenceID, "npref_"},
		{"Notification", id.NewNotificationID, "ntf_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseWithPrefixRejectsOtherEntity(t *testing.T) {
	deal := id.NewDealID()

	if _, err := id.ParseDealID(deal.String()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := id.ParseUserID(deal.String()); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestScanAndValue(t *testing.T) {
	orig := id.NewBusinessID()

	v, err := orig.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scanned != orig {
		t.Errorf("expected %s, got %s", orig, scanned)
	}

	var fromNull id.ID
	if err := fromNull.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !fromNull.IsNil() {
		t.Error("expected Nil after scanning NULL")
	}

	nv, err := id.Nil.Value()
	if err != nil || nv != nil {
		t.Errorf("expected nil value for Nil, got %v (%v)", nv, err)
	}
}

func TestJSONEncoding(t *testing.T) {
	type wrapper struct {
		ID id.ID `json:"id"`
	}

	orig := wrapper{ID: id.NewDealID()}
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded wrapper
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != orig.ID {
		t.Errorf("expected %s, got %s", orig.ID, decoded.ID)
	}
}
