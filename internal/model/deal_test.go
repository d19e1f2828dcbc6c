package model

import (
	"testing"
	"time"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		status DealStatus
		end    time.Time
		want   DealStatus
	}{
		{"approved running", DealStatusApproved, future, DealStatusApproved},
		{"approved ended", DealStatusApproved, past, DealStatusExpired},
		{"ends exactly now", DealStatusApproved, now, DealStatusApproved},
		{"pending ended", DealStatusPending, past, DealStatusExpired},
		{"rejected ended stays rejected", DealStatusRejected, past, DealStatusRejected},
		{"persisted expired", DealStatusExpired, past, DealStatusExpired},
		{"draft running", DealStatusDraft, future, DealStatusDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Deal{Status: tt.status, EndDate: tt.end}
			if got := d.EffectiveStatus(now); got != tt.want {
				t.Errorf("EffectiveStatus() = %s, want %s", got, tt.want)
			}
			if d.IsExpired(now) != (tt.want == DealStatusExpired) {
				t.Errorf("IsExpired disagrees with EffectiveStatus")
			}
		})
	}
}

func TestIsLive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	notStarted := &Deal{Status: DealStatusApproved, StartDate: now.Add(time.Hour), EndDate: now.Add(48 * time.Hour)}
	if notStarted.IsLive(now) {
		t.Error("deal before its start date must not be live")
	}

	running := &Deal{Status: DealStatusApproved, StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour)}
	if !running.IsLive(now) {
		t.Error("approved running deal must be live")
	}

	ended := &Deal{Status: DealStatusApproved, StartDate: now.Add(-48 * time.Hour), EndDate: now.Add(-time.Hour)}
	if ended.IsLive(now) {
		t.Error("ended deal must not be live")
	}
}

func TestSoldOut(t *testing.T) {
	if (&Deal{TotalRedemptionsLimit: 0, RedemptionCount: 1000}).SoldOut() {
		t.Error("zero limit means unlimited")
	}
	if !(&Deal{TotalRedemptionsLimit: 3, RedemptionCount: 3}).SoldOut() {
		t.Error("expected sold out at the limit")
	}
}
