package model

// Stats is the admin dashboard summary.
type Stats struct {
	Users              int            `json:"users"`
	UsersByType        map[string]int `json:"users_by_type"`
	BusinessesByStatus map[string]int `json:"businesses_by_status"`
	DealsByStatus      map[string]int `json:"deals_by_status"`
	Redemptions        int            `json:"redemptions"`
}

// Diagnosis counts rows in states that older code paths could write.
type Diagnosis struct {
	DealsWithoutApproval      int `json:"deals_without_approval"`
	BusinessesMissingStatus   int `json:"businesses_missing_status"`
	BusinessesVerifiedSynonym int `json:"businesses_verified_synonym"`
	DealsMissingStatus        int `json:"deals_missing_status"`
	DealsVerifiedSynonym      int `json:"deals_verified_synonym"`
	ExpiredNotPersisted       int `json:"expired_not_persisted"`
	RedemptionCountMismatches int `json:"redemption_count_mismatches"`
}

// Clean reports whether nothing needs repair.
func (d Diagnosis) Clean() bool {
	return d == Diagnosis{}
}
