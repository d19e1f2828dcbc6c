// Package memory is an in-process repository.Store used by tests and the
// "memory" storage driver. Transactions take the store lock, run against a
// copy of the data and swap it in on success.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
)

type state struct {
	users         map[id.ID]model.User
	businesses    map[id.ID]model.Business
	deals         map[id.ID]model.Deal
	approvals     map[id.ID]model.DealApproval // keyed by deal ID
	favorites     map[favoriteKey]model.Favorite
	redemptions   map[id.ID]model.Redemption
	ratings       map[id.ID]model.Rating // keyed by redemption ID
	preferences   map[id.ID]model.NotificationPreference
	notifications map[id.ID]model.Notification
}

type favoriteKey struct {
	user, deal id.ID
}

func newState() *state {
	return &state{
		users:         make(map[id.ID]model.User),
		businesses:    make(map[id.ID]model.Business),
		deals:         make(map[id.ID]model.Deal),
		approvals:     make(map[id.ID]model.DealApproval),
		favorites:     make(map[favoriteKey]model.Favorite),
		redemptions:   make(map[id.ID]model.Redemption),
		ratings:       make(map[id.ID]model.Rating),
		preferences:   make(map[id.ID]model.NotificationPreference),
		notifications: make(map[id.ID]model.Notification),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *state) clone() *state {
	return &state{
		users:         cloneMap(st.users),
		businesses:    cloneMap(st.businesses),
		deals:         cloneMap(st.deals),
		approvals:     cloneMap(st.approvals),
		favorites:     cloneMap(st.favorites),
		redemptions:   cloneMap(st.redemptions),
		ratings:       cloneMap(st.ratings),
		preferences:   cloneMap(st.preferences),
		notifications: cloneMap(st.notifications),
	}
}

// Store implements repository.Store in memory.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

// lock is a no-op inside InTx, which already holds the mutex.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) InTx(_ context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, st: s.st.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	*s.st = *tx.st
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}

func duplicate(op, what string) error {
	return fmt.Errorf("%s: %w: %s", op, repository.ErrDuplicate, what)
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Users

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	defer s.lock()()

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.st.users {
		if existing.Email == u.Email {
			return duplicate("create user", "users_email_key")
		}
		if u.Username != nil && existing.Username != nil && *existing.Username == *u.Username {
			return duplicate("create user", "users_username_key")
		}
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.st.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, userID id.ID) (*model.User, error) {
	defer s.lock()()

	u, ok := s.st.users[userID]
	if !ok {
		return nil, notFound("get user")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	defer s.lock()()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, notFound("get user by email")
}

func (s *Store) ListUsers(_ context.Context, limit, offset int) ([]model.User, error) {
	defer s.lock()()

	users := make([]model.User, 0, len(s.st.users))
	for _, u := range s.st.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return page(users, limit, offset), nil
}

func (s *Store) UpdateUserType(_ context.Context, userID id.ID, t model.UserType) error {
	defer s.lock()()

	u, ok := s.st.users[userID]
	if !ok {
		return notFound("update user type")
	}
	u.UserType = t
	u.UpdatedAt = time.Now().UTC()
	s.st.users[userID] = u
	return nil
}

func (s *Store) CountUsersByType(context.Context) (map[string]int, error) {
	defer s.lock()()

	counts := make(map[string]int)
	for _, u := range s.st.users {
		counts[string(u.UserType)]++
	}
	return counts, nil
}

// Businesses

func (s *Store) CreateBusiness(_ context.Context, b *model.Business) error {
	defer s.lock()()

	for _, existing := range s.st.businesses {
		if existing.UserID == b.UserID {
			return duplicate("create business", "businesses_user_id_key")
		}
	}
	if b.VerificationStatus == "" {
		b.VerificationStatus = model.VerificationPending
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	s.st.businesses[b.ID] = *b
	return nil
}

func (s *Store) GetBusiness(_ context.Context, businessID id.ID) (*model.Business, error) {
	defer s.lock()()

	b, ok := s.st.businesses[businessID]
	if !ok {
		return nil, notFound("get business")
	}
	return &b, nil
}

func (s *Store) GetBusinessForUpdate(ctx context.Context, businessID id.ID) (*model.Business, error) {
	return s.GetBusiness(ctx, businessID)
}

func (s *Store) GetBusinessByUser(_ context.Context, userID id.ID) (*model.Business, error) {
	defer s.lock()()

	for _, b := range s.st.businesses {
		if b.UserID == userID {
			return &b, nil
		}
	}
	return nil, notFound("get business by user")
}

func (s *Store) UpdateBusinessProfile(_ context.Context, b *model.Business) error {
	defer s.lock()()

	cur, ok := s.st.businesses[b.ID]
	if !ok {
		return notFound("update business")
	}
	b.UpdatedAt = time.Now().UTC()
	cur.BusinessName = b.BusinessName
	cur.Category = b.Category
	cur.Description = b.Description
	cur.Address = b.Address
	cur.Phone = b.Phone
	cur.Website = b.Website
	cur.Latitude = b.Latitude
	cur.Longitude = b.Longitude
	cur.UpdatedAt = b.UpdatedAt
	s.st.businesses[b.ID] = cur
	return nil
}

func (s *Store) UpdateVerification(_ context.Context, b *model.Business) error {
	defer s.lock()()

	cur, ok := s.st.businesses[b.ID]
	if !ok {
		return notFound("update verification")
	}
	b.UpdatedAt = time.Now().UTC()
	cur.VerificationStatus = b.VerificationStatus
	cur.VerificationFeedback = b.VerificationFeedback
	cur.VerifiedAt = b.VerifiedAt
	cur.UpdatedAt = b.UpdatedAt
	s.st.businesses[b.ID] = cur
	return nil
}

func (s *Store) ListBusinesses(_ context.Context, status model.VerificationStatus, limit, offset int) ([]model.Business, error) {
	defer s.lock()()

	out := []model.Business{}
	for _, b := range s.st.businesses {
		if status == "" || b.VerificationStatus == status {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (s *Store) CountBusinessesByStatus(context.Context) (map[string]int, error) {
	defer s.lock()()

	counts := make(map[string]int)
	for _, b := range s.st.businesses {
		counts[string(b.VerificationStatus)]++
	}
	return counts, nil
}

// Deals

func (s *Store) CreateDeal(_ context.Context, d *model.Deal) error {
	defer s.lock()()

	if _, ok := s.st.businesses[d.BusinessID]; !ok {
		return fmt.Errorf("create deal: unknown business %s", d.BusinessID)
	}
	for _, existing := range s.st.deals {
		if d.RedemptionCode != "" && existing.RedemptionCode == d.RedemptionCode {
			return duplicate("create deal", "deals_redemption_code_key")
		}
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	d.ViewCount, d.SaveCount, d.RedemptionCount = 0, 0, 0
	s.st.deals[d.ID] = *d
	return nil
}

func (s *Store) GetDeal(_ context.Context, dealID id.ID) (*model.Deal, error) {
	defer s.lock()()

	d, ok := s.st.deals[dealID]
	if !ok {
		return nil, notFound("get deal")
	}
	return &d, nil
}

func (s *Store) GetDealForUpdate(ctx context.Context, dealID id.ID) (*model.Deal, error) {
	return s.GetDeal(ctx, dealID)
}

func (s *Store) UpdateDealContent(_ context.Context, d *model.Deal) error {
	defer s.lock()()

	cur, ok := s.st.deals[d.ID]
	if !ok {
		return notFound("update deal")
	}
	d.UpdatedAt = time.Now().UTC()
	cur.Title = d.Title
	cur.Description = d.Description
	cur.Category = d.Category
	cur.OriginalPrice = d.OriginalPrice
	cur.DiscountedPrice = d.DiscountedPrice
	cur.Terms = d.Terms
	cur.StartDate = d.StartDate
	cur.EndDate = d.EndDate
	cur.MaxRedemptionsPerUser = d.MaxRedemptionsPerUser
	cur.TotalRedemptionsLimit = d.TotalRedemptionsLimit
	cur.UpdatedAt = d.UpdatedAt
	s.st.deals[d.ID] = cur
	return nil
}

func (s *Store) mutateDeal(op string, dealID id.ID, fn func(d *model.Deal)) error {
	d, ok := s.st.deals[dealID]
	if !ok {
		return notFound(op)
	}
	fn(&d)
	s.st.deals[dealID] = d
	return nil
}

func (s *Store) UpdateDealStatus(_ context.Context, dealID id.ID, status model.DealStatus) error {
	defer s.lock()()
	return s.mutateDeal("update deal status", dealID, func(d *model.Deal) {
		d.Status = status
		d.UpdatedAt = time.Now().UTC()
	})
}

func (s *Store) SetDealImage(_ context.Context, dealID id.ID, url string) error {
	defer s.lock()()
	return s.mutateDeal("set deal image", dealID, func(d *model.Deal) {
		d.ImageURL = url
		d.UpdatedAt = time.Now().UTC()
	})
}

// DeleteDeal mirrors the ON DELETE CASCADE of the SQL schema.
func (s *Store) DeleteDeal(_ context.Context, dealID id.ID) error {
	defer s.lock()()

	if _, ok := s.st.deals[dealID]; !ok {
		return notFound("delete deal")
	}
	delete(s.st.deals, dealID)
	delete(s.st.approvals, dealID)
	for k := range s.st.favorites {
		if k.deal == dealID {
			delete(s.st.favorites, k)
		}
	}
	for rid, r := range s.st.redemptions {
		if r.DealID == dealID {
			delete(s.st.redemptions, rid)
			delete(s.st.ratings, rid)
		}
	}
	return nil
}

func (s *Store) matches(d model.Deal, f repository.DealFilter) bool {
	if !f.BusinessID.IsNil() && d.BusinessID != f.BusinessID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if d.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Category != "" && d.Category != f.Category {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(d.Title), q) && !strings.Contains(strings.ToLower(d.Description), q) {
			return false
		}
	}
	if f.Effective != "" && d.EffectiveStatus(f.Now) != f.Effective {
		return false
	}
	if f.Live {
		b, ok := s.st.businesses[d.BusinessID]
		if !ok || !b.IsVerified() || !d.IsLive(f.Now) {
			return false
		}
	}
	return true
}

func (s *Store) ListDeals(_ context.Context, f repository.DealFilter) ([]model.Deal, error) {
	defer s.lock()()

	out := []model.Deal{}
	for _, d := range s.st.deals {
		if s.matches(d, f) {
			out = append(out, d)
		}
	}
	sortDealsNewestFirst(out)
	return page(out, f.Limit, f.Offset), nil
}

func sortDealsNewestFirst(deals []model.Deal) {
	sort.Slice(deals, func(i, j int) bool {
		if deals[i].CreatedAt.Equal(deals[j].CreatedAt) {
			return deals[i].ID.String() > deals[j].ID.String()
		}
		return deals[i].CreatedAt.After(deals[j].CreatedAt)
	})
}

func (s *Store) IncrementViewCount(_ context.Context, dealID id.ID) error {
	defer s.lock()()
	_ = s.mutateDeal("increment view count", dealID, func(d *model.Deal) { d.ViewCount++ })
	return nil
}

func clampAdd(v, delta int) int {
	if v+delta < 0 {
		return 0
	}
	return v + delta
}

func (s *Store) AdjustSaveCount(_ context.Context, dealID id.ID, delta int) error {
	defer s.lock()()
	return s.mutateDeal("adjust save count", dealID, func(d *model.Deal) {
		d.SaveCount = clampAdd(d.SaveCount, delta)
	})
}

func (s *Store) AdjustRedemptionCount(_ context.Context, dealID id.ID, delta int) error {
	defer s.lock()()
	return s.mutateDeal("adjust redemption count", dealID, func(d *model.Deal) {
		d.RedemptionCount = clampAdd(d.RedemptionCount, delta)
	})
}

func (s *Store) CountDealsByStatus(context.Context) (map[string]int, error) {
	defer s.lock()()

	counts := make(map[string]int)
	for _, d := range s.st.deals {
		counts[string(d.Status)]++
	}
	return counts, nil
}

// Approvals

func (s *Store) CreateApproval(_ context.Context, a *model.DealApproval) error {
	defer s.lock()()

	if _, ok := s.st.approvals[a.DealID]; ok {
		return duplicate("create approval", "deal_approvals_deal_id_key")
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	s.st.approvals[a.DealID] = *a
	return nil
}

func (s *Store) CreateApprovals(_ context.Context, approvals []model.DealApproval) error {
	defer s.lock()()

	now := time.Now().UTC()
	for _, a := range approvals {
		if _, ok := s.st.approvals[a.DealID]; ok {
			continue
		}
		a.CreatedAt, a.UpdatedAt = now, now
		s.st.approvals[a.DealID] = a
	}
	return nil
}

func (s *Store) GetApprovalByDeal(_ context.Context, dealID id.ID) (*model.DealApproval, error) {
	defer s.lock()()

	a, ok := s.st.approvals[dealID]
	if !ok {
		return nil, notFound("get approval")
	}
	return &a, nil
}

func (s *Store) UpdateApproval(_ context.Context, a *model.DealApproval) error {
	defer s.lock()()

	cur, ok := s.st.approvals[a.DealID]
	if !ok || cur.ID != a.ID {
		return notFound("update approval")
	}
	a.UpdatedAt = time.Now().UTC()
	s.st.approvals[a.DealID] = *a
	return nil
}

// Favorites

func (s *Store) AddFavorite(_ context.Context, f *model.Favorite) (bool, error) {
	defer s.lock()()

	key := favoriteKey{user: f.UserID, deal: f.DealID}
	if _, ok := s.st.favorites[key]; ok {
		return false, nil
	}
	f.CreatedAt = time.Now().UTC()
	s.st.favorites[key] = *f
	return true, nil
}

func (s *Store) RemoveFavorite(_ context.Context, userID, dealID id.ID) (bool, error) {
	defer s.lock()()

	key := favoriteKey{user: userID, deal: dealID}
	if _, ok := s.st.favorites[key]; !ok {
		return false, nil
	}
	delete(s.st.favorites, key)
	return true, nil
}

func (s *Store) ListFavoriteDeals(_ context.Context, userID id.ID) ([]model.Deal, error) {
	defer s.lock()()

	favs := []model.Favorite{}
	for k, f := range s.st.favorites {
		if k.user == userID {
			favs = append(favs, f)
		}
	}
	sort.Slice(favs, func(i, j int) bool { return favs[i].CreatedAt.After(favs[j].CreatedAt) })

	deals := make([]model.Deal, 0, len(favs))
	for _, f := range favs {
		if d, ok := s.st.deals[f.DealID]; ok {
			deals = append(deals, d)
		}
	}
	return deals, nil
}

// Redemptions

func (s *Store) CreateRedemption(_ context.Context, r *model.Redemption) error {
	defer s.lock()()

	if r.RedeemedAt.IsZero() {
		r.RedeemedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = model.RedemptionRedeemed
	}
	s.st.redemptions[r.ID] = *r
	return nil
}

func (s *Store) GetRedemption(_ context.Context, redemptionID id.ID) (*model.Redemption, error) {
	defer s.lock()()

	r, ok := s.st.redemptions[redemptionID]
	if !ok {
		return nil, notFound("get redemption")
	}
	return &r, nil
}

func (s *Store) GetRedemptionForUpdate(ctx context.Context, redemptionID id.ID) (*model.Redemption, error) {
	return s.GetRedemption(ctx, redemptionID)
}

func (s *Store) UpdateRedemption(_ context.Context, r *model.Redemption) error {
	defer s.lock()()

	cur, ok := s.st.redemptions[r.ID]
	if !ok {
		return notFound("update redemption")
	}
	cur.Status = r.Status
	cur.CompletedAt = r.CompletedAt
	cur.CancelledAt = r.CancelledAt
	s.st.redemptions[r.ID] = cur
	return nil
}

func (s *Store) CountActiveRedemptions(_ context.Context, userID, dealID id.ID) (int, error) {
	defer s.lock()()

	n := 0
	for _, r := range s.st.redemptions {
		if r.UserID == userID && r.DealID == dealID && r.Status != model.RedemptionCancelled {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListRedemptionsByUser(_ context.Context, userID id.ID) ([]model.Redemption, error) {
	defer s.lock()()

	out := []model.Redemption{}
	for _, r := range s.st.redemptions {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RedeemedAt.After(out[j].RedeemedAt) })
	return out, nil
}

func (s *Store) CountRedemptions(context.Context) (int, error) {
	defer s.lock()()

	n := 0
	for _, r := range s.st.redemptions {
		if r.Status != model.RedemptionCancelled {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateRating(_ context.Context, r *model.Rating) error {
	defer s.lock()()

	if _, ok := s.st.ratings[r.RedemptionID]; ok {
		return duplicate("create rating", "redemption_ratings_redemption_id_key")
	}
	r.CreatedAt = time.Now().UTC()
	s.st.ratings[r.RedemptionID] = *r
	return nil
}

func (s *Store) ListRatingsByDeal(_ context.Context, dealID id.ID) ([]model.Rating, error) {
	defer s.lock()()

	out := []model.Rating{}
	for _, r := range s.st.ratings {
		if r.DealID != dealID {
			continue
		}
		if r.Anonymous {
			r.UserID = id.Nil
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Notifications

func (s *Store) GetPreferences(_ context.Context, userID id.ID) (*model.NotificationPreference, error) {
	defer s.lock()()

	p, ok := s.st.preferences[userID]
	if !ok {
		return nil, notFound("get preferences")
	}
	return &p, nil
}

func (s *Store) SavePreferences(_ context.Context, p *model.NotificationPreference) error {
	defer s.lock()()

	if cur, ok := s.st.preferences[p.UserID]; ok {
		p.ID = cur.ID
	}
	p.UpdatedAt = time.Now().UTC()
	s.st.preferences[p.UserID] = *p
	return nil
}

func (s *Store) CreateNotification(_ context.Context, n *model.Notification) error {
	defer s.lock()()

	n.CreatedAt = time.Now().UTC()
	s.st.notifications[n.ID] = *n
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID id.ID, unreadOnly bool, limit int) ([]model.Notification, error) {
	defer s.lock()()

	out := []model.Notification{}
	for _, n := range s.st.notifications {
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, 0), nil
}

func (s *Store) MarkNotificationRead(_ context.Context, notificationID, userID id.ID, at time.Time) error {
	defer s.lock()()

	n, ok := s.st.notifications[notificationID]
	if !ok || n.UserID != userID {
		return notFound("mark notification read")
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	s.st.notifications[notificationID] = n
	return nil
}

// Repair. Values outside the enums cannot be written through this store,
// so the normalize jobs only have the verified synonym to rewrite.

func (s *Store) ListDealsWithoutApproval(_ context.Context, limit int) ([]model.Deal, error) {
	defer s.lock()()

	out := []model.Deal{}
	for dealID, d := range s.st.deals {
		if _, ok := s.st.approvals[dealID]; !ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, limit, 0), nil
}

func (s *Store) NormalizeVerificationStatus(context.Context) (int64, error) {
	defer s.lock()()

	var n int64
	for bid, b := range s.st.businesses {
		if b.VerificationStatus == "" || b.VerificationStatus == "verified" {
			st, _ := model.ParseVerificationStatus(string(b.VerificationStatus))
			if st == "" {
				st = model.VerificationPending
			}
			b.VerificationStatus = st
			s.st.businesses[bid] = b
			n++
		}
	}
	return n, nil
}

func (s *Store) NormalizeDealStatus(context.Context) (int64, error) {
	defer s.lock()()

	var n int64
	for did, d := range s.st.deals {
		if d.Status == "" || d.Status == "verified" {
			st, _ := model.ParseDealStatus(string(d.Status))
			if st == "" {
				st = model.DealStatusPending
			}
			d.Status = st
			s.st.deals[did] = d
			n++
		}
	}
	for did, a := range s.st.approvals {
		if a.Status == "verified" {
			a.Status = model.DealStatusApproved
			s.st.approvals[did] = a
		}
	}
	return n, nil
}

func (s *Store) ListExpirableDeals(_ context.Context, now time.Time, limit int) ([]model.Deal, error) {
	defer s.lock()()

	out := []model.Deal{}
	for _, d := range s.st.deals {
		if d.Status == model.DealStatusApproved && d.EndDate.Before(now) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return page(out, limit, 0), nil
}

func (s *Store) activeCounts() map[id.ID]int {
	counts := make(map[id.ID]int)
	for _, r := range s.st.redemptions {
		if r.Status != model.RedemptionCancelled {
			counts[r.DealID]++
		}
	}
	return counts
}

func (s *Store) RecountRedemptions(context.Context) (int64, error) {
	defer s.lock()()

	counts := s.activeCounts()
	var n int64
	for did, d := range s.st.deals {
		if d.RedemptionCount != counts[did] {
			d.RedemptionCount = counts[did]
			s.st.deals[did] = d
			n++
		}
	}
	return n, nil
}

func (s *Store) Diagnose(_ context.Context, now time.Time) (*model.Diagnosis, error) {
	defer s.lock()()

	var diag model.Diagnosis
	counts := s.activeCounts()
	for did, d := range s.st.deals {
		if _, ok := s.st.approvals[did]; !ok {
			diag.DealsWithoutApproval++
		}
		switch d.Status {
		case "":
			diag.DealsMissingStatus++
		case "verified":
			diag.DealsVerifiedSynonym++
		case model.DealStatusApproved:
			if d.EndDate.Before(now) {
				diag.ExpiredNotPersisted++
			}
		}
		if d.RedemptionCount != counts[did] {
			diag.RedemptionCountMismatches++
		}
	}
	for _, b := range s.st.businesses {
		switch b.VerificationStatus {
		case "":
			diag.BusinessesMissingStatus++
		case "verified":
			diag.BusinessesVerifiedSynonym++
		}
	}
	return &diag, nil
}

// Seed inserts rows as-is, bypassing every check. Tests use it to stage
// states older code paths could write, such as deals without an approval.
func (s *Store) Seed(fn func(users map[id.ID]model.User, businesses map[id.ID]model.Business, deals map[id.ID]model.Deal)) {
	defer s.lock()()
	fn(s.st.users, s.st.businesses, s.st.deals)
}
