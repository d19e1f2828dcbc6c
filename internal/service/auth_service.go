package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pinnity/pinnity/internal/audit"
	"github.com/pinnity/pinnity/internal/auth"
	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
)

var validate = validator.New()

// SignupInput is the account part of both signup forms.
type SignupInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (in *SignupInput) validate() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := validate.Var(in.Email, "required,email,max=254"); err != nil {
		return invalid("email", "must be a valid email address")
	}
	if err := auth.CheckStrength(in.Password); err != nil {
		return invalid("password", err.Error())
	}
	if err := validate.Var(in.Username, "omitempty,min=3,max=32"); err != nil {
		return invalid("username", "must be 3 to 32 characters")
	}
	return nil
}

// BusinessInput is the vendor-editable business profile.
type BusinessInput struct {
	BusinessName string   `json:"business_name"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	Address      string   `json:"address"`
	Phone        string   `json:"phone"`
	Website      string   `json:"website"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

func (in *BusinessInput) validate() error {
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	if in.BusinessName == "" {
		return invalid("business_name", "is required")
	}
	if in.Category != "" && !model.ValidCategory(in.Category) {
		return invalid("category", "is not a known category")
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return invalid("latitude", "must be between -90 and 90")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return invalid("longitude", "must be between -180 and 180")
	}
	return nil
}

func (in *BusinessInput) apply(b *model.Business) {
	b.BusinessName = in.BusinessName
	b.Category = in.Category
	b.Description = in.Description
	b.Address = in.Address
	b.Phone = in.Phone
	b.Website = in.Website
	b.Latitude = in.Latitude
	b.Longitude = in.Longitude
}

// Session is a signed-in user.
type Session struct {
	User     *model.User     `json:"user"`
	Business *model.Business `json:"business,omitempty"`
	Token    string          `json:"token"`
}

// AuthService handles signup and login.
type AuthService struct {
	base
	hasher *auth.Hasher
	tokens *auth.TokenManager
}

func NewAuthService(store repository.Store, hasher *auth.Hasher, tokens *auth.TokenManager, opts ...Option) *AuthService {
	return &AuthService{base: newBase(store, opts), hasher: hasher, tokens: tokens}
}

func (s *AuthService) newUser(in SignupInput, t model.UserType) (*model.User, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:           id.NewUserID(),
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		UserType:     t,
	}
	if in.Username != "" {
		username := in.Username
		u.Username = &username
	}
	return u, nil
}

func createUser(ctx context.Context, tx repository.Store, u *model.User) error {
	if err := tx.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if strings.Contains(err.Error(), "username") {
				return ErrUsernameTaken
			}
			return ErrEmailTaken
		}
		return err
	}
	prefs := model.DefaultPreferences(u.ID)
	return tx.SavePreferences(ctx, &prefs)
}

// Signup registers an individual (customer) account.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	u, err := s.newUser(in, model.UserIndividual)
	if err != nil {
		return nil, err
	}

	if err := s.store.InTx(ctx, func(tx repository.Store) error {
		return createUser(ctx, tx, u)
	}); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", u.ID, "user_type", u.UserType)
	s.record(ctx, audit.Event{Action: "user.signup", Resource: audit.ResourceUser, ResourceID: u.ID.String(), ActorID: u.ID.String()})
	return s.session(u, nil)
}

// CreateAdmin registers an administrator. It is not reachable over HTTP;
// cmd/seed uses it to bootstrap the first admin.
func (s *AuthService) CreateAdmin(ctx context.Context, in SignupInput) (*model.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	u, err := s.newUser(in, model.UserAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.store.InTx(ctx, func(tx repository.Store) error {
		return createUser(ctx, tx, u)
	}); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "admin created", "user_id", u.ID)
	return u, nil
}

// SignupBusiness registers a vendor and its business in one transaction.
// The business starts pending verification.
func (s *AuthService) SignupBusiness(ctx context.Context, in SignupInput, biz BusinessInput) (*Session, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := biz.validate(); err != nil {
		return nil, err
	}
	u, err := s.newUser(in, model.UserBusiness)
	if err != nil {
		return nil, err
	}
	b := &model.Business{
		ID:                 id.NewBusinessID(),
		UserID:             u.ID,
		VerificationStatus: model.VerificationPending,
	}
	biz.apply(b)

	if err := s.store.InTx(ctx, func(tx repository.Store) error {
		if err := createUser(ctx, tx, u); err != nil {
			return err
		}
		return tx.CreateBusiness(ctx, b)
	}); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "vendor signed up", "user_id", u.ID, "business_id", b.ID)
	s.record(ctx, audit.Event{Action: "business.created", Resource: audit.ResourceBusiness, ResourceID: b.ID.String(), ActorID: u.ID.String()})
	return s.session(u, b)
}

// Login checks credentials. Unknown email and wrong password fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	var b *model.Business
	if u.IsVendor() {
		b, err = s.store.GetBusinessByUser(ctx, u.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return s.session(u, b)
}

// Me returns the current user.
func (s *AuthService) Me(ctx context.Context, userID id.ID) (*model.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	return u, nil
}

func (s *AuthService) session(u *model.User, b *model.Business) (*Session, error) {
	token, err := s.tokens.GenerateToken(u.ID.String(), u.Email, string(u.UserType))
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Business: b, Token: token}, nil
}
