// Package accounts handles sign-up, login, identity verification and the
// account lifecycle.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Vahana/app/models"
	"github.com/ManuelReschke/Vahana/app/repository"
	"github.com/ManuelReschke/Vahana/internal/pkg/env"
	"github.com/ManuelReschke/Vahana/internal/pkg/identity"
	"github.com/ManuelReschke/Vahana/internal/pkg/oauth"
	"github.com/ManuelReschke/Vahana/internal/pkg/referral"
	"github.com/ManuelReschke/Vahana/internal/pkg/security"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactive           = errors.New("account is not active")
	ErrAlreadyVerified    = errors.New("identity is already verified")
	ErrCIInUse            = errors.New("identity is already linked to another account")
	ErrActiveService      = errors.New("account has an active subscription or butler service")
	ErrVerificationNeeded = errors.New("identity_code or verification code is required")
)

type Notifier interface {
	SendEmail(to, subject, body string)
	SendSMS(to, message string)
}

// Session is what a successful login hands to the client.
type Session struct {
	User      *models.User `json:"user"`
	Token     Token        `json:"token"`
	IsCreated bool         `json:"-"`
}

type Token struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    float64 `json:"expires_in"`
}

type Service struct {
	repos    *repository.Repositories
	verifier identity.Verifier
	referral *referral.Service
	notifier Notifier
	codes    CodeStore
	secret   string
	now      func() time.Time
}

func NewService(repos *repository.Repositories, verifier identity.Verifier, referralSvc *referral.Service) *Service {
	return &Service{
		repos:    repos,
		verifier: verifier,
		referral: referralSvc,
		codes:    RedisCodeStore{},
		secret:   env.GetEnv("APP_SECRET", ""),
		now:      time.Now,
	}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) SetCodeStore(c CodeStore) { s.codes = c }

func (s *Service) SetSecret(secret string) { s.secret = secret }

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) issue(u *models.User) (*Session, error) {
	pair, err := security.IssuePair(u.ID, s.secret)
	if err != nil {
		return nil, err
	}
	return &Session{
		User: u,
		Token: Token{
			AccessToken:  pair.Access,
			RefreshToken: pair.Refresh,
			ExpiresIn:    security.AccessTokenTTL.Seconds(),
		},
	}, nil
}

func (s *Service) touch(u *models.User) {
	t := s.now()
	u.LastLoginAt = &t
	if err := s.repos.User.Update(u); err != nil {
		log.Warnf("[Accounts] Failed to update last login of user %d: %v", u.ID, err)
	}
}

type SignUpInput struct {
	Email        string `json:"email" validate:"required,email,max=200"`
	Password     string `json:"password" validate:"required,min=8,max=128"`
	Name         string `json:"name" validate:"max=150"`
	Mobile       string `json:"mobile" validate:"omitempty,max=20"`
	IdentityCode string `json:"identity_code"`
	ReferralCode string `json:"referral_code"`
}

// SignUp creates a password account. An identity code is verified before
// the account exists; a referral code that cannot be honoured is logged and
// ignored.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	if err := validator.New().Struct(in); err != nil {
		return nil, err
	}
	taken, err := s.repos.User.ExistsByEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	u, err := models.CreateUser(in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	u.Name = strings.TrimSpace(in.Name)
	u.Mobile = strings.ReplaceAll(strings.TrimSpace(in.Mobile), "-", "")

	if code := strings.TrimSpace(in.IdentityCode); code != "" {
		if err := s.applyIdentity(ctx, u, code); err != nil {
			return nil, err
		}
	}
	if err := s.repos.User.Create(u); err != nil {
		return nil, err
	}
	log.Infof("[Accounts] User %d signed up", u.ID)

	if code := strings.TrimSpace(in.ReferralCode); code != "" && s.referral != nil {
		if _, err := s.referral.Create(ctx, u.ID, code); err != nil {
			log.Warnf("[Accounts] Referral %q for user %d not applied: %v", code, u.ID, err)
		}
	}
	return s.issue(u)
}

// applyIdentity resolves code and copies the verified person onto u.
func (s *Service) applyIdentity(ctx context.Context, u *models.User, code string) error {
	if s.verifier == nil {
		return identity.ErrNotConfigured
	}
	customer, err := s.verifier.Verify(ctx, code)
	if err != nil {
		return err
	}
	other, err := s.repos.User.GetByCIHash(models.HashCI(customer.CI))
	if err == nil && other.ID != u.ID {
		return ErrCIInUse
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	u.HashCI(customer.CI)
	if customer.Name != "" {
		u.Name = customer.Name
	}
	if customer.Mobile != "" {
		u.Mobile = customer.Mobile
	}
	if customer.Birthday != nil {
		u.Birthday = customer.Birthday
	}
	if customer.Gender != "" {
		u.Gender = customer.Gender
	}
	return nil
}

// CheckEmail fails with ErrEmailTaken when email already has an account.
func (s *Service) CheckEmail(ctx context.Context, email string) error {
	if err := validator.New().Var(email, "required,email"); err != nil {
		return err
	}
	taken, err := s.repos.User.ExistsByEmail(email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}
	return nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.repos.User.GetByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive() {
		return nil, ErrInactive
	}
	s.touch(u)
	return s.issue(u)
}

// LoginWithProfile signs a social identity in. Unknown identities are linked
// to the account with the same email or get a fresh account without password.
func (s *Service) LoginWithProfile(ctx context.Context, p *oauth.Profile) (*Session, error) {
	account := &models.ProviderAccount{
		Provider:       p.Provider,
		ProviderUserID: p.ProviderUserID,
		Email:          p.Email,
		AccessToken:    p.AccessToken,
		RefreshToken:   p.RefreshToken,
		ExpiresAt:      p.ExpiresAt,
	}

	var u *models.User
	created := false
	existing, err := s.repos.User.GetProviderAccount(p.Provider, p.ProviderUserID)
	switch {
	case err == nil:
		if u, err = s.repos.User.GetByID(existing.UserID); err != nil {
			return nil, err
		}
		account.UserID = existing.UserID
	case errors.Is(err, gorm.ErrRecordNotFound):
		u, err = s.repos.User.GetByEmail(p.Email)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if u, err = s.createSocialUser(p); err != nil {
				return nil, err
			}
			created = true
		} else if err != nil {
			return nil, err
		}
		account.UserID = u.ID
	default:
		return nil, err
	}

	if !u.IsActive() {
		return nil, ErrInactive
	}
	if err := s.repos.User.SaveProviderAccount(account); err != nil {
		return nil, err
	}
	s.touch(u)

	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	sess.IsCreated = created
	log.Infof("[Accounts] User %d logged in with %s (new=%t)", u.ID, p.Provider, created)
	return sess, nil
}

func (s *Service) createSocialUser(p *oauth.Profile) (*models.User, error) {
	u, err := models.CreateUser(p.Email, "")
	if err != nil {
		return nil, err
	}
	u.Name = p.Name
	u.Mobile = p.Mobile
	u.ProfileImage = p.AvatarURL
	if p.CI != "" {
		if _, err := s.repos.User.GetByCIHash(models.HashCI(p.CI)); errors.Is(err, gorm.ErrRecordNotFound) {
			u.HashCI(p.CI)
		}
	}
	if err := s.repos.User.Create(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Refresh trades a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := security.VerifyToken(refreshToken, security.RefreshToken, s.secret)
	if err != nil {
		return nil, err
	}
	u, err := s.repos.User.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, ErrInactive
	}
	s.touch(u)
	return s.issue(u)
}

// Authenticate resolves an access token to its active user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := security.VerifyToken(accessToken, security.AccessToken, s.secret)
	if err != nil {
		return nil, err
	}
	u, err := s.repos.User.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive() {
		return nil, ErrInactive
	}
	return u, nil
}

type ResetInput struct {
	IdentityCode string `json:"identity_code"`
	Type         string `json:"type"`
	Target       string `json:"target"`
	Code         string `json:"verification_code"`
	NewPassword  string `json:"new_password" validate:"omitempty,min=8,max=128"`
}

// ResetPassword proves account ownership through identity verification or a
// sent code and returns a fresh session. NewPassword, if set, replaces the
// password.
func (s *Service) ResetPassword(ctx context.Context, in ResetInput) (*Session, error) {
	if err := validator.New().Struct(in); err != nil {
		return nil, err
	}

	var u *models.User
	var err error
	switch {
	case strings.TrimSpace(in.IdentityCode) != "":
		if s.verifier == nil {
			return nil, identity.ErrNotConfigured
		}
		customer, verr := s.verifier.Verify(ctx, in.IdentityCode)
		if verr != nil {
			return nil, verr
		}
		u, err = s.repos.User.GetByCIHash(models.HashCI(customer.CI))
	case in.Target != "" && in.Code != "":
		if err := s.CheckVerification(ctx, in.Type, in.Target, in.Code); err != nil {
			return nil, err
		}
		u, err = s.userForTarget(in.Type, in.Target)
		if err == nil {
			target, _ := normalizeTarget(in.Type, in.Target)
			_ = s.codes.Delete(codeKey(in.Type, target))
		}
	default:
		return nil, ErrVerificationNeeded
	}
	if err != nil {
		return nil, err
	}

	if in.NewPassword != "" {
		if err := u.SetPassword(in.NewPassword); err != nil {
			return nil, err
		}
		if err := s.repos.User.Update(u); err != nil {
			return nil, err
		}
		log.Infof("[Accounts] Password of user %d reset", u.ID)
	}
	return s.issue(u)
}

// VerifyIdentity attaches a verified identity to an account that has none.
func (s *Service) VerifyIdentity(ctx context.Context, userID uint, code string) (*Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: identity_code", ErrVerificationNeeded)
	}
	u, err := s.repos.User.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if u.IsCIVerified() {
		return nil, ErrAlreadyVerified
	}
	if err := s.applyIdentity(ctx, u, code); err != nil {
		return nil, err
	}
	if err := s.repos.User.Update(u); err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *Service) Get(ctx context.Context, userID uint) (*Session, error) {
	u, err := s.repos.User.GetByID(userID)
	if err != nil {
		return nil, err
	}
	s.touch(u)
	return s.issue(u)
}

type UpdateInput struct {
	Name         *string `json:"name" validate:"omitempty,max=150"`
	Mobile       *string `json:"mobile" validate:"omitempty,max=20"`
	ProfileImage *string `json:"profile_image" validate:"omitempty,max=255"`
	Password     *string `json:"password" validate:"omitempty,min=8,max=128"`
}

func (s *Service) Update(ctx context.Context, userID uint, in UpdateInput) (*models.User, error) {
	if err := validator.New().Struct(in); err != nil {
		return nil, err
	}
	u, err := s.repos.User.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Mobile != nil {
		u.Mobile = strings.ReplaceAll(strings.TrimSpace(*in.Mobile), "-", "")
	}
	if in.ProfileImage != nil {
		u.ProfileImage = *in.ProfileImage
	}
	if in.Password != nil {
		if err := u.SetPassword(*in.Password); err != nil {
			return nil, err
		}
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.repos.User.Update(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Withdraw deletes the account unless a subscription or butler is running
// or pending.
func (s *Service) Withdraw(ctx context.Context, userID uint) error {
	active, err := s.hasActiveService(userID)
	if err != nil {
		return err
	}
	if active {
		return ErrActiveService
	}
	if err := s.repos.User.Delete(userID); err != nil {
		return err
	}
	log.Infof("[Accounts] User %d withdrew", userID)
	return nil
}

func (s *Service) hasActiveService(userID uint) (bool, error) {
	subs, err := s.repos.Subscription.ListContractsByUser(userID)
	if err != nil {
		return false, err
	}
	for _, c := range subs {
		if c.IsActive {
			return true, nil
		}
	}
	subReqs, err := s.repos.Subscription.ListRequestsByUser(userID, true)
	if err != nil {
		return false, err
	}
	if len(subReqs) > 0 {
		return true, nil
	}

	butlers, err := s.repos.Butler.ListContractsByUser(userID)
	if err != nil {
		return false, err
	}
	for _, b := range butlers {
		if b.IsActive {
			return true, nil
		}
	}
	butlerReqs, err := s.repos.Butler.ListRequestsByUser(userID, true)
	if err != nil {
		return false, err
	}
	return len(butlerReqs) > 0, nil
}
