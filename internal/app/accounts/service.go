package accounts

import (
	"context"
	"errors"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kinship-labs/parent-match-api/internal/app/apperr"
	"github.com/kinship-labs/parent-match-api/internal/domain"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/accountrepo"
	clockport "github.com/kinship-labs/parent-match-api/internal/ports/out/clock"
)

// MinPasswordLength is the minimum number of characters in a password.
const MinPasswordLength = 8

// MaxPasswordBytes is bcrypt's input limit, counted in bytes rather than characters.
const MaxPasswordBytes = 72

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil when password matches hash.
	Compare(hash, password string) error
}

// TokenIssuer mints access tokens for an authenticated subject.
type TokenIssuer interface {
	Issue(sub domain.SubjectID) (token string, expiresAt time.Time, err error)
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Session is returned by Register and Login.
type Session struct {
	Account   domain.Account
	Token     string
	ExpiresAt time.Time
}

type Service struct {
	repo   accountrepo.Repository
	hasher PasswordHasher
	tokens TokenIssuer
	clk    clockport.Clock

	newAccountID func() domain.AccountID
}

func NewService(repo accountrepo.Repository, hasher PasswordHasher, tokens TokenIssuer, clk clockport.Clock) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		clk:    clk,
		newAccountID: func() domain.AccountID {
			return domain.AccountID(uuid.NewString())
		},
	}
}

// SetNewAccountIDForTest overrides account ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewAccountIDForTest(fn func() domain.AccountID) {
	if fn != nil {
		s.newAccountID = fn
	}
}

func errInvalidCredentials() *apperr.Error {
	return apperr.Unauthorized("INVALID_CREDENTIALS", "invalid email or password")
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	details := map[string]any{}
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		details["email"] = "must be non-empty"
	} else if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "must be a valid email address"
	}
	switch {
	case utf8.RuneCountInString(in.Password) < MinPasswordLength:
		details["password"] = "must be at least 8 characters"
	case len(in.Password) > MaxPasswordBytes:
		details["password"] = "must be at most 72 bytes"
	}
	firstName := domain.NormalizeHumanName(in.FirstName)
	if firstName == "" {
		details["firstName"] = "must be non-empty"
	}
	lastName := domain.NormalizeHumanName(in.LastName)
	if lastName == "" {
		details["lastName"] = "must be non-empty"
	}
	if len(details) > 0 {
		return Session{}, apperr.Validation("invalid registration", details)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, err
	}
	now := s.clk.Now()
	a := domain.Account{
		ID:           s.newAccountID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, accountrepo.ErrEmailTaken) {
			return Session{}, apperr.Conflict("EMAIL_ALREADY_IN_USE", "an account with this email already exists")
		}
		return Session{}, err
	}
	return s.session(a)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	a, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, accountrepo.ErrNotFound) {
			return Session{}, errInvalidCredentials()
		}
		return Session{}, err
	}
	if err := s.hasher.Compare(a.PasswordHash, password); err != nil {
		return Session{}, errInvalidCredentials()
	}
	if !a.IsActive {
		return Session{}, apperr.Forbidden("ACCOUNT_DISABLED", "account is disabled")
	}
	return s.session(a)
}

// GetAccount returns the account behind an authenticated subject.
func (s *Service) GetAccount(ctx context.Context, sub domain.SubjectID) (domain.Account, error) {
	a, err := s.repo.GetByID(ctx, domain.AccountID(sub))
	if err != nil {
		if errors.Is(err, accountrepo.ErrNotFound) {
			return domain.Account{}, apperr.NotFound("ACCOUNT_NOT_FOUND", "account not found")
		}
		return domain.Account{}, err
	}
	return a, nil
}

func (s *Service) session(a domain.Account) (Session, error) {
	tok, exp, err := s.tokens.Issue(a.Subject())
	if err != nil {
		return Session{}, err
	}
	a.PasswordHash = ""
	return Session{Account: a, Token: tok, ExpiresAt: exp}, nil
}
