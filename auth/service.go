package auth

import (
	"context"
	"regexp"
	"time"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 64
)

var usernameFormat = regexp.MustCompile("^[a-z0-9_]{3,20}$")

type service struct {
	accountRepo    AccountRepo
	passwordHasher PasswordHasher
	tokenManager   TokenManager
	now            func() time.Time
}

func NewService(accountRepo AccountRepo, passwordHasher PasswordHasher, tokenManager TokenManager) *service {
	return &service{
		accountRepo:    accountRepo,
		passwordHasher: passwordHasher,
		tokenManager:   tokenManager,
		now:            time.Now,
	}
}

func validateCredentials(username, password string) error {
	if !usernameFormat.MatchString(username) {
		return ErrInvalidUsernameFormat
	}
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength {
		return ErrWeakPassword
	}
	if n > maxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// Signup creates the account and returns a session token for it.
func (s *service) Signup(ctx context.Context, username, password string) (string, error) {
	if err := validateCredentials(username, password); err != nil {
		return "", err
	}

	hash, err := s.passwordHasher.Hash(password)
	if err != nil {
		return "", err
	}

	id, err := s.accountRepo.CreateAccount(ctx, username, hash)
	if err != nil {
		return "", err
	}

	return s.tokenManager.Generate(id, s.now())
}

func (s *service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.accountRepo.GetAccountByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	match, err := s.passwordHasher.Compare(user.PasswordHash, password)
	if err != nil {
		return "", err
	}
	if !match {
		return "", ErrIncorrectPassword
	}

	return s.tokenManager.Generate(user.Id, s.now())
}

// VerifyToken returns the account id if the token is valid.
func (s *service) VerifyToken(token string) (string, error) {
	return s.tokenManager.Verify(token)
}

func (s *service) GenerateToken(id string) (string, error) {
	return s.tokenManager.Generate(id, s.now())
}
