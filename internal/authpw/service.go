// Package authpw provides email/password accounts for delegates and staff.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"negotiate/api/internal/store"
	"negotiate/api/internal/util"
)

const minPasswordLength = 8

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Service struct {
	store UserStore
	cost  int
}

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user *store.User) error
}

func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

type SignUpRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SignUp creates an account. Accounts start unverified; verification only
// gates features outside this service.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return store.User{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if len(req.Password) < minPasswordLength {
		return store.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return store.User{}, ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
	}
	if err := s.store.CreateUser(ctx, &user); err != nil {
		if store.IsUniqueViolation(err, "") {
			return store.User{}, ErrEmailTaken
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, error) {
	if email == "" || password == "" {
		return store.User{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}
