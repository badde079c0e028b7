package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"mahal/internal/core"
	"mahal/internal/ports"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// MaxPasswordBytes is the longest input bcrypt hashes.
const MaxPasswordBytes = 72

type UserService struct {
	store   ports.UserStore
	alloc   *Allocator
	reports Invalidator
	cost    int
}

func NewUserService(store ports.UserStore, alloc *Allocator, reports Invalidator) *UserService {
	return &UserService{store: store, alloc: alloc, reports: reports, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost, mainly to keep tests fast.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.cost = cost
	return s
}

// Register validates u, hashes password and stores the account under a
// registration code shared with members.
func (s *UserService) Register(ctx context.Context, u core.User, password string) (core.User, error) {
	if u.Role == "" {
		u.Role = core.RoleMember
	}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if len(password) < MinPasswordLength {
		return core.User{}, core.NewValidationError("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return core.User{}, core.NewValidationError("password", fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)

	created, err := createWithCode(ctx, s.alloc, u.RegistrationCode, "user", func(code string) (core.User, error) {
		u.RegistrationCode = code
		return s.store.CreateUser(ctx, u)
	})
	if err != nil {
		return core.User{}, fmt.Errorf("register user: %w", err)
	}
	invalidate(s.reports)

	slog.InfoContext(ctx, "User registered",
		"id", created.ID,
		"registration_code", created.RegistrationCode,
		"role", created.Role)

	return created, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (core.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *UserService) Count(ctx context.Context) (int64, error) {
	return s.store.CountUsers(ctx)
}

// CheckPassword reports whether password matches the stored hash of u.
func CheckPassword(u core.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
