package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"mahal/internal/core"
	"mahal/internal/metrics"
	"mahal/internal/ports"
)

// DefaultAllocationAttempts bounds the random candidates tried per request.
const DefaultAllocationAttempts = 10

// Allocator hands out registration codes that are free in both the member
// and the user collections. It only reads; the store's unique constraint
// decides races between concurrent allocations.
type Allocator struct {
	members     ports.CodeChecker
	users       ports.CodeChecker
	intN        func(n int) int
	maxAttempts int
	metrics     *metrics.Metrics
}

// NewAllocator checks candidates against both stores of gw.
func NewAllocator(gw interface {
	ports.MemberStore
	ports.UserStore
}, m *metrics.Metrics) *Allocator {
	return NewAllocatorWithCheckers(
		ports.CodeCheckerFunc(gw.MemberCodeExists),
		ports.CodeCheckerFunc(gw.UserCodeExists),
		m,
	)
}

func NewAllocatorWithCheckers(members, users ports.CodeChecker, m *metrics.Metrics) *Allocator {
	return &Allocator{
		members:     members,
		users:       users,
		intN:        rand.IntN,
		maxAttempts: DefaultAllocationAttempts,
		metrics:     m,
	}
}

// WithRand replaces the random source. intN must return a value in [0, n).
func (a *Allocator) WithRand(intN func(n int) int) *Allocator {
	a.intN = intN
	return a
}

// Allocate returns requested when it is free, or a random free code when
// requested is empty.
func (a *Allocator) Allocate(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		if !core.IsRegistrationCode(requested) {
			return "", core.NewValidationError("registrationCode", "registration code must look like REG1234")
		}
		taken, err := a.taken(ctx, requested)
		if err != nil {
			return "", err
		}
		if taken {
			return "", fmt.Errorf("%s: %w", requested, core.ErrDuplicateIdentifier)
		}
		a.metrics.IncCodesAllocated()
		return requested, nil
	}

	span := core.MaxRegistrationNumber - core.MinRegistrationNumber + 1
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		code := core.FormatRegistrationCode(core.MinRegistrationNumber + a.intN(span))
		taken, err := a.taken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			a.metrics.IncCodesAllocated()
			return code, nil
		}
		a.metrics.IncAllocationCollision()
		slog.DebugContext(ctx, "Registration code candidate taken",
			"registration_code", code,
			"attempt", attempt)
	}

	a.metrics.IncAllocationExhausted()
	slog.WarnContext(ctx, "Registration code allocation exhausted", "attempts", a.maxAttempts)
	return "", core.ErrAllocationExhausted
}

func (a *Allocator) taken(ctx context.Context, code string) (bool, error) {
	inMembers, err := a.members.ExistsByCode(ctx, code)
	if err != nil {
		return false, fmt.Errorf("check member code: %w", err)
	}
	if inMembers {
		return true, nil
	}
	inUsers, err := a.users.ExistsByCode(ctx, code)
	if err != nil {
		return false, fmt.Errorf("check user code: %w", err)
	}
	return inUsers, nil
}

// maxConflictRetries bounds how often a create is retried after the store
// rejects an auto-generated code that another writer claimed first.
const maxConflictRetries = 3

// createWithCode allocates a code and runs create with it. A storage conflict
// on a supplied code is a duplicate; on a generated code it is retried.
func createWithCode[T any](ctx context.Context, a *Allocator, requested, kind string, create func(code string) (T, error)) (T, error) {
	var zero T
	attempts := maxConflictRetries
	if requested != "" {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		code, err := a.Allocate(ctx, requested)
		if err != nil {
			return zero, err
		}
		v, err := create(code)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, core.ErrStorageConflict) {
			return zero, err
		}
		a.metrics.IncStorageConflict(kind)
		slog.WarnContext(ctx, "Registration code lost to a concurrent write",
			"registration_code", code,
			"kind", kind,
			"attempt", attempt)
	}
	return zero, fmt.Errorf("create %s: %w", kind, core.ErrDuplicateIdentifier)
}
