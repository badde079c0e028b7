package services

import (
	"context"
	"errors"
	"testing"

	"mahal/internal/core"
	"mahal/internal/ports"
)

// codeSet is a CodeChecker backed by a fixed set.
type codeSet map[string]bool

func (s codeSet) ExistsByCode(_ context.Context, code string) (bool, error) {
	return s[code], nil
}

// sequence returns intN values from vals in order, repeating the last.
func sequence(vals ...int) func(int) int {
	i := 0
	return func(int) int {
		v := vals[min(i, len(vals)-1)]
		i++
		return v
	}
}

func TestAllocateSuppliedCode(t *testing.T) {
	members := codeSet{"REG1234": true}
	users := codeSet{"REG5678": true}
	a := NewAllocatorWithCheckers(members, users, nil)

	tests := []struct {
		name    string
		code    string
		wantErr error
	}{
		{"free code is returned unchanged", "REG4321", nil},
		{"held by a member", "REG1234", core.ErrDuplicateIdentifier},
		{"held by a user", "REG5678", core.ErrDuplicateIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Allocate(context.Background(), tt.code)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Allocate(%q) error = %v, want %v", tt.code, err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.code {
				t.Fatalf("Allocate(%q) = %q, %v", tt.code, got, err)
			}
		})
	}

	if _, err := a.Allocate(context.Background(), "ABC1234"); !core.IsValidation(err) {
		t.Fatalf("malformed code should be a validation error, got %v", err)
	}
}

func TestAllocateGeneratesFirstFreeCandidate(t *testing.T) {
	members := codeSet{"REG1000": true}
	users := codeSet{"REG1001": true}
	a := NewAllocatorWithCheckers(members, users, nil).WithRand(sequence(0, 1, 2))

	got, err := a.Allocate(context.Background(), "")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != "REG1002" {
		t.Fatalf("Allocate = %q, want REG1002", got)
	}
}

func TestAllocateStaysInRange(t *testing.T) {
	a := NewAllocatorWithCheckers(codeSet{}, codeSet{}, nil)
	for i := 0; i < 500; i++ {
		code, err := a.Allocate(context.Background(), "")
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if !core.IsRegistrationCode(code) {
			t.Fatalf("generated %q is not a registration code", code)
		}
	}

	top := NewAllocatorWithCheckers(codeSet{}, codeSet{}, nil).WithRand(func(n int) int { return n - 1 })
	if code, _ := top.Allocate(context.Background(), ""); code != "REG9999" {
		t.Fatalf("upper bound candidate = %q, want REG9999", code)
	}
}

func TestAllocateExhaustsAfterBound(t *testing.T) {
	checks := 0
	taken := ports.CodeCheckerFunc(func(context.Context, string) (bool, error) {
		checks++
		return true, nil
	})
	a := NewAllocatorWithCheckers(taken, codeSet{}, nil)

	_, err := a.Allocate(context.Background(), "")
	if !errors.Is(err, core.ErrAllocationExhausted) {
		t.Fatalf("expected ErrAllocationExhausted, got %v", err)
	}
	if checks != DefaultAllocationAttempts {
		t.Fatalf("checked %d candidates, want %d", checks, DefaultAllocationAttempts)
	}
}

func TestAllocatePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	failing := ports.CodeCheckerFunc(func(context.Context, string) (bool, error) { return false, boom })
	a := NewAllocatorWithCheckers(codeSet{}, failing, nil)

	if _, err := a.Allocate(context.Background(), "REG2222"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestCreateWithCodeRetriesGeneratedConflicts(t *testing.T) {
	a := NewAllocatorWithCheckers(codeSet{}, codeSet{}, nil).WithRand(sequence(10, 20, 30))
	var tried []string
	got, err := createWithCode(context.Background(), a, "", "member", func(code string) (string, error) {
		tried = append(tried, code)
		if len(tried) < 3 {
			return "", core.ErrStorageConflict
		}
		return code, nil
	})
	if err != nil {
		t.Fatalf("createWithCode: %v", err)
	}
	if got != "REG1030" || len(tried) != 3 {
		t.Fatalf("got %q after %v", got, tried)
	}
}

func TestCreateWithCodeGivesUpAfterRetries(t *testing.T) {
	a := NewAllocatorWithCheckers(codeSet{}, codeSet{}, nil)
	calls := 0
	_, err := createWithCode(context.Background(), a, "", "user", func(string) (int, error) {
		calls++
		return 0, core.ErrStorageConflict
	})
	if !errors.Is(err, core.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate identifier, got %v", err)
	}
	if calls != maxConflictRetries {
		t.Fatalf("create called %d times, want %d", calls, maxConflictRetries)
	}
}

func TestCreateWithCodeSuppliedConflictIsDuplicate(t *testing.T) {
	a := NewAllocatorWithCheckers(codeSet{}, codeSet{}, nil)
	calls := 0
	_, err := createWithCode(context.Background(), a, "REG7777", "member", func(string) (int, error) {
		calls++
		return 0, core.ErrStorageConflict
	})
	if !errors.Is(err, core.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate identifier, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("supplied codes must not be retried, got %d calls", calls)
	}
}
