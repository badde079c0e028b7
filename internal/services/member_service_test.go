package services

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"mahal/internal/core"
	"mahal/internal/storage/memory"
)

func newAccountServices(store *memory.Store) (*MemberService, *UserService, *countingInvalidator) {
	inv := &countingInvalidator{}
	alloc := NewAllocator(store, nil)
	return NewMemberService(store, alloc, inv),
		NewUserService(store, alloc, inv).WithHashCost(bcrypt.MinCost),
		inv
}

func TestMemberCodeBlocksUserWithSameCode(t *testing.T) {
	ctx := context.Background()
	members, users, _ := newAccountServices(memory.New())

	m := testMember("Abdul Rahman")
	m.RegistrationCode = "REG1234"
	created, err := members.Create(ctx, m)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if created.RegistrationCode != "REG1234" {
		t.Fatalf("supplied code should be kept, got %q", created.RegistrationCode)
	}

	_, err = users.Register(ctx, core.User{
		RegistrationCode: "REG1234",
		Name:             "Secretary",
		Email:            "secretary@mahal.org",
		Role:             core.RoleAdmin,
	}, "long-enough")
	if !errors.Is(err, core.ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
}

func TestMemberCreateGeneratesCode(t *testing.T) {
	ctx := context.Background()
	members, _, inv := newAccountServices(memory.New())

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		m, err := members.Create(ctx, testMember("Member"))
		if err != nil {
			t.Fatalf("create member %d: %v", i, err)
		}
		if !core.IsRegistrationCode(m.RegistrationCode) {
			t.Fatalf("generated code %q is malformed", m.RegistrationCode)
		}
		if seen[m.RegistrationCode] {
			t.Fatalf("code %q handed out twice", m.RegistrationCode)
		}
		seen[m.RegistrationCode] = true
	}
	if inv.n != 20 {
		t.Fatalf("reports invalidated %d times, want 20", inv.n)
	}
}

func TestMemberCreateValidation(t *testing.T) {
	members, _, _ := newAccountServices(memory.New())

	tests := []struct {
		name   string
		mutate func(*core.Member)
		field  string
	}{
		{"missing name", func(m *core.Member) { m.Name = "  " }, "name"},
		{"bad phone", func(m *core.Member) { m.Phone = "12ab" }, "phone"},
		{"bad national id", func(m *core.Member) { m.NationalID = "123" }, "nationalId"},
		{"negative family", func(m *core.Member) { m.FamilyMembers = -1 }, "familyMembers"},
		{"malformed code", func(m *core.Member) { m.RegistrationCode = "REG12" }, "registrationCode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testMember("Valid Name")
			tt.mutate(&m)
			_, err := members.Create(context.Background(), m)
			var ve *core.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestMemberUpdateKeepsCode(t *testing.T) {
	ctx := context.Background()
	members, _, inv := newAccountServices(memory.New())
	m, err := members.Create(ctx, testMember("Before"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	change := m
	change.Name = "After"
	change.RegistrationCode = ""
	updated, err := members.Update(ctx, m.ID, change)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "After" || updated.RegistrationCode != m.RegistrationCode {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if inv.n != 2 {
		t.Fatalf("invalidations after create and update = %d, want 2", inv.n)
	}

	change.RegistrationCode = "REG9998"
	if m.RegistrationCode == "REG9998" {
		change.RegistrationCode = "REG9997"
	}
	if _, err := members.Update(ctx, m.ID, change); !core.IsValidation(err) {
		t.Fatalf("changing the code should be a validation error, got %v", err)
	}

	if _, err := members.Update(ctx, 999, change); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemberDelete(t *testing.T) {
	ctx := context.Background()
	members, _, inv := newAccountServices(memory.New())
	m, err := members.Create(ctx, testMember("Leaving"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := members.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := members.Get(ctx, m.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := members.Delete(ctx, m.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if inv.n != 2 {
		t.Fatalf("invalidations = %d, want 2", inv.n)
	}
}
