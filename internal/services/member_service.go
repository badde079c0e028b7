package services

import (
	"context"
	"fmt"
	"log/slog"

	"mahal/internal/core"
	"mahal/internal/ports"
)

// Invalidator drops cached report data after a write.
type Invalidator interface {
	Invalidate()
}

func invalidate(i Invalidator) {
	if i != nil {
		i.Invalidate()
	}
}

// MemberService registers and maintains community members.
type MemberService struct {
	store   ports.MemberStore
	alloc   *Allocator
	reports Invalidator
}

// NewMemberService wires a member store to the shared code allocator. reports
// may be nil.
func NewMemberService(store ports.MemberStore, alloc *Allocator, reports Invalidator) *MemberService {
	return &MemberService{store: store, alloc: alloc, reports: reports}
}

// Create validates m, assigns its registration code and stores it. A
// supplied code that is already taken yields core.ErrDuplicateIdentifier.
func (s *MemberService) Create(ctx context.Context, m core.Member) (core.Member, error) {
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	created, err := createWithCode(ctx, s.alloc, m.RegistrationCode, "member", func(code string) (core.Member, error) {
		m.RegistrationCode = code
		return s.store.CreateMember(ctx, m)
	})
	if err != nil {
		return core.Member{}, fmt.Errorf("create member: %w", err)
	}
	invalidate(s.reports)

	slog.InfoContext(ctx, "Member registered",
		"id", created.ID,
		"registration_code", created.RegistrationCode)

	return created, nil
}

func (s *MemberService) Get(ctx context.Context, id int64) (core.Member, error) {
	return s.store.GetMember(ctx, id)
}

func (s *MemberService) List(ctx context.Context) ([]core.Member, error) {
	return s.store.ListMembers(ctx)
}

// Update replaces the mutable fields of member id. The registration code is
// fixed at creation; sending a different one is a validation error.
func (s *MemberService) Update(ctx context.Context, id int64, m core.Member) (core.Member, error) {
	current, err := s.store.GetMember(ctx, id)
	if err != nil {
		return core.Member{}, err
	}
	if m.RegistrationCode != "" && m.RegistrationCode != current.RegistrationCode {
		return core.Member{}, core.NewValidationError("registrationCode", "registration code cannot be changed")
	}
	m.ID = id
	m.RegistrationCode = current.RegistrationCode
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	updated, err := s.store.UpdateMember(ctx, m)
	if err != nil {
		return core.Member{}, fmt.Errorf("update member %d: %w", id, err)
	}
	invalidate(s.reports)
	return updated, nil
}

// Delete removes the member. Collections referencing it keep their weak
// reference and simply stop resolving.
func (s *MemberService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteMember(ctx, id); err != nil {
		return err
	}
	invalidate(s.reports)
	slog.InfoContext(ctx, "Member deleted", "id", id)
	return nil
}
