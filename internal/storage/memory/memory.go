// Package memory is an in-process persistence gateway. It keeps one shared
// registration code set across members and users, standing in for the unique
// index the sqlite store enforces.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"mahal/internal/core"
	"mahal/internal/ports"
)

var _ ports.Gateway = (*Store)(nil)

type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	codes       map[string]struct{}
	members     map[int64]core.Member
	users       map[int64]core.User
	collections map[int64]core.FundCollection
	nextID      int64
}

func New() *Store {
	return &Store{
		now:         time.Now,
		codes:       make(map[string]struct{}),
		members:     make(map[int64]core.Member),
		users:       make(map[int64]core.User),
		collections: make(map[int64]core.FundCollection),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) MemberCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.RegistrationCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UserCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.RegistrationCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) claimCode(code string) error {
	if _, taken := s.codes[code]; taken {
		return fmt.Errorf("claim %s: %w", code, core.ErrStorageConflict)
	}
	s.codes[code] = struct{}{}
	return nil
}

func (s *Store) CreateMember(_ context.Context, m core.Member) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claimCode(m.RegistrationCode); err != nil {
		return core.Member{}, err
	}
	m.ID = s.id()
	m.CreatedAt = s.now().UTC()
	m.UpdatedAt = m.CreatedAt
	s.members[m.ID] = m
	return m, nil
}

func (s *Store) GetMember(_ context.Context, id int64) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return core.Member{}, fmt.Errorf("member %d: %w", id, core.ErrNotFound)
	}
	return m, nil
}

func (s *Store) ListMembers(_ context.Context) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateMember(_ context.Context, m core.Member) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.members[m.ID]
	if !ok {
		return core.Member{}, fmt.Errorf("member %d: %w", m.ID, core.ErrNotFound)
	}
	m.RegistrationCode = cur.RegistrationCode
	m.CreatedAt = cur.CreatedAt
	m.UpdatedAt = s.now().UTC()
	s.members[m.ID] = m
	return m, nil
}

func (s *Store) DeleteMember(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return fmt.Errorf("member %d: %w", id, core.ErrNotFound)
	}
	delete(s.members, id)
	delete(s.codes, m.RegistrationCode)
	return nil
}

func (s *Store) CountMembers(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.members)), nil
}

func (s *Store) MemberRefs(_ context.Context, ids []int64) (map[int64]core.MemberRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]core.MemberRef, len(ids))
	for _, id := range ids {
		if m, ok := s.members[id]; ok {
			out[id] = core.MemberRef{ID: m.ID, Name: m.Name, RegistrationCode: m.RegistrationCode}
		}
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return core.User{}, fmt.Errorf("email %s: %w", u.Email, core.ErrDuplicateEmail)
		}
	}
	if err := s.claimCode(u.RegistrationCode); err != nil {
		return core.User{}, err
	}
	u.ID = s.id()
	u.CreatedAt = s.now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) CountUsers(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *Store) CreateCollection(_ context.Context, c core.FundCollection) (core.FundCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	c.Member = nil
	c.CreatedAt = s.now().UTC()
	c.UpdatedAt = c.CreatedAt
	s.collections[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCollection(_ context.Context, c core.FundCollection) (core.FundCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.collections[c.ID]
	if !ok {
		return core.FundCollection{}, fmt.Errorf("collection %d: %w", c.ID, core.ErrNotFound)
	}
	c.Member = nil
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = s.now().UTC()
	s.collections[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCollection(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[id]; !ok {
		return fmt.Errorf("collection %d: %w", id, core.ErrNotFound)
	}
	delete(s.collections, id)
	return nil
}

func (s *Store) GetCollection(_ context.Context, id int64) (core.FundCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[id]
	if !ok {
		return core.FundCollection{}, fmt.Errorf("collection %d: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCollections(_ context.Context) ([]core.FundCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedCollections(func(core.FundCollection) bool { return true }), nil
}

func (s *Store) ListCollectionsByCategories(_ context.Context, categories []string) ([]core.FundCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedCollections(func(c core.FundCollection) bool {
		return slices.Contains(categories, c.Category)
	}), nil
}

func (s *Store) RecentCollections(_ context.Context, limit int) ([]core.FundCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sortedCollections(func(core.FundCollection) bool { return true })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortedCollections must be called with mu held.
func (s *Store) sortedCollections(keep func(core.FundCollection) bool) []core.FundCollection {
	out := make([]core.FundCollection, 0, len(s.collections))
	for _, c := range s.collections {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CollectedDate.Equal(out[j].CollectedDate) {
			return out[i].CollectedDate.After(out[j].CollectedDate)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) SumByCategory(_ context.Context) ([]core.CategoryAmount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCat := make(map[string]*core.CategoryAmount)
	for _, c := range s.collections {
		ca, ok := byCat[c.Category]
		if !ok {
			ca = &core.CategoryAmount{Category: c.Category}
			byCat[c.Category] = ca
		}
		ca.Amount = ca.Amount.Add(c.Amount)
		ca.Count++
	}
	out := make([]core.CategoryAmount, 0, len(byCat))
	for _, ca := range byCat {
		out = append(out, *ca)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) MonthlyTotals(_ context.Context) ([]core.MonthlyTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type ym struct{ year, month int }
	byMonth := make(map[ym]*core.MonthlyTotal)
	for _, c := range s.collections {
		d := c.CollectedDate.UTC()
		k := ym{d.Year(), int(d.Month())}
		mt, ok := byMonth[k]
		if !ok {
			mt = &core.MonthlyTotal{Year: k.year, Month: k.month}
			byMonth[k] = mt
		}
		mt.Total = mt.Total.Add(c.Amount)
		mt.Count++
	}
	out := make([]core.MonthlyTotal, 0, len(byMonth))
	for _, mt := range byMonth {
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}
