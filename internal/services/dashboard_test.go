package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"mahal/internal/core"
	"mahal/internal/storage/memory"
)

// countingStore counts SumByCategory calls to observe cache hits.
type countingStore struct {
	*memory.Store
	mu   sync.Mutex
	sums int
}

func (s *countingStore) SumByCategory(ctx context.Context) ([]core.CategoryAmount, error) {
	s.mu.Lock()
	s.sums++
	s.mu.Unlock()
	return s.Store.SumByCategory(ctx)
}

func (s *countingStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sums
}

func newDashboard(store *countingStore, ttl time.Duration) *DashboardService {
	agg := NewFundAggregator(store, store, core.DefaultNormalizer())
	d := NewDashboardService(agg, store, ttl, nil)
	d.now = func() time.Time { return baseDate }
	return d
}

func TestDashboardStats(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: memory.New()}
	members, users, _ := newAccountServices(store.Store)
	if _, err := members.Create(ctx, testMember("One")); err != nil {
		t.Fatalf("create member: %v", err)
	}
	if _, err := users.Register(ctx, core.User{Name: "Admin", Email: "admin@mahal.org", Role: core.RoleAdmin}, "password1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	seedCollections(t, store.Store,
		fc(1000, "mayyathu", baseDate),
		fc(2500, "monthly donation", baseDate.AddDate(0, 1, 0)),
		fc(400, "sadaqa", baseDate.AddDate(0, 1, 1)),
	)

	stats, err := newDashboard(store, time.Minute).Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalUsers != 1 || stats.TotalMembers != 1 {
		t.Fatalf("counts = %d users, %d members", stats.TotalUsers, stats.TotalMembers)
	}
	if stats.TotalMoneyCollected.Cents != 3900 ||
		stats.MemorialFundTotal.Cents != 1000 ||
		stats.MonthlyDonationTotal.Cents != 2500 ||
		stats.OtherTotal.Cents != 400 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if len(stats.MonthlySeries) != 2 || len(stats.RecentCollections) != 3 {
		t.Fatalf("series=%d recent=%d", len(stats.MonthlySeries), len(stats.RecentCollections))
	}
	if stats.RecentCollections[0].Category != "sadaqa" || stats.RecentCollections[0].Bucket != core.BucketOther {
		t.Fatalf("newest activity = %+v", stats.RecentCollections[0])
	}
	if !stats.GeneratedAt.Equal(baseDate) {
		t.Fatalf("GeneratedAt = %v", stats.GeneratedAt)
	}
}

func TestDashboardCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: memory.New()}
	d := newDashboard(store, time.Hour)
	seedCollections(t, store.Store, fc(100, "monthly", baseDate))

	for i := 0; i < 3; i++ {
		if _, err := d.Stats(ctx); err != nil {
			t.Fatalf("Stats: %v", err)
		}
	}
	if store.calls() != 1 {
		t.Fatalf("store queried %d times, want 1", store.calls())
	}

	svc := NewCollectionService(store, store, core.DefaultNormalizer(), nil, d, nil)
	if _, err := svc.Record(ctx, CollectionInput{Amount: core.Money{Cents: 900}, Category: "monthly", CollectedBy: "x"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	stats, err := d.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalMoneyCollected.Cents != 1000 {
		t.Fatalf("stale total after write: %d", stats.TotalMoneyCollected.Cents)
	}
	if store.calls() != 2 {
		t.Fatalf("store queried %d times, want 2", store.calls())
	}
}

func TestDashboardWithoutCache(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: memory.New()}
	d := newDashboard(store, 0)
	for i := 0; i < 2; i++ {
		if _, err := d.Stats(ctx); err != nil {
			t.Fatalf("Stats: %v", err)
		}
	}
	if store.calls() != 2 {
		t.Fatalf("uncached dashboard queried %d times, want 2", store.calls())
	}
	if len(d.Caches()) != 0 {
		t.Fatal("no caches expected when ttl is zero")
	}
	d.Invalidate()
}

func TestDashboardConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: memory.New()}
	seedCollections(t, store.Store, fc(100, "mayyathu", baseDate))
	d := newDashboard(store, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := d.Stats(ctx)
			if err != nil || stats.MemorialFundTotal.Cents != 100 {
				t.Errorf("Stats = %+v, %v", stats, err)
			}
		}()
	}
	wg.Wait()
}

func TestDashboardBucketReportCached(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: memory.New()}
	seedCollections(t, store.Store, fc(100, "mayyathu", baseDate), fc(50, "zakat", baseDate))
	d := newDashboard(store, time.Hour)

	r, err := d.BucketReport(ctx, core.BucketMemorialFund)
	if err != nil || r.Total.Cents != 100 || len(r.Collections) != 1 {
		t.Fatalf("BucketReport = %+v, %v", r, err)
	}
	seedCollections(t, store.Store, fc(25, "mayyathu", baseDate))
	if r, _ := d.BucketReport(ctx, core.BucketMemorialFund); r.Total.Cents != 100 {
		t.Fatalf("expected cached report, got total %d", r.Total.Cents)
	}
	d.Invalidate()
	if r, _ := d.BucketReport(ctx, core.BucketMemorialFund); r.Total.Cents != 125 {
		t.Fatalf("expected fresh report, got total %d", r.Total.Cents)
	}
}
