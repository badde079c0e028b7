package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"mahal/internal/cache"
	"mahal/internal/core"
	"mahal/internal/metrics"
)

const dashboardKey = "dashboard"

type counter interface {
	CountMembers(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

// DashboardService builds the dashboard and per-bucket reports and caches
// them until the next write or the TTL, whichever comes first.
type DashboardService struct {
	agg        *FundAggregator
	counts     counter
	dashboards cache.Cache[core.DashboardStats]
	buckets    cache.Cache[core.BucketReport]
	group      singleflight.Group
	generation atomic.Uint64
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewDashboardService keeps results for ttl. A ttl of zero disables caching.
func NewDashboardService(agg *FundAggregator, counts counter, ttl time.Duration, m *metrics.Metrics) *DashboardService {
	s := &DashboardService{
		agg:     agg,
		counts:  counts,
		metrics: m,
		now:     time.Now,
	}
	if ttl > 0 {
		s.dashboards = cache.NewLRUCache[core.DashboardStats](1, ttl)
		s.buckets = cache.NewLRUCache[core.BucketReport](len(core.AllBuckets()), ttl)
	}
	return s
}

// Caches returns the underlying caches so a cache.Manager can clean them.
func (s *DashboardService) Caches() []cache.Cleaner {
	var out []cache.Cleaner
	for _, c := range []any{s.dashboards, s.buckets} {
		if cl, ok := c.(cache.Cleaner); ok {
			out = append(out, cl)
		}
	}
	return out
}

// Invalidate drops cached reports. Builds already in flight will not store
// their result.
func (s *DashboardService) Invalidate() {
	s.generation.Add(1)
	if s.dashboards != nil {
		s.dashboards.Purge()
	}
	if s.buckets != nil {
		s.buckets.Purge()
	}
}

// Stats returns the dashboard payload.
func (s *DashboardService) Stats(ctx context.Context) (core.DashboardStats, error) {
	if s.dashboards != nil {
		if stats, ok := s.dashboards.Get(dashboardKey); ok {
			return stats, nil
		}
	}
	v, err, _ := s.group.Do(dashboardKey, func() (any, error) {
		gen := s.generation.Load()
		stats, err := s.buildStats(ctx)
		if err != nil {
			return core.DashboardStats{}, err
		}
		if s.dashboards != nil && s.generation.Load() == gen {
			s.dashboards.Set(dashboardKey, stats)
		}
		return stats, nil
	})
	if err != nil {
		return core.DashboardStats{}, err
	}
	return v.(core.DashboardStats), nil
}

func (s *DashboardService) buildStats(ctx context.Context) (core.DashboardStats, error) {
	defer s.metrics.ObserveDashboard(time.Now())

	var (
		stats   core.DashboardStats
		buckets []core.BucketTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = s.counts.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalMembers, err = s.counts.CountMembers(gctx)
		return err
	})
	g.Go(func() (err error) {
		buckets, err = s.agg.BucketTotals(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.MonthlySeries, err = s.agg.MonthlySeries(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.RecentCollections, err = s.agg.RecentActivity(gctx, DefaultRecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.DashboardStats{}, fmt.Errorf("build dashboard: %w", err)
	}

	for _, b := range buckets {
		stats.TotalMoneyCollected = stats.TotalMoneyCollected.Add(b.Total)
		switch b.Bucket {
		case core.BucketMemorialFund:
			stats.MemorialFundTotal = b.Total
		case core.BucketMonthlyDonation:
			stats.MonthlyDonationTotal = b.Total
		case core.BucketOther:
			stats.OtherTotal = b.Total
		}
	}
	stats.GeneratedAt = s.now().UTC()
	return stats, nil
}

// BucketReport returns the total and collections of one bucket.
func (s *DashboardService) BucketReport(ctx context.Context, b core.Bucket) (core.BucketReport, error) {
	key := string(b)
	if s.buckets != nil {
		if r, ok := s.buckets.Get(key); ok {
			return r, nil
		}
	}
	v, err, _ := s.group.Do("bucket:"+key, func() (any, error) {
		gen := s.generation.Load()
		r, err := s.agg.BucketReport(ctx, b)
		if err != nil {
			return core.BucketReport{}, err
		}
		if s.buckets != nil && s.generation.Load() == gen {
			s.buckets.Set(key, r)
		}
		return r, nil
	})
	if err != nil {
		return core.BucketReport{}, err
	}
	return v.(core.BucketReport), nil
}

func (s *DashboardService) MonthlySeries(ctx context.Context) ([]core.MonthlyTotal, error) {
	return s.agg.MonthlySeries(ctx)
}

func (s *DashboardService) RecentActivity(ctx context.Context, limit int) ([]core.Activity, error) {
	return s.agg.RecentActivity(ctx, limit)
}

// Normalizer returns the category table reports are built with.
func (s *DashboardService) Normalizer() core.Normalizer {
	return s.agg.Normalizer()
}
