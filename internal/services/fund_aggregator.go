package services

import (
	"context"
	"fmt"

	"mahal/internal/core"
	"mahal/internal/ports"
)

const (
	// DefaultRecentLimit is used when a caller asks for no particular size.
	DefaultRecentLimit = 5
	MaxRecentLimit     = 100
)

// FundAggregator derives totals and report views from stored collections.
// Every record is classified through one Normalizer, so the overall total is
// always the sum of the bucket totals.
type FundAggregator struct {
	store      ports.CollectionReader
	members    ports.MemberLookup
	normalizer core.Normalizer
}

func NewFundAggregator(store ports.CollectionReader, members ports.MemberLookup, n core.Normalizer) *FundAggregator {
	return &FundAggregator{store: store, members: members, normalizer: n}
}

func (a *FundAggregator) Normalizer() core.Normalizer {
	return a.normalizer
}

// BucketTotals returns one entry per bucket, in AllBuckets order.
func (a *FundAggregator) BucketTotals(ctx context.Context) ([]core.BucketTotal, error) {
	sums, err := a.store.SumByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	byBucket := make(map[core.Bucket]core.BucketTotal, 3)
	for _, s := range sums {
		b := a.normalizer.Normalize(s.Category)
		t := byBucket[b]
		t.Total = t.Total.Add(s.Amount)
		t.Count += s.Count
		byBucket[b] = t
	}
	out := make([]core.BucketTotal, 0, 3)
	for _, b := range core.AllBuckets() {
		t := byBucket[b]
		t.Bucket = b
		out = append(out, t)
	}
	return out, nil
}

// TotalAmount is the sum over every bucket, including other.
func (a *FundAggregator) TotalAmount(ctx context.Context) (core.Money, error) {
	totals, err := a.BucketTotals(ctx)
	if err != nil {
		return core.Money{}, err
	}
	var sum core.Money
	for _, t := range totals {
		sum = sum.Add(t.Total)
	}
	return sum, nil
}

func (a *FundAggregator) TotalByBucket(ctx context.Context, b core.Bucket) (core.Money, error) {
	totals, err := a.BucketTotals(ctx)
	if err != nil {
		return core.Money{}, err
	}
	for _, t := range totals {
		if t.Bucket == b {
			return t.Total, nil
		}
	}
	return core.Money{}, nil
}

// CollectionsByBucket lists the bucket's collections newest first, with
// member references resolved where the member still exists.
func (a *FundAggregator) CollectionsByBucket(ctx context.Context, b core.Bucket) ([]core.FundCollection, error) {
	var (
		list []core.FundCollection
		err  error
	)
	if b == core.BucketOther {
		list, err = a.store.ListCollections(ctx)
	} else {
		list, err = a.store.ListCollectionsByCategories(ctx, a.normalizer.Aliases(b))
	}
	if err != nil {
		return nil, fmt.Errorf("list %s collections: %w", b, err)
	}

	kept := list[:0]
	for _, c := range list {
		if a.normalizer.Normalize(c.Category) == b {
			kept = append(kept, c)
		}
	}
	return attachMembers(ctx, a.members, kept)
}

// BucketReport combines the bucket total with its collections. The total is
// summed from the listed collections so the two always agree.
func (a *FundAggregator) BucketReport(ctx context.Context, b core.Bucket) (core.BucketReport, error) {
	list, err := a.CollectionsByBucket(ctx, b)
	if err != nil {
		return core.BucketReport{}, err
	}
	report := core.BucketReport{Bucket: b, Collections: list}
	for _, c := range list {
		report.Total = report.Total.Add(c.Amount)
	}
	return report, nil
}

// MonthlySeries is ascending by year then month.
func (a *FundAggregator) MonthlySeries(ctx context.Context) ([]core.MonthlyTotal, error) {
	series, err := a.store.MonthlyTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	if series == nil {
		series = []core.MonthlyTotal{}
	}
	return series, nil
}

// RecentActivity projects the latest collections by collected date. A limit
// of zero or less means DefaultRecentLimit.
func (a *FundAggregator) RecentActivity(ctx context.Context, limit int) ([]core.Activity, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	recent, err := a.store.RecentCollections(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent collections: %w", err)
	}
	out := make([]core.Activity, 0, len(recent))
	for _, c := range recent {
		out = append(out, core.Activity{
			ID:          c.ID,
			Action:      core.ActionMoneyCollection,
			Amount:      c.Amount,
			Bucket:      a.normalizer.Normalize(c.Category),
			Category:    c.Category,
			CollectedBy: c.CollectedBy,
			Timestamp:   c.CollectedDate,
		})
	}
	return out, nil
}

// attachMembers resolves weak member references in one lookup. Dangling
// references are left without a Member.
func attachMembers(ctx context.Context, members ports.MemberLookup, list []core.FundCollection) ([]core.FundCollection, error) {
	if list == nil {
		return []core.FundCollection{}, nil
	}
	var ids []int64
	seen := make(map[int64]bool)
	for _, c := range list {
		if c.MemberID != nil && !seen[*c.MemberID] {
			seen[*c.MemberID] = true
			ids = append(ids, *c.MemberID)
		}
	}
	if len(ids) == 0 || members == nil {
		return list, nil
	}
	refs, err := members.MemberRefs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve members: %w", err)
	}
	for i := range list {
		if list[i].MemberID == nil {
			continue
		}
		if ref, ok := refs[*list[i].MemberID]; ok {
			list[i].Member = &ref
		}
	}
	return list, nil
}
