// Package ports declares the persistence gateway the services depend on.
// The sqlite and memory stores both implement every interface here.
package ports

import (
	"context"

	"mahal/internal/core"
)

type (
	// CodeChecker answers whether a registration code is held in one
	// collection.
	CodeChecker interface {
		ExistsByCode(ctx context.Context, code string) (bool, error)
	}

	MemberStore interface {
		MemberCodeExists(ctx context.Context, code string) (bool, error)
		// CreateMember persists m and returns it with its id. A code already
		// held by any member or user yields core.ErrStorageConflict.
		CreateMember(ctx context.Context, m core.Member) (core.Member, error)
		GetMember(ctx context.Context, id int64) (core.Member, error)
		ListMembers(ctx context.Context) ([]core.Member, error)
		// UpdateMember replaces every mutable field. The registration code
		// is never written.
		UpdateMember(ctx context.Context, m core.Member) (core.Member, error)
		DeleteMember(ctx context.Context, id int64) error
		CountMembers(ctx context.Context) (int64, error)
	}

	// MemberLookup resolves weak member references on collections.
	MemberLookup interface {
		MemberRefs(ctx context.Context, ids []int64) (map[int64]core.MemberRef, error)
	}

	UserStore interface {
		UserCodeExists(ctx context.Context, code string) (bool, error)
		// CreateUser persists u. Codes are shared with members, see CreateMember.
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id int64) (core.User, error)
		CountUsers(ctx context.Context) (int64, error)
	}

	CollectionWriter interface {
		CreateCollection(ctx context.Context, c core.FundCollection) (core.FundCollection, error)
		UpdateCollection(ctx context.Context, c core.FundCollection) (core.FundCollection, error)
		DeleteCollection(ctx context.Context, id int64) error
	}

	CollectionReader interface {
		GetCollection(ctx context.Context, id int64) (core.FundCollection, error)
		// ListCollections returns every collection, newest collected first.
		ListCollections(ctx context.Context) ([]core.FundCollection, error)
		// ListCollectionsByCategories returns collections whose raw category
		// is one of categories, newest collected first.
		ListCollectionsByCategories(ctx context.Context, categories []string) ([]core.FundCollection, error)
		// SumByCategory groups collections by raw category.
		SumByCategory(ctx context.Context) ([]core.CategoryAmount, error)
		// MonthlyTotals groups collections by collected year and month,
		// ascending.
		MonthlyTotals(ctx context.Context) ([]core.MonthlyTotal, error)
		// RecentCollections returns at most limit collections, newest
		// collected first.
		RecentCollections(ctx context.Context, limit int) ([]core.FundCollection, error)
	}

	CollectionStore interface {
		CollectionWriter
		CollectionReader
	}

	// Gateway is the full persistence surface a backend provides.
	Gateway interface {
		MemberStore
		MemberLookup
		UserStore
		CollectionStore
	}
)

// CodeCheckerFunc adapts a function to CodeChecker.
type CodeCheckerFunc func(ctx context.Context, code string) (bool, error)

func (f CodeCheckerFunc) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return f(ctx, code)
}
