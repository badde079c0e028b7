// Package storagetest holds behaviour tests every persistence gateway must
// pass. Store packages call Run from their own _test files.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"mahal/internal/core"
	"mahal/internal/ports"
)

// Run exercises gw created fresh for each subtest by newGateway.
func Run(t *testing.T, newGateway func(t *testing.T) ports.Gateway) {
	t.Helper()
	t.Run("SharedCodeNamespace", func(t *testing.T) { testSharedCodeNamespace(t, newGateway(t)) })
	t.Run("MemberLifecycle", func(t *testing.T) { testMemberLifecycle(t, newGateway(t)) })
	t.Run("CollectionLifecycle", func(t *testing.T) { testCollectionLifecycle(t, newGateway(t)) })
	t.Run("Aggregates", func(t *testing.T) { testAggregates(t, newGateway(t)) })
}

func member(code string) core.Member {
	return core.Member{
		RegistrationCode: code,
		Name:             "Member " + code,
		Age:              30,
		Phone:            "9876543210",
		HouseName:        "House",
	}
}

func collection(cents int64, category string, at time.Time) core.FundCollection {
	return core.FundCollection{
		Amount:        core.Money{Cents: cents},
		Category:      category,
		CollectedBy:   "collector",
		CollectedDate: at,
		ReceiptNumber: "RCPT-" + category,
	}
}

func testSharedCodeNamespace(t *testing.T, gw ports.Gateway) {
	ctx := context.Background()

	if _, err := gw.CreateMember(ctx, member("REG1234")); err != nil {
		t.Fatalf("create member: %v", err)
	}
	exists, err := gw.MemberCodeExists(ctx, "REG1234")
	if err != nil || !exists {
		t.Fatalf("member code should exist, got %v, %v", exists, err)
	}
	exists, err = gw.UserCodeExists(ctx, "REG1234")
	if err != nil || exists {
		t.Fatalf("user code should not exist, got %v, %v", exists, err)
	}

	_, err = gw.CreateUser(ctx, core.User{
		RegistrationCode: "REG1234",
		Name:             "Clash",
		Email:            "clash@mahal.org",
		Role:             core.RoleMember,
		PasswordHash:     "x",
	})
	if !errors.Is(err, core.ErrStorageConflict) {
		t.Fatalf("expected storage conflict for user with member code, got %v", err)
	}

	if _, err := gw.CreateMember(ctx, member("REG1234")); !errors.Is(err, core.ErrStorageConflict) {
		t.Fatalf("expected storage conflict for duplicate member code, got %v", err)
	}

	u, err := gw.CreateUser(ctx, core.User{
		RegistrationCode: "REG2000",
		Name:             "Admin",
		Email:            "admin@mahal.org",
		Role:             core.RoleAdmin,
		PasswordHash:     "x",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	got, err := gw.GetUser(ctx, u.ID)
	if err != nil || got.Email != "admin@mahal.org" || got.Role != core.RoleAdmin {
		t.Fatalf("get user = %+v, %v", got, err)
	}
	_, err = gw.CreateUser(ctx, core.User{
		RegistrationCode: "REG2001",
		Name:             "Admin Again",
		Email:            "admin@mahal.org",
		Role:             core.RoleMember,
		PasswordHash:     "x",
	})
	if !errors.Is(err, core.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if exists, _ := gw.UserCodeExists(ctx, "REG2001"); exists {
		t.Fatalf("rejected user must not hold its code")
	}
	if n, _ := gw.CountUsers(ctx); n != 1 {
		t.Fatalf("CountUsers = %d, want 1", n)
	}
	if _, err := gw.GetUser(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testMemberLifecycle(t *testing.T, gw ports.Gateway) {
	ctx := context.Background()

	m, err := gw.CreateMember(ctx, member("REG1111"))
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if m.ID == 0 || m.CreatedAt.IsZero() {
		t.Fatalf("member not populated: %+v", m)
	}

	m.Name = "Renamed"
	m.RegistrationCode = "REG9999"
	updated, err := gw.UpdateMember(ctx, m)
	if err != nil {
		t.Fatalf("update member: %v", err)
	}
	if updated.Name != "Renamed" || updated.RegistrationCode != "REG1111" {
		t.Fatalf("update must keep code, got %+v", updated)
	}

	refs, err := gw.MemberRefs(ctx, []int64{m.ID, 424242})
	if err != nil {
		t.Fatalf("member refs: %v", err)
	}
	if len(refs) != 1 || refs[m.ID].RegistrationCode != "REG1111" {
		t.Fatalf("unexpected refs %+v", refs)
	}

	list, err := gw.ListMembers(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list members = %d, %v", len(list), err)
	}

	if err := gw.DeleteMember(ctx, m.ID); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	if _, err := gw.GetMember(ctx, m.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := gw.DeleteMember(ctx, m.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := gw.UpdateMember(ctx, m); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	// The code is free again once its holder is gone.
	if _, err := gw.CreateMember(ctx, member("REG1111")); err != nil {
		t.Fatalf("reuse released code: %v", err)
	}
}

func testCollectionLifecycle(t *testing.T, gw ports.Gateway) {
	ctx := context.Background()
	m, err := gw.CreateMember(ctx, member("REG3000"))
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	at := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	in := collection(2500, "mayyathu fund", at)
	in.MemberID = &m.ID
	c, err := gw.CreateCollection(ctx, in)
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if c.ID == 0 || !c.CollectedDate.Equal(at) {
		t.Fatalf("unexpected collection %+v", c)
	}

	got, err := gw.GetCollection(ctx, c.ID)
	if err != nil {
		t.Fatalf("get collection: %v", err)
	}
	if got.Category != "mayyathu fund" || got.Amount.Cents != 2500 || got.MemberID == nil || *got.MemberID != m.ID {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	got.Amount = core.Money{Cents: 3000}
	got.Category = "monthly"
	got.MemberID = nil
	updated, err := gw.UpdateCollection(ctx, got)
	if err != nil {
		t.Fatalf("update collection: %v", err)
	}
	if updated.Amount.Cents != 3000 || updated.Category != "monthly" || updated.MemberID != nil {
		t.Fatalf("update mismatch: %+v", updated)
	}

	// Deleting the member must not cascade.
	if err := gw.DeleteMember(ctx, m.ID); err != nil {
		t.Fatalf("delete member: %v", err)
	}
	if _, err := gw.GetCollection(ctx, c.ID); err != nil {
		t.Fatalf("collection should survive member delete: %v", err)
	}

	if err := gw.DeleteCollection(ctx, c.ID); err != nil {
		t.Fatalf("delete collection: %v", err)
	}
	if _, err := gw.GetCollection(ctx, c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := gw.DeleteCollection(ctx, c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := gw.UpdateCollection(ctx, got); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func testAggregates(t *testing.T, gw ports.Gateway) {
	ctx := context.Background()
	base := time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC)
	inputs := []core.FundCollection{
		collection(100, "mayyathu", base),
		collection(200, "mayyathu_fund", base.AddDate(0, 1, 0)),
		collection(300, "mayyathu fund", base.AddDate(0, 1, 2)),
		collection(400, "monthly", base.AddDate(0, 2, 0)),
		collection(500, "sadaqa", base.AddDate(0, 2, 1)),
	}
	for _, in := range inputs {
		if _, err := gw.CreateCollection(ctx, in); err != nil {
			t.Fatalf("create collection: %v", err)
		}
	}

	sums, err := gw.SumByCategory(ctx)
	if err != nil {
		t.Fatalf("sum by category: %v", err)
	}
	byCat := map[string]int64{}
	for _, s := range sums {
		byCat[s.Category] = s.Amount.Cents
	}
	if len(byCat) != 5 || byCat["mayyathu fund"] != 300 || byCat["sadaqa"] != 500 {
		t.Fatalf("unexpected category sums %+v", sums)
	}

	series, err := gw.MonthlyTotals(ctx)
	if err != nil {
		t.Fatalf("monthly totals: %v", err)
	}
	want := []core.MonthlyTotal{
		{Year: 2024, Month: 12, Total: core.Money{Cents: 100}, Count: 1},
		{Year: 2025, Month: 1, Total: core.Money{Cents: 500}, Count: 2},
		{Year: 2025, Month: 2, Total: core.Money{Cents: 900}, Count: 2},
	}
	if len(series) != len(want) {
		t.Fatalf("series = %+v, want %+v", series, want)
	}
	for i := range want {
		if series[i] != want[i] {
			t.Fatalf("series[%d] = %+v, want %+v", i, series[i], want[i])
		}
	}

	byAlias, err := gw.ListCollectionsByCategories(ctx, []string{"mayyathu", "mayyathu fund"})
	if err != nil {
		t.Fatalf("list by categories: %v", err)
	}
	if len(byAlias) != 2 || byAlias[0].Category != "mayyathu fund" {
		t.Fatalf("unexpected filtered list %+v", byAlias)
	}

	recent, err := gw.RecentCollections(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Category != "sadaqa" || recent[1].Category != "monthly" {
		t.Fatalf("unexpected recent order %+v", recent)
	}

	all, err := gw.ListCollections(ctx)
	if err != nil || len(all) != len(inputs) {
		t.Fatalf("list collections = %d, %v", len(all), err)
	}
}
