package directory

import (
	"context"
	"errors"
	"testing"

	"taskline/internal/domain"
	"taskline/internal/repo"
)

func ptr(s string) *string { return &s }

func sampleUsers() []domain.User {
	return []domain.User{
		{ID: "CFO001", Name: "David Hughes", Role: domain.RoleCFO, Department: "Finance", Active: true},
		{ID: "ADMIN001", Name: "Sarah Connor", Role: domain.RoleAdmin, Department: "Administration", Active: true},
		{ID: "MGR001", Name: "John Smith", Role: domain.RoleManager, Department: "Engineering", ManagerID: ptr("CFO001"), Active: true},
		{ID: "EMP002", Name: "Trinity Matrix", Role: domain.RoleEmployee, Department: "Engineering", ManagerID: ptr("MGR001"), Active: true},
		{ID: "EMP001", Name: "Neo Anderson", Role: domain.RoleEmployee, Department: "Engineering", ManagerID: ptr("MGR001"), Active: true},
	}
}

func TestIndexLookups(t *testing.T) {
	ctx := context.Background()
	idx, err := NewIndex(sampleUsers())
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	u, err := idx.Resolve(ctx, "EMP001")
	if err != nil || u.Name != "Neo Anderson" {
		t.Fatalf("resolve: %+v %v", u, err)
	}
	if _, err := idx.Resolve(ctx, "emp001"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("resolve must be case-sensitive, got %v", err)
	}
	u, err = idx.LookupFold(ctx, "  emp001 ")
	if err != nil || u.ID != "EMP001" {
		t.Fatalf("fold lookup: %+v %v", u, err)
	}
	if _, err := idx.LookupFold(ctx, "nobody"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIndexIsManagerOfSingleHop(t *testing.T) {
	ctx := context.Background()
	idx, err := NewIndex(sampleUsers())
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		manager, employee string
		want              bool
	}{
		{"MGR001", "EMP001", true},
		{"CFO001", "MGR001", true},
		{"CFO001", "EMP001", false},
		{"MGR001", "MGR001", false},
		{"MGR001", "missing", false},
	}
	for _, tc := range cases {
		got, err := idx.IsManagerOf(ctx, tc.manager, tc.employee)
		if err != nil || got != tc.want {
			t.Fatalf("IsManagerOf(%s,%s) = %v,%v want %v", tc.manager, tc.employee, got, err, tc.want)
		}
	}
}

func TestIndexRejectsBadHierarchy(t *testing.T) {
	self := []domain.User{{ID: "A", Role: domain.RoleManager, ManagerID: ptr("A")}}
	if _, err := NewIndex(self); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected self-management rejected, got %v", err)
	}
	dangling := []domain.User{{ID: "A", Role: domain.RoleEmployee, ManagerID: ptr("B")}}
	if _, err := NewIndex(dangling); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected missing manager rejected, got %v", err)
	}
	caseDup := []domain.User{{ID: "a1"}, {ID: "A1"}}
	if _, err := NewIndex(caseDup); err == nil {
		t.Fatalf("expected case-colliding ids rejected")
	}
}

func TestIndexTree(t *testing.T) {
	idx, err := NewIndex(sampleUsers())
	if err != nil {
		t.Fatal(err)
	}
	roots := idx.Roots()
	if len(roots) != 2 || roots[0].ID != "ADMIN001" || roots[1].ID != "CFO001" {
		t.Fatalf("unexpected roots %+v", roots)
	}
	reports := idx.Reports("MGR001")
	if len(reports) != 2 || reports[0].ID != "EMP001" || reports[1].ID != "EMP002" {
		t.Fatalf("unexpected reports %+v", reports)
	}
	if got := idx.Users(domain.RoleEmployee); len(got) != 2 {
		t.Fatalf("expected two employees, got %d", len(got))
	}
}
