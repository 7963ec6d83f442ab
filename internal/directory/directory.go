// Package directory answers identity, role and reporting-line questions about
// organization users.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"taskline/internal/domain"
	"taskline/internal/repo"
)

// Directory is the read-only user lookup contract used by the engine.
type Directory interface {
	Resolve(ctx context.Context, id string) (domain.User, error)
	LookupFold(ctx context.Context, id string) (domain.User, error)
	IsManagerOf(ctx context.Context, managerID, employeeID string) (bool, error)
}

var (
	_ Directory = (*Index)(nil)
	_ Directory = Store{}
)

// Team returns the candidates d reports as direct reports of managerID,
// keeping their order.
func Team(ctx context.Context, d Directory, managerID string, candidates []domain.User) ([]domain.User, error) {
	var team []domain.User
	for _, u := range candidates {
		ok, err := d.IsManagerOf(ctx, managerID, u.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			team = append(team, u)
		}
	}
	return team, nil
}

// ErrInvalidHierarchy reports a manager reference that is missing or points at
// the user itself.
var ErrInvalidHierarchy = errors.New("invalid manager reference")

// Index is an in-memory directory built from a user snapshot.
type Index struct {
	byID    map[string]domain.User
	byFold  map[string]string
	reports map[string][]string
}

// NewIndex validates the manager invariant and indexes users.
func NewIndex(users []domain.User) (*Index, error) {
	idx := &Index{
		byID:    make(map[string]domain.User, len(users)),
		byFold:  make(map[string]string, len(users)),
		reports: map[string][]string{},
	}
	for _, u := range users {
		if _, dup := idx.byID[u.ID]; dup {
			return nil, fmt.Errorf("duplicate user id %s", u.ID)
		}
		fold := strings.ToLower(u.ID)
		if other, dup := idx.byFold[fold]; dup {
			return nil, fmt.Errorf("user ids %s and %s differ only by case", other, u.ID)
		}
		idx.byID[u.ID] = u
		idx.byFold[fold] = u.ID
	}
	for _, u := range users {
		if u.ManagerID == nil {
			continue
		}
		if err := CheckManager(u.ID, *u.ManagerID, idx.has); err != nil {
			return nil, err
		}
		idx.reports[*u.ManagerID] = append(idx.reports[*u.ManagerID], u.ID)
	}
	for _, ids := range idx.reports {
		sort.Strings(ids)
	}
	return idx, nil
}

func (x *Index) has(id string) bool {
	_, ok := x.byID[id]
	return ok
}

// CheckManager validates a single manager reference.
func CheckManager(userID, managerID string, exists func(string) bool) error {
	if managerID == userID {
		return fmt.Errorf("%w: user %s cannot manage itself", ErrInvalidHierarchy, userID)
	}
	if !exists(managerID) {
		return fmt.Errorf("%w: manager %s of user %s does not exist", ErrInvalidHierarchy, managerID, userID)
	}
	return nil
}

func (x *Index) Resolve(_ context.Context, id string) (domain.User, error) {
	u, ok := x.byID[id]
	if !ok {
		return domain.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (x *Index) LookupFold(ctx context.Context, id string) (domain.User, error) {
	canonical, ok := x.byFold[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return domain.User{}, repo.ErrNotFound
	}
	return x.Resolve(ctx, canonical)
}

func (x *Index) IsManagerOf(_ context.Context, managerID, employeeID string) (bool, error) {
	u, ok := x.byID[employeeID]
	if !ok {
		return false, nil
	}
	return u.ManagerID != nil && *u.ManagerID == managerID, nil
}

// Reports returns the direct reports of managerID ordered by id.
func (x *Index) Reports(managerID string) []domain.User {
	ids := x.reports[managerID]
	res := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		res = append(res, x.byID[id])
	}
	return res
}

// Roots returns users without a manager ordered by id.
func (x *Index) Roots() []domain.User {
	var res []domain.User
	for _, u := range x.byID {
		if u.ManagerID == nil {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Users returns every user with the given role ordered by id.
func (x *Index) Users(role domain.Role) []domain.User {
	var res []domain.User
	for _, u := range x.byID {
		if u.Role == role {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Load snapshots all users from storage into an Index.
func Load(ctx context.Context, r repo.Repo) (*Index, error) {
	users, err := r.ListUsers(ctx, nil)
	if err != nil {
		return nil, err
	}
	return NewIndex(users)
}
