package engine

import (
	"context"

	"taskline/internal/directory"
	"taskline/internal/domain"
	"taskline/internal/engine/auth"
	"taskline/internal/scoring"
)

type Rankings struct {
	Employees []scoring.Entry `json:"employees"`
	Managers  []scoring.Entry `json:"managers"`
}

// Rankings scores users over the tasks p can see. A Manager sees their direct
// reports and their own entry; Admin and CFO see the whole organization.
func (e Engine) Rankings(ctx context.Context, p domain.Principal) (Rankings, error) {
	if err := auth.CanViewReports(p); err != nil {
		return Rankings{}, err
	}
	tasks, err := e.ListTasks(ctx, p)
	if err != nil {
		return Rankings{}, err
	}
	idx, err := e.OrgIndex(ctx)
	if err != nil {
		return Rankings{}, err
	}

	var employees, managers []domain.User
	if p.Role == domain.RoleManager {
		employees, err = directory.Team(ctx, e.Directory, p.ID, idx.Users(domain.RoleEmployee))
		if err != nil {
			return Rankings{}, err
		}
		if self, err := idx.Resolve(ctx, p.ID); err == nil {
			managers = append(managers, self)
		}
	} else {
		employees = idx.Users(domain.RoleEmployee)
		managers = idx.Users(domain.RoleManager)
	}
	reports := make(map[string][]domain.User, len(managers))
	for _, m := range managers {
		reports[m.ID] = idx.Reports(m.ID)
	}
	s := e.Config.Scoring
	return Rankings{
		Employees: scoring.RankEmployees(employees, tasks, s),
		Managers:  scoring.RankManagers(managers, reports, tasks, s),
	}, nil
}

// OrgIndex snapshots the directory for tree and report queries.
func (e Engine) OrgIndex(ctx context.Context) (*directory.Index, error) {
	return directory.Load(ctx, e.Repo)
}

// StatusCounts tallies the tasks p can see by status. Org-wide roles are
// answered by an aggregate query. The legacy completion spelling counts as
// APPROVED.
func (e Engine) StatusCounts(ctx context.Context, p domain.Principal) (map[string]int, error) {
	counts := map[string]int{}
	add := func(status domain.Status, n int) {
		if status == domain.StatusLegacyCompleted {
			status = domain.StatusApproved
		}
		counts[string(status)] += n
	}
	if p.Role == domain.RoleAdmin || p.Role == domain.RoleCFO {
		raw, err := e.Repo.CountTasksByStatus(ctx)
		if err != nil {
			return nil, err
		}
		for status, n := range raw {
			add(domain.Status(status), n)
		}
		return counts, nil
	}
	tasks, err := e.ListTasks(ctx, p)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		add(t.Status, 1)
	}
	return counts, nil
}
