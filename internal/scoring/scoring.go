// Package scoring computes weighted performance scores and rankings from task
// history.
package scoring

import (
	"math"
	"sort"

	"taskline/internal/config"
	"taskline/internal/domain"
)

// Entry is one ranked user.
type Entry struct {
	Rank       int         `json:"rank"`
	UserID     string      `json:"user_id"`
	Name       string      `json:"name"`
	Role       domain.Role `json:"role"`
	Department string      `json:"department"`
	Score      float64     `json:"score"`
	Tasks      int         `json:"tasks"`
	Completed  int         `json:"completed"`
}

type counts struct {
	total, completed, noRework, onTime, submitted int
}

func count(tasks []domain.Task) counts {
	var c counts
	for _, t := range tasks {
		c.total++
		if t.Status == domain.StatusSubmitted {
			c.submitted++
		}
		if !t.Status.Completed() {
			continue
		}
		c.completed++
		if t.ReworkCount == 0 {
			c.noRework++
		}
		if t.CompletedDate != nil && t.DueDate != nil && *t.CompletedDate <= *t.DueDate {
			c.onTime++
		}
	}
	return c
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// EmployeeScore scores the tasks assigned to one employee on a 0..100 scale.
func EmployeeScore(tasks []domain.Task, s config.Scoring) float64 {
	c := count(tasks)
	if c.total == 0 {
		return 0
	}
	w := s.Employee
	productivity := math.Min(ratio(c.completed, s.CompletedTarget), 1)
	score := w.Completion*ratio(c.completed, c.total) +
		w.Quality*ratio(c.noRework, c.completed) +
		w.Timeliness*ratio(c.onTime, c.completed) +
		w.Productivity*productivity
	return round2(score * 100)
}

// ManagerScore scores a manager from the direct reports' tasks. Stability is
// the share of the team still active.
func ManagerScore(team []domain.User, teamTasks []domain.Task, s config.Scoring) float64 {
	if len(team) == 0 {
		return 0
	}
	c := count(teamTasks)
	if c.total == 0 {
		return 0
	}
	active := 0
	for _, u := range team {
		if u.Active {
			active++
		}
	}
	approval := 1.0
	if c.completed+c.submitted > 0 {
		approval = ratio(c.completed, c.completed+c.submitted)
	}
	w := s.Manager
	score := w.Completion*ratio(c.completed, c.total) +
		w.LowRework*ratio(c.noRework, c.completed) +
		w.Approval*approval +
		w.Stability*ratio(active, len(team))
	return round2(score * 100)
}

// RankEmployees scores each employee over tasks and orders them best first.
func RankEmployees(employees []domain.User, tasks []domain.Task, s config.Scoring) []Entry {
	byEmployee := map[string][]domain.Task{}
	for _, t := range tasks {
		byEmployee[t.EmployeeID] = append(byEmployee[t.EmployeeID], t)
	}
	entries := make([]Entry, 0, len(employees))
	for _, u := range employees {
		own := byEmployee[u.ID]
		c := count(own)
		entries = append(entries, newEntry(u, EmployeeScore(own, s), c))
	}
	return rank(entries)
}

// RankManagers scores each manager over the tasks of their direct reports.
// reports maps manager id to direct reports.
func RankManagers(managers []domain.User, reports map[string][]domain.User, tasks []domain.Task, s config.Scoring) []Entry {
	byEmployee := map[string][]domain.Task{}
	for _, t := range tasks {
		byEmployee[t.EmployeeID] = append(byEmployee[t.EmployeeID], t)
	}
	entries := make([]Entry, 0, len(managers))
	for _, m := range managers {
		team := reports[m.ID]
		var teamTasks []domain.Task
		for _, u := range team {
			teamTasks = append(teamTasks, byEmployee[u.ID]...)
		}
		entries = append(entries, newEntry(m, ManagerScore(team, teamTasks, s), count(teamTasks)))
	}
	return rank(entries)
}

func newEntry(u domain.User, score float64, c counts) Entry {
	return Entry{
		UserID:     u.ID,
		Name:       u.Name,
		Role:       u.Role,
		Department: u.Department,
		Score:      score,
		Tasks:      c.total,
		Completed:  c.completed,
	}
}

func rank(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
