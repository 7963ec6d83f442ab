package directory

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskline/internal/domain"
	"taskline/internal/repo"
)

// Store answers lookups straight from the database. Tx, when set, scopes the
// reads to an open request transaction.
type Store struct {
	Repo repo.Repo
	Tx   *sql.Tx
}

// WithTx returns a Store reading through tx.
func (s Store) WithTx(tx *sql.Tx) Store {
	return Store{Repo: s.Repo, Tx: tx}
}

func (s Store) Resolve(ctx context.Context, id string) (domain.User, error) {
	return s.Repo.GetUser(ctx, s.Tx, id)
}

func (s Store) LookupFold(ctx context.Context, id string) (domain.User, error) {
	return s.Repo.GetUserFold(ctx, s.Tx, strings.TrimSpace(id))
}

func (s Store) IsManagerOf(ctx context.Context, managerID, employeeID string) (bool, error) {
	u, err := s.Resolve(ctx, employeeID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.ManagerID != nil && *u.ManagerID == managerID, nil
}
