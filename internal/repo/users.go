package repo

import (
	"context"
	"database/sql"

	"taskline/internal/domain"
)

const userColumns = `id,name,role,department,manager_id,active,password_hash`

func scanUser(s scanner) (domain.User, error) {
	var u domain.User
	var role string
	var managerID sql.NullString
	err := s.Scan(&u.ID, &u.Name, &role, &u.Department, &managerID, &u.Active, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Role = domain.Role(role)
	u.ManagerID = stringPtr(managerID)
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Name, string(u.Role), u.Department, nullableStringPtr(u.ManagerID), u.Active, u.PasswordHash)
	return err
}

func (r Repo) GetUser(ctx context.Context, tx *sql.Tx, id string) (domain.User, error) {
	return scanUser(r.conn(tx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

// GetUserFold looks a user up ignoring ASCII case.
func (r Repo) GetUserFold(ctx context.Context, tx *sql.Tx, id string) (domain.User, error) {
	return scanUser(r.conn(tx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=? COLLATE NOCASE LIMIT 1`, id))
}

// ListUsers returns all users ordered by role then name.
func (r Repo) ListUsers(ctx context.Context, tx *sql.Tx) ([]domain.User, error) {
	return r.queryUsers(ctx, tx, `SELECT `+userColumns+` FROM users ORDER BY role, name`)
}

// ListReports returns the users whose manager is managerID.
func (r Repo) ListReports(ctx context.Context, tx *sql.Tx, managerID string) ([]domain.User, error) {
	return r.queryUsers(ctx, tx, `SELECT `+userColumns+` FROM users WHERE manager_id=? ORDER BY name`, managerID)
}

func (r Repo) queryUsers(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]domain.User, error) {
	rows, err := r.conn(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) SetUserActive(ctx context.Context, tx *sql.Tx, id string, active bool) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE users SET active=? WHERE id=?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetPasswordHash(ctx context.Context, tx *sql.Tx, id, hash string) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
