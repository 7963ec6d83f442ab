package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"taskline/internal/directory"
	"taskline/internal/domain"
	"taskline/internal/engine/auth"
	"taskline/internal/events"
	"taskline/internal/repo"
)

// UserDraft holds the input for CreateUser. Password is plaintext and is
// hashed before storage.
type UserDraft struct {
	ID         string
	Name       string
	Role       string
	Department string
	ManagerID  *string
	Password   string
	Active     *bool
}

func (e Engine) passwordCost() int {
	if e.PasswordCost > 0 {
		return e.PasswordCost
	}
	return bcrypt.DefaultCost
}

// HashPassword returns the bcrypt hash of password.
func (e Engine) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ValidationError{Field: "password", Message: "is required"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), e.passwordCost())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CreateUser registers a user. Only Admin and CFO may call it.
func (e Engine) CreateUser(ctx context.Context, p domain.Principal, d UserDraft) (domain.User, error) {
	if err := auth.CanManageUsers(p); err != nil {
		return domain.User{}, err
	}
	u, err := e.createUser(ctx, d)
	if err != nil {
		return domain.User{}, err
	}
	e.emit(ctx, "user.created", "user", u.ID, p, events.EventPayload{"role": string(u.Role)})
	return u, nil
}

// Bootstrap creates the first Admin of an empty organization.
func (e Engine) Bootstrap(ctx context.Context, d UserDraft) (domain.User, error) {
	users, err := e.Repo.ListUsers(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	if len(users) > 0 {
		return domain.User{}, ValidationError{Message: "organization already has users"}
	}
	d.Role = string(domain.RoleAdmin)
	d.ManagerID = nil
	u, err := e.createUser(ctx, d)
	if err != nil {
		return domain.User{}, err
	}
	e.emit(ctx, "user.bootstrap", "user", u.ID, domain.Principal{ID: u.ID, Role: u.Role}, nil)
	return u, nil
}

func (e Engine) createUser(ctx context.Context, d UserDraft) (domain.User, error) {
	u := domain.User{
		ID:         strings.TrimSpace(d.ID),
		Name:       strings.TrimSpace(d.Name),
		Department: strings.TrimSpace(d.Department),
		Active:     true,
	}
	if u.ID == "" {
		return domain.User{}, ValidationError{Field: "id", Message: "is required"}
	}
	if u.Name == "" {
		return domain.User{}, ValidationError{Field: "name", Message: "is required"}
	}
	role, ok := domain.ParseRole(d.Role)
	if !ok {
		return domain.User{}, ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", d.Role)}
	}
	u.Role = role
	if d.Active != nil {
		u.Active = *d.Active
	}
	hash, err := e.HashPassword(d.Password)
	if err != nil {
		return domain.User{}, err
	}
	u.PasswordHash = hash

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	dir := e.Directory.WithTx(tx)
	if _, err := dir.LookupFold(ctx, u.ID); err == nil {
		return domain.User{}, ConflictError{Kind: "user", ID: u.ID}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	if d.ManagerID != nil && strings.TrimSpace(*d.ManagerID) != "" {
		managerID := strings.TrimSpace(*d.ManagerID)
		var lookupErr error
		exists := func(id string) bool {
			_, err := dir.Resolve(ctx, id)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				lookupErr = err
			}
			return err == nil
		}
		if err := directory.CheckManager(u.ID, managerID, exists); err != nil {
			if lookupErr != nil {
				return domain.User{}, lookupErr
			}
			return domain.User{}, ValidationError{Field: "manager_id", Message: err.Error()}
		}
		u.ManagerID = &managerID
	}
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// SetUserActive toggles whether a user may authenticate. Task references to
// the user are untouched.
func (e Engine) SetUserActive(ctx context.Context, p domain.Principal, userID string, active bool) (domain.User, error) {
	if err := auth.CanManageUsers(p); err != nil {
		return domain.User{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetUserActive(ctx, tx, userID, active); err != nil {
		return domain.User{}, notFound(err, "user", userID)
	}
	u, err := e.Repo.GetUser(ctx, tx, userID)
	if err != nil {
		return domain.User{}, notFound(err, "user", userID)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	e.emit(ctx, "user.active", "user", userID, p, events.EventPayload{"active": active})
	return u, nil
}

func (e Engine) ResetPassword(ctx context.Context, p domain.Principal, userID, password string) error {
	if err := auth.CanManageUsers(p); err != nil {
		return err
	}
	hash, err := e.HashPassword(password)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.SetPasswordHash(ctx, tx, userID, hash); err != nil {
		return notFound(err, "user", userID)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.emit(ctx, "user.password_reset", "user", userID, p, nil)
	return nil
}

// ListUsers returns every user ordered by role then name.
func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx, nil)
}

// Authenticate checks a login. The id match ignores case and surrounding
// whitespace.
func (e Engine) Authenticate(ctx context.Context, id, password string) (domain.User, error) {
	u, err := e.Directory.LookupFold(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if !u.Active {
		return domain.User{}, ErrInactiveUser
	}
	return u, nil
}

// Principal resolves an active user id into a principal.
func (e Engine) Principal(ctx context.Context, userID string) (domain.Principal, error) {
	u, err := e.Directory.Resolve(ctx, userID)
	if err != nil {
		return domain.Principal{}, notFound(err, "user", userID)
	}
	if !u.Active {
		return domain.Principal{}, ErrInactiveUser
	}
	return domain.Principal{ID: u.ID, Role: u.Role}, nil
}

// CreateAPIKey issues a key for userID and returns the plaintext once. Users
// may issue keys for themselves; Admin and CFO for anyone.
func (e Engine) CreateAPIKey(ctx context.Context, p domain.Principal, userID, name string) (string, domain.APIKey, error) {
	if userID == "" {
		userID = p.ID
	}
	if userID != p.ID {
		if err := auth.CanManageUsers(p); err != nil {
			return "", domain.APIKey{}, err
		}
	}
	if _, err := e.Directory.Resolve(ctx, userID); err != nil {
		return "", domain.APIKey{}, notFound(err, "user", userID)
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.APIKey{}, err
	}
	plain := "tl_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return "", domain.APIKey{}, err
	}
	e.emit(ctx, "apikey.created", "api_key", key.ID, p, events.EventPayload{"user_id": userID})
	return plain, key, nil
}

// ResolveAPIKey maps a presented key to the principal of its owner.
func (e Engine) ResolveAPIKey(ctx context.Context, plain string) (domain.Principal, error) {
	key, err := e.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(plain))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Principal{}, err
	}
	return e.Principal(ctx, key.UserID)
}

// ListAPIKeys returns the keys of userID, or of p when userID is empty.
func (e Engine) ListAPIKeys(ctx context.Context, p domain.Principal, userID string) ([]domain.APIKey, error) {
	if userID == "" {
		userID = p.ID
	}
	if userID != p.ID {
		if err := auth.CanManageUsers(p); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListAPIKeys(ctx, userID)
}

// RevokeAPIKey deletes a key. Owners may revoke their own keys.
func (e Engine) RevokeAPIKey(ctx context.Context, p domain.Principal, keyID string) error {
	if err := auth.CanManageUsers(p); err != nil {
		own, lerr := e.Repo.ListAPIKeys(ctx, p.ID)
		if lerr != nil {
			return lerr
		}
		found := false
		for _, k := range own {
			if k.ID == keyID {
				found = true
				break
			}
		}
		if !found {
			return err
		}
	}
	if err := e.Repo.DeleteAPIKey(ctx, keyID); err != nil {
		return notFound(err, "api key", keyID)
	}
	e.emit(ctx, "apikey.revoked", "api_key", keyID, p, nil)
	return nil
}
