package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/snippets/internal/apperror"
	"github.com/sakif/snippets/internal/model"
	"github.com/sakif/snippets/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB stores accounts.
type UserDB struct {
	q querier
}

const userColumns = `
	id, username, email, is_staff, is_superuser, password_hash,
	github_id, avatar_url, created_at, updated_at`

func scanUser(row rowScanner, u *model.User) error {
	var githubID sql.NullInt64
	if err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.IsStaff, &u.IsSuperuser, &u.PasswordHash,
		&githubID, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return err
	}
	u.GitHubID = githubID.Int64
	return nil
}

// github_id is NULL for password-only accounts. SQLite treats NULLs as
// distinct, so the UNIQUE constraint only applies to linked accounts.
func nullGitHubID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// Create inserts a new user. A taken username or GitHub id yields
// apperror.ErrConflict.
func (db *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO users (id, username, email, is_staff, is_superuser, password_hash,
		                    github_id, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.IsStaff,
		user.IsSuperuser,
		user.PasswordHash,
		nullGitHubID(user.GitHubID),
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
func (db *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getBy(ctx, "id", id, id)
}

// GetByUsername retrieves a user by username (case-sensitive).
func (db *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getBy(ctx, "username", username, username)
}

// GetByGitHubID retrieves the account linked to a GitHub user id.
func (db *UserDB) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return db.getBy(ctx, "github_id", githubID, fmt.Sprintf("github:%d", githubID))
}

// getBy is only ever called with a column name from the constants above,
// never with caller input, so building the WHERE clause is safe.
func (db *UserDB) getBy(ctx context.Context, column string, value any, label string) (*model.User, error) {
	var u model.User

	err := scanUser(db.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	), &u)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", label)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s %s: %w", column, label, err)
	}

	return &u, nil
}

// List returns a page of users, oldest first.
func (db *UserDB) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	limit, offset := clampList(opts)

	rows, err := db.q.QueryContext(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 ORDER BY created_at ASC, id ASC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// Update refreshes profile fields and flags. The username and id are fixed.
func (db *UserDB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.q.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, is_staff = ?, is_superuser = ?, password_hash = ?,
		     github_id = ?, avatar_url = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email,
		user.IsStaff,
		user.IsSuperuser,
		user.PasswordHash,
		nullGitHubID(user.GitHubID),
		user.AvatarURL,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}
