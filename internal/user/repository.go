package user

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, u *User) (*User, error) {
	query := `INSERT INTO users (id, username, email, password)
	          VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, u.ID, u.Username, u.Email, u.Password)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	query := `SELECT id, username, email, password, online, last_seen
	          FROM users WHERE email = $1`

	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Online, &u.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	u := &User{}
	query := `SELECT id, username, email, password, online, last_seen
	          FROM users WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Online, &u.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// ListUsersExcept returns every user other than the caller, for the
// contact list. Password hashes are never scanned out.
func (r *Repository) ListUsersExcept(ctx context.Context, id string) ([]User, error) {
	query := `SELECT id, username, email, online, last_seen
	          FROM users WHERE id <> $1 ORDER BY username`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Online, &u.LastSeen); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetOnline persists the derived online flag. The presence registry is the
// authority; this row is a cache for clients loading the contact list.
func (r *Repository) SetOnline(ctx context.Context, id string, online bool, lastSeen *time.Time) error {
	query := `UPDATE users SET online = $2, last_seen = COALESCE($3, last_seen) WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, online, lastSeen)
	return err
}
