package store

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// User is a registered relay participant. JoinDate is refreshed on every
// registration, so it reflects the most recent /start rather than first contact.
type User struct {
	ID        int64     `db:"user_id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	JoinDate  time.Time `db:"join_date"`
}

// DisplayName returns the best human-readable name for the user.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "unknown"
}

// UserRepository stores relay users in the relay_users table.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository binds the repository to a database handle.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const upsertUserQuery = `
INSERT INTO relay_users (user_id, username, first_name, last_name, join_date)
VALUES (:user_id, :username, :first_name, :last_name, :join_date)
ON CONFLICT (user_id) DO UPDATE SET
    username = excluded.username,
    first_name = excluded.first_name,
    last_name = excluded.last_name,
    join_date = excluded.join_date`

// Upsert registers a user or refreshes an existing row. Calling it repeatedly
// for the same user keeps exactly one row.
func (r *UserRepository) Upsert(ctx context.Context, u User) error {
	if u.JoinDate.IsZero() {
		u.JoinDate = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, upsertUserQuery, u)
	return wrap("upsert user", err)
}

// Count returns the number of registered users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM relay_users")
	return n, wrap("count users", err)
}

// ListAll returns every registered user ordered by registration time.
func (r *UserRepository) ListAll(ctx context.Context) ([]User, error) {
	var users []User
	err := r.db.SelectContext(ctx, &users,
		"SELECT user_id, username, first_name, last_name, join_date FROM relay_users ORDER BY join_date, user_id")
	return users, wrap("list users", err)
}

// IDs returns the identifiers of all registered users, for broadcast fan-out.
func (r *UserRepository) IDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		"SELECT user_id FROM relay_users ORDER BY user_id")
	return ids, wrap("list user ids", err)
}
