package remote

import (
	"database/sql"
	"errors"

	"github.com/matheus3301/chatsync/internal/store"
)

// UserByToken returns the user owning a bearer token.
func (db *DB) UserByToken(token string) (*User, error) {
	return db.scanUser(db.QueryRow(`SELECT id, display_name, role, token FROM users WHERE token = ?`, token))
}

// UserByID returns a user by id.
func (db *DB) UserByID(id string) (*User, error) {
	return db.scanUser(db.QueryRow(`SELECT id, display_name, role, token FROM users WHERE id = ?`, id))
}

// UpsertUser creates or updates a user.
func (db *DB) UpsertUser(u *User) error {
	_, err := db.Exec(`
		INSERT INTO users (id, display_name, role, token) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			role = excluded.role,
			token = excluded.token`,
		u.ID, u.DisplayName, string(u.Role), u.Token)
	return err
}

func (db *DB) scanUser(row *sql.Row) (*User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.DisplayName, &role, &u.Token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = store.Role(role)
	return &u, nil
}
