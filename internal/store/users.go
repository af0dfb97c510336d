package store

import (
	"context"
	"fmt"

	"github.com/roach88/phdtrack/internal/domain"
)

// InsertUser creates a user.
func (t *Tx) InsertUser(ctx context.Context, u domain.User) error {
	_, err := t.exec(ctx, `
		INSERT INTO users (id, display_name, email, created_at)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.DisplayName, u.Email, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser loads a user by id.
func (r reader) GetUser(ctx context.Context, id string) (domain.User, error) {
	var (
		u       domain.User
		created string
	)
	err := r.queryRow(ctx, `
		SELECT id, display_name, email, created_at FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.DisplayName, &u.Email, &created)
	if err != nil {
		return domain.User{}, notFound(err, "user", id)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
