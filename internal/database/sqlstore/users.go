package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const userColumns = "id, first_name, last_name, email, password_hash, role, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*database.User, error) {
	var u database.User
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (*database.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	u, err := scanUser(row)
	if err != nil {
		return nil, s.translate(err)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+userColumns+" FROM users WHERE email = ?"), email)
	u, err := scanUser(row)
	if err != nil {
		return nil, s.translate(err)
	}
	return u, nil
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]database.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []database.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUser changes the profile fields of a user.
func (s *Store) UpdateUser(ctx context.Context, id int64, update database.UserUpdate) error {
	return s.execOne(ctx, s.db,
		"UPDATE users SET first_name = ?, last_name = ?, email = ?, role = ? WHERE id = ?",
		update.FirstName, update.LastName, update.Email, update.Role, id)
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return s.execOne(ctx, s.db, "UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
}

// DeleteUser removes a user, their attendances and biometric records in one
// transaction and returns the image references of the removed records.
func (s *Store) DeleteUser(ctx context.Context, id int64) ([]string, error) {
	var refs []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, s.rebind("SELECT image_ref FROM user_biometrics WHERE user_id = ? ORDER BY id"), id)
		if err != nil {
			return fmt.Errorf("query image refs: %w", err)
		}
		refs, err = scanStrings(rows)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM user_attendances WHERE user_id = ?"), id); err != nil {
			return fmt.Errorf("delete attendances: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM user_biometrics WHERE user_id = ?"), id); err != nil {
			return fmt.Errorf("delete biometrics: %w", err)
		}
		return s.execOne(ctx, tx, "DELETE FROM users WHERE id = ?", id)
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// CreateUserWithBiometrics inserts the user and every record in one transaction.
func (s *Store) CreateUserWithBiometrics(ctx context.Context, nu database.NewUser, records []database.NewBiometric) (*database.User, []database.BiometricRecord, error) {
	now := time.Now().UTC()
	user := &database.User{
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Role:         nu.Role,
		CreatedAt:    now,
	}
	stored := make([]database.BiometricRecord, 0, len(records))

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insert(ctx, tx,
			"INSERT INTO users (first_name, last_name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			user.FirstName, user.LastName, user.Email, user.PasswordHash, user.Role, now)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		user.ID = id

		for _, r := range records {
			feature, err := encodeFeature(r.Feature)
			if err != nil {
				return err
			}
			rid, err := s.insert(ctx, tx,
				"INSERT INTO user_biometrics (user_id, feature, image_ref, created_at) VALUES (?, ?, ?, ?)",
				id, feature, r.ImageRef, now)
			if err != nil {
				return fmt.Errorf("insert biometric: %w", err)
			}
			stored = append(stored, database.BiometricRecord{
				ID: rid, UserID: id, Feature: r.Feature, ImageRef: r.ImageRef, CreatedAt: now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return user, stored, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
