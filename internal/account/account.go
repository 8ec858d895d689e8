// Package account handles registration payloads, password hashing and
// password login.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/validation"
	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Registration is the profile part of an enrollment request.
type Registration struct {
	FirstName string `json:"first_name" validate:"required,max=100,person_name"`
	LastName  string `json:"last_name" validate:"required,max=100,person_name"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Role      string `json:"role" validate:"omitempty,oneof=user admin"`
}

// Normalize cleans up names and email in place.
func (r *Registration) Normalize() {
	r.FirstName = NormalizeName(r.FirstName)
	r.LastName = NormalizeName(r.LastName)
	r.Email = NormalizeEmail(r.Email)
	if r.Role == "" {
		r.Role = database.RoleUser
	}
}

// NewUser normalizes and validates the registration and hashes its password.
func (r Registration) NewUser() (database.NewUser, error) {
	r.Normalize()
	if err := validation.Struct(r); err != nil {
		return database.NewUser{}, err
	}
	hash, err := HashPassword(r.Password)
	if err != nil {
		return database.NewUser{}, err
	}
	return database.NewUser{
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		PasswordHash: hash,
		Role:         r.Role,
	}, nil
}

// ProfileUpdate is an admin edit of a user.
type ProfileUpdate struct {
	FirstName string `json:"first_name" validate:"required,max=100,person_name"`
	LastName  string `json:"last_name" validate:"required,max=100,person_name"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Role      string `json:"role" validate:"required,oneof=user admin"`
}

// UserUpdate normalizes and validates the edit.
func (p ProfileUpdate) UserUpdate() (database.UserUpdate, error) {
	p.FirstName = NormalizeName(p.FirstName)
	p.LastName = NormalizeName(p.LastName)
	p.Email = NormalizeEmail(p.Email)
	if err := validation.Struct(p); err != nil {
		return database.UserUpdate{}, err
	}
	return database.UserUpdate{FirstName: p.FirstName, LastName: p.LastName, Email: p.Email, Role: p.Role}, nil
}

// Service authenticates users by password.
type Service struct {
	users  database.UserWriter
	logger *zap.Logger
}

// NewService creates an account service.
func NewService(users database.UserWriter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, logger: logger}
}

// Authenticate checks email and password. A user still on a legacy bcrypt
// hash is moved to argon2 on success.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*database.User, error) {
	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, rehash, err := VerifyPassword(user.PasswordHash, password)
	if err != nil {
		s.logger.Warn("unusable password hash", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if rehash {
		if hash, err := HashPassword(password); err != nil {
			s.logger.Warn("failed to rehash password", zap.Int64("user_id", user.ID), zap.Error(err))
		} else if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			s.logger.Warn("failed to store rehashed password", zap.Int64("user_id", user.ID), zap.Error(err))
		} else {
			user.PasswordHash = hash
		}
	}
	return user, nil
}
