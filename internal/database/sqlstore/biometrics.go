package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const biometricColumns = "id, user_id, feature, image_ref, created_at"

// encodeFeature stores a feature as a JSON array; nil becomes NULL.
func encodeFeature(f []float64) (sql.NullString, error) {
	if f == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode feature: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeFeature(s sql.NullString) ([]float64, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var f []float64
	if err := json.Unmarshal([]byte(s.String), &f); err != nil {
		return nil, fmt.Errorf("decode feature: %w", err)
	}
	return f, nil
}

func (s *Store) queryBiometrics(ctx context.Context, where string, args ...any) ([]database.BiometricRecord, error) {
	query := "SELECT " + biometricColumns + " FROM user_biometrics"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query biometrics: %w", err)
	}
	defer rows.Close()

	var out []database.BiometricRecord
	for rows.Next() {
		var r database.BiometricRecord
		var feature sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &feature, &r.ImageRef, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan biometric: %w", err)
		}
		if r.Feature, err = decodeFeature(feature); err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListUserSignatures returns the user's records that carry a feature.
func (s *Store) ListUserSignatures(ctx context.Context, userID int64) ([]database.BiometricRecord, error) {
	return s.queryBiometrics(ctx, "user_id = ? AND feature IS NOT NULL", userID)
}

// ListSignatures returns every record that carries a feature.
func (s *Store) ListSignatures(ctx context.Context) ([]database.BiometricRecord, error) {
	return s.queryBiometrics(ctx, "feature IS NOT NULL")
}

// ListBiometrics returns every record.
func (s *Store) ListBiometrics(ctx context.Context) ([]database.BiometricRecord, error) {
	return s.queryBiometrics(ctx, "")
}

// ListUserBiometrics returns all records of one user.
func (s *Store) ListUserBiometrics(ctx context.Context, userID int64) ([]database.BiometricRecord, error) {
	return s.queryBiometrics(ctx, "user_id = ?", userID)
}

// ImageRefs returns the image reference of every record.
func (s *Store) ImageRefs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT image_ref FROM user_biometrics ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query image refs: %w", err)
	}
	return scanStrings(rows)
}

// ReplaceFeatures applies all updates in a single transaction. An unknown
// record ID aborts the whole batch with database.ErrNotFound.
func (s *Store) ReplaceFeatures(ctx context.Context, updates []database.FeatureUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind("UPDATE user_biometrics SET feature = ? WHERE id = ?"))
		if err != nil {
			return fmt.Errorf("prepare feature update: %w", err)
		}
		defer stmt.Close()

		for _, u := range updates {
			feature, err := encodeFeature(u.Feature)
			if err != nil {
				return err
			}
			res, err := stmt.ExecContext(ctx, feature, u.RecordID)
			if err != nil {
				return fmt.Errorf("update record %d: %w", u.RecordID, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return fmt.Errorf("record %d: %w", u.RecordID, database.ErrNotFound)
			}
		}
		return nil
	})
}
