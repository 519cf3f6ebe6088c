package database

import (
	"database/sql"
	"fmt"
)

// UpsertAuthorizationCache records or refreshes a cached authorization
// verdict for an id-tag, as returned in a StartTransaction/StopTransaction/
// Authorize response's idTagInfo.
func (db *DB) UpsertAuthorizationCache(entry *AuthorizationCacheRow) error {
	var expiryDate sql.NullTime
	if entry.ExpiryDate != nil {
		expiryDate = sql.NullTime{Time: *entry.ExpiryDate, Valid: true}
	}

	var parentIdTag sql.NullString
	if entry.ParentIdTag != "" {
		parentIdTag = sql.NullString{String: entry.ParentIdTag, Valid: true}
	}

	query := `
		INSERT INTO authorization_cache (id_tag, status, expiry_date, parent_id_tag, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id_tag) DO UPDATE SET
			status = excluded.status,
			expiry_date = excluded.expiry_date,
			parent_id_tag = excluded.parent_id_tag,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := db.conn.Exec(query, entry.IdTag, entry.Status, expiryDate, parentIdTag)
	if err != nil {
		return fmt.Errorf("failed to upsert authorization cache for %s: %w", entry.IdTag, err)
	}

	return nil
}

// GetAuthorizationCache retrieves the cached verdict for an id-tag, or nil
// if none is cached.
func (db *DB) GetAuthorizationCache(idTag string) (*AuthorizationCacheRow, error) {
	query := `
		SELECT id_tag, status, expiry_date, parent_id_tag, updated_at
		FROM authorization_cache
		WHERE id_tag = ?
	`

	row := &AuthorizationCacheRow{}
	var expiryDate sql.NullTime
	var parentIdTag sql.NullString

	err := db.conn.QueryRow(query, idTag).Scan(
		&row.IdTag, &row.Status, &expiryDate, &parentIdTag, &row.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization cache for %s: %w", idTag, err)
	}

	if expiryDate.Valid {
		row.ExpiryDate = &expiryDate.Time
	}
	if parentIdTag.Valid {
		row.ParentIdTag = parentIdTag.String
	}

	return row, nil
}

// DeleteAuthorizationCache removes a cached verdict, e.g. after the central
// system reports the id-tag as no longer valid.
func (db *DB) DeleteAuthorizationCache(idTag string) error {
	_, err := db.conn.Exec("DELETE FROM authorization_cache WHERE id_tag = ?", idTag)
	if err != nil {
		return fmt.Errorf("failed to delete authorization cache for %s: %w", idTag, err)
	}
	return nil
}
