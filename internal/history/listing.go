package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MarkListingRefreshed stamps the moment the job listing was last synced
// with the backend.
func (s *Store) MarkListingRefreshed(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.exec(
		ctx,
		`INSERT INTO listing_state (id, refreshed_at) VALUES (1, ?)
         ON CONFLICT(id) DO UPDATE SET refreshed_at = excluded.refreshed_at`,
		nowStamp(),
	); err != nil {
		return fmt.Errorf("stamp listing: %w", err)
	}
	return nil
}

// ListingFresh reports whether the last listing sync happened within ttl.
// A disabled store, a missing stamp, or a non-positive ttl all read as stale.
func (s *Store) ListingFresh(ctx context.Context, ttl time.Duration) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	if ttl <= 0 {
		return false, nil
	}

	var raw sql.NullString
	err := s.queryRow(ctx, `SELECT refreshed_at FROM listing_state WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read listing stamp: %w", err)
	}
	if !raw.Valid {
		return false, nil
	}
	refreshed, err := parseTimeString(raw.String)
	if err != nil {
		return false, nil
	}
	return time.Since(refreshed) < ttl, nil
}

// InvalidateListing clears the stamp so the next listing re-polls statuses.
// Submissions call this; a new task makes any cached listing stale.
func (s *Store) InvalidateListing(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.exec(ctx, `DELETE FROM listing_state WHERE id = 1`); err != nil {
		return fmt.Errorf("invalidate listing: %w", err)
	}
	return nil
}
