package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"carwatch/internal/model"
	"carwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// IsSeen reports whether a listing key has already been notified.
func (s *SQLite) IsSeen(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_listings WHERE listing_key = ?`, key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return count > 0, nil
}

// MarkSeen records a dispatched listing. The insert is idempotent on the
// listing key; repeat marks only update last_notified and the counter.
func (s *SQLite) MarkSeen(ctx context.Context, rec model.SeenRecord) error {
	firstSeen := rec.FirstSeen
	if firstSeen.IsZero() {
		firstSeen = time.Now().UTC()
	}
	var lastNotified *string
	if rec.LastNotified != nil {
		v := rec.LastNotified.UTC().Format(timeLayout)
		lastNotified = &v
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seen_listings (listing_key, source, url, title, price, first_seen, last_notified, notify_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		 ON CONFLICT(listing_key) DO UPDATE SET
		   last_notified = COALESCE(excluded.last_notified, seen_listings.last_notified),
		   notify_count = seen_listings.notify_count + 1`,
		rec.Key, rec.Source, rec.URL, rec.Title, rec.Price,
		firstSeen.Format(timeLayout), lastNotified,
	)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// LogNotification appends one outbound notification attempt to the log.
func (s *SQLite) LogNotification(ctx context.Context, key string, ok bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_log (listing_key, success, sent_at) VALUES (?, ?, ?)`,
		key, boolToInt(ok), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log notification: %w", err)
	}
	return nil
}

// CountNotificationsSince returns how many successful notifications were
// logged after the given instant.
func (s *SQLite) CountNotificationsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_log WHERE success = 1 AND sent_at > ?`,
		since.UTC().Format(timeLayout),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

// CanNotifyError reports whether an operator error notification of the
// given kind may be sent (at most one per kind per hour).
func (s *SQLite) CanNotifyError(ctx context.Context, kind string) (bool, error) {
	oneHourAgo := time.Now().UTC().Add(-time.Hour).Format(timeLayout)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM error_log WHERE error_kind = ? AND notified_at > ?`,
		kind, oneHourAgo,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check error log: %w", err)
	}
	return count == 0, nil
}

// LogErrorNotification records a sent operator error notification.
func (s *SQLite) LogErrorNotification(ctx context.Context, kind, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO error_log (error_kind, error_message, notified_at) VALUES (?, ?, ?)`,
		kind, message, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log error notification: %w", err)
	}
	return nil
}

// Stats returns store-wide counters for periodic operator logging.
func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	st := Stats{BySource: map[string]int{}}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_listings`,
	).Scan(&st.TotalSeen); err != nil {
		return st, fmt.Errorf("count seen: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM seen_listings GROUP BY source`,
	)
	if err != nil {
		return st, fmt.Errorf("count by source: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return st, fmt.Errorf("scan source count: %w", err)
		}
		st.BySource[src] = n
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if st.NotificationsToday, err = s.CountNotificationsSince(ctx, midnight); err != nil {
		return st, err
	}
	if st.NotificationsLastHour, err = s.CountNotificationsSince(ctx, now.Add(-time.Hour)); err != nil {
		return st, err
	}

	return st, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
