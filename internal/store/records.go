package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
)

// Visit is one tracked page view. The IP is stored hashed.
type Visit struct {
	ID        int64     `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Submission is one entry of the contact dispatch log. Form values are
// never stored, only a hash of the sender address.
type Submission struct {
	ID          string        `json:"id"`
	HashedEmail string        `json:"hashed_email"`
	Relay       string        `json:"relay"`
	Outcome     string        `json:"outcome"`
	Reason      string        `json:"reason,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Stats summarises visitors and submissions for the admin dashboard.
type Stats struct {
	TotalVisitors     int64        `json:"total_visitors"`
	UniqueVisitors    int64        `json:"unique_visitors"`
	VisitorsToday     int64        `json:"visitors_today"`
	VisitorsThisWeek  int64        `json:"visitors_this_week"`
	TotalSubmissions  int64        `json:"total_submissions"`
	FailedSubmissions int64        `json:"failed_submissions"`
	RecentVisitors    []Visit      `json:"recent_visitors"`
	RecentSubmissions []Submission `json:"recent_submissions"`
}

// RecordVisit stores a page view.
func (s *Store) RecordVisit(ctx context.Context, v Visit) error {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visitors (hashed_ip, user_agent, path, created_at)
		VALUES (?, ?, ?, ?)`,
		v.HashedIP, v.UserAgent, v.Path, v.Timestamp.Unix())
	return errors.Wrap(err, "insert visitor")
}

// RecordSubmission stores a dispatch outcome.
func (s *Store) RecordSubmission(ctx context.Context, sub Submission) error {
	if sub.Timestamp.IsZero() {
		sub.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, hashed_email, relay, outcome, reason, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.HashedEmail, sub.Relay, sub.Outcome, sub.Reason, sub.Elapsed.Milliseconds(), sub.Timestamp.Unix())
	return errors.Wrap(err, "insert submission")
}

// RecentVisitors returns the latest visits, newest first.
func (s *Store) RecentVisitors(ctx context.Context, limit int) ([]Visit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_ip, user_agent, path, created_at
		FROM visitors
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query visitors")
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		var v Visit
		var created int64
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &created); err != nil {
			return nil, errors.Wrap(err, "scan visitor")
		}
		v.Timestamp = time.Unix(created, 0)
		visits = append(visits, v)
	}
	return visits, errors.Wrap(rows.Err(), "iterate visitors")
}

// RecentSubmissions returns the latest dispatch log entries, newest first.
func (s *Store) RecentSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_email, relay, outcome, reason, elapsed_ms, created_at
		FROM submissions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query submissions")
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		var sub Submission
		var elapsedMs, created int64
		if err := rows.Scan(&sub.ID, &sub.HashedEmail, &sub.Relay, &sub.Outcome, &sub.Reason, &elapsedMs, &created); err != nil {
			return nil, errors.Wrap(err, "scan submission")
		}
		sub.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		sub.Timestamp = time.Unix(created, 0)
		subs = append(subs, sub)
	}
	return subs, errors.Wrap(rows.Err(), "iterate submissions")
}

// DeleteSubmission removes one dispatch log entry.
func (s *Store) DeleteSubmission(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete submission")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete submission")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune deletes visits and submissions older than cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"visitors", "submissions"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, cutoff.Unix())
		if err != nil {
			return total, errors.Wrapf(err, "prune %s", table)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Stats gathers dashboard statistics as of now.
func (s *Store) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	stats := &Stats{}

	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	weekAgo := now.Add(-7 * 24 * time.Hour)

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&stats.TotalVisitors, `SELECT COUNT(*) FROM visitors`, nil},
		{&stats.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil},
		{&stats.VisitorsToday, `SELECT COUNT(*) FROM visitors WHERE created_at >= ?`, []any{startOfDay.Unix()}},
		{&stats.VisitorsThisWeek, `SELECT COUNT(*) FROM visitors WHERE created_at >= ?`, []any{weekAgo.Unix()}},
		{&stats.TotalSubmissions, `SELECT COUNT(*) FROM submissions`, nil},
		{&stats.FailedSubmissions, `SELECT COUNT(*) FROM submissions WHERE outcome != 'success'`, nil},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, errors.Wrap(err, "query stats")
		}
	}

	var err error
	if stats.RecentVisitors, err = s.RecentVisitors(ctx, 50); err != nil {
		return nil, err
	}
	if stats.RecentSubmissions, err = s.RecentSubmissions(ctx, 10); err != nil {
		return nil, err
	}
	return stats, nil
}
