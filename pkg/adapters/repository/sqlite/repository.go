package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/openlistings/leadsync/pkg/core/domain"
	"github.com/openlistings/leadsync/pkg/ports"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'draft',
		hero_image_url TEXT,
		attributes JSON,
		is_shadow INTEGER NOT NULL DEFAULT 0,
		source_id INTEGER,
		source_url TEXT,
		received_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_pages_slug ON pages(slug);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_pages_shadow_identity
		ON pages(source_id, source_url) WHERE is_shadow = 1 AND deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS sync_links (
		page_id INTEGER PRIMARY KEY,
		remote_id INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		last_error TEXT,
		last_synced_at DATETIME,
		FOREIGN KEY(page_id) REFERENCES pages(id)
	);

	CREATE TABLE IF NOT EXISTS partners (
		site_url TEXT PRIMARY KEY,
		site_name TEXT,
		registered_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		page_id INTEGER NOT NULL,
		first_name TEXT,
		last_name TEXT,
		email TEXT,
		phone TEXT,
		responses JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(page_id) REFERENCES pages(id)
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_page_id ON submissions(page_id);

	CREATE TABLE IF NOT EXISTS page_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(page_id) REFERENCES pages(id)
	);
	CREATE INDEX IF NOT EXISTS idx_page_events_dedup
		ON page_events(page_id, event_type, fingerprint, created_at);

	CREATE TABLE IF NOT EXISTS delivery_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		payload JSON NOT NULL,
		target_event_id TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 1,
		first_failed_at DATETIME NOT NULL,
		last_attempt_at DATETIME NOT NULL,
		last_response TEXT
	);

	CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		direction TEXT NOT NULL,
		page_id INTEGER,
		status TEXT NOT NULL,
		message TEXT
	);

	CREATE TABLE IF NOT EXISTS options (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`
	_, err := db.Exec(query)
	return err
}

const timeLayout = "2006-01-02 15:04:05"

// --- Pages ---

func (r *SQLiteRepository) Create(ctx context.Context, page *domain.Page) error {
	query := `INSERT INTO pages (title, slug, status, hero_image_url, attributes, is_shadow, source_id, source_url, received_at, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	attrsJSON, err := json.Marshal(page.Attributes)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query,
		page.Title, page.Slug, page.Status, page.HeroImageURL, attrsJSON,
		boolToInt(page.IsShadow), page.SourceID, page.SourceURL, page.ReceivedAt,
		page.CreatedAt, page.UpdatedAt)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	page.ID = id
	return nil
}

const pageColumns = `id, title, slug, status, hero_image_url, attributes, is_shadow, source_id, source_url, received_at, created_at, updated_at, deleted_at`

func (r *SQLiteRepository) scanPage(row *sql.Row) (*domain.Page, error) {
	var p domain.Page
	var attrsJSON []byte
	var heroURL, sourceURL sql.NullString
	var sourceID sql.NullInt64
	var isShadow int
	var receivedAt, deletedAt sql.NullTime

	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Status, &heroURL, &attrsJSON,
		&isShadow, &sourceID, &sourceURL, &receivedAt, &p.CreatedAt, &p.UpdatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.HeroImageURL = heroURL.String
	p.IsShadow = isShadow == 1
	p.SourceID = sourceID.Int64
	p.SourceURL = sourceURL.String
	if receivedAt.Valid {
		p.ReceivedAt = &receivedAt.Time
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	_ = json.Unmarshal(attrsJSON, &p.Attributes)
	return &p, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*domain.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE id = ? AND deleted_at IS NULL`
	return r.scanPage(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteRepository) GetBySlug(ctx context.Context, slug string) (*domain.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE slug = ? AND deleted_at IS NULL`
	return r.scanPage(r.db.QueryRowContext(ctx, query, slug))
}

func (r *SQLiteRepository) GetShadow(ctx context.Context, sourceID int64, sourceURL string) (*domain.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages
			  WHERE is_shadow = 1 AND source_id = ? AND source_url = ? AND deleted_at IS NULL`
	return r.scanPage(r.db.QueryRowContext(ctx, query, sourceID, sourceURL))
}

func (r *SQLiteRepository) Update(ctx context.Context, page *domain.Page) error {
	query := `UPDATE pages SET title = ?, slug = ?, status = ?, hero_image_url = ?, attributes = ?, received_at = ?, updated_at = ? WHERE id = ?`

	attrsJSON, err := json.Marshal(page.Attributes)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		page.Title, page.Slug, page.Status, page.HeroImageURL, attrsJSON,
		page.ReceivedAt, page.UpdatedAt, page.ID)
	return err
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	query := `UPDATE pages SET deleted_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	return err
}

func (r *SQLiteRepository) List(ctx context.Context, limit, offset int, filters map[string]interface{}) ([]domain.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE deleted_at IS NULL`
	args := []interface{}{}

	if search, ok := filters["search"].(string); ok && search != "" {
		query += " AND (title LIKE ? OR slug LIKE ?)"
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	if shadow, ok := filters["is_shadow"].(bool); ok {
		query += " AND is_shadow = ?"
		args = append(args, boolToInt(shadow))
	}

	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []domain.Page
	for rows.Next() {
		var p domain.Page
		var attrsJSON []byte
		var heroURL, sourceURL sql.NullString
		var sourceID sql.NullInt64
		var isShadow int
		var receivedAt, deletedAt sql.NullTime

		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Status, &heroURL, &attrsJSON,
			&isShadow, &sourceID, &sourceURL, &receivedAt, &p.CreatedAt, &p.UpdatedAt, &deletedAt); err != nil {
			return nil, err
		}
		p.HeroImageURL = heroURL.String
		p.IsShadow = isShadow == 1
		p.SourceID = sourceID.Int64
		p.SourceURL = sourceURL.String
		if receivedAt.Valid {
			p.ReceivedAt = &receivedAt.Time
		}
		_ = json.Unmarshal(attrsJSON, &p.Attributes)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (r *SQLiteRepository) Count(ctx context.Context, filters map[string]interface{}) (int64, error) {
	query := `SELECT COUNT(*) FROM pages WHERE deleted_at IS NULL`
	args := []interface{}{}

	if search, ok := filters["search"].(string); ok && search != "" {
		query += " AND (title LIKE ? OR slug LIKE ?)"
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	if shadow, ok := filters["is_shadow"].(bool); ok {
		query += " AND is_shadow = ?"
		args = append(args, boolToInt(shadow))
	}

	var count int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// --- Sync links ---

func (r *SQLiteRepository) GetSyncLink(ctx context.Context, pageID int64) (*domain.SyncLink, error) {
	query := `SELECT page_id, remote_id, status, last_error, last_synced_at FROM sync_links WHERE page_id = ?`

	var l domain.SyncLink
	var lastError sql.NullString
	var lastSyncedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, pageID).Scan(&l.PageID, &l.RemoteID, &l.Status, &lastError, &lastSyncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	l.LastError = lastError.String
	if lastSyncedAt.Valid {
		l.LastSyncedAt = &lastSyncedAt.Time
	}
	return &l, nil
}

func (r *SQLiteRepository) SaveSyncLink(ctx context.Context, link *domain.SyncLink) error {
	query := `INSERT INTO sync_links (page_id, remote_id, status, last_error, last_synced_at)
			  VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT(page_id) DO UPDATE SET
				remote_id = excluded.remote_id,
				status = excluded.status,
				last_error = excluded.last_error,
				last_synced_at = excluded.last_synced_at`
	_, err := r.db.ExecContext(ctx, query, link.PageID, link.RemoteID, link.Status, link.LastError, link.LastSyncedAt)
	return err
}

func (r *SQLiteRepository) DeleteSyncLink(ctx context.Context, pageID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_links WHERE page_id = ?`, pageID)
	return err
}

// --- Partners ---

func (r *SQLiteRepository) UpsertPartner(ctx context.Context, partner *domain.Partner) error {
	query := `INSERT INTO partners (site_url, site_name, registered_at)
			  VALUES (?, ?, ?)
			  ON CONFLICT(site_url) DO UPDATE SET
				site_name = excluded.site_name,
				registered_at = excluded.registered_at`
	_, err := r.db.ExecContext(ctx, query, partner.SiteURL, partner.SiteName, partner.RegisteredAt)
	return err
}

func (r *SQLiteRepository) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT site_url, site_name, registered_at FROM partners ORDER BY registered_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []domain.Partner
	for rows.Next() {
		var p domain.Partner
		if err := rows.Scan(&p.SiteURL, &p.SiteName, &p.RegisteredAt); err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

// --- Submissions ---

func (r *SQLiteRepository) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	query := `INSERT INTO submissions (uuid, page_id, first_name, last_name, email, phone, responses, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	responsesJSON, err := json.Marshal(sub.Responses)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, sub.UUID, sub.PageID,
		sub.FirstName, sub.LastName, sub.Email, sub.Phone, responsesJSON, sub.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID = id
	return nil
}

func (r *SQLiteRepository) GetSubmission(ctx context.Context, id int64) (*domain.Submission, error) {
	query := `SELECT id, uuid, page_id, first_name, last_name, email, phone, responses, created_at
			  FROM submissions WHERE id = ?`

	var s domain.Submission
	var responsesJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.UUID, &s.PageID, &s.FirstName, &s.LastName, &s.Email, &s.Phone, &responsesJSON, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(responsesJSON, &s.Responses)
	return &s, nil
}

// --- Analytics events ---

func (r *SQLiteRepository) RecordEvent(ctx context.Context, event *domain.PageEvent) error {
	query := `INSERT INTO page_events (page_id, event_type, fingerprint, created_at) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, event.PageID, event.EventType, event.Fingerprint,
		event.CreatedAt.Format(timeLayout))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = id
	return nil
}

func (r *SQLiteRepository) HasRecentEvent(ctx context.Context, pageID int64, eventType, fingerprint string, since time.Time) (bool, error) {
	query := `SELECT COUNT(*) FROM page_events
			  WHERE page_id = ? AND event_type = ? AND fingerprint = ? AND created_at > ?`
	var count int64
	err := r.db.QueryRowContext(ctx, query, pageID, eventType, fingerprint, since.Format(timeLayout)).Scan(&count)
	return count > 0, err
}

func (r *SQLiteRepository) GetPageStats(ctx context.Context, pageID int64) (*domain.PageStats, error) {
	stats := &domain.PageStats{
		Totals:     make(map[string]int64),
		DailyViews: []domain.DailyCount{},
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT event_type, COUNT(*) FROM page_events WHERE page_id = ? GROUP BY event_type`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		stats.Totals[eventType] = count
	}
	rows.Close()

	// Daily views (last 30 days)
	rows2, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', created_at) as date, COUNT(*)
		FROM page_events
		WHERE page_id = ? AND event_type = 'view'
		GROUP BY date
		ORDER BY date DESC
		LIMIT 30`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows2.Close()
	for rows2.Next() {
		var dc domain.DailyCount
		if err := rows2.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, err
		}
		stats.DailyViews = append(stats.DailyViews, dc)
	}

	return stats, nil
}

// --- Delivery retry queue ---

func (r *SQLiteRepository) EnqueueDelivery(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	query := `INSERT INTO delivery_queue (uuid, payload, target_event_id, attempt_count, first_failed_at, last_attempt_at, last_response)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, attempt.UUID, []byte(attempt.Payload), attempt.TargetEventID,
		attempt.AttemptCount, attempt.FirstFailedAt, attempt.LastAttemptAt, attempt.LastResponse)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	attempt.ID = id
	return nil
}

func (r *SQLiteRepository) ListDeliveries(ctx context.Context) ([]domain.DeliveryAttempt, error) {
	query := `SELECT id, uuid, payload, target_event_id, attempt_count, first_failed_at, last_attempt_at, last_response
			  FROM delivery_queue ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []domain.DeliveryAttempt
	for rows.Next() {
		var a domain.DeliveryAttempt
		var payload []byte
		var targetEventID, lastResponse sql.NullString
		if err := rows.Scan(&a.ID, &a.UUID, &payload, &targetEventID, &a.AttemptCount,
			&a.FirstFailedAt, &a.LastAttemptAt, &lastResponse); err != nil {
			return nil, err
		}
		a.Payload = payload
		a.TargetEventID = targetEventID.String
		a.LastResponse = lastResponse.String
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *SQLiteRepository) UpdateDelivery(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	query := `UPDATE delivery_queue SET attempt_count = ?, last_attempt_at = ?, last_response = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, attempt.AttemptCount, attempt.LastAttemptAt, attempt.LastResponse, attempt.ID)
	return err
}

func (r *SQLiteRepository) RemoveDelivery(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM delivery_queue WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepository) ClearDeliveries(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM delivery_queue`)
	return err
}

// --- Activity log ---

func (r *SQLiteRepository) AppendActivity(ctx context.Context, entry *domain.ActivityEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO activity_log (created_at, direction, page_id, status, message) VALUES (?, ?, ?, ?, ?)`,
		entry.CreatedAt.Format(timeLayout), entry.Direction, entry.PageID, entry.Status, entry.Message)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id

	// Evict oldest entries beyond the cap. Done in the same transaction
	// so the log never grows unbounded between append and trim.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM activity_log WHERE id NOT IN (
			SELECT id FROM activity_log ORDER BY id DESC LIMIT ?
		)`, domain.ActivityLogCap)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SQLiteRepository) RecentActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	if limit < 1 || limit > domain.ActivityLogCap {
		limit = domain.ActivityLogCap
	}
	query := `SELECT id, created_at, direction, page_id, status, message
			  FROM activity_log ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		var pageID sql.NullInt64
		var message sql.NullString
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Direction, &pageID, &e.Status, &message); err != nil {
			return nil, err
		}
		e.PageID = pageID.Int64
		e.Message = message.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Options ---

func (r *SQLiteRepository) GetOption(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM options WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetOption(ctx context.Context, key, value string) error {
	query := `INSERT INTO options (key, value) VALUES (?, ?)
			  ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	_, err := r.db.ExecContext(ctx, query, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure interface compliance
var _ ports.PageRepository = (*SQLiteRepository)(nil)
