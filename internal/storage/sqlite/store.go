// Package sqlite provides a SQLite-backed memory storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/everpage/internal/memory"
	sqlitemigrate "github.com/louisbranch/everpage/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/everpage/internal/storage"
	"github.com/louisbranch/everpage/internal/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists memory records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// photoRecord is the JSON shape of one photo inside the photos column.
type photoRecord struct {
	Reference string `json:"reference"`
	Caption   string `json:"caption,omitempty"`
}

// Open opens a SQLite memory store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// InsertIfAbsent stores one memory record. A slug collision returns
// storage.ErrAlreadyExists without writing anything; the UNIQUE constraint
// arbitrates concurrent inserts.
func (s *Store) InsertIfAbsent(ctx context.Context, m memory.Memory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("memory id is required")
	}
	if strings.TrimSpace(m.Slug) == "" {
		return fmt.Errorf("memory slug is required")
	}

	photos, err := encodePhotos(m.Photos)
	if err != nil {
		return fmt.Errorf("encode photos: %w", err)
	}

	var startDate interface{}
	if m.RelationshipStartDate != nil {
		startDate = toMillis(*m.RelationshipStartDate)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO memories (
		   id,
		   slug,
		   title,
		   love_letter_content,
		   relationship_start_date,
		   youtube_music_url,
		   photos,
		   payment_status,
		   provider_ref,
		   payment_id,
		   created_at,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.Slug,
		m.Title,
		m.LoveLetterContent,
		startDate,
		m.YouTubeMusicURL,
		photos,
		m.PaymentStatus.Label(),
		m.ProviderRef,
		m.PaymentID,
		toMillis(m.CreatedAt),
		toMillis(m.UpdatedAt),
	)
	if err != nil {
		if isMemoryUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// UpdateStatus transitions one record between payment statuses. The WHERE
// clause carries the expected current status so concurrent deliveries cannot
// double-apply; false means the record was not in that status.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to memory.PaymentStatus, paymentID string, updatedAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("memory id is required")
	}

	var (
		result sql.Result
		err    error
	)
	if paymentID = strings.TrimSpace(paymentID); paymentID != "" {
		result, err = s.sqlDB.ExecContext(
			ctx,
			`UPDATE memories
			    SET payment_status = ?, payment_id = ?, updated_at = ?
			  WHERE id = ? AND payment_status = ?`,
			to.Label(), paymentID, toMillis(updatedAt), id, from.Label(),
		)
	} else {
		result, err = s.sqlDB.ExecContext(
			ctx,
			`UPDATE memories
			    SET payment_status = ?, updated_at = ?
			  WHERE id = ? AND payment_status = ?`,
			to.Label(), toMillis(updatedAt), id, from.Label(),
		)
	}
	if err != nil {
		return false, fmt.Errorf("update memory status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update memory status: %w", err)
	}
	return affected == 1, nil
}

// SetProviderRef attaches the payment provider reference to a record.
func (s *Store) SetProviderRef(ctx context.Context, id, providerRef string, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("memory id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE memories SET provider_ref = ?, updated_at = ? WHERE id = ?`,
		strings.TrimSpace(providerRef), toMillis(updatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("set provider ref: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set provider ref: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes one record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("memory id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindBySlug returns one record by slug.
func (s *Store) FindBySlug(ctx context.Context, slug string) (memory.Memory, error) {
	if err := ctx.Err(); err != nil {
		return memory.Memory{}, err
	}
	if s == nil || s.sqlDB == nil {
		return memory.Memory{}, fmt.Errorf("storage is not configured")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return memory.Memory{}, fmt.Errorf("memory slug is required")
	}
	return s.findOne(ctx, `slug = ?`, slug)
}

// FindByProviderRef returns one record by payment provider reference.
func (s *Store) FindByProviderRef(ctx context.Context, providerRef string) (memory.Memory, error) {
	if err := ctx.Err(); err != nil {
		return memory.Memory{}, err
	}
	if s == nil || s.sqlDB == nil {
		return memory.Memory{}, fmt.Errorf("storage is not configured")
	}
	providerRef = strings.TrimSpace(providerRef)
	if providerRef == "" {
		return memory.Memory{}, fmt.Errorf("provider ref is required")
	}
	return s.findOne(ctx, `provider_ref = ?`, providerRef)
}

func (s *Store) findOne(ctx context.Context, where string, arg interface{}) (memory.Memory, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, slug, title, love_letter_content,
		        relationship_start_date, youtube_music_url, photos,
		        payment_status, provider_ref, payment_id,
		        created_at, updated_at
		   FROM memories
		  WHERE `+where,
		arg,
	)

	var m memory.Memory
	var startDate sql.NullInt64
	var photos string
	var status string
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&m.ID,
		&m.Slug,
		&m.Title,
		&m.LoveLetterContent,
		&startDate,
		&m.YouTubeMusicURL,
		&photos,
		&status,
		&m.ProviderRef,
		&m.PaymentID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return memory.Memory{}, storage.ErrNotFound
		}
		return memory.Memory{}, fmt.Errorf("get memory: %w", err)
	}

	if startDate.Valid {
		value := fromMillis(startDate.Int64)
		m.RelationshipStartDate = &value
	}
	m.Photos, err = decodePhotos(photos)
	if err != nil {
		return memory.Memory{}, fmt.Errorf("decode photos for memory %s: %w", m.ID, err)
	}
	m.PaymentStatus, err = memory.PaymentStatusFromLabel(status)
	if err != nil {
		return memory.Memory{}, fmt.Errorf("decode status for memory %s: %w", m.ID, err)
	}
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return m, nil
}

// MarkAbandonedOlderThan transitions stale Pending records to Abandoned and
// returns the slugs of the records it changed. Each row is updated with a
// conditional WHERE so a concurrent payment approval always wins the race.
func (s *Store) MarkAbandonedOlderThan(ctx context.Context, cutoff, now time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, slug FROM memories
		  WHERE payment_status = ? AND created_at < ?`,
		memory.PaymentStatusPending.Label(),
		toMillis(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("list stale memories: %w", err)
	}
	type candidate struct {
		id   string
		slug string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.slug); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list stale memories: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list stale memories: %w", err)
	}
	rows.Close()

	var slugs []string
	for _, c := range candidates {
		changed, err := s.UpdateStatus(ctx, c.id, memory.PaymentStatusPending, memory.PaymentStatusAbandoned, "", now)
		if err != nil {
			return slugs, err
		}
		if changed {
			slugs = append(slugs, c.slug)
		}
	}
	return slugs, nil
}

// CountPendingOlderThan counts Pending records created before the cutoff.
func (s *Store) CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM memories WHERE payment_status = ? AND created_at < ?`,
		memory.PaymentStatusPending.Label(),
		toMillis(cutoff),
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending memories: %w", err)
	}
	return count, nil
}

func encodePhotos(photos []memory.Photo) (string, error) {
	records := make([]photoRecord, 0, len(photos))
	for _, photo := range photos {
		records = append(records, photoRecord{Reference: photo.Reference, Caption: photo.Caption})
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodePhotos(value string) ([]memory.Photo, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var records []photoRecord
	if err := json.Unmarshal([]byte(value), &records); err != nil {
		return nil, err
	}
	photos := make([]memory.Photo, 0, len(records))
	for _, record := range records {
		photos = append(photos, memory.Photo{Reference: record.Reference, Caption: record.Caption})
	}
	return photos, nil
}

func isMemoryUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "memories.")
}

var _ storage.MemoryStore = (*Store)(nil)
