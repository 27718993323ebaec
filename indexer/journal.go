package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"poolquest/core/events"
	"poolquest/core/types"
	"poolquest/observability"
)

const defaultFilePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// DefaultHistoryLimit bounds History when callers pass a non-positive limit.
const DefaultHistoryLimit = 100

// ErrPathRequired is returned when the journal path is missing.
var ErrPathRequired = errors.New("indexer: journal path must be configured")

// Journal is an append-only sqlite log of committed reward events.
type Journal struct {
	db  *gorm.DB
	now func() time.Time
}

// Entry is a journaled event.
type Entry struct {
	ID         int64
	Type       string
	Address    string
	Attributes map[string]string
	RecordedAt time.Time
}

// record is the persisted row behind Entry.
type record struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Type       string    `gorm:"size:64;not null;index"`
	Address    string    `gorm:"size:42;not null;index:idx_events_address"`
	Attributes string    `gorm:"type:text;not null"`
	RecordedAt time.Time `gorm:"not null"`
}

func (record) TableName() string { return "events" }

// FileDSN converts a filesystem path into an on-disk SQLite DSN.
func FileDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrPathRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve journal path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultFilePragmas), nil
}

// OpenFile opens the journal stored at path.
func OpenFile(path string) (*Journal, error) {
	dsn, err := FileDSN(path)
	if err != nil {
		return nil, err
	}
	return Open(dsn)
}

// Open initialises the journal using a sqlite-compatible DSN.
func Open(dsn string) (*Journal, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrPathRequired
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close releases database resources.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Record appends evt to the journal.
func (j *Journal) Record(ctx context.Context, evt *types.Event) error {
	if j == nil {
		return fmt.Errorf("journal not configured")
	}
	if evt == nil || strings.TrimSpace(evt.Type) == "" {
		return fmt.Errorf("event missing type")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	row := record{
		Type:       evt.Type,
		Address:    normalizeAddress(attrs["address"]),
		Attributes: string(encoded),
		RecordedAt: j.now().UTC(),
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// History returns the most recent events concerning addr, newest first.
func (j *Journal) History(ctx context.Context, addr common.Address, limit int) ([]Entry, error) {
	if j == nil {
		return nil, fmt.Errorf("journal not configured")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var rows []record
	err := j.db.WithContext(ctx).
		Where("address = ?", normalizeAddress(addr.Hex())).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry := Entry{
			ID:         row.ID,
			Type:       row.Type,
			Address:    row.Address,
			RecordedAt: row.RecordedAt,
		}
		if err := json.Unmarshal([]byte(row.Attributes), &entry.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// CountByType returns the number of journaled events of eventType.
func (j *Journal) CountByType(ctx context.Context, eventType string) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("journal not configured")
	}
	var count int64
	if err := j.db.WithContext(ctx).Model(&record{}).Where("type = ?", eventType).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// Emitter adapts the journal to the event emitter interface. Write failures
// are logged and counted but never surface to the publisher, since the
// events it receives describe state that is already committed.
func (j *Journal) Emitter(logger *slog.Logger) events.Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &journalEmitter{journal: j, logger: logger.With(slog.String("component", "indexer"))}
}

type journalEmitter struct {
	journal *Journal
	logger  *slog.Logger
}

func (e *journalEmitter) Emit(evt events.Event) {
	payload := events.ToPayload(evt)
	if payload == nil {
		return
	}
	err := e.journal.Record(context.Background(), payload)
	observability.Events().RecordIndexed(err == nil)
	if err != nil {
		e.logger.Error("journal write failed", slog.String("type", payload.Type), slog.Any("error", err))
	}
}

func normalizeAddress(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
