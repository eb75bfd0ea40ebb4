package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PostgresConfig configures the bun-backed store.
type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type threadRow struct {
	bun.BaseModel `bun:"table:coach_threads,alias:ct"`

	ThreadID  string    `bun:"thread_id,pk"`
	Payload   []byte    `bun:"payload,type:jsonb,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// PostgresStore persists ThreadRecords in Postgres through bun. One row per
// thread; the record itself is stored as a jsonb payload so the schema does
// not chase the message shape.
type PostgresStore struct {
	db      *bun.DB
	timeout time.Duration
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &PostgresStore{db: db, timeout: timeout}, nil
}

// Init creates the backing table when missing.
func (s *PostgresStore) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.NewCreateTable().Model((*threadRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create coach_threads table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, threadID string) (*ThreadRecord, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrInvalidThread
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := new(threadRow)
	err := s.db.NewSelect().Model(row).Where("thread_id = ?", threadID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}

	var rec ThreadRecord
	if err := json.Unmarshal(row.Payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal thread record: %w", err)
	}
	if strings.TrimSpace(rec.ThreadID) == "" {
		rec.ThreadID = threadID
	}
	return &rec, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *ThreadRecord) error {
	if rec == nil {
		return ErrNilRecord
	}
	if strings.TrimSpace(rec.ThreadID) == "" {
		return ErrInvalidThread
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal thread record: %w", err)
	}

	row := &threadRow{
		ThreadID:  rec.ThreadID,
		Payload:   payload,
		UpdatedAt: rec.UpdatedAt.UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (thread_id) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save thread %s: %w", rec.ThreadID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.NewDelete().Model((*threadRow)(nil)).Where("thread_id = ?", threadID).Exec(ctx); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
