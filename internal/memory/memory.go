// Package memory implements the memory.search(query, k) external
// collaborator: an optional long-term context store, queried once per run
// by Commander and occasionally written to by Critic for risk logging.
//
// This pre-fetch is advisory and may be skipped under degraded conditions
// — so the store here is allowed to be entirely absent (DSN unset), in
// which case Search always returns an
// empty result rather than an error.
package memory

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Store is the memory.search/memory.log contract. A Store backed by no
// database answers every call with an empty, non-erroring result.
type Store interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
	LogRisk(ctx context.Context, venueID, detail string) error
}

// contextEntry is a single long-term memory row.
type contextEntry struct {
	bun.BaseModel `bun:"table:memory_context,alias:mc"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Query     string    `bun:"query"`
	Content   string    `bun:"content"`
	VenueID   string    `bun:"venue_id"`
	CreatedAt time.Time `bun:"created_at,default:current_timestamp"`
}

// PostgresStore is a bun-backed Store. The connection is opened lazily on
// first use (sync.Once), via bun/pgdriver, rather than eagerly at process
// start.
type PostgresStore struct {
	addr, database, user, password string

	once sync.Once
	db   *bun.DB
}

// NewPostgresStore builds a PostgresStore against addr (host:port form
// consumed by pgdriver.WithAddr). addr may be empty; Search/LogRisk then
// degrade to no-ops instead of erroring.
func NewPostgresStore(addr, database, user, password string) *PostgresStore {
	return &PostgresStore{addr: addr, database: database, user: user, password: password}
}

func (s *PostgresStore) initDB() {
	if s.addr == "" {
		return
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(s.addr),
		pgdriver.WithInsecure(true),
		pgdriver.WithDatabase(s.database),
		pgdriver.WithUser(s.user),
		pgdriver.WithPassword(s.password),
		pgdriver.WithTimeout(5*time.Second),
		pgdriver.WithDialTimeout(5*time.Second),
		pgdriver.WithReadTimeout(5*time.Second),
		pgdriver.WithWriteTimeout(5*time.Second),
	))
	s.db = bun.NewDB(sqldb, pgdialect.New())
}

func (s *PostgresStore) db_() *bun.DB {
	s.once.Do(s.initDB)
	return s.db
}

// Search implements Store. It tolerates failure by returning an empty
// slice rather than an error, so a down memory store degrades to an
// empty context instead of failing the run.
func (s *PostgresStore) Search(ctx context.Context, query string, k int) ([]string, error) {
	db := s.db_()
	if db == nil {
		return nil, nil
	}

	var entries []contextEntry
	err := db.NewSelect().
		Model(&entries).
		Where("query = ?", query).
		OrderExpr("created_at DESC").
		Limit(k).
		Scan(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("memory search failed, returning empty context")
		return nil, nil
	}

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Content
	}
	return out, nil
}

// LogRisk records a risk flag against a venue for later retrieval; failures
// are logged and swallowed, matching the advisory nature of this store.
func (s *PostgresStore) LogRisk(ctx context.Context, venueID, detail string) error {
	db := s.db_()
	if db == nil {
		return nil
	}

	entry := &contextEntry{VenueID: venueID, Content: detail}
	if _, err := db.NewInsert().Model(entry).Exec(ctx); err != nil {
		log.Warn().Err(err).Str("venue_id", venueID).Msg("memory risk log failed")
	}
	return nil
}

// NoopStore is a Store that never persists or recalls anything, used when
// no memory DSN is configured at all.
type NoopStore struct{}

func (NoopStore) Search(ctx context.Context, query string, k int) ([]string, error) { return nil, nil }
func (NoopStore) LogRisk(ctx context.Context, venueID, detail string) error          { return nil }
