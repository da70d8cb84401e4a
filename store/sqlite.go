package store

import (
	"context"
	"database/sql"
	"sync"

	"github.com/agentuity/go-entitycache/cache"
	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a BackingStore persisting entities in a SQLite table. Several
// stores can share one database file; each owns the rows of its partition.
type SQLiteStore[E cache.Entity] struct {
	db        *sql.DB
	ctx       context.Context
	partition string
	cfg       config
	once      sync.Once
}

var _ cache.BackingStore[cache.Entity] = (*SQLiteStore[cache.Entity])(nil)

// NewSQLite opens the database at dbPath and returns a store writing to the
// partition "<prefix>:<name>". If dbPath is empty or ":memory:", an in-memory
// database is used.
func NewSQLite[E cache.Entity](ctx context.Context, dbPath string, name string, opts ...Option) (*SQLiteStore[E], error) {
	if name == "" {
		return nil, errors.Mark(errors.New("store: empty store name"), cache.ErrInvalidArgument)
	}
	if dbPath == "" {
		dbPath = ":memory:"
	}
	cfg := applyOptions(opts)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "store: opening %s", dbPath)
	}
	if dbPath == ":memory:" {
		// every connection to :memory: gets its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore[E]{db: db, ctx: ctx, partition: name, cfg: cfg}
	if cfg.prefix != "" {
		s.partition = cfg.prefix + ":" + name
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore[E]) migrate() error {
	ctx, cancel := s.queryCtx()
	defer cancel()
	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS entities (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			kind TEXT NOT NULL,
			value BLOB NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "store: migrating sqlite schema")
		}
	}
	return nil
}

func (s *SQLiteStore[E]) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, s.cfg.queryTimeout)
}

// Partition returns the partition the store writes to.
func (s *SQLiteStore[E]) Partition() string {
	return s.partition
}

func (s *SQLiteStore[E]) Count() (int, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE namespace = ?`, s.partition).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "store: counting entities")
	}
	return n, nil
}

func (s *SQLiteStore[E]) Add(entity E) error {
	data, err := encode(entity)
	if err != nil {
		return err
	}
	id := entity.Identity()
	ctx, cancel := s.queryCtx()
	defer cancel()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (namespace, key, kind, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET kind = excluded.kind, value = excluded.value`,
		s.partition, Digest(id), id.Kind, data,
	)
	if err != nil {
		return errors.Wrapf(err, "store: inserting %s", id)
	}
	return nil
}

func (s *SQLiteStore[E]) Contains(id cache.Identity) (bool, error) {
	_, ok, err := s.Read(id)
	return ok, err
}

func (s *SQLiteStore[E]) Read(id cache.Identity) (E, bool, error) {
	var zero E
	ctx, cancel := s.queryCtx()
	defer cancel()
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM entities WHERE namespace = ? AND key = ?`, s.partition, Digest(id),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, errors.Wrapf(err, "store: reading %s", id)
	}
	return decodeMatching[E](data, id)
}

func (s *SQLiteStore[E]) ReadAll() (map[cache.Identity]E, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT value FROM entities WHERE namespace = ?`, s.partition)
	if err != nil {
		return nil, errors.Wrap(err, "store: reading entities")
	}
	defer rows.Close()
	out := make(map[cache.Identity]E)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, "store: scanning entity")
		}
		entity, err := decode[E](data)
		if err != nil {
			return nil, err
		}
		out[entity.Identity()] = entity
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "store: reading entities")
	}
	return out, nil
}

func (s *SQLiteStore[E]) ReadAllIdentities() ([]cache.Identity, error) {
	all, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	ids := make([]cache.Identity, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *SQLiteStore[E]) Remove(id cache.Identity) error {
	ctx, cancel := s.queryCtx()
	defer cancel()
	_, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE namespace = ? AND key = ?`, s.partition, Digest(id))
	if err != nil {
		return errors.Wrapf(err, "store: deleting %s", id)
	}
	return nil
}

// Close closes the database. Calling Close more than once is safe.
func (s *SQLiteStore[E]) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}
