// internal/docstore/postgres.go
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// changesChannel is the LISTEN/NOTIFY channel carrying changed collection paths.
const changesChannel = "reels_docstore_changes"

// postgres stores documents as JSONB rows and runs SERIALIZABLE transactions.
type postgres struct {
	db  *pgxpool.Pool // Connection pool to PostgreSQL database
	hub *hub

	listenOnce sync.Once
	listenErr  error
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewPostgres creates a new PostgreSQL storage implementation.
// It establishes a connection pool to the database and initializes the schema.
func NewPostgres(ctx context.Context, dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(connectCtx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool, hub: newHub()}, nil
}

// initSchema creates the documents table if it doesn't already exist.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
		    path TEXT PRIMARY KEY,                   -- Full document path
		    collection TEXT NOT NULL,                -- Parent collection path
		    doc_id TEXT NOT NULL,                    -- Last path segment
		    fields JSONB NOT NULL,                   -- Document content
		    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, doc_id);
	`
	_, err := db.Exec(ctx, schema)
	return err
}

// isRetryable reports serialization failures and deadlocks, which call for a retry.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func (p *postgres) Get(ctx context.Context, docPath string) (DocumentSnapshot, error) {
	if err := validatePath(docPath); err != nil {
		return nil, err
	}
	return getDocument(ctx, p.db, docPath)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getDocument(ctx context.Context, q querier, docPath string) (DocumentSnapshot, error) {
	var raw []byte
	err := q.QueryRow(ctx, `SELECT fields FROM documents WHERE path = $1`, docPath).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MissingSnapshot(docPath), nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(docPath, fields), nil
}

func (p *postgres) Set(ctx context.Context, docPath string, fields Fields, opts SetOptions) error {
	var buf writeBuffer
	buf.set(docPath, fields, opts)
	if buf.err != nil {
		return buf.err
	}
	return p.runAttempts(ctx, func(ctx context.Context, tx pgx.Tx) (*writeBuffer, error) {
		return &buf, nil
	})
}

func (p *postgres) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := NewID()
	if err := p.Set(ctx, Join(collection, id), fields, SetOptions{}); err != nil {
		return "", err
	}
	return id, nil
}

type pgTx struct {
	tx  pgx.Tx
	buf writeBuffer
}

func (t *pgTx) Get(ctx context.Context, docPath string) (DocumentSnapshot, error) {
	if err := validatePath(docPath); err != nil {
		return nil, err
	}
	return getDocument(ctx, t.tx, docPath)
}

func (t *pgTx) Set(docPath string, fields Fields, opts SetOptions) {
	t.buf.set(docPath, fields, opts)
}

func (t *pgTx) NewDocPath(collection string) string {
	return Join(collection, NewID())
}

// errBody wraps an error returned by the caller's transaction body so it is never retried.
type errBody struct{ err error }

func (e errBody) Error() string { return e.err.Error() }

func (p *postgres) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return p.runAttempts(ctx, func(ctx context.Context, tx pgx.Tx) (*writeBuffer, error) {
		t := &pgTx{tx: tx}
		if err := fn(ctx, t); err != nil {
			return nil, errBody{err}
		}
		if t.buf.err != nil {
			return nil, errBody{t.buf.err}
		}
		return &t.buf, nil
	})
}

// runAttempts runs body inside a SERIALIZABLE transaction, applies the writes it
// returns and retries on serialization failures.
func (p *postgres) runAttempts(ctx context.Context, body func(ctx context.Context, tx pgx.Tx) (*writeBuffer, error)) error {
	return retryConflicts(ctx, func() (bool, error) {
		var changed []string
		err := pgx.BeginTxFunc(ctx, p.db, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			buf, err := body(ctx, tx)
			if err != nil {
				return err
			}
			if err := applyWrites(ctx, tx, buf.writes); err != nil {
				return err
			}
			changed = buf.collections()
			for _, c := range changed {
				if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, changesChannel, c); err != nil {
					return fmt.Errorf("failed to notify change: %w", err)
				}
			}
			return nil
		})
		var bodyErr errBody
		if errors.As(err, &bodyErr) {
			return false, bodyErr.err
		}
		if isRetryable(err) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("transaction failed: %w", err)
		}
		return false, nil
	})
}

func applyWrites(ctx context.Context, tx pgx.Tx, writes []pendingWrite) error {
	const replace = `INSERT INTO documents (path, collection, doc_id, fields, updated_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (path) DO UPDATE SET fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at`
	const merge = `INSERT INTO documents (path, collection, doc_id, fields, updated_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (path) DO UPDATE SET fields = documents.fields || EXCLUDED.fields, updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for _, w := range writes {
		raw, err := encodeFields(w.fields.resolve(now))
		if err != nil {
			return err
		}
		query := replace
		if w.merge {
			query = merge
		}
		if _, err := tx.Exec(ctx, query, w.path, w.collection, w.id, raw, now); err != nil {
			return fmt.Errorf("failed to write document %s: %w", w.path, err)
		}
	}
	return nil
}

func (p *postgres) load(ctx context.Context, collection string) ([]DocumentSnapshot, error) {
	rows, err := p.db.Query(ctx, `SELECT path, fields FROM documents WHERE collection = $1 ORDER BY doc_id`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentSnapshot
	for rows.Next() {
		var docPath string
		var raw []byte
		if err := rows.Scan(&docPath, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, NewSnapshot(docPath, fields))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

func (p *postgres) Subscribe(ctx context.Context, collection string, onSnapshot func([]DocumentSnapshot), onError func(error)) (Unsubscribe, error) {
	if err := validatePath(collection); err != nil {
		return nil, err
	}
	if err := p.startListener(); err != nil {
		return nil, err
	}
	s := p.hub.add(collection, onSnapshot, onError)
	s.deliver(ctx, p.load)
	return p.hub.unsubscribe(s), nil
}

// startListener dedicates one pooled connection to LISTEN for changes.
func (p *postgres) startListener() error {
	p.listenOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		conn, err := p.db.Acquire(ctx)
		if err != nil {
			cancel()
			p.listenErr = fmt.Errorf("failed to acquire listener connection: %w", err)
			return
		}
		if _, err := conn.Exec(ctx, "LISTEN "+changesChannel); err != nil {
			conn.Release()
			cancel()
			p.listenErr = fmt.Errorf("failed to listen for changes: %w", err)
			return
		}
		p.cancel = cancel
		p.wg.Add(1)
		go p.listen(ctx, conn)
	})
	return p.listenErr
}

func (p *postgres) listen(ctx context.Context, conn *pgxpool.Conn) {
	defer p.wg.Done()
	defer conn.Release()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("docstore listener stopped", "backend", "postgres", "error", err)
			p.hub.fail(fmt.Errorf("change listener stopped: %w", err))
			return
		}
		loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		p.hub.notify(loadCtx, p.load, n.Payload)
		cancel()
	}
}

// Close stops the listener and closes the database connection pool.
func (p *postgres) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.db.Close()
	return nil
}
