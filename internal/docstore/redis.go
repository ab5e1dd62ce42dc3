// internal/docstore/redis.go
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore keeps each document as a JSON string and each collection as a SET
// of ids. Transactions use WATCH/MULTI/EXEC; changes are announced over PUBLISH.
type redisStore struct {
	rdb    *redis.Client
	prefix string
	hub    *hub

	listenOnce sync.Once
	listenErr  error
	pubsub     *redis.PubSub
	wg         sync.WaitGroup
}

// NewRedis wraps an existing client. Keys are namespaced under prefix.
func NewRedis(rdb *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = "reels"
	}
	return &redisStore{rdb: rdb, prefix: prefix, hub: newHub()}
}

// DialRedis connects to a Redis server and verifies it responds.
func DialRedis(ctx context.Context, addr, password string, db int) (Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedis(rdb, ""), nil
}

func (r *redisStore) docKey(docPath string) string { return r.prefix + ":doc:" + docPath }
func (r *redisStore) colKey(collection string) string { return r.prefix + ":col:" + collection }
func (r *redisStore) channel() string { return r.prefix + ":changes" }

func (r *redisStore) Get(ctx context.Context, docPath string) (DocumentSnapshot, error) {
	if err := validatePath(docPath); err != nil {
		return nil, err
	}
	return r.read(ctx, r.rdb, docPath)
}

// reader is satisfied by both *redis.Client and *redis.Tx.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *redisStore) read(ctx context.Context, c reader, docPath string) (DocumentSnapshot, error) {
	raw, err := c.Get(ctx, r.docKey(docPath)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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

func (r *redisStore) Set(ctx context.Context, docPath string, fields Fields, opts SetOptions) error {
	var buf writeBuffer
	buf.set(docPath, fields, opts)
	if buf.err != nil {
		return buf.err
	}
	return r.runAttempts(ctx, func(ctx context.Context, tx *redis.Tx) (*writeBuffer, error) {
		return &buf, nil
	})
}

func (r *redisStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := NewID()
	if err := r.Set(ctx, Join(collection, id), fields, SetOptions{}); err != nil {
		return "", err
	}
	return id, nil
}

type redisTx struct {
	r   *redisStore
	tx  *redis.Tx
	buf writeBuffer
}

// Get watches the document before reading it so EXEC fails if it changes.
func (t *redisTx) Get(ctx context.Context, docPath string) (DocumentSnapshot, error) {
	if err := validatePath(docPath); err != nil {
		return nil, err
	}
	if err := t.tx.Watch(ctx, t.r.docKey(docPath)).Err(); err != nil {
		return nil, fmt.Errorf("failed to watch document: %w", err)
	}
	return t.r.read(ctx, t.tx, docPath)
}

func (t *redisTx) Set(docPath string, fields Fields, opts SetOptions) {
	t.buf.set(docPath, fields, opts)
}

func (t *redisTx) NewDocPath(collection string) string {
	return Join(collection, NewID())
}

func (r *redisStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return r.runAttempts(ctx, func(ctx context.Context, tx *redis.Tx) (*writeBuffer, error) {
		t := &redisTx{r: r, tx: tx}
		if err := fn(ctx, t); err != nil {
			return nil, errBody{err}
		}
		if t.buf.err != nil {
			return nil, errBody{t.buf.err}
		}
		return &t.buf, nil
	})
}

func (r *redisStore) runAttempts(ctx context.Context, body func(ctx context.Context, tx *redis.Tx) (*writeBuffer, error)) error {
	return retryConflicts(ctx, func() (bool, error) {
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			buf, err := body(ctx, tx)
			if err != nil {
				return err
			}
			return r.exec(ctx, tx, buf)
		})
		var bodyErr errBody
		if errors.As(err, &bodyErr) {
			return false, bodyErr.err
		}
		if errors.Is(err, redis.TxFailedErr) {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("transaction failed: %w", err)
		}
		return false, nil
	})
}

// exec resolves merges against watched current values and commits with MULTI/EXEC.
func (r *redisStore) exec(ctx context.Context, tx *redis.Tx, buf *writeBuffer) error {
	if len(buf.writes) == 0 {
		return nil
	}
	now := time.Now().UTC()
	stored := make(map[string]Fields, len(buf.writes))
	encoded := make([][]byte, len(buf.writes))
	for i, w := range buf.writes {
		existing, seen := stored[w.path]
		if w.merge && !seen {
			if err := tx.Watch(ctx, r.docKey(w.path)).Err(); err != nil {
				return fmt.Errorf("failed to watch document: %w", err)
			}
			snap, err := r.read(ctx, tx, w.path)
			if err != nil {
				return err
			}
			existing = snap.Data()
		}
		fields := w.apply(existing, now)
		stored[w.path] = fields
		raw, err := encodeFields(fields)
		if err != nil {
			return err
		}
		encoded[i] = raw
	}

	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, w := range buf.writes {
			pipe.Set(ctx, r.docKey(w.path), encoded[i], 0)
			pipe.SAdd(ctx, r.colKey(w.collection), w.id)
		}
		for _, c := range buf.collections() {
			pipe.Publish(ctx, r.channel(), c)
		}
		return nil
	})
	return err
}

func (r *redisStore) load(ctx context.Context, collection string) ([]DocumentSnapshot, error) {
	ids, err := r.rdb.SMembers(ctx, r.colKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list collection: %w", err)
	}
	if len(ids) == 0 {
		return []DocumentSnapshot{}, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(Join(collection, id))
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}

	docs := make([]DocumentSnapshot, 0, len(ids))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		fields, err := decodeFields([]byte(s))
		if err != nil {
			return nil, err
		}
		docs = append(docs, NewSnapshot(Join(collection, ids[i]), fields))
	}
	return docs, nil
}

func (r *redisStore) Subscribe(ctx context.Context, collection string, onSnapshot func([]DocumentSnapshot), onError func(error)) (Unsubscribe, error) {
	if err := validatePath(collection); err != nil {
		return nil, err
	}
	if err := r.startListener(ctx); err != nil {
		return nil, err
	}
	s := r.hub.add(collection, onSnapshot, onError)
	s.deliver(ctx, r.load)
	return r.hub.unsubscribe(s), nil
}

func (r *redisStore) startListener(ctx context.Context) error {
	r.listenOnce.Do(func() {
		ps := r.rdb.Subscribe(ctx, r.channel())
		// Wait for the subscription confirmation so no change is missed.
		if _, err := ps.Receive(ctx); err != nil {
			ps.Close()
			r.listenErr = fmt.Errorf("failed to subscribe to changes: %w", err)
			return
		}
		r.pubsub = ps
		r.wg.Add(1)
		go r.listen(ps.Channel())
	})
	return r.listenErr
}

func (r *redisStore) listen(ch <-chan *redis.Message) {
	defer r.wg.Done()
	for msg := range ch {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		r.hub.notify(ctx, r.load, msg.Payload)
		cancel()
	}
	slog.Debug("docstore listener stopped", "backend", "redis")
}

func (r *redisStore) Close() error {
	if r.pubsub != nil {
		r.pubsub.Close()
	}
	r.wg.Wait()
	return r.rdb.Close()
}
