package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	rm "rehab_monitor"
	"rehab_monitor/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	defaultRedisPrefix = "rehab:"
	maxUpdateRetries   = 8
	resyncDelay        = time.Second

	opSet    = "set"
	opUpdate = "update"
	opDelete = "delete"
)

// RedisStore keeps each document as a JSON string under <prefix>doc:<path>,
// indexes collection members in the set <prefix>coll:<collection> and
// announces every write on the channel <prefix>changes:<path>. A bridge
// writing through the same convention is observed by subscribers.
type RedisStore struct {
	client      *redis.Client
	prefix      string
	resyncDelay time.Duration
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, resyncDelay: resyncDelay}
}

// Ensure implementation of DocumentStore at compile time.
var _ DocumentStore = (*RedisStore)(nil)

func (s *RedisStore) docKey(p rm.DocPath) string { return s.prefix + "doc:" + p.String() }
func (s *RedisStore) collKey(c string) string    { return s.prefix + "coll:" + c }
func (s *RedisStore) channel(p rm.DocPath) string {
	return s.prefix + "changes:" + p.String()
}
func (s *RedisStore) collectionPattern(c string) string {
	return s.prefix + "changes:" + c + "/*"
}

func (s *RedisStore) NewID() string { return uuid.NewString() }

func (s *RedisStore) Get(ctx context.Context, path rm.DocPath) (Document, error) {
	if err := checkPath(path); err != nil {
		return Document{}, err
	}
	raw, err := s.client.Get(ctx, s.docKey(path)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Document{Path: path}, nil
		}
		return Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	return Document{Path: path, Exists: true, Fields: fields}, nil
}

func (s *RedisStore) Set(ctx context.Context, path rm.DocPath, fields models.Fields) error {
	if err := checkPath(path); err != nil {
		return err
	}
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(path), raw, 0)
		pipe.SAdd(ctx, s.collKey(path.Collection), path.ID)
		pipe.Publish(ctx, s.channel(path), opSet)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Update is an optimistic read-modify-write guarded by WATCH; concurrent
// writers to the same document cause a retry, not a lost partial update.
func (s *RedisStore) Update(ctx context.Context, path rm.DocPath, field string, value any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	key := s.docKey(path)

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("update %s: %w", path, ErrNotFound)
		}
		if err != nil {
			return err
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return err
		}
		fields[field] = value
		enc, err := encodeFields(fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, enc, 0)
			pipe.Publish(ctx, s.channel(path), opUpdate)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("update %s: %w", path, err)
		}
		return err
	}
	return fmt.Errorf("update %s: gave up after %d conflicting writes", path, maxUpdateRetries)
}

func (s *RedisStore) Delete(ctx context.Context, path rm.DocPath) error {
	if err := checkPath(path); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(path))
		pipe.SRem(ctx, s.collKey(path.Collection), path.ID)
		pipe.Publish(ctx, s.channel(path), opDelete)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	ids, err := s.client.SMembers(ctx, s.collKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return []Document{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(rm.DocPath{Collection: collection, ID: id})
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// indexed id whose document is gone
			continue
		}
		fields, err := decodeFields([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", collection, ids[i], err)
		}
		docs = append(docs, Document{
			Path:   rm.DocPath{Collection: collection, ID: ids[i]},
			Exists: true,
			Fields: fields,
		})
	}
	return applyQuery(docs, q), nil
}

func (s *RedisStore) Subscribe(ctx context.Context, path rm.DocPath) (<-chan DocumentSnapshot, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	ps := s.client.Subscribe(ctx, s.channel(path))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	f := newFeed[DocumentSnapshot](ctx, func() { _ = ps.Close() })
	load := func() {
		doc, err := s.Get(ctx, path)
		if err != nil {
			doc = Document{Path: path}
		}
		f.push(DocumentSnapshot{Document: doc, Err: err})
	}

	load()
	go s.listen(ctx, ps, func(err error) {
		f.push(DocumentSnapshot{Document: Document{Path: path}, Err: err})
	}, load)
	return f.C(), nil
}

func (s *RedisStore) SubscribeCollection(ctx context.Context, collection string, q Query) (<-chan QuerySnapshot, error) {
	ps := s.client.PSubscribe(ctx, s.collectionPattern(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	f := newFeed[QuerySnapshot](ctx, func() { _ = ps.Close() })
	load := func() {
		docs, err := s.Query(ctx, collection, q)
		f.push(QuerySnapshot{Docs: docs, Err: err})
	}

	load()
	go s.listen(ctx, ps, func(err error) {
		f.push(QuerySnapshot{Err: err})
	}, load)
	return f.C(), nil
}

// listen reloads on every change message. A receive error is reported,
// then state is reloaded after resyncDelay since messages may have been
// missed while the connection was down.
func (s *RedisStore) listen(ctx context.Context, ps *redis.PubSub, onErr func(error), load func()) {
	for {
		_, err := ps.ReceiveMessage(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			onErr(err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.resyncDelay):
			}
		}
		load()
	}
}
