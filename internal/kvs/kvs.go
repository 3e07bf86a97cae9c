package kvs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key ...string) error
}

type KeyValueStore struct {
	c Store
}

func New(c Store) KeyValueStore {
	return KeyValueStore{
		c: c,
	}
}

func (kvs KeyValueStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	ser, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return kvs.c.Set(ctx, key, ser, ttl)
}

func (kvs KeyValueStore) Get(ctx context.Context, key string, result any) error {
	data, err := kvs.c.Get(ctx, key)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, result)
}

func (kvs KeyValueStore) Del(ctx context.Context, key ...string) error {
	return kvs.c.Del(ctx, key...)
}

type RedisStore struct {
	redis *redis.Client
}

func NewRedis(redis *redis.Client) RedisStore {
	return RedisStore{
		redis: redis,
	}
}

func (r RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if _, err := r.redis.Set(ctx, key, value, ttl).Result(); err != nil {
		return err
	}
	return nil
}

func (r RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(val), nil
}

func (r RedisStore) Del(ctx context.Context, keys ...string) error {
	if _, err := r.redis.Del(ctx, keys...).Result(); err != nil {
		return err
	}
	return nil
}

// FileStore keeps one JSON file per key under a directory. TTLs are ignored.
type FileStore struct {
	dir string
	m   sync.Mutex
}

func NewFile(dir string) *FileStore {
	return &FileStore{
		dir: dir,
	}
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, strings.NewReplacer("/", "_", ":", "_").Replace(key)+".json")
}

func (f *FileStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.m.Lock()
	defer f.m.Unlock()

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".kvs-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.path(key))
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.m.Lock()
	defer f.m.Unlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (f *FileStore) Del(ctx context.Context, keys ...string) error {
	f.m.Lock()
	defer f.m.Unlock()

	for _, key := range keys {
		if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
