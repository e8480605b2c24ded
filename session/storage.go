package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	consul "github.com/hashicorp/consul/api"
)

// Storage is a small key/value capability the session persists its token
// through.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrKeyNotFound = errors.New("key not found")

// MemoryStorage keeps values for the lifetime of the process.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStorage) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// FileStorage keeps one file per key under dir, readable by the owner only.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", errors.New("invalid key " + key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *FileStorage) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	v, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrKeyNotFound
	}
	return v, err
}

func (s *FileStorage) Put(_ context.Context, key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *FileStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ConsulStorage keeps values in the consul KV store under prefix, so that
// several machines of the same user share one session.
type ConsulStorage struct {
	kv     *consul.KV
	prefix string
}

func NewConsulStorage(c *consul.Client, prefix string) *ConsulStorage {
	return &ConsulStorage{kv: c.KV(), prefix: strings.TrimSuffix(prefix, "/")}
}

func (s *ConsulStorage) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *ConsulStorage) Get(ctx context.Context, key string) ([]byte, error) {
	kv, _, err := s.kv.Get(s.key(key), (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, err
	}

	if kv == nil {
		return nil, ErrKeyNotFound
	}

	return kv.Value, nil
}

func (s *ConsulStorage) Put(ctx context.Context, key string, value []byte) error {
	p := &consul.KVPair{Key: s.key(key), Value: value}
	_, err := s.kv.Put(p, (&consul.WriteOptions{}).WithContext(ctx))

	return err
}

func (s *ConsulStorage) Delete(ctx context.Context, key string) error {
	_, err := s.kv.Delete(s.key(key), (&consul.WriteOptions{}).WithContext(ctx))

	return err
}
