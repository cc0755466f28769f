package objecturl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/receiptify/pkg/observability"
)

// FileStore keeps objects as files in a directory. Server processes on one
// host can share object URLs through it without running Redis.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates a store in dir, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// fileEntry wraps an object with its expiry.
type fileEntry struct {
	Object
	ExpiresAt time.Time `json:"expires_at"`
}

// Create implements Store.
func (s *FileStore) Create(ctx context.Context, obj Object, ttl time.Duration) (string, error) {
	data, err := json.Marshal(fileEntry{Object: obj, ExpiresAt: s.now().Add(ttlOrDefault(ttl))})
	if err != nil {
		return "", err
	}

	id := NewID()
	path := s.path(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	// Write then rename so readers never see a partial entry.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}

	observability.ObjectURL().OnCreate(ctx, "file", len(obj.Data))
	return id, nil
}

// Resolve implements Store. Expired and unreadable entries are removed and
// reported as ErrNotFound.
func (s *FileStore) Resolve(ctx context.Context, id string) (*Object, error) {
	obj, err := s.read(id)
	observability.ObjectURL().OnResolve(ctx, "file", err == nil && obj != nil)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNotFound
	}
	return obj, nil
}

func (s *FileStore) read(id string) (*Object, error) {
	path := s.path(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var e fileEntry
	if err := json.Unmarshal(data, &e); err != nil {
		_ = os.Remove(path)
		return nil, nil
	}
	if s.now().After(e.ExpiresAt) {
		_ = os.Remove(path)
		return nil, nil
	}
	return &e.Object, nil
}

// Revoke implements Store.
func (s *FileStore) Revoke(ctx context.Context, id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	observability.ObjectURL().OnRevoke(ctx, "file")
	return nil
}

// Close does nothing; entries outlive the process until they expire.
func (s *FileStore) Close() error {
	return nil
}

// path maps an id to a file under a two-character shard directory.
func (s *FileStore) path(id string) string {
	sum := sha256.Sum256([]byte(id))
	hash := hex.EncodeToString(sum[:])
	return filepath.Join(s.dir, hash[:2], hash[2:]+".json")
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
