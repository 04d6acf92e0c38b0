package store

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"hq-entitlements/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// fileStore keeps the order collection in one JSON file on local disk.
type fileStore struct {
	path   string
	lock   *flock.Flock
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewFileStore creates a store backed by the JSON document at path.
// The file and its directory are created lazily on the first save.
func NewFileStore(path string, logger zerolog.Logger) Store {
	return &fileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.With().Str("store", BackendFile).Str("path", path).Logger(),
	}
}

func (s *fileStore) Backend() string {
	return BackendFile
}

// LoadAll reads the document. A missing file means no orders yet.
func (s *fileStore) LoadAll(ctx context.Context) ([]model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, fail(OpLoad, BackendFile, err, "load cancelled")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Msg("order document does not exist yet")
			return []model.Order{}, nil
		}
		return nil, fail(OpLoad, BackendFile, err, "read order document")
	}

	orders, err := decodeDocument(data)
	if err != nil {
		return nil, fail(OpLoad, BackendFile, err, "parse order document")
	}

	s.logger.Debug().Int("order_count", len(orders)).Msg("order document loaded")
	return orders, nil
}

// SaveAll rewrites the document through a temp file and rename. The
// in-process mutex serialises writers, the flock keeps a second process
// (the admin CLI) from interleaving its own rewrite.
func (s *fileStore) SaveAll(ctx context.Context, orders []model.Order) error {
	if err := ctx.Err(); err != nil {
		return fail(OpSave, BackendFile, err, "save cancelled")
	}

	data, err := encodeDocument(orders)
	if err != nil {
		return fail(OpSave, BackendFile, err, "marshal order document")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fail(OpSave, BackendFile, err, "create data directory")
	}

	if err := s.lock.Lock(); err != nil {
		return fail(OpSave, BackendFile, err, "acquire document lock")
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release document lock")
		}
	}()

	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fail(OpSave, BackendFile, err, "write order document")
	}

	s.logger.Debug().Int("order_count", len(orders)).Msg("order document saved")
	return nil
}

func (s *fileStore) Close() error {
	return s.lock.Close()
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}
