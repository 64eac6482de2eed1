// Package artifacts stores exported reports, scorecards, evidence packs and
// log snapshots by content hash, grouped by kind.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is content-addressed storage for export artifacts. Put is
// idempotent: storing the same bytes twice yields the same Ref.
type Store interface {
	Put(ctx context.Context, kind Kind, ext string, data []byte) (Ref, error)
	Get(ctx context.Context, ref Ref) ([]byte, error)
	Exists(ctx context.Context, ref Ref) (bool, error)
	Delete(ctx context.Context, ref Ref) error
}

// FileStore is a filesystem-backed Store rooted at baseDir.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates the base directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // G301: artifact directory is shared with readers
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// BaseDir is the root directory of the store.
func (s *FileStore) BaseDir() string { return s.baseDir }

func (s *FileStore) path(ref Ref) string {
	return filepath.Join(s.baseDir, string(ref.Kind), ref.Hash+"."+ref.Ext)
}

func (s *FileStore) Put(ctx context.Context, kind Kind, ext string, data []byte) (Ref, error) {
	ref, err := NewRef(kind, ext, data)
	if err != nil {
		return Ref{}, err
	}
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(ref)
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	//nolint:gosec // G301: see NewFileStore
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Ref{}, fmt.Errorf("failed to ensure kind dir: %w", err)
	}

	// Write to temp, then rename
	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return Ref{}, fmt.Errorf("failed to write artifact: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return Ref{}, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Ref{}, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return Ref{}, fmt.Errorf("failed to commit artifact: %w", err)
	}
	return ref, nil
}

func (s *FileStore) Get(ctx context.Context, ref Ref) ([]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("read artifact %s: %w", ref, err)
	}
	return data, nil
}

func (s *FileStore) Exists(ctx context.Context, ref Ref) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.path(ref))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat artifact %s: %w", ref, err)
}

func (s *FileStore) Delete(ctx context.Context, ref Ref) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(ref))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}
