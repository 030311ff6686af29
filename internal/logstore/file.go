package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kotobachat/kotoba/internal/chat"
	"github.com/kotobachat/kotoba/internal/filex"
)

// FileStore keeps the log in a single JSON file. Every save writes a temp
// file in the same directory, syncs it, and renames it over the old one, so
// a crash mid-write leaves the previous log intact.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load(ctx context.Context) ([]chat.Message, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("read log file: %w", err)
	}

	var log []chat.Message
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("decode log file: %w", err)
	}
	return log, nil
}

func (s *FileStore) Save(ctx context.Context, log []chat.Message) error {
	if log == nil {
		log = []chat.Message{}
	}
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".log-*")
	if err != nil {
		return fmt.Errorf("create temp log: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp log: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace log file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
