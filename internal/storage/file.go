package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "wolfie/pkg/logx"
)

// fileStore keeps one JSON document per region:
//
//	<dir>/<region>.json
//
// Saves write <region>.json.tmp first and rename it over the target, so a
// crash mid-write leaves the previous document intact.
type fileStore struct {
	log logx.Logger
	dir string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Backend, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		dir = "./data"
	}
	return &fileStore{log: log, dir: filepath.Clean(dir)}, nil
}

func (s *fileStore) path(region string) string {
	return filepath.Join(s.dir, region+".json")
}

func (s *fileStore) Load(ctx context.Context, region string) ([]byte, error) {
	_ = ctx
	if err := ValidRegionName(region); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(region))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *fileStore) Save(ctx context.Context, region string, doc []byte) error {
	_ = ctx
	if err := ValidRegionName(region); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Region directory is created on first write.
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	target := s.path(region)
	tmp := target + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", tmp, err)
	}
	if _, err := f.Write(doc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", target, err)
	}
	s.log.Debug("region saved", logx.String("region", region), logx.Int("bytes", len(doc)))
	return nil
}

func (s *fileStore) Close() error { return nil }
