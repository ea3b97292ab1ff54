package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrNoDocument is returned by a Backend when a region has never been saved.
var ErrNoDocument = errors.New("storage: no document")

// Backend persists whole region documents.
//
// Implementations must be safe for concurrent use and must replace a document
// as a unit (readers never observe a partial write).
type Backend interface {
	Load(ctx context.Context, region string) ([]byte, error)
	Save(ctx context.Context, region string, doc []byte) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file" (default): directory of JSON documents at Path
//   - "sqlite": SQLite database file at Path
//   - "redis": Redis server described by Redis
//   - "memory": non-durable, process-local
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Redis       RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key namespace; default "wolfie"
}

var regionNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidRegionName reports whether name is usable as a file name and key.
func ValidRegionName(name string) error {
	if !regionNameRe.MatchString(name) {
		return fmt.Errorf("invalid region name %q (use lowercase letters, digits, '_' or '-')", name)
	}
	return nil
}
