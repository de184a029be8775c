package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Store caches raw provider responses by key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key, response string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Stats describes a store's contents.
type Stats struct {
	Backend    string `json:"backend"`
	Location   string `json:"location"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"totalBytes"`
	Expired    int    `json:"expired"`
}

// Entry is one cached response on disk.
type Entry struct {
	Key       string    `json:"key"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"createdAt"`
	TTL       int       `json:"ttl"`
}

// File is a Store backed by one JSON file per entry.
type File struct {
	dir        string
	ttlSeconds int
	enabled    bool
	now        func() time.Time
}

// NewFile creates a file store. If dir is empty, the default cache
// directory is used. A disabled store misses on every read.
func NewFile(enabled bool, dir string, ttlSeconds int) (*File, error) {
	if !enabled {
		return &File{enabled: false, now: time.Now}, nil
	}
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &File{
		dir:        dir,
		ttlSeconds: ttlSeconds,
		enabled:    true,
		now:        time.Now,
	}, nil
}

// Get retrieves a cached response by key. Returns ("", false) on miss.
func (c *File) Get(_ context.Context, key string) (string, bool) {
	if !c.enabled {
		return "", false
	}
	path := c.entryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}
	if c.expired(entry) {
		os.Remove(path)
		return "", false
	}
	return entry.Response, true
}

// Put stores a response.
func (c *File) Put(_ context.Context, key, response string) error {
	if !c.enabled {
		return nil
	}
	entry := Entry{
		Key:       HashKey(key),
		Response:  response,
		CreatedAt: c.now(),
		TTL:       c.ttlSeconds,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	return os.WriteFile(c.entryPath(key), data, 0o600)
}

// Clear removes all entries.
func (c *File) Clear(_ context.Context) error {
	if !c.enabled || c.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache directory: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

// Stats counts entries and expired entries on disk.
func (c *File) Stats(_ context.Context) (Stats, error) {
	stats := Stats{Backend: "file", Location: c.dir}
	if !c.enabled || c.dir == "" {
		return stats, nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("reading cache directory: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.TotalBytes += info.Size()

		data, err := os.ReadFile(filepath.Join(c.dir, e.Name()))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if c.expired(entry) {
			stats.Expired++
		}
	}
	return stats, nil
}

// Dir returns the cache directory path.
func (c *File) Dir() string {
	return c.dir
}

// Enabled returns whether caching is enabled.
func (c *File) Enabled() bool {
	return c.enabled
}

func (c *File) expired(e Entry) bool {
	return c.ttlSeconds > 0 && c.now().Sub(e.CreatedAt) > time.Duration(c.ttlSeconds)*time.Second
}

func (c *File) entryPath(key string) string {
	return filepath.Join(c.dir, HashKey(key)+".json")
}

// Nop is a Store that never hits.
type Nop struct{}

func (Nop) Get(context.Context, string) (string, bool) { return "", false }
func (Nop) Put(context.Context, string, string) error { return nil }
func (Nop) Clear(context.Context) error { return nil }
func (Nop) Stats(context.Context) (Stats, error) { return Stats{Backend: "none"}, nil }

// HashKey creates a SHA-256 hash of the given key material.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h)
}

// KeyParts is everything that changes a provider's answer.
type KeyParts struct {
	Identity    string
	Persona     string
	Temperature float64
	MaxTokens   int
	System      string
	User        string
}

// BuildKey hashes the request inputs into a cache key. The credential is
// represented only by its fingerprint inside Identity.
func BuildKey(p KeyParts) string {
	return HashKey(strings.Join([]string{
		p.Identity,
		p.Persona,
		strconv.FormatFloat(p.Temperature, 'f', -1, 64),
		strconv.Itoa(p.MaxTokens),
		p.System,
		p.User,
	}, "\x00"))
}

// DefaultDir returns the OS-appropriate cache directory.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "promptcoach"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "promptcoach"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "promptcoach", "cache"), nil
		}
		return filepath.Join(home, "AppData", "Local", "promptcoach", "cache"), nil
	default:
		return filepath.Join(home, ".cache", "promptcoach"), nil
	}
}
