// Package config assembles and validates the CLI-facing configuration for a
// FUSTA mount, the same Default()/Validate() shape as avogabo-EDRmount's
// internal/config, collapsed to a single flat struct since FUSTA is a
// single-shot CLI tool reading its options from flags rather than a daemon
// reading a JSON config file off disk.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CacheKind selects the Backing Store variant (§4.2, §6 --cache).
type CacheKind string

const (
	CacheFile   CacheKind = "file"
	CacheMmap   CacheKind = "mmap"
	CacheMemory CacheKind = "memory"
)

type Config struct {
	Source         string
	Mountpoint     string
	Cache          CacheKind
	MaxCacheMB     int64
	Daemonize      bool
	NonEmpty       bool
	Sep            rune
	AllowOverwrite bool
	Verbosity      int
}

// Default returns the flag defaults from §6 before the positional source
// argument and any overrides are applied.
func Default() Config {
	return Config{
		Cache:      CacheMmap,
		MaxCacheMB: 500,
		Daemonize:  true,
		Sep:        ',',
	}
}

// WithDerivedMountpoint fills Mountpoint from Source ("fusta-<basename>")
// when the caller left it blank, mirroring the teacher's withDefaults()
// helpers that backfill one field from another after flags are parsed.
func (c Config) WithDerivedMountpoint() Config {
	if c.Mountpoint == "" && c.Source != "" {
		base := filepath.Base(c.Source)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		c.Mountpoint = "fusta-" + base
	}
	return c
}

func (c Config) Validate() error {
	if c.Source == "" {
		return errors.New("source fasta file required")
	}
	info, err := os.Stat(c.Source)
	if err != nil {
		return fmt.Errorf("source fasta file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return errors.New("source fasta file must be a regular file")
	}
	if c.Mountpoint == "" {
		return errors.New("mountpoint required")
	}
	switch c.Cache {
	case CacheFile, CacheMmap, CacheMemory:
	default:
		return fmt.Errorf("cache must be file|mmap|memory, got %q", c.Cache)
	}
	if c.MaxCacheMB <= 0 {
		return errors.New("max-cache must be > 0")
	}
	if c.Sep == 0 || c.Sep > 0x7e || c.Sep < 0x20 {
		return errors.New("sep must be a single printable ASCII character")
	}
	return nil
}
