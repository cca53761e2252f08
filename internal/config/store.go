// Package config holds the persistent key/value store and the typed
// application configuration derived from it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Store is a set of named groups of opaque string key/value pairs. It is
// persisted as a TOML document with one table per group.
type Store struct {
	path   string
	groups map[string]map[string]string
}

// NewMemory returns a store that is never written to disk.
func NewMemory() *Store {
	return &Store{groups: make(map[string]map[string]string)}
}

// Open reads the store at path. A missing file yields an empty store that
// will be created on the first Save.
func Open(path string) (*Store, error) {
	s := &Store{path: path, groups: make(map[string]map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var raw map[string]map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	for group, kv := range raw {
		g := make(map[string]string, len(kv))
		for k, v := range kv {
			g[k] = fmt.Sprint(v)
		}
		s.groups[group] = g
	}
	return s, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/dirstat/dirstat.toml, falling back to
// ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() string {
	return filepath.Join(Dir(), "dirstat.toml")
}

// Dir returns the dirstat configuration directory.
func Dir() string {
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, "dirstat")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "dirstat")
	}
	return "."
}

// Path returns the file backing the store, or "" for memory stores.
func (s *Store) Path() string { return s.path }

// Save writes the store atomically. Memory stores ignore Save.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".dirstat-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := toml.NewEncoder(tmp).Encode(s.groups); err != nil {
		tmp.Close()
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Get returns the value of key in group, or def if unset.
func (s *Store) Get(group, key, def string) string {
	if v, ok := s.groups[group][key]; ok {
		return v
	}
	return def
}

// Has reports whether key is set in group.
func (s *Store) Has(group, key string) bool {
	_, ok := s.groups[group][key]
	return ok
}

// Set stores value under group/key.
func (s *Store) Set(group, key, value string) {
	g, ok := s.groups[group]
	if !ok {
		g = make(map[string]string)
		s.groups[group] = g
	}
	g[key] = value
}

// DeleteGroup removes a whole group.
func (s *Store) DeleteGroup(group string) {
	delete(s.groups, group)
}

// Groups returns the sorted names of all groups starting with prefix.
func (s *Store) Groups(prefix string) []string {
	var out []string
	for g := range s.groups {
		if strings.HasPrefix(g, prefix) {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Store) GetBool(group, key string, def bool) bool {
	b, err := strconv.ParseBool(s.Get(group, key, ""))
	if err != nil {
		return def
	}
	return b
}

func (s *Store) GetInt(group, key string, def int) int {
	i, err := strconv.Atoi(s.Get(group, key, ""))
	if err != nil {
		return def
	}
	return i
}

func (s *Store) GetInt64(group, key string, def int64) int64 {
	i, err := strconv.ParseInt(s.Get(group, key, ""), 10, 64)
	if err != nil {
		return def
	}
	return i
}

func (s *Store) GetFloat(group, key string, def float64) float64 {
	f, err := strconv.ParseFloat(s.Get(group, key, ""), 64)
	if err != nil {
		return def
	}
	return f
}

func (s *Store) GetDuration(group, key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s.Get(group, key, ""))
	if err != nil {
		return def
	}
	return d
}

// GetTime parses an RFC 3339 timestamp; unset or invalid values yield the zero time.
func (s *Store) GetTime(group, key string) time.Time {
	t, err := time.Parse(time.RFC3339, s.Get(group, key, ""))
	if err != nil {
		return time.Time{}
	}
	return t
}

// GetList splits a comma separated value; empty elements are dropped.
func (s *Store) GetList(group, key string) []string {
	v := s.Get(group, key, "")
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) SetBool(group, key string, v bool) { s.Set(group, key, strconv.FormatBool(v)) }
func (s *Store) SetInt(group, key string, v int)   { s.Set(group, key, strconv.Itoa(v)) }
func (s *Store) SetInt64(group, key string, v int64) {
	s.Set(group, key, strconv.FormatInt(v, 10))
}
func (s *Store) SetFloat(group, key string, v float64) {
	s.Set(group, key, strconv.FormatFloat(v, 'g', -1, 64))
}
func (s *Store) SetDuration(group, key string, v time.Duration) { s.Set(group, key, v.String()) }
func (s *Store) SetTime(group, key string, v time.Time) {
	if v.IsZero() {
		delete(s.groups[group], key)
		return
	}
	s.Set(group, key, v.UTC().Format(time.RFC3339))
}
func (s *Store) SetList(group, key string, v []string) { s.Set(group, key, strings.Join(v, ",")) }
