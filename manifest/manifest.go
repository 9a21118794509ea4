// Package manifest handles sloth.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sloth.manifest")

// FileName is the manifest file looked up by Load and FindAndLoad.
const FileName = "sloth.toml"

// Defaults for keys a manifest leaves out.
const (
	DefaultEntry     = "main.sl"
	DefaultMaxStack  = 1 << 16
	DefaultMaxFrames = 1024
	DefaultCachePath = ".sloth/cache.db"
	DefaultAddr      = ":4290"
)

// Manifest represents a sloth.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project" json:"project"`
	VM      VMConfig    `toml:"vm" json:"vm"`
	Cache   CacheConfig `toml:"cache" json:"cache"`
	Server  Server      `toml:"server" json:"server"`
	Log     Log         `toml:"log" json:"log"`

	// Dir is the directory containing the sloth.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name" json:"name"`
	Entry string `toml:"entry" json:"entry"`
}

// VMConfig sets interpreter limits.
type VMConfig struct {
	MaxStack  int  `toml:"max-stack" json:"maxStack"`
	MaxFrames int  `toml:"max-frames" json:"maxFrames"`
	Trace     bool `toml:"trace" json:"trace"`
}

// CacheConfig configures the compiled image cache. Enabled is a pointer so
// an absent key can default to true.
type CacheConfig struct {
	Enabled *bool  `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// Server configures the evaluation service.
type Server struct {
	Addr string `toml:"addr" json:"addr"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" json:"verbosity"`
	File      string `toml:"file" json:"file"`
}

// Default returns the manifest used when no sloth.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses and validates the sloth.toml file in dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Warningf("%s: unknown key %s", path, key)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.applyDefaults()

	if err := Validate(&m); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	log.Debugf("loaded %s", path)
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Project.Entry == "" {
		m.Project.Entry = DefaultEntry
	}
	if m.VM.MaxStack == 0 {
		m.VM.MaxStack = DefaultMaxStack
	}
	if m.VM.MaxFrames == 0 {
		m.VM.MaxFrames = DefaultMaxFrames
	}
	if m.Cache.Enabled == nil {
		enabled := true
		m.Cache.Enabled = &enabled
	}
	if m.Cache.Path == "" {
		m.Cache.Path = DefaultCachePath
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
}

// FindAndLoad walks up from startDir to find a sloth.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the entry program.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// CachePath returns the absolute path of the cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// CacheEnabled reports whether compiled images should be cached.
func (m *Manifest) CacheEnabled() bool {
	return m.Cache.Enabled == nil || *m.Cache.Enabled
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
