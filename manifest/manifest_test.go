package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "test-app"
entry = "app.sl"

[vm]
max-stack = 4096
max-frames = 128
trace = true

[cache]
enabled = false
path = "build/cache.db"

[server]
addr = "127.0.0.1:9000"

[log]
verbosity = 2
file = "sloth.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Entry != "app.sl" {
		t.Errorf("entry = %q, want app.sl", m.Project.Entry)
	}
	if m.VM.MaxStack != 4096 || m.VM.MaxFrames != 128 || !m.VM.Trace {
		t.Errorf("vm = %+v", m.VM)
	}
	if m.CacheEnabled() {
		t.Error("cache enabled = true, want false")
	}
	if m.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("server addr = %q", m.Server.Addr)
	}
	if m.Log.Verbosity != 2 || m.Log.File != "sloth.log" {
		t.Errorf("log = %+v", m.Log)
	}
	if want := filepath.Join(m.Dir, "build", "cache.db"); m.CachePath() != want {
		t.Errorf("cache path = %q, want %q", m.CachePath(), want)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Entry != DefaultEntry {
		t.Errorf("entry = %q, want %q", m.Project.Entry, DefaultEntry)
	}
	if m.VM.MaxStack != DefaultMaxStack || m.VM.MaxFrames != DefaultMaxFrames {
		t.Errorf("vm limits = %d/%d", m.VM.MaxStack, m.VM.MaxFrames)
	}
	if !m.CacheEnabled() {
		t.Error("cache should default to enabled")
	}
	if m.Server.Addr != DefaultAddr {
		t.Errorf("addr = %q, want %q", m.Server.Addr, DefaultAddr)
	}
	if m.EntryPath() != filepath.Join(m.Dir, DefaultEntry) {
		t.Errorf("entry path = %q", m.EntryPath())
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[project\nname = 1", "parse error"},
		{"entry suffix", "[project]\nentry = \"main.py\"", "entry"},
		{"negative stack", "[vm]\nmax-stack = -1", "maxStack"},
		{"frames over stack", "[vm]\nmax-stack = 10\nmax-frames = 20", "maxFrames"},
		{"verbosity", "[log]\nverbosity = 9", "verbosity"},
		{"wrong type", "[vm]\ntrace = \"yes\"", "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateDefault(t *testing.T) {
	if err := Validate(Default("/app")); err != nil {
		t.Errorf("default manifest is invalid: %v", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[project]\nname = \"found-project\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no sloth.toml exists")
	}
}

func TestAbsolutePathsKept(t *testing.T) {
	m := Default("/app")
	m.Cache.Path = "/var/cache/sloth.db"
	if m.CachePath() != "/var/cache/sloth.db" {
		t.Errorf("cache path = %q", m.CachePath())
	}
	if m.EntryPath() != "/app/main.sl" {
		t.Errorf("entry path = %q", m.EntryPath())
	}
}
