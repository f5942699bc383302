package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSettingsApplyDefaults(t *testing.T) {
	var s Settings
	s.ApplyDefaults()
	if s.Stream.Capacity != 100 {
		t.Errorf("expected capacity 100, got %d", s.Stream.Capacity)
	}
	if s.Stream.PipeBuffer != 64*1024 {
		t.Errorf("expected pipe buffer 65536, got %d", s.Stream.PipeBuffer)
	}
	if len(s.Registry.Namespaces) != len(DefaultNamespaces) || s.Registry.Namespaces[0] != "fintan.core" {
		t.Errorf("unexpected namespaces %v", s.Registry.Namespaces)
	}
	if s.Logging.Output != "stderr" {
		t.Errorf("expected logs on stderr, got %q", s.Logging.Output)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		errMsg string
	}{
		{"bad level", func(s *Settings) { s.Logging.Level = "loud" }, "logging.level"},
		{"tiny pipe", func(s *Settings) { s.Stream.PipeBuffer = 4 }, "stream.pipe_buffer"},
		{"sample rate", func(s *Settings) { s.Tracing.SampleRate = 2 }, "tracing.sample_rate"},
		{"port", func(s *Settings) { s.Server.Port = 70000 }, "server.port"},
		{"namespace", func(s *Settings) { s.Registry.Namespaces = []string{"fintan..rdf"} }, "registry.namespaces[0]"},
		{"s3 keys", func(s *Settings) { s.S3.AccessKey = "k" }, "s3.secret_key"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var s Settings
			s.ApplyDefaults()
			tc.mutate(&s)
			err := s.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "fintan.yml")

	yamlContent := `
stream:
  capacity: 12
fetch:
  attempts: 5
  timeout: 2s
registry:
  namespaces: [my.ns, fintan.core]
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	s, err := LoadSettings(WithConfigFile(configPath), WithFileSystem(&RealFileSystem{}))
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.Stream.Capacity != 12 {
		t.Errorf("expected capacity 12, got %d", s.Stream.Capacity)
	}
	if s.Fetch.Attempts != 5 || s.Fetch.Timeout != 2*time.Second {
		t.Errorf("unexpected fetch settings %+v", s.Fetch)
	}
	if len(s.Registry.Namespaces) != 2 || s.Registry.Namespaces[0] != "my.ns" {
		t.Errorf("unexpected namespaces %v", s.Registry.Namespaces)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("FINTAN_STREAM_CAPACITY", "7")
	t.Setenv("FINTAN_LOGGING_LEVEL", "debug")

	s, err := LoadSettings(WithFileSystem(&mockFS{}))
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.Stream.Capacity != 7 {
		t.Errorf("expected capacity 7 from env, got %d", s.Stream.Capacity)
	}
	if s.Logging.Level != "debug" {
		t.Errorf("expected debug level from env, got %q", s.Logging.Level)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var s Settings
	// With no settings file found, LoadConfig should still succeed
	err := LoadConfig(&s, WithConfigFile("/nonexistent/path.yml"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./config/fintan.yml": true,
		"./.env":              true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles(LoaderConfig{})
	if files.ConfigFile != "./config/fintan.yml" {
		t.Errorf("expected settings file at ./config/fintan.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected env file ./.env, got %q", files.EnvFile)
	}

	explicit := resolver.ResolveFiles(LoaderConfig{ConfigFile: "/etc/fintan.yml"})
	if explicit.ConfigFile != "/etc/fintan.yml" {
		t.Errorf("explicit path should win, got %q", explicit.ConfigFile)
	}
}

func TestGenerateEnvKeyVariants(t *testing.T) {
	got := generateEnvKeyVariants("STREAM_PIPE_BUFFER")
	want := map[string]bool{"stream_pipe_buffer": true, "stream.pipe.buffer": true, "stream.pipe_buffer": true}
	for w := range want {
		found := false
		for _, g := range got {
			if g == w {
				found = true
			}
		}
		if !found {
			t.Errorf("expected variant %q in %v", w, got)
		}
	}
	if v := generateEnvKeyVariants("LEVEL"); len(v) != 1 || v[0] != "level" {
		t.Errorf("unexpected single-part variants %v", v)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	WithFileSystem(&mockFS{})(&lc)
	WithConfigFile("/path/to/fintan.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	if lc.FileSystem == nil {
		t.Error("expected FileSystem to be set")
	}
	if lc.ConfigFile != "/path/to/fintan.yml" {
		t.Errorf("expected settings file path, got %q", lc.ConfigFile)
	}
	if lc.EnvFile != "/path/to/.env" {
		t.Errorf("expected env file path, got %q", lc.EnvFile)
	}
}
