package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())
	t.Setenv(EnvPort, "")
	t.Setenv(EnvClipsDir, "")
	t.Setenv(EnvHeadless, "")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.ClipsDir() != filepath.Join(cfg.DataDir(), "clips") {
		t.Errorf("ClipsDir() = %q, want under data dir", cfg.ClipsDir())
	}
	if cfg.ThumbnailsDir() != filepath.Join(cfg.ClipsDir(), "thumbnails") {
		t.Errorf("ThumbnailsDir() = %q", cfg.ThumbnailsDir())
	}
	if cfg.MaxAttempts() != 3 {
		t.Errorf("MaxAttempts() = %d, want 3", cfg.MaxAttempts())
	}
	if cfg.Headless() {
		t.Error("Headless() should default to false")
	}
}

func TestNew_InvalidPort(t *testing.T) {
	t.Setenv(EnvDataDir, t.TempDir())
	t.Setenv(EnvPort, "99999")

	if _, err := New(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestNew_ClipsDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, t.TempDir())
	t.Setenv(EnvClipsDir, dir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ClipsDir() != dir {
		t.Errorf("ClipsDir() = %q, want %q", cfg.ClipsDir(), dir)
	}
}

func TestNew_DotEnvInDataDir(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(EnvDataDir, dataDir)
	os.Unsetenv(EnvFFmpegPath)
	t.Cleanup(func() { os.Unsetenv(EnvFFmpegPath) })

	if err := os.WriteFile(filepath.Join(dataDir, EnvFilename), []byte(EnvFFmpegPath+"=/opt/ffmpeg/bin/ffmpeg\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FFmpegPath() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpegPath() = %q, want value from .env", cfg.FFmpegPath())
	}
}

func TestNew_EnvironmentWinsOverDotEnv(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(EnvDataDir, dataDir)
	t.Setenv(EnvLogLevel, "debug")

	if err := os.WriteFile(filepath.Join(dataDir, EnvFilename), []byte(EnvLogLevel+"=error\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", cfg.LogLevel())
	}
}

func TestNew_MalformedDotEnv(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(EnvDataDir, dataDir)

	if err := os.WriteFile(filepath.Join(dataDir, EnvFilename), []byte("FFMPEG-PATH=/opt/ffmpeg\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if _, err := New(); err == nil {
		t.Fatal("expected error for malformed .env")
	}
}
