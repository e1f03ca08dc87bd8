package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/studylake/studylake/internal/config"
)

// Each scenario is its own test function: t.Setenv cleanup runs per function,
// and goconvey re-executes sibling branches, so env mutations must not be
// shared across scenarios.

func TestLoadDefaults(t *testing.T) {
	Convey("Given no configuration at all", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then defaults apply", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":8080")
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.RefreshIntervalSeconds, ShouldEqual, 600)
			So(cfg.IngestQueueSize, ShouldEqual, 10_000)
			So(cfg.WriterCount, ShouldBeGreaterThan, 0)
		})
	})
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("STUDYLAKE_ADDR", ":9999")
	t.Setenv("STUDYLAKE_LOG_LEVEL", "debug")
	t.Setenv("STUDYLAKE_REFRESH_INTERVAL_SECONDS", "30")

	Convey("Given environment variables", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then env overrides defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9999")
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.RefreshIntervalSeconds, ShouldEqual, 30)
		})
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("addr: \":7070\"\npostgres_dsn: \"postgres://db:5432/lake\"\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv("STUDYLAKE_CONFIG", path)

	Convey("Given a YAML config file", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then file values override defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.PostgresDSN, ShouldEqual, "postgres://db:5432/lake")
		})
	})
}

func TestLoadEnvOutranksFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("addr: \":7070\"\n"), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv("STUDYLAKE_CONFIG", path)
	t.Setenv("STUDYLAKE_ADDR", ":6060")

	Convey("Given both a file and an env override", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then env outranks the file", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":6060")
		})
	})
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("STUDYLAKE_CONFIG", "/nonexistent/config.yaml")

	Convey("Given a config path that does not exist", t, func() {
		_, err := config.Load(context.Background())

		So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
	})
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("STUDYLAKE_REFRESH_INTERVAL_SECONDS", "0")

	Convey("Given a value that fails validation", t, func() {
		_, err := config.Load(context.Background())

		So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
	})
}

func TestDurationHelpers(t *testing.T) {
	Convey("Given a config with second-granularity settings", t, func() {
		cfg := config.New()
		cfg.RefreshIntervalSeconds = 90
		cfg.ReferenceTimeoutSeconds = 5

		Convey("Then the duration helpers convert them", func() {
			So(cfg.RefreshInterval().Seconds(), ShouldEqual, 90.0)
			So(cfg.ReferenceTimeout().Seconds(), ShouldEqual, 5.0)
		})
	})
}
