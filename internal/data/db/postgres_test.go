package db

import (
	"testing"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

func TestPostgresDSN(t *testing.T) {
	got := PostgresDSN(Options{User: "u", Password: "p", Host: "h", Port: "5432", Name: "props"})
	want := "postgres://u:p@h:5432/props?sslmode=disable"
	if got != want {
		t.Fatalf("dsn: want=%q got=%q", want, got)
	}
	got = PostgresDSN(Options{User: "u", Host: "h", Port: "1", Name: "n", SSLMode: "require"})
	if got != "postgres://u:@h:1/n?sslmode=require" {
		t.Fatalf("dsn with sslmode: %q", got)
	}
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	svc, err := Open(Options{Driver: "sqlite", SQLitePath: "file::memory:", LogLevel: "silent"}, logger.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer svc.Close()
	if svc.Driver() != "sqlite" {
		t.Fatalf("driver: %q", svc.Driver())
	}
	if err := AutoMigrateAll(svc.DB()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{"ingest_job", "pipeline_run", "pipeline_stage_run", "property", "feedback_event", "missing_room_request"} {
		if !svc.DB().Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Options{Driver: "oracle"}, logger.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
