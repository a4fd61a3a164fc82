package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/var/lib/pgbak")

	if cfg.HostID != "host-1" {
		t.Errorf("HostID = %q, want %q", cfg.HostID, "host-1")
	}
	if cfg.LogDir != filepath.Join("/var/lib/pgbak", "log") {
		t.Errorf("LogDir = %q, want default under base dir", cfg.LogDir)
	}
	if cfg.Postgres.User != "postgres" {
		t.Errorf("Postgres.User = %q, want %q", cfg.Postgres.User, "postgres")
	}
	if cfg.Catalog.Type != "sqlite" {
		t.Errorf("Catalog.Type = %q, want %q", cfg.Catalog.Type, "sqlite")
	}
}

func TestManager_ReadWrite(t *testing.T) {
	cfg := NewConfig("host-1", "/var/lib/pgbak")
	cfg.Postgres.User = "replication"

	m := &Manager{}
	var buf bytes.Buffer
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	decoded, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if decoded.HostID != cfg.HostID {
		t.Errorf("HostID = %q, want %q", decoded.HostID, cfg.HostID)
	}
	if decoded.Postgres.User != "replication" {
		t.Errorf("Postgres.User = %q, want %q", decoded.Postgres.User, "replication")
	}
	if decoded.Catalog.DataDir != cfg.Catalog.DataDir {
		t.Errorf("Catalog.DataDir = %q, want %q", decoded.Catalog.DataDir, cfg.Catalog.DataDir)
	}
}

func TestManager_Read_Malformed(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("host_id = [not closed")); err == nil {
		t.Error("Read() accepted malformed TOML")
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "pgbak.toml")
	cfg := NewConfig("host-1", "/var/lib/pgbak")

	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	loaded, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if loaded.HostID != "host-1" {
		t.Errorf("HostID = %q, want %q", loaded.HostID, "host-1")
	}

	// Second Init must refuse to clobber an existing config.
	if err := Init(path, cfg); err == nil {
		t.Error("Init() overwrote an existing config file")
	}
}

func TestReadFromFile_Missing(t *testing.T) {
	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("ReadFromFile() of missing file succeeded")
	}
}
