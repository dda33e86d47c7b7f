package main

import (
	"flag"
	"strings"
	"testing"

	"github.com/erazemk/zemljevid/internal/config"
)

func TestFlagsOverrideConfig(t *testing.T) {
	f, fs, err := parseFlags([]string{"-a", ":9999", "-db", "other.sqlite3", "-u", "root"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	cfg := config.Default()
	cfg.Logging.Path = "from-config.log"
	f.apply(fs, cfg)

	if cfg.Server.Addr != ":9999" || cfg.Storage.SQLitePath != "other.sqlite3" || cfg.Identity.AdminName != "root" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.Logging.Path != "from-config.log" {
		t.Errorf("unset flag overrode config: %q", cfg.Logging.Path)
	}
}

func TestParseFlagsRejectsArguments(t *testing.T) {
	if _, _, err := parseFlags([]string{"extra"}); err == nil {
		t.Error("expected error for positional argument")
	}
	if _, _, err := parseFlags([]string{"-h"}); err != flag.ErrHelp {
		t.Errorf("expected flag.ErrHelp, got %v", err)
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(16)
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}
	b, _ := generatePassword(16)
	if len(a) != 16 || a == b {
		t.Errorf("unexpected passwords %q, %q", a, b)
	}
	if strings.ContainsAny(a, " \t\n") {
		t.Errorf("password contains whitespace: %q", a)
	}
}
