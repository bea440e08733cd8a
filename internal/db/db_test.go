package db

import (
	"testing"

	"presale/internal/config"
)

func TestOpenWithoutDSNDisablesJournal(t *testing.T) {
	conn, err := Open(config.DBConfig{DSN: "  "})
	if err != nil || conn != nil {
		t.Fatalf("conn=%v err=%v want nil,nil", conn, err)
	}
	if err := AutoMigrate(conn); err != nil {
		t.Fatalf("migrate nil: %v", err)
	}
	if err := SetTimezone(conn, "UTC"); err != nil {
		t.Fatalf("timezone nil: %v", err)
	}
	if err := Close(conn); err != nil {
		t.Fatalf("close nil: %v", err)
	}
}

func TestSanitizeTZ(t *testing.T) {
	cases := map[string]string{
		"UTC":                   "UTC",
		"America/Argentina/Ba":  "America/Argentina/Ba",
		"Etc/GMT+3":             "Etc/GMT+3",
		"UTC'; DROP TABLE x;--": "UTCDROPTABLEx--",
	}
	for in, want := range cases {
		if got := sanitizeTZ(in); got != want {
			t.Fatalf("sanitizeTZ(%q)=%q want=%q", in, got, want)
		}
	}
}
