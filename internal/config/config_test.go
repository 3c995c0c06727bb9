// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestParse_ExpandsEnvAndDefaults verifies ${VAR} expansion and defaults.
func TestParse_ExpandsEnvAndDefaults(t *testing.T) {
	t.Setenv("TEST_ORACLE_KEY", "secret-key")
	t.Setenv("PORT", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Parse([]byte(`
oracle:
  api_key: ${TEST_ORACLE_KEY}
  model: gemini-test
postgres:
  url: postgres://u:p@db:5432/postmeet
redis:
  queues:
    events: outcomes
sync:
  time_zone: Europe/Berlin
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Oracle.APIKey != "secret-key" {
		t.Errorf("APIKey = %q, want secret-key", cfg.Oracle.APIKey)
	}
	if cfg.Oracle.Model != "gemini-test" {
		t.Errorf("Model = %q, want gemini-test", cfg.Oracle.Model)
	}
	if cfg.Oracle.RateLimit != 1 || cfg.Oracle.Burst != 2 {
		t.Errorf("rate limit defaults = %v/%d, want 1/2", cfg.Oracle.RateLimit, cfg.Oracle.Burst)
	}
	if cfg.EventsQueue != "outcomes" {
		t.Errorf("EventsQueue = %q, want outcomes", cfg.EventsQueue)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.Providers.GmailBaseURL != "https://gmail.googleapis.com" {
		t.Errorf("GmailBaseURL = %q", cfg.Providers.GmailBaseURL)
	}
	if cfg.TimeZone != "Europe/Berlin" {
		t.Errorf("TimeZone = %q", cfg.TimeZone)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.SubmissionTTL != 10*time.Minute {
		t.Errorf("SubmissionTTL = %v", cfg.SubmissionTTL)
	}
}

// TestParse_MissingAPIKey verifies that an oracle key is mandatory.
func TestParse_MissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := Parse([]byte("oracle:\n  model: x\n")); err == nil {
		t.Fatal("expected error without API key, got nil")
	}
}

// TestParse_InvalidTimeZone verifies time zone validation.
func TestParse_InvalidTimeZone(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")

	if _, err := Parse([]byte("sync:\n  time_zone: Mars/Olympus\n")); err == nil {
		t.Fatal("expected error for unknown time zone, got nil")
	}
}

// TestLoad_ConfigPath verifies CONFIG_PATH is honoured.
func TestLoad_ConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("oracle:\n  api_key: from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PORT", "9191")
	t.Setenv("SYNC_TIME_ZONE", "")
	t.Setenv("TZ", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Oracle.APIKey != "from-file" {
		t.Errorf("APIKey = %q, want from-file", cfg.Oracle.APIKey)
	}
	if cfg.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Port)
	}
}

// TestLoad_MissingFile verifies a readable error for a missing file.
func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// unsetTZ clears TZ for the test and points the localtime link at target.
func unsetTZ(t *testing.T, target string) {
	t.Helper()
	t.Setenv("TZ", "")
	os.Unsetenv("TZ")

	link := filepath.Join(t.TempDir(), "localtime")
	if target != "" {
		if err := os.Symlink(target, link); err != nil {
			t.Fatalf("symlink: %v", err)
		}
	}
	old := localtimePath
	localtimePath = link
	t.Cleanup(func() { localtimePath = old })
}

// TestLocalZoneName_TZ verifies the forms TZ may take.
func TestLocalZoneName_TZ(t *testing.T) {
	tests := []struct {
		tz   string
		want string
	}{
		{"America/New_York", "America/New_York"},
		{":Europe/Berlin", "Europe/Berlin"},
		{"/usr/share/zoneinfo/Asia/Tokyo", "Asia/Tokyo"},
		{"", "UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.tz, func(t *testing.T) {
			t.Setenv("TZ", tt.tz)
			got, err := LocalZoneName()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("LocalZoneName() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestLocalZoneName_Localtime reads the zone from the localtime link when
// TZ is unset.
func TestLocalZoneName_Localtime(t *testing.T) {
	unsetTZ(t, "../usr/share/zoneinfo/Europe/Berlin")

	got, err := LocalZoneName()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Europe/Berlin" {
		t.Errorf("LocalZoneName() = %q, want Europe/Berlin", got)
	}
}

// TestParse_UnresolvableLocalZone fails rather than falling back to UTC.
func TestParse_UnresolvableLocalZone(t *testing.T) {
	unsetTZ(t, "")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("SYNC_TIME_ZONE", "")

	_, err := Parse(nil)
	if err == nil {
		t.Fatal("expected error when the local zone cannot be named")
	}
	if !strings.Contains(err.Error(), "sync.time_zone") {
		t.Errorf("error = %v, want a hint about sync.time_zone", err)
	}
}

// TestParse_ResolvesLocalZone fills TimeZone from the host when unset.
func TestParse_ResolvesLocalZone(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("SYNC_TIME_ZONE", "")
	t.Setenv("TZ", "Asia/Tokyo")

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TimeZone != "Asia/Tokyo" {
		t.Errorf("TimeZone = %q, want Asia/Tokyo", cfg.TimeZone)
	}
}
