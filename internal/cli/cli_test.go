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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/bcem/postmeet/internal/config"
	"github.com/bcem/postmeet/internal/oracle"
	"github.com/bcem/postmeet/internal/oracle/oracletest"
	"github.com/bcem/postmeet/internal/session"
)

const caller = "lead@example.com"

func writeConfig(t *testing.T, gmailURL string) string {
	t.Helper()
	body := "oracle:\n  api_key: test-key\nsync:\n  time_zone: UTC\n"
	if gmailURL != "" {
		body += "providers:\n  gmail: " + gmailURL + "\n  drive: " + gmailURL + "\n"
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func testOptions(t *testing.T, stub *oracletest.Stub, configPath string) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format:     "json",
		ConfigPath: configPath,
		Email:      caller,
		Provider:   "google",
		NewOracle: func(context.Context, *config.Config) (oracle.Oracle, error) {
			return stub, nil
		},
	}
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (map[string]any, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	var resp map[string]any
	if out.Len() > 0 {
		if jerr := json.Unmarshal(out.Bytes(), &resp); jerr != nil {
			t.Fatalf("decode output %q: %v", out.String(), jerr)
		}
	}
	return resp, err
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCommand()

	for _, name := range []string{"process", "assets", "session"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, flag := range []string{"verbose", "format", "config", "email", "provider", "token"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestRootCommandRejectsUnknownFormat(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--format", "xml", "assets"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Fatalf("expected invalid format error, got %v", err)
	}
}

func TestProcessPassedRun(t *testing.T) {
	stub := &oracletest.Stub{Record: oracletest.PassingRecord(caller, "a@example.com", "b@example.com")}
	opts := testOptions(t, stub, writeConfig(t, ""))

	resp, err := execute(t, NewProcessCommand(opts), "Alice: let's ship on Friday.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("status = %v, want ok", resp["status"])
	}

	run := resp["data"].(map[string]any)["run"].(map[string]any)
	if run["outcome"] != "PASSED" {
		t.Errorf("outcome = %v, want PASSED", run["outcome"])
	}
	items := run["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	for _, it := range items {
		if status := it.(map[string]any)["status"]; status != "STAGED" {
			t.Errorf("item status = %v, want STAGED", status)
		}
	}

	reqs := stub.Requests()
	if len(reqs) != 1 || reqs[0].RawInput != "Alice: let's ship on Friday." {
		t.Errorf("oracle requests = %+v", reqs)
	}
}

func TestProcessBlockedRunExitsWithFailure(t *testing.T) {
	stub := &oracletest.Stub{Record: oracletest.BlockingRecord("Transcript is empty.")}
	opts := testOptions(t, stub, writeConfig(t, ""))

	resp, err := execute(t, NewProcessCommand(opts), "hello")
	if code := GetExitCode(err); code != ExitFailure {
		t.Fatalf("exit code = %d, want %d (err %v)", code, ExitFailure, err)
	}

	cliErr := resp["error"].(map[string]any)
	if cliErr["kind"] != "PIPELINE_BLOCKED" {
		t.Errorf("kind = %v, want PIPELINE_BLOCKED", cliErr["kind"])
	}
	if cliErr["message"] != "Transcript is empty." {
		t.Errorf("message = %v", cliErr["message"])
	}
}

func TestProcessOracleFailureIsCommandError(t *testing.T) {
	stub := &oracletest.Stub{Err: errors.New("upstream 503")}
	opts := testOptions(t, stub, writeConfig(t, ""))

	resp, err := execute(t, NewProcessCommand(opts), "hello")
	if code := GetExitCode(err); code != ExitCommandError {
		t.Fatalf("exit code = %d, want %d", code, ExitCommandError)
	}
	if kind := resp["error"].(map[string]any)["kind"]; kind != "ORACLE_FAILURE" {
		t.Errorf("kind = %v, want ORACLE_FAILURE", kind)
	}
}

func TestProcessWithoutIdentity(t *testing.T) {
	stub := &oracletest.Stub{Record: oracletest.PassingRecord(caller, "a@example.com")}
	opts := testOptions(t, stub, writeConfig(t, ""))
	opts.Email = ""

	resp, err := execute(t, NewProcessCommand(opts), "hello")
	if code := GetExitCode(err); code != ExitCommandError {
		t.Fatalf("exit code = %d, want %d", code, ExitCommandError)
	}
	if kind := resp["error"].(map[string]any)["kind"]; kind != "AUTH_REQUIRED" {
		t.Errorf("kind = %v, want AUTH_REQUIRED", kind)
	}
	if stub.Calls() != 0 {
		t.Errorf("oracle called %d times without identity", stub.Calls())
	}
}

func TestProcessEmptyInput(t *testing.T) {
	stub := &oracletest.Stub{}
	opts := testOptions(t, stub, writeConfig(t, ""))

	_, err := execute(t, NewProcessCommand(opts), "")
	if code := GetExitCode(err); code != ExitCommandError {
		t.Fatalf("exit code = %d, want %d", code, ExitCommandError)
	}
	if stub.Calls() != 0 {
		t.Error("oracle should not be called for empty input")
	}
}

func TestProcessRejectsUnknownConnector(t *testing.T) {
	stub := &oracletest.Stub{}
	opts := testOptions(t, stub, writeConfig(t, ""))

	_, err := execute(t, NewProcessCommand(opts), "hello", "--sync", "slack")
	if code := GetExitCode(err); code != ExitCommandError {
		t.Fatalf("exit code = %d, want %d", code, ExitCommandError)
	}
}

func TestProcessDispatchSendsEveryEmail(t *testing.T) {
	var sends atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gmail/v1/users/me/messages/send" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		sends.Add(1)
		w.Write([]byte(`{"id":"m1"}`))
	}))
	defer srv.Close()

	stub := &oracletest.Stub{Record: oracletest.PassingRecord(caller, "a@example.com", "b@example.com")}
	opts := testOptions(t, stub, writeConfig(t, srv.URL))
	opts.AccessToken = "tok"

	resp, err := execute(t, NewProcessCommand(opts), "hello", "--dispatch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sends.Load() != 2 {
		t.Errorf("sends = %d, want 2", sends.Load())
	}

	sum := resp["data"].(map[string]any)["dispatch"].(map[string]any)
	if sum["sent"] != float64(2) || sum["all_sent"] != true {
		t.Errorf("summary = %v", sum)
	}
}

func TestProcessDispatchWithoutTokenFailsItems(t *testing.T) {
	stub := &oracletest.Stub{Record: oracletest.PassingRecord(caller, "a@example.com", "b@example.com")}
	opts := testOptions(t, stub, writeConfig(t, ""))

	resp, err := execute(t, NewProcessCommand(opts), "hello", "--dispatch")
	if code := GetExitCode(err); code != ExitFailure {
		t.Fatalf("exit code = %d, want %d", code, ExitFailure)
	}

	data := resp["data"].(map[string]any)
	sum := data["dispatch"].(map[string]any)
	if sum["failed"] != float64(2) {
		t.Errorf("failed = %v, want 2", sum["failed"])
	}
	for _, it := range data["run"].(map[string]any)["items"].([]any) {
		item := it.(map[string]any)
		if item["status"] != "FAILED" || item["last_error"] == "" {
			t.Errorf("item = %v, want FAILED with an error", item)
		}
	}
}

func TestProcessReadsTranscriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("Bob: I'll send the deck."), 0o600); err != nil {
		t.Fatal(err)
	}

	stub := &oracletest.Stub{Record: oracletest.PassingRecord(caller, "a@example.com")}
	opts := testOptions(t, stub, writeConfig(t, ""))

	if _, err := execute(t, NewProcessCommand(opts), "", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reqs := stub.Requests(); len(reqs) != 1 || reqs[0].RawInput != "Bob: I'll send the deck." {
		t.Errorf("oracle requests = %+v", reqs)
	}
}

func TestAssetsRequiresGoogleCredential(t *testing.T) {
	opts := testOptions(t, &oracletest.Stub{}, writeConfig(t, ""))
	opts.Provider = "microsoft"
	opts.AccessToken = "tok"

	resp, err := execute(t, NewAssetsCommand(opts), "")
	if code := GetExitCode(err); code != ExitCommandError {
		t.Fatalf("exit code = %d, want %d", code, ExitCommandError)
	}
	if kind := resp["error"].(map[string]any)["kind"]; kind != "AUTH_REQUIRED" {
		t.Errorf("kind = %v, want AUTH_REQUIRED", kind)
	}
}

func TestAssetsListsMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"files":[{"id":"f1","name":"standup.mp4","mimeType":"video/mp4"}]}`))
	}))
	defer srv.Close()

	opts := testOptions(t, &oracletest.Stub{}, writeConfig(t, srv.URL))
	opts.AccessToken = "tok"

	resp, err := execute(t, NewAssetsCommand(opts), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := resp["data"].([]any)
	if len(list) != 1 {
		t.Fatalf("assets = %d, want 1", len(list))
	}
	if got := list[0].(map[string]any)["kind"]; got != "video" {
		t.Errorf("kind = %v, want video", got)
	}
}

func TestGetExitCode(t *testing.T) {
	if GetExitCode(nil) != ExitSuccess {
		t.Error("nil error should map to success")
	}
	if GetExitCode(errors.New("boom")) != ExitFailure {
		t.Error("plain error should map to failure")
	}
	if GetExitCode(WrapExitError(ExitCommandError, "bad", nil)) != ExitCommandError {
		t.Error("ExitError code not honoured")
	}
}

type memKV struct {
	data map[string]string
	ttls map[string]time.Duration
}

func (m *memKV) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if b, ok := value.([]byte); ok {
		m.data[key] = string(b)
	}
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestSessionCreateStoresLookupableSession(t *testing.T) {
	kv := &memKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
	opts := testOptions(t, &oracletest.Stub{}, writeConfig(t, ""))
	opts.AccessToken = "ya29.token"
	opts.NewSessionKV = func(*config.Config) (session.KV, error) { return kv, nil }

	resp, err := execute(t, NewSessionCommand(opts), "", "create", "--ttl", "1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := resp["data"].(map[string]any)
	token, _ := data["token"].(string)
	if token == "" || data["email"] != caller || data["expires_at"] == nil {
		t.Fatalf("result = %v", data)
	}

	key := "postmeet:session:" + token
	if kv.ttls[key] != time.Hour {
		t.Errorf("ttl = %v, want 1h", kv.ttls[key])
	}

	sess, err := session.NewStore(kv, "postmeet:session:").Lookup(context.Background(), token)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if sess.Email != caller || sess.AccessToken != "ya29.token" || sess.Expiry.IsZero() {
		t.Errorf("session = %+v", sess)
	}
}

func TestSessionCreateRequiresToken(t *testing.T) {
	opts := testOptions(t, &oracletest.Stub{}, writeConfig(t, ""))
	opts.NewSessionKV = func(*config.Config) (session.KV, error) {
		t.Fatal("redis should not be touched without a token")
		return nil, nil
	}

	_, err := execute(t, NewSessionCommand(opts), "", "create")
	if code := GetExitCode(err); code != ExitCommandError {
		t.Fatalf("exit code = %d, want %d", code, ExitCommandError)
	}
}
