package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drugscreen/internal/services"
)

const fixturesTOML = `
[[presets]]
id = "county-court"
name = "County court"
referral_type = "court"
contacts = [
  { name = "Clerk", email = "clerk@court.example" },
  { name = "", email = "Probation@Court.example" },
]

[[panels]]
id = "lab-10"
name = "Lab 10 panel"
kind = "lab"
substances = ["amphetamines", "thc", "cocaine"]

[[clients]]
id = "client-1"
first_name = "jordan"
last_name = "avery"
email = "jordan@example.com"
referral_type = "court"
preset_id = "county-court"
additional_recipients = [{ name = "Probation Officer", email = "probation@court.example" }]

  [[clients.medications]]
  name = "Adderall"
  detected_as = ["amphetamines"]
`

type cliEnv struct {
	base       string
	configPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
env_file = ""

[documents]
driver = "memory"

[email]
transport = "log"
send_delay_ms = 0
`, filepath.Join(base, "data"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliEnv{base: base, configPath: configPath}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("drugscreen %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (e *cliEnv) importFixtures(t *testing.T) {
	t.Helper()
	path := filepath.Join(e.base, "fixtures.toml")
	if err := os.WriteFile(path, []byte(fixturesTOML), 0o644); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}
	out := e.mustRun(t, "import", path)
	if !strings.Contains(out, "Imported 1 presets, 1 panels, 1 clients") {
		t.Fatalf("unexpected import output %q", out)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	env := newCLIEnv(t)
	target := filepath.Join(env.base, "generated", "config.toml")

	out := env.mustRun(t, "config", "init", "--path", target)
	if !strings.Contains(out, target) {
		t.Fatalf("expected output to mention %s, got %q", target, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}
	env.mustRun(t, "config", "init", "--path", target, "--overwrite")
}

func TestConfigValidate(t *testing.T) {
	env := newCLIEnv(t)
	out := env.mustRun(t, "config", "validate")
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, "Documents: memory") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestClassifyCommand(t *testing.T) {
	env := newCLIEnv(t)
	out := env.mustRun(t, "classify", "--detected", "Amphetamines,THC", "--expected", "amphetamines", "--json")

	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if payload["screen_result"] != "unexpected-positive" || payload["auto_accept"] != false {
		t.Fatalf("unexpected classification %v", payload)
	}

	table := env.mustRun(t, "classify", "--critical", "buprenorphine")
	if !strings.Contains(table, "unexpected-negative-critical") {
		t.Fatalf("expected critical negative in table, got %q", table)
	}
}

func TestImportAndRecipients(t *testing.T) {
	env := newCLIEnv(t)
	env.importFixtures(t)

	out := env.mustRun(t, "recipients", "client-1", "--json")
	var views []recipientView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(views) != 3 {
		t.Fatalf("expected client plus two deduped referrals, got %+v", views)
	}
	if views[0].Audience != "client" || views[0].Email != "jordan@example.com" {
		t.Fatalf("expected client first, got %+v", views[0])
	}
	if views[2].Name != "Probation Officer" {
		t.Fatalf("expected missing preset name filled from additional recipient, got %+v", views[2])
	}
}

func TestClientsCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.importFixtures(t)

	out := env.mustRun(t, "clients", "--json")
	var views []clientView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(views) != 1 || views[0].ID != "client-1" || views[0].Medications != 1 || views[0].ReferralType != "court" {
		t.Fatalf("unexpected clients %+v", views)
	}
}

func TestExitCodeByErrorKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", services.Wrap(services.ErrValidation, "workflow", "record screen", "already screened", nil), exitValidation},
		{"not found", fmt.Errorf("show: %w", services.Wrap(services.ErrNotFound, "store", "find test", "test t-1", nil)), exitNotFound},
		{"other", errors.New("disk full"), exitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Fatalf("exitCode = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCollectShowAndEvaluate(t *testing.T) {
	env := newCLIEnv(t)
	env.importFixtures(t)

	testID := strings.TrimSpace(env.mustRun(t, "test", "collect", "--client", "client-1", "--panel", "lab-10"))
	if testID == "" {
		t.Fatal("expected test id")
	}

	out := env.mustRun(t, "test", "show", testID, "--json")
	var shown struct {
		NotificationsSent []struct {
			Stage  string   `json:"stage"`
			SentTo []string `json:"sentTo"`
		} `json:"notificationsSent"`
	}
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(shown.NotificationsSent) != 1 || shown.NotificationsSent[0].Stage != "collected" {
		t.Fatalf("expected collected stage after inline save, got %+v", shown.NotificationsSent)
	}
	if len(shown.NotificationsSent[0].SentTo) != 2 {
		t.Fatalf("collected stage goes to referrals only, got %v", shown.NotificationsSent[0].SentTo)
	}

	out = env.mustRun(t, "test", "evaluate", testID, "--json")
	if !strings.Contains(out, `"outcome": "idle"`) {
		t.Fatalf("expected idle re-evaluation, got %q", out)
	}

	out = env.mustRun(t, "test", "list")
	if !strings.Contains(out, testID) || !strings.Contains(out, "collected") {
		t.Fatalf("expected test in list output:\n%s", out)
	}

	if _, err := env.run(t, "test", "show", "missing"); err == nil {
		t.Fatal("expected error for unknown test")
	}
}

func TestPreflightCommand(t *testing.T) {
	env := newCLIEnv(t)
	out := env.mustRun(t, "preflight")
	for _, check := range []string{"Data directory", "Database", "Document storage", "Email transport"} {
		if !strings.Contains(out, check) {
			t.Fatalf("expected %q in preflight output:\n%s", check, out)
		}
	}
	if strings.Contains(out, "FAIL") {
		t.Fatalf("expected all checks to pass:\n%s", out)
	}
}
