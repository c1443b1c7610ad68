package cli

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gsheets-app/google-sheets/internal/checks"
	"github.com/gsheets-app/google-sheets/internal/deploy"
	"github.com/gsheets-app/google-sheets/internal/envcheck"
	"github.com/gsheets-app/google-sheets/internal/i18n"
	"github.com/gsheets-app/google-sheets/internal/imagetag"
	"github.com/gsheets-app/google-sheets/internal/server"
	"github.com/gsheets-app/google-sheets/internal/testutil"
	"golang.org/x/crypto/ssh"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestEnvCheck(t *testing.T) {
	isolate(t)
	t.Setenv("GSHEETS_TEST_PRESENT", "x")

	if _, err := execute(t, "env", "check", "GSHEETS_TEST_PRESENT"); err != nil {
		t.Fatalf("present variable reported missing: %v", err)
	}

	_, err := execute(t, "env", "check", "GSHEETS_TEST_PRESENT", "GSHEETS_TEST_ABSENT")
	if !errors.Is(err, envcheck.ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	if err.Error() != "ERROR: GSHEETS_TEST_ABSENT variable must be defined, exiting" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestImageTag(t *testing.T) {
	isolate(t)

	out, err := execute(t, "image-tag", "refs/heads/main")
	if err != nil || out != "latest\n" {
		t.Fatalf("main: %q, %v", out, err)
	}

	t.Setenv("GITHUB_REF", "refs/heads/dev")
	out, err = execute(t, "image-tag")
	if err != nil || out != "dev\n" {
		t.Fatalf("GITHUB_REF dev: %q, %v", out, err)
	}

	if _, err := execute(t, "image-tag", "refs/heads/feature/x"); !errors.Is(err, imagetag.ErrNoDeployTarget) {
		t.Fatalf("expected ErrNoDeployTarget, got %v", err)
	}

	t.Setenv("GITHUB_REPOSITORY", "Acme/Google-Sheets")
	out, err = execute(t, "image-tag", "--image", "main")
	if err != nil || out != "ghcr.io/acme/google-sheets:latest\n" {
		t.Fatalf("--image: %q, %v", out, err)
	}
}

func TestClientSecretWrite(t *testing.T) {
	wd := isolate(t)
	out := filepath.Join(wd, "secret", "client_secret.json")
	if err := os.MkdirAll(filepath.Dir(out), 0o700); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "client-secret", "write", "--out", out); !errors.Is(err, envcheck.ErrMissing) {
		t.Fatalf("expected env guard error, got %v", err)
	}

	t.Setenv("CLIENT_SECRET", "s3cret")
	t.Setenv("REDIRECT_DOMAIN", "sheets.example.com")
	t.Setenv("GSHEETS_OAUTH_CLIENT_ID", "client-1.apps.googleusercontent.com")
	msg, err := execute(t, "client-secret", "write", "--out", out)
	if err != nil {
		t.Fatalf("client-secret write: %v", err)
	}
	if !strings.Contains(msg, "https://sheets.example.com/login/callback") {
		t.Fatalf("redirect not reported: %q", msg)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read client secret: %v", err)
	}
	if !strings.Contains(string(data), `"client_secret": "s3cret"`) {
		t.Fatalf("secret not written:\n%s", data)
	}
	if strings.Contains(msg, "s3cret") {
		t.Fatalf("secret printed: %q", msg)
	}
}

func TestLogsTrim(t *testing.T) {
	wd := isolate(t)
	big := writeFile(t, wd, "big-json.log", strings.Repeat("0123456789", 10))
	small := writeFile(t, wd, "small-json.log", "tiny")
	archive := filepath.Join(wd, "archive")

	out, err := execute(t, "logs", "trim", big, small, "--max-size", "50", "--keep", "10", "--archive-dir", archive)
	if err != nil {
		t.Fatalf("logs trim: %v", err)
	}
	if !strings.Contains(out, "trimmed "+big) || strings.Contains(out, small) {
		t.Fatalf("unexpected output: %q", out)
	}
	data, _ := os.ReadFile(big)
	if string(data) != "0123456789" {
		t.Fatalf("kept %q", data)
	}
	entries, err := os.ReadDir(archive)
	if err != nil || len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".log.zst") {
		t.Fatalf("expected one archive, got %v (%v)", entries, err)
	}

	if _, err := execute(t, "logs", "trim", filepath.Join(wd, "missing.log")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestCoverageMerge(t *testing.T) {
	wd := isolate(t)
	a := writeFile(t, wd, "a.out", "mode: set\nexample.com/m/a.go:1.1,2.2 1 1\nexample.com/m/a.go:3.1,4.2 1 0\n")
	b := writeFile(t, wd, "b.out", "mode: set\nexample.com/m/a.go:1.1,2.2 1 0\nexample.com/m/a.go:3.1,4.2 1 1\n")
	merged := filepath.Join(wd, "combined.out")

	if _, err := execute(t, "coverage", "merge", "-o", merged, "--fail-under", "100", a, b); err != nil {
		t.Fatalf("coverage merge: %v", err)
	}
	data, err := os.ReadFile(merged)
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}
	want := "mode: set\nexample.com/m/a.go:1.1,2.2 1 1\nexample.com/m/a.go:3.1,4.2 1 1\n"
	if string(data) != want {
		t.Fatalf("merged = %q", data)
	}

	if _, err := execute(t, "coverage", "merge", "-o", merged, "--fail-under", "80", a); err == nil {
		t.Fatalf("expected failure below threshold")
	}
}

func TestCheck(t *testing.T) {
	isolate(t)
	var gotOpts checks.Options
	prev := runChecks
	t.Cleanup(func() { runChecks = prev })

	status := checks.StatusPassed
	runChecks = func(ctx context.Context, tools []checks.Tool, opts checks.Options) []checks.Result {
		gotOpts = opts
		results := make([]checks.Result, len(tools))
		for i, tool := range tools {
			results[i] = checks.Result{Tool: tool, Status: checks.StatusPassed}
		}
		results[1].Status = status
		results[1].Output = "vet: something"
		return results
	}

	out, err := execute(t, "check", "--strict", "--parallel", "2")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !gotOpts.Strict || gotOpts.Parallel != 2 {
		t.Fatalf("options not passed: %+v", gotOpts)
	}
	if !strings.Contains(out, "golangci-lint") {
		t.Fatalf("summary missing tools: %q", out)
	}

	status = checks.StatusFailed
	out, err = execute(t, "check")
	if err == nil || !strings.Contains(err.Error(), "go vet") {
		t.Fatalf("expected go vet failure, got %v", err)
	}
	if gotOpts.Strict {
		t.Fatalf("strict carried over from the previous run")
	}
	if !strings.Contains(out, "vet: something") {
		t.Fatalf("failed output not shown: %q", out)
	}
}

func TestProcessCampaign(t *testing.T) {
	wd := isolate(t)
	template := writeFile(t, wd, "template.csv",
		"Campaign Name,Language Code,Campaign Budget,Search Network,Google Search Network,Default max. CPC\n"+
			"{INSERT_COUNTRY} - {INSERT_STATION_FROM} - {INSERT_STATION_TO} | {INSERT_CATEGORY},en,100,TRUE,FALSE,1.20\n")
	newCampaign := writeFile(t, wd, "new.csv",
		"Country,Station From,Station To,Final Url From,Final Url To,Language Code,Category\n"+
			"India,Delhi,Mumbai,https://example.com/from,https://example.com/to,EN,Bus\n")

	out, err := execute(t, "process", "campaign", "--template", template, "--new-campaign", newCampaign)
	if err != nil {
		t.Fatalf("process campaign: %v", err)
	}
	want := "Campaign Name,Language Code,Campaign Budget,Search Network,Google Search Network,Default max. CPC\n" +
		"India - Delhi - Mumbai | Bus,EN,100,TRUE,FALSE,1.2\n"
	if out != want {
		t.Fatalf("output = %q\nwant %q", out, want)
	}

	out, err = execute(t, "process", "campaign", "--template", template, "--new-campaign", newCampaign, "--format", "json")
	if err != nil {
		t.Fatalf("process campaign json: %v", err)
	}
	if !strings.Contains(out, `"issues_present": false`) {
		t.Fatalf("unexpected json: %s", out)
	}

	bad := writeFile(t, wd, "bad.csv", "Campaign Name\n")
	if _, err := execute(t, "process", "campaign", "--template", bad, "--new-campaign", newCampaign); err == nil ||
		!strings.Contains(err.Error(), "at least two rows") {
		t.Fatalf("expected row count error, got %v", err)
	}
}

func TestProcessKeywordRequiresMerged(t *testing.T) {
	wd := isolate(t)
	f := writeFile(t, wd, "x.csv", "a\nb\n")
	if _, err := execute(t, "process", "keyword", "--template", f, "--new-campaign", f); err == nil {
		t.Fatalf("expected missing --merged error")
	}
}

// deployEnv sets everything a deployment needs and returns the compose
// file path.
func deployEnv(t *testing.T, wd string) string {
	t.Helper()
	for name, v := range map[string]string{
		"TAG":               "latest",
		"GITHUB_USERNAME":   "bot",
		"GITHUB_PASSWORD":   "registry-pw",
		"GITHUB_REPOSITORY": "acme/google-sheets",
		"DOMAIN":            "sheets.example.com",
		"REDIRECT_DOMAIN":   "sheets.example.com",
		"CLIENT_SECRET":     "s3cret",
		"DATABASE_URL":      "postgres://u:p@db:5432/app",
	} {
		t.Setenv(name, v)
	}
	writeFile(t, wd, "key.pem", "not used by the fake remote")
	return writeFile(t, wd, "compose.yaml", `services:
  app:
    image: ghcr.io/acme/google-sheets:${TAG}
    environment:
      CLIENT_SECRET: ${CLIENT_SECRET}
      DATABASE_URL: ${DATABASE_URL}
      PORT: ${PORT:-8000}
`)
}

func TestDeploy_EnvGuard(t *testing.T) {
	isolate(t)
	t.Setenv("TAG", "latest")
	_, err := execute(t, "deploy", "--dry-run")
	var missing *envcheck.MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingError, got %v", err)
	}
	if len(missing.Names) != 6 || missing.Names[0] != "GITHUB_USERNAME" {
		t.Fatalf("unexpected missing list: %v", missing.Names)
	}
}

func TestDeploy_DryRun(t *testing.T) {
	wd := isolate(t)
	compose := deployEnv(t, wd)

	out, err := execute(t, "deploy", "--dry-run", "--compose-file", compose)
	if err != nil {
		t.Fatalf("deploy --dry-run: %v", err)
	}
	if !strings.Contains(out, "ghcr.io/acme/google-sheets:latest on sheets.example.com") {
		t.Fatalf("header missing: %q", out)
	}
	for _, step := range []string{deploy.StepComposeDown, deploy.StepPullImage, deploy.StepComposeUp} {
		if !strings.Contains(out, step) {
			t.Fatalf("step %s missing from plan:\n%s", step, out)
		}
	}
	if strings.Contains(out, "registry-pw") || strings.Contains(out, "s3cret") {
		t.Fatalf("secret in plan output:\n%s", out)
	}
}

func TestDeploy_MissingComposeVariable(t *testing.T) {
	wd := isolate(t)
	deployEnv(t, wd)
	compose := writeFile(t, wd, "extra.yaml", "services:\n  app:\n    image: x:${TAG}\n    environment:\n      API_KEY: ${GSHEETS_TEST_API_KEY}\n")

	_, err := execute(t, "deploy", "--dry-run", "--compose-file", compose)
	if !errors.Is(err, envcheck.ErrMissing) || !strings.Contains(err.Error(), "GSHEETS_TEST_API_KEY") {
		t.Fatalf("expected missing compose variable, got %v", err)
	}
}

func TestDeploy_RunsAndRecords(t *testing.T) {
	wd := isolate(t)
	compose := deployEnv(t, wd)
	auditURL := "sqlite:" + filepath.Join(wd, "audit.db")

	remote := testutil.NewFakeRemote()
	prev := dialRemote
	t.Cleanup(func() { dialRemote = prev })
	var dialed deploy.Config
	dialRemote = func(ctx context.Context, cfg deploy.Config) (deploy.Remote, error) {
		dialed = cfg
		return remote, nil
	}

	out, err := execute(t, "deploy", "--compose-file", compose, "--pull-settle", "1ms", "--audit-url", auditURL)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !remote.Closed() {
		t.Fatalf("remote not closed")
	}
	if dialed.Env["DATABASE_URL"] != "postgres://u:p@db:5432/app" || dialed.Env["TAG"] != "latest" {
		t.Fatalf("compose env not collected: %v", dialed.Env)
	}
	if _, ok := dialed.Env["PORT"]; ok {
		t.Fatalf("unset defaulted variable exported: %v", dialed.Env)
	}
	if !strings.Contains(out, "Deploy succeeded") {
		t.Fatalf("unexpected summary: %q", out)
	}

	history, err := execute(t, "deploy", "history", "--audit-url", auditURL)
	if err != nil {
		t.Fatalf("deploy history: %v", err)
	}
	if !strings.Contains(history, "succeeded ghcr.io/acme/google-sheets:latest -> sheets.example.com") {
		t.Fatalf("run not recorded: %q", history)
	}
	if !strings.Contains(history, deploy.StepComposeUp) {
		t.Fatalf("steps not recorded: %q", history)
	}
}

func TestDeploy_FailedStepIsReported(t *testing.T) {
	wd := isolate(t)
	compose := deployEnv(t, wd)

	remote := testutil.NewFakeRemote()
	remote.Fail["docker login"] = errors.New("denied")
	prev := dialRemote
	t.Cleanup(func() { dialRemote = prev })
	dialRemote = func(ctx context.Context, cfg deploy.Config) (deploy.Remote, error) { return remote, nil }

	out, err := execute(t, "deploy", "--compose-file", compose, "--pull-settle", "1ms")
	if err == nil || !strings.Contains(err.Error(), deploy.StepRegistryLogin) {
		t.Fatalf("expected registry login failure, got %v", err)
	}
	if !strings.Contains(out, "Deploy failed") || !strings.Contains(out, "skipped") {
		t.Fatalf("unexpected summary: %q", out)
	}
}

func TestDeployTrustHost(t *testing.T) {
	wd := isolate(t)
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}

	prevScan, prevStdin := scanHostKey, stdin
	t.Cleanup(func() { scanHostKey, stdin = prevScan, prevStdin })
	scanHostKey = func(host string) (ssh.PublicKey, error) { return key, nil }
	knownHosts := filepath.Join(wd, "ssh", "known_hosts")

	stdin = strings.NewReader("no\n")
	out, err := execute(t, "deploy", "trust-host", "sheets.example.com", "--known-hosts", knownHosts)
	if err != nil {
		t.Fatalf("trust-host: %v", err)
	}
	if !strings.Contains(out, ssh.FingerprintSHA256(key)) || !strings.Contains(out, "Cancelled.") {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := os.Stat(knownHosts); !os.IsNotExist(err) {
		t.Fatalf("known hosts written after refusal")
	}

	stdin = strings.NewReader("yes\n")
	if _, err := execute(t, "deploy", "trust-host", "sheets.example.com", "--known-hosts", knownHosts); err != nil {
		t.Fatalf("trust-host: %v", err)
	}
	data, err := os.ReadFile(knownHosts)
	if err != nil {
		t.Fatalf("read known hosts: %v", err)
	}
	if !strings.HasPrefix(string(data), "sheets.example.com ssh-ed25519 ") {
		t.Fatalf("unexpected known hosts line: %q", data)
	}
}

func TestDeployTrustHost_Language(t *testing.T) {
	wd := isolate(t)
	t.Setenv("GSHEETS_LANGUAGE", "de")
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}

	prevScan, prevStdin := scanHostKey, stdin
	t.Cleanup(func() {
		scanHostKey, stdin = prevScan, prevStdin
		i18n.Init("en")
	})
	scanHostKey = func(host string) (ssh.PublicKey, error) { return key, nil }
	stdin = strings.NewReader("no\n")

	out, err := execute(t, "deploy", "trust-host", "sheets.example.com", "--known-hosts", filepath.Join(wd, "known_hosts"))
	if err != nil {
		t.Fatalf("trust-host: %v", err)
	}
	if !strings.Contains(out, "Abgebrochen.") || strings.Contains(out, "Cancelled.") {
		t.Fatalf("expected German output, got %q", out)
	}
}

func TestServe(t *testing.T) {
	wd := isolate(t)
	secretFile := filepath.Join(wd, "client_secret.json")

	prev := listenAndServe
	t.Cleanup(func() { listenAndServe = prev })
	var addr string
	listenAndServe = func(ctx context.Context, s *server.Server) error {
		addr = s.Addr()
		return nil
	}

	if _, err := execute(t, "serve", "--client-secret-file", secretFile); !errors.Is(err, envcheck.ErrMissing) {
		t.Fatalf("expected env guard error, got %v", err)
	}

	t.Setenv("CLIENT_SECRET", "s3cret")
	t.Setenv("REDIRECT_DOMAIN", "sheets.example.com")
	t.Setenv("GSHEETS_OAUTH_CLIENT_ID", "client-1")
	t.Setenv("DATABASE_URL", "sqlite:"+filepath.Join(wd, "app.db"))
	t.Setenv("PORT", "8123")

	if _, err := execute(t, "serve", "--client-secret-file", secretFile); err != nil {
		t.Fatalf("serve: %v", err)
	}
	if addr != "0.0.0.0:8123" {
		t.Fatalf("addr = %q", addr)
	}
	if _, err := os.Stat(secretFile); err != nil {
		t.Fatalf("client secret not written: %v", err)
	}

	if _, err := execute(t, "migrate"); err != nil {
		t.Fatalf("migrate after serve: %v", err)
	}
}

func TestDBWaspURL(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app")
	out, err := execute(t, "db", "wasp-url")
	if err != nil {
		t.Fatalf("wasp-url: %v", err)
	}
	if !strings.HasPrefix(out, "postgres://u:p@db:5432/waspdb?") || !strings.Contains(out, "connect_timeout=60") {
		t.Fatalf("unexpected url: %q", out)
	}

	t.Setenv("DATABASE_URL", "")
	if _, err := execute(t, "db", "wasp-url"); !errors.Is(err, errNoDatabase) {
		t.Fatalf("expected errNoDatabase, got %v", err)
	}
}

func TestDeployResultSummary(t *testing.T) {
	var buf strings.Builder
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })

	printDeployResult(deploy.Result{
		Host:  "h",
		Image: "i",
		Steps: []deploy.StepResult{
			{Name: deploy.StepTrimLogs, Status: deploy.StatusIgnored, Duration: 1500 * time.Microsecond},
			{Name: deploy.StepComposeDown, Status: deploy.StatusSkipped},
		},
		FailedStep: deploy.StepComposeDown,
	})
	want := "Deploy failed: i -> h\n  trim-logs        ignored  2ms\n  compose-down     skipped\n"
	if buf.String() != want {
		t.Fatalf("summary = %q\nwant %q", buf.String(), want)
	}
}
