package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/graderqueue/internal/auth/authtest"
	"github.com/zulandar/graderqueue/internal/config"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `
database:
  driver: sqlite
  path: ` + filepath.Join(dir, "gq.db") + `
auth:
  accept_interface_tokens: true
catalog:
  server_types:
    - name: python-runner
      tags: [python]
    - name: contest-box
      tags: [python, contest]
`
	path := filepath.Join(dir, "graderqueue.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "gq dev") {
		t.Errorf("expected output to contain 'gq dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	for _, want := range []string{"gq 1.0.0", "commit: abc123", "built: 2026-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := runCmd(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, sub := range []string{"serve", "db", "platform", "token", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q, got: %s", sub, out)
		}
	}
}

func TestExecute_ReturnsExitCode(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"db", "init", "--config", "/nonexistent/graderqueue.yaml"})
	if code := execute(cmd); code != 1 {
		t.Errorf("execute = %d, want 1", code)
	}
}

func TestDBInitCmd_MissingConfig(t *testing.T) {
	_, err := runCmd(t, "db", "init", "--config", "/nonexistent/graderqueue.yaml")
	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain 'load config'", err.Error())
	}
}

func TestProvisioningFlow(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := runCmd(t, "db", "init", "-c", cfgPath)
	if err != nil {
		t.Fatalf("db init: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Seeded 2 server types: python-runner contest-box") {
		t.Errorf("db init output = %s", out)
	}

	keyPath := filepath.Join(t.TempDir(), "platform.pub")
	if err := os.WriteFile(keyPath, []byte(authtest.PublicKeyPEM(t, authtest.NewKey(t))), 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}

	out, err = runCmd(t, "platform", "add", "algorea", "-c", cfgPath,
		"--public-key", keyPath,
		"--restrict-path", "$ROOT/algorea/",
		"--force-tag", "contest")
	if err != nil {
		t.Fatalf("platform add: %v\n%s", err, out)
	}
	if !strings.Contains(out, `Registered platform "algorea" with id 1`) {
		t.Errorf("platform add output = %s", out)
	}

	out, err = runCmd(t, "platform", "list", "-c", cfgPath)
	if err != nil {
		t.Fatalf("platform list: %v", err)
	}
	if !strings.Contains(out, "algorea") || !strings.Contains(out, "$ROOT/algorea/") {
		t.Errorf("platform list output = %s", out)
	}

	out, err = runCmd(t, "token", "issue", "-c", cfgPath, "--ttl", "5m")
	if err != nil {
		t.Fatalf("token issue: %v", err)
	}
	if fields := strings.Fields(out); len(fields) < 1 || len(fields[0]) != 64 {
		t.Errorf("token issue output = %q", out)
	}
}

func TestPlatformList_Empty(t *testing.T) {
	cfgPath := writeConfig(t)
	if _, err := runCmd(t, "db", "init", "-c", cfgPath); err != nil {
		t.Fatalf("db init: %v", err)
	}
	out, err := runCmd(t, "platform", "list", "-c", cfgPath)
	if err != nil {
		t.Fatalf("platform list: %v", err)
	}
	if !strings.Contains(out, "No platforms registered.") {
		t.Errorf("output = %s", out)
	}
}

func TestPlatformAdd_RequiresKey(t *testing.T) {
	_, err := runCmd(t, "platform", "add", "x", "-c", writeConfig(t))
	if err == nil || !strings.Contains(err.Error(), "public-key") {
		t.Errorf("err = %v, want missing public-key flag", err)
	}
}

func TestLoadServiceKey_Empty(t *testing.T) {
	key, err := loadServiceKey(configAuth(""))
	if err != nil || key != nil {
		t.Errorf("loadServiceKey(\"\") = %v, %v", key, err)
	}
	if _, err := loadServiceKey(configAuth("/nonexistent/key.pem")); err == nil {
		t.Error("expected error for missing key file")
	}
}

func configAuth(keyFile string) config.AuthConfig {
	return config.AuthConfig{PrivateKeyFile: keyFile}
}
