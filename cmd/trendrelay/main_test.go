package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestStandaloneBinaryWorksOutsideRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary copy/exec test is unix-focused")
	}

	binaryPath := filepath.Join(t.TempDir(), "trendrelay")
	build := exec.Command("go", "build", "-o", binaryPath, ".")
	build.Env = os.Environ()
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, string(out))
	}

	outside := t.TempDir()
	env := append(os.Environ(), "XDG_CONFIG_HOME="+outside)

	version := exec.Command(binaryPath, "version")
	version.Dir = outside
	version.Env = env
	out, err := version.CombinedOutput()
	if err != nil {
		t.Fatalf("version failed: %v\n%s", err, string(out))
	}
	if !strings.HasPrefix(string(out), "trendrelay ") {
		t.Fatalf("unexpected version output: %s", out)
	}

	dryRun := exec.Command(binaryPath, "send", "--dry-run")
	dryRun.Dir = outside
	dryRun.Env = env
	dryRun.Stdin = strings.NewReader(`{"tm_data":"{\"monitorId\":\"M1\"}"}`)
	out, err = dryRun.CombinedOutput()
	if err != nil {
		t.Fatalf("send --dry-run failed: %v\n%s", err, string(out))
	}
	if !strings.Contains(string(out), "监控ID: M1") {
		t.Fatalf("dry run output missing monitor id: %s", out)
	}

	help := exec.Command(binaryPath, "--help")
	help.Dir = outside
	help.Env = env
	if out, err := help.CombinedOutput(); err != nil {
		t.Fatalf("--help failed: %v\n%s", err, string(out))
	}

	serveHelp := exec.Command(binaryPath, "serve", "--help")
	serveHelp.Dir = outside
	serveHelp.Env = env
	out, err = serveHelp.CombinedOutput()
	if err != nil {
		t.Fatalf("serve --help failed: %v\n%s", err, string(out))
	}
	if !strings.Contains(string(out), "--watch-config") || !strings.Contains(string(out), "SIGHUP") {
		t.Fatalf("serve --help missing reload documentation:\n%s", string(out))
	}
}
