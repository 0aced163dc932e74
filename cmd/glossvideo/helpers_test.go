package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"glossvideo/internal/config"
	"glossvideo/internal/testsupport"
)

const ffprobeStub = `#!/bin/sh
cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":640,"height":480,"nb_frames":"30","avg_frame_rate":"30/1"}],
 "format":{"format_name":"mov,mp4,m4a,3gp,3g2,mj2","duration":"1.000000"}}
JSON
`

const ffmpegStub = `#!/bin/sh
for arg in "$@"; do
  if [ "$arg" = "-encoders" ]; then
    printf ' V....D libx264              H.264\n A....D aac                  AAC\n'
    exit 0
  fi
  last="$arg"
done
printf 'stub output' > "$last"
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	cfg.Transcode.FFmpegBinary = filepath.Join(binDir, "ffmpeg")
	cfg.Transcode.FFprobeBinary = filepath.Join(binDir, "ffprobe")
	if err := os.WriteFile(cfg.Transcode.FFmpegBinary, []byte(ffmpegStub), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	if err := os.WriteFile(cfg.Transcode.FFprobeBinary, []byte(ffprobeStub), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	cfg.Logging.Level = "error"

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// mustRun runs the CLI and fails the test on error.
func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, args, e.configPath)
	if err != nil {
		t.Fatalf("%s: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, out, stderr)
	}
	return out
}

// mustRunJSON runs the CLI with --json and decodes stdout into v.
func (e *cliTestEnv) mustRunJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out := e.mustRun(t, append([]string{"--json"}, args...)...)
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %s output: %v\n%s", args[0], err, out)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
