package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelforge/internal/config"
	"reelforge/internal/testsupport"
)

// toolStub writes the -o target of every call, and the scene file that
// follows "--" for scene preparation, so a drained job finds its artifacts.
const toolStub = `out=""; scene=""; prev=""; after=0
for a in "$@"; do
  if [ "$after" -gt 0 ]; then
    after=$((after+1))
    if [ "$after" -eq 3 ]; then scene="$a"; fi
  fi
  if [ "$a" = "--" ]; then after=1; fi
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
if [ -n "$scene" ]; then mkdir -p "$(dirname "$scene")"; echo scene > "$scene"; fi
if [ -n "$out" ]; then mkdir -p "$(dirname "$out")"; echo rendered > "$out"; fi
exit 0`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	firstFrame string
	output     string
	preset     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t,
		testsupport.WithStub("blender", toolStub),
		testsupport.WithStub("catmovie", toolStub),
		testsupport.WithStub("muxmovie", toolStub),
		testsupport.WithChunking(10, 0, 10, 0),
	)
	testsupport.WriteFile(t, cfg.Encoder.InitScript, 64)

	configPath := filepath.Join(homeDir, ".config", "reelforge", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	frames := make([]int, 0, 25)
	for i := 1; i <= 25; i++ {
		frames = append(frames, i)
	}
	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		firstFrame: testsupport.WriteSequence(t, filepath.Join(base, "plates"), "shot_", 4, ".png", frames...),
		output:     filepath.Join(base, "deliver", "shot.mov"),
		preset:     filepath.Join(base, "presets", "prores.blend"),
	}
}

// submitArgs returns the arguments that queue the environment's sequence.
func (env *cliTestEnv) submitArgs(extra ...string) []string {
	args := []string{"submit", env.firstFrame, "--output", env.output, "--preset", env.preset}
	return append(args, extra...)
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
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
