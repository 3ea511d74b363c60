package main

import (
	"path/filepath"
	"testing"

	"github.com/danmuck/ampm/internal/testutil/testlog"
)

func TestGenerateThenValidate(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{"client", "server"} {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := run([]string{"--kind", kind, "--output", path}); err != nil {
			t.Fatalf("%s generate: %v", kind, err)
		}
		if err := run([]string{"--kind", kind, "--output", path}); err == nil {
			t.Fatalf("%s: expected refusal without --force", kind)
		}
		if err := run([]string{"--kind", kind, "--output", path, "--force"}); err != nil {
			t.Fatalf("%s overwrite: %v", kind, err)
		}
		if err := run([]string{"--kind", kind, "--validate", "--input", path}); err != nil {
			t.Fatalf("%s validate: %v", kind, err)
		}
	}
	if err := run([]string{"--kind", "kiosk"}); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
