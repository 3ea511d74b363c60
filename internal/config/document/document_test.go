package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseAcceptsCommentsAndTrailingCommas(t *testing.T) {
	doc, err := Parse([]byte(`{
		// scene selection
		"scene": "lobby",
		/* frame pacing */
		"fps": 60,
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc["scene"] != "lobby" {
		t.Fatalf("unexpected scene: %v", doc["scene"])
	}
	if doc["fps"] != float64(60) {
		t.Fatalf("unexpected fps: %v", doc["fps"])
	}
}

func TestParseRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`[1,2]`, `"text"`, `null`} {
		if _, err := Parse([]byte(raw)); !errors.Is(err, ErrNotObject) {
			t.Fatalf("input %s: expected ErrNotObject, got %v", raw, err)
		}
	}
	if _, err := Parse([]byte(`{"open":`)); err == nil {
		t.Fatalf("expected syntax error")
	}
}

func TestLoadWrapsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing file error")
	}
	if err := os.WriteFile(path, []byte(`{"debug": true}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc["debug"] != true {
		t.Fatalf("unexpected doc: %v", doc)
	}
}
