package observability

import (
	"path/filepath"
	"testing"

	"gopkg.in/natefinch/lumberjack.v2"
)

func TestRotatingFileAppliesFloors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ampm.log")
	w := RotatingFile(FileConfig{Filename: path, MaxBackups: 4})
	lj, ok := w.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("unexpected writer type %T", w)
	}
	defer lj.Close()
	if lj.MaxSize != 10 || lj.MaxAge != 7 {
		t.Fatalf("floors not applied: size=%d age=%d", lj.MaxSize, lj.MaxAge)
	}
	if lj.MaxBackups != 4 {
		t.Fatalf("explicit backups overridden: %d", lj.MaxBackups)
	}
	if _, err := w.Write([]byte("{\"level\":\"info\"}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
}
