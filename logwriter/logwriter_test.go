package logwriter

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestDisabled(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, false, false)
	if err := w.Create(); err != nil {
		t.Fatal(err)
	}
	defer w.Cleanup()
	w.Logger("").Println("hello")
	if buf.Len() != 0 {
		t.Errorf("Expecting no output but got %q\n", buf.String())
	}
	if w.Writer != io.Discard {
		t.Errorf("Expecting discarded output\n")
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, true, false)
	if err := w.Create(); err != nil {
		t.Fatal(err)
	}
	defer w.Cleanup()
	if !color.NoColor {
		t.Errorf("Expecting colour disabled\n")
	}
	w.Logger("dinephil: ").Println("hello")
	if !strings.HasPrefix(buf.String(), "dinephil: ") || !strings.HasSuffix(buf.String(), "hello\n") {
		t.Errorf("Expecting prefixed log line but got %q\n", buf.String())
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	w := NewFile(path, true, true)
	if err := w.Create(); err != nil {
		t.Fatal(err)
	}
	w.Logger("").Println("to file")
	w.Cleanup()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "to file") {
		t.Errorf("Expecting log file to contain line but got %q\n", string(b))
	}
}

func TestBadFile(t *testing.T) {
	w := NewFile(filepath.Join(t.TempDir(), "missing", "run.log"), true, false)
	if err := w.Create(); err == nil {
		t.Errorf("Expecting error creating log file in missing dir\n")
	}
}
