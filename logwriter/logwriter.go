// Package logwriter wraps a io.Writer for dinephil logging.
//
package logwriter // "github.com/nickng/dinephil/logwriter"

import (
	"bufio"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// Writer is a log writer and its configurations.
type Writer struct {
	io.Writer

	LogFile       string
	EnableLogging bool
	EnableColour  bool
	Cleanup       func()
}

// NewFile creates a new log writer to logfile, or stdout if logfile is empty.
func NewFile(logfile string, enableLogging, enableColour bool) *Writer {
	return &Writer{
		LogFile:       logfile,
		EnableLogging: enableLogging,
		EnableColour:  enableColour,
	}
}

// New creates a new log writer.
func New(w io.Writer, enableLogging, enableColour bool) *Writer {
	return &Writer{
		Writer:        w,
		EnableLogging: enableLogging,
		EnableColour:  enableColour,
	}
}

// Create initialises a new writer. Cleanup must be called when done.
//
// Colour is only enabled when logging to a terminal (see fatih/color) and
// never when logging to a file.
func (w *Writer) Create() error {
	w.Cleanup = func() {}
	if !w.EnableColour || w.LogFile != "" {
		color.NoColor = true
	}
	switch {
	case !w.EnableLogging:
		w.Writer = io.Discard
	case w.Writer != nil:
	case w.LogFile != "":
		f, err := os.Create(w.LogFile)
		if err != nil {
			return errors.Wrap(err, "create log file")
		}
		bufWriter := bufio.NewWriter(f)
		w.Writer = bufWriter
		w.Cleanup = func() {
			if err := bufWriter.Flush(); err != nil {
				log.Printf("flush: %s", err)
			}
			if err := f.Close(); err != nil {
				log.Printf("close: %s", err)
			}
		}
	default:
		w.Writer = os.Stdout
	}
	return nil
}

// Logger returns a logger writing to w with the given prefix.
func (w *Writer) Logger(prefix string) *log.Logger {
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}
