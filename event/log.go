package event

import (
	"fmt"
	"io"
	"log"

	"github.com/fatih/color"
)

var kindColour = map[Kind]func(string, ...interface{}) string{
	ThinkingStart: color.BlueString,
	Acquiring:     color.YellowString,
	Acquired:      color.CyanString,
	EatingStart:   color.GreenString,
	EatingEnd:     color.MagentaString,
}

// Logger writes one line per event.
type Logger struct {
	*log.Logger
}

// NewLogger creates a Logger writing to w with the standard log flags plus
// microseconds.
func NewLogger(w io.Writer) *Logger {
	return &Logger{Logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
}

func (l *Logger) Emit(e Event) {
	paint, ok := kindColour[e.Kind]
	if !ok {
		paint = fmt.Sprintf
	}
	kind := paint(e.Kind.String())
	if e.Duration > 0 {
		l.Printf("philosopher %d %s %s", e.Philosopher, kind, e.Duration)
		return
	}
	l.Printf("philosopher %d %s", e.Philosopher, kind)
}
