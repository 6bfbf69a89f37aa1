package cat

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures all three logging streams at once.
// Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger("[cat] ", w.Ops)
	diagLogger = newLogger("[cat] ", w.Diag)
	traceLogger = newLogger("[cat] ", w.Trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// PrintLevel is the verbosity of the track finder.
type PrintLevel int

const (
	Mute PrintLevel = iota
	Normal
	Verbose
	VVerbose
)

func (l PrintLevel) String() string {
	switch l {
	case Mute:
		return "mute"
	case Normal:
		return "normal"
	case Verbose:
		return "verbose"
	case VVerbose:
		return "vverbose"
	}
	return fmt.Sprintf("PrintLevel(%d)", int(l))
}

// ParsePrintLevel accepts the level names case-insensitively.
func ParsePrintLevel(s string) (PrintLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mute":
		return Mute, nil
	case "", "normal":
		return Normal, nil
	case "verbose":
		return Verbose, nil
	case "vverbose":
		return VVerbose, nil
	}
	return Normal, fmt.Errorf("unknown print level %q", s)
}

// SetPrintLevel routes the streams enabled at level to w: ops at normal,
// diag from verbose, trace at vverbose.
func SetPrintLevel(level PrintLevel, w io.Writer) {
	var lw LogWriters
	if level >= Normal {
		lw.Ops = w
	}
	if level >= Verbose {
		lw.Diag = w
	}
	if level >= VVerbose {
		lw.Trace = w
	}
	SetLogWriters(lw)
}

// Opsf logs to the ops stream (actionable warnings, skipped events, run lifecycle).
func Opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Diagf logs to the diag stream (per-event diagnostics, degenerate fits).
func Diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Tracef logs to the trace stream (per-step growth and compatibility telemetry).
func Tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
