package cat

import (
	"bytes"
	"strings"
	"testing"
)

func restoreLoggers(t *testing.T) {
	t.Helper()
	mu.RLock()
	ops, diag, trace := opsLogger, diagLogger, traceLogger
	mu.RUnlock()
	t.Cleanup(func() {
		mu.Lock()
		opsLogger, diagLogger, traceLogger = ops, diag, trace
		mu.Unlock()
	})
}

func TestSetLogWriters(t *testing.T) {
	restoreLoggers(t)

	var ops, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Trace: &trace})

	Opsf("run %s started", "run_1")
	Diagf("dropped")
	Tracef("step %d", 3)

	if !strings.Contains(ops.String(), "[cat] ") || !strings.Contains(ops.String(), "run run_1 started") {
		t.Errorf("ops output = %q", ops.String())
	}
	if !strings.Contains(trace.String(), "step 3") {
		t.Errorf("trace output = %q", trace.String())
	}
	if strings.Contains(ops.String()+trace.String(), "dropped") {
		t.Error("diag stream is disabled but was written")
	}

	// nil writers disable every stream
	SetLogWriters(LogWriters{})
	ops.Reset()
	Opsf("should not appear")
	if ops.Len() > 0 {
		t.Errorf("ops output after disabling = %q, want empty", ops.String())
	}
}

func TestSetPrintLevel(t *testing.T) {
	restoreLoggers(t)

	tests := []struct {
		level     PrintLevel
		wantOps   bool
		wantDiag  bool
		wantTrace bool
	}{
		{Mute, false, false, false},
		{Normal, true, false, false},
		{Verbose, true, true, false},
		{VVerbose, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			SetPrintLevel(tt.level, &buf)
			Opsf("ops")
			Diagf("diag")
			Tracef("trace")

			out := buf.String()
			if got := strings.Contains(out, "ops"); got != tt.wantOps {
				t.Errorf("ops written = %v, want %v", got, tt.wantOps)
			}
			if got := strings.Contains(out, "diag"); got != tt.wantDiag {
				t.Errorf("diag written = %v, want %v", got, tt.wantDiag)
			}
			if got := strings.Contains(out, "trace"); got != tt.wantTrace {
				t.Errorf("trace written = %v, want %v", got, tt.wantTrace)
			}
		})
	}
}

func TestParsePrintLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    PrintLevel
		wantErr bool
	}{
		{"mute", Mute, false},
		{"", Normal, false},
		{" Normal ", Normal, false},
		{"VERBOSE", Verbose, false},
		{"vverbose", VVerbose, false},
		{"loud", Normal, true},
	}
	for _, tt := range tests {
		got, err := ParsePrintLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePrintLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePrintLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if s := PrintLevel(9).String(); s != "PrintLevel(9)" {
		t.Errorf("String() = %q", s)
	}
}
