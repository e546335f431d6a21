package compiler

import (
	"fmt"
	"log/slog"
	"regexp"
)

// Logger traces schedule_and_lower's pipeline stages. It is an explicit
// collaborator rather than a package-global, the same way a Scheduler
// takes its IdModel and fusion explicitly instead of reaching for shared
// state.
type Logger interface {
	Enter(stage string)
	Exit(stage string)
	Error(stage string, err error)
}

type noopLogger struct{}

func (noopLogger) Enter(string)        {}
func (noopLogger) Exit(string)         {}
func (noopLogger) Error(string, error) {}

// slogLogger implements Logger over log/slog, gating Enter/Exit on
// Options.FunctionTrace: a stage is only logged if its name matches one
// of the compiled regexps.
type slogLogger struct {
	base  *slog.Logger
	trace []*regexp.Regexp
}

// NewLogger builds a Logger over base (slog.Default() if nil), tracing
// entry/exit only for stage names matching one of functionTrace's
// regular expressions.
func NewLogger(base *slog.Logger, functionTrace []string) (Logger, error) {
	if base == nil {
		base = slog.Default()
	}
	pats := make([]*regexp.Regexp, 0, len(functionTrace))
	for _, p := range functionTrace {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid function_trace pattern %q: %w", p, err)
		}
		pats = append(pats, re)
	}
	return &slogLogger{base: base, trace: pats}, nil
}

func (l *slogLogger) traced(stage string) bool {
	for _, re := range l.trace {
		if re.MatchString(stage) {
			return true
		}
	}
	return false
}

func (l *slogLogger) Enter(stage string) {
	if l.traced(stage) {
		l.base.Debug("enter", "stage", stage)
	}
}

func (l *slogLogger) Exit(stage string) {
	if l.traced(stage) {
		l.base.Debug("exit", "stage", stage)
	}
}

func (l *slogLogger) Error(stage string, err error) {
	l.base.Error("stage failed", "stage", stage, "error", err)
}
