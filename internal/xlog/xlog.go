// Package xlog provides the structured logging of the lowering pipeline.
// driver.Lower logs the start and end of each run and the layout table
// logs each type's registration and finalization, at debug level, tagged
// with a module or type name and the goroutine id, the way the teacher's
// internal/debug package tags every log line. Symbol-table build, borrow
// check and vtable finalization do not log.
package xlog

import (
	"sync"

	"github.com/timandy/routine"
	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	logger = l
}

// SetLogger replaces the package-level logger, which init sets to zap's
// production logger (or a no-op logger if that cannot be built).
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Enabled reports whether trace-level logging is compiled in. Built as a
// //go:build trace toggle mirroring the teacher's debug.Enabled constant;
// trace_on.go and trace_off.go define traceEnabled for builds with and
// without the trace tag.
var Enabled = traceEnabled

// Stage logs a pipeline stage transition (such as lower.begin or
// layout.register) for a module or type name.
func Stage(stage, module string, fields ...zap.Field) {
	fields = append(fields, zap.Int64("goroutine", routine.Goid()))
	current().Debug(stage, append([]zap.Field{zap.String("module", module)}, fields...)...)
}

// Error logs an internal-invariant violation. The core never surfaces
// these to users; they indicate a compiler bug (see spec §7).
func Error(msg string, fields ...zap.Field) {
	current().Error(msg, fields...)
}

// Trace logs fine-grained tracing information, gated by Enabled so the
// formatting cost of disabled trace logs is a single branch.
func Trace(op string, kv ...any) {
	if !Enabled() {
		return
	}
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	current().Debug(op, fields...)
}
