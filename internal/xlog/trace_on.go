//go:build trace

package xlog

func traceEnabled() bool { return true }
