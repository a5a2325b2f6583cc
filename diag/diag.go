// Package diag implements the deferred-diagnostic model of spec §6.3/§7.1:
// lowering never aborts on malformed input. Instead every problem is
// recorded as a Diagnostic and lowering proceeds with a best-effort
// placeholder.
package diag

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Severity classifies a Diagnostic. The distilled spec is silent on
// severity (§6.3 only names "message"); the original front end this spec
// was distilled from distinguishes error/warning/hint (e.g. the cast
// widening note in spec §4.3 is explicitly a hint), so that distinction is
// carried here as a SPEC_FULL supplement.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Span identifies a byte range within a single source file. Both the
// file id and whether a span is present at all are optional per spec
// §6.3 ("span?").
type Span struct {
	File  string
	Start int
	End   int
}

// Contains reports whether s fully contains other (same file only).
func (s Span) Contains(other Span) bool {
	return s.File == other.File && s.Start <= other.Start && other.End <= s.End
}

// Merge returns the smallest span containing both s and other. Panics if
// they are not in the same file; callers should not merge cross-file
// spans.
func (s Span) Merge(other Span) Span {
	if s.File != other.File {
		panic("diag: cannot merge spans from different files")
	}
	start, end := s.Start, s.End
	if other.Start < start {
		start = other.Start
	}
	if other.End > end {
		end = other.End
	}
	return Span{File: s.File, Start: start, End: end}
}

// Diagnostic is a single deferred problem recorded during lowering.
type Diagnostic struct {
	Severity Severity
	Message  string
	Span     *Span
	BatchID  uuid.UUID // correlates every diagnostic from one driver.Lower run
}

func (d Diagnostic) String() string {
	if d.Span == nil {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s:%d-%d: %s: %s", d.Span.File, d.Span.Start, d.Span.End, d.Severity, d.Message)
}

// Bag accumulates diagnostics for a single lowering pass and orders them
// by span as required by spec §5 ("Diagnostics within a module are
// ordered by span (file, then byte offset)").
type Bag struct {
	batch uuid.UUID
	items []Diagnostic
}

// NewBag creates an empty diagnostic bag stamped with a fresh batch id.
func NewBag() *Bag {
	return &Bag{batch: uuid.New()}
}

// Error records an error-severity diagnostic.
func (b *Bag) Error(span *Span, format string, args ...any) {
	b.add(SeverityError, span, format, args...)
}

// Warning records a warning-severity diagnostic.
func (b *Bag) Warning(span *Span, format string, args ...any) {
	b.add(SeverityWarning, span, format, args...)
}

// Hint records a hint-severity diagnostic, such as the cast-widening
// suggestion in spec §4.3.
func (b *Bag) Hint(span *Span, format string, args ...any) {
	b.add(SeverityHint, span, format, args...)
}

func (b *Bag) add(sev Severity, span *Span, format string, args ...any) {
	b.items = append(b.items, Diagnostic{
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
		BatchID:  b.batch,
	})
}

// HasErrors reports whether any error-severity diagnostic was recorded.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Sorted returns every diagnostic ordered by (file, start offset),
// diagnostics with no span sorting first.
func (b *Bag) Sorted() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Span, out[j].Span
		switch {
		case si == nil && sj == nil:
			return false
		case si == nil:
			return true
		case sj == nil:
			return false
		case si.File != sj.File:
			return si.File < sj.File
		default:
			return si.Start < sj.Start
		}
	})
	return out
}

// Len returns the number of recorded diagnostics.
func (b *Bag) Len() int { return len(b.items) }
