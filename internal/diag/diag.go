// Package diag holds the error taxonomy and warning collection shared by the
// resolution, mapping and derivation passes.
package diag

import (
	"fmt"
	"strings"
)

// Code categorizes engine diagnostics.
type Code string

const (
	// Fatal codes.
	UnresolvedReference   Code = "UnresolvedReference"
	CyclicReference       Code = "CyclicReference"
	UntypedSchemaRejected Code = "UntypedSchemaRejected"
	InvalidOverride       Code = "InvalidOverride"
	WarningsRejected      Code = "WarningsRejected"

	// Warning codes.
	AmbiguousOneOfMembership     Code = "AmbiguousOneOfMembership"
	DynamicTypeUsed              Code = "DynamicTypeUsed"
	MissingDiscriminatorProperty Code = "MissingDiscriminatorProperty"
	DiscriminatorMappingDropped  Code = "DiscriminatorMappingDropped"
	UnnamedInlineSchema          Code = "UnnamedInlineSchema"
	DuplicateOperationID         Code = "DuplicateOperationID"
)

// Sentinels for errors.Is matching by code.
var (
	ErrUnresolvedReference   = &Error{Code: UnresolvedReference}
	ErrCyclicReference       = &Error{Code: CyclicReference}
	ErrUntypedSchemaRejected = &Error{Code: UntypedSchemaRejected}
	ErrInvalidOverride       = &Error{Code: InvalidOverride}
	ErrWarningsRejected      = &Error{Code: WarningsRejected}
)

// Error is a fatal engine error. Subject names the schema, reference or
// operation at fault; Pointer locates it in the source document when known.
type Error struct {
	Code    Code
	Subject string
	Pointer string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Subject)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same code. Sentinels carry
// no subject, so errors.Is(err, diag.ErrCyclicReference) matches any cycle.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Subject == "" || t.Subject == e.Subject
}

// Errorf builds an *Error with a formatted message.
func Errorf(code Code, subject, format string, args ...any) *Error {
	return &Error{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// Warning is a non-fatal diagnostic returned alongside successful output.
type Warning struct {
	Code    Code   `json:"code"`
	Subject string `json:"subject,omitempty"`
	Pointer string `json:"pointer,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	var b strings.Builder
	b.WriteString(string(w.Code))
	if w.Subject != "" {
		b.WriteString(" [")
		b.WriteString(w.Subject)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(w.Message)
	return b.String()
}

// Collector accumulates warnings in arrival order, dropping exact duplicates.
type Collector struct {
	list []Warning
	seen map[Warning]struct{}
}

// Add records w unless an identical warning was already recorded.
func (c *Collector) Add(w Warning) {
	if c.seen == nil {
		c.seen = make(map[Warning]struct{})
	}
	if _, dup := c.seen[w]; dup {
		return
	}
	c.seen[w] = struct{}{}
	c.list = append(c.list, w)
}

// Warnf records a warning with a formatted message.
func (c *Collector) Warnf(code Code, subject, pointer, format string, args ...any) {
	c.Add(Warning{Code: code, Subject: subject, Pointer: pointer, Message: fmt.Sprintf(format, args...)})
}

// Warnings returns a copy of the recorded warnings.
func (c *Collector) Warnings() []Warning {
	if c == nil || len(c.list) == 0 {
		return nil
	}
	out := make([]Warning, len(c.list))
	copy(out, c.list)
	return out
}

// Len returns the number of distinct warnings recorded.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	return len(c.list)
}

// Reject converts a non-empty warning list into a WarningsRejected error.
func Reject(warnings []Warning) error {
	if len(warnings) == 0 {
		return nil
	}
	lines := make([]string, 0, len(warnings))
	for _, w := range warnings {
		lines = append(lines, "  - "+w.String())
	}
	return &Error{
		Code:    WarningsRejected,
		Message: fmt.Sprintf("generation produced %d warning(s) and warnings are fatal:\n%s", len(warnings), strings.Join(lines, "\n")),
	}
}
