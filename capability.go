package main

import (
	"context"
	"fmt"
)

// GateVerdict is the quality-gate decision on existing notes.
type GateVerdict string

const (
	VerdictUseful  GateVerdict = "USEFUL"
	VerdictUseless GateVerdict = "USELESS"
)

// WriteRequest carries everything the generation capability needs for one slide.
type WriteRequest struct {
	Analysis       string
	GlobalContext  string
	RollingContext string
	Language       string
	Style          string // forwarded verbatim, never interpreted
	SlidePosition  string // "first", "middle" or "last"
	Corrective     string // set on the second attempt after a validation failure
}

// Capabilities is the boundary to the external content-generation system.
// Every method is a synchronous request/response call; implementations
// live in anthropic.go and gemini.go, tests use a deterministic stub.
type Capabilities interface {
	// SynthesizeOverview produces the whole-deck global context from all
	// rendered slides at once.
	SynthesizeOverview(ctx context.Context, visuals []VisualRef) (string, error)

	// AuditNotes judges whether existing notes are usable as-is for the
	// given language and slide position.
	AuditNotes(ctx context.Context, text, language, position string) (GateVerdict, error)

	// AnalyzeSlide extracts a structured description from one rendered slide.
	AnalyzeSlide(ctx context.Context, visual VisualRef) (string, error)

	// WriteSlideNotes generates narration for one slide.
	WriteSlideNotes(ctx context.Context, req WriteRequest) (string, error)

	// TranslateNotes renders baseline narration into the target language.
	TranslateNotes(ctx context.Context, text, targetLanguage, style, corrective string) (string, error)
}

// StageFailure reports a stage that produced no usable output after the
// bounded retry. The slide is marked errored; the unit continues.
type StageFailure struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// ValidationError rejects stage output (empty or wrong-language text).
// Corrective, when set, is an explicit instruction for the retry attempt.
type ValidationError struct {
	Reason     string
	Corrective string
}

func (e *ValidationError) Error() string { return e.Reason }

// FatalIOError aborts the current processing unit only. The batch
// coordinator records it and moves on to the next unit.
type FatalIOError struct {
	Op  string
	Err error
}

func (e *FatalIOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalIOError) Unwrap() error { return e.Err }
