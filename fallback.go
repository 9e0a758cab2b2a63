package main

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

// stageAttempts bounds every retryable stage to a constant number of
// invocations regardless of caller.
const stageAttempts = 2

// attemptFunc is one isolated stage invocation. corrective is empty on the
// first attempt; after a validation failure it carries an explicit
// instruction for the retry. No state is shared between attempts.
type attemptFunc func(ctx context.Context, corrective string) (string, error)

// FallbackResolver runs a stage, validates its output, and retries exactly
// once after a fixed backoff. A stage's own output is the only accepted
// result; emptiness or invalid output surfaces as a StageFailure, never a
// silently substituted value.
type FallbackResolver struct {
	backoff time.Duration
	sleep   func(time.Duration)
}

// NewFallbackResolver creates a resolver with a fixed retry backoff.
func NewFallbackResolver(backoff time.Duration) *FallbackResolver {
	return &FallbackResolver{backoff: backoff, sleep: time.Sleep}
}

// Resolve calls attempt up to stageAttempts times. targetLanguage selects
// the output validation: "" checks emptiness only, otherwise the output
// must also read as the target language. Returns the accepted text and the
// number of attempts made.
func (r *FallbackResolver) Resolve(ctx context.Context, stage, targetLanguage string, attempt attemptFunc) (string, int, error) {
	var lastErr error
	corrective := ""

	for n := 1; n <= stageAttempts; n++ {
		if n > 1 {
			r.sleep(r.backoff)
		}

		out, err := attempt(ctx, corrective)
		if err == nil {
			if verr := validateStageOutput(out, targetLanguage); verr != nil {
				err = verr
			} else {
				return strings.TrimSpace(out), n, nil
			}
		}
		lastErr = err

		corrective = ""
		var verr *ValidationError
		if errors.As(err, &verr) {
			corrective = verr.Corrective
		}
		log.Printf("✗ %s attempt %d/%d failed: %v", stage, n, stageAttempts, err)
	}

	return "", stageAttempts, &StageFailure{Stage: stage, Attempts: stageAttempts, Err: lastErr}
}
