package main

import (
	"context"
	"errors"
	"log"
	"strings"
)

// BuildGlobalContext returns the unit's whole-deck context, reusing the
// value cached by a previous run when present. It is computed from all
// slide visuals in a single call and is read-only for the rest of the run.
// Failure here is fatal to the processing unit: no meaningful per-slide
// work is possible without it.
func BuildGlobalContext(ctx context.Context, caps Capabilities, store *ProgressStore, doc *Document) (string, error) {
	if cached := strings.TrimSpace(store.GlobalContext(ctx)); cached != "" {
		log.Printf("Using cached global context for %s", doc.ID)
		return cached, nil
	}

	log.Printf("→ Pass 1: synthesizing global context for %s (%d slides)", doc.ID, len(doc.Slides))
	visuals := make([]VisualRef, len(doc.Slides))
	for i, slide := range doc.Slides {
		visuals[i] = slide.Visual
	}

	overview, err := caps.SynthesizeOverview(ctx, visuals)
	if err != nil {
		return "", &FatalIOError{Op: "synthesizing global context", Err: err}
	}
	overview = strings.TrimSpace(overview)
	if overview == "" {
		return "", &FatalIOError{Op: "synthesizing global context", Err: errors.New("empty overview")}
	}

	if err := store.SetGlobalContext(ctx, overview); err != nil {
		return "", &FatalIOError{Op: "caching global context", Err: err}
	}
	log.Printf("✓ Global context synthesized (%d chars)", len(overview))
	return overview, nil
}
