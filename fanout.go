package main

import (
	"context"
	"log"
	"time"
)

// reasonBaselineMissing marks a fan-out slide whose baseline narration is
// unavailable; the translation capability is never invoked for it.
const reasonBaselineMissing = "baseline missing"

// LanguageFanout derives one language track from the baseline's accepted
// output. Each slide is translated rather than re-analyzed and
// regenerated; its cached record is keyed to a fingerprint of the baseline
// text, so a regenerated baseline invalidates the translation without
// touching the original slide fingerprint.
type LanguageFanout struct {
	caps       Capabilities
	store      *ProgressStore
	deck       DeckIO
	resolver   *FallbackResolver
	forceRetry bool
}

// NewLanguageFanout creates the per-unit pipeline for a derived language.
func NewLanguageFanout(caps Capabilities, store *ProgressStore, deck DeckIO, resolver *FallbackResolver, forceRetry bool) *LanguageFanout {
	return &LanguageFanout{
		caps:       caps,
		store:      store,
		deck:       deck,
		resolver:   resolver,
		forceRetry: forceRetry,
	}
}

// Run translates every slide with an accepted baseline narration into the
// target language. baseline maps slide index to the baseline's accepted
// output text; slides absent from it are marked errored.
func (f *LanguageFanout) Run(ctx context.Context, doc *Document, baseline map[int]string, language string) []SlideResult {
	records := f.store.Load(ctx)
	results := make([]SlideResult, 0, len(doc.Slides))

	for _, slide := range doc.Slides {
		src, ok := baseline[slide.Index]
		if !ok || src == "" {
			log.Printf("✗ Slide %d (%s): %s", slide.Index+1, language, reasonBaselineMissing)
			results = append(results, f.fail(ctx, slide, "", reasonBaselineMissing))
			continue
		}

		srcFingerprint := fingerprint(src)
		if rec, ok := records[slide.Index]; ok && ShouldSkip(&rec, srcFingerprint, f.forceRetry) {
			log.Printf("Skipping slide %d (%s, already %s)", slide.Index+1, language, rec.Status)
			results = append(results, SlideResult{
				Index:      slide.Index,
				Status:     rec.Status,
				OutputText: rec.OutputText,
				ErrReason:  rec.ErrorReason,
				Skipped:    true,
			})
			continue
		}

		log.Printf("→ Translating slide %d/%d to %s", slide.Index+1, len(doc.Slides), language)
		text, attempts, err := f.resolver.Resolve(ctx, "translation", language, func(ctx context.Context, corrective string) (string, error) {
			return f.caps.TranslateNotes(ctx, src, language, doc.Style, corrective)
		})
		if err != nil {
			log.Printf("✗ Slide %d (%s) failed: %v", slide.Index+1, language, err)
			res := f.failWithAttempts(ctx, slide, srcFingerprint, err.Error(), attempts)
			results = append(results, res)
			continue
		}

		rec := ProgressRecord{
			ContentFingerprint: srcFingerprint,
			Status:             StatusSuccess,
			OutputText:         text,
			AttemptCount:       attempts,
			UpdatedAt:          time.Now().UTC(),
		}
		if err := f.store.Upsert(ctx, slide.Index, rec); err != nil {
			results = append(results, f.failWithAttempts(ctx, slide, srcFingerprint, err.Error(), attempts))
			continue
		}
		if err := f.deck.WriteNotes(doc, slide.Index, language, text); err != nil {
			results = append(results, f.failWithAttempts(ctx, slide, srcFingerprint, err.Error(), attempts))
			continue
		}

		log.Printf("✓ Slide %d translated to %s", slide.Index+1, language)
		results = append(results, SlideResult{Index: slide.Index, Status: StatusSuccess, OutputText: text})
	}

	return results
}

func (f *LanguageFanout) fail(ctx context.Context, slide Slide, srcFingerprint, reason string) SlideResult {
	return f.failWithAttempts(ctx, slide, srcFingerprint, reason, 0)
}

func (f *LanguageFanout) failWithAttempts(ctx context.Context, slide Slide, srcFingerprint, reason string, attempts int) SlideResult {
	rec := ProgressRecord{
		ContentFingerprint: srcFingerprint,
		Status:             StatusError,
		ErrorReason:        reason,
		AttemptCount:       attempts,
		UpdatedAt:          time.Now().UTC(),
	}
	if err := f.store.Upsert(ctx, slide.Index, rec); err != nil {
		log.Printf("Warning: recording slide %d failure: %v", slide.Index+1, err)
	}
	return SlideResult{Index: slide.Index, Status: StatusError, ErrReason: reason}
}
