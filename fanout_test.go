package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baselineFor(doc *Document) map[int]string {
	baseline := make(map[int]string)
	for i := range doc.Slides {
		baseline[i] = fmt.Sprintf("Baseline narration for slide %d with plenty of detail.", i+1)
	}
	return baseline
}

func TestFanoutTranslatesEverySlide(t *testing.T) {
	doc := newTestDocument("", "", "")
	baseline := baselineFor(doc)
	stub := &stubCapabilities{}
	store := newTestStore(t, doc, "fr")
	deck := newMemDeckIO()

	fanout := NewLanguageFanout(stub, store, deck, newTestResolver(), false)
	results := fanout.Run(context.Background(), doc, baseline, "fr")

	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, StatusSuccess, res.Status)
		assert.Contains(t, res.OutputText, baseline[i])
		assert.Equal(t, res.OutputText, deck.written[fmt.Sprintf("fr/%d", i)])
	}
	assert.Equal(t, 3, stub.translateCalls)
	// Fan-out never re-runs the baseline stages.
	assert.Equal(t, 0, stub.analyzeCalls)
	assert.Equal(t, 0, stub.writeCalls)
	assert.Equal(t, 0, stub.auditCalls)
}

func TestFanoutSecondRunSkips(t *testing.T) {
	doc := newTestDocument("", "")
	baseline := baselineFor(doc)
	stub := &stubCapabilities{}
	store := newTestStore(t, doc, "fr")

	fanout := NewLanguageFanout(stub, store, newMemDeckIO(), newTestResolver(), false)
	first := fanout.Run(context.Background(), doc, baseline, "fr")
	second := fanout.Run(context.Background(), doc, baseline, "fr")

	assert.Equal(t, 2, stub.translateCalls)
	for i, res := range second {
		assert.True(t, res.Skipped)
		assert.Equal(t, first[i].OutputText, res.OutputText)
	}
}

func TestFanoutMissingBaselineNeverCallsTranslator(t *testing.T) {
	doc := newTestDocument("", "", "")
	baseline := baselineFor(doc)
	delete(baseline, 1)
	stub := &stubCapabilities{}
	store := newTestStore(t, doc, "fr")

	fanout := NewLanguageFanout(stub, store, newMemDeckIO(), newTestResolver(), false)
	results := fanout.Run(context.Background(), doc, baseline, "fr")

	require.Len(t, results, 3)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, StatusError, results[1].Status)
	assert.Equal(t, reasonBaselineMissing, results[1].ErrReason)
	assert.Equal(t, StatusSuccess, results[2].Status)
	assert.Equal(t, 2, stub.translateCalls)

	rec := store.Load(context.Background())[1]
	assert.Equal(t, StatusError, rec.Status)
	assert.Equal(t, reasonBaselineMissing, rec.ErrorReason)
}

func TestFanoutRetranslatesWhenBaselineChanges(t *testing.T) {
	doc := newTestDocument("", "")
	baseline := baselineFor(doc)
	stub := &stubCapabilities{}
	store := newTestStore(t, doc, "fr")

	fanout := NewLanguageFanout(stub, store, newMemDeckIO(), newTestResolver(), false)
	fanout.Run(context.Background(), doc, baseline, "fr")
	require.Equal(t, 2, stub.translateCalls)

	// Regenerated baseline narration for the first slide only.
	baseline[0] = "A freshly regenerated opening narration with different content."
	results := fanout.Run(context.Background(), doc, baseline, "fr")

	assert.Equal(t, 3, stub.translateCalls)
	assert.False(t, results[0].Skipped)
	assert.True(t, results[1].Skipped)
	assert.Contains(t, results[0].OutputText, baseline[0])
}

func TestFanoutRetryErrorsScope(t *testing.T) {
	doc := newTestDocument("", "")
	baseline := baselineFor(doc)
	delete(baseline, 1)
	stub := &stubCapabilities{}
	store := newTestStore(t, doc, "fr")

	fanout := NewLanguageFanout(stub, store, newMemDeckIO(), newTestResolver(), false)
	fanout.Run(context.Background(), doc, baseline, "fr")

	// The baseline slide now exists; with --retry-errors only the errored
	// slide is reworked.
	baseline[1] = "Recovered baseline narration for the second slide."
	retrying := NewLanguageFanout(stub, store, newMemDeckIO(), newTestResolver(), true)
	results := retrying.Run(context.Background(), doc, baseline, "fr")

	require.Len(t, results, 2)
	assert.True(t, results[0].Skipped)
	assert.False(t, results[1].Skipped)
	assert.Equal(t, StatusSuccess, results[1].Status)
}

func TestFanoutCorrectiveRetryOnWrongLanguage(t *testing.T) {
	doc := newTestDocument("")
	baseline := baselineFor(doc)
	stub := &stubCapabilities{
		translateFn: func(text, language, style, corrective string) (string, error) {
			if corrective == "" {
				return "This translation stayed in English instead of the requested Japanese.", nil
			}
			return "これは発表の原稿です。今日の議題と目的を丁寧に説明します。", nil
		},
	}
	store := newTestStore(t, doc, "ja")

	fanout := NewLanguageFanout(stub, store, newMemDeckIO(), newTestResolver(), false)
	results := fanout.Run(context.Background(), doc, baseline, "ja")

	require.Len(t, results, 1)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, 2, stub.translateCalls)
	require.Len(t, stub.correctives, 2)
	assert.Empty(t, stub.correctives[0])
	assert.Contains(t, stub.correctives[1], "Japanese")
}

func TestFanoutRecordsKeyedToBaselineFingerprint(t *testing.T) {
	doc := newTestDocument("original author notes for this slide")
	baseline := map[int]string{0: "Accepted baseline narration, different from the author notes."}
	stub := &stubCapabilities{}
	store := newTestStore(t, doc, "fr")

	fanout := NewLanguageFanout(stub, store, newMemDeckIO(), newTestResolver(), false)
	fanout.Run(context.Background(), doc, baseline, "fr")

	rec := store.Load(context.Background())[0]
	assert.Equal(t, fingerprint(baseline[0]), rec.ContentFingerprint)
	assert.NotEqual(t, doc.Slides[0].Fingerprint, rec.ContentFingerprint)
}
