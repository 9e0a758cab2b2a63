package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// BatchCoordinator iterates over (document, language) units, isolating
// failures to the unit that raised them. A deck's baseline language is
// always processed in full before any of its fan-out languages.
type BatchCoordinator struct {
	caps       Capabilities
	deck       *FSDeckIO
	settings   *Settings
	languages  []string
	style      string // overrides each deck's manifest style when set
	forceRetry bool
}

// NewBatchCoordinator creates a coordinator for one run.
func NewBatchCoordinator(caps Capabilities, deck *FSDeckIO, settings *Settings, languages []string, style string, forceRetry bool) *BatchCoordinator {
	return &BatchCoordinator{
		caps:       caps,
		deck:       deck,
		settings:   settings,
		languages:  normalizeLanguages(languages, settings.BaselineLanguage),
		style:      style,
		forceRetry: forceRetry,
	}
}

// Run processes every deck manifest. It always completes with a summary;
// no unit failure terminates the batch.
func (b *BatchCoordinator) Run(ctx context.Context, manifests []string) *RunSummary {
	summary := &RunSummary{RunID: uuid.NewString(), Started: time.Now()}

	log.Printf("Run %s: %d deck(s), languages: %v", summary.RunID, len(manifests), b.languages)
	for i, manifest := range manifests {
		log.Printf("[%d/%d] Processing deck: %s", i+1, len(manifests), manifest)
		b.processDeck(ctx, manifest, summary)
	}

	summary.Finished = time.Now()
	return summary
}

// processDeck runs the baseline unit and then each fan-out unit of one deck.
func (b *BatchCoordinator) processDeck(ctx context.Context, manifest string, summary *RunSummary) {
	doc, err := b.deck.Load(manifest)
	if err != nil {
		log.Printf("✗ %s: %v", manifest, err)
		for _, lang := range b.languages {
			summary.Units = append(summary.Units, UnitReport{
				DocumentID: manifest,
				Language:   lang,
				Fatal:      err,
			})
		}
		return
	}
	if b.style != "" {
		doc.Style = b.style
	}

	unitDir := b.deck.OutputDir(doc)
	if err := os.MkdirAll(unitDir, 0755); err != nil {
		b.recordDeckFatal(summary, doc, &FatalIOError{Op: "creating output directory", Err: err})
		return
	}

	lock := flock.New(filepath.Join(unitDir, ".notesmith.lock"))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		if err == nil {
			err = fmt.Errorf("deck is being processed by another run")
		}
		b.recordDeckFatal(summary, doc, &FatalIOError{Op: "locking deck", Err: err})
		return
	}
	defer func() { _ = lock.Unlock() }()

	baselineLang := b.languages[0]
	report, baselineOutputs := b.runBaselineUnit(ctx, doc, baselineLang, unitDir)
	summary.Units = append(summary.Units, report)

	for _, lang := range b.languages[1:] {
		summary.Units = append(summary.Units, b.runFanoutUnit(ctx, doc, lang, unitDir, baselineOutputs))
	}
}

// runBaselineUnit processes the deck's baseline language and returns the
// accepted narration per slide for fan-out sourcing. Even when the unit
// aborts, narration persisted by earlier runs is still surfaced so fan-out
// languages can proceed from it.
func (b *BatchCoordinator) runBaselineUnit(ctx context.Context, doc *Document, language, unitDir string) (UnitReport, map[int]string) {
	report := UnitReport{DocumentID: doc.ID, DeckTitle: doc.Title, Language: language}
	outputs := make(map[int]string)

	store, err := OpenProgressStore(unitDir, doc.ID, language)
	if err != nil {
		report.Fatal = &FatalIOError{Op: "opening progress store", Err: err}
		log.Printf("✗ Unit %s/%s: %v", doc.ID, language, report.Fatal)
		return report, outputs
	}
	defer store.Close()

	globalContext, err := BuildGlobalContext(ctx, b.caps, store, doc)
	if err != nil {
		report.Fatal = err
		log.Printf("✗ Unit %s/%s: %v", doc.ID, language, err)
		collectOutputs(store.Load(ctx), outputs)
		return report, outputs
	}

	pipeline := NewSlidePipeline(b.caps, store, b.deck, b.newResolver(), b.forceRetry)
	results := pipeline.Run(ctx, doc, language, globalContext)
	tally(&report, results)
	for _, res := range results {
		if res.Status == StatusSuccess {
			outputs[res.Index] = res.OutputText
		}
	}
	return report, outputs
}

// runFanoutUnit processes one derived language from the baseline outputs.
func (b *BatchCoordinator) runFanoutUnit(ctx context.Context, doc *Document, language, unitDir string, baselineOutputs map[int]string) UnitReport {
	report := UnitReport{DocumentID: doc.ID, DeckTitle: doc.Title, Language: language}

	store, err := OpenProgressStore(unitDir, doc.ID, language)
	if err != nil {
		report.Fatal = &FatalIOError{Op: "opening progress store", Err: err}
		log.Printf("✗ Unit %s/%s: %v", doc.ID, language, report.Fatal)
		return report
	}
	defer store.Close()

	fanout := NewLanguageFanout(b.caps, store, b.deck, b.newResolver(), b.forceRetry)
	results := fanout.Run(ctx, doc, baselineOutputs, language)
	tally(&report, results)
	return report
}

func (b *BatchCoordinator) newResolver() *FallbackResolver {
	return NewFallbackResolver(b.settings.StageBackoff())
}

func (b *BatchCoordinator) recordDeckFatal(summary *RunSummary, doc *Document, err error) {
	log.Printf("✗ %s: %v", doc.ID, err)
	for _, lang := range b.languages {
		summary.Units = append(summary.Units, UnitReport{
			DocumentID: doc.ID,
			DeckTitle:  doc.Title,
			Language:   lang,
			Fatal:      err,
		})
	}
}

// collectOutputs extracts accepted narration from persisted records.
func collectOutputs(records map[int]ProgressRecord, outputs map[int]string) {
	for idx, rec := range records {
		if rec.Status == StatusSuccess {
			outputs[idx] = rec.OutputText
		}
	}
}

func tally(report *UnitReport, results []SlideResult) {
	for _, res := range results {
		switch {
		case res.Status == StatusError:
			report.Errored++
		case res.Skipped:
			report.Skipped++
		default:
			report.Succeeded++
		}
	}
}

// normalizeLanguages deduplicates the requested list and guarantees the
// baseline language comes first.
func normalizeLanguages(requested []string, baseline string) []string {
	langs := []string{baseline}
	seen := map[string]bool{baseline: true}
	for _, lang := range requested {
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		langs = append(langs, lang)
	}
	return langs
}

// renderRunSummary formats the per-unit outcome table plus any unit-level
// fatal failures.
func renderRunSummary(summary *RunSummary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Deck", "Language", "OK", "Skipped", "Errors", "Fatal"})

	for _, unit := range summary.Units {
		fatal := ""
		if unit.Fatal != nil {
			fatal = "yes"
		}
		tw.AppendRow(table.Row{unit.DocumentID, unit.Language, unit.Succeeded, unit.Skipped, unit.Errored, fatal})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	out := fmt.Sprintf("Run %s finished in %s\n%s",
		summary.RunID, summary.Finished.Sub(summary.Started).Round(time.Second), tw.Render())

	if summary.FatalCount() > 0 {
		out += "\nFatal unit failures:"
		for _, unit := range summary.Units {
			if unit.Fatal != nil {
				out += fmt.Sprintf("\n  %s/%s: %v", unit.DocumentID, unit.Language, unit.Fatal)
			}
		}
	}
	return out
}
