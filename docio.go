package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"gopkg.in/yaml.v3"
)

// DeckIO is the document I/O collaborator: it loads deck manifests and
// writes accepted notes. WriteNotes is called once per successful slide,
// only after the slide's progress record is persisted.
type DeckIO interface {
	Load(path string) (*Document, error)
	WriteNotes(doc *Document, slideIndex int, language, text string) error
}

// deckManifest is the on-disk YAML shape of a deck.
type deckManifest struct {
	Title  string          `yaml:"title"`
	Style  string          `yaml:"style"`
	Slides []slideManifest `yaml:"slides"`
}

type slideManifest struct {
	Image     string `yaml:"image"`
	Notes     string `yaml:"notes"`
	NotesFile string `yaml:"notes_file"`
}

// FSDeckIO reads deck manifests from the filesystem and writes generated
// notes under the deck's output directory.
type FSDeckIO struct {
	outputDir string
	converter *md.Converter
}

// NewFSDeckIO creates a filesystem deck collaborator. outputDir is
// resolved relative to each deck's directory.
func NewFSDeckIO(outputDir string) *FSDeckIO {
	return &FSDeckIO{
		outputDir: outputDir,
		converter: md.NewConverter("", true, nil),
	}
}

// Load reads a deck manifest and resolves its slides. Missing manifests,
// note files or slide images are fatal for the unit.
func (f *FSDeckIO) Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FatalIOError{Op: "reading deck manifest", Err: err}
	}

	var manifest deckManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, &FatalIOError{Op: "parsing deck manifest", Err: err}
	}
	if len(manifest.Slides) == 0 {
		return nil, &FatalIOError{Op: "parsing deck manifest", Err: fmt.Errorf("no slides in %s", path)}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &FatalIOError{Op: "resolving deck path", Err: err}
	}
	dir := filepath.Dir(absPath)

	doc := &Document{
		ID:    deckID(manifest.Title, absPath),
		Title: manifest.Title,
		Path:  absPath,
		Dir:   dir,
		Style: manifest.Style,
	}

	for i, sm := range manifest.Slides {
		if sm.Image == "" {
			return nil, &FatalIOError{Op: "loading deck", Err: fmt.Errorf("slide %d has no image", i+1)}
		}
		imagePath := sm.Image
		if !filepath.IsAbs(imagePath) {
			imagePath = filepath.Join(dir, imagePath)
		}
		if _, err := os.Stat(imagePath); err != nil {
			return nil, &FatalIOError{Op: fmt.Sprintf("slide %d visual", i+1), Err: err}
		}

		notes, err := f.loadNotes(dir, sm)
		if err != nil {
			return nil, &FatalIOError{Op: fmt.Sprintf("slide %d notes", i+1), Err: err}
		}

		doc.Slides = append(doc.Slides, Slide{
			Index:       i,
			Notes:       notes,
			Visual:      VisualRef(imagePath),
			Fingerprint: fingerprint(notes),
		})
	}

	return doc, nil
}

// loadNotes returns a slide's original note text. HTML note exports are
// normalized to markdown before fingerprinting so whitespace-only markup
// churn does not invalidate cached results.
func (f *FSDeckIO) loadNotes(dir string, sm slideManifest) (string, error) {
	if sm.NotesFile == "" {
		return strings.TrimSpace(sm.Notes), nil
	}

	notesPath := sm.NotesFile
	if !filepath.IsAbs(notesPath) {
		notesPath = filepath.Join(dir, notesPath)
	}
	data, err := os.ReadFile(notesPath)
	if err != nil {
		return "", err
	}

	text := string(data)
	ext := strings.ToLower(filepath.Ext(notesPath))
	if ext == ".html" || ext == ".htm" {
		converted, err := f.converter.ConvertString(text)
		if err != nil {
			return "", fmt.Errorf("converting HTML notes: %w", err)
		}
		text = converted
	}
	return strings.TrimSpace(text), nil
}

// WriteNotes writes one slide's accepted narration to the deck's output
// directory for the given language.
func (f *FSDeckIO) WriteNotes(doc *Document, slideIndex int, language, text string) error {
	dir := filepath.Join(f.OutputDir(doc), language)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating notes directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("slide-%03d.md", slideIndex+1))
	if err := os.WriteFile(path, []byte(text+"\n"), 0644); err != nil {
		return fmt.Errorf("writing notes file: %w", err)
	}
	return nil
}

// OutputDir returns the deck's output directory, which also hosts the
// unit progress stores and the run lock.
func (f *FSDeckIO) OutputDir(doc *Document) string {
	return filepath.Join(doc.Dir, f.outputDir)
}

// deckID derives a stable document identifier from the deck title and its
// absolute manifest path.
func deckID(title, absPath string) string {
	slug := generateSlug(title)
	if slug == "" {
		slug = generateSlug(strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath)))
	}
	if slug == "" {
		slug = "deck"
	}
	return slug + "-" + fingerprint(absPath)[:8]
}

// generateSlug creates a filesystem-safe slug from a title
func generateSlug(title string) string {
	slug := strings.ToLower(title)
	slug = regexp.MustCompile(`[^a-z0-9]+`).ReplaceAllString(slug, "-")
	slug = regexp.MustCompile(`-+`).ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	// Limit length to avoid filesystem issues
	if len(slug) > 50 {
		slug = slug[:50]
		slug = strings.Trim(slug, "-")
	}

	return slug
}
