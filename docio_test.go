package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestDeck lays out a deck directory with rendered slide images and a
// manifest, returning the manifest path.
func writeTestDeck(t *testing.T, manifest string, extraFiles map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range extraFiles {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	path := filepath.Join(dir, "deck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0644))
	return path
}

const basicManifest = `title: Quarterly Review
style: upbeat and concise
slides:
  - image: renders/slide-1.png
    notes: Welcome everyone to the review.
  - image: renders/slide-2.png
  - image: renders/slide-3.png
    notes_file: notes/slide-3.html
`

func basicDeckFiles() map[string]string {
	return map[string]string{
		"renders/slide-1.png": "png-bytes",
		"renders/slide-2.png": "png-bytes",
		"renders/slide-3.png": "png-bytes",
		"notes/slide-3.html":  "<p>Numbers are <b>up</b> this quarter.</p>",
	}
}

func TestLoadDeck(t *testing.T) {
	path := writeTestDeck(t, basicManifest, basicDeckFiles())
	deck := NewFSDeckIO("notesmith-output")

	doc, err := deck.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Quarterly Review", doc.Title)
	assert.Equal(t, "upbeat and concise", doc.Style)
	assert.Equal(t, filepath.Dir(doc.Path), doc.Dir)
	require.Len(t, doc.Slides, 3)

	assert.Equal(t, "Welcome everyone to the review.", doc.Slides[0].Notes)
	assert.Empty(t, doc.Slides[1].Notes)
	assert.Equal(t, 0, doc.Slides[0].Index)
	assert.Equal(t, 2, doc.Slides[2].Index)

	for _, slide := range doc.Slides {
		assert.True(t, filepath.IsAbs(string(slide.Visual)))
		assert.Equal(t, fingerprint(slide.Notes), slide.Fingerprint)
	}
}

func TestLoadDeckConvertsHTMLNotes(t *testing.T) {
	path := writeTestDeck(t, basicManifest, basicDeckFiles())
	deck := NewFSDeckIO("notesmith-output")

	doc, err := deck.Load(path)
	require.NoError(t, err)

	notes := doc.Slides[2].Notes
	assert.Contains(t, notes, "**up**")
	assert.NotContains(t, notes, "<p>")
}

func TestLoadDeckMissingImageIsFatal(t *testing.T) {
	files := basicDeckFiles()
	delete(files, "renders/slide-2.png")
	path := writeTestDeck(t, basicManifest, files)

	_, err := NewFSDeckIO("notesmith-output").Load(path)
	require.Error(t, err)
	var fatal *FatalIOError
	assert.ErrorAs(t, err, &fatal)
}

func TestLoadDeckMissingNotesFileIsFatal(t *testing.T) {
	files := basicDeckFiles()
	delete(files, "notes/slide-3.html")
	path := writeTestDeck(t, basicManifest, files)

	_, err := NewFSDeckIO("notesmith-output").Load(path)
	require.Error(t, err)
	var fatal *FatalIOError
	assert.ErrorAs(t, err, &fatal)
}

func TestLoadDeckRejectsEmptyManifest(t *testing.T) {
	path := writeTestDeck(t, "title: Empty Deck\nslides: []\n", nil)

	_, err := NewFSDeckIO("notesmith-output").Load(path)
	require.Error(t, err)
	var fatal *FatalIOError
	assert.ErrorAs(t, err, &fatal)
}

func TestDeckIDStableAcrossLoads(t *testing.T) {
	path := writeTestDeck(t, basicManifest, basicDeckFiles())
	deck := NewFSDeckIO("notesmith-output")

	first, err := deck.Load(path)
	require.NoError(t, err)
	second, err := deck.Load(path)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Contains(t, first.ID, "quarterly-review-")
}

func TestDeckIDDistinguishesSameTitleDifferentPath(t *testing.T) {
	deck := NewFSDeckIO("notesmith-output")
	a, err := deck.Load(writeTestDeck(t, basicManifest, basicDeckFiles()))
	require.NoError(t, err)
	b, err := deck.Load(writeTestDeck(t, basicManifest, basicDeckFiles()))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestWriteNotes(t *testing.T) {
	path := writeTestDeck(t, basicManifest, basicDeckFiles())
	deck := NewFSDeckIO("notesmith-output")
	doc, err := deck.Load(path)
	require.NoError(t, err)

	require.NoError(t, deck.WriteNotes(doc, 0, "ja", "これは原稿です。"))

	written, err := os.ReadFile(filepath.Join(doc.Dir, "notesmith-output", "ja", "slide-001.md"))
	require.NoError(t, err)
	assert.Equal(t, "これは原稿です。\n", string(written))
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Quarterly Review", "quarterly-review"},
		{"Hello, World! 2024", "hello-world-2024"},
		{"--- odd --- spacing ---", "odd-spacing"},
		{"日本語タイトル", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, generateSlug(tt.in))
	}
}
