package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "English", languageName("en"))
	assert.Equal(t, "Japanese (日本語)", languageName("ja"))
	assert.Equal(t, "Cantonese (廣東話)", languageName("yue-HK"))
	// Unknown locales fall through to the raw code.
	assert.Equal(t, "xx-YY", languageName("xx-YY"))
}

func TestValidateStageOutput(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		language string
		valid    bool
	}{
		{"empty always rejected", "   \n ", "", false},
		{"plain text no language", "anything at all", "", true},
		{"english text for en", "A complete paragraph of narration in plain English prose.", "en", true},
		{"english text for ja", "This narration is clearly written in English and not Japanese.", "ja", false},
		{"japanese text for ja", "これは日本語で書かれた発表用の原稿です。聴衆に向けて丁寧に説明します。", "ja", true},
		{"russian text for ru", "Это полностью русский текст для проверки рассказчика презентации.", "ru", true},
		{"english text for ru", "Entirely English output when Russian narration was requested instead.", "ru", false},
		{"short output not judged", "OK then", "ja", true},
		{"unknown locale not judged", "Whatever text in any language at all, long enough to count letters.", "tlh", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStageOutput(tt.text, tt.language)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidationErrorCarriesCorrective(t *testing.T) {
	err := validateStageOutput(
		"Plainly English output even though Japanese narration was asked for.", "ja")
	require.Error(t, err)

	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, verr.Corrective, "Japanese")
	assert.Contains(t, verr.Reason, "ja")
}

func TestCountScriptLetters(t *testing.T) {
	matched, total := countScriptLetters("日本語 abc", "Jpan")
	assert.Equal(t, 3, matched)
	assert.Equal(t, 6, total)

	matched, total = countScriptLetters("hello мир", "Cyrl")
	assert.Equal(t, 3, matched)
	assert.Equal(t, 8, total)

	// Unknown script means the caller cannot judge.
	matched, total = countScriptLetters("text", "Xxxx")
	assert.Zero(t, matched)
	assert.Zero(t, total)
}

func TestExpectedScript(t *testing.T) {
	assert.Equal(t, "Latn", expectedScript("en"))
	assert.Equal(t, "Jpan", expectedScript("ja"))
	assert.Equal(t, "Cyrl", expectedScript("ru"))
	assert.Equal(t, "Hans", expectedScript("zh-CN"))
	assert.Empty(t, expectedScript("not a locale"))
}
