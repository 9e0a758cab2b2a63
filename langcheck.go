package main

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// languageNames maps locale codes to the display names used in prompts.
var languageNames = map[string]string{
	"en":     "English",
	"zh-CN":  "Simplified Chinese (简体中文)",
	"zh-TW":  "Traditional Chinese (繁體中文)",
	"yue-HK": "Cantonese (廣東話)",
	"es":     "Spanish (Español)",
	"fr":     "French (Français)",
	"de":     "German (Deutsch)",
	"it":     "Italian (Italiano)",
	"pt":     "Portuguese (Português)",
	"ru":     "Russian (Русский)",
	"ja":     "Japanese (日本語)",
	"ko":     "Korean (한국어)",
	"ar":     "Arabic (العربية)",
	"hi":     "Hindi (हिन्दी)",
	"th":     "Thai (ไทย)",
	"vi":     "Vietnamese (Tiếng Việt)",
}

// languageName returns a human-readable name for a locale code.
func languageName(locale string) string {
	if name, ok := languageNames[locale]; ok {
		return name
	}
	return locale
}

// minLettersForScriptCheck is the minimum number of letters before the
// script-mix heuristic is applied; short outputs are judged on emptiness only.
const minLettersForScriptCheck = 20

// validateStageOutput rejects empty output always, and clearly
// mixed-language output when a target language is given. The returned
// ValidationError carries the corrective instruction for the retry attempt.
func validateStageOutput(text, targetLanguage string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Reason: "empty output"}
	}
	if targetLanguage == "" {
		return nil
	}

	script := expectedScript(targetLanguage)
	if script == "" {
		return nil
	}

	matched, total := countScriptLetters(text, script)
	if total < minLettersForScriptCheck {
		return nil
	}
	if matched*2 < total {
		return &ValidationError{
			Reason: fmt.Sprintf("output not in %s (%d of %d letters in expected script)",
				targetLanguage, matched, total),
			Corrective: fmt.Sprintf(
				"IMPORTANT: Respond ONLY in %s. Do not mix in any other language.",
				languageName(targetLanguage)),
		}
	}
	return nil
}

// expectedScript infers the writing script for a locale code, or "" when
// no confident inference is possible.
func expectedScript(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	script, conf := tag.Script()
	if conf == language.No {
		return ""
	}
	return script.String()
}

// scriptRanges maps a Unicode script identifier to the rune ranges that
// count as native letters for that script. Scripts not listed here are
// not checked.
var scriptRanges = map[string][]*unicode.RangeTable{
	"Latn": {unicode.Latin},
	"Hans": {unicode.Han},
	"Hant": {unicode.Han},
	"Hani": {unicode.Han},
	"Jpan": {unicode.Han, unicode.Hiragana, unicode.Katakana},
	"Kore": {unicode.Hangul, unicode.Han},
	"Cyrl": {unicode.Cyrillic},
	"Arab": {unicode.Arabic},
	"Thai": {unicode.Thai},
	"Deva": {unicode.Devanagari},
	"Grek": {unicode.Greek},
	"Hebr": {unicode.Hebrew},
}

// countScriptLetters counts letters matching the expected script and the
// total number of letters. A (0, 0) result means the script is unknown
// and the caller should not judge.
func countScriptLetters(text, script string) (matched, total int) {
	ranges, ok := scriptRanges[script]
	if !ok {
		return 0, 0
	}
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		for _, rt := range ranges {
			if unicode.Is(rt, r) {
				matched++
				break
			}
		}
	}
	return matched, total
}
