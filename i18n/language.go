// Package i18n resolves the caller's language and localizes menu content and
// notification texts for the four supported languages.
package i18n

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

const DefaultLanguage = "en"

// Supported lists languages in fallback order.
var Supported = []string{"en", "de", "fr", "it"}

func IsSupported(lang string) bool {
	for _, s := range Supported {
		if s == lang {
			return true
		}
	}
	return false
}

// DetectLanguage resolves, in order: an explicit user preference, the
// Accept-Language header (by quality, base tag only), then English.
func DetectLanguage(userPreference, acceptLanguage string) string {
	if pref := baseOf(userPreference); IsSupported(pref) {
		return pref
	}
	if acceptLanguage != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil {
			for _, tag := range tags {
				base, _ := tag.Base()
				if b := base.String(); IsSupported(b) {
					return b
				}
			}
		}
	}
	return DefaultLanguage
}

func baseOf(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-_"); i >= 0 {
		s = s[:i]
	}
	return s
}

// Localize picks field from translations for lang, falling back to English,
// then to the first language that has the field. ok is false when none does.
func Localize(translations map[string]map[string]string, field, lang string) (string, bool) {
	if v, ok := lookup(translations, lang, field); ok {
		return v, true
	}
	if v, ok := lookup(translations, DefaultLanguage, field); ok {
		return v, true
	}
	for _, l := range Supported {
		if v, ok := lookup(translations, l, field); ok {
			return v, true
		}
	}
	rest := make([]string, 0, len(translations))
	for l := range translations {
		rest = append(rest, l)
	}
	sort.Strings(rest)
	for _, l := range rest {
		if v, ok := lookup(translations, l, field); ok {
			return v, true
		}
	}
	return "", false
}

func lookup(translations map[string]map[string]string, lang, field string) (string, bool) {
	fields, ok := translations[lang]
	if !ok {
		return "", false
	}
	v, ok := fields[field]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
