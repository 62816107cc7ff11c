// Package locale formats dates and names for an explicit language tag
// instead of the process-wide locale.
package locale

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/goodsign/monday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LongDateLayout renders as e.g. "05 de março de 2024" in pt-BR.
const LongDateLayout = "02 de January de 2006"

// Locale bundles the language tag with the calendar locale used for month
// and weekday names.
type Locale struct {
	Tag      language.Tag
	calendar monday.Locale
}

// Parse accepts BCP 47 ("pt-BR") and POSIX ("pt_BR", "pt_BR.UTF-8") forms.
func Parse(s string) (Locale, error) {
	raw := strings.TrimSpace(s)
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return Locale{}, fmt.Errorf("invalid locale %q: %w", s, err)
	}

	calendar, ok := calendarLocale(tag)
	if !ok {
		return Locale{}, fmt.Errorf("locale %q has no calendar translations", s)
	}

	return Locale{
		Tag:      tag,
		calendar: calendar,
	}, nil
}

// MustParse is Parse for package-level defaults.
func MustParse(s string) Locale {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

var calendars = []monday.Locale{
	monday.LocalePtBR,
	monday.LocalePtPT,
	monday.LocaleEnUS,
	monday.LocaleEnGB,
	monday.LocaleEsES,
	monday.LocaleFrFR,
	monday.LocaleDeDE,
	monday.LocaleItIT,
	monday.LocaleNlNL,
}

func calendarLocale(tag language.Tag) (monday.Locale, bool) {
	base, _ := tag.Base()
	region, _ := tag.Region()
	candidates := []string{
		base.String() + "_" + region.String(),
		strings.ReplaceAll(tag.String(), "-", "_"),
	}
	for _, c := range candidates {
		for _, l := range calendars {
			if strings.EqualFold(string(l), c) {
				return l, true
			}
		}
	}
	// Fall back to any region of the same language.
	for _, l := range calendars {
		if strings.HasPrefix(strings.ToLower(string(l)), base.String()+"_") {
			return l, true
		}
	}
	return "", false
}

// FormatDate formats t with a Go layout, translating month and weekday names.
func (l Locale) FormatDate(t time.Time, layout string) string {
	return monday.Format(t, layout, l.calendar)
}

// LongDate formats t as day, full month name, and year.
func (l Locale) LongDate(t time.Time) string {
	return l.FormatDate(t, LongDateLayout)
}

// Title returns s in title case for this locale. A Caser keeps state, so
// one is built per call. A letter after an apostrophe starts a new word,
// as in "D'Ávila".
func (l Locale) Title(s string) string {
	titled := cases.Title(l.Tag).String(s)
	if !strings.ContainsAny(titled, "'’") {
		return titled
	}
	runes := []rune(titled)
	for i := 1; i < len(runes); i++ {
		if runes[i-1] == '\'' || runes[i-1] == '’' {
			runes[i] = unicode.ToTitle(runes[i])
		}
	}
	return string(runes)
}

func (l Locale) String() string {
	return l.Tag.String()
}
