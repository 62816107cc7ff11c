package certificates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// cardWidth is the length card numbers are zero-padded to
const cardWidth = 8

// Derive computes the placeholder values for one record. Blank or unreadable
// exit months count as 0; month totals are not clamped, so inconsistent
// entry and exit months can yield zero or negative totals.
func Derive(rec Record, params RunParameters) (Values, error) {
	name := strings.TrimSpace(rec.FullName)
	if name == "" {
		return nil, fmt.Errorf("full name: %w", ErrMissingField)
	}
	course := strings.TrimSpace(rec.Course)
	if course == "" {
		return nil, fmt.Errorf("course: %w", ErrMissingField)
	}

	card, err := padCardNumber(rec.CardNumber)
	if err != nil {
		return nil, err
	}

	entry, ok := parseInteger(rec.EntryMonth)
	if !ok {
		return nil, fmt.Errorf("%q: %w", rec.EntryMonth, ErrInvalidMonth)
	}
	exit, ok := parseInteger(rec.ExitMonth)
	if !ok {
		exit = 0
	}

	months := 13 - entry - exit
	hours := params.WeeklyHours * 4 * months

	marker := params.MaleMarker
	if marker == "" {
		marker = DefaultMaleMarker
	}
	article, articleUpper := "a", "A"
	if strings.TrimSpace(rec.Gender) == marker {
		article, articleUpper = "o", "O"
	}

	return Values{
		KeyArticle:      article,
		KeyArticleUpper: articleUpper,
		KeyStudent:      params.Locale.Title(name),
		KeyCourse:       course,
		KeyCard:         card,
		KeySector:       strings.TrimSpace(rec.Sector),
		KeyWeeklyHours:  params.WeeklyHours,
		KeyTotalMonths:  months,
		KeyTotalHours:   hours,
		KeyYear:         params.Year,
		KeyDocumentDate: params.DocumentDate,
		KeyDirector:     params.Director,
	}, nil
}

// padCardNumber left-pads the card number with zeros to cardWidth. Longer
// numbers are returned unchanged.
func padCardNumber(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("card number: %w", ErrMissingField)
	}
	if !isDigits(s) {
		// Spreadsheets hand numeric cells back as "42.0".
		n, ok := parseInteger(s)
		if !ok || n < 0 {
			return "", fmt.Errorf("%q: %w", raw, ErrInvalidCardNumber)
		}
		s = strconv.Itoa(n)
	}
	if len(s) < cardWidth {
		s = strings.Repeat("0", cardWidth-len(s)) + s
	}
	return s, nil
}

// integerPattern matches what a spreadsheet cell holding a whole number
// looks like once stringified: digits with an optional all-zero fraction.
var integerPattern = regexp.MustCompile(`^[+-]?\d+(\.0+)?$`)

// parseInteger accepts integers and integral decimals such as "3.0".
// Exponents and values outside the int range are rejected.
func parseInteger(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if !integerPattern.MatchString(s) {
		return 0, false
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
