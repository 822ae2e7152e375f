package models

import (
	"regexp"
	"strings"
)

var (
	titleNonWord = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	titleSpaces  = regexp.MustCompile(`\s+`)
)

// NormalizeTitle bildet einen Titel auf seine Vergleichsform ab:
// Kleinschreibung, ohne Interpunktion, einfache Leerzeichen. Alle
// Duplikat-Checks im Projekt laufen über genau diese Funktion.
func NormalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = titleNonWord.ReplaceAllString(t, "")
	t = titleSpaces.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
