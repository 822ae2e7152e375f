package excel

import (
	"regexp"
	"strings"
)

// Excel verbietet diese Zeichen in Sheet-Namen.
var (
	invalidSheetChars = regexp.MustCompile(`[\\/\?\*\[\]:]`)
	underscoreRuns    = regexp.MustCompile(`_+`)
)

const maxSheetNameLen = 25

// SheetName bildet einen Suchbegriff deterministisch auf einen gültigen
// Sheet-Namen ab: verbotene Zeichen werden zu Unterstrichen, Läufe von
// Unterstrichen zusammengefasst, Ränder getrimmt, Länge begrenzt. Die
// reservierten Sheets (Overview, Info) bekommen ein Suffix, damit ein
// Thema nie im Index landet. Derselbe Suchbegriff ergibt immer
// denselben Namen.
func SheetName(term string) string {
	name := invalidSheetChars.ReplaceAllString(strings.TrimSpace(term), "_")
	name = underscoreRuns.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_ ")

	if r := []rune(name); len(r) > maxSheetNameLen {
		name = strings.Trim(string(r[:maxSheetNameLen]), "_ ")
	}
	if name == "" {
		return "Suche"
	}
	if strings.EqualFold(name, OverviewSheet) || strings.EqualFold(name, InfoSheet) {
		name += "_1"
	}
	return name
}
