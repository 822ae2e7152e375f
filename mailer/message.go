package mailer

import (
	"fmt"
	"strings"
	"time"

	"paper-scout/models"
)

// In der Mail werden höchstens so viele neue Paper aufgelistet.
const maxListedPapers = 8

// Subject baut die Betreffzeile für einen Suchlauf mit neuen Treffern.
func Subject(added int, topic string) string {
	return fmt.Sprintf("📊 %d neue Papers für '%s' - Excel aktualisiert", added, topic)
}

// Body baut den deutschen Mail-Text: Zusammenfassung des Laufs plus eine
// Liste der ersten neuen Paper.
func Body(topic, sheet string, found, added int, newPapers []*models.Paper) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hallo,\n\n")
	fmt.Fprintf(&b, "die Suche nach '%s' hat neue Ergebnisse geliefert.\n\n", topic)
	fmt.Fprintf(&b, "Gefundene Papers gesamt: %d\n", found)
	fmt.Fprintf(&b, "Davon neu in der Excel-Datei: %d\n", added)
	fmt.Fprintf(&b, "Sheet: %s\n", sheet)
	fmt.Fprintf(&b, "Zeitpunkt: %s\n\n", time.Now().Format("02.01.2006 15:04"))

	if len(newPapers) > 0 {
		fmt.Fprintf(&b, "Neue Papers:\n")
		for i, p := range newPapers {
			if i >= maxListedPapers {
				fmt.Fprintf(&b, "... und %d weitere (siehe Anhang)\n", len(newPapers)-maxListedPapers)
				break
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, p.Title)
			if p.Authors != "" {
				fmt.Fprintf(&b, "   Autoren: %s\n", clipLine(p.Authors, 100))
			}
			if p.Journal != "" || p.Year != "" {
				fmt.Fprintf(&b, "   Journal: %s (%s)\n", p.Journal, p.Year)
			}
			if p.URL != "" {
				fmt.Fprintf(&b, "   Link: %s\n", p.URL)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "Die aktualisierte Excel-Datei ist angehängt.\n\n")
	fmt.Fprintf(&b, "Viele Grüße\nPaper-Scout\n")
	return b.String()
}

func clipLine(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
