package mailer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"paper-scout/models"
)

func TestSubject(t *testing.T) {
	subject := Subject(7, "Herzinfarkt")
	assert.Contains(t, subject, "7 neue Papers")
	assert.Contains(t, subject, "'Herzinfarkt'")
}

func TestBodyListsNewPapers(t *testing.T) {
	papers := []*models.Paper{
		{Title: "Erste Studie", Authors: "A Meier", Journal: "J One", Year: "2021", URL: "https://example.org/1"},
		{Title: "Zweite Studie"},
	}

	body := Body("Herz", "Herz", 10, 2, papers)
	assert.Contains(t, body, "die Suche nach 'Herz'")
	assert.Contains(t, body, "Gefundene Papers gesamt: 10")
	assert.Contains(t, body, "Davon neu in der Excel-Datei: 2")
	assert.Contains(t, body, "1. Erste Studie")
	assert.Contains(t, body, "Autoren: A Meier")
	assert.Contains(t, body, "Journal: J One (2021)")
	assert.Contains(t, body, "Link: https://example.org/1")
	assert.Contains(t, body, "2. Zweite Studie")
}

func TestBodyCapsListedPapers(t *testing.T) {
	var papers []*models.Paper
	for i := 0; i < 12; i++ {
		papers = append(papers, &models.Paper{Title: fmt.Sprintf("Studie %d", i+1)})
	}

	body := Body("Thema", "Thema", 12, 12, papers)
	assert.Contains(t, body, "8. Studie 8")
	assert.NotContains(t, body, "9. Studie 9")
	assert.Contains(t, body, "... und 4 weitere")
}

func TestClipLine(t *testing.T) {
	long := strings.Repeat("a", 150)
	assert.Len(t, clipLine(long, 100), 103)
	assert.Equal(t, "kurz", clipLine("kurz", 100))
}
