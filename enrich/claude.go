// Package enrich bewertet Paper per Claude API und fasst sie zusammen.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-scout/config"
	"paper-scout/models"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiBaseURL wird in Tests durch einen httptest-Server ersetzt.
var apiBaseURL = "https://api.anthropic.com/v1/messages"

const anthropicVersion = "2023-06-01"

// Claude gibt den JSON-Block irgendwo im Antworttext zurück.
var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// Annotation ist das Ergebnis einer Anreicherung. Bewertung ist eine
// Relevanz von 0 bis 10.
type Annotation struct {
	Rating  float64 `json:"bewertung"`
	Summary string  `json:"zusammenfassung"`
}

// Annotator kapselt die Claude-Aufrufe.
type Annotator struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewAnnotator erstellt einen neuen Annotator.
func NewAnnotator(cfg *config.Config, logger *zap.Logger) *Annotator {
	return &Annotator{Config: cfg, Logger: logger}
}

// Enabled meldet, ob ein API-Key konfiguriert ist.
func (a *Annotator) Enabled() bool {
	return a.Config.ClaudeAPIKey != ""
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Annotate bewertet ein Paper im Kontext des Suchbegriffs. Schlägt der
// Aufruf fehl oder ist die Antwort unbrauchbar, kommt eine neutrale
// Annotation zurück; die Suche selbst scheitert daran nie.
func (a *Annotator) Annotate(ctx context.Context, paper *models.Paper, topic string) Annotation {
	neutral := Annotation{Rating: 5, Summary: "Keine Zusammenfassung verfügbar"}
	if !a.Enabled() {
		return neutral
	}

	ann, err := a.call(ctx, paper, topic)
	if err != nil {
		a.Logger.Warn("Claude-Anreicherung fehlgeschlagen, nutze neutrale Werte",
			zap.String("title", paper.Title), zap.Error(err))
		return neutral
	}
	return ann
}

func (a *Annotator) call(ctx context.Context, paper *models.Paper, topic string) (Annotation, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     a.Config.ClaudeModel,
		MaxTokens: 600,
		Messages:  []message{{Role: "user", Content: buildPrompt(paper, topic)}},
	})
	if err != nil {
		return Annotation{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBaseURL, bytes.NewReader(body))
	if err != nil {
		return Annotation{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.Config.ClaudeAPIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := httpClient.Do(req)
	if err != nil {
		return Annotation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Annotation{}, fmt.Errorf("claude api status %d", resp.StatusCode)
	}

	var mr messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return Annotation{}, err
	}
	if len(mr.Content) == 0 {
		return Annotation{}, fmt.Errorf("leere claude-antwort")
	}

	return parseAnnotation(mr.Content[0].Text)
}

// parseAnnotation extrahiert den JSON-Block aus dem Antworttext und
// begrenzt die Bewertung auf 0 bis 10.
func parseAnnotation(text string) (Annotation, error) {
	raw := jsonBlock.FindString(text)
	if raw == "" {
		return Annotation{}, fmt.Errorf("kein JSON in claude-antwort")
	}

	var ann Annotation
	if err := json.Unmarshal([]byte(raw), &ann); err != nil {
		return Annotation{}, fmt.Errorf("claude-antwort nicht parsebar: %w", err)
	}

	if ann.Rating < 0 {
		ann.Rating = 0
	}
	if ann.Rating > 10 {
		ann.Rating = 10
	}
	ann.Summary = strings.TrimSpace(ann.Summary)
	if ann.Summary == "" {
		ann.Summary = "Keine Zusammenfassung verfügbar"
	}
	return ann, nil
}

func buildPrompt(paper *models.Paper, topic string) string {
	abstract := paper.Abstract
	if r := []rune(abstract); len(r) > 1500 {
		abstract = string(r[:1500])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Du bist ein wissenschaftlicher Assistent. Bewerte das folgende Paper ")
	fmt.Fprintf(&b, "für das Recherche-Thema '%s'.\n\n", topic)
	fmt.Fprintf(&b, "Titel: %s\n", paper.Title)
	if paper.Journal != "" {
		fmt.Fprintf(&b, "Journal: %s (%s)\n", paper.Journal, paper.Year)
	}
	if abstract != "" {
		fmt.Fprintf(&b, "Abstract: %s\n", abstract)
	}
	fmt.Fprintf(&b, "\nAntworte ausschließlich mit einem JSON-Objekt im Format ")
	fmt.Fprintf(&b, `{"bewertung": <0-10>, "zusammenfassung": "<2-3 Sätze auf Deutsch>"}`)
	return b.String()
}
