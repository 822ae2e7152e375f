// Package semanticscholar enthält die Logik für die Semantic Scholar Graph API.
package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-scout/config"
	"paper-scout/httputil"
	"paper-scout/models"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

const searchFields = "title,authors,venue,year,abstract,url,citationCount,externalIds"

// Fetcher implementiert das Provider-Interface für Semantic Scholar.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Semantic Scholar Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "semanticscholar"
}

// Search führt die Suche über den paper/search Endpoint aus. Die API
// drosselt anonyme Clients aggressiv, DoWithRetry fängt 429er ab.
func (f *Fetcher) Search(ctx context.Context, term string, limit int) ([]*models.Paper, error) {
	log := f.Logger.With(zap.String("term", term))
	log.Info("Starte Suche auf Semantic Scholar.")

	if limit > 20 {
		limit = 20
	}
	searchURL := fmt.Sprintf("%s/paper/search?query=%s&limit=%d&fields=%s",
		f.Config.SemanticScholarBaseURL, url.QueryEscape(term), limit, searchFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	if f.Config.SemanticScholarAPIKey != "" {
		req.Header.Set("x-api-key", f.Config.SemanticScholarAPIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, httpClient, req, 3)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("semantic scholar search failed: status %d", resp.StatusCode)
	}

	var searchResponse SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResponse); err != nil {
		return nil, err
	}

	var papers []*models.Paper
	for i := range searchResponse.Data {
		papers = append(papers, mapEntryToModel(&searchResponse.Data[i]))
	}

	log.Info("Suche auf Semantic Scholar abgeschlossen", zap.Int("found_papers", len(papers)))
	return papers, nil
}

// mapEntryToModel konvertiert einen Semantic Scholar Treffer in unser Paper-Modell.
func mapEntryToModel(entry *Entry) *models.Paper {
	paper := &models.Paper{
		Title:     entry.Title,
		Abstract:  entry.Abstract,
		Journal:   entry.Venue,
		URL:       entry.URL,
		Citations: entry.CitationCount,
		Source:    "semanticscholar",
		DOI:       entry.ExternalIDs.DOI,
		PMID:      entry.ExternalIDs.PubMed,
	}

	if entry.Year > 0 {
		paper.Year = strconv.Itoa(entry.Year)
	}

	var names []string
	for _, a := range entry.Authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	paper.Authors = strings.Join(names, ", ")

	return paper
}
