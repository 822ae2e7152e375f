package europepmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"paper-scout/config"
	"paper-scout/httputil"
	"paper-scout/models"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher implementiert das Provider-Interface für Europe PMC.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Europe PMC Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "europepmc"
}

// Search führt die Suche auf Europe PMC aus.
func (f *Fetcher) Search(ctx context.Context, term string, limit int) ([]*models.Paper, error) {
	log := f.Logger.With(zap.String("term", term))
	log.Info("Starte Suche auf Europe PMC.")

	searchURL := fmt.Sprintf("%s/search?query=%s&format=json&resultType=core&pageSize=%d",
		f.Config.EuropePMCBaseURL, url.QueryEscape(term), limit)
	log.Debug("Rufe Europe PMC API auf", zap.String("url", searchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httputil.DoWithRetry(ctx, httpClient, req, 3)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("europepmc search failed: status %d", resp.StatusCode)
	}

	var searchResponse SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResponse); err != nil {
		return nil, err
	}

	var papers []*models.Paper
	for i := range searchResponse.ResultList.Result {
		papers = append(papers, mapArticleToModel(&searchResponse.ResultList.Result[i]))
	}

	log.Info("Suche auf Europe PMC abgeschlossen", zap.Int("found_papers", len(papers)))
	return papers, nil
}

// mapArticleToModel konvertiert ein Europe PMC Article-Objekt in unser internes Paper-Modell.
func mapArticleToModel(article *Article) *models.Paper {
	paper := &models.Paper{
		PMID:      article.PMID,
		DOI:       article.DOI,
		Title:     article.Title,
		Abstract:  article.AbstractText,
		Authors:   article.AuthorString,
		Journal:   article.JournalTitle,
		Year:      article.PubYear,
		Citations: article.CitedByCount,
		Source:    "europepmc",
	}

	if article.PMID != "" {
		paper.URL = fmt.Sprintf("https://europepmc.org/article/MED/%s", article.PMID)
	} else if article.ID != "" {
		paper.URL = fmt.Sprintf("https://europepmc.org/article/%s/%s", article.Source, article.ID)
	}

	return paper
}
