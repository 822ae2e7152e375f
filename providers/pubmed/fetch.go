package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"paper-scout/config"
	"paper-scout/httputil"
	"paper-scout/models"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher ist eine Struktur, die die Logik zur Interaktion mit PubMed kapselt.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger

	// NCBI erlaubt ohne API-Key maximal 3 Requests pro Sekunde.
	limiter *rate.Limiter
}

// NewFetcher erstellt eine neue Instanz des PubMed-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config:  cfg,
		Logger:  logger,
		limiter: rate.NewLimiter(rate.Every(350*time.Millisecond), 1),
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "pubmed"
}

// Search führt eine vollständige Suche auf PubMed durch: holt IDs via ESearch
// und dann die Details in EFetch-Batches.
func (f *Fetcher) Search(ctx context.Context, term string, limit int) ([]*models.Paper, error) {
	ids, err := f.searchIDs(ctx, term, limit)
	if err != nil {
		return nil, fmt.Errorf("fehler bei der PubMed ID-Suche: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return f.fetchDetails(ctx, ids)
}

// searchIDs führt eine ESearch-Abfrage durch und gibt eine Liste von PMIDs zurück.
func (f *Fetcher) searchIDs(ctx context.Context, term string, limit int) ([]string, error) {
	log := f.Logger.With(zap.String("term", term))
	log.Info("Starte PubMed ESearch für IDs.")

	searchURL := f.buildEsearchURL(term, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := httputil.DoWithRetry(ctx, httpClient, req, 5)
	if err != nil {
		log.Error("ESearch-Anfrage fehlgeschlagen", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error("ESearch-API hat nicht-200-Status zurückgegeben",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("esearch failed: status %d", resp.StatusCode)
	}

	var esearchResp ESearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&esearchResp); err != nil {
		log.Error("Fehler beim Parsen der ESearch-JSON-Antwort", zap.Error(err))
		return nil, err
	}

	ids := esearchResp.ESearchResult.IdList
	log.Info("PubMed ESearch abgeschlossen", zap.Int("total_ids", len(ids)))
	return ids, nil
}

// fetchDetails holt die Metadaten für alle PMIDs in Batches via EFetch.
// Ein fehlgeschlagener Batch wird geloggt und übersprungen, damit die
// restlichen Treffer erhalten bleiben.
func (f *Fetcher) fetchDetails(ctx context.Context, ids []string) ([]*models.Paper, error) {
	batchSize := f.Config.PubMedBatchSize
	if batchSize <= 0 {
		batchSize = 15
	}

	var papers []*models.Paper
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		got, err := f.fetchBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return papers, ctx.Err()
			}
			f.Logger.Warn("EFetch-Batch fehlgeschlagen, überspringe",
				zap.Strings("pmids", batch), zap.Error(err))
			continue
		}
		papers = append(papers, got...)
	}
	return papers, nil
}

// fetchBatch holt die Metadaten für einen Batch von PMIDs via EFetch.
func (f *Fetcher) fetchBatch(ctx context.Context, pmids []string) ([]*models.Paper, error) {
	efetchURL := fmt.Sprintf("%s/efetch.fcgi?db=pubmed&id=%s&retmode=xml",
		f.Config.PubMedBaseURL, strings.Join(pmids, ","))
	if f.Config.PubMedAPIKey != "" {
		efetchURL += "&api_key=" + f.Config.PubMedAPIKey
	}
	f.Logger.Debug("Rufe EFetch-URL für Metadaten auf", zap.String("url", efetchURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, efetchURL, nil)
	if err != nil {
		return nil, err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := httputil.DoWithRetry(ctx, httpClient, req, 5)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("efetch failed: status %d", resp.StatusCode)
	}

	var articleSet PubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&articleSet); err != nil {
		return nil, err
	}

	var papers []*models.Paper
	for i := range articleSet.PubmedArticle {
		p := mapArticleToModel(&articleSet.PubmedArticle[i])
		if strings.TrimSpace(p.Title) == "" {
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// buildEsearchURL baut die URL für eine ESearch-Anfrage.
func (f *Fetcher) buildEsearchURL(term string, retmax int) string {
	base := fmt.Sprintf("%s/esearch.fcgi?db=pubmed&term=%s&retmode=json&retmax=%d&sort=relevance",
		f.Config.PubMedBaseURL, url.QueryEscape(term), retmax)
	if f.Config.PubMedAPIKey != "" {
		base += "&api_key=" + f.Config.PubMedAPIKey
	}
	if f.Config.PubMedTool != "" {
		base += "&tool=" + url.QueryEscape(f.Config.PubMedTool)
	}
	if f.Config.PubMedEmail != "" {
		base += "&email=" + url.QueryEscape(f.Config.PubMedEmail)
	}
	return base
}

// mapArticleToModel wandelt ein XML-Article-Objekt in unser Paper-Modell um.
func mapArticleToModel(article *PubmedArticle) *models.Paper {
	p := &models.Paper{
		PMID:     article.MedlineCitation.PMID,
		Title:    article.MedlineCitation.Article.Title,
		Abstract: strings.Join(article.MedlineCitation.Article.Abstract.Text, "\n"),
		Journal:  article.MedlineCitation.Article.Journal.Title,
		Year:     article.MedlineCitation.Article.Journal.PubDate.Year,
		URL:      fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", article.MedlineCitation.PMID),
		Source:   "pubmed",
	}

	for _, author := range article.MedlineCitation.Article.Authors {
		p.Authors += author.Initials + " " + author.LastName + ", "
	}
	p.Authors = strings.TrimRight(p.Authors, ", ")

	for _, id := range article.MedlineCitation.Article.ELocationID {
		if id.IDType == "doi" && id.ValidYN == "Y" {
			p.DOI = strings.TrimSpace(id.Value)
			break
		}
	}

	return p
}
