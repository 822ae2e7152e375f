// Package services orchestriert Suche, Abgleich, Anreicherung und Versand.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"paper-scout/config"
	"paper-scout/enrich"
	"paper-scout/excel"
	"paper-scout/mailer"
	"paper-scout/models"
	"paper-scout/providers"
	"paper-scout/providers/unpaywall"
)

// Jeder Provider bekommt mindestens so viele Treffer zugeteilt, auch wenn
// das Gesamtlimit durch die Provider-Anzahl kleiner ausfiele.
const minPerSource = 10

// SourceResult dokumentiert den Beitrag eines einzelnen Providers zu
// einem Suchlauf.
type SourceResult struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// RunResult fasst einen kompletten Suchlauf zusammen.
type RunResult struct {
	Query     string          `json:"query"`
	SheetName string          `json:"sheet_name"`
	Found     int             `json:"found"`
	Added     int             `json:"added"`
	Known     int             `json:"known"`
	Enriched  int             `json:"enriched"`
	EmailSent int             `json:"email_sent"`
	Sources   []SourceResult  `json:"sources"`
	NewPapers []*models.Paper `json:"new_papers,omitempty"`
}

// RunOptions steuert einen einzelnen Suchlauf.
type RunOptions struct {
	MaxResults int
	ForceEmail bool
	Enrich     bool
}

// SearchService bündelt Provider, Store, Mailer und Annotator zu den
// beiden Kernoperationen: einzelner Suchlauf und Wiederholung aller
// bekannten Suchen.
type SearchService struct {
	Config    *config.Config
	Store     *excel.Store
	Logger    *zap.Logger
	Providers []providers.Provider
	Mailer    *mailer.Mailer
	Annotator *enrich.Annotator
	Unpaywall *unpaywall.Fetcher
}

// NewSearchService erstellt eine neue Instanz des SearchService.
func NewSearchService(cfg *config.Config, store *excel.Store, logger *zap.Logger, provs []providers.Provider) *SearchService {
	return &SearchService{
		Config:    cfg,
		Store:     store,
		Logger:    logger,
		Providers: provs,
		Mailer:    mailer.New(cfg, logger),
		Annotator: enrich.NewAnnotator(cfg, logger),
		Unpaywall: unpaywall.NewFetcher(cfg, logger),
	}
}

// SearchAll fächert die Suche auf alle Provider auf. Ein scheiternder
// Provider kostet nur seine eigenen Treffer; sein Fehler landet im
// SourceResult. Das Ergebnis ist titel-dedupliziert in stabiler
// Reihenfolge (Provider-Reihenfolge, darin API-Reihenfolge).
func (s *SearchService) SearchAll(ctx context.Context, query string, limit int) ([]*models.Paper, []SourceResult) {
	log := s.Logger.With(zap.String("query", query))

	if limit <= 0 {
		limit = s.Config.MaxResults
	}
	perSource := limit / max(1, len(s.Providers))
	if perSource < minPerSource {
		perSource = minPerSource
	}

	var all []*models.Paper
	var sources []SourceResult
	for _, provider := range s.Providers {
		papers, err := provider.Search(ctx, query, perSource)
		if err != nil {
			log.Warn("Provider-Suche fehlgeschlagen",
				zap.String("provider", provider.Name()), zap.Error(err))
			sources = append(sources, SourceResult{Name: provider.Name(), Error: err.Error()})
			continue
		}
		sources = append(sources, SourceResult{Name: provider.Name(), Count: len(papers)})
		all = append(all, papers...)
	}

	deduped := dedupeByTitle(all)
	log.Info("Suche bei allen Providern abgeschlossen",
		zap.Int("raw", len(all)), zap.Int("unique", len(deduped)))
	return deduped, sources
}

// dedupeByTitle entfernt Titel-Duplikate über Providergrenzen hinweg.
// Der erste Treffer gewinnt; Paper ohne brauchbaren Titel fliegen raus.
func dedupeByTitle(papers []*models.Paper) []*models.Paper {
	seen := make(map[string]bool)
	var out []*models.Paper
	for _, p := range papers {
		key := models.NormalizeTitle(p.Title)
		if len(key) <= 5 || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// Run führt einen kompletten Suchlauf aus: Suche, Abgleich gegen die
// Arbeitsmappe, optional Anreicherung der neuen Paper und Mail-Versand.
func (s *SearchService) Run(ctx context.Context, query string, opts RunOptions) (*RunResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("leerer suchbegriff")
	}
	log := s.Logger.With(zap.String("query", query))

	papers, sources := s.SearchAll(ctx, query, opts.MaxResults)
	result := &RunResult{
		Query:     query,
		SheetName: excel.SheetName(query),
		Found:     len(papers),
		Sources:   sources,
	}

	if len(papers) == 0 {
		log.Info("Keine Treffer für Suchbegriff")
		return result, nil
	}

	added, newPapers, err := s.Store.MergeAndPersist(query, papers)
	if err != nil {
		return result, fmt.Errorf("abgleich mit arbeitsmappe fehlgeschlagen: %w", err)
	}
	result.Added = added
	result.Known = len(papers) - added
	result.NewPapers = newPapers

	s.resolveLinks(ctx, newPapers)

	if opts.Enrich && s.Annotator.Enabled() {
		result.Enriched = s.enrichPapers(ctx, query, newPapers)
		if result.Enriched > 0 {
			if err := s.Store.AnnotateRows(result.SheetName, newPapers); err != nil {
				log.Warn("Annotationen konnten nicht gespeichert werden", zap.Error(err))
			}
		}
	}

	result.EmailSent = s.notify(query, result, opts.ForceEmail)
	return result, nil
}

// resolveLinks füllt fehlende URLs neuer Paper über Unpaywall auf.
func (s *SearchService) resolveLinks(ctx context.Context, papers []*models.Paper) {
	if s.Config.UnpaywallEmail == "" {
		return
	}
	for _, p := range papers {
		if p.URL != "" || p.DOI == "" {
			continue
		}
		link, err := s.Unpaywall.GetFreeLink(ctx, p.DOI)
		if err != nil {
			s.Logger.Debug("Unpaywall-Fallback fehlgeschlagen", zap.String("doi", p.DOI), zap.Error(err))
			continue
		}
		p.URL = link
	}
}

// enrichPapers holt Bewertung und Zusammenfassung für neue Paper.
func (s *SearchService) enrichPapers(ctx context.Context, query string, papers []*models.Paper) int {
	enriched := 0
	for _, p := range papers {
		ann := s.Annotator.Annotate(ctx, p, query)
		p.Rating = ann.Rating
		p.Summary = ann.Summary
		enriched++
	}
	return enriched
}

// notify verschickt die Ergebnis-Mail, wenn die Versandregeln es verlangen.
func (s *SearchService) notify(query string, result *RunResult, force bool) int {
	if !s.Mailer.Configured() {
		return 0
	}
	if !force {
		if !s.Config.AutoNotifications || result.Added < s.Config.MinPapersForEmail {
			return 0
		}
	}
	if result.Added == 0 && !force {
		return 0
	}

	subject := mailer.Subject(result.Added, query)
	body := mailer.Body(query, result.SheetName, result.Found, result.Added, result.NewPapers)
	sent, err := s.Mailer.Send(s.Config.Recipients(), subject, body, s.Store.Path())
	if err != nil {
		s.Logger.Error("Mail-Versand fehlgeschlagen", zap.Error(err))
		return 0
	}
	return sent
}

// RepeatAll wiederholt alle Suchen aus dem Overview-Sheet in der dort
// hinterlegten Reihenfolge. Einzelne Fehlschläge brechen den Durchlauf
// nicht ab. Zurück kommt die Gesamtzahl neu gefundener Paper.
func (s *SearchService) RepeatAll(ctx context.Context) (int, []*RunResult, error) {
	entries, err := s.Store.Overview()
	if err != nil {
		return 0, nil, err
	}
	if len(entries) == 0 {
		return 0, nil, nil
	}

	totalNew := 0
	var results []*RunResult
	for i, entry := range entries {
		term := entry.SearchTerm
		if term == "" {
			term = entry.SheetName
		}

		result, err := s.Run(ctx, term, RunOptions{MaxResults: s.Config.MaxResults})
		if err != nil {
			if ctx.Err() != nil {
				return totalNew, results, ctx.Err()
			}
			s.Logger.Error("Wiederholung der Suche fehlgeschlagen",
				zap.String("term", term), zap.Error(err))
			continue
		}
		totalNew += result.Added
		results = append(results, result)

		// Pause zwischen den Suchen, um die APIs nicht zu überlasten.
		if i < len(entries)-1 {
			select {
			case <-ctx.Done():
				return totalNew, results, ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}

	s.Logger.Info("Alle Suchen wiederholt",
		zap.Int("searches", len(entries)), zap.Int("total_new", totalNew))
	return totalNew, results, nil
}
