package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-scout/config"
	"paper-scout/excel"
	"paper-scout/models"
	"paper-scout/providers"
)

// fakeProvider liefert vorbereitete Ergebnisse oder einen Fehler.
type fakeProvider struct {
	name     string
	papers   []*models.Paper
	err      error
	gotLimit int
}

func (f *fakeProvider) Search(ctx context.Context, term string, limit int) ([]*models.Paper, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	// Kopien zurückgeben, damit Tests denselben Provider mehrfach nutzen können.
	out := make([]*models.Paper, len(f.papers))
	for i, p := range f.papers {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

func (f *fakeProvider) Name() string { return f.name }

func newTestService(t *testing.T, provs ...providers.Provider) *SearchService {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{MaxResults: 50, MinPapersForEmail: 1}
	store := excel.NewStore(filepath.Join(dir, "papers.xlsx"), filepath.Join(dir, "backups"), 3, zap.NewNop())
	return NewSearchService(cfg, store, zap.NewNop(), provs)
}

func paper(pmid, title string) *models.Paper {
	return &models.Paper{PMID: pmid, Title: title, Source: "fake"}
}

func TestSearchAllToleratesProviderFailure(t *testing.T) {
	good := &fakeProvider{name: "good", papers: []*models.Paper{
		paper("1", "Erste Studie über Aspirin"),
		paper("2", "Zweite Studie über Statine"),
	}}
	bad := &fakeProvider{name: "bad", err: fmt.Errorf("api kaputt")}
	svc := newTestService(t, good, bad)

	papers, sources := svc.SearchAll(context.Background(), "Herz", 50)
	assert.Len(t, papers, 2)
	require.Len(t, sources, 2)
	assert.Equal(t, 2, sources[0].Count)
	assert.Empty(t, sources[0].Error)
	assert.Equal(t, "api kaputt", sources[1].Error)
}

func TestSearchAllDedupesAcrossProviders(t *testing.T) {
	a := &fakeProvider{name: "a", papers: []*models.Paper{
		paper("1", "Aspirin and heart disease"),
		paper("2", "Unique to provider A only"),
	}}
	b := &fakeProvider{name: "b", papers: []*models.Paper{
		// Gleicher Titel, andere Interpunktion und Groß/Kleinschreibung.
		paper("", "Aspirin, and Heart Disease!"),
		paper("3", "Unique to provider B only"),
	}}
	svc := newTestService(t, a, b)

	papers, _ := svc.SearchAll(context.Background(), "Herz", 50)
	require.Len(t, papers, 3)
	// Der erste Treffer gewinnt, Reihenfolge bleibt stabil.
	assert.Equal(t, "1", papers[0].PMID)
	assert.Equal(t, "2", papers[1].PMID)
	assert.Equal(t, "3", papers[2].PMID)
}

func TestSearchAllDropsTitlelessResults(t *testing.T) {
	p := &fakeProvider{name: "p", papers: []*models.Paper{
		paper("1", ""),
		paper("2", "ok?!"), // normalisiert zu kurz
		paper("3", "Ein richtiger Titel mit Substanz"),
	}}
	svc := newTestService(t, p)

	papers, _ := svc.SearchAll(context.Background(), "x", 50)
	require.Len(t, papers, 1)
	assert.Equal(t, "3", papers[0].PMID)
}

func TestSearchAllPerSourceFloor(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	c := &fakeProvider{name: "c"}
	svc := newTestService(t, a, b, c)

	// 12 / 3 = 4 läge unter dem Minimum von 10 pro Quelle.
	svc.SearchAll(context.Background(), "x", 12)
	assert.Equal(t, 10, a.gotLimit)
	assert.Equal(t, 10, b.gotLimit)
	assert.Equal(t, 10, c.gotLimit)

	svc.SearchAll(context.Background(), "x", 90)
	assert.Equal(t, 30, a.gotLimit)
}

func TestRunPersistsAndIsIdempotent(t *testing.T) {
	p := &fakeProvider{name: "p", papers: []*models.Paper{
		paper("1", "Erste Studie über Aspirin"),
		paper("2", "Zweite Studie über Statine"),
		paper("3", "Dritte Studie über Betablocker"),
	}}
	svc := newTestService(t, p)

	result, err := svc.Run(context.Background(), "Herzinfarkt Prävention", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Found)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 0, result.Known)
	assert.Equal(t, excel.SheetName("Herzinfarkt Prävention"), result.SheetName)
	assert.Equal(t, 0, result.EmailSent)

	result, err = svc.Run(context.Background(), "Herzinfarkt Prävention", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Found)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 3, result.Known)
}

func TestRunRejectsEmptyQuery(t *testing.T) {
	svc := newTestService(t, &fakeProvider{name: "p"})

	_, err := svc.Run(context.Background(), "   ", RunOptions{})
	assert.Error(t, err)
}

func TestRunWithoutResults(t *testing.T) {
	svc := newTestService(t, &fakeProvider{name: "p"})

	result, err := svc.Run(context.Background(), "nichts", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Found)
	assert.Equal(t, 0, result.Added)

	// Ohne Treffer darf auch keine Arbeitsmappe entstehen.
	entries, err := svc.Store.Overview()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRepeatAllRunsEveryKnownSearch(t *testing.T) {
	p := &fakeProvider{name: "p", papers: []*models.Paper{
		paper("1", "Erste Studie über Aspirin"),
	}}
	svc := newTestService(t, p)

	_, err := svc.Run(context.Background(), "Thema Eins", RunOptions{})
	require.NoError(t, err)

	// Provider liefert jetzt ein zusätzliches Paper.
	p.papers = append(p.papers, paper("2", "Zweite Studie über Statine"))

	totalNew, results, err := svc.RepeatAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, totalNew)
	require.Len(t, results, 1)
	assert.Equal(t, "Thema Eins", results[0].Query)
}

func TestDedupeByTitleFirstWins(t *testing.T) {
	papers := []*models.Paper{
		{PMID: "1", Title: "Gleicher Titel der Studie"},
		{PMID: "2", Title: "gleicher titel der studie"},
	}
	out := dedupeByTitle(papers)
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].PMID)
}
