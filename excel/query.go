package excel

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"paper-scout/models"
)

// Overview liest den Index aller Themen aus dem Overview-Sheet.
// Existiert die Arbeitsmappe noch nicht, ist das Ergebnis leer.
func (s *Store) Overview() ([]models.OverviewEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.openReadOnly()
	if err != nil || f == nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(OverviewSheet)
	if err != nil {
		return nil, fmt.Errorf("overview nicht lesbar: %w", err)
	}

	var entries []models.OverviewEntry
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if cell(row, 0) == "" && cell(row, 1) == "" {
			continue
		}
		entries = append(entries, models.OverviewEntry{
			SheetName:  cell(row, 0),
			SearchTerm: cell(row, 1),
			PaperCount: atoi(cell(row, 2)),
			LastUpdate: cell(row, 3),
			NewLastRun: atoi(cell(row, 4)),
			Status:     cell(row, 5),
			CreatedAt:  cell(row, 6),
		})
	}
	return entries, nil
}

// TopicPapers liest alle Paper eines Themen-Sheets.
func (s *Store) TopicPapers(sheet string) ([]*models.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.openReadOnly()
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("arbeitsmappe existiert nicht")
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %s existiert nicht", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %s nicht lesbar: %w", sheet, err)
	}

	var papers []*models.Paper
	for i, row := range rows {
		if i == 0 {
			continue
		}
		p := &models.Paper{
			PMID:      cell(row, colPMID),
			Title:     cell(row, colTitle),
			Authors:   cell(row, colAuthors),
			Journal:   cell(row, colJournal),
			Year:      cell(row, colYear),
			Abstract:  cell(row, colAbstract),
			DOI:       cell(row, colDOI),
			URL:       cell(row, colURL),
			Citations: atoi(cell(row, colCitations)),
			Source:    cell(row, colSource),
			Summary:   cell(row, colSummary),
			Status:    cell(row, colStatus),
		}
		if r, err := strconv.ParseFloat(cell(row, colRating), 64); err == nil {
			p.Rating = r
		}
		if t, err := time.ParseInLocation(timestampLayout, cell(row, colAddedAt), time.Local); err == nil {
			p.AddedAt = t
		}
		if p.Title == "" {
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// Stats fasst den Bestand über alle Themen zusammen.
func (s *Store) Stats() (*models.Stats, error) {
	entries, err := s.Overview()
	if err != nil {
		return nil, err
	}

	stats := &models.Stats{Topics: len(entries)}
	var last time.Time
	for _, e := range entries {
		stats.TotalPapers += e.PaperCount
		stats.NewLastRun += e.NewLastRun
		if t, err := time.ParseInLocation(timestampLayout, e.LastUpdate, time.Local); err == nil && t.After(last) {
			last = t
			stats.LastUpdate = e.LastUpdate
		}
	}
	return stats, nil
}

// openReadOnly öffnet die Arbeitsmappe für Lesezugriffe. Fehlt die Datei,
// kommt (nil, nil) zurück, eine unlesbare Datei ist ein Fehler.
func (s *Store) openReadOnly() (*excelize.File, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("arbeitsmappe nicht lesbar: %w", err)
	}
	return f, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
