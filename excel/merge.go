package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"paper-scout/models"
)

// Spaltenindizes der Themen-Sheets (0-basiert, siehe paperHeaders).
const (
	colPMID = iota
	colTitle
	colAuthors
	colJournal
	colYear
	colAbstract
	colDOI
	colURL
	colCitations
	colSource
	colRating
	colSummary
	colStatus
	colAddedAt
)

// MergeAndPersist gleicht Suchergebnisse gegen den Bestand des Themas ab
// und hängt nur unbekannte Paper an. Bekannt ist ein Paper, wenn seine
// externe ID (PMID, sonst DOI) schon im Sheet steht oder, als Fallback,
// sein normalisierter Titel. Titellose Paper werden verworfen. Der Aufruf
// ist idempotent: ein zweiter Lauf mit denselben Ergebnissen fügt nichts
// hinzu.
//
// Zurück kommen die Anzahl neuer Paper und die neuen Paper selbst (mit
// Status und Zeitstempel gesetzt); bereits bekannte Paper werden im
// übergebenen Slice als BEKANNT markiert.
func (s *Store) MergeAndPersist(topic string, papers []*models.Paper) (int, []*models.Paper, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return 0, nil, fmt.Errorf("leerer suchbegriff")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, _, err := s.openOrRecover()
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	sheet := SheetName(topic)
	if _, err := ensureSheet(f, sheet, paperHeaders, paperColWidths); err != nil {
		return 0, nil, fmt.Errorf("sheet %s konnte nicht angelegt werden: %w", sheet, err)
	}
	if _, err := ensureSheet(f, OverviewSheet, overviewHeaders, overviewColWidths); err != nil {
		return 0, nil, fmt.Errorf("overview-sheet konnte nicht angelegt werden: %w", err)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, nil, fmt.Errorf("sheet %s nicht lesbar: %w", sheet, err)
	}

	knownIDs := make(map[string]bool)
	knownTitles := make(map[string]bool)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if pmid := strings.TrimSpace(cell(row, colPMID)); pmid != "" {
			knownIDs[pmid] = true
		}
		if doi := strings.TrimSpace(cell(row, colDOI)); doi != "" {
			knownIDs[doi] = true
		}
		if t := models.NormalizeTitle(cell(row, colTitle)); t != "" {
			knownTitles[t] = true
		}
	}

	now := time.Now()
	var newPapers []*models.Paper
	for _, p := range papers {
		normTitle := models.NormalizeTitle(p.Title)
		if normTitle == "" {
			continue
		}
		id := p.ExternalID()
		if (id != "" && knownIDs[id]) || knownTitles[normTitle] {
			p.Status = models.StatusKnown
			continue
		}

		p.Status = models.StatusNew
		p.AddedAt = now
		newPapers = append(newPapers, p)

		// Auch innerhalb eines Laufs zählt jedes Paper nur einmal.
		if id != "" {
			knownIDs[id] = true
		}
		knownTitles[normTitle] = true
	}

	existing := len(rows) - 1
	if existing < 0 {
		existing = 0
	}

	for i, p := range newPapers {
		cellRef, err := excelize.CoordinatesToCellName(1, existing+2+i)
		if err != nil {
			return 0, nil, err
		}
		if err := f.SetSheetRow(sheet, cellRef, &[]interface{}{
			p.PMID,
			clip(p.Title, 500),
			clip(p.Authors, 300),
			clip(p.Journal, 200),
			p.Year,
			clip(p.Abstract, 1000),
			p.DOI,
			p.URL,
			p.Citations,
			p.Source,
			ratingCell(p.Rating),
			clip(p.Summary, 500),
			p.Status,
			p.AddedAt.Format(timestampLayout),
		}); err != nil {
			return 0, nil, fmt.Errorf("zeile konnte nicht geschrieben werden: %w", err)
		}
	}

	total := existing + len(newPapers)
	if err := s.updateOverview(f, topic, sheet, total, len(newPapers), now); err != nil {
		return 0, nil, err
	}

	if err := s.save(f); err != nil {
		return 0, nil, fmt.Errorf("arbeitsmappe konnte nicht gespeichert werden: %w", err)
	}

	s.logger.Info("Arbeitsmappe aktualisiert",
		zap.String("sheet", sheet),
		zap.Int("new_papers", len(newPapers)),
		zap.Int("total_papers", total))
	return len(newPapers), newPapers, nil
}

// AnnotateRows trägt Bewertung und Zusammenfassung nachträglich in die
// Zeilen der angegebenen Paper ein, damit die Anreicherung nicht nur in
// der Antwort, sondern auch in der Arbeitsmappe landet. Zeilen werden
// über die externe ID oder den normalisierten Titel gefunden; Paper ohne
// Annotation bleiben unberührt.
func (s *Store) AnnotateRows(sheet string, papers []*models.Paper) error {
	byID := make(map[string]*models.Paper)
	byTitle := make(map[string]*models.Paper)
	for _, p := range papers {
		if p.Rating <= 0 && p.Summary == "" {
			continue
		}
		if id := p.ExternalID(); id != "" {
			byID[id] = p
		}
		if t := models.NormalizeTitle(p.Title); t != "" {
			byTitle[t] = p
		}
	}
	if len(byID) == 0 && len(byTitle) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("arbeitsmappe nicht lesbar: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("sheet %s nicht lesbar: %w", sheet, err)
	}

	updated := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		p := byID[strings.TrimSpace(cell(row, colPMID))]
		if p == nil {
			p = byID[strings.TrimSpace(cell(row, colDOI))]
		}
		if p == nil {
			p = byTitle[models.NormalizeTitle(cell(row, colTitle))]
		}
		if p == nil {
			continue
		}
		rowIdx := i + 1
		f.SetCellValue(sheet, fmt.Sprintf("K%d", rowIdx), ratingCell(p.Rating))
		f.SetCellValue(sheet, fmt.Sprintf("L%d", rowIdx), clip(p.Summary, 500))
		updated++
	}
	if updated == 0 {
		return nil
	}

	if err := s.save(f); err != nil {
		return fmt.Errorf("arbeitsmappe konnte nicht gespeichert werden: %w", err)
	}
	s.logger.Info("Annotationen gespeichert",
		zap.String("sheet", sheet), zap.Int("rows", updated))
	return nil
}

// updateOverview hält den Overview-Eintrag des Themas synchron zur
// tatsächlichen Zeilenzahl seines Sheets.
func (s *Store) updateOverview(f *excelize.File, topic, sheet string, total, added int, now time.Time) error {
	rows, err := f.GetRows(OverviewSheet)
	if err != nil {
		return fmt.Errorf("overview nicht lesbar: %w", err)
	}

	ts := now.Format(timestampLayout)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if cell(row, 0) == sheet || cell(row, 1) == topic {
			rowIdx := i + 1
			f.SetCellValue(OverviewSheet, fmt.Sprintf("C%d", rowIdx), total)
			f.SetCellValue(OverviewSheet, fmt.Sprintf("D%d", rowIdx), ts)
			f.SetCellValue(OverviewSheet, fmt.Sprintf("E%d", rowIdx), added)
			f.SetCellValue(OverviewSheet, fmt.Sprintf("F%d", rowIdx), "Aktualisiert")
			return nil
		}
	}

	cellRef, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	return f.SetSheetRow(OverviewSheet, cellRef, &[]interface{}{
		sheet, topic, total, ts, added, "Neu", ts,
	})
}

// ratingCell lässt die Bewertungszelle leer, solange keine Anreicherung vorliegt.
func ratingCell(rating float64) interface{} {
	if rating <= 0 {
		return ""
	}
	return rating
}
