package excel

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"paper-scout/models"
)

// Diagnose prüft die Arbeitsmappe ohne sie zu verändern. Der Health-Score
// steigt in 25er-Schritten: Datei vorhanden, Datei lesbar, Pflicht-Sheets
// vorhanden, mindestens ein Themen-Sheet mit intakter Kopfzeile.
func (s *Store) Diagnose() *models.HealthReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := &models.HealthReport{MissingSheets: []string{OverviewSheet, InfoSheet}}
	if _, err := os.Stat(s.path); err != nil {
		return rep
	}
	rep.Exists = true
	rep.HealthScore = 25

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return rep
	}
	defer f.Close()
	rep.Readable = true
	rep.HealthScore = 50

	have := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		have[name] = true
	}
	rep.MissingSheets = nil
	for _, required := range []string{OverviewSheet, InfoSheet} {
		if !have[required] {
			rep.MissingSheets = append(rep.MissingSheets, required)
		}
	}
	if len(rep.MissingSheets) == 0 {
		rep.RequiredSheets = true
		rep.HealthScore = 75
	}

	healthyData := 0
	for _, sheet := range dataSheets(f) {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		rep.DataSheets++
		rep.TotalPapers += max(0, len(rows)-1)
		if len(rows) > 0 && headerMatches(rows[0]) {
			healthyData++
		}
	}
	if rep.DataSheets > 0 && healthyData == rep.DataSheets && rep.RequiredSheets {
		rep.HealthScore = 100
	}

	return rep
}

// RepairBasic stellt die Grundstruktur wieder her: fehlende oder
// unlesbare Mappe wird (nach Sicherung) neu aufgebaut, fehlende
// Pflicht-Sheets werden angelegt. Themen-Sheets bleiben unangetastet.
func (s *Store) RepairBasic() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repairBasicLocked()
}

func (s *Store) repairBasicLocked() ([]string, error) {
	var actions []string

	f, rebuilt, err := s.openOrRecover()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if rebuilt {
		actions = append(actions, "Arbeitsmappe neu erstellt")
	}

	if created, err := ensureSheet(f, OverviewSheet, overviewHeaders, overviewColWidths); err != nil {
		return actions, err
	} else if created {
		actions = append(actions, "Overview-Sheet neu angelegt")
	}
	if created, err := ensureSheet(f, InfoSheet, []string{"Info", "Wert"}, []float64{20, 45}); err != nil {
		return actions, err
	} else if created {
		actions = append(actions, "Info-Sheet neu angelegt")
	}

	if err := s.save(f); err != nil {
		return actions, fmt.Errorf("reparierte arbeitsmappe konnte nicht gespeichert werden: %w", err)
	}
	s.logger.Info("Basis-Reparatur abgeschlossen", zap.Strings("actions", actions))
	return actions, nil
}

// RepairFull führt die Basis-Reparatur aus, richtet zusätzlich defekte
// Kopfzeilen der Themen-Sheets und baut das Overview-Sheet aus den
// tatsächlichen Sheet-Inhalten neu auf. Bestehende Suchbegriffe werden
// dabei übernommen, sonst dient der Sheet-Name als Suchbegriff.
func (s *Store) RepairFull() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions, err := s.repairBasicLocked()
	if err != nil {
		return actions, err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return actions, fmt.Errorf("arbeitsmappe nach basis-reparatur nicht lesbar: %w", err)
	}
	defer f.Close()

	for _, sheet := range dataSheets(f) {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		if len(rows) == 0 || !headerMatches(rows[0]) {
			if err := writeHeaderRow(f, sheet, paperHeaders, paperColWidths); err != nil {
				return actions, err
			}
			actions = append(actions, fmt.Sprintf("Kopfzeile von %s repariert", sheet))
		}
	}

	terms := s.overviewTerms(f)
	rows, err := f.GetRows(OverviewSheet)
	if err != nil {
		return actions, err
	}
	for i := len(rows); i >= 2; i-- {
		if err := f.RemoveRow(OverviewSheet, i); err != nil {
			return actions, err
		}
	}

	ts := nowStamp()
	for i, sheet := range dataSheets(f) {
		dataRows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		term := terms[sheet]
		if term == "" {
			term = sheet
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return actions, err
		}
		if err := f.SetSheetRow(OverviewSheet, cellRef, &[]interface{}{
			sheet, term, max(0, len(dataRows)-1), ts, 0, "Repariert", ts,
		}); err != nil {
			return actions, err
		}
	}
	actions = append(actions, "Overview aus Themen-Sheets neu aufgebaut")

	if err := s.save(f); err != nil {
		return actions, fmt.Errorf("reparierte arbeitsmappe konnte nicht gespeichert werden: %w", err)
	}
	s.logger.Info("Voll-Reparatur abgeschlossen", zap.Strings("actions", actions))
	return actions, nil
}

// overviewTerms liest das bestehende Mapping Sheet-Name -> Suchbegriff.
func (s *Store) overviewTerms(f *excelize.File) map[string]string {
	terms := make(map[string]string)
	rows, err := f.GetRows(OverviewSheet)
	if err != nil {
		return terms
	}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if name := cell(row, 0); name != "" {
			terms[name] = cell(row, 1)
		}
	}
	return terms
}

// headerMatches prüft, ob eine Kopfzeile dem Themen-Sheet-Schema entspricht.
func headerMatches(row []string) bool {
	if len(row) < len(paperHeaders) {
		return false
	}
	for i, want := range paperHeaders {
		if row[i] != want {
			return false
		}
	}
	return true
}
