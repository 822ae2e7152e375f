// Package excel implementiert den arbeitsmappenbasierten Paper-Speicher.
// Die Excel-Datei ist die einzige Datenbank des Systems: pro Suchbegriff
// ein Sheet, dazu ein Overview-Sheet als Index und ein Info-Sheet.
package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Pflicht-Sheets jeder Arbeitsmappe.
const (
	OverviewSheet = "Overview"
	InfoSheet     = "Info"

	defaultSheet    = "Sheet1"
	timestampLayout = "02.01.2006 15:04"
)

// Spaltenköpfe der Themen-Sheets. Die Spaltenreihenfolge ist Teil des
// Dateiformats, Leser greifen per Index zu.
var paperHeaders = []string{
	"PMID", "Titel", "Autoren", "Journal", "Jahr", "Abstract", "DOI", "URL",
	"Zitierungen", "Quelle", "Bewertung", "Zusammenfassung", "Status", "Hinzugefügt_am",
}

var overviewHeaders = []string{
	"Sheet_Name", "Suchbegriff", "Anzahl_Papers", "Letztes_Update",
	"Neue_Papers_Letzter_Run", "Status", "Erstellt_am",
}

var paperColWidths = []float64{10, 50, 30, 25, 8, 60, 22, 35, 12, 16, 10, 40, 12, 18}
var overviewColWidths = []float64{25, 35, 14, 20, 22, 12, 20}

// Store verwaltet die Arbeitsmappe. Alle Schreiboperationen laufen als
// Laden-Ändern-Speichern unter einem Mutex, es gibt also immer höchstens
// einen Schreiber.
type Store struct {
	mu        sync.Mutex
	path      string
	backupDir string
	keep      int
	logger    *zap.Logger
}

// NewStore erstellt einen Store für die Arbeitsmappe unter path.
func NewStore(path, backupDir string, keep int, logger *zap.Logger) *Store {
	if keep <= 0 {
		keep = 10
	}
	return &Store{path: path, backupDir: backupDir, keep: keep, logger: logger}
}

// Path gibt den Pfad der Arbeitsmappe zurück.
func (s *Store) Path() string {
	return s.path
}

// openOrRecover öffnet die Arbeitsmappe. Fehlt die Datei, wird eine neue
// Mappe aufgebaut. Ist die Datei nicht lesbar, wird sie als korrupt in
// das Backup-Verzeichnis kopiert und ebenfalls neu aufgebaut, damit ein
// Lauf nie an einer kaputten Datei scheitert. rebuilt meldet, ob eine
// neue Mappe aufgebaut wurde.
func (s *Store) openOrRecover() (f *excelize.File, rebuilt bool, err error) {
	if _, statErr := os.Stat(s.path); os.IsNotExist(statErr) {
		s.logger.Info("Arbeitsmappe existiert nicht, erstelle neue", zap.String("path", s.path))
		f, err = s.newWorkbook()
		return f, true, err
	}

	f, openErr := excelize.OpenFile(s.path)
	if openErr != nil {
		s.logger.Warn("Arbeitsmappe nicht lesbar, sichere und erstelle neu",
			zap.String("path", s.path), zap.Error(openErr))
		if qErr := s.quarantine(); qErr != nil {
			s.logger.Error("Korrupte Arbeitsmappe konnte nicht gesichert werden", zap.Error(qErr))
		}
		f, err = s.newWorkbook()
		return f, true, err
	}
	return f, false, nil
}

func nowStamp() string {
	return time.Now().Format(timestampLayout)
}

// newWorkbook baut eine frische Arbeitsmappe mit Overview- und Info-Sheet.
func (s *Store) newWorkbook() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheet, OverviewSheet); err != nil {
		return nil, err
	}
	if err := writeHeaderRow(f, OverviewSheet, overviewHeaders, overviewColWidths); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(InfoSheet); err != nil {
		return nil, err
	}
	now := time.Now().Format(timestampLayout)
	infoRows := [][]interface{}{
		{"Info", "Wert"},
		{"Erstellt_am", now},
		{"Version", "1.0"},
		{"Beschreibung", "Automatisch verwaltete Paper-Datenbank"},
	}
	for i, row := range infoRows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(InfoSheet, cellRef, &row); err != nil {
			return nil, err
		}
	}
	setColWidths(f, InfoSheet, []float64{20, 45})
	return f, nil
}

// ensureSheet legt ein Sheet mit Kopfzeile an, falls es fehlt.
// Gibt true zurück, wenn das Sheet neu angelegt wurde.
func ensureSheet(f *excelize.File, name string, headers []string, widths []float64) (bool, error) {
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return false, err
	}
	if idx >= 0 {
		return false, nil
	}
	if _, err := f.NewSheet(name); err != nil {
		return false, err
	}
	if err := writeHeaderRow(f, name, headers, widths); err != nil {
		return false, err
	}
	return true, nil
}

// writeHeaderRow schreibt und formatiert die Kopfzeile eines Sheets.
func writeHeaderRow(f *excelize.File, sheet string, headers []string, widths []float64) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		return err
	}
	setColWidths(f, sheet, widths)
	return nil
}

// headerStyle: weiße fette Schrift auf dunkelblauem Grund.
func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
}

func setColWidths(f *excelize.File, sheet string, widths []float64) {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			continue
		}
		_ = f.SetColWidth(sheet, col, col, w)
	}
}

// save schreibt die Mappe an ihren Zielpfad, Verzeichnis wird bei Bedarf angelegt.
func (s *Store) save(f *excelize.File) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("verzeichnis %s konnte nicht angelegt werden: %w", dir, err)
		}
	}
	return f.SaveAs(s.path)
}

// dataSheets gibt alle Themen-Sheets zurück (alles außer Overview und Info).
func dataSheets(f *excelize.File) []string {
	var out []string
	for _, name := range f.GetSheetList() {
		if name == OverviewSheet || name == InfoSheet {
			continue
		}
		out = append(out, name)
	}
	return out
}

// cell liest eine Zelle aus einer GetRows-Zeile. Excelize lässt leere
// Zellen am Zeilenende weg, daher der Bounds-Check.
func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

// clip kürzt einen String auf maximal n Runen.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
