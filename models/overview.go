package models

// OverviewEntry repräsentiert eine Zeile des Overview-Sheets der Arbeitsmappe.
type OverviewEntry struct {
	SheetName  string `json:"sheet_name"`
	SearchTerm string `json:"search_term"`
	PaperCount int    `json:"paper_count"`
	LastUpdate string `json:"last_update,omitempty"`
	NewLastRun int    `json:"new_last_run"`
	Status     string `json:"status,omitempty"` // Neu, Aktualisiert, Repariert
	CreatedAt  string `json:"created_at,omitempty"`
}

// HealthReport beschreibt das Ergebnis einer Integritätsprüfung der Arbeitsmappe.
type HealthReport struct {
	Exists         bool     `json:"exists"`
	Readable       bool     `json:"readable"`
	RequiredSheets bool     `json:"required_sheets"`
	MissingSheets  []string `json:"missing_sheets,omitempty"`
	DataSheets     int      `json:"data_sheets"`
	TotalPapers    int      `json:"total_papers"`
	// 0-100 in 25er-Schritten
	HealthScore int `json:"health_score"`
}

// Stats fasst den Bestand der Arbeitsmappe zusammen.
type Stats struct {
	Topics      int    `json:"topics"`
	TotalPapers int    `json:"total_papers"`
	NewLastRun  int    `json:"new_last_run"`
	LastUpdate  string `json:"last_update,omitempty"`
}
