package models

import (
	"time"
)

// Status eines Papers relativ zur Arbeitsmappe.
const (
	StatusNew   = "NEU"
	StatusKnown = "BEKANNT"
)

// Paper repräsentiert eine wissenschaftliche Studie und deren Metadaten.
type Paper struct {
	PMID     string `json:"pmid,omitempty"`
	DOI      string `json:"doi,omitempty"`
	Title    string `json:"title"`
	Authors  string `json:"authors,omitempty"`
	Journal  string `json:"journal,omitempty"`
	Year     string `json:"year,omitempty"`
	Abstract string `json:"abstract,omitempty"`
	URL      string `json:"url,omitempty"`

	// Herkunfts-Provider (pubmed, europepmc, semanticscholar)
	Source    string `json:"source,omitempty"`
	Citations int    `json:"citations"`

	// Claude-Anreicherung, 0 bzw. leer wenn nicht angereichert
	Rating  float64 `json:"rating,omitempty"`
	Summary string  `json:"summary,omitempty"`

	Status  string    `json:"status,omitempty"`
	AddedAt time.Time `json:"added_at,omitempty"`
}

// ExternalID gibt die stärkste verfügbare Kennung zurück, PMID vor DOI.
// Leer, wenn das Paper nur über den Titel identifizierbar ist.
func (p *Paper) ExternalID() string {
	if p.PMID != "" {
		return p.PMID
	}
	return p.DOI
}
