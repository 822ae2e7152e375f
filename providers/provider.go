package providers

import (
	"context"

	"paper-scout/models"
)

// Provider ist das Interface, das jeder Such-Provider (z.B. PubMed, EuropePMC) implementieren muss.
type Provider interface {
	// Search führt eine Suche für einen gegebenen Term durch und gibt höchstens
	// limit standardisierte Paper-Modelle zurück.
	Search(ctx context.Context, term string, limit int) ([]*models.Paper, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "pubmed").
	Name() string
}
