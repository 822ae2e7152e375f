package semanticscholar

// SearchResponse ist die Top-Level-Struktur der Graph-API-Antwort.
type SearchResponse struct {
	Total int     `json:"total"`
	Data  []Entry `json:"data"`
}

// Entry repräsentiert einen einzelnen Treffer in der API-Antwort.
type Entry struct {
	PaperID       string `json:"paperId"`
	Title         string `json:"title"`
	Abstract      string `json:"abstract"`
	Venue         string `json:"venue"`
	Year          int    `json:"year"`
	URL           string `json:"url"`
	CitationCount int    `json:"citationCount"`
	Authors       []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ExternalIDs struct {
		DOI    string `json:"DOI"`
		PubMed string `json:"PubMed"`
	} `json:"externalIds"`
}
