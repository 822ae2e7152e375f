package europepmc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-scout/config"
)

func TestSearchMapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "krebs", r.URL.Query().Get("query"))
		assert.Equal(t, "25", r.URL.Query().Get("pageSize"))
		fmt.Fprint(w, `{
			"resultList": {"result": [
				{
					"id": "38000001", "source": "MED", "pmid": "38000001",
					"doi": "10.1000/epmc1", "title": "Immunotherapy in solid tumors",
					"authorString": "Meier A, Schmidt B.",
					"journalTitle": "Cancer J", "pubYear": "2023",
					"abstractText": "Kurzfassung.", "citedByCount": 17
				},
				{
					"id": "PPR500", "source": "PPR",
					"title": "Preprint without pmid", "pubYear": "2024"
				}
			]}
		}`)
	}))
	defer srv.Close()

	cfg := &config.Config{EuropePMCBaseURL: srv.URL}
	f := NewFetcher(cfg, zap.NewNop())

	papers, err := f.Search(context.Background(), "krebs", 25)
	require.NoError(t, err)
	require.Len(t, papers, 2)

	p := papers[0]
	assert.Equal(t, "38000001", p.PMID)
	assert.Equal(t, "10.1000/epmc1", p.DOI)
	assert.Equal(t, "Immunotherapy in solid tumors", p.Title)
	assert.Equal(t, "Cancer J", p.Journal)
	assert.Equal(t, "2023", p.Year)
	assert.Equal(t, 17, p.Citations)
	assert.Equal(t, "europepmc", p.Source)
	assert.Equal(t, "https://europepmc.org/article/MED/38000001", p.URL)

	assert.Equal(t, "https://europepmc.org/article/PPR/PPR500", papers[1].URL)
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(&config.Config{EuropePMCBaseURL: srv.URL}, zap.NewNop())
	_, err := f.Search(context.Background(), "x", 10)
	assert.Error(t, err)
}
