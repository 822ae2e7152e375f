package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-scout/config"
)

const efetchXML = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>1001</PMID>
      <Article>
        <ArticleTitle>Aspirin and heart disease</ArticleTitle>
        <Abstract><AbstractText>Teil eins.</AbstractText><AbstractText>Teil zwei.</AbstractText></Abstract>
        <AuthorList>
          <Author><LastName>Meier</LastName><Initials>A</Initials></Author>
          <Author><LastName>Schmidt</LastName><Initials>B</Initials></Author>
        </AuthorList>
        <Journal>
          <Title>Test Journal</Title>
          <JournalIssue><PubDate><Year>2021</Year></PubDate></JournalIssue>
        </Journal>
        <ELocationID EIdType="doi" ValidYN="Y">10.1000/x1</ELocationID>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>1002</PMID>
      <Article>
        <ArticleTitle>Statins in primary prevention</ArticleTitle>
        <Journal>
          <Title>Other Journal</Title>
          <JournalIssue><PubDate><Year>2022</Year></PubDate></JournalIssue>
        </Journal>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func newTestFetcher(t *testing.T, handler http.Handler) (*Fetcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{PubMedBaseURL: srv.URL, PubMedBatchSize: 15, PubMedTool: "paper-scout"}
	return NewFetcher(cfg, zap.NewNop()), srv
}

func TestSearchMapsArticles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
		assert.Equal(t, "herz", r.URL.Query().Get("term"))
		fmt.Fprint(w, `{"esearchresult":{"idlist":["1001","1002"]}}`)
	})
	mux.HandleFunc("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1001,1002", r.URL.Query().Get("id"))
		fmt.Fprint(w, efetchXML)
	})
	f, _ := newTestFetcher(t, mux)

	papers, err := f.Search(context.Background(), "herz", 20)
	require.NoError(t, err)
	require.Len(t, papers, 2)

	p := papers[0]
	assert.Equal(t, "1001", p.PMID)
	assert.Equal(t, "Aspirin and heart disease", p.Title)
	assert.Equal(t, "Teil eins.\nTeil zwei.", p.Abstract)
	assert.Equal(t, "A Meier, B Schmidt", p.Authors)
	assert.Equal(t, "Test Journal", p.Journal)
	assert.Equal(t, "2021", p.Year)
	assert.Equal(t, "10.1000/x1", p.DOI)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/1001/", p.URL)
	assert.Equal(t, "pubmed", p.Source)

	assert.Empty(t, papers[1].DOI)
	assert.Empty(t, papers[1].Abstract)
}

func TestSearchNoResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	})
	f, _ := newTestFetcher(t, mux)

	papers, err := f.Search(context.Background(), "nichts", 20)
	require.NoError(t, err)
	assert.Empty(t, papers)
}

func TestSearchBatchesEfetchRequests(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 2000+i)
	}

	var batches []string
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"esearchresult":{"idlist":["%s"]}}`, strings.Join(ids, `","`))
	})
	mux.HandleFunc("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		batches = append(batches, r.URL.Query().Get("id"))
		fmt.Fprint(w, `<?xml version="1.0"?><PubmedArticleSet></PubmedArticleSet>`)
	})
	f, _ := newTestFetcher(t, mux)
	f.Config.PubMedBatchSize = 15

	_, err := f.Search(context.Background(), "x", 20)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Len(t, strings.Split(batches[0], ","), 15)
	assert.Len(t, strings.Split(batches[1], ","), 5)
}

func TestSearchEsearchError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	f, _ := newTestFetcher(t, mux)

	_, err := f.Search(context.Background(), "x", 20)
	assert.Error(t, err)
}
