package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egvia-interpret-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func sampleRequest() *domain.InterpretRequest {
	return &domain.InterpretRequest{
		Gene:           "BRAF",
		HGVS:           "c.1799T>A",
		VariantType:    domain.SNV,
		DiseaseContext: "melanoma",
		AssayContext:   domain.PANEL,
	}
}

func TestBuildClinVarQueries(t *testing.T) {
	queries := BuildClinVarQueries(sampleRequest())
	assert.Equal(t, []string{
		"BRAF[gene] AND c.1799T>A",
		"BRAF c.1799T>A clinvar",
	}, queries)
}

func TestBuildClinVarQueries_TranscriptNotationExpands(t *testing.T) {
	req := sampleRequest()
	req.HGVS = "NM_004333.6:c.1799T>A"

	queries := BuildClinVarQueries(req)
	assert.Equal(t, []string{
		"BRAF[gene] AND NM_004333.6:c.1799T>A",
		"BRAF NM_004333.6:c.1799T>A clinvar",
		"BRAF[gene] AND c.1799T>A",
		"BRAF c.1799T>A clinvar",
	}, queries)
}

func TestBuildClinVarQueries_FallbackTokens(t *testing.T) {
	queries := BuildClinVarQueries(&domain.InterpretRequest{})
	require.NotEmpty(t, queries)
	assert.Contains(t, queries[0], "UNKNOWN_GENE")
	assert.Contains(t, queries[0], "UNKNOWN_HGVS")
}

func TestBuildPubMedQueries(t *testing.T) {
	queries := BuildPubMedQueries(sampleRequest())
	assert.Equal(t, []string{
		"BRAF c.1799T>A",
		"BRAF melanoma variant",
	}, queries)

	noDisease := sampleRequest()
	noDisease.DiseaseContext = "  "
	assert.Equal(t, []string{"BRAF c.1799T>A"}, BuildPubMedQueries(noDisease))
}

func TestParseClinVarSummary(t *testing.T) {
	payload := []byte(`{
		"result": {
			"uids": ["13961"],
			"13961": {
				"uid": "13961",
				"accession": "VCV000013961",
				"title": "NM_004333.6(BRAF):c.1799T>A (p.Val600Glu)",
				"review_status": "reviewed by expert panel",
				"germline_classification": {
					"description": "Pathogenic",
					"last_evaluated": "2023/06/12 00:00"
				}
			}
		}
	}`)

	citations, err := ParseClinVarSummary(payload, 1)
	require.NoError(t, err)
	require.Len(t, citations, 1)

	c := citations[0]
	assert.Equal(t, "C1", c.CitationID)
	assert.Equal(t, domain.SourceClinVar, c.Source)
	assert.Equal(t, "VCV000013961", c.RawID)
	assert.Equal(t, 2023, c.Year)
	assert.Equal(t, "https://www.ncbi.nlm.nih.gov/clinvar/?term=VCV000013961", c.URL)
	assert.Equal(t, "Pathogenic", c.Metadata["classification"])
	assert.Equal(t, "reviewed by expert panel", c.Metadata["review_status"])
}

func TestParseClinVarSummary_LegacyClinicalSignificance(t *testing.T) {
	payload := []byte(`{
		"result": {
			"uids": ["99"],
			"99": {
				"uid": "99",
				"title": "some record",
				"clinical_significance": {
					"description": "Benign",
					"last_evaluated": "2019/01/01"
				}
			}
		}
	}`)

	citations, err := ParseClinVarSummary(payload, 3)
	require.NoError(t, err)
	require.Len(t, citations, 1)
	assert.Equal(t, "C3", citations[0].CitationID)
	assert.Equal(t, "Benign", citations[0].Metadata["classification"])
	assert.Equal(t, 2019, citations[0].Year)
	assert.Equal(t, "99", citations[0].RawID)
}

func TestParseClinVarSummary_EmptyResult(t *testing.T) {
	citations, err := ParseClinVarSummary([]byte(`{"result": {}}`), 1)
	require.NoError(t, err)
	assert.Empty(t, citations)

	_, err = ParseClinVarSummary([]byte(`not json`), 1)
	assert.Error(t, err)
}

func TestParsePubMedSummary(t *testing.T) {
	payload := []byte(`{
		"result": {
			"uids": ["12068308", "404"],
			"12068308": {
				"uid": "12068308",
				"title": "Mutations of the BRAF gene in human cancer",
				"pubdate": "2002 Jun 27"
			}
		}
	}`)

	citations, err := ParsePubMedSummary(payload, 1)
	require.NoError(t, err)
	require.Len(t, citations, 1)

	c := citations[0]
	assert.Equal(t, "C1", c.CitationID)
	assert.Equal(t, domain.SourcePubMed, c.Source)
	assert.Equal(t, "Mutations of the BRAF gene in human cancer", c.Title)
	assert.Equal(t, 2002, c.Year)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/12068308/", c.URL)
}

func TestExtractYear(t *testing.T) {
	assert.Equal(t, 2023, extractYear("2023/06/12 00:00"))
	assert.Equal(t, 1998, extractYear("1998 Jan"))
	assert.Equal(t, 0, extractYear("no date here"))
	assert.Equal(t, 0, extractYear("year 3023"))
}

func eUtilsServer(t *testing.T, searchBody, summaryBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("retmode"))
		fmt.Fprint(w, searchBody)
	})
	mux.HandleFunc("/esummary.fcgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, summaryBody)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClinVarClient_Retrieve(t *testing.T) {
	server := eUtilsServer(t,
		`{"esearchresult": {"idlist": ["13961"]}}`,
		`{"result": {"uids": ["13961"], "13961": {"uid": "13961", "accession": "VCV000013961", "title": "BRAF V600E", "review_status": "reviewed by expert panel", "germline_classification": {"description": "Pathogenic", "last_evaluated": "2023/06/12"}}}}`,
	)

	client := NewClinVarClient(domain.SourceConfig{
		BaseURL:   server.URL,
		Timeout:   2 * time.Second,
		RateLimit: 100,
	})

	result, err := client.Retrieve(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "clinvar", client.Name())
	assert.Equal(t, BuildClinVarQueries(sampleRequest()), result.Queries)
	assert.Equal(t, "VCV000013961", result.Citations[0].RawID)
}

func TestClinVarClient_RetrieveErrorStillCarriesQueries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client := NewClinVarClient(domain.SourceConfig{
		BaseURL:   server.URL,
		Timeout:   2 * time.Second,
		RateLimit: 100,
	})

	result, err := client.Retrieve(context.Background(), sampleRequest())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.Queries)
	assert.Empty(t, result.Citations)
}

func TestPubMedClient_Retrieve(t *testing.T) {
	server := eUtilsServer(t,
		`{"esearchresult": {"idlist": ["12068308"]}}`,
		`{"result": {"uids": ["12068308"], "12068308": {"uid": "12068308", "title": "Mutations of the BRAF gene in human cancer", "pubdate": "2002 Jun 27"}}}`,
	)

	client := NewPubMedClient(domain.SourceConfig{
		BaseURL:   server.URL,
		Timeout:   2 * time.Second,
		RateLimit: 100,
	})

	result, err := client.Retrieve(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "pubmed", client.Name())
	assert.Equal(t, domain.SourcePubMed, result.Citations[0].Source)
}

type fixtureRetriever struct {
	name   string
	result *RetrievalResult
	err    error
	calls  int
}

func (f *fixtureRetriever) Name() string { return f.name }

func (f *fixtureRetriever) Queries(req *domain.InterpretRequest) []string {
	if f.result != nil {
		return f.result.Queries
	}
	return []string{f.name + " query"}
}

func (f *fixtureRetriever) Retrieve(ctx context.Context, req *domain.InterpretRequest) (*RetrievalResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.result
	return &copied, nil
}

func TestMultiRetriever_MergesAndRenumbers(t *testing.T) {
	clinvar := &fixtureRetriever{name: "clinvar", result: &RetrievalResult{
		Queries: []string{"q1"},
		Citations: []domain.Citation{
			{CitationID: "C1", Source: domain.SourceClinVar, RawID: "VCV1", Title: "rec one"},
			{CitationID: "C2", Source: domain.SourceClinVar, RawID: "VCV2", Title: "rec two"},
		},
	}}
	pubmed := &fixtureRetriever{name: "pubmed", result: &RetrievalResult{
		Queries: []string{"q2", "q1"},
		Citations: []domain.Citation{
			{CitationID: "C1", Source: domain.SourcePubMed, RawID: "111", Title: "article"},
			// Duplicate of the first ClinVar record.
			{CitationID: "C2", Source: domain.SourceClinVar, RawID: "VCV1", Title: "rec one"},
		},
	}}

	multi := NewMultiRetriever(clinvar, pubmed)
	result, err := multi.Retrieve(context.Background(), sampleRequest())
	require.NoError(t, err)

	require.Len(t, result.Citations, 3)
	assert.Equal(t, "C1", result.Citations[0].CitationID)
	assert.Equal(t, "C2", result.Citations[1].CitationID)
	assert.Equal(t, "C3", result.Citations[2].CitationID)
	assert.Equal(t, "VCV1", result.Citations[0].RawID)
	assert.Equal(t, "111", result.Citations[2].RawID)
	assert.Equal(t, []string{"q1", "q2"}, result.Queries)
	assert.Empty(t, result.Failures)
}

func TestMultiRetriever_FailedSourceKeepsQueries(t *testing.T) {
	healthy := &fixtureRetriever{name: "clinvar", result: &RetrievalResult{
		Queries:   []string{"q1"},
		Citations: []domain.Citation{{CitationID: "C1", Source: domain.SourceClinVar, RawID: "VCV1"}},
	}}
	broken := &fixtureRetriever{name: "pubmed", err: errors.New("timeout")}

	multi := NewMultiRetriever(healthy, broken)
	result, err := multi.Retrieve(context.Background(), sampleRequest())
	require.NoError(t, err)

	require.Len(t, result.Citations, 1)
	assert.Contains(t, result.Queries, "pubmed query")
	assert.Contains(t, result.Failures, "retrieval.pubmed: timeout")
}

func TestCachingRetriever_LRUHit(t *testing.T) {
	inner := &fixtureRetriever{name: "clinvar", result: &RetrievalResult{
		Queries:   []string{"q1"},
		Citations: []domain.Citation{{CitationID: "C1", Source: domain.SourceClinVar, RawID: "VCV1"}},
	}}

	caching, err := NewCachingRetriever(inner, domain.CacheConfig{LRUSize: 8}, quietLogger())
	require.NoError(t, err)

	first, err := caching.Retrieve(context.Background(), sampleRequest())
	require.NoError(t, err)
	second, err := caching.Retrieve(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.Citations, second.Citations)
	assert.Equal(t, "clinvar", caching.Name())
}

func TestCachingRetriever_DoesNotCacheFailedResults(t *testing.T) {
	inner := &fixtureRetriever{name: "clinvar", result: &RetrievalResult{
		Queries:  []string{"q1"},
		Failures: []string{"retrieval.clinvar: partial outage"},
	}}

	caching, err := NewCachingRetriever(inner, domain.CacheConfig{LRUSize: 8}, quietLogger())
	require.NoError(t, err)

	_, err = caching.Retrieve(context.Background(), sampleRequest())
	require.NoError(t, err)
	_, err = caching.Retrieve(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestResilientRetriever_OpenBreakerKeepsQueries(t *testing.T) {
	inner := &fixtureRetriever{name: "clinvar", err: errors.New("connection refused")}
	resilient := NewResilientRetriever(inner, quietLogger())

	var result *RetrievalResult
	var err error
	for i := 0; i < 4; i++ {
		result, err = resilient.Retrieve(context.Background(), sampleRequest())
	}

	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []string{"clinvar query"}, result.Queries)
	// The breaker opened after three consecutive failures, so the fourth
	// call never reached the source.
	assert.Equal(t, 3, inner.calls)
}
