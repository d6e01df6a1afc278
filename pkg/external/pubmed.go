package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/egvia-interpret-server/internal/domain"
)

// PubMedClient retrieves literature citations from PubMed via NCBI
// E-utilities (esearch + esummary, JSON retmode).
type PubMedClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRecords int
	retryCount int
}

// NewPubMedClient creates a new PubMed API client
func NewPubMedClient(config domain.SourceConfig) *PubMedClient {
	rateLimit := config.RateLimit
	if rateLimit <= 0 {
		rateLimit = 3
	}
	maxRecords := config.MaxRecords
	if maxRecords <= 0 {
		maxRecords = 5
	}
	return &PubMedClient{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), 1),
		maxRecords: maxRecords,
		retryCount: config.RetryCount,
	}
}

// Name implements the Retriever interface
func (p *PubMedClient) Name() string {
	return "pubmed"
}

// Queries implements the Retriever interface
func (p *PubMedClient) Queries(req *domain.InterpretRequest) []string {
	return BuildPubMedQueries(req)
}

// BuildPubMedQueries builds deterministic PubMed query terms from the
// request's gene, HGVS, and disease context fields
func BuildPubMedQueries(req *domain.InterpretRequest) []string {
	gene := normalizedGene(req.Gene)

	var candidates []string
	for _, variant := range variantTerms(req.HGVS) {
		candidates = append(candidates, fmt.Sprintf("%s %s", gene, variant))
	}
	if disease := strings.TrimSpace(req.DiseaseContext); disease != "" {
		candidates = append(candidates, fmt.Sprintf("%s %s variant", gene, disease))
	}
	return dedupeStrings(candidates)
}

type pubMedRecord struct {
	UID     string `json:"uid"`
	Title   string `json:"title"`
	PubDate string `json:"pubdate"`
}

// ParsePubMedSummary normalizes an esummary JSON payload into canonical
// citations, numbered from startIndex
func ParsePubMedSummary(payload []byte, startIndex int) ([]domain.Citation, error) {
	var summary eSummaryResponse
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse PubMed summary payload: %w", err)
	}

	rawUIDs, ok := summary.Result["uids"]
	if !ok {
		return nil, nil
	}
	var uids []string
	if err := json.Unmarshal(rawUIDs, &uids); err != nil {
		return nil, fmt.Errorf("failed to parse PubMed summary uids: %w", err)
	}

	var citations []domain.Citation
	for _, uid := range uids {
		raw, ok := summary.Result[uid]
		if !ok {
			continue
		}
		var record pubMedRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}

		rawID := strings.TrimSpace(record.UID)
		recordURL := ""
		if rawID != "" {
			recordURL = fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", rawID)
		}

		citations = append(citations, domain.Citation{
			CitationID: fmt.Sprintf("C%d", startIndex+len(citations)),
			Source:     domain.SourcePubMed,
			Title:      strings.TrimSpace(record.Title),
			Year:       extractYear(record.PubDate),
			URL:        recordURL,
			RawID:      rawID,
		})
	}
	return citations, nil
}

// Retrieve fetches and normalizes PubMed citations for a variant request
func (p *PubMedClient) Retrieve(ctx context.Context, req *domain.InterpretRequest) (*RetrievalResult, error) {
	queries := BuildPubMedQueries(req)
	result := &RetrievalResult{Queries: queries}

	searchParams := url.Values{
		"db":      {"pubmed"},
		"retmode": {"json"},
		"retmax":  {strconv.Itoa(p.maxRecords)},
		"term":    {queries[0]},
	}
	searchPayload, err := p.requestJSON(ctx, "esearch.fcgi", searchParams)
	if err != nil {
		return result, fmt.Errorf("retrieval.pubmed: search failed: %w", err)
	}

	var search eSearchResponse
	if err := json.Unmarshal(searchPayload, &search); err != nil {
		return result, fmt.Errorf("retrieval.pubmed: failed to parse search response: %w", err)
	}
	ids := search.ESearchResult.IDList
	if len(ids) == 0 {
		return result, nil
	}
	if len(ids) > p.maxRecords {
		ids = ids[:p.maxRecords]
	}

	summaryParams := url.Values{
		"db":      {"pubmed"},
		"retmode": {"json"},
		"id":      {strings.Join(ids, ",")},
	}
	summaryPayload, err := p.requestJSON(ctx, "esummary.fcgi", summaryParams)
	if err != nil {
		return result, fmt.Errorf("retrieval.pubmed: summary failed: %w", err)
	}

	citations, err := ParsePubMedSummary(summaryPayload, 1)
	if err != nil {
		return result, fmt.Errorf("retrieval.pubmed: %w", err)
	}
	result.Citations = citations
	return result, nil
}

func (p *PubMedClient) requestJSON(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}
	fullURL := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, params.Encode())

	attempts := p.retryCount
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := doGet(ctx, p.httpClient, fullURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
