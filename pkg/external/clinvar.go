package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/egvia-interpret-server/internal/domain"
	"github.com/egvia-interpret-server/pkg/hgvs"
)

// ClinVarClient retrieves citation metadata from ClinVar via NCBI
// E-utilities (esearch + esummary, JSON retmode).
type ClinVarClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRecords int
	retryCount int
}

// NewClinVarClient creates a new ClinVar API client
func NewClinVarClient(config domain.SourceConfig) *ClinVarClient {
	rateLimit := config.RateLimit
	if rateLimit <= 0 {
		rateLimit = 3
	}
	maxRecords := config.MaxRecords
	if maxRecords <= 0 {
		maxRecords = 5
	}
	return &ClinVarClient{
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
func (c *ClinVarClient) Name() string {
	return "clinvar"
}

// Queries implements the Retriever interface
func (c *ClinVarClient) Queries(req *domain.InterpretRequest) []string {
	return BuildClinVarQueries(req)
}

// BuildClinVarQueries builds deterministic ClinVar query terms from the
// request's gene and HGVS fields. An HGVS input with a reference accession
// also yields queries on the bare coordinate description.
func BuildClinVarQueries(req *domain.InterpretRequest) []string {
	gene := normalizedGene(req.Gene)

	var candidates []string
	for _, variant := range variantTerms(req.HGVS) {
		candidates = append(candidates,
			fmt.Sprintf("%s[gene] AND %s", gene, variant),
			fmt.Sprintf("%s %s clinvar", gene, variant),
		)
	}
	return dedupeStrings(candidates)
}

func normalizedGene(value string) string {
	if symbol, ok := hgvs.NormalizeGeneSymbol(value); ok {
		return symbol
	}
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return "UNKNOWN_GENE"
}

func variantTerms(value string) []string {
	terms := hgvs.SearchTerms(value)
	if len(terms) == 0 {
		return []string{"UNKNOWN_HGVS"}
	}
	return terms
}

func dedupeStrings(values []string) []string {
	var deduped []string
	for _, v := range values {
		if v == "" {
			continue
		}
		seen := false
		for _, d := range deduped {
			if d == v {
				seen = true
				break
			}
		}
		if !seen {
			deduped = append(deduped, v)
		}
	}
	return deduped
}

type eSearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type clinVarClassification struct {
	Description   string `json:"description"`
	LastEvaluated string `json:"last_evaluated"`
}

type clinVarRecord struct {
	UID                    string                `json:"uid"`
	Accession              string                `json:"accession"`
	Title                  string                `json:"title"`
	ReviewStatus           string                `json:"review_status"`
	GermlineClassification clinVarClassification `json:"germline_classification"`
	ClinicalSignificance   clinVarClassification `json:"clinical_significance"`
}

type eSummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

func extractYear(value string) int {
	match := yearPattern.FindString(value)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return year
}

// ParseClinVarSummary normalizes an esummary JSON payload into canonical
// citations, numbered from startIndex
func ParseClinVarSummary(payload []byte, startIndex int) ([]domain.Citation, error) {
	var summary eSummaryResponse
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse ClinVar summary payload: %w", err)
	}

	rawUIDs, ok := summary.Result["uids"]
	if !ok {
		return nil, nil
	}
	var uids []string
	if err := json.Unmarshal(rawUIDs, &uids); err != nil {
		return nil, fmt.Errorf("failed to parse ClinVar summary uids: %w", err)
	}

	var citations []domain.Citation
	for _, uid := range uids {
		raw, ok := summary.Result[uid]
		if !ok {
			continue
		}
		var record clinVarRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}

		lastEvaluated := record.GermlineClassification.LastEvaluated
		if lastEvaluated == "" {
			lastEvaluated = record.ClinicalSignificance.LastEvaluated
		}
		classification := record.GermlineClassification.Description
		if classification == "" {
			classification = record.ClinicalSignificance.Description
		}

		rawID := strings.TrimSpace(record.Accession)
		if rawID == "" {
			rawID = strings.TrimSpace(record.UID)
		}
		recordURL := ""
		if rawID != "" {
			recordURL = fmt.Sprintf("https://www.ncbi.nlm.nih.gov/clinvar/?term=%s", rawID)
		}

		metadata := map[string]string{}
		if classification != "" {
			metadata["classification"] = classification
		}
		if record.ReviewStatus != "" {
			metadata["review_status"] = record.ReviewStatus
		}
		if lastEvaluated != "" {
			metadata["last_evaluated"] = lastEvaluated
		}
		if len(metadata) == 0 {
			metadata = nil
		}

		citations = append(citations, domain.Citation{
			CitationID: fmt.Sprintf("C%d", startIndex+len(citations)),
			Source:     domain.SourceClinVar,
			Title:      strings.TrimSpace(record.Title),
			Year:       extractYear(lastEvaluated),
			URL:        recordURL,
			RawID:      rawID,
			Metadata:   metadata,
		})
	}
	return citations, nil
}

// Retrieve fetches and normalizes ClinVar citations for a variant request
func (c *ClinVarClient) Retrieve(ctx context.Context, req *domain.InterpretRequest) (*RetrievalResult, error) {
	queries := BuildClinVarQueries(req)
	result := &RetrievalResult{Queries: queries}

	searchParams := url.Values{
		"db":      {"clinvar"},
		"retmode": {"json"},
		"retmax":  {strconv.Itoa(c.maxRecords)},
		"term":    {queries[0]},
	}
	searchPayload, err := c.requestJSON(ctx, "esearch.fcgi", searchParams)
	if err != nil {
		return result, fmt.Errorf("retrieval.clinvar: search failed: %w", err)
	}

	var search eSearchResponse
	if err := json.Unmarshal(searchPayload, &search); err != nil {
		return result, fmt.Errorf("retrieval.clinvar: failed to parse search response: %w", err)
	}
	ids := search.ESearchResult.IDList
	if len(ids) == 0 {
		return result, nil
	}
	if len(ids) > c.maxRecords {
		ids = ids[:c.maxRecords]
	}

	summaryParams := url.Values{
		"db":      {"clinvar"},
		"retmode": {"json"},
		"id":      {strings.Join(ids, ",")},
	}
	summaryPayload, err := c.requestJSON(ctx, "esummary.fcgi", summaryParams)
	if err != nil {
		return result, fmt.Errorf("retrieval.clinvar: summary failed: %w", err)
	}

	citations, err := ParseClinVarSummary(summaryPayload, 1)
	if err != nil {
		return result, fmt.Errorf("retrieval.clinvar: %w", err)
	}
	result.Citations = citations
	return result, nil
}

// requestJSON performs a rate-limited GET with bounded retries
func (c *ClinVarClient) requestJSON(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	fullURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	attempts := c.retryCount
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := doGet(ctx, c.httpClient, fullURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func doGet(ctx context.Context, client *http.Client, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
