package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/egvia-interpret-server/internal/domain"
)

// ClaimExtractor is the collaborator boundary for claim extraction. An
// implementation sees only the run's citations and may legitimately produce
// zero claims. The pipeline validates everything it emits and discards any
// claim bound to an unknown citation.
type ClaimExtractor interface {
	Extract(ctx context.Context, req *domain.InterpretRequest, citations []domain.Citation) ([]domain.Claim, error)
}

// EvidenceExtractor is the default deterministic extractor. It derives one
// claim per citation from the citation's own metadata: ClinVar
// classification and review status drive stance and strength, PubMed
// records become neutral literature claims. Identical citations always
// yield identical claims.
type EvidenceExtractor struct {
	logger *logrus.Logger
}

// NewEvidenceExtractor creates the default extractor
func NewEvidenceExtractor(logger *logrus.Logger) *EvidenceExtractor {
	return &EvidenceExtractor{logger: logger}
}

// Extract implements the ClaimExtractor interface
func (e *EvidenceExtractor) Extract(ctx context.Context, req *domain.InterpretRequest, citations []domain.Citation) ([]domain.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	variant := describeVariant(req)
	claims := make([]domain.Claim, 0, len(citations))
	for _, citation := range citations {
		claim := domain.Claim{
			ClaimID:    fmt.Sprintf("CL%d", len(claims)+1),
			CitationID: citation.CitationID,
			Year:       citation.Year,
		}
		switch citation.Source {
		case domain.SourceClinVar:
			claim.Stance, claim.Strength = clinVarStance(citation.Metadata)
			claim.Text = clinVarClaimText(citation, variant)
		case domain.SourcePubMed:
			claim.Stance = domain.NEUTRAL
			claim.Strength = domain.WEAK
			claim.Text = pubMedClaimText(citation, variant)
		default:
			continue
		}
		claims = append(claims, claim)
	}

	e.logger.WithFields(logrus.Fields{
		"citations": len(citations),
		"claims":    len(claims),
	}).Debug("Extracted candidate claims")
	return claims, nil
}

func describeVariant(req *domain.InterpretRequest) string {
	gene := strings.TrimSpace(req.Gene)
	hgvs := strings.TrimSpace(req.HGVS)
	switch {
	case gene != "" && hgvs != "":
		return gene + " " + hgvs
	case gene != "":
		return gene
	case hgvs != "":
		return hgvs
	}
	return "the queried variant"
}

// clinVarStance maps a ClinVar classification to a stance on pathogenicity
// in the request's disease context, and the review status to a strength
// label
func clinVarStance(metadata map[string]string) (domain.Stance, domain.Strength) {
	classification := strings.ToLower(metadata["classification"])
	review := strings.ToLower(metadata["review_status"])

	stance := domain.NEUTRAL
	switch {
	case strings.Contains(classification, "conflicting"):
		stance = domain.NEUTRAL
	case strings.Contains(classification, "pathogenic"):
		stance = domain.SUPPORT
	case strings.Contains(classification, "benign"):
		stance = domain.CONTRADICT
	}

	strength := domain.WEAK
	switch {
	case strings.Contains(review, "practice guideline"), strings.Contains(review, "expert panel"):
		strength = domain.STRONG
	case strings.Contains(review, "multiple submitters"):
		strength = domain.MODERATE
	}
	return stance, strength
}

func clinVarClaimText(citation domain.Citation, variant string) string {
	classification := citation.Metadata["classification"]
	if classification == "" {
		classification = "an unspecified clinical significance"
	}
	record := citation.RawID
	if record == "" {
		record = "record"
	}
	text := fmt.Sprintf("ClinVar %s classifies %s as %s", record, variant, classification)
	if review := citation.Metadata["review_status"]; review != "" {
		text = fmt.Sprintf("%s (%s)", text, review)
	}
	return text + "."
}

func pubMedClaimText(citation domain.Citation, variant string) string {
	if citation.Title != "" {
		return fmt.Sprintf("PubMed article %q reports on %s.", citation.Title, variant)
	}
	return fmt.Sprintf("PubMed record %s reports on %s.", citation.RawID, variant)
}
