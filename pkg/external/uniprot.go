package external

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// UniProtClient resolves gene symbols to UniProt accessions and fetches
// entry annotations used for target validation.
type UniProtClient struct {
	collaborator
	baseURL string
}

// NewUniProtClient creates a new UniProt REST client
func NewUniProtClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *UniProtClient {
	return &UniProtClient{
		collaborator: newCollaborator("uniprot", config, cache, logger),
		baseURL:      config.BaseURL,
	}
}

// accessionPattern matches a canonical UniProt accession
var accessionPattern = regexp.MustCompile(`^[A-NR-ZOPQ][0-9][A-Z0-9]{3}[0-9]$`)

// IsAccession reports whether a string already is a UniProt accession
func IsAccession(s string) bool {
	return accessionPattern.MatchString(s)
}

// EntryAnnotations summarizes the entry fields that feed the target
// validation score.
type EntryAnnotations struct {
	IsReviewed            bool
	HasFunction           bool
	HasDiseaseInvolvement bool
}

// QualityScore folds the annotations into a single [0,1] score
func (a EntryAnnotations) QualityScore() float64 {
	score := 0.0
	if a.IsReviewed {
		score += 0.4
	}
	if a.HasFunction {
		score += 0.3
	}
	if a.HasDiseaseInvolvement {
		score += 0.3
	}
	return score
}

type uniprotHit struct {
	EntryType        string `json:"entryType"`
	PrimaryAccession string `json:"primaryAccession"`
}

type uniprotSearchResponse struct {
	Results []uniprotHit `json:"results"`
}

// ResolveAccession maps a human gene symbol to its primary UniProt
// accession. Reviewed entries win; otherwise P-prefixed accessions, then
// the first hit. Inputs that already look like accessions pass through.
func (c *UniProtClient) ResolveAccession(ctx context.Context, geneSymbol string) (string, error) {
	geneSymbol = strings.TrimSpace(geneSymbol)
	if geneSymbol == "" {
		return "", nil
	}
	if IsAccession(geneSymbol) {
		return geneSymbol, nil
	}

	results, err := c.searchGene(ctx, geneSymbol)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}

	for _, r := range results {
		if r.PrimaryAccession != "" && strings.Contains(strings.ToLower(r.EntryType), "reviewed") {
			return r.PrimaryAccession, nil
		}
	}
	for _, r := range results {
		if strings.HasPrefix(r.PrimaryAccession, "P") {
			return r.PrimaryAccession, nil
		}
	}
	return results[0].PrimaryAccession, nil
}

// CandidateAccessions returns every accession hit for a gene symbol, in
// service order, for callers that retry pathway mapping with alternates.
func (c *UniProtClient) CandidateAccessions(ctx context.Context, geneSymbol string) ([]string, error) {
	results, err := c.searchGene(ctx, geneSymbol)
	if err != nil {
		return nil, err
	}
	accessions := make([]string, 0, len(results))
	for _, r := range results {
		if r.PrimaryAccession != "" {
			accessions = append(accessions, r.PrimaryAccession)
		}
	}
	return accessions, nil
}

func (c *UniProtClient) searchGene(ctx context.Context, geneSymbol string) ([]uniprotHit, error) {
	params := map[string]interface{}{"gene": geneSymbol, "organism": 9606}

	var result uniprotSearchResponse
	err := c.fetch(ctx, "uniprot/search", params, &result, func(ctx context.Context) error {
		q := url.Values{
			"query":  {fmt.Sprintf("(gene:%s) AND organism_id:9606", geneSymbol)},
			"fields": {"accession,reviewed,id"},
			"format": {"json"},
			"size":   {"5"},
		}
		return getJSON(ctx, c.httpClient, c.baseURL+"/uniprotkb/search", q, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("UniProt search failed: %w", err)
	}
	return result.Results, nil
}

// Annotations fetches the entry-level annotations for an accession
func (c *UniProtClient) Annotations(ctx context.Context, accession string) (*EntryAnnotations, error) {
	params := map[string]interface{}{"accession": accession}

	var result struct {
		EntryType string `json:"entryType"`
		Comments  []struct {
			CommentType string `json:"commentType"`
		} `json:"comments"`
	}
	err := c.fetch(ctx, "uniprot/entry", params, &result, func(ctx context.Context) error {
		endpoint := fmt.Sprintf("%s/uniprotkb/%s.json", c.baseURL, url.PathEscape(accession))
		return getJSON(ctx, c.httpClient, endpoint, nil, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("UniProt entry query failed: %w", err)
	}

	annotations := &EntryAnnotations{
		IsReviewed: result.EntryType == "UniProtKB reviewed (Swiss-Prot)",
	}
	for _, comment := range result.Comments {
		switch comment.CommentType {
		case "FUNCTION":
			annotations.HasFunction = true
		case "DISEASE":
			annotations.HasDiseaseInvolvement = true
		}
	}
	return annotations, nil
}
