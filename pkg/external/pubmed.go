package external

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// PubMedClient searches PubMed and fetches article abstracts through the
// NCBI E-utilities. Search results come back as JSON; article records only
// exist in XML.
type PubMedClient struct {
	collaborator
	baseURL string
	apiKey  string
}

// NewPubMedClient creates a new PubMed E-utilities client
func NewPubMedClient(config domain.APIClientConfig, cache *ResponseCache, logger *logrus.Logger) *PubMedClient {
	return &PubMedClient{
		collaborator: newCollaborator("pubmed", config, cache, logger),
		baseURL:      config.BaseURL,
		apiKey:       config.APIKey,
	}
}

// PubMedArticle is one fetched article with its abstract
type PubMedArticle struct {
	PMID     string `json:"pmid"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Year     string `json:"year"`
}

type pubmedFetchResponse struct {
	XMLName  xml.Name `xml:"PubmedArticleSet"`
	Articles []struct {
		Citation struct {
			PMID    string `xml:"PMID"`
			Article struct {
				Title    string `xml:"ArticleTitle"`
				Abstract struct {
					Texts []string `xml:"AbstractText"`
				} `xml:"Abstract"`
				Journal struct {
					Issue struct {
						PubDate struct {
							Year string `xml:"Year"`
						} `xml:"PubDate"`
					} `xml:"JournalIssue"`
				} `xml:"Journal"`
			} `xml:"Article"`
		} `xml:"MedlineCitation"`
	} `xml:"PubmedArticle"`
}

type elinkResponse struct {
	XMLName  xml.Name `xml:"eLinkResult"`
	LinkSets []struct {
		LinkSetDBs []struct {
			LinkName string `xml:"LinkName"`
			Links    []struct {
				ID string `xml:"Id"`
			} `xml:"Link"`
		} `xml:"LinkSetDb"`
	} `xml:"LinkSet"`
}

// Search returns the PMIDs matching a query, ordered by relevance
func (c *PubMedClient) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	params := map[string]interface{}{"db": "pubmed", "term": query, "retmax": maxResults}

	var result eSearchResponse
	err := c.fetch(ctx, "pubmed/esearch", params, &result, func(ctx context.Context) error {
		q := url.Values{
			"db":      {"pubmed"},
			"term":    {query},
			"retmax":  {strconv.Itoa(maxResults)},
			"retmode": {"json"},
			"sort":    {"relevance"},
		}
		if c.apiKey != "" {
			q.Set("api_key", c.apiKey)
		}
		return getJSON(ctx, c.httpClient, c.baseURL+"/esearch.fcgi", q, nil, &result)
	})
	if err != nil {
		return nil, fmt.Errorf("PubMed search failed: %w", err)
	}
	return result.Result.IDList, nil
}

// FetchAbstracts retrieves title, abstract, and year for a batch of PMIDs.
// Batches are capped at fifty records.
func (c *PubMedClient) FetchAbstracts(ctx context.Context, pmids []string) ([]PubMedArticle, error) {
	if len(pmids) == 0 {
		return nil, nil
	}
	if len(pmids) > 50 {
		pmids = pmids[:50]
	}
	ids := strings.Join(pmids, ",")
	params := map[string]interface{}{"db": "pubmed", "id": ids}

	var articles []PubMedArticle
	err := c.fetch(ctx, "pubmed/efetch", params, &articles, func(ctx context.Context) error {
		q := url.Values{
			"db":      {"pubmed"},
			"id":      {ids},
			"retmode": {"xml"},
		}
		if c.apiKey != "" {
			q.Set("api_key", c.apiKey)
		}
		raw, err := getRaw(ctx, c.httpClient, c.baseURL+"/efetch.fcgi", q)
		if err != nil {
			return err
		}

		var parsed pubmedFetchResponse
		if err := xml.Unmarshal(raw, &parsed); err != nil {
			return Permanent(fmt.Errorf("failed to parse PubMed XML: %w", err))
		}

		articles = articles[:0]
		for _, entry := range parsed.Articles {
			citation := entry.Citation
			if citation.PMID == "" || citation.Article.Title == "" {
				continue
			}
			year := citation.Article.Journal.Issue.PubDate.Year
			if year == "" {
				year = "Unknown"
			}
			articles = append(articles, PubMedArticle{
				PMID:     citation.PMID,
				Title:    citation.Article.Title,
				Abstract: strings.Join(citation.Article.Abstract.Texts, "\n"),
				Year:     year,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("PubMed fetch failed: %w", err)
	}
	return articles, nil
}

// CitationCount counts the articles citing a PMID via elink
func (c *PubMedClient) CitationCount(ctx context.Context, pmid string) (int, error) {
	params := map[string]interface{}{"dbfrom": "pubmed", "id": pmid, "linkname": "pubmed_pubmed_citedin"}

	var count int
	err := c.fetch(ctx, "pubmed/elink", params, &count, func(ctx context.Context) error {
		q := url.Values{
			"dbfrom":   {"pubmed"},
			"id":       {pmid},
			"cmd":      {"neighbor"},
			"linkname": {"pubmed_pubmed_citedin"},
		}
		if c.apiKey != "" {
			q.Set("api_key", c.apiKey)
		}
		raw, err := getRaw(ctx, c.httpClient, c.baseURL+"/elink.fcgi", q)
		if err != nil {
			return err
		}

		var parsed elinkResponse
		if err := xml.Unmarshal(raw, &parsed); err != nil {
			return Permanent(fmt.Errorf("failed to parse elink XML: %w", err))
		}
		count = 0
		for _, set := range parsed.LinkSets {
			for _, db := range set.LinkSetDBs {
				count += len(db.Links)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("PubMed citation lookup failed: %w", err)
	}
	return count, nil
}
