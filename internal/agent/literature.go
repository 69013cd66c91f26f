package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

// medicalAbbreviations are clinical shorthand frequently matched by the
// gene symbol pattern. They are never targets.
var medicalAbbreviations = map[string]struct{}{
	"ICI": {}, "RAI": {}, "ATID": {}, "AITD": {}, "TSH": {}, "T3": {}, "T4": {},
	"FT3": {}, "FT4": {}, "FDA": {}, "EMA": {}, "USA": {}, "DNA": {}, "RNA": {},
	"ATP": {}, "ADP": {}, "HIV": {}, "AIDS": {}, "BMI": {}, "ECG": {}, "MRI": {},
	"CT": {}, "PET": {}, "COPD": {}, "NSAID": {}, "ACE": {}, "ARB": {},
}

var geneSymbolPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]{2,8}\b`)

const pathophysiologyPrompt = `Analyze these scientific abstracts about %s.
Synthesize a comprehensive 2-3 paragraph summary explaining:
1. The core molecular pathophysiology
2. Key cellular processes and pathways involved
3. Main cell types and tissues affected

Return JSON:
{
    "summary": "Your 2-3 paragraph synthesis here"
}`

const targetSynthesisPrompt = `Analyze these abstracts about %s.
Identify the top 8 therapeutic targets (genes/proteins) with strongest evidence.
For each:
- target_name: Gene symbol (e.g., "TNF", "IL6", "VEGFA")
- confidence_score: "High" (mentioned in multiple high-impact studies), "Medium", or "Low"
- supporting_evidence: 2-3 sentence summary of the evidence and mechanism

Return JSON:
{
    "targets": [
        {"target_name": "...", "confidence_score": "...", "supporting_evidence": "..."}
    ]
}`

// LiteratureSearcher is the slice of the PubMed client the agent consumes
type LiteratureSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
	FetchAbstracts(ctx context.Context, pmids []string) ([]external.PubMedArticle, error)
	CitationCount(ctx context.Context, pmid string) (int, error)
}

// LiteratureAgent runs a tiered PubMed survey for a disease: meta-analyses
// first, then recent reviews, then mechanistic studies. Articles are
// citation-weighted and synthesized into a pathophysiology summary and a
// validated target list. Without an LLM the target list falls back to
// regex gene extraction over titles and abstracts.
type LiteratureAgent struct {
	logger *logrus.Logger
	pubmed LiteratureSearcher
	llm    TextGenerator
}

// NewLiteratureAgent creates a new literature agent. llm may be nil.
func NewLiteratureAgent(logger *logrus.Logger, pubmed LiteratureSearcher, llm TextGenerator) *LiteratureAgent {
	return &LiteratureAgent{logger: logger, pubmed: pubmed, llm: llm}
}

// Review surveys the literature for a disease. All failures degrade: a
// tier that cannot be searched contributes no articles, and the result is
// never nil.
func (a *LiteratureAgent) Review(ctx context.Context, disease string) *domain.LiteratureOutput {
	var citations []domain.Citation
	var articles []domain.Article

	// Tier 1: meta-analyses and systematic reviews
	tier1 := fmt.Sprintf("%s AND (meta-analysis[Publication Type] OR systematic review[Publication Type])", disease)
	for _, article := range a.fetchTier(ctx, tier1, 5) {
		articles = append(articles, article)
		citations = append(citations, pubmedCitation(article, "PubMed (Meta-Analysis)"))
	}

	// Tier 2: recent reviews
	tier2 := fmt.Sprintf(`%s AND review[Publication Type] AND ("2022"[Date - Publication] : "2025"[Date - Publication])`, disease)
	for i, article := range a.fetchTier(ctx, tier2, 8) {
		articles = append(articles, article)
		if i < 5 {
			citations = append(citations, pubmedCitation(article, "PubMed (Recent Review)"))
		}
	}

	// Tier 3: mechanistic studies
	tier3 := fmt.Sprintf("%s pathophysiology mechanism molecular targets", disease)
	articles = append(articles, a.fetchTier(ctx, tier3, 10)...)

	a.weightByCitations(ctx, articles)
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].CitationCount > articles[j].CitationCount
	})

	summary := a.synthesizeSummary(ctx, disease, articles)
	validated := a.synthesizeTargets(ctx, disease, articles)
	if len(validated) == 0 {
		validated = extractGeneSymbols(articles)
	}

	out := &domain.LiteratureOutput{
		PathophysiologySummary: summary,
		ValidatedTargets:       validated,
		KeyReviewArticles:      citations,
		Citations:              citations,
	}
	if len(out.ValidatedTargets) > 12 {
		out.ValidatedTargets = out.ValidatedTargets[:12]
	}
	if len(out.KeyReviewArticles) > 6 {
		out.KeyReviewArticles = out.KeyReviewArticles[:6]
	}
	if len(out.Citations) > 10 {
		out.Citations = out.Citations[:10]
	}
	for i, target := range validated {
		if i == 15 {
			break
		}
		out.SuggestedTargets = append(out.SuggestedTargets, target.TargetName)
	}
	for i, article := range articles {
		if i == 15 {
			break
		}
		article.Abstract = ellipsize(article.Abstract, 300)
		out.Articles = append(out.Articles, article)
	}

	a.logger.WithFields(logrus.Fields{
		"disease":  disease,
		"targets":  len(out.ValidatedTargets),
		"articles": len(articles),
	}).Info("Literature review complete")
	return out
}

func (a *LiteratureAgent) fetchTier(ctx context.Context, query string, maxResults int) []domain.Article {
	pmids, err := a.pubmed.Search(ctx, query, maxResults)
	if err != nil {
		a.logger.WithError(err).Warn("Literature search tier failed")
		return nil
	}
	if len(pmids) == 0 {
		return nil
	}
	fetched, err := a.pubmed.FetchAbstracts(ctx, pmids)
	if err != nil {
		a.logger.WithError(err).Warn("Abstract fetch failed")
		return nil
	}

	articles := make([]domain.Article, 0, len(fetched))
	for _, article := range fetched {
		articles = append(articles, domain.Article{
			PMID:     article.PMID,
			Title:    article.Title,
			Abstract: article.Abstract,
			Year:     article.Year,
		})
	}
	return articles
}

// weightByCitations fills CitationCount for the first ten articles. Counts
// are fetched concurrently; a failed lookup stays at zero.
func (a *LiteratureAgent) weightByCitations(ctx context.Context, articles []domain.Article) {
	n := len(articles)
	if n > 10 {
		n = 10
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			count, err := a.pubmed.CitationCount(gctx, articles[i].PMID)
			if err != nil {
				return nil
			}
			articles[i].CitationCount = count
			return nil
		})
	}
	_ = g.Wait()
}

func (a *LiteratureAgent) synthesizeSummary(ctx context.Context, disease string, articles []domain.Article) string {
	if a.llm == nil || !a.llm.Enabled() || len(articles) == 0 {
		return ""
	}
	prompt := fmt.Sprintf(pathophysiologyPrompt, disease) + "\n\n" + abstractDigest(articles, 5)

	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := a.llm.GenerateJSON(ctx, prompt, &parsed); err != nil {
		a.logger.WithError(err).Warn("Pathophysiology synthesis failed")
		return ""
	}
	return parsed.Summary
}

func (a *LiteratureAgent) synthesizeTargets(ctx context.Context, disease string, articles []domain.Article) []domain.TargetEvidence {
	if a.llm == nil || !a.llm.Enabled() || len(articles) == 0 {
		return nil
	}
	prompt := fmt.Sprintf(targetSynthesisPrompt, disease) + "\n\n" + abstractDigest(articles, 6)

	var parsed struct {
		Targets []struct {
			TargetName         string `json:"target_name"`
			ConfidenceScore    string `json:"confidence_score"`
			SupportingEvidence string `json:"supporting_evidence"`
		} `json:"targets"`
	}
	if err := a.llm.GenerateJSON(ctx, prompt, &parsed); err != nil {
		a.logger.WithError(err).Warn("Target synthesis failed")
		return nil
	}

	var sourcePMIDs []string
	for i, article := range articles {
		if i == 3 {
			break
		}
		sourcePMIDs = append(sourcePMIDs, article.PMID)
	}

	var validated []domain.TargetEvidence
	for i, target := range parsed.Targets {
		if i == 10 {
			break
		}
		name := target.TargetName
		if name == "" {
			name = "Unknown"
		}
		confidence := target.ConfidenceScore
		if confidence == "" {
			confidence = "Low"
		}
		validated = append(validated, domain.TargetEvidence{
			TargetName:         name,
			ConfidenceScore:    confidence,
			SupportingEvidence: target.SupportingEvidence,
			SourcePMIDs:        sourcePMIDs,
			CitationCount:      articles[0].CitationCount,
		})
	}
	return validated
}

// extractGeneSymbols is the no-LLM fallback: uppercase tokens in the first
// five titles and abstracts, filtered through the abbreviation blocklist.
func extractGeneSymbols(articles []domain.Article) []domain.TargetEvidence {
	var targets []domain.TargetEvidence
	for i, article := range articles {
		if i == 5 || len(targets) >= 5 {
			break
		}
		text := article.Title + " " + article.Abstract
		seen := make(map[string]struct{})
		for _, symbol := range geneSymbolPattern.FindAllString(text, -1) {
			if _, dup := seen[symbol]; dup {
				continue
			}
			seen[symbol] = struct{}{}
			if !isValidGeneSymbol(symbol) {
				continue
			}
			targets = append(targets, domain.TargetEvidence{
				TargetName:         symbol,
				ConfidenceScore:    "Low",
				SupportingEvidence: fmt.Sprintf("Mentioned in %s...", ellipsizeRunes(article.Title, 50)),
				SourcePMIDs:        []string{article.PMID},
			})
		}
	}
	return targets
}

// isValidGeneSymbol rejects clinical abbreviations and tokens that do not
// follow gene naming convention.
func isValidGeneSymbol(symbol string) bool {
	if _, blocked := medicalAbbreviations[strings.ToUpper(symbol)]; blocked {
		return false
	}
	if len(symbol) < 3 {
		return false
	}
	// Short all-caps tokens are almost always abbreviations
	if len(symbol) <= 3 && symbol == strings.ToUpper(symbol) {
		return false
	}
	runes := []rune(symbol)
	if !unicode.IsLetter(runes[0]) {
		return false
	}
	upper := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper)/float64(len(runes)) >= 0.5
}

// abstractDigest builds the prompt context block from the top articles,
// each abstract truncated to keep the prompt bounded.
func abstractDigest(articles []domain.Article, limit int) string {
	var parts []string
	for i, article := range articles {
		if i == limit {
			break
		}
		year := article.Year
		if year == "" {
			year = "Unknown"
		}
		parts = append(parts, fmt.Sprintf("PMID %s (%s): %s\nAbstract: %s",
			article.PMID, year, article.Title, ellipsizeRunes(article.Abstract, 800)))
	}
	return strings.Join(parts, "\n\n")
}

func pubmedCitation(article domain.Article, source string) domain.Citation {
	return domain.Citation{
		URL:    fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", article.PMID),
		Title:  article.Title,
		Source: source,
	}
}

func ellipsizeRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
