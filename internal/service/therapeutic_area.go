package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/drug-repurposing-server/pkg/external"
)

// TherapeuticAreaMapper classifies a disease into a therapeutic area from
// three sources, in decreasing reliability: MeSH classification tree
// numbers, ontology ancestors, and keyword matching on the disease name.
type TherapeuticAreaMapper struct {
	logger *logrus.Logger
	mesh   *external.MeSHClient
	ols    *external.OLSClient
}

// NewTherapeuticAreaMapper creates a new therapeutic area mapper
func NewTherapeuticAreaMapper(logger *logrus.Logger, mesh *external.MeSHClient, ols *external.OLSClient) *TherapeuticAreaMapper {
	return &TherapeuticAreaMapper{logger: logger, mesh: mesh, ols: ols}
}

// areaRule describes how one therapeutic area is recognized
type areaRule struct {
	area domain.TherapeuticArea
	// meshTrees are tree number prefixes, e.g. "C08" for respiratory
	meshTrees []string
	// ancestors are EFO/DOID IDs whose presence in the ancestor set
	// places the disease in the area
	ancestors []string
	// keywords match against the lowercased disease name as a fallback
	keywords []string
}

// treePriority prefers specific MeSH branches over broad ones when a
// disease sits in several. C15 (blood) outranks C18 (metabolic), which is
// too broad to win ties.
var treePriority = map[domain.TherapeuticArea]int{
	domain.AreaHematological:    10,
	domain.AreaOncology:         9,
	domain.AreaInfectious:       8,
	domain.AreaCardiovascular:   7,
	domain.AreaRespiratory:      7,
	domain.AreaNeurological:     7,
	domain.AreaGastrointestinal: 7,
	domain.AreaUrological:       7,
	domain.AreaImmunological:    6,
	domain.AreaMusculoskeletal:  6,
	domain.AreaMetabolic:        5,
}

var areaRules = []areaRule{
	{
		area:      domain.AreaHematological,
		meshTrees: []string{"C15"},
		ancestors: []string{"EFO:0005803", "EFO:0000540"},
		keywords: []string{
			"anemia", "blood", "hemoglobin", "iron", "hematologic", "hematological",
			"leukemia", "lymphoma", "myeloma", "thrombocytopenia", "hemophilia",
		},
	},
	{
		area:      domain.AreaRespiratory,
		meshTrees: []string{"C08"},
		ancestors: []string{"EFO:0003785", "EFO:0000684"},
		keywords:  []string{"respiratory", "lung", "pulmonary", "bronch", "asthma", "copd", "pneumonia", "fibrosis"},
	},
	{
		area:      domain.AreaCardiovascular,
		meshTrees: []string{"C14"},
		ancestors: []string{"EFO:0000319", "DOID:1287"},
		keywords:  []string{"cardiovascular", "heart", "cardiac", "vascular", "hypertension", "arterial", "ischemia"},
	},
	{
		area:      domain.AreaNeurological,
		meshTrees: []string{"C10"},
		ancestors: []string{"EFO:0000618", "DOID:863"},
		keywords:  []string{"neurological", "brain", "neural", "alzheimer", "parkinson", "dementia", "epilepsy", "stroke"},
	},
	{
		area:      domain.AreaMetabolic,
		meshTrees: []string{"C18"},
		ancestors: []string{"EFO:0000589", "DOID:0014667"},
		keywords:  []string{"metabolic", "diabetes", "obesity", "lipid", "insulin", "thyroid"},
	},
	{
		area:      domain.AreaOncology,
		meshTrees: []string{"C04"},
		ancestors: []string{"EFO:0000311", "DOID:162"},
		keywords:  []string{"cancer", "tumor", "carcinoma", "neoplasm", "metastasis", "oncogenic"},
	},
	{
		area:      domain.AreaInfectious,
		meshTrees: []string{"C01", "C02"},
		ancestors: []string{"EFO:0005741", "DOID:0050117"},
		keywords:  []string{"infection", "viral", "bacterial", "hiv", "hepatitis", "tuberculosis", "parasitic", "fungal"},
	},
	{
		area:      domain.AreaImmunological,
		meshTrees: []string{"C20"},
		ancestors: []string{"EFO:0000540", "DOID:2914"},
		keywords:  []string{"autoimmune", "inflammatory", "rheumatoid", "lupus", "psoriasis", "immune complex", "cytokine storm"},
	},
	{
		area:      domain.AreaGastrointestinal,
		meshTrees: []string{"C06"},
		ancestors: []string{"EFO:0010282", "DOID:77"},
		keywords:  []string{"gastrointestinal", "digestive", "gastric", "intestinal", "colitis", "crohn", "ibd", "hepatic"},
	},
	{
		area:      domain.AreaUrological,
		meshTrees: []string{"C12", "C13"},
		ancestors: []string{"EFO:0009690", "DOID:18"},
		keywords:  []string{"urological", "urinary", "bladder", "kidney", "renal", "prostate", "nephrolithiasis"},
	},
	{
		area:      domain.AreaMusculoskeletal,
		meshTrees: []string{"C05"},
		ancestors: []string{"EFO:0009688", "DOID:17"},
		keywords:  []string{"musculoskeletal", "bone", "joint", "arthritis", "osteoporosis", "sarcopenia"},
	},
	{
		area:      domain.AreaDermatological,
		meshTrees: []string{"C17"},
		keywords:  []string{"dermatology", "skin", "psoriasis", "eczema", "dermatitis", "acne", "melanoma"},
	},
	{
		area:      domain.AreaOphthalmology,
		meshTrees: []string{"C11"},
		keywords:  []string{"eye", "retina", "glaucoma", "macular degeneration", "uveitis", "ocular"},
	},
	{
		area:     domain.AreaPsychiatric,
		keywords: []string{"psychiatric", "depression", "anxiety", "bipolar", "schizophrenia", "ptsd", "ocd"},
	},
	{
		area:     domain.AreaEndocrinology,
		keywords: []string{"endocrine", "hormone", "thyroid", "adrenal", "pituitary", "gonadal"},
	},
	{
		area:     domain.AreaRenalNephrology,
		keywords: []string{"renal", "kidney", "nephro", "nephritis", "glomerulonephritis", "proteinuria"},
	},
	{
		area:     domain.AreaHepatology,
		keywords: []string{"liver", "hepatic", "hepatitis", "cirrhosis", "nash", "fibrosis"},
	},
	{
		area:     domain.AreaWomenHealthObgyn,
		keywords: []string{"obstetrics", "gynecology", "menopause", "pcos", "endometriosis", "fertility"},
	},
	{
		area:     domain.AreaPediatrics,
		keywords: []string{"pediatric", "child", "neonate", "infant"},
	},
	{
		area:     domain.AreaGeriatrics,
		keywords: []string{"geriatric", "elderly", "frailty", "polypharmacy"},
	},
	{
		area:     domain.AreaRareDiseases,
		keywords: []string{"rare", "orphan", "genetic", "congenital", "ultra-rare"},
	},
	{
		area:     domain.AreaPainPalliative,
		keywords: []string{"pain", "analgesic", "neuropathic", "palliative"},
	},
	{
		area:     domain.AreaToxicology,
		keywords: []string{"overdose", "poisoning", "toxicity", "antidote"},
	},
	{
		area:     domain.AreaTransplantation,
		keywords: []string{"transplant", "graft", "immunosuppression", "gvhd"},
	},
	{
		area:      domain.AreaDentalOralHealth,
		meshTrees: []string{"C07"},
		keywords:  []string{"dental", "oral", "periodontal", "tooth", "gingivitis", "caries"},
	},
	{
		area:     domain.AreaAllergy,
		keywords: []string{"allergy", "anaphylaxis", "allergic rhinitis", "urticaria"},
	},
	{
		area:     domain.AreaAddiction,
		keywords: []string{"addiction", "substance use", "opioid dependence", "alcohol use disorder", "nicotine"},
	},
	{
		area:     domain.AreaOncologySupport,
		keywords: []string{"nausea", "anemia of cancer", "cachexia", "chemotherapy-induced neuropathy"},
	},
}

// Classify maps a disease name to a therapeutic area. Lookups degrade in
// order; an unclassifiable disease is AreaUnknown, never an error.
func (m *TherapeuticAreaMapper) Classify(ctx context.Context, diseaseName string) domain.TherapeuticArea {
	if trees, err := m.mesh.TreeNumbers(ctx, diseaseName); err == nil && len(trees) > 0 {
		if area, ok := classifyByTreeNumbers(trees); ok {
			m.logger.WithFields(logrus.Fields{
				"disease": diseaseName,
				"area":    area,
				"source":  "mesh_tree",
			}).Info("Therapeutic area classified")
			return area
		}
	}

	if ancestors := m.queryAncestors(ctx, diseaseName); len(ancestors) > 0 {
		if area, ok := classifyByAncestors(ancestors); ok {
			m.logger.WithFields(logrus.Fields{
				"disease": diseaseName,
				"area":    area,
				"source":  "ontology_ancestors",
			}).Info("Therapeutic area classified")
			return area
		}
	}

	if area, ok := classifyByKeywords(diseaseName); ok {
		m.logger.WithFields(logrus.Fields{
			"disease": diseaseName,
			"area":    area,
			"source":  "keywords",
		}).Info("Therapeutic area classified")
		return area
	}

	m.logger.WithField("disease", diseaseName).Warn("Could not classify therapeutic area")
	return domain.AreaUnknown
}

func (m *TherapeuticAreaMapper) queryAncestors(ctx context.Context, diseaseName string) []string {
	docs, err := m.ols.SearchDisease(ctx, diseaseName)
	if err != nil || len(docs) == 0 {
		return nil
	}
	best := docs[0]
	if best.IRI == "" {
		return nil
	}
	ancestors, err := m.ols.FetchAncestorIDs(ctx, best.OntologyName, best.IRI)
	if err != nil {
		return nil
	}
	return ancestors
}

// classifyByTreeNumbers matches tree numbers against area prefixes and
// returns the highest-priority match.
func classifyByTreeNumbers(treeNumbers []string) (domain.TherapeuticArea, bool) {
	best := domain.AreaUnknown
	bestPriority := -1

	for _, rule := range areaRules {
		for _, tree := range treeNumbers {
			for _, prefix := range rule.meshTrees {
				if strings.HasPrefix(tree, prefix) {
					if p := treePriority[rule.area]; p > bestPriority {
						best = rule.area
						bestPriority = p
					}
				}
			}
		}
	}
	return best, bestPriority >= 0
}

// classifyByAncestors returns the first area whose anchor IDs intersect the
// ancestor set.
func classifyByAncestors(ancestorIDs []string) (domain.TherapeuticArea, bool) {
	ancestorSet := make(map[string]struct{}, len(ancestorIDs))
	for _, id := range ancestorIDs {
		ancestorSet[id] = struct{}{}
	}

	for _, rule := range areaRules {
		for _, anchor := range rule.ancestors {
			if _, ok := ancestorSet[anchor]; ok {
				return rule.area, true
			}
		}
	}
	return domain.AreaUnknown, false
}

// classifyByKeywords counts pattern hits per area and returns the best
func classifyByKeywords(diseaseName string) (domain.TherapeuticArea, bool) {
	lower := strings.ToLower(diseaseName)

	best := domain.AreaUnknown
	bestScore := 0
	for _, rule := range areaRules {
		score := 0
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = rule.area
			bestScore = score
		}
	}
	return best, bestScore > 0
}
