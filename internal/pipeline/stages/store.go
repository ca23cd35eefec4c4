package stages

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/render"
)

// StoreStage renders the final document and persists it through the article
// store. Critical: a storage failure fails the job.
type StoreStage struct {
	renderer *render.Renderer
	store    interfaces.ArticleStore
	logger   arbor.ILogger
}

func NewStoreStage(renderer *render.Renderer, store interfaces.ArticleStore, logger arbor.ILogger) *StoreStage {
	return &StoreStage{renderer: renderer, store: store, logger: logger}
}

func (s *StoreStage) StageNum() int     { return 12 }
func (s *StoreStage) StageName() string { return "stage_12_store" }

func (s *StoreStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if ec.ValidatedArticle == nil {
		return pipeline.NewInternalError(fmt.Errorf("no validated article to store"))
	}

	ec.FinalHTML = s.renderer.Render(s.renderInput(ec))
	ec.ValidatedArticle["final_html"] = ec.FinalHTML

	result, err := s.store.Store(ctx, &interfaces.StoreRequest{
		JobID:            ec.JobID,
		ValidatedArticle: ec.ValidatedArticle,
		HTMLContent:      ec.FinalHTML,
		StorageType:      "both",
	})
	if err != nil {
		return pipeline.Classify(fmt.Errorf("article storage failed: %w", err))
	}
	if !result.Success {
		return pipeline.NewInternalError(fmt.Errorf("article storage rejected: %s", result.Error))
	}

	ec.StorageResult = result
	s.logger.Info().
		Str("job_id", ec.JobID).
		Str("article_id", result.ArticleID).
		Str("mirror_path", result.MirrorPath).
		Bool("embedded", result.Embedded).
		Int("html_bytes", len(ec.FinalHTML)).
		Msg("Article stored")

	return nil
}

// renderInput assembles the document inputs from the validated article map
func (s *StoreStage) renderInput(ec *pipeline.Context) *render.Input {
	validated := ec.ValidatedArticle

	toc, _ := validated["toc"].([]models.TOCEntry)
	faq, _ := validated["faq_items"].([]models.QAPair)
	paa, _ := validated["paa_items"].([]models.QAPair)
	links, _ := validated["internal_links"].([]models.InternalLink)
	citationsHTML, _ := validated["citations_html"].(string)
	publishedAt, _ := validated["publication_date"].(string)

	return &render.Input{
		Article:       ec.Article,
		CompanyName:   ec.CompanyData["company_name"],
		TOC:           toc,
		HeroImage:     imageRef(validated, "image"),
		MidImage:      imageRef(validated, "mid_image"),
		BottomImage:   imageRef(validated, "bottom_image"),
		FAQ:           faq,
		PAA:           paa,
		InternalLinks: links,
		CitationsHTML: citationsHTML,
		ReadTime:      intValue(validated["read_time"]),
		PublishedAt:   publishedAt,
	}
}

// imageRef reads one image slot from the validated map, nil when the slot
// never produced a URL.
func imageRef(validated map[string]any, prefix string) *render.ImageRef {
	url, _ := validated[prefix+"_url"].(string)
	if url == "" {
		return nil
	}
	alt, _ := validated[prefix+"_alt_text"].(string)
	credit, _ := validated[prefix+"_credit"].(string)
	return &render.ImageRef{URL: url, AltText: alt, Credit: credit}
}
