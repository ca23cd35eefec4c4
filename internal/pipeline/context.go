package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// SitemapData is the crawl summary produced by the data-fetch stage
type SitemapData struct {
	TotalPages   int                        `json:"total_pages"`
	BlogURLs     []string                   `json:"blog_urls"`
	LabelSummary map[models.PageLabel]int   `json:"label_summary"`
	SiteType     models.SiteType            `json:"site_type"`
	Pages        []models.SitemapPage       `json:"-"`
}

// Context is the mutable state bag passed between stages. A stage may only
// read fields produced by stages preceding it in the dependency graph, and
// no stage removes fields. JobID never changes after creation.
type Context struct {
	JobID       string
	JobConfig   *models.JobConfig
	CompanyData map[string]string

	// Produced by stage 0
	SitemapData *SitemapData
	BlogPool    []string // Internal-link candidate pool

	// Produced by stage 1
	Prompt string

	// Produced by stage 2
	RawArticle    string
	GroundingURLs []interfaces.GroundingURL

	// Produced by stage 3
	Article *models.ArticleOutput

	// Fan-out scratchpad for stages 4-9
	parallel *parallelResults

	// Produced by stage 10
	ValidatedArticle map[string]any
	QualityReport    map[string]any
	CitationMap      map[int]string

	// Terminal outputs
	FinalHTML     string
	StorageResult *interfaces.StoreResult
}

// NewContext creates the execution context for one pipeline run
func NewContext(jobID string, config *models.JobConfig) *Context {
	companyData := make(map[string]string)
	for k, v := range config.CompanyData {
		companyData[k] = v
	}

	return &Context{
		JobID:       jobID,
		JobConfig:   config,
		CompanyData: companyData,
		parallel:    newParallelResults(),
	}
}

// Parallel returns the fan-out scratchpad handle
func (c *Context) Parallel() *parallelResults {
	return c.parallel
}

// parallelResults is the fan-out scratchpad. Each parallel stage writes to
// its own staging area; MergeInto flattens all areas and fails fast when two
// stages produced the same key. The disjoint-key convention is therefore
// asserted, not assumed.
type parallelResults struct {
	mu     sync.Mutex
	staged map[string]map[string]any // stage name → key → value
}

func newParallelResults() *parallelResults {
	return &parallelResults{staged: make(map[string]map[string]any)}
}

// Set stages a key/value pair under the writing stage's name
func (p *parallelResults) Set(stageName, key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	area, ok := p.staged[stageName]
	if !ok {
		area = make(map[string]any)
		p.staged[stageName] = area
	}
	area[key] = value
}

// Get reads a staged value. Used by the fan-in stage and by tests; parallel
// stages must not read each other's writes.
func (p *parallelResults) Get(key string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, area := range p.staged {
		if v, ok := area[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// MergeInto flattens every staged area into dst. A key written by two
// different stages is an invariant violation and returns an internal error
// naming both writers.
func (p *parallelResults) MergeInto(dst map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	owners := make(map[string]string)

	stageNames := make([]string, 0, len(p.staged))
	for name := range p.staged {
		stageNames = append(stageNames, name)
	}
	sort.Strings(stageNames)

	for _, stageName := range stageNames {
		for key, value := range p.staged[stageName] {
			if prev, taken := owners[key]; taken {
				return NewInternalError(fmt.Errorf(
					"parallel result key collision: %q written by both %s and %s", key, prev, stageName))
			}
			owners[key] = stageName
			dst[key] = value
		}
	}
	return nil
}
