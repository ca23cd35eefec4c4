package badger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

// ArticleRecord is the persisted form of one finished article
type ArticleRecord struct {
	ID    string `badgerhold:"key"`
	JobID string `badgerholdIndex:"JobID"`

	Slug            string `badgerholdIndex:"Slug"`
	Headline        string
	MetaTitle       string
	MetaDescription string
	PrimaryKeyword  string
	Language        string
	Country         string

	HTML      string
	WordCount int
	ReadTime  int

	Embedding []float32

	CreatedAt time.Time
}

// ArticleStorage implements the article store hook: the database record, an
// optional markdown mirror on disk, and a semantic embedding when the
// embedding service is configured.
type ArticleStorage struct {
	db         *BadgerDB
	embeddings interfaces.EmbeddingClient
	mirrorsDir string
	converter  *md.Converter
	logger     arbor.ILogger
}

func NewArticleStorage(db *BadgerDB, embeddings interfaces.EmbeddingClient, fsConfig *common.FilesystemConfig, logger arbor.ILogger) interfaces.ArticleStore {
	return &ArticleStorage{
		db:         db,
		embeddings: embeddings,
		mirrorsDir: fsConfig.Mirrors,
		converter:  md.NewConverter("", true, nil),
		logger:     logger,
	}
}

func (s *ArticleStorage) Store(ctx context.Context, req *interfaces.StoreRequest) (*interfaces.StoreResult, error) {
	if req.JobID == "" {
		return nil, fmt.Errorf("store request missing job ID")
	}

	record := s.buildRecord(req)
	result := &interfaces.StoreResult{}

	storageType := req.StorageType
	if storageType == "" {
		storageType = "both"
	}

	if storageType == "database" || storageType == "both" {
		s.embed(ctx, record, result)
		if err := s.db.Store().Upsert(record.ID, record); err != nil {
			return nil, fmt.Errorf("failed to persist article: %w", err)
		}
		result.ArticleID = record.ID
	}

	if storageType == "mirror" || storageType == "both" {
		path, err := s.mirror(record)
		if err != nil {
			// The database record is the source of truth; a mirror failure
			// degrades rather than failing the store.
			s.logger.Warn().Str("job_id", req.JobID).Err(err).Msg("Markdown mirror failed")
		} else {
			result.MirrorPath = path
		}
	}

	result.Success = true
	s.logger.Info().
		Str("job_id", req.JobID).
		Str("article_id", result.ArticleID).
		Str("mirror_path", result.MirrorPath).
		Bool("embedded", result.Embedded).
		Msg("Article persisted")

	return result, nil
}

// buildRecord maps the validated article fields onto the storage record
func (s *ArticleStorage) buildRecord(req *interfaces.StoreRequest) *ArticleRecord {
	validated := req.ValidatedArticle

	record := &ArticleRecord{
		ID:              uuid.New().String(),
		JobID:           req.JobID,
		Headline:        stringField(validated, "headline"),
		MetaTitle:       stringField(validated, "meta_title"),
		MetaDescription: stringField(validated, "meta_description"),
		HTML:            req.HTMLContent,
		WordCount:       intField(validated, "word_count"),
		ReadTime:        intField(validated, "read_time"),
		CreatedAt:       time.Now(),
	}

	if meta, ok := validated["metadata"].(map[string]any); ok {
		record.Slug, _ = meta["slug"].(string)
		record.PrimaryKeyword, _ = meta["primary_keyword"].(string)
		record.Language, _ = meta["language"].(string)
		record.Country, _ = meta["country"].(string)
	}
	if record.Slug == "" {
		record.Slug = common.Slugify(record.Headline)
	}

	return record
}

// embed attaches the semantic embedding when the service is available
func (s *ArticleStorage) embed(ctx context.Context, record *ArticleRecord, result *interfaces.StoreResult) {
	if s.embeddings == nil {
		return
	}

	vectors, err := s.embeddings.Embed(ctx, []string{record.Headline + "\n" + record.MetaDescription})
	if err != nil {
		s.logger.Warn().Str("job_id", record.JobID).Err(err).Msg("Embedding generation failed")
		return
	}
	if len(vectors) > 0 && len(vectors[0]) > 0 {
		record.Embedding = vectors[0]
		result.Embedded = true
	}
}

// mirror writes the markdown rendition of the article to the mirrors dir
func (s *ArticleStorage) mirror(record *ArticleRecord) (string, error) {
	if s.mirrorsDir == "" {
		return "", fmt.Errorf("mirrors directory not configured")
	}
	if err := os.MkdirAll(s.mirrorsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create mirrors directory: %w", err)
	}

	markdown, err := s.converter.ConvertString(record.HTML)
	if err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}

	name := record.Slug
	if name == "" {
		name = record.ID
	}
	path := filepath.Join(s.mirrorsDir, name+".md")
	if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
		return "", fmt.Errorf("failed to write mirror file: %w", err)
	}
	return path, nil
}

// GetBySlug looks up one stored article by its slug
func (s *ArticleStorage) GetBySlug(slug string) (*ArticleRecord, error) {
	var records []ArticleRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Slug").Eq(slug)); err != nil {
		return nil, fmt.Errorf("failed to find article: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("article not found: %s", slug)
	}
	return &records[0], nil
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
