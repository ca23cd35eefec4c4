package sitemap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/models"
)

func testService(t *testing.T) *Service {
	t.Helper()
	config := common.DefaultConfig()
	return NewService(&config.Sitemap, common.GetLogger())
}

func TestFilterURLsDropsInvalidAndDuplicates(t *testing.T) {
	s := testService(t)

	urls := []string{
		"https://example.com/blog/post-1",
		"https://example.com/blog/post-1",
		"javascript:alert(1)",
		"file:///etc/passwd",
		"https://example.com/blog/post-2",
		"not-a-url",
	}

	out := s.filterURLs(urls, 100)
	assert.Equal(t, []string{
		"https://example.com/blog/post-1",
		"https://example.com/blog/post-2",
	}, out)
}

func TestFilterURLsTruncatesAtMax(t *testing.T) {
	s := testService(t)

	urls := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}

	out := s.filterURLs(urls, 2)
	assert.Len(t, out, 2)
}

func TestCrawlYieldsEmptyListOnInternalPanic(t *testing.T) {
	// The nil cache makes the first lookup panic
	s := &Service{logger: common.GetLogger()}

	list := s.Crawl(context.Background(), "https://example.com", 5)
	require.NotNil(t, list)
	assert.Empty(t, list.Pages)
	assert.Empty(t, list.PagesByLabel(models.PageLabelBlog))
}

func TestWWWMirror(t *testing.T) {
	assert.Equal(t, "https://www.example.com", wwwMirror("https://example.com"))
	assert.Empty(t, wwwMirror("https://www.example.com"))
}
