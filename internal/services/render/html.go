package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/scriptor/internal/models"
)

// Input carries everything the final HTML document needs
type Input struct {
	Article       *models.ArticleOutput
	CompanyName   string
	TOC           []models.TOCEntry
	HeroImage     *ImageRef
	MidImage      *ImageRef
	BottomImage   *ImageRef
	FAQ           []models.QAPair
	PAA           []models.QAPair
	InternalLinks []models.InternalLink
	CitationsHTML string
	ReadTime      int
	PublishedAt   string
}

// ImageRef points at one rendered image artifact
type ImageRef struct {
	URL     string
	AltText string
	Credit  string
}

// Renderer produces the final article HTML. Section bodies pass through a
// markdown conversion because generators frequently emit markdown inside
// JSON string fields.
type Renderer struct {
	md     goldmark.Markdown
	logger arbor.ILogger
}

func NewRenderer(logger arbor.ILogger) *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
		),
		logger: logger,
	}
}

// Render assembles the complete document and sanitizes the result
func (r *Renderer) Render(in *Input) string {
	var b strings.Builder
	a := in.Article

	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(a.Headline))
	if a.Subtitle != "" {
		fmt.Fprintf(&b, `<p class="subtitle">%s</p>`+"\n", html.EscapeString(a.Subtitle))
	}
	if in.ReadTime > 0 {
		fmt.Fprintf(&b, `<p class="article-meta">%d min read`, in.ReadTime)
		if in.PublishedAt != "" {
			fmt.Fprintf(&b, ` · %s`, html.EscapeString(in.PublishedAt))
		}
		b.WriteString("</p>\n")
	}

	if a.DirectAnswer != "" {
		fmt.Fprintf(&b, `<div class="direct-answer">%s</div>`+"\n", r.body(a.DirectAnswer))
	}

	if in.HeroImage != nil {
		r.writeImage(&b, in.HeroImage, "hero-image")
	}

	if len(in.TOC) > 0 {
		b.WriteString(`<nav class="toc"><ul>` + "\n")
		for _, entry := range in.TOC {
			fmt.Fprintf(&b, `<li><a href="#%s">%s</a></li>`+"\n", entry.Anchor, html.EscapeString(entry.Title))
		}
		b.WriteString("</ul></nav>\n")
	}

	if a.Intro != "" {
		b.WriteString(r.body(a.Intro) + "\n")
	}

	sections := a.Sections()
	for i, section := range sections {
		anchor := anchorFor(in.TOC, section.Index, section.Title)
		fmt.Fprintf(&b, `<h2 id="%s">%s</h2>`+"\n", anchor, html.EscapeString(section.Title))
		b.WriteString(r.body(section.Content) + "\n")

		// Mid image after the third section, bottom image after the sixth
		if i == 2 && in.MidImage != nil {
			r.writeImage(&b, in.MidImage, "mid-image")
		}
		if i == 5 && in.BottomImage != nil {
			r.writeImage(&b, in.BottomImage, "bottom-image")
		}
	}

	for _, table := range a.Tables {
		r.writeTable(&b, &table)
	}

	r.writeTakeaways(&b, a)
	r.writeQAPairs(&b, "Frequently Asked Questions", "faq", in.FAQ)
	r.writeQAPairs(&b, "People Also Ask", "paa", in.PAA)

	if len(in.InternalLinks) > 0 {
		b.WriteString(`<section class="related"><h2>Related Reading</h2><ul>` + "\n")
		for _, link := range in.InternalLinks {
			fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`+"\n", link.URL, html.EscapeString(link.Title))
		}
		b.WriteString("</ul></section>\n")
	}

	if in.CitationsHTML != "" {
		fmt.Fprintf(&b, `<section class="sources"><h2>Sources</h2>%s</section>`+"\n", in.CitationsHTML)
	}

	return SanitizeHTML(b.String())
}

// Fragment converts one markdown-ish field to a sanitized HTML fragment
func (r *Renderer) Fragment(content string) string {
	return SanitizeHTML(r.body(content))
}

// body converts one markdown-ish field to HTML
func (r *Renderer) body(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	// Already HTML, pass through
	if strings.HasPrefix(content, "<") {
		return content
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		r.logger.Warn().Err(err).Msg("Markdown conversion failed, using plain paragraph")
		return "<p>" + html.EscapeString(content) + "</p>"
	}
	return strings.TrimSpace(buf.String())
}

func (r *Renderer) writeImage(b *strings.Builder, img *ImageRef, class string) {
	fmt.Fprintf(b, `<figure class="%s"><img src="%s" alt="%s" loading="lazy">`,
		class, img.URL, html.EscapeString(img.AltText))
	if img.Credit != "" {
		fmt.Fprintf(b, `<figcaption>%s</figcaption>`, html.EscapeString(img.Credit))
	}
	b.WriteString("</figure>\n")
}

func (r *Renderer) writeTable(b *strings.Builder, table *models.Table) {
	b.WriteString(`<table>`)
	if table.Title != "" {
		fmt.Fprintf(b, `<caption>%s</caption>`, html.EscapeString(table.Title))
	}
	b.WriteString("<thead><tr>")
	for _, header := range table.Headers {
		fmt.Fprintf(b, "<th>%s</th>", html.EscapeString(header))
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range table.Rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(b, "<td>%s</td>", html.EscapeString(cell))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>\n")
}

func (r *Renderer) writeTakeaways(b *strings.Builder, a *models.ArticleOutput) {
	takeaways := []string{a.KeyTakeaway01, a.KeyTakeaway02, a.KeyTakeaway03}
	any := false
	for _, t := range takeaways {
		if t != "" {
			any = true
			break
		}
	}
	if !any {
		return
	}

	b.WriteString(`<section class="key-takeaways"><h2>Key Takeaways</h2><ul>` + "\n")
	for _, t := range takeaways {
		if t != "" {
			fmt.Fprintf(b, "<li>%s</li>\n", html.EscapeString(t))
		}
	}
	b.WriteString("</ul></section>\n")
}

func (r *Renderer) writeQAPairs(b *strings.Builder, heading, class string, pairs []models.QAPair) {
	if len(pairs) == 0 {
		return
	}

	fmt.Fprintf(b, `<section class="%s"><h2>%s</h2>`+"\n", class, html.EscapeString(heading))
	for _, pair := range pairs {
		fmt.Fprintf(b, "<h3>%s</h3>\n%s\n", html.EscapeString(pair.Question), r.body(pair.Answer))
	}
	b.WriteString("</section>\n")
}

// anchorFor resolves the TOC anchor for a section, falling back to a slug of
// the title when the TOC is missing.
func anchorFor(toc []models.TOCEntry, index int, title string) string {
	for _, entry := range toc {
		if entry.ID == index {
			return entry.Anchor
		}
	}
	return slugAnchor(title)
}

func slugAnchor(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
