package uploadingester

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// RenderResult is the markdown rendition of an HTML upload.
type RenderResult struct {
	Title    string
	Markdown string
}

// Renderer converts HTML uploads to markdown so the generation
// pipeline can feed them as context. Main-content extraction strips
// navigation and boilerplate before conversion.
type Renderer struct {
	converter *md.Converter
}

// NewRenderer creates an HTML to markdown renderer.
func NewRenderer() *Renderer {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Renderer{converter: converter}
}

// Render converts HTML content to markdown. The name is used as a
// pseudo-URL for the content extractor.
func (r *Renderer) Render(htmlContent []byte, name string) (*RenderResult, error) {
	content := string(htmlContent)
	title := ""

	article, err := readability.FromReader(strings.NewReader(content), &url.URL{Path: "/" + name})
	if err == nil && strings.TrimSpace(article.Content) != "" {
		content = article.Content
		title = strings.TrimSpace(article.Title)
	}

	markdown, err := r.converter.ConvertString(content)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = cleanMarkdown(markdown)

	if title == "" {
		title = extractHTMLTitle(htmlContent)
	}
	if title == "" {
		title = firstH1(markdown)
	}

	return &RenderResult{Title: title, Markdown: markdown}, nil
}

// extractHTMLTitle extracts the document title from raw HTML.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil && title == ""; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

// cleanMarkdown collapses excessive blank lines and trims trailing
// whitespace.
func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
