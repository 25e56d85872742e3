package output

import (
	"fmt"
	"net/url"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
)

// Markdown converts a fetched page to GitHub-flavored Markdown, resolving
// links against pageURL.
func Markdown(htmlContent, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	converter := md.NewConverter(base.Host, true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, sel *goquery.Selection, _ *md.Options) *string {
			href, ok := sel.Attr("href")
			if !ok {
				return nil
			}
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
			s := fmt.Sprintf("[%s](%s)", content, href)
			if title, ok := sel.Attr("title"); ok {
				s = fmt.Sprintf("[%s](%s %q)", content, href, title)
			}
			return &s
		},
	})

	cleaned, err := CleanHTML(htmlContent)
	if err != nil {
		return "", err
	}
	return converter.ConvertString(cleaned)
}
