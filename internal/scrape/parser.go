package scrape

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/learningequality/sushi-chef-proyecto-descartes/internal/model"
)

// Parser extracts taxonomy and lesson data from the site's pages.
// All returned URLs are resolved absolute against the parser's base URL.
type Parser struct {
	// baseURL is the site root, used to resolve relative hrefs.
	baseURL *url.URL

	// cmsPath is the CMS path prefix under which subjects live.
	cmsPath string
}

// NewParser creates a Parser for the site rooted at baseURL.
func NewParser(baseURL, cmsPath string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &Parser{baseURL: u, cmsPath: cmsPath}, nil
}

// Subjects extracts the subject taxonomy from the index page.
// Navigation entries whose first URL segment is blacklisted are skipped.
// Entries with javascript pseudo-links keep an empty URL; they become bare
// topics whose contents are never fetched.
func (p *Parser) Subjects(content io.Reader, blacklist []string) ([]model.Subject, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index page: %w", err)
	}

	skip := make(map[string]bool, len(blacklist))
	for _, s := range blacklist {
		skip[s] = true
	}

	var subjects []model.Subject
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "a" || !hasClass(n, "item") {
			return
		}
		href := getAttr(n, "href")
		title := strings.TrimSpace(textContent(n))
		if title == "" {
			return
		}

		subject := model.Subject{Title: title, Nested: isNestedMenuEntry(n)}

		if strings.Contains(href, "javascript:") {
			// Placeholder menu entry with no page of its own.
			subjects = append(subjects, subject)
			return
		}

		// The subject slug is the first path segment after the CMS
		// prefix; that is what the blacklist filters on.
		parts := strings.Split(href, p.cmsPath)
		tail := parts[len(parts)-1]
		if skip[strings.Split(tail, "/")[0]] {
			return
		}

		subject.URL = p.baseURL.Scheme + "://" + p.baseURL.Host + p.cmsPath + tail
		subjects = append(subjects, subject)
	})

	return subjects, nil
}

// isNestedMenuEntry reports whether the anchor sits in a second-level
// navigation list. The menu marks those lists with class "l2" on the
// grandparent element.
func isNestedMenuEntry(n *html.Node) bool {
	if n.Parent == nil || n.Parent.Parent == nil {
		return false
	}
	classes := strings.Fields(getAttr(n.Parent.Parent, "class"))
	return len(classes) > 0 && classes[0] == "l2"
}

// SelectedCategory extracts the category ID from a subject page: the value
// of the pre-selected top-level <option> in the filter form. The second
// return value is false when the page has no such option, which means the
// subject has no filterable lesson list.
func (p *Parser) SelectedCategory(content io.Reader) (string, bool, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return "", false, fmt.Errorf("failed to parse subject page: %w", err)
	}

	var value string
	var found bool
	walk(doc, func(n *html.Node) {
		if found || n.Type != html.ElementNode || n.Data != "option" {
			return
		}
		if !hasClass(n, "level0") {
			return
		}
		if _, ok := lookupAttr(n, "selected"); !ok {
			return
		}
		value = getAttr(n, "value")
		found = true
	})

	return value, found, nil
}

// ParseCount parses a format=count filter response: a plain-text body whose
// first line is the number of matching items.
func ParseCount(body []byte) (int, error) {
	line, _, _ := strings.Cut(string(body), "\n")
	count, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("malformed count response %q: %w", line, err)
	}
	return count, nil
}

// Link is one lesson reference in an item-list page.
type Link struct {
	// Title is the anchor text.
	Title string

	// URL is the absolute lesson page URL.
	URL string
}

// ItemLinks extracts the lesson links from an item-list result page.
// Only anchors inside the result table body count; the page's navigation
// and pagination anchors live outside it.
func (p *Parser) ItemLinks(content io.Reader) ([]Link, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse item list: %w", err)
	}

	var links []Link
	var inBody func(n *html.Node)
	inBody = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := getAttr(n, "href"); href != "" {
				links = append(links, Link{
					Title: strings.TrimSpace(textContent(n)),
					URL:   p.resolveURL(href),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			inBody(c)
		}
	}

	walk(doc, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tbody" {
			inBody(n)
		}
	})

	return links, nil
}

// LessonPage holds the fields scraped from one lesson's detail page.
type LessonPage struct {
	// ThumbnailURL is the absolute URL of the first image in the lesson
	// body, empty when the body has no image.
	ThumbnailURL string

	// Author is the scraped author name, empty when the page carries
	// none of the known author markers.
	Author string

	// ZipURL is the absolute URL of the lesson's zip package, empty when
	// the page links no zip.
	ZipURL string

	// IndexName is the file name of the lesson's entry document: the
	// last segment of the first anchor in the lesson body.
	IndexName string
}

// authorMarkers are the labels the site uses for the author line, in the
// order they should be tried.
var authorMarkers = []string{"Autoría", "Autores", "Autor"}

// Lesson extracts the packaging fields from a lesson detail page.
func (p *Parser) Lesson(content io.Reader) (*LessonPage, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lesson page: %w", err)
	}

	page := &LessonPage{}

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}

		// First zip link anywhere in the document.
		if n.Data == "a" && page.ZipURL == "" {
			if href := getAttr(n, "href"); strings.Contains(href, ".zip") {
				page.ZipURL = p.resolveURL(href)
			}
		}

		// Thumbnail and entry document both live in the lesson body.
		if n.Data == "div" && hasClass(n, "itemFullText") {
			if page.ThumbnailURL == "" {
				if img := findElement(n, "img"); img != nil {
					page.ThumbnailURL = p.resolveURL(getAttr(img, "src"))
				}
			}
			if page.IndexName == "" {
				if a := findElement(n, "a"); a != nil {
					href := getAttr(a, "href")
					if i := strings.LastIndex(href, "/"); i >= 0 {
						href = href[i+1:]
					}
					page.IndexName = href
				}
			}
		}
	})

	page.Author = extractAuthor(doc)

	return page, nil
}

// extractAuthor finds the first author marker in the document and returns
// the text immediately following it, with the separating colon stripped.
// The site writes the author line as "<strong>Autoría</strong>: Name".
func extractAuthor(doc *html.Node) string {
	for _, marker := range authorMarkers {
		var author string
		walk(doc, func(n *html.Node) {
			if author != "" || n.Type != html.TextNode {
				return
			}
			if strings.TrimSpace(n.Data) != marker {
				return
			}
			label := n.Parent
			if label == nil {
				return
			}
			for sib := label.NextSibling; sib != nil; sib = sib.NextSibling {
				if sib.Type == html.ElementNode {
					break
				}
				if sib.Type != html.TextNode {
					continue
				}
				text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(sib.Data), ":"))
				if text != "" {
					author = text
					return
				}
			}
		})
		if author != "" {
			return author
		}
	}
	return ""
}

// resolveURL resolves href against the parser's base URL.
// Unparseable and pseudo links resolve to "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

// walk visits every node of the tree rooted at n in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// findElement returns the first descendant element with the given tag.
func findElement(n *html.Node, tag string) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && c.Data == tag {
			found = c
		}
	})
	return found
}

// textContent concatenates all text nodes beneath n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

// lookupAttr retrieves an attribute and reports whether it is present.
func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// hasClass reports whether the node's class attribute contains class c.
func hasClass(n *html.Node, c string) bool {
	for _, have := range strings.Fields(getAttr(n, "class")) {
		if have == c {
			return true
		}
	}
	return false
}
