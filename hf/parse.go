package hf

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	paperLinkPattern = regexp.MustCompile(`^/papers/(\d{4}\.\d{4,5})$`)
	scriptIDPattern  = regexp.MustCompile(`"(\d{4}\.\d{4,5})"`)
	digitsPattern    = regexp.MustCompile(`\d+`)
)

// extractPaperIDs collects arxiv IDs from a listing page, first from
// paper links and then from embedded script data, deduplicated in
// encounter order.
func extractPaperIDs(doc *html.Node) []string {
	ids := []string{}
	seen := map[string]bool{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "a" {
			return
		}
		if m := paperLinkPattern.FindStringSubmatch(attrVal(n, "href")); m != nil {
			add(m[1])
		}
	})

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "script" {
			return
		}
		text := rawText(n)
		if !strings.Contains(strings.ToLower(text), "papers") {
			return
		}
		for _, m := range scriptIDPattern.FindAllStringSubmatch(text, -1) {
			add(m[1])
		}
	})

	return ids
}

// extractAbstract tries the abstract-marked elements in order, then the
// meta description.
func extractAbstract(doc *html.Node) string {
	selectors := []func(*html.Node) bool{
		func(n *html.Node) bool { return n.Data == "p" && classContains(n, "abstract") },
		func(n *html.Node) bool { return n.Data == "div" && classContains(n, "abstract") },
		func(n *html.Node) bool { return n.Data == "section" && attrVal(n, "id") == "abstract" },
	}

	abstract := ""
	for _, match := range selectors {
		if elem := findElement(doc, match); elem != nil {
			abstract = textContent(elem)
			break
		}
	}

	if abstract == "" {
		if meta := findElement(doc, func(n *html.Node) bool {
			return n.Data == "meta" && attrVal(n, "name") == "description"
		}); meta != nil {
			abstract = attrVal(meta, "content")
		}
	}
	return abstract
}

func extractUpvotes(doc *html.Node) int {
	upvotes := 0
	found := false
	walk(doc, func(n *html.Node) {
		if found || n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "span", "div", "button":
		default:
			return
		}
		if !classContains(n, "upvote", "like") {
			return
		}
		if m := digitsPattern.FindString(textContent(n)); m != "" {
			if v, err := strconv.Atoi(m); err == nil {
				upvotes = v
				found = true
			}
		}
	})
	return upvotes
}

// extractAuthors reads author names from the author section's links,
// falling back to meta author tags.
func extractAuthors(doc *html.Node) []string {
	authors := []string{}

	if section := findElement(doc, func(n *html.Node) bool { return classContains(n, "author") }); section != nil {
		walk(section, func(n *html.Node) {
			if n.Type != html.ElementNode || n.Data != "a" {
				return
			}
			if name := textContent(n); name != "" {
				authors = append(authors, name)
			}
		})
	}

	if len(authors) == 0 {
		walk(doc, func(n *html.Node) {
			if n.Type != html.ElementNode || n.Data != "meta" || attrVal(n, "name") != "author" {
				return
			}
			if content := attrVal(n, "content"); content != "" {
				authors = append(authors, content)
			}
		})
	}
	return authors
}

func extractPublishedDate(doc *html.Node) string {
	timeElem := findElement(doc, func(n *html.Node) bool { return n.Data == "time" })
	if timeElem == nil {
		return ""
	}
	if dt := attrVal(timeElem, "datetime"); dt != "" {
		return dt
	}
	return textContent(timeElem)
}

// firstLongParagraph returns the first substantial text block, skipping
// link-only lines.
func firstLongParagraph(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 200 && !strings.HasPrefix(line, "http") {
			return line
		}
	}
	return ""
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// findElement returns the first element node, in document order, for
// which match returns true.
func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func classContains(n *html.Node, substrings ...string) bool {
	class := strings.ToLower(attrVal(n, "class"))
	if class == "" {
		return false
	}
	for _, s := range substrings {
		if strings.Contains(class, s) {
			return true
		}
	}
	return false
}

// textContent concatenates the trimmed text nodes under n.
func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(node.Data))
		}
	})
	return b.String()
}

// rawText concatenates the direct text children of n without trimming.
func rawText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
