package quality

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var wordExpr = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Document is the structural view of a generated HTML body.
type Document struct {
	Text       string
	Words      int
	Headings   int
	Paragraphs int
}

// Analyze parses body as an HTML fragment. Plain text is accepted and yields no structure.
func Analyze(body string) Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		text := strings.Join(strings.Fields(body), " ")
		return Document{Text: text, Words: len(wordExpr.FindAllString(text, -1))}
	}

	var b strings.Builder
	for _, n := range doc.Nodes {
		collectText(n, &b)
	}
	text := strings.Join(strings.Fields(b.String()), " ")

	return Document{
		Text:       text,
		Words:      len(wordExpr.FindAllString(text, -1)),
		Headings:   doc.Find("h2").Length(),
		Paragraphs: doc.Find("p").Length(),
	}
}

// CountWords counts letter/digit runs in the visible text of body.
func CountWords(body string) int {
	return Analyze(body).Words
}

// Excerpt returns up to limit runes of visible text, cut on a word boundary.
func Excerpt(body string, limit int) string {
	text := Analyze(body).Text
	return Truncate(text, limit)
}

// Truncate shortens s to at most limit runes, preferring the last space before the cut.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)[:limit]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
