package roster

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FragmentDecoder extracts values from the HTML fragments embedded in roster cells
type FragmentDecoder interface {
	// PartyName returns the text of the first element in the party cell
	PartyName(cell string) (string, bool)
	// StateName returns the title attribute of the state cell
	StateName(cell string) (string, bool)
}

// NewDecoder returns the decoder registered under name ("regex" or "html")
func NewDecoder(name string) (FragmentDecoder, error) {
	switch name {
	case "", "regex":
		return RegexDecoder{}, nil
	case "html":
		return HTMLDecoder{}, nil
	default:
		return nil, fmt.Errorf("unknown fragment decoder: %s", name)
	}
}

var (
	innerTextPattern = regexp.MustCompile(`>([^<]+)<`)
	titlePattern     = regexp.MustCompile(`title="([^"]+)"`)
)

// RegexDecoder matches the fragments with patterns, as the upstream format is stable and flat
type RegexDecoder struct{}

func (RegexDecoder) PartyName(cell string) (string, bool) {
	m := innerTextPattern.FindStringSubmatch(cell)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (RegexDecoder) StateName(cell string) (string, bool) {
	m := titlePattern.FindStringSubmatch(cell)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// HTMLDecoder parses the fragments with goquery
type HTMLDecoder struct{}

func (HTMLDecoder) PartyName(cell string) (string, bool) {
	sel, ok := firstElement(cell)
	if !ok {
		return "", false
	}
	text := sel.Text()
	if text == "" {
		return "", false
	}
	return text, true
}

func (HTMLDecoder) StateName(cell string) (string, bool) {
	doc, err := parseFragment(cell)
	if err != nil {
		return "", false
	}
	title, ok := doc.Find("[title]").First().Attr("title")
	if !ok || title == "" {
		return "", false
	}
	return title, true
}

func firstElement(cell string) (*goquery.Selection, bool) {
	if !strings.Contains(cell, "<") {
		return nil, false
	}
	doc, err := parseFragment(cell)
	if err != nil {
		return nil, false
	}
	sel := doc.Find("body *").First()
	if sel.Length() == 0 {
		return nil, false
	}
	return sel, true
}

func parseFragment(cell string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(cell))
}
