package arxiv

import (
	"regexp"
	"strconv"
	"strings"
)

// Atom feed structures returned by the query API.
type feed struct {
	TotalResults string  `xml:"http://a9.com/-/spec/opensearch/1.1/ totalResults"`
	StartIndex   string  `xml:"http://a9.com/-/spec/opensearch/1.1/ startIndex"`
	ItemsPerPage string  `xml:"http://a9.com/-/spec/opensearch/1.1/ itemsPerPage"`
	Entries      []entry `xml:"entry"`
}

type entry struct {
	ID         string     `xml:"id"`
	Title      string     `xml:"title"`
	Summary    string     `xml:"summary"`
	Published  string     `xml:"published"`
	Updated    string     `xml:"updated"`
	Authors    []author   `xml:"author"`
	Links      []link     `xml:"link"`
	Categories []category `xml:"category"`
	DOI        string     `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string     `xml:"http://arxiv.org/schemas/atom journal_ref"`
}

type author struct {
	Name string `xml:"name"`
}

type link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type category struct {
	Term string `xml:"term,attr"`
}

var spaces = regexp.MustCompile(`\s+`)

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// CleanID strips a URL prefix and version suffix from an arXiv identifier
// ("http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func CleanID(id string) string {
	id = strings.TrimSpace(id)
	if idx := strings.Index(id, "/abs/"); idx >= 0 {
		id = id[idx+len("/abs/"):]
	}
	id = strings.TrimPrefix(strings.TrimPrefix(id, "arXiv:"), "arxiv:")
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

func (e entry) toPaper() Paper {
	p := Paper{
		ID:        CleanID(e.ID),
		Title:     cleanText(e.Title),
		Abstract:  cleanText(e.Summary),
		Published: strings.TrimSpace(e.Published),
		Updated:   strings.TrimSpace(e.Updated),
		ArxivURL:  strings.TrimSpace(e.ID),
		Authors:   []string{},
	}
	for _, a := range e.Authors {
		if name := cleanText(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, c := range e.Categories {
		if c.Term != "" {
			p.Categories = append(p.Categories, c.Term)
		}
	}
	for _, l := range e.Links {
		switch l.Title {
		case "doi":
			if _, doi, ok := strings.Cut(l.Href, "doi.org/"); ok {
				p.DOI = doi
			}
		case "pdf":
			p.PDFURL = l.Href
		}
	}
	if p.DOI == "" {
		p.DOI = cleanText(e.DOI)
	}
	if p.PDFURL == "" {
		p.PDFURL = strings.Replace(p.ArxivURL, "abs", "pdf", 1)
	}
	switch {
	case cleanText(e.JournalRef) != "":
		p.Journal = cleanText(e.JournalRef)
	case len(p.Categories) > 0:
		p.Journal = "arXiv:" + p.Categories[0]
	}
	return p
}
