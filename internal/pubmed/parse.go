package pubmed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/54b3r/pmrag-go/internal/rag"
)

// Display defaults for missing fields.
const (
	noTitle    = "No title available"
	noAbstract = "No abstract available."
	noAuthors  = "No authors listed"
	noDate     = "No date available"
)

// ArticleURL returns the PubMed page for id.
func ArticleURL(id string) string {
	return "https://pubmed.ncbi.nlm.nih.gov/" + id + "/"
}

// richText is element content with any inline markup (<i>, <sup>, ...)
// flattened to its text.
type richText string

// UnmarshalXML implements xml.Unmarshaler.
func (r *richText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				*r = richText(b.String())
				return nil
			}
			depth--
		}
	}
}

type xmlAuthor struct {
	LastName string `xml:"LastName"`
	Initials string `xml:"Initials"`
}

type xmlPubDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

type xmlArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    richText    `xml:"ArticleTitle"`
			Abstract []richText  `xml:"Abstract>AbstractText"`
			Authors  []xmlAuthor `xml:"AuthorList>Author"`
			PubDate  xmlPubDate  `xml:"Journal>JournalIssue>PubDate"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}

type xmlArticleSet struct {
	Articles []xmlArticle `xml:"PubmedArticle"`
}

// ParseArticles converts an efetch PubmedArticleSet document into articles.
// Articles without a PMID are skipped.
func ParseArticles(data []byte) ([]rag.Article, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	d.Entity = xml.HTMLEntity

	var set xmlArticleSet
	if err := d.Decode(&set); err != nil {
		return nil, fmt.Errorf("parse efetch xml: %w", err)
	}

	out := make([]rag.Article, 0, len(set.Articles))
	for _, x := range set.Articles {
		id := strings.TrimSpace(x.Citation.PMID)
		if id == "" {
			continue
		}
		art := x.Citation.Article
		out = append(out, rag.Article{
			ID:        id,
			Title:     orDefault(strings.Join(strings.Fields(string(art.Title)), " "), noTitle),
			Abstract:  joinAbstract(art.Abstract),
			Authors:   formatAuthors(art.Authors),
			PubDate:   formatDate(art.PubDate),
			PubmedURL: ArticleURL(id),
		})
	}
	return out, nil
}

func joinAbstract(parts []richText) string {
	if len(parts) == 0 {
		return noAbstract
	}
	paras := make([]string, 0, len(parts))
	for _, p := range parts {
		paras = append(paras, strings.TrimSpace(string(p)))
	}
	return strings.Join(paras, "\n\n")
}

// formatAuthors renders "Last Initials" for the first author, adding
// " et al." when there are more.
func formatAuthors(authors []xmlAuthor) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if n := strings.TrimSpace(strings.TrimSpace(a.LastName) + " " + strings.TrimSpace(a.Initials)); n != "" {
			names = append(names, n)
		}
	}
	switch len(names) {
	case 0:
		return noAuthors
	case 1:
		return names[0]
	default:
		return names[0] + " et al."
	}
}

// formatDate renders "Month Day Year", skipping missing parts.
func formatDate(p xmlPubDate) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Month, p.Day, p.Year} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return orDefault(strings.Join(parts, " "), noDate)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
