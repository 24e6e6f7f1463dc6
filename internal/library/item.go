package library

// ItemType is the discriminant shared by every library item.
type ItemType string

const (
	TypeBook  ItemType = "book"
	TypePaper ItemType = "paper"
)

// Item is implemented by every library item variant.
type Item interface {
	ItemID() string
	ItemType() ItemType
}

// Book is a library item describing a book.
// Optional fields are pointers so "absent" and "zero" stay distinguishable.
type Book struct {
	ID       string   `json:"id" yaml:"id"`
	Type     ItemType `json:"type" yaml:"type,omitempty"`
	Title    string   `json:"title" yaml:"title"`
	ImageURL string   `json:"imageUrl" yaml:"imageUrl"`
	BookLink string   `json:"bookLink" yaml:"bookLink"`
	TLDR     string   `json:"tldr" yaml:"tldr"`
	Author   *string  `json:"author,omitempty" yaml:"author,omitempty"`
	Genre    *string  `json:"genre,omitempty" yaml:"genre,omitempty"`
	Rating   *float64 `json:"rating,omitempty" yaml:"rating,omitempty"`
}

func (b Book) ItemID() string     { return b.ID }
func (b Book) ItemType() ItemType { return TypeBook }

// ResearchPaper is a library item describing an academic paper.
type ResearchPaper struct {
	ID        string   `json:"id" yaml:"id"`
	Type      ItemType `json:"type" yaml:"type,omitempty"`
	Title     string   `json:"title" yaml:"title"`
	Authors   []string `json:"authors" yaml:"authors"`
	PaperLink string   `json:"paperLink" yaml:"paperLink"`
	Abstract  string   `json:"abstract" yaml:"abstract"`
	Journal   *string  `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year      *int     `json:"year,omitempty" yaml:"year,omitempty"`
	DOI       *string  `json:"doi,omitempty" yaml:"doi,omitempty"`
}

func (p ResearchPaper) ItemID() string     { return p.ID }
func (p ResearchPaper) ItemType() ItemType { return TypePaper }

// BookPatch carries the fields of an updateBook call. Nil fields are left untouched.
type BookPatch struct {
	ID       string
	Title    *string
	ImageURL *string
	BookLink *string
	TLDR     *string
	Author   *string
	Genre    *string
	Rating   *float64
}

// Merge applies the patch onto b and returns the result. ID and Type never change.
func (p BookPatch) Merge(b Book) Book {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.ImageURL != nil {
		b.ImageURL = *p.ImageURL
	}
	if p.BookLink != nil {
		b.BookLink = *p.BookLink
	}
	if p.TLDR != nil {
		b.TLDR = *p.TLDR
	}
	if p.Author != nil {
		b.Author = p.Author
	}
	if p.Genre != nil {
		b.Genre = p.Genre
	}
	if p.Rating != nil {
		b.Rating = p.Rating
	}
	return b
}

// PaperPatch carries the fields of an updateResearchPaper call.
type PaperPatch struct {
	ID        string
	Title     *string
	Authors   []string
	PaperLink *string
	Abstract  *string
	Journal   *string
	Year      *int
	DOI       *string
}

// Merge applies the patch onto p and returns the result. ID and Type never change.
func (pp PaperPatch) Merge(p ResearchPaper) ResearchPaper {
	if pp.Title != nil {
		p.Title = *pp.Title
	}
	if pp.Authors != nil {
		p.Authors = append([]string(nil), pp.Authors...)
	}
	if pp.PaperLink != nil {
		p.PaperLink = *pp.PaperLink
	}
	if pp.Abstract != nil {
		p.Abstract = *pp.Abstract
	}
	if pp.Journal != nil {
		p.Journal = pp.Journal
	}
	if pp.Year != nil {
		p.Year = pp.Year
	}
	if pp.DOI != nil {
		p.DOI = pp.DOI
	}
	return p
}

// Ptr returns a pointer to v. Handy for optional fields.
func Ptr[T any](v T) *T { return &v }
