package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		utterance string
		want      ID
	}{
		{"Please add the book 1984 to my library", BookLibrarian},
		{"What books do you recommend?", BookLibrarian},
		{"Find the arXiv paper on transformers", PaperLibrarian},
		{"Add the book with DOI 10.1000/xyz", PaperLibrarian},
		{"I read a book on ARXIV yesterday", PaperLibrarian},
		{"add the research paper Attention Is All You Need", PaperLibrarian},
		{"Summarize the abstract please", PaperLibrarian},
		{"Which journal published it?", PaperLibrarian},
		{"Look up 2310.11453", PaperLibrarian},
		{"look up 2310.11453v2 for me", PaperLibrarian},
		{"fetch hep-th/9901001", PaperLibrarian},
		{"Add Dune", BookLibrarian},
		{"add this paper", GeneralAssistant},
		{"show my library", BookLibrarian},
		{"research library tips", GeneralAssistant},
		{"Who is the author of Emma?", BookLibrarian},
		{"Recommend a genre", BookLibrarian},
		{"What's on the roadmap?", GeneralAssistant},
		{"hello", GeneralAssistant},
		{"", GeneralAssistant},
	}
	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.utterance))
		})
	}
}

func TestPaperSignalsDominate(t *testing.T) {
	bookWords := []string{"book", "add", "library", "read", "author", "genre"}
	for _, signal := range []string{"arxiv", "doi", "ArXiv", "DOI"} {
		for _, w := range bookWords {
			assert.Equal(t, PaperLibrarian, Select(w+" "+signal), "%s + %s", w, signal)
		}
	}
}

func TestBookWithoutPaperSignals(t *testing.T) {
	for _, u := range []string{"book", "a BOOK about cats", "my favourite book series", "books for kids"} {
		assert.Equal(t, BookLibrarian, Select(u), u)
	}
}

func TestCatalog(t *testing.T) {
	all := All()
	require.Len(t, all, 3)
	for _, p := range all {
		got, ok := Get(p.ID)
		require.True(t, ok)
		assert.NotEmpty(t, got.Collections)
	}
	_, ok := Get("librarianOfBabel")
	assert.False(t, ok)
}
