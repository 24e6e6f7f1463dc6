package library

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// Seed returns the demo library the UI starts with.
func Seed() (Library, error) {
	return ParseLibrary(seedYAML)
}

// ParseLibrary reads a YAML library snapshot. Missing collections come back empty.
func ParseLibrary(data []byte) (Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return Library{}, fmt.Errorf("parse library: %w", err)
	}
	if lib.Books == nil {
		lib.Books = []Book{}
	}
	if lib.ResearchPapers == nil {
		lib.ResearchPapers = []ResearchPaper{}
	}
	if lib.Nodes == nil {
		lib.Nodes = []FeatureNode{}
	}
	if lib.Edges == nil {
		lib.Edges = []Edge{}
	}
	for i := range lib.Books {
		lib.Books[i].Type = TypeBook
	}
	for i := range lib.ResearchPapers {
		lib.ResearchPapers[i].Type = TypePaper
		if lib.ResearchPapers[i].Authors == nil {
			lib.ResearchPapers[i].Authors = []string{}
		}
	}
	return lib, nil
}
