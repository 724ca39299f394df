package services

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"farm-advisor/internal/repository"
)

//go:embed knowledge/articles.yaml
var defaultArticles []byte

// Article is a knowledge hub entry
type Article struct {
	Slug     string   `yaml:"slug" json:"slug"`
	Title    string   `yaml:"title" json:"title"`
	Category string   `yaml:"category" json:"category"`
	Summary  string   `yaml:"summary" json:"summary"`
	Tags     []string `yaml:"tags" json:"tags"`
	Body     string   `yaml:"body" json:"body,omitempty"`
}

// KnowledgeService serves the read-only knowledge hub
type KnowledgeService struct {
	articles []Article
	bySlug   map[string]int
}

// NewKnowledgeService loads the articles bundled with the binary
func NewKnowledgeService() (*KnowledgeService, error) {
	return NewKnowledgeServiceFromYAML(defaultArticles)
}

// NewKnowledgeServiceFromYAML parses a YAML list of articles. Slugs must
// be present and unique.
func NewKnowledgeServiceFromYAML(data []byte) (*KnowledgeService, error) {
	var articles []Article
	if err := yaml.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge articles: %w", err)
	}

	bySlug := make(map[string]int, len(articles))
	for i := range articles {
		a := &articles[i]
		a.Category = strings.ToLower(strings.TrimSpace(a.Category))
		if a.Slug == "" || a.Title == "" {
			return nil, fmt.Errorf("knowledge article %d: slug and title are required", i)
		}
		if _, dup := bySlug[a.Slug]; dup {
			return nil, fmt.Errorf("knowledge article %q: duplicate slug", a.Slug)
		}
		bySlug[a.Slug] = i
	}

	return &KnowledgeService{articles: articles, bySlug: bySlug}, nil
}

// List returns article summaries, without bodies, optionally filtered by
// category. Results keep file order.
func (s *KnowledgeService) List(category string) []Article {
	category = strings.ToLower(strings.TrimSpace(category))

	out := make([]Article, 0, len(s.articles))
	for _, a := range s.articles {
		if category != "" && a.Category != category {
			continue
		}
		a.Body = ""
		a.Tags = append([]string(nil), a.Tags...)
		out = append(out, a)
	}
	return out
}

// Categories returns the distinct article categories in ascending order
func (s *KnowledgeService) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range s.articles {
		if !seen[a.Category] {
			seen[a.Category] = true
			out = append(out, a.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Get returns a full article by slug
func (s *KnowledgeService) Get(slug string) (*Article, error) {
	i, ok := s.bySlug[slug]
	if !ok {
		return nil, &repository.NotFoundError{Resource: "article", ID: slug}
	}

	a := s.articles[i]
	a.Tags = append([]string(nil), a.Tags...)
	return &a, nil
}
