package classify

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Taxonomy is the ordered catalyst category list with precompiled phrase
// patterns. Category order is significant: it fixes tie-breaks and the
// first-match-wins scan.
type Taxonomy struct {
	Categories []Category
}

// Category is one catalyst class with its ordered phrase patterns.
type Category struct {
	Name     string
	patterns []*regexp.Regexp
}

type taxonomyFile struct {
	Categories []struct {
		Name    string   `yaml:"name"`
		Phrases []string `yaml:"phrases"`
	} `yaml:"categories"`
}

// LoadTaxonomy reads and compiles the category taxonomy. Phrases may be
// plain text or regex sub-patterns; each is compiled case-insensitive with
// word boundaries.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy: %w", err)
	}

	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing taxonomy %s: %w", path, err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy %s defines no categories", path)
	}

	taxonomy := &Taxonomy{Categories: make([]Category, 0, len(file.Categories))}
	for _, entry := range file.Categories {
		if entry.Name == "" || len(entry.Phrases) == 0 {
			return nil, fmt.Errorf("taxonomy %s: category %q needs a name and at least one phrase", path, entry.Name)
		}
		patterns := make([]*regexp.Regexp, 0, len(entry.Phrases))
		for _, phrase := range entry.Phrases {
			compiled, err := regexp.Compile(`(?i)\b(?:` + phrase + `)\b`)
			if err != nil {
				return nil, fmt.Errorf("taxonomy %s: category %q phrase %q: %w", path, entry.Name, phrase, err)
			}
			patterns = append(patterns, compiled)
		}
		taxonomy.Categories = append(taxonomy.Categories, Category{Name: entry.Name, patterns: patterns})
	}
	return taxonomy, nil
}

// Names returns the category names in taxonomy order.
func (t *Taxonomy) Names() []string {
	names := make([]string, len(t.Categories))
	for i, category := range t.Categories {
		names[i] = category.Name
	}
	return names
}
