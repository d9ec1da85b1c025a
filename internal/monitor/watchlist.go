package monitor

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
)

// Item is one watched product page.
type Item struct {
	URL   string `yaml:"url"`
	Label string `yaml:"label,omitempty"`
}

type watchlistFile struct {
	Items []Item `yaml:"items"`
}

// LoadWatchlist reads the watched URLs. Files ending in .yaml or .yml hold
// an items list; anything else is one URL per line, with blank lines and
// lines starting with # skipped.
func LoadWatchlist(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.New(failure.CodePersistence, "monitor.watchlist", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return parseLines(data), nil
	}
}

func parseYAML(data []byte) ([]Item, error) {
	var wf watchlistFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, failure.New(failure.CodeValidation, "monitor.watchlist", fmt.Errorf("parse yaml: %w", err))
	}
	items := wf.Items[:0]
	for _, it := range wf.Items {
		it.URL = strings.TrimSpace(it.URL)
		if it.URL != "" {
			items = append(items, it)
		}
	}
	return items, nil
}

func parseLines(data []byte) []Item {
	var items []Item
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, Item{URL: line})
	}
	return items
}
