// Package knowledge loads the project FAQ trees and selects the slices relevant to a question.
package knowledge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Tree is one language's decoded FAQ document.
type Tree map[string]any

// Base holds one Tree per supported language. It is read-only after Load.
type Base struct {
	trees map[models.Language]Tree
}

// fileNames maps each language to the FAQ file expected in the knowledge directory.
var fileNames = map[models.Language]string{
	models.LanguageEnglish:  "faq_data_english.json",
	models.LanguageGujarati: "faq_data_gujarati.json",
}

// Load reads every language's FAQ file from dir. A missing or invalid file is logged
// and leaves that language with an empty tree; Load itself never fails.
func Load(dir string) *Base {
	slog.Debug("knowledge.Load: loading FAQ trees", "dir", dir)
	b := &Base{trees: make(map[models.Language]Tree, len(fileNames))}
	for lang, name := range fileNames {
		path := filepath.Join(dir, name)
		tree, err := loadTree(path)
		if err != nil {
			slog.Error("knowledge.Load: failed to load FAQ tree, using empty tree", "language", lang, "path", path, "error", err)
			tree = Tree{}
		}
		b.trees[lang] = tree
		slog.Debug("knowledge.Load: tree loaded", "language", lang, "sections", len(tree))
	}
	return b
}

func loadTree(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tree Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	if tree == nil {
		tree = Tree{}
	}
	return tree, nil
}

// NewBase builds a Base from in-memory trees. Languages without a tree get an empty one.
func NewBase(trees map[models.Language]Tree) *Base {
	b := &Base{trees: make(map[models.Language]Tree, len(fileNames))}
	for lang := range fileNames {
		t := trees[lang]
		if t == nil {
			t = Tree{}
		}
		b.trees[lang] = t
	}
	return b
}

// Tree returns the tree for lang, falling back to the primary language when lang has
// no tree at all. The fallback does not apply to a tree that loaded empty.
func (b *Base) Tree(lang models.Language) Tree {
	if b == nil {
		return Tree{}
	}
	if t, ok := b.trees[lang]; ok {
		return t
	}
	if t, ok := b.trees[models.PrimaryLanguage]; ok {
		return t
	}
	return Tree{}
}

// Sections reports how many top-level sections each language holds.
func (b *Base) Sections() map[models.Language]int {
	out := make(map[models.Language]int, len(b.trees))
	for lang, t := range b.trees {
		out[lang] = len(t)
	}
	return out
}
