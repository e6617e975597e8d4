// Package symbols maintains a fast, workspace-wide symbol index built from
// tree-sitter parses. It answers name searches without consulting a language
// analyzer, keyed on file modification times so unchanged files are never
// re-parsed.
package symbols

import (
	"context"
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/teranos/codelens/errors"
)

// Symbol is one top-level declaration in a source file.
type Symbol struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Path string `json:"path"`
	Line int    `json:"line"` // 1-based
}

// Parser turns one file's source into its top-level symbols.
type Parser interface {
	Parse(ctx context.Context, path string, source []byte) ([]Symbol, error)
	Supports(path string) bool
}

// declKinds maps a grammar's top-level declaration node kinds to the symbol
// kind they index as. Nested declarations are deliberately not walked; the
// index answers "where is X declared", not full outlines.
type grammar struct {
	language  *tree_sitter.Language
	declKinds map[string]string
	// wrappers are container kinds whose children are scanned as if they
	// appeared at top level (export statements, decorated definitions).
	wrappers map[string]bool
}

// TreeSitterParser extracts top-level declarations using tree-sitter
// grammars. A fresh tree-sitter parser is created per Parse call, so Parse
// is safe to call from concurrent goroutines.
type TreeSitterParser struct {
	grammars map[string]grammar // by file extension
}

// NewTreeSitterParser registers the Go, TypeScript, Python, and Rust
// grammars.
func NewTreeSitterParser() *TreeSitterParser {
	goGrammar := grammar{
		language: tree_sitter.NewLanguage(tree_sitter_go.Language()),
		declKinds: map[string]string{
			"function_declaration": "function",
			"method_declaration":   "method",
		},
		wrappers: map[string]bool{"type_declaration": true},
	}
	tsGrammar := grammar{
		language: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		declKinds: map[string]string{
			"function_declaration":   "function",
			"class_declaration":      "class",
			"interface_declaration":  "interface",
			"type_alias_declaration": "type",
			"enum_declaration":       "enum",
		},
		wrappers: map[string]bool{"export_statement": true},
	}
	pyGrammar := grammar{
		language: tree_sitter.NewLanguage(tree_sitter_python.Language()),
		declKinds: map[string]string{
			"function_definition": "function",
			"class_definition":    "class",
		},
		wrappers: map[string]bool{"decorated_definition": true},
	}
	rsGrammar := grammar{
		language: tree_sitter.NewLanguage(tree_sitter_rust.Language()),
		declKinds: map[string]string{
			"function_item": "function",
			"struct_item":   "struct",
			"enum_item":     "enum",
			"trait_item":    "trait",
			"mod_item":      "module",
		},
	}

	return &TreeSitterParser{
		grammars: map[string]grammar{
			".go":  goGrammar,
			".ts":  tsGrammar,
			".tsx": tsGrammar,
			".js":  tsGrammar,
			".jsx": tsGrammar,
			".py":  pyGrammar,
			".rs":  rsGrammar,
		},
	}
}

// Supports reports whether a grammar is registered for the file's extension.
func (p *TreeSitterParser) Supports(path string) bool {
	_, ok := p.grammars[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Parse extracts the file's top-level declarations.
func (p *TreeSitterParser) Parse(_ context.Context, path string, source []byte) ([]Symbol, error) {
	g, ok := p.grammars[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, errors.Newf("no grammar registered for %s", path)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(g.language); err != nil {
		return nil, errors.Wrapf(err, "set grammar for %s", path)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, errors.Newf("parse produced no tree for %s", path)
	}
	defer tree.Close()

	var out []Symbol
	root := tree.RootNode()
	for i := uint(0); i < root.ChildCount(); i++ {
		p.collect(root.Child(i), g, source, path, &out)
	}
	return out, nil
}

func (p *TreeSitterParser) collect(node *tree_sitter.Node, g grammar, source []byte, path string, out *[]Symbol) {
	if node == nil {
		return
	}
	kind := node.Kind()

	if g.wrappers[kind] {
		for i := uint(0); i < node.ChildCount(); i++ {
			p.collect(node.Child(i), g, source, path, out)
		}
		return
	}

	// Go type declarations name their specs, not the declaration node.
	if kind == "type_spec" {
		if sym := namedSymbol(node, "type", source, path); sym != nil {
			*out = append(*out, *sym)
		}
		return
	}

	symbolKind, ok := g.declKinds[kind]
	if !ok {
		return
	}
	if sym := namedSymbol(node, symbolKind, source, path); sym != nil {
		*out = append(*out, *sym)
	}
}

func namedSymbol(node *tree_sitter.Node, kind string, source []byte, path string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	return &Symbol{
		Name: nameNode.Utf8Text(source),
		Kind: kind,
		Path: path,
		Line: int(node.StartPosition().Row) + 1,
	}
}
