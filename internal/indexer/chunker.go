package indexer

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"

	"conductor/internal/logging"
	"conductor/internal/store"
)

// Chunk kinds. Ordinals within a file are stable: the same content always
// chunks the same way.
const (
	ChunkKindFunction = "function"
	ChunkKindType     = "type"
	ChunkKindSection  = "section"
	ChunkKindBlock    = "block"
)

// blockLines is the window for the fixed-line fallback chunker.
const blockLines = 120

// declarationKinds maps tree-sitter node types to chunk kinds, per grammar.
var declarationKinds = map[string]map[string]string{
	"go": {
		"function_declaration": ChunkKindFunction,
		"method_declaration":   ChunkKindFunction,
		"type_declaration":     ChunkKindType,
	},
	"python": {
		"function_definition":  ChunkKindFunction,
		"class_definition":     ChunkKindType,
		"decorated_definition": ChunkKindFunction,
	},
	"javascript": {
		"function_declaration":   ChunkKindFunction,
		"generator_function_declaration": ChunkKindFunction,
		"class_declaration":      ChunkKindType,
		"method_definition":      ChunkKindFunction,
	},
}

func grammarFor(language string) *sitter.Language {
	switch language {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	default:
		return nil
	}
}

// languageForPath maps a file path to the chunking language, "" when only
// the block fallback applies.
func languageForPath(relPath string) string {
	switch strings.ToLower(filepath.Ext(relPath)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx", ".ts", ".tsx":
		return "javascript"
	case ".md", ".markdown":
		return "markdown"
	default:
		return ""
	}
}

// ChunkFile splits content into chunks with stable ordinals starting at 0.
// Code files chunk on top-level declarations via tree-sitter, markdown on
// headings; anything else (including code that fails to parse) falls back to
// fixed-line blocks.
func ChunkFile(ctx context.Context, relPath string, content []byte) ([]*store.Chunk, string) {
	language := languageForPath(relPath)

	var chunks []*store.Chunk
	switch language {
	case "markdown":
		chunks = chunkMarkdown(content)
	case "":
		chunks = chunkBlocks(content)
	default:
		var err error
		chunks, err = chunkCode(ctx, language, content)
		if err != nil {
			logging.Get(logging.CategoryIndexer).Warn("parse failed for %s, block fallback: %v", relPath, err)
			chunks = chunkBlocks(content)
		}
	}

	for i, c := range chunks {
		c.Ordinal = i
		c.TokenEstimate = len(c.Content) / 4
	}
	return chunks, language
}

func chunkCode(ctx context.Context, language string, content []byte) ([]*store.Chunk, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammarFor(language))

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	kinds := declarationKinds[language]
	root := tree.RootNode()

	var chunks []*store.Chunk
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		kind, ok := kinds[node.Type()]
		if !ok {
			continue
		}
		text := node.Content(content)
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, &store.Chunk{
			Kind:      kind,
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
			Content:   text,
		})
	}

	// A file with no recognizable declarations still gets indexed.
	if len(chunks) == 0 {
		return chunkBlocks(content), nil
	}
	return chunks, nil
}

// chunkMarkdown splits on headings; the preamble before the first heading is
// its own section.
func chunkMarkdown(content []byte) []*store.Chunk {
	lines := strings.Split(string(content), "\n")

	var (
		chunks    []*store.Chunk
		start     = 0
		current   []string
	)
	flush := func(end int) {
		text := strings.TrimRight(strings.Join(current, "\n"), "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, &store.Chunk{
				Kind:      ChunkKindSection,
				StartLine: start + 1,
				EndLine:   end,
				Content:   text,
			})
		}
		current = nil
	}

	for i, line := range lines {
		if strings.HasPrefix(line, "#") && len(current) > 0 {
			flush(i)
			start = i
		}
		current = append(current, line)
	}
	flush(len(lines))
	return chunks
}

// chunkBlocks is the fallback: fixed windows of blockLines lines.
func chunkBlocks(content []byte) []*store.Chunk {
	lines := strings.Split(string(content), "\n")

	var chunks []*store.Chunk
	for start := 0; start < len(lines); start += blockLines {
		end := start + blockLines
		if end > len(lines) {
			end = len(lines)
		}
		text := strings.TrimRight(strings.Join(lines[start:end], "\n"), "\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks = append(chunks, &store.Chunk{
			Kind:      ChunkKindBlock,
			StartLine: start + 1,
			EndLine:   end,
			Content:   text,
		})
	}
	return chunks
}
