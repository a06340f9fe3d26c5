package engine

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Renderer interpolates {{ ... }} placeholders in block content against the
// run's variables. Placeholder bodies are expr-lang expressions, so plain
// variable lookups, field access and simple arithmetic all work.
//
// Compiled templates are memoized in a bounded LRU keyed by the exact source
// string. The cache is the one structure shared across concurrent runs and is
// safe for concurrent use.
type Renderer struct {
	cache *lru.Cache[string, *compiledTemplate]
}

type compiledTemplate struct {
	segments []segment
}

// segment is either a literal chunk or a compiled placeholder expression.
type segment struct {
	literal string
	program *vm.Program
}

func NewRenderer(cacheSize int) (*Renderer, error) {
	cache, err := lru.New[string, *compiledTemplate](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("error creating template cache: %w", err)
	}
	return &Renderer{cache: cache}, nil
}

// Render compiles src on first use and evaluates every placeholder against
// vars. Unknown variables render as the empty string rather than failing:
// templates are user-authored and a typo must not crash a run.
func (r *Renderer) Render(src string, vars map[string]any) (string, error) {
	if !strings.Contains(src, "{{") {
		return src, nil
	}

	tpl, err := r.compile(src)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, seg := range tpl.segments {
		if seg.program == nil {
			b.WriteString(seg.literal)
			continue
		}
		out, err := expr.Run(seg.program, vars)
		if err != nil {
			return "", newTemplateError(src, err)
		}
		if out != nil {
			fmt.Fprint(&b, out)
		}
	}
	return b.String(), nil
}

func (r *Renderer) compile(src string) (*compiledTemplate, error) {
	if tpl, ok := r.cache.Get(src); ok {
		return tpl, nil
	}

	tpl, err := parseTemplate(src)
	if err != nil {
		return nil, err
	}
	r.cache.Add(src, tpl)
	return tpl, nil
}

func parseTemplate(src string) (*compiledTemplate, error) {
	tpl := &compiledTemplate{}
	rest := src
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			if rest != "" {
				tpl.segments = append(tpl.segments, segment{literal: rest})
			}
			return tpl, nil
		}
		if open > 0 {
			tpl.segments = append(tpl.segments, segment{literal: rest[:open]})
		}

		closeIdx := strings.Index(rest[open:], "}}")
		if closeIdx < 0 {
			return nil, newTemplateError(src, fmt.Errorf("unclosed placeholder at offset %d", open))
		}

		body := strings.TrimSpace(rest[open+2 : open+closeIdx])
		if body == "" {
			return nil, newTemplateError(src, fmt.Errorf("empty placeholder at offset %d", open))
		}

		program, err := expr.Compile(body, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, newTemplateError(src, err)
		}
		tpl.segments = append(tpl.segments, segment{program: program})

		rest = rest[open+closeIdx+2:]
	}
}
