// Package highlight renders source code to a standalone, syntax-highlighted
// HTML document.
//
// The snippet service treats the Highlighter as a pure function: the same
// (code, language, style, options) always yields byte-identical output, and
// nothing here touches storage. That keeps the render stage testable on its
// own and lets the service run it before every write.
package highlight

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"sort"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

var (
	ErrUnknownLanguage = errors.New("highlight: unknown language")
	ErrUnknownStyle    = errors.New("highlight: unknown style")
)

// Options are the display options that change the rendered document.
type Options struct {
	// LineNumbers adds a line-number gutter laid out as a table.
	LineNumbers bool
	// Title, when non-empty, becomes the document <title> and a heading.
	Title string
}

// Highlighter renders code to HTML.
type Highlighter interface {
	Highlight(code, language, style string, opts Options) (string, error)
}

// Chroma is the production Highlighter, backed by github.com/alecthomas/chroma.
// It is stateless and safe for concurrent use.
type Chroma struct{}

// NewChroma returns a chroma-backed Highlighter.
func NewChroma() *Chroma {
	return &Chroma{}
}

var _ Highlighter = (*Chroma)(nil)

// Highlight resolves the lexer and style by name, tokenises the code and
// writes a full HTML document with the style sheet inlined.
func (c *Chroma) Highlight(code, language, style string, opts Options) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, language)
	}
	theme, ok := styles.Registry[style]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}

	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("highlight: tokenising %s: %w", language, err)
	}

	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.WithLineNumbers(opts.LineNumbers),
		chromahtml.LineNumbersInTable(true),
	)

	var css, body bytes.Buffer
	if err := formatter.WriteCSS(&css, theme); err != nil {
		return "", fmt.Errorf("highlight: writing css: %w", err)
	}
	if err := formatter.Format(&body, theme, iterator); err != nil {
		return "", fmt.Errorf("highlight: formatting: %w", err)
	}

	return document(opts.Title, css.String(), body.String()), nil
}

// document wraps the highlighted fragment in a complete HTML page.
func document(title, css, body string) string {
	var b bytes.Buffer
	escaped := html.EscapeString(title)

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("<title>")
	b.WriteString(escaped)
	b.WriteString("</title>\n")
	b.WriteString("<meta http-equiv=\"content-type\" content=\"text/html; charset=utf-8\">\n")
	b.WriteString("<style type=\"text/css\">\n")
	b.WriteString(css)
	b.WriteString("</style>\n</head>\n<body>\n")
	if title != "" {
		b.WriteString("<h2>")
		b.WriteString(escaped)
		b.WriteString("</h2>\n")
	}
	b.WriteString(body)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

// Choice is one selectable value with a display label.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var (
	languagesOnce = sync.OnceValue(loadLanguages)
	stylesOnce    = sync.OnceValue(loadStyles)
)

// Languages lists the accepted language identifiers, sorted by value. Each
// lexer contributes its primary alias; lexers without aliases are skipped.
func Languages() []Choice {
	return languagesOnce().list
}

// Styles lists the accepted style names, sorted.
func Styles() []Choice {
	return stylesOnce().list
}

// ValidLanguage reports whether name is one of Languages().
func ValidLanguage(name string) bool {
	_, ok := languagesOnce().set[name]
	return ok
}

// ValidStyle reports whether name is one of Styles().
func ValidStyle(name string) bool {
	_, ok := stylesOnce().set[name]
	return ok
}

type choiceSet struct {
	list []Choice
	set  map[string]struct{}
}

func loadLanguages() choiceSet {
	cs := choiceSet{set: make(map[string]struct{})}
	for _, lexer := range lexers.GlobalLexerRegistry.Lexers {
		cfg := lexer.Config()
		if len(cfg.Aliases) == 0 {
			continue
		}
		alias := cfg.Aliases[0]
		if _, dup := cs.set[alias]; dup {
			continue
		}
		cs.set[alias] = struct{}{}
		cs.list = append(cs.list, Choice{Value: alias, Label: cfg.Name})
	}
	sort.Slice(cs.list, func(i, j int) bool { return cs.list[i].Value < cs.list[j].Value })
	return cs
}

func loadStyles() choiceSet {
	cs := choiceSet{set: make(map[string]struct{})}
	for _, name := range styles.Names() {
		if _, dup := cs.set[name]; dup {
			continue
		}
		cs.set[name] = struct{}{}
		cs.list = append(cs.list, Choice{Value: name, Label: name})
	}
	sort.Slice(cs.list, func(i, j int) bool { return cs.list[i].Value < cs.list[j].Value })
	return cs
}
