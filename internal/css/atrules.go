package css

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/css/scanner"
)

// AtRuleDeduper drops repeated top-level statement at-rules such as
// @charset, @import, `@layer a, b;` and `@tailwind utilities;`. Block
// at-rules and everything nested inside a rule are passed through untouched.
//
// Running the deduper twice yields the same output as running it once, which
// keeps repeated transforms of the same file stable across rebuilds.
type AtRuleDeduper struct{}

// Name implements Processor.
func (AtRuleDeduper) Name() string { return "dedupe-at-rules" }

// Process implements Processor.
func (AtRuleDeduper) Process(_ context.Context, in Input) (Output, error) {
	out, err := DedupeAtRules(in.Contents)
	if err != nil {
		return Output{}, err
	}
	return Output{Contents: out}, nil
}

// DedupeAtRules removes duplicate top-level statement at-rules from src.
// Two statements are duplicates when their tokens match after comments are
// dropped and whitespace is collapsed.
func DedupeAtRules(src string) (string, error) {
	var (
		out     strings.Builder
		pending []*scanner.Token
		seen    = make(map[string]bool)
		depth   int
		skipWS  bool
	)
	out.Grow(len(src))

	flush := func() {
		for _, tok := range pending {
			out.WriteString(tok.Value)
		}
		pending = pending[:0]
	}

	s := scanner.New(src)
	for {
		tok := s.Next()
		switch tok.Type {
		case scanner.TokenEOF:
			flush()
			return out.String(), nil
		case scanner.TokenError:
			return "", fmt.Errorf("line %d, column %d: unexpected %q", tok.Line, tok.Column, tok.Value)
		}

		if skipWS {
			skipWS = false
			if tok.Type == scanner.TokenS {
				continue
			}
		}

		if len(pending) > 0 {
			pending = append(pending, tok)
			if tok.Type != scanner.TokenChar {
				continue
			}
			switch tok.Value {
			case ";":
				key := statementKey(pending)
				if seen[key] {
					pending = pending[:0]
					skipWS = true
					continue
				}
				seen[key] = true
				flush()
			case "{":
				// A block at-rule; it is never deduplicated.
				depth++
				flush()
			}
			continue
		}

		if depth == 0 && tok.Type == scanner.TokenAtKeyword {
			pending = append(pending, tok)
			continue
		}

		if tok.Type == scanner.TokenChar {
			switch tok.Value {
			case "{":
				depth++
			case "}":
				if depth > 0 {
					depth--
				}
			}
		}
		out.WriteString(tok.Value)
	}
}

func statementKey(tokens []*scanner.Token) string {
	var b strings.Builder
	space := false
	for _, tok := range tokens {
		switch tok.Type {
		case scanner.TokenComment:
			continue
		case scanner.TokenS:
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteString(tok.Value)
	}
	return b.String()
}
