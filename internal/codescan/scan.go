// Package codescan is a lightweight structural scanner for source code.
//
// It works line by line with per-language patterns and reports the
// declarations it recognises (functions, classes, imports) together with
// the byte offset of the line the declaration starts on. It does not parse:
// false positives inside comments or strings are accepted in exchange for
// covering many languages without a grammar per language.
package codescan

import (
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// rule matches one declaration form. The first capture group is the name.
type rule struct {
	kind    domain.SymbolKind
	pattern *regexp.Regexp
}

// Scanner scans source text of one language.
type Scanner struct {
	language   string
	rules      []rule
	decorators *regexp.Regexp

	// importBlock handles Go style grouped imports.
	importBlockStart *regexp.Regexp
	importBlockLine  *regexp.Regexp
}

// Language returns the language this scanner handles.
func (s *Scanner) Language() string {
	return s.language
}

var scanners = map[string]*Scanner{}

func register(s *Scanner, aliases ...string) {
	scanners[s.language] = s
	for _, a := range aliases {
		scanners[a] = s
	}
}

func r(kind domain.SymbolKind, expr string) rule {
	return rule{kind: kind, pattern: regexp.MustCompile(expr)}
}

func init() {
	register(&Scanner{
		language: "go",
		rules: []rule{
			r(domain.SymbolFunction, `^func\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)`),
			r(domain.SymbolClass, `^type\s+([A-Za-z_]\w*)\s+(?:struct|interface)\b`),
			r(domain.SymbolImport, `^import\s+(?:[\w.]+\s+)?"([^"]+)"`),
		},
		importBlockStart: regexp.MustCompile(`^import\s*\($`),
		importBlockLine:  regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"`),
	})

	register(&Scanner{
		language: "python",
		rules: []rule{
			r(domain.SymbolFunction, `^\s*(?:async\s+)?def\s+([A-Za-z_]\w*)`),
			r(domain.SymbolClass, `^\s*class\s+([A-Za-z_]\w*)`),
			r(domain.SymbolImport, `^\s*from\s+([\w.]+)\s+import\b`),
			r(domain.SymbolImport, `^\s*import\s+([\w.]+)`),
		},
		decorators: regexp.MustCompile(`^\s*@`),
	})

	js := &Scanner{
		language: "javascript",
		rules: []rule{
			r(domain.SymbolFunction, `^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\*?\s+([A-Za-z_$][\w$]*)`),
			r(domain.SymbolFunction, `^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*(?::[^=]+)?=>`),
			r(domain.SymbolFunction, `^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?function\b`),
			r(domain.SymbolClass, `^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`),
			r(domain.SymbolClass, `^\s*(?:export\s+)?interface\s+([A-Za-z_$][\w$]*)`),
			r(domain.SymbolImport, `^\s*import\s+.*?\bfrom\s+['"]([^'"]+)['"]`),
			r(domain.SymbolImport, `^\s*import\s+['"]([^'"]+)['"]`),
			r(domain.SymbolImport, `\brequire\(\s*['"]([^'"]+)['"]\s*\)`),
		},
		decorators: regexp.MustCompile(`^\s*@\w`),
	}
	register(js)
	register(&Scanner{language: "typescript", rules: js.rules, decorators: js.decorators})

	register(&Scanner{
		language: "java",
		rules: []rule{
			r(domain.SymbolClass, `^\s*(?:(?:public|private|protected|internal|static|final|abstract|sealed|partial|data|open)\s+)*(?:class|interface|enum|record|object)\s+([A-Za-z_]\w*)`),
			r(domain.SymbolFunction, `^\s*(?:(?:public|private|protected|internal|static|final|abstract|override|virtual|async|synchronized)\s+)+[\w<>\[\],.?\s]*?\b([A-Za-z_]\w*)\s*\([^;]*$`),
			r(domain.SymbolFunction, `^\s*(?:(?:private|public|internal|override|suspend)\s+)*fun\s+(?:<[^>]*>\s*)?([A-Za-z_]\w*)`),
			r(domain.SymbolFunction, `^\s*def\s+([A-Za-z_]\w*)`),
			r(domain.SymbolImport, `^\s*import\s+(?:static\s+)?([\w.]+)`),
			r(domain.SymbolImport, `^\s*using\s+([\w.]+)\s*;`),
		},
		decorators: regexp.MustCompile(`^\s*@\w|^\s*\[\w`),
	}, "csharp", "kotlin", "scala")

	register(&Scanner{
		language: "rust",
		rules: []rule{
			r(domain.SymbolFunction, `^\s*(?:pub(?:\([^)]*\))?\s+)?(?:const\s+)?(?:async\s+)?(?:unsafe\s+)?fn\s+([A-Za-z_]\w*)`),
			r(domain.SymbolClass, `^\s*(?:pub(?:\([^)]*\))?\s+)?(?:struct|enum|trait|union)\s+([A-Za-z_]\w*)`),
			r(domain.SymbolClass, `^\s*impl(?:<[^>]*>)?\s+(?:[\w:]+\s+for\s+)?([A-Za-z_]\w*)`),
			r(domain.SymbolImport, `^\s*(?:pub\s+)?use\s+([\w:]+)`),
		},
		decorators: regexp.MustCompile(`^\s*#\[`),
	})

	register(&Scanner{
		language: "ruby",
		rules: []rule{
			r(domain.SymbolFunction, `^\s*def\s+(?:self\.)?([A-Za-z_]\w*[?!=]?)`),
			r(domain.SymbolClass, `^\s*(?:class|module)\s+([A-Z]\w*(?:::\w+)*)`),
			r(domain.SymbolImport, `^\s*require(?:_relative)?\s+['"]([^'"]+)['"]`),
		},
	})

	register(&Scanner{
		language: "php",
		rules: []rule{
			r(domain.SymbolFunction, `^\s*(?:(?:public|private|protected|static|abstract|final)\s+)*function\s+&?([A-Za-z_]\w*)`),
			r(domain.SymbolClass, `^\s*(?:(?:abstract|final)\s+)?(?:class|interface|trait|enum)\s+([A-Za-z_]\w*)`),
			r(domain.SymbolImport, `^\s*use\s+([\w\\]+)`),
			r(domain.SymbolImport, `^\s*(?:require|include)(?:_once)?\s*\(?\s*['"]([^'"]+)['"]`),
		},
	})

	register(&Scanner{
		language: "c",
		rules: []rule{
			r(domain.SymbolClass, `^\s*(?:typedef\s+)?(?:class|struct|union|enum)\s+([A-Za-z_]\w*)\s*(?:[:{]|$)`),
			r(domain.SymbolFunction, `^(?:[A-Za-z_][\w:<>,]*[\s*&]+)+([A-Za-z_][\w:~]*)\s*\([^;]*\)\s*(?:const\s*)?\{?\s*$`),
			r(domain.SymbolImport, `^\s*#\s*include\s*[<"]([^>"]+)[>"]`),
		},
	}, "cpp")
}

// For returns the scanner for a language tag as produced by
// domain.InferLanguage.
func For(language string) (*Scanner, bool) {
	s, ok := scanners[language]
	return s, ok
}

// Supports reports whether a scanner exists for the language.
func Supports(language string) bool {
	_, ok := scanners[language]
	return ok
}

var controlWords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"catch": true, "else": true, "sizeof": true, "new": true, "delete": true,
}

// Scan returns the declarations in text ordered by offset.
// For languages with decorators or attributes the offset points at the
// first decorator line directly above the declaration.
func (s *Scanner) Scan(text string) []domain.Symbol {
	var (
		symbols        []domain.Symbol
		inImportBlock  bool
		decoratorStart = -1
	)

	offset := 0
	for len(text[offset:]) > 0 || offset == 0 {
		end := strings.IndexByte(text[offset:], '\n')
		line := text[offset:]
		next := len(text)
		if end >= 0 {
			line = text[offset : offset+end]
			next = offset + end + 1
		}
		line = strings.TrimSuffix(line, "\r")

		switch {
		case inImportBlock:
			if strings.HasPrefix(strings.TrimSpace(line), ")") {
				inImportBlock = false
			} else if m := s.importBlockLine.FindStringSubmatch(line); m != nil {
				symbols = append(symbols, domain.Symbol{Name: m[1], Kind: domain.SymbolImport, Offset: offset})
			}
		case s.importBlockStart != nil && s.importBlockStart.MatchString(line):
			inImportBlock = true
		case s.decorators != nil && s.decorators.MatchString(line):
			if decoratorStart < 0 {
				decoratorStart = offset
			}
		default:
			if sym, ok := s.match(line); ok {
				sym.Offset = offset
				if decoratorStart >= 0 && sym.Kind != domain.SymbolImport {
					sym.Offset = decoratorStart
				}
				symbols = append(symbols, sym)
			}
			if strings.TrimSpace(line) != "" {
				decoratorStart = -1
			}
		}

		if end < 0 {
			break
		}
		offset = next
	}
	return symbols
}

func (s *Scanner) match(line string) (domain.Symbol, bool) {
	for _, rl := range s.rules {
		m := rl.pattern.FindStringSubmatch(line)
		if m == nil || m[1] == "" || controlWords[m[1]] {
			continue
		}
		return domain.Symbol{Name: m[1], Kind: rl.kind}, true
	}
	return domain.Symbol{}, false
}

// Boundaries returns the sorted distinct offsets at which a function or
// class declaration begins. Imports are not boundaries.
func Boundaries(symbols []domain.Symbol) []int {
	seen := make(map[int]bool, len(symbols))
	out := make([]int, 0, len(symbols))
	for _, sym := range symbols {
		if sym.Kind == domain.SymbolImport || seen[sym.Offset] {
			continue
		}
		seen[sym.Offset] = true
		out = append(out, sym.Offset)
	}
	sort.Ints(out)
	return out
}

// Within returns the names of symbols whose offset lies in span, grouped
// by kind, each list deduplicated and capped at limit (no cap if limit <= 0).
func Within(symbols []domain.Symbol, span domain.Span, limit int) map[domain.SymbolKind][]string {
	out := make(map[domain.SymbolKind][]string)
	seen := make(map[domain.Symbol]bool)
	for _, sym := range symbols {
		if sym.Offset < span.Start || sym.Offset >= span.End {
			continue
		}
		key := domain.Symbol{Name: sym.Name, Kind: sym.Kind}
		if seen[key] {
			continue
		}
		if limit > 0 && len(out[sym.Kind]) >= limit {
			continue
		}
		seen[key] = true
		out[sym.Kind] = append(out[sym.Kind], sym.Name)
	}
	return out
}
