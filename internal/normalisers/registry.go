package normalisers

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/normalisers/markdown"
	"github.com/custodia-labs/devrag-cli/internal/normalisers/pdf"
	"github.com/custodia-labs/devrag-cli/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// wildcardMIME marks a normaliser that accepts any type.
const wildcardMIME = "*/*"

// Registry dispatches raw documents to the highest priority normaliser
// that accepts their MIME type and source.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry creates a registry with every built-in normaliser.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(pdf.New())
	return r
}

// Register adds a normaliser. Equal priorities keep registration order.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalisers = append(r.normalisers, n)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// Normalise extracts the text of raw with the best matching normaliser.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, fmt.Errorf("normalise: %w: nil document", domain.ErrInvalidInput)
	}
	mimeType := baseMIME(raw.MIMEType)
	if mimeType == "" {
		mimeType = MIMETypeFor(raw.URI)
	}

	n, ok := r.find(mimeType, raw.Source)
	if !ok {
		return nil, fmt.Errorf("%w: no normaliser for %q", domain.ErrUnsupportedType, mimeType)
	}
	return n.Normalise(ctx, raw)
}

func (r *Registry) find(mimeType, source string) (driven.Normaliser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.normalisers {
		if acceptsSource(n, source) && acceptsMIME(n, mimeType) {
			return n, true
		}
	}
	return nil, false
}

// SupportedMIMETypes returns every explicitly supported MIME type, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, n := range r.normalisers {
		for _, m := range n.SupportedMIMETypes() {
			if m == wildcardMIME || seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

func acceptsSource(n driven.Normaliser, source string) bool {
	types := n.SupportedSourceTypes()
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == source {
			return true
		}
	}
	return false
}

func acceptsMIME(n driven.Normaliser, mimeType string) bool {
	for _, m := range n.SupportedMIMETypes() {
		if m == wildcardMIME || m == mimeType {
			return true
		}
	}
	return false
}

// baseMIME strips parameters such as charset.
func baseMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

// MIMETypeFor guesses a MIME type from a file path. Sources use it when
// the transport gives no content type.
func MIMETypeFor(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".rst":
		return "text/x-rst"
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".yaml", ".yml":
		return "text/yaml"
	default:
		return "text/plain"
	}
}
