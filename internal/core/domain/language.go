package domain

import (
	"path"
	"sort"
	"strings"
)

// language describes how one file extension is classified.
type language struct {
	name        string
	contentType ContentType
}

var extensionLanguages = map[string]language{
	".py":         {"python", ContentTypeCode},
	".js":         {"javascript", ContentTypeCode},
	".jsx":        {"javascript", ContentTypeCode},
	".ts":         {"typescript", ContentTypeCode},
	".tsx":        {"typescript", ContentTypeCode},
	".java":       {"java", ContentTypeCode},
	".c":          {"c", ContentTypeCode},
	".h":          {"c", ContentTypeCode},
	".cpp":        {"cpp", ContentTypeCode},
	".cs":         {"csharp", ContentTypeCode},
	".php":        {"php", ContentTypeCode},
	".rb":         {"ruby", ContentTypeCode},
	".go":         {"go", ContentTypeCode},
	".rs":         {"rust", ContentTypeCode},
	".swift":      {"swift", ContentTypeCode},
	".kt":         {"kotlin", ContentTypeCode},
	".scala":      {"scala", ContentTypeCode},
	".sql":        {"sql", ContentTypeCode},
	".sh":         {"shell", ContentTypeCode},
	".bat":        {"batch", ContentTypeCode},
	".dockerfile": {"dockerfile", ContentTypeConfig},
	".md":         {"markdown", ContentTypeMarkdown},
	".rst":        {"restructuredtext", ContentTypeMarkdown},
	".txt":        {"text", ContentTypeOther},
	".pdf":        {"pdf", ContentTypeOther},
	".json":       {"json", ContentTypeConfig},
	".yaml":       {"yaml", ContentTypeConfig},
	".yml":        {"yaml", ContentTypeConfig},
	".xml":        {"xml", ContentTypeConfig},
	".toml":       {"toml", ContentTypeConfig},
	".gitignore":  {"gitignore", ContentTypeConfig},
	".env":        {"dotenv", ContentTypeConfig},
}

// lookupLanguage handles extensionless names such as "Dockerfile" and
// dot files such as ".gitignore" whose whole name is the extension.
func lookupLanguage(p string) (language, bool) {
	base := strings.ToLower(path.Base(p))
	if base == "dockerfile" {
		return extensionLanguages[".dockerfile"], true
	}
	ext := strings.ToLower(path.Ext(base))
	if ext == "" {
		return language{}, false
	}
	l, ok := extensionLanguages[ext]
	return l, ok
}

// InferLanguage returns the language tag for a file path, or "unknown".
func InferLanguage(p string) string {
	if l, ok := lookupLanguage(p); ok {
		return l.name
	}
	return "unknown"
}

// InferContentType returns the content type for a file path.
func InferContentType(p string) ContentType {
	if l, ok := lookupLanguage(p); ok {
		return l.contentType
	}
	return ContentTypeOther
}

// IsSupportedPath reports whether files at p are ingested.
func IsSupportedPath(p string) bool {
	_, ok := lookupLanguage(p)
	return ok
}

// SupportedExtensions returns the ingestible extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionLanguages))
	for ext := range extensionLanguages {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
