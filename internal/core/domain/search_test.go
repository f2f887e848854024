package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadataFilter_Matches(t *testing.T) {
	meta := ChunkMetadata{
		Repository:  "psf/requests",
		Language:    "python",
		FileType:    "py",
		ContentType: ContentTypeCode,
	}

	tests := []struct {
		name   string
		filter MetadataFilter
		want   bool
	}{
		{"empty matches all", MetadataFilter{}, true},
		{"language match", MetadataFilter{Language: "python"}, true},
		{"language mismatch", MetadataFilter{Language: "go"}, false},
		{"repo and type", MetadataFilter{Repository: "psf/requests", FileType: "py"}, true},
		{"content type mismatch", MetadataFilter{ContentType: ContentTypeMarkdown}, false},
		{"case sensitive", MetadataFilter{Language: "Python"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(meta))
		})
	}
}

func TestMetadataFilter_IsEmpty(t *testing.T) {
	assert.True(t, MetadataFilter{}.IsEmpty())
	assert.False(t, MetadataFilter{Repository: "a/b"}.IsEmpty())
}
