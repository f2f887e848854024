package github

import (
	"encoding/base64"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v80/github"
)

// treeFile is a blob entry selected for fetching.
type treeFile struct {
	Path string
	SHA  string
	Size int64
}

// selectFiles filters the tree to the blobs the config accepts, in tree
// order, stopping at MaxFiles. It also reports how many blobs were
// rejected by the size cap.
func selectFiles(tree *gh.Tree, cfg *Config) (files []treeFile, oversized int) {
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}

		path := entry.GetPath()
		if !cfg.Filter.Match(path) {
			continue
		}

		size := int64(entry.GetSize())
		if !cfg.Filter.WithinSize(size) {
			oversized++
			continue
		}

		if cfg.MaxFiles > 0 && len(files) >= cfg.MaxFiles {
			break
		}
		files = append(files, treeFile{Path: path, SHA: entry.GetSHA(), Size: size})
	}
	return files, oversized
}

// decodeBlob returns the blob bytes, decoding base64 content.
func decodeBlob(blob *gh.Blob) ([]byte, error) {
	if blob.GetEncoding() == "base64" {
		// GitHub wraps base64 content at 60 columns.
		content := strings.ReplaceAll(blob.GetContent(), "\n", "")
		return base64.StdEncoding.DecodeString(content)
	}
	return []byte(blob.GetContent()), nil
}

// buildSourceURL creates the browsable URL for a file.
func buildSourceURL(owner, repo, ref, path string) string {
	return fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", owner, repo, ref, path)
}

// buildFileURI creates a URI for a file.
func buildFileURI(owner, repo, ref, path string) string {
	return fmt.Sprintf("github://%s/%s/blob/%s/%s", owner, repo, ref, path)
}
