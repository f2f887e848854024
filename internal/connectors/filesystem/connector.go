package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/devrag-cli/internal/connectors/pathfilter"
	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/logger"
	"github.com/custodia-labs/devrag-cli/internal/normalisers"
)

// Ensure Connector implements the interface.
var _ driven.WatchableSource = (*Connector)(nil)

const (
	sourceType  = "filesystem"
	eventBuffer = 16
)

// Connector reads documents from a local directory tree.
type Connector struct {
	rootPath   string
	repository string
	filter     pathfilter.Filter
	maxFiles   int

	mu     sync.Mutex
	closed bool
}

// Option configures a Connector.
type Option func(*Connector)

// WithRepository sets the repository half of document keys.
// It defaults to the name of the root directory.
func WithRepository(name string) Option {
	return func(c *Connector) {
		c.repository = name
	}
}

// WithFilter sets which paths are ingested.
func WithFilter(f pathfilter.Filter) Option {
	return func(c *Connector) {
		c.filter = f
	}
}

// WithMaxFiles stops a fetch after n files. Zero disables the cap.
func WithMaxFiles(n int) Option {
	return func(c *Connector) {
		if n >= 0 {
			c.maxFiles = n
		}
	}
}

// New creates a filesystem connector rooted at rootPath. The root may be
// a single file.
func New(rootPath string, opts ...Option) *Connector {
	c := &Connector{
		rootPath: rootPath,
		filter:   pathfilter.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return sourceType
}

// Repository returns the repository name used in document keys.
func (c *Connector) Repository() string {
	if c.repository != "" {
		return c.repository
	}
	abs, err := filepath.Abs(c.base())
	if err != nil {
		return filepath.Base(c.base())
	}
	return filepath.Base(abs)
}

// Validate checks that the root exists and the filter is well formed.
func (c *Connector) Validate(_ context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if _, err := os.Stat(c.rootPath); err != nil {
		return &domain.ConfigurationError{Op: "filesystem source", Err: fmt.Errorf("root path error: %w", err)}
	}
	return c.filter.Validate()
}

// Fetch walks the root and streams every selected file.
// Unreadable files are reported on the error channel and skipped.
func (c *Connector) Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument, eventBuffer)
	errs := make(chan error, eventBuffer)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := c.checkOpen(); err != nil {
			errs <- err
			return
		}
		if err := c.walk(ctx, docs, errs); err != nil && ctx.Err() == nil {
			sendErr(ctx, errs, err)
		}
	}()

	return docs, errs
}

func (c *Connector) walk(ctx context.Context, docs chan<- domain.RawDocument, errs chan<- error) error {
	base := c.base()
	count := 0

	err := filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == c.rootPath {
				return fmt.Errorf("root path error: %w", err)
			}
			if !sendErr(ctx, errs, fmt.Errorf("walk %s: %w", path, err)) {
				return ctx.Err()
			}
			return nil
		}

		rel, ok := c.relPath(base, path)
		if d.IsDir() {
			if ok && !c.filter.IncludeHidden && pathfilter.IsHidden(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ok || !c.filter.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !c.filter.WithinSize(info.Size()) {
			logger.Debug("Skipping %s: %d bytes", rel, info.Size())
			return nil
		}
		if c.maxFiles > 0 && count >= c.maxFiles {
			return filepath.SkipAll
		}

		doc, err := c.readDocument(path, rel)
		if err != nil {
			if !sendErr(ctx, errs, err) {
				return ctx.Err()
			}
			return nil
		}

		select {
		case docs <- doc:
			count++
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("Walked %s: %d files", c.rootPath, count)
	return nil
}

// Watch streams changes below the root until ctx is cancelled.
// New directories are watched as they appear.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	info, err := os.Stat(c.rootPath)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if info.IsDir() {
		err = c.addTree(watcher, c.rootPath)
	} else {
		err = watcher.Add(c.rootPath)
	}
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", c.rootPath, err)
	}

	changes := make(chan domain.RawDocumentChange, eventBuffer)

	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
						if err := c.addTree(watcher, event.Name); err != nil {
							logger.Warn("Cannot watch %s: %v", event.Name, err)
						}
						continue
					}
				}
				change, ok := c.handleFsEvent(event)
				if !ok {
					continue
				}
				select {
				case changes <- change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Watcher error: %v", err)
			}
		}
	}()

	return changes, nil
}

// handleFsEvent converts a filesystem event into a document change.
// It reports false for events that do not concern an ingestible file.
func (c *Connector) handleFsEvent(event fsnotify.Event) (domain.RawDocumentChange, bool) {
	rel, ok := c.relPath(c.base(), event.Name)
	if !ok || !c.filter.Match(rel) {
		return domain.RawDocumentChange{}, false
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		return domain.RawDocumentChange{
			Type: domain.ChangeDeleted,
			Document: domain.RawDocument{
				Source:   sourceType,
				URI:      fileURI(event.Name),
				Metadata: c.metadata(event.Name, rel),
			},
		}, true

	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() || !c.filter.WithinSize(info.Size()) {
			return domain.RawDocumentChange{}, false
		}
		doc, err := c.readDocument(event.Name, rel)
		if err != nil {
			logger.Warn("%v", err)
			return domain.RawDocumentChange{}, false
		}
		changeType := domain.ChangeUpdated
		if event.Has(fsnotify.Create) {
			changeType = domain.ChangeCreated
		}
		return domain.RawDocumentChange{Type: changeType, Document: doc}, true

	default:
		return domain.RawDocumentChange{}, false
	}
}

// Close releases resources.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Connector) addTree(watcher *fsnotify.Watcher, root string) error {
	base := c.base()
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := c.relPath(base, path); ok && !c.filter.IncludeHidden && pathfilter.IsHidden(rel) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func (c *Connector) readDocument(path, rel string) (domain.RawDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("read %s: %w", rel, err)
	}
	return domain.RawDocument{
		Source:   sourceType,
		URI:      fileURI(path),
		MIMEType: normalisers.MIMETypeFor(rel),
		Content:  content,
		Metadata: c.metadata(path, rel),
	}, nil
}

func (c *Connector) metadata(path, rel string) map[string]any {
	return map[string]any{
		domain.MetaRepository: c.Repository(),
		domain.MetaPath:       rel,
		domain.MetaSourceURL:  fileURI(path),
	}
}

// base is the directory paths are made relative to.
func (c *Connector) base() string {
	if info, err := os.Stat(c.rootPath); err == nil && !info.IsDir() {
		return filepath.Dir(c.rootPath)
	}
	return c.rootPath
}

// relPath returns the slash-separated path of p below base. It reports
// false for the base itself and for paths outside it.
func (c *Connector) relPath(base, p string) (string, bool) {
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (c *Connector) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectorClosed
	}
	return nil
}

func fileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}

func sendErr(ctx context.Context, errs chan<- error, err error) bool {
	select {
	case errs <- err:
		return true
	case <-ctx.Done():
		return false
	}
}
