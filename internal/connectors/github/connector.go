package github

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/logger"
	"github.com/custodia-labs/devrag-cli/internal/normalisers"
)

// Ensure Connector implements the interface.
var _ driven.DocumentSource = (*Connector)(nil)

const fetchBuffer = 16

// Connector fetches documents from one GitHub repository.
type Connector struct {
	config *Config
	client *Client
	mu     sync.Mutex
	closed bool
}

// New creates a new GitHub connector.
func New(cfg *Config, client *Client) *Connector {
	return &Connector{
		config: cfg,
		client: client,
	}
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return serviceName
}

// Config returns the connector configuration.
func (c *Connector) Config() *Config {
	return c.config
}

// Validate checks the configuration and that the repository is reachable.
func (c *Connector) Validate(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.config.Validate(); err != nil {
		return err
	}

	if _, err := c.client.GetRepository(ctx, c.config.Owner, c.config.Repo); err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("%w: %s: %w", ErrRepoNotFound, c.config.FullName(), err)
		}
		return fmt.Errorf("validate %s: %w", c.config.FullName(), err)
	}
	return nil
}

// Fetch streams every selected file of the repository tree.
// A failed blob is reported on the error channel and the stream continues.
// Failures that affect every request (credentials, quota, cancellation)
// end the stream.
func (c *Connector) Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument, fetchBuffer)
	errs := make(chan error, fetchBuffer)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := c.checkOpen(); err != nil {
			errs <- err
			return
		}
		if err := c.fetch(ctx, docs, errs); err != nil && ctx.Err() == nil {
			sendErr(ctx, errs, err)
		}
	}()

	return docs, errs
}

func (c *Connector) fetch(ctx context.Context, docs chan<- domain.RawDocument, errs chan<- error) error {
	owner, name := c.config.Owner, c.config.Repo

	ref := c.config.Ref
	if ref == "" {
		repo, err := c.client.GetRepository(ctx, owner, name)
		if err != nil {
			return fmt.Errorf("resolve default branch: %w", err)
		}
		ref = repo.GetDefaultBranch()
	}

	tree, err := c.client.GetTree(ctx, owner, name, ref)
	if err != nil {
		return fmt.Errorf("list %s@%s: %w", c.config.FullName(), ref, err)
	}
	if tree.GetTruncated() {
		logger.Warn("Tree of %s@%s is truncated; some files will be missing", c.config.FullName(), ref)
	}

	files, oversized := selectFiles(tree, c.config)
	logger.Info("Fetching %d files from %s@%s (%d over size limit)", len(files), c.config.FullName(), ref, oversized)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		blob, err := c.client.GetBlob(ctx, owner, name, f.SHA)
		if err != nil {
			if isFatal(err) {
				return err
			}
			if !sendErr(ctx, errs, fmt.Errorf("fetch %s: %w", f.Path, err)) {
				return ctx.Err()
			}
			continue
		}

		content, err := decodeBlob(blob)
		if err != nil {
			dataErr := &domain.DataError{Document: c.config.FullName() + ":" + f.Path, Err: err}
			if !sendErr(ctx, errs, dataErr) {
				return ctx.Err()
			}
			continue
		}

		doc := domain.RawDocument{
			Source:   serviceName,
			URI:      buildFileURI(owner, name, ref, f.Path),
			MIMEType: normalisers.MIMETypeFor(f.Path),
			Content:  content,
			Metadata: map[string]any{
				domain.MetaRepository: c.config.FullName(),
				domain.MetaPath:       f.Path,
				domain.MetaSourceURL:  buildSourceURL(owner, name, ref, f.Path),
				domain.MetaRef:        ref,
				domain.MetaSHA:        f.SHA,
			},
		}

		select {
		case docs <- doc:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Close releases resources.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Connector) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectorClosed
	}
	return nil
}

// isFatal reports errors that every further request would repeat.
func isFatal(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func sendErr(ctx context.Context, errs chan<- error, err error) bool {
	select {
	case errs <- err:
		return true
	case <-ctx.Done():
		return false
	}
}
