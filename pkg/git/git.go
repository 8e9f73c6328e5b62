// Package git checks out the repository holding the shared pipeline helper.
package git

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/sirupsen/logrus"
)

// CloneOptions describe a checkout of a single pinned branch.
type CloneOptions struct {
	URL    string
	Branch string
	// Dir is where the repository is checked out. It must be empty or absent.
	Dir string
	// Depth limits the fetched history, zero fetches everything.
	Depth int
	// Username and Password are used for HTTP basic authentication when set.
	Username string
	Password string
}

// Cloner checks out repositories.
type Cloner interface {
	// Clone checks out the branch and returns the commit it points at.
	Clone(ctx context.Context, options CloneOptions) (string, error)
}

// Client clones repositories without a git binary.
type Client struct {
	// logger will be used to log git operations and must be set.
	logger   *logrus.Entry
	progress io.Writer
}

// NewClient returns a client logging to the entry. Transfer progress is
// written to progress when it is not nil.
func NewClient(logger *logrus.Entry, progress io.Writer) *Client {
	return &Client{logger: logger, progress: progress}
}

func (c *Client) Clone(ctx context.Context, options CloneOptions) (string, error) {
	logger := c.logger.WithFields(logrus.Fields{"url": options.URL, "branch": options.Branch})
	cloneOptions := &git.CloneOptions{
		URL:           options.URL,
		ReferenceName: plumbing.NewBranchReferenceName(options.Branch),
		SingleBranch:  true,
		Depth:         options.Depth,
		Progress:      c.progress,
	}
	if options.Username != "" {
		cloneOptions.Auth = &http.BasicAuth{Username: options.Username, Password: options.Password}
	}

	start := time.Now()
	logger.Infof("Cloning into %s", options.Dir)
	repo, err := git.PlainCloneContext(ctx, options.Dir, false, cloneOptions)
	if err != nil {
		return "", fmt.Errorf("failed to clone %s at branch %s: %w", options.URL, options.Branch, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD of %s: %w", options.Dir, err)
	}
	logger.WithField("commit", head.Hash().String()).Infof("Cloned after %s", time.Since(start).Truncate(time.Millisecond))
	return head.Hash().String(), nil
}
