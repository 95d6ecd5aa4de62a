package docstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v66/github"
)

// DefaultGitHubTimeout applies when no request timeout is configured.
const DefaultGitHubTimeout = 30 * time.Second

// GitHubStore keeps the document as a file in a GitHub repository. The
// version token is the file's blob SHA; the contents API rejects an update
// whose sha is stale with 409, which is what makes Write a compare-and-swap.
type GitHubStore struct {
	client *github.Client
	owner  string
	repo   string
	branch string
}

// NewGitHubClient builds an authenticated API client whose requests give up
// after timeout. apiURL is only set for GitHub Enterprise installations.
func NewGitHubClient(token, apiURL string, timeout time.Duration) (*github.Client, error) {
	if timeout <= 0 {
		timeout = DefaultGitHubTimeout
	}
	c := github.NewClient(&http.Client{Timeout: timeout}).WithAuthToken(token)
	if apiURL == "" {
		return c, nil
	}
	c, err := c.WithEnterpriseURLs(apiURL, apiURL)
	if err != nil {
		return nil, fmt.Errorf("github enterprise url: %w", err)
	}
	return c, nil
}

func NewGitHubStore(client *github.Client, owner, repo, branch string) *GitHubStore {
	return &GitHubStore{client: client, owner: owner, repo: repo, branch: branch}
}

func (s *GitHubStore) Fetch(ctx context.Context, path string) (*Document, error) {
	fc, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, path, &github.RepositoryContentGetOptions{Ref: s.branch})
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, &TransportError{Op: "fetch", Path: path, Err: err}
	}
	if fc == nil {
		return nil, &TransportError{Op: "fetch", Path: path, Err: errors.New("path is a directory")}
	}

	// Files over 1 MB come back without inline content.
	if fc.GetEncoding() == "none" || (fc.Content == nil && fc.GetSize() > 0) {
		raw, _, err := s.client.Git.GetBlobRaw(ctx, s.owner, s.repo, fc.GetSHA())
		if err != nil {
			return nil, &TransportError{Op: "fetch blob", Path: path, Err: err}
		}
		return &Document{Content: raw, Version: fc.GetSHA()}, nil
	}

	content, err := fc.GetContent()
	if err != nil {
		return nil, &TransportError{Op: "decode", Path: path, Err: err}
	}
	return &Document{Content: []byte(content), Version: fc.GetSHA()}, nil
}

func (s *GitHubStore) Write(ctx context.Context, path string, content []byte, expectedVersion string) (string, error) {
	opts := &github.RepositoryContentFileOptions{
		Content: content,
		Branch:  github.String(s.branch),
	}

	var (
		res  *github.RepositoryContentResponse
		resp *github.Response
		err  error
	)
	if expectedVersion == "" {
		opts.Message = github.String("catalog: create " + path)
		res, resp, err = s.client.Repositories.CreateFile(ctx, s.owner, s.repo, path, opts)
	} else {
		opts.Message = github.String("catalog: update " + path)
		opts.SHA = github.String(expectedVersion)
		res, resp, err = s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, path, opts)
	}
	if err != nil {
		switch statusOf(resp) {
		case http.StatusConflict:
			return "", ErrVersionConflict
		case http.StatusUnprocessableEntity:
			// create without sha on an existing file
			if expectedVersion == "" {
				return "", ErrVersionConflict
			}
		}
		return "", &TransportError{Op: "write", Path: path, Err: err}
	}
	if res == nil || res.Content == nil {
		return "", &TransportError{Op: "write", Path: path, Err: errors.New("response carries no content sha")}
	}
	return res.Content.GetSHA(), nil
}

func statusOf(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
