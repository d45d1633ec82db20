// Package hosting retrieves review-request metadata from the code
// hosting service. The metadata feeds revision selection and report
// headers only; the core review logic never depends on it.
package hosting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkgreview/pkgreview/pkg/interfaces"
)

// GitHubClient implements interfaces.ReviewHost against the GitHub
// REST API.
type GitHubClient struct {
	BaseURL string
	Owner   string
	Repo    string
	Token   string

	httpClient *http.Client
}

// NewGitHubClient creates a metadata client for owner/repo. token may
// be empty for anonymous, rate-limited access.
func NewGitHubClient(owner, repo, token string) *GitHubClient {
	return &GitHubClient{
		BaseURL:    "https://api.github.com",
		Owner:      owner,
		Repo:       repo,
		Token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type pullResponse struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
	Head struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

// PullRequest fetches the metadata of one pull request.
func (c *GitHubClient) PullRequest(ctx context.Context, number int) (*interfaces.PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.BaseURL, c.Owner, c.Repo, number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "token "+c.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request %d: %w", number, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("pull request %d: unexpected status %d: %s", number, resp.StatusCode, body)
	}

	var pr pullResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("pull request %d: malformed response: %w", number, err)
	}
	if pr.Head.SHA == "" || pr.Base.Ref == "" {
		return nil, fmt.Errorf("pull request %d: response missing revisions", number)
	}

	return &interfaces.PullRequest{
		Number:  pr.Number,
		Title:   pr.Title,
		Author:  pr.User.Login,
		BaseRef: pr.Base.Ref,
		HeadSHA: pr.Head.SHA,
	}, nil
}
