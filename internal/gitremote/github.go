package gitremote

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubResolver looks up a GitHubShorthand source's default-branch HEAD
// hash, which the install pipeline reports as Result.ResolvedRef (the
// clone URL itself comes from ParseSource). An optional GITHUB_TOKEN
// raises the unauthenticated rate limit.
type GitHubResolver struct {
	client *github.Client
}

// NewGitHubResolver builds a resolver, authenticating with GITHUB_TOKEN
// when present.
func NewGitHubResolver() *GitHubResolver {
	var httpClient *http.Client
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	return &GitHubResolver{client: github.NewClient(httpClient)}
}

// DefaultBranchHead returns the SHA at the tip of owner/repo's default
// branch, for reporting alongside the clone in the install result.
func (r *GitHubResolver) DefaultBranchHead(ctx context.Context, owner, repo string) (string, error) {
	repoInfo, _, err := r.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("look up %s/%s: %w", owner, repo, err)
	}
	branch := repoInfo.GetDefaultBranch()

	ref, _, err := r.client.Git.GetRef(ctx, owner, repo, "heads/"+branch)
	if err != nil {
		return "", fmt.Errorf("resolve HEAD of %s/%s: %w", owner, repo, err)
	}
	return ref.GetObject().GetSHA(), nil
}
