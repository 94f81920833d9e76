// Package gateway provides a gateway to the GitHub API, abstracting
// away the underlying REST client.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github.com/con-solidation/internal/domain"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
)

// Fetcher defines the behavior of a gateway for fetching activity
// information from GitHub. Every call is a blocking request-response;
// failures abort the run, there is no retry layer here.
type Fetcher interface {
	FetchRepository(ctx context.Context, fullName string) (*domain.Repository, error)
	FetchOrgMembers(ctx context.Context, org string) ([]domain.User, error)
	FetchOrgRepositories(ctx context.Context, org string) ([]string, error)
	FetchOpenPullRequests(ctx context.Context, fullName string) ([]*domain.PullRequest, error)
	FetchIssues(ctx context.Context, fullName, state string, since *time.Time) ([]*domain.Issue, error)
	FetchIssueComments(ctx context.Context, fullName string, number int) ([]domain.Comment, error)
	FetchPullRequest(ctx context.Context, fullName string, number int) (*domain.PullRequest, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	client *github.Client
	logger *log.Logger
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *log.Logger) (Fetcher, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		client: github.NewClient(httpClient),
		logger: logger,
	}, nil
}

func (g *GitHubGateway) FetchRepository(ctx context.Context, fullName string) (*domain.Repository, error) {
	owner, name, err := splitRepoName(fullName)
	if err != nil {
		return nil, err
	}
	repo, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repository %s: %w", fullName, err)
	}
	return convertRepository(repo), nil
}

func (g *GitHubGateway) FetchOrgMembers(ctx context.Context, org string) ([]domain.User, error) {
	opts := &github.ListMembersOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var members []domain.User
	for {
		users, resp, err := g.client.Organizations.ListMembers(ctx, org, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list members of organization %s: %w", org, err)
		}
		for _, u := range users {
			members = append(members, convertUser(u))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Printf("  Fetching next page of %s members...", org)
	}
	return members, nil
}

func (g *GitHubGateway) FetchOrgRepositories(ctx context.Context, org string) ([]string, error) {
	opts := &github.RepositoryListByOrgOptions{Type: "all", ListOptions: github.ListOptions{PerPage: 100}}
	var names []string
	for {
		repos, resp, err := g.client.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of organization %s: %w", org, err)
		}
		for _, r := range repos {
			names = append(names, r.GetFullName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Printf("  Fetching next page of %s repositories...", org)
	}
	return names, nil
}

func (g *GitHubGateway) FetchOpenPullRequests(ctx context.Context, fullName string) ([]*domain.PullRequest, error) {
	owner, name, err := splitRepoName(fullName)
	if err != nil {
		return nil, err
	}
	opts := &github.PullRequestListOptions{State: "open", ListOptions: github.ListOptions{PerPage: 100}}
	var prs []*domain.PullRequest
	for {
		page, resp, err := g.client.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list open pull requests of %s: %w", fullName, err)
		}
		for _, pr := range page {
			prs = append(prs, convertPullRequest(fullName, pr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Printf("  Fetching next page of %s pull requests...", fullName)
	}
	return prs, nil
}

func (g *GitHubGateway) FetchIssues(ctx context.Context, fullName, state string, since *time.Time) ([]*domain.Issue, error) {
	owner, name, err := splitRepoName(fullName)
	if err != nil {
		return nil, err
	}
	opts := &github.IssueListByRepoOptions{State: state, ListOptions: github.ListOptions{PerPage: 100}}
	if since != nil {
		opts.Since = *since
	}
	var issues []*domain.Issue
	for {
		page, resp, err := g.client.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s issues of %s: %w", state, fullName, err)
		}
		for _, is := range page {
			issues = append(issues, convertIssue(fullName, is))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Printf("  Fetching next page of %s issues...", fullName)
	}
	return issues, nil
}

func (g *GitHubGateway) FetchIssueComments(ctx context.Context, fullName string, number int) ([]domain.Comment, error) {
	owner, name, err := splitRepoName(fullName)
	if err != nil {
		return nil, err
	}
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var comments []domain.Comment
	for {
		page, resp, err := g.client.Issues.ListComments(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments of %s#%d: %w", fullName, number, err)
		}
		for _, c := range page {
			comments = append(comments, domain.Comment{
				User:      convertUser(c.GetUser()),
				CreatedAt: ensureAware(c.GetCreatedAt().Time),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

func (g *GitHubGateway) FetchPullRequest(ctx context.Context, fullName string, number int) (*domain.PullRequest, error) {
	owner, name, err := splitRepoName(fullName)
	if err != nil {
		return nil, err
	}
	pr, _, err := g.client.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request %s#%d: %w", fullName, number, err)
	}
	return convertPullRequest(fullName, pr), nil
}

func splitRepoName(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository name %q, expected owner/name", fullName)
	}
	return owner, name, nil
}

// ensureAware normalizes a timestamp to a UTC instant. Timestamps that
// arrive without zone information are treated as UTC.
func ensureAware(t time.Time) time.Time {
	return t.UTC()
}

func convertUser(u *github.User) domain.User {
	return domain.User{Login: u.GetLogin(), Name: u.GetName()}
}

func convertRepository(r *github.Repository) *domain.Repository {
	return &domain.Repository{
		FullName:         r.GetFullName(),
		Size:             r.GetSize(),
		StargazersCount:  r.GetStargazersCount(),
		WatchersCount:    r.GetWatchersCount(),
		ForksCount:       r.GetForksCount(),
		OpenIssuesCount:  r.GetOpenIssuesCount(),
		NetworkCount:     r.GetNetworkCount(),
		SubscribersCount: r.GetSubscribersCount(),
	}
}

func convertIssue(fullName string, is *github.Issue) *domain.Issue {
	labels := make([]string, 0, len(is.Labels))
	for _, l := range is.Labels {
		labels = append(labels, l.GetName())
	}
	assignees := make([]domain.User, 0, len(is.Assignees))
	for _, a := range is.Assignees {
		assignees = append(assignees, convertUser(a))
	}
	i := &domain.Issue{
		Number:        is.GetNumber(),
		Title:         is.GetTitle(),
		HTMLURL:       is.GetHTMLURL(),
		State:         is.GetState(),
		User:          convertUser(is.GetUser()),
		Assignees:     assignees,
		Labels:        labels,
		Comments:      is.GetComments(),
		CreatedAt:     ensureAware(is.GetCreatedAt().Time),
		RepoFullName:  fullName,
		IsPullRequest: is.IsPullRequest(),
	}
	if is.ClosedAt != nil {
		t := ensureAware(is.ClosedAt.Time)
		i.ClosedAt = &t
	}
	if is.ClosedBy != nil {
		u := convertUser(is.ClosedBy)
		i.ClosedBy = &u
	}
	return i
}

func convertPullRequest(fullName string, pr *github.PullRequest) *domain.PullRequest {
	assignees := make([]domain.User, 0, len(pr.Assignees))
	for _, a := range pr.Assignees {
		assignees = append(assignees, convertUser(a))
	}
	p := &domain.PullRequest{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		HTMLURL:      pr.GetHTMLURL(),
		State:        pr.GetState(),
		Draft:        pr.GetDraft(),
		User:         convertUser(pr.GetUser()),
		Assignees:    assignees,
		CreatedAt:    ensureAware(pr.GetCreatedAt().Time),
		RepoFullName: fullName,
	}
	if pr.ClosedAt != nil {
		t := ensureAware(pr.ClosedAt.Time)
		p.ClosedAt = &t
	}
	if pr.MergedAt != nil {
		t := ensureAware(pr.MergedAt.Time)
		p.MergedAt = &t
	}
	if pr.MergedBy != nil {
		u := convertUser(pr.MergedBy)
		p.MergedBy = &u
	}
	return p
}
