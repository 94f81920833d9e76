package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/con-solidation/internal/domain"
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = baseURL

	gateway := &GitHubGateway{
		client: client,
		logger: log.New(io.Discard, "", 0),
	}
	return gateway, server
}

func TestGitHubGateway_FetchRepository(t *testing.T) {
	testCases := []struct {
		name        string
		handlerFunc func(w http.ResponseWriter, r *http.Request)
		expected    *domain.Repository
		expectError bool
	}{
		{
			name: "happy path - repository metadata is converted",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/octo/widgets", r.URL.Path)
				fmt.Fprint(w, `{
					"full_name": "octo/widgets",
					"size": 42,
					"stargazers_count": 7,
					"watchers_count": 7,
					"forks_count": 3,
					"open_issues_count": 5,
					"network_count": 4,
					"subscribers_count": 2
				}`)
			},
			expected: &domain.Repository{
				FullName:         "octo/widgets",
				Size:             42,
				StargazersCount:  7,
				WatchersCount:    7,
				ForksCount:       3,
				OpenIssuesCount:  5,
				NetworkCount:     4,
				SubscribersCount: 2,
			},
		},
		{
			name: "error case - repository not found",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message": "Not Found"}`)
			},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, _ := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))

			repo, err := gateway.FetchRepository(context.Background(), "octo/widgets")
			if tc.expectError {
				assert.Error(t, err)
				assert.Nil(t, repo)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, repo)
			}
		})
	}
}

func TestGitHubGateway_FetchRepository_InvalidName(t *testing.T) {
	gateway, _ := setupTestGateway(t, http.NotFoundHandler())

	_, err := gateway.FetchRepository(context.Background(), "not-a-full-name")
	assert.ErrorContains(t, err, "expected owner/name")
}

func TestGitHubGateway_FetchIssues(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/widgets/issues", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		assert.Equal(t, "2024-03-01T00:00:00Z", r.URL.Query().Get("since"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{
				"number": 2,
				"title": "a pull request",
				"html_url": "https://github.com/octo/widgets/pull/2",
				"state": "closed",
				"user": {"login": "bob"},
				"closed_at": "2024-03-02T10:00:00Z",
				"created_at": "2024-03-01T10:00:00Z",
				"pull_request": {"url": "https://api.github.com/repos/octo/widgets/pulls/2"}
			}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/octo/widgets/issues?page=2>; rel="next"`, r.Host))
		fmt.Fprint(w, `[{
			"number": 1,
			"title": "an issue",
			"html_url": "https://github.com/octo/widgets/issues/1",
			"state": "open",
			"user": {"login": "alice"},
			"assignees": [{"login": "bob"}],
			"labels": [{"name": "bug"}],
			"comments": 3,
			"created_at": "2024-03-01T08:00:00Z"
		}]`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

	issues, err := gateway.FetchIssues(context.Background(), "octo/widgets", "all", &since)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	first := issues[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "an issue", first.Title)
	assert.Equal(t, domain.StateOpen, first.State)
	assert.Equal(t, "alice", first.User.Login)
	assert.Equal(t, []domain.User{{Login: "bob"}}, first.Assignees)
	assert.Equal(t, []string{"bug"}, first.Labels)
	assert.Equal(t, 3, first.Comments)
	assert.Equal(t, "octo/widgets", first.RepoFullName)
	assert.False(t, first.IsPullRequest)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), first.CreatedAt)

	second := issues[1]
	assert.True(t, second.IsPullRequest)
	assert.Equal(t, domain.StateClosed, second.State)
	require.NotNil(t, second.ClosedAt)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), *second.ClosedAt)
}

func TestGitHubGateway_FetchOpenPullRequests(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/widgets/pulls", r.URL.Path)
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		fmt.Fprint(w, `[{
			"number": 5,
			"title": "add things",
			"html_url": "https://github.com/octo/widgets/pull/5",
			"state": "open",
			"draft": true,
			"user": {"login": "alice"},
			"created_at": "2024-03-01T08:00:00Z"
		}]`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

	prs, err := gateway.FetchOpenPullRequests(context.Background(), "octo/widgets")
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, 5, prs[0].Number)
	assert.True(t, prs[0].Draft)
	assert.Equal(t, "alice", prs[0].User.Login)
	assert.Equal(t, "octo/widgets", prs[0].RepoFullName)
	assert.Nil(t, prs[0].MergedAt)
}

func TestGitHubGateway_FetchPullRequest(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/widgets/pulls/5", r.URL.Path)
		fmt.Fprint(w, `{
			"number": 5,
			"title": "add things",
			"state": "closed",
			"user": {"login": "alice"},
			"merged_by": {"login": "maintainer"},
			"created_at": "2024-03-01T08:00:00Z",
			"closed_at": "2024-03-03T08:00:00Z",
			"merged_at": "2024-03-03T08:00:00Z"
		}`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

	pr, err := gateway.FetchPullRequest(context.Background(), "octo/widgets", 5)
	require.NoError(t, err)
	require.NotNil(t, pr.MergedAt)
	assert.Equal(t, time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC), *pr.MergedAt)
	require.NotNil(t, pr.MergedBy)
	assert.Equal(t, "maintainer", pr.MergedBy.Login)
}

func TestGitHubGateway_FetchOrgMembers(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orgs/octo-org/members", r.URL.Path)
		fmt.Fprint(w, `[{"login": "alice"}, {"login": "bob"}]`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

	members, err := gateway.FetchOrgMembers(context.Background(), "octo-org")
	require.NoError(t, err)
	assert.Equal(t, []domain.User{{Login: "alice"}, {Login: "bob"}}, members)
}

func TestGitHubGateway_FetchOrgRepositories(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orgs/octo-org/repos", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("type"))
		fmt.Fprint(w, `[{"full_name": "octo-org/widgets"}, {"full_name": "octo-org/gadgets"}]`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

	names, err := gateway.FetchOrgRepositories(context.Background(), "octo-org")
	require.NoError(t, err)
	assert.Equal(t, []string{"octo-org/widgets", "octo-org/gadgets"}, names)
}

func TestGitHubGateway_FetchIssueComments(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/widgets/issues/1/comments", r.URL.Path)
		fmt.Fprint(w, `[{"user": {"login": "alice"}, "created_at": "2024-03-02T09:30:00Z"}]`)
	}
	gateway, _ := setupTestGateway(t, http.HandlerFunc(handler))

	comments, err := gateway.FetchIssueComments(context.Background(), "octo/widgets", 1)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "alice", comments[0].User.Login)
	assert.Equal(t, time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC), comments[0].CreatedAt)
}
