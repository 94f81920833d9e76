// Package domain contains the core data structures for the application.
package domain

import "time"

// Issue and pull request states as reported by the activity source.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// User identifies an account by login, with an optional display name.
type User struct {
	Login string
	Name  string
}

// DisplayName returns the human name, falling back to the login.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Login
}

// Comment is one comment on an issue.
type Comment struct {
	User      User
	CreatedAt time.Time
}

// Issue is an issue as seen through the generic issue listing. A pull
// request fetched through that listing carries the IsPullRequest
// marker. All timestamps are UTC instants.
type Issue struct {
	Number        int
	Title         string
	HTMLURL       string
	State         string
	User          User
	Assignees     []User
	Labels        []string
	Comments      int
	CreatedAt     time.Time
	ClosedAt      *time.Time
	ClosedBy      *User
	RepoFullName  string
	IsPullRequest bool

	// CommentEvents is filled by the aggregator for active issues.
	CommentEvents []Comment
	// PR is the resolved pull request for closed PR-flavored items.
	PR *PullRequest
}

// HasLabel reports whether the issue carries a label with the name.
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// AssignedTo reports whether the login is among the assignees.
func (i *Issue) AssignedTo(login string) bool {
	for _, a := range i.Assignees {
		if a.Login == login {
			return true
		}
	}
	return false
}

// PullRequest is a pull request fetched through the pull request
// endpoints, carrying draft and merge information issues lack.
type PullRequest struct {
	Number       int
	Title        string
	HTMLURL      string
	State        string
	Draft        bool
	User         User
	Assignees    []User
	CreatedAt    time.Time
	ClosedAt     *time.Time
	MergedAt     *time.Time
	MergedBy     *User
	RepoFullName string
}

// AssignedTo reports whether the login is among the assignees.
func (p *PullRequest) AssignedTo(login string) bool {
	for _, a := range p.Assignees {
		if a.Login == login {
			return true
		}
	}
	return false
}

// Repository holds the scalar popularity and size metrics of one
// repository.
type Repository struct {
	FullName         string
	Size             int
	StargazersCount  int
	WatchersCount    int
	ForksCount       int
	OpenIssuesCount  int
	NetworkCount     int
	SubscribersCount int
}
