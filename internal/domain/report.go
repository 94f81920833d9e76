package domain

import (
	"time"

	"github.com/con-solidation/internal/config"
)

// RepoDetails is the immutable activity snapshot for one repository:
// its metrics plus the open/active issue and pull request collections.
type RepoDetails struct {
	Repository

	OpenPRs      []*PullRequest
	ActivePRs    []*Issue
	ActiveIssues []*Issue
	// OpenIP holds the currently open issues and pull requests combined.
	OpenIP []*Issue
}

func (d *RepoDetails) OpenPRsCount() int {
	return len(d.OpenPRs)
}

// Report is the unified cross-repository dataset built by one
// consolidation run and consumed once by the renderer.
type Report struct {
	Config *config.Configuration

	names     []string
	repostats map[string]*RepoDetails

	OpenPRs      []*PullRequest
	ActiveIssues []*Issue
	ActivePRs    []*Issue
	OpenIP       []*Issue
}

func NewReport(cfg *config.Configuration) *Report {
	return &Report{
		Config:    cfg,
		repostats: make(map[string]*RepoDetails),
	}
}

// Has reports whether a repository is already registered.
func (r *Report) Has(fullName string) bool {
	_, ok := r.repostats[fullName]
	return ok
}

// AddRepoDetails registers a repository snapshot and extends the
// aggregate collections. A repository reachable through several
// discovery paths is registered once: the first writer wins and later
// attempts are silent no-ops, so the aggregates are never doubled.
func (r *Report) AddRepoDetails(d *RepoDetails) bool {
	if r.Has(d.FullName) {
		return false
	}
	r.names = append(r.names, d.FullName)
	r.repostats[d.FullName] = d
	r.OpenPRs = append(r.OpenPRs, d.OpenPRs...)
	r.ActiveIssues = append(r.ActiveIssues, d.ActiveIssues...)
	r.ActivePRs = append(r.ActivePRs, d.ActivePRs...)
	r.OpenIP = append(r.OpenIP, d.OpenIP...)
	return true
}

// RepoNames returns the registered repository names in discovery order.
func (r *Report) RepoNames() []string {
	return r.names
}

// Repo returns the snapshot for a registered repository.
func (r *Report) Repo(fullName string) *RepoDetails {
	return r.repostats[fullName]
}

// IssueCommenterCounts tallies, by login, the comments posted on
// active issues at or after since.
func (r *Report) IssueCommenterCounts(since time.Time) map[string]int {
	commenters := make(map[string]int)
	for _, i := range r.ActiveIssues {
		for _, c := range i.CommentEvents {
			if c.CreatedAt.Before(since) {
				// does not fall into the reporting window
				continue
			}
			commenters[c.User.Login]++
		}
	}
	return commenters
}
