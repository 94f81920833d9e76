// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"log"
	"time"

	"github.com/con-solidation/internal/config"
	"github.com/con-solidation/internal/domain"
	"github.com/con-solidation/internal/gateway"
)

// Consolidator is the use case for building a unified activity report.
// It orchestrates member discovery, organization expansion and
// per-repository snapshot construction, strictly sequentially: this is
// a scheduled batch report, a failed remote call simply aborts the run.
type Consolidator struct {
	fetcher gateway.Fetcher
	config  *config.Configuration
	logger  *log.Logger
}

// NewConsolidator creates a new Consolidator instance.
func NewConsolidator(fetcher gateway.Fetcher, cfg *config.Configuration, logger *log.Logger) *Consolidator {
	return &Consolidator{
		fetcher: fetcher,
		config:  cfg,
		logger:  logger,
	}
}

// Run turns the configuration into a Report. Activity is everything
// created or updated at or after since. Member discovery completes
// fully before any repository is processed, so member_activity_only
// filtering sees the enlarged membership set.
func (c *Consolidator) Run(ctx context.Context, since time.Time) (*domain.Report, error) {
	report := domain.NewReport(c.config)

	for _, org := range c.config.Organizations {
		if !org.FetchMembers.Enabled() {
			continue
		}
		c.logger.Printf("Discovering members of organization %s", org.Name)
		members, err := c.fetcher.FetchOrgMembers(ctx, org.Name)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if org.FetchMembers.Accepts(m.Login) {
				c.config.Members.Add(m.Login)
			}
		}
	}

	for _, org := range c.config.Organizations {
		c.logger.Printf("Processing organization %s", org.Name)
		names, err := c.fetcher.FetchOrgRepositories(ctx, org.Name)
		if err != nil {
			return nil, err
		}
		for _, fullName := range names {
			if report.Has(fullName) {
				continue
			}
			details, err := c.repoDetails(ctx, since, fullName, org.MemberActivityOnly)
			if err != nil {
				return nil, err
			}
			report.AddRepoDetails(details)
		}
	}

	for _, repo := range c.config.Repositories {
		if report.Has(repo.Name) {
			continue
		}
		details, err := c.repoDetails(ctx, since, repo.Name, repo.MemberActivityOnly)
		if err != nil {
			return nil, err
		}
		report.AddRepoDetails(details)
	}

	return report, nil
}

// repoDetails builds the activity snapshot for one repository. With
// memberOnly set, the member predicate is applied to every collection
// before active items are split into issues and pull requests, so a
// filtered-out item never surfaces anywhere.
func (c *Consolidator) repoDetails(ctx context.Context, since time.Time, fullName string, memberOnly bool) (*domain.RepoDetails, error) {
	c.logger.Printf("Processing repo %s", fullName)
	repo, err := c.fetcher.FetchRepository(ctx, fullName)
	if err != nil {
		return nil, err
	}
	openPRs, err := c.fetcher.FetchOpenPullRequests(ctx, fullName)
	if err != nil {
		return nil, err
	}
	activeIP, err := c.fetcher.FetchIssues(ctx, fullName, "all", &since)
	if err != nil {
		return nil, err
	}
	openIP, err := c.fetcher.FetchIssues(ctx, fullName, domain.StateOpen, nil)
	if err != nil {
		return nil, err
	}

	if memberOnly {
		openPRs = filterSlice(openPRs, c.memberPR)
		activeIP = filterSlice(activeIP, c.memberIssue)
		openIP = filterSlice(openIP, c.memberIssue)
	}

	var activeIssues, activePRs []*domain.Issue
	for _, i := range activeIP {
		if i.IsPullRequest {
			activePRs = append(activePRs, i)
		} else {
			activeIssues = append(activeIssues, i)
		}
	}

	for _, i := range activeIssues {
		comments, err := c.fetcher.FetchIssueComments(ctx, fullName, i.Number)
		if err != nil {
			return nil, err
		}
		i.CommentEvents = comments
	}
	for _, i := range activePRs {
		if i.State != domain.StateClosed {
			continue
		}
		pr, err := c.fetcher.FetchPullRequest(ctx, fullName, i.Number)
		if err != nil {
			return nil, err
		}
		i.PR = pr
	}

	return &domain.RepoDetails{
		Repository:   *repo,
		OpenPRs:      openPRs,
		ActivePRs:    activePRs,
		ActiveIssues: activeIssues,
		OpenIP:       openIP,
	}, nil
}

// memberIssue reports whether the author or any assignee is a known member.
func (c *Consolidator) memberIssue(i *domain.Issue) bool {
	if c.config.Members.Contains(i.User.Login) {
		return true
	}
	for _, a := range i.Assignees {
		if c.config.Members.Contains(a.Login) {
			return true
		}
	}
	return false
}

// memberPR reports whether the author or any assignee is a known member.
func (c *Consolidator) memberPR(pr *domain.PullRequest) bool {
	if c.config.Members.Contains(pr.User.Login) {
		return true
	}
	for _, a := range pr.Assignees {
		if c.config.Members.Contains(a.Login) {
			return true
		}
	}
	return false
}

func filterSlice[T any](items []*T, keep func(*T) bool) []*T {
	filtered := make([]*T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Since returns the start of the reporting window ending at now.
func Since(cfg *config.Configuration, now time.Time) time.Time {
	return now.UTC().Add(-time.Duration(cfg.RecentDays) * 24 * time.Hour)
}
