package usecase

import (
	"fmt"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/con-solidation/internal/domain"
)

// Renderer turns a Report into the markdown digest. It reads the
// report but never mutates it; with a fixed Now and Rand two renders
// of the same report are byte-identical.
type Renderer struct {
	Now  func() time.Time
	Rand *rand.Rand
}

// NewRenderer creates a Renderer with wall-clock time and a freshly
// seeded random source.
func NewRenderer() *Renderer {
	return &Renderer{
		Now:  time.Now,
		Rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ToMarkdown renders the health digest, section by section. Sections
// whose source collection is empty are not emitted.
func (r *Renderer) ToMarkdown(report *domain.Report) string {
	cfg := report.Config
	now := r.Now().UTC()
	days := cfg.RecentDays
	since := now.Add(-time.Duration(days) * 24 * time.Hour)

	var b strings.Builder
	fmt.Fprintf(&b, "#### %s Health Update\n", sanitizeMD(cfg.Project))

	b.WriteString("##### Covered projects (PRs/issues/stars/watchers/forks)\n")
	entries := make([]string, 0, len(report.RepoNames()))
	for _, name := range report.RepoNames() {
		d := report.Repo(name)
		short := strings.ReplaceAll(name[strings.LastIndex(name, "/")+1:], "datalad-", "dl-")
		entries = append(entries, fmt.Sprintf(
			"[%s](https://github.com/%s) ([%d](https://github.com/%s/pulls)/[%d](https://github.com/%s/issues)/%d/%d/%d)",
			sanitizeMD(short), name,
			d.OpenPRsCount(), name,
			d.OpenIssuesCount, name,
			d.StargazersCount, d.SubscribersCount, d.ForksCount))
	}
	b.WriteString(strings.Join(entries, "; ") + "\n")

	var outsiderIssues []*domain.Issue
	for _, i := range report.ActiveIssues {
		if i.State == domain.StateOpen && !cfg.Members.Contains(i.User.Login) {
			outsiderIssues = append(outsiderIssues, i)
		}
	}
	if len(outsiderIssues) > 0 {
		fmt.Fprintf(&b, "##### Non-%s member issues active/opened in the last %d days\n",
			sanitizeMD(cfg.Project), days)
		sort.Slice(outsiderIssues, func(a, z int) bool {
			return outsiderIssues[a].Number < outsiderIssues[z].Number
		})
		for _, i := range outsiderIssues {
			fmt.Fprintf(&b, "- [%s](%s) by %s [%s]\n",
				sanitizeMD(i.Title), i.HTMLURL, sanitizeMD(i.User.DisplayName()), i.RepoFullName)
		}
	}

	recentlyOpened := 0
	for _, i := range report.ActiveIssues {
		if !i.CreatedAt.Before(since) {
			recentlyOpened++
		}
	}
	if recentlyOpened > 0 {
		fmt.Fprintf(&b, "##### Issues opened in the last %d days: %d\n", days, recentlyOpened)
	}

	var untriagedIssues []*domain.Issue
	for _, i := range report.ActiveIssues {
		if i.State == domain.StateOpen && i.Comments < 1 && len(i.Labels) == 0 {
			untriagedIssues = append(untriagedIssues, i)
		}
	}
	if len(untriagedIssues) > 0 {
		fmt.Fprintf(&b, "##### Untriaged issues of the last %d days\n", days)
		sort.Slice(untriagedIssues, func(a, z int) bool {
			return untriagedIssues[a].CreatedAt.Before(untriagedIssues[z].CreatedAt)
		})
		for _, i := range untriagedIssues {
			fmt.Fprintf(&b, "- [%s](%s) [%s]\n", sanitizeMD(i.Title), i.HTMLURL, i.RepoFullName)
		}
	}

	fmt.Fprintf(&b, "##### Max %d oldest, open, non-draft PRs (%d PRs open in total)\n",
		cfg.NumOldestPRs, len(report.OpenPRs))
	var nonDraft []*domain.PullRequest
	for _, pr := range report.OpenPRs {
		if !pr.Draft {
			nonDraft = append(nonDraft, pr)
		}
	}
	sort.Slice(nonDraft, func(a, z int) bool {
		return nonDraft[a].CreatedAt.Before(nonDraft[z].CreatedAt)
	})
	if len(nonDraft) > cfg.NumOldestPRs {
		nonDraft = nonDraft[:cfg.NumOldestPRs]
	}
	for _, pr := range nonDraft {
		fmt.Fprintf(&b, "- [%s](%s) (%d days)\n",
			sanitizeMD(pr.Title), pr.HTMLURL, ageDays(now, pr.CreatedAt))
	}

	openIssueTotal := 0
	for _, i := range report.OpenIP {
		if !i.IsPullRequest {
			openIssueTotal++
		}
	}
	nRandom := cfg.MaxRandomIssues
	if openIssueTotal < nRandom {
		nRandom = openIssueTotal
	}
	if nRandom > 0 {
		fmt.Fprintf(&b, "##### %d random open issues to fix (of a total of %d)\n",
			nRandom, openIssueTotal)
		// Sample the whole collection without replacement and skip PR
		// entries while walking; the marker is only known per item.
		remaining := nRandom
		for _, j := range r.Rand.Perm(len(report.OpenIP)) {
			if remaining == 0 {
				break
			}
			i := report.OpenIP[j]
			if i.IsPullRequest {
				continue
			}
			fmt.Fprintf(&b, "- [%s](%s) (%d days old)\n",
				sanitizeMD(i.Title), i.HTMLURL, ageDays(now, i.CreatedAt))
			remaining--
		}
	}

	fmt.Fprintf(&b, "##### Active issues in the past %d days: %d", days, len(report.ActiveIssues))
	if len(report.OpenIP) > 0 {
		fmt.Fprintf(&b, " (%.0f%%)",
			float64(len(report.ActiveIssues))/float64(len(report.OpenIP))*100)
	}
	b.WriteString("\n")
	b.WriteString("- Commenters: " + joinCounts(report.IssueCommenterCounts(since)) + "\n")

	var recentClosedIssues []*domain.Issue
	for _, i := range report.ActiveIssues {
		if i.State == domain.StateClosed {
			recentClosedIssues = append(recentClosedIssues, i)
		}
	}
	if len(recentClosedIssues) > 0 {
		fmt.Fprintf(&b, "##### Issues closed in the past %d days: %d\n", days, len(recentClosedIssues))
		var closedAges []float64
		closedBy := make(map[string]int)
		for _, i := range recentClosedIssues {
			if i.ClosedAt != nil {
				closedAges = append(closedAges, float64(ageDays(*i.ClosedAt, i.CreatedAt)))
			}
			if i.ClosedBy != nil {
				closedBy[i.ClosedBy.Login]++
			}
		}
		if q, ok := quantileSummary(closedAges); ok {
			fmt.Fprintf(&b, "- Age quantiles (days): %s\n", q)
		}
		b.WriteString("- Closed by: " + joinCounts(closedBy) + "\n")
	}

	var recentClosedPRs []*domain.PullRequest
	for _, i := range report.ActivePRs {
		if i.State == domain.StateClosed && i.PR != nil {
			recentClosedPRs = append(recentClosedPRs, i.PR)
		}
	}
	if len(recentClosedPRs) > 0 {
		fmt.Fprintf(&b, "##### PRs completed in the past %d days: %d\n", days, len(recentClosedPRs))
	}

	var mergedPRs []*domain.PullRequest
	for _, pr := range recentClosedPRs {
		if pr.MergedAt != nil {
			mergedPRs = append(mergedPRs, pr)
		}
	}
	if len(mergedPRs) > 0 {
		proposedBy := make(map[string]int)
		mergedBy := make(map[string]int)
		var durations []float64
		for _, pr := range mergedPRs {
			proposedBy[pr.User.Login]++
			if pr.MergedBy != nil {
				mergedBy[pr.MergedBy.Login]++
			}
			durations = append(durations, float64(ageDays(*pr.MergedAt, pr.CreatedAt)))
		}
		b.WriteString("- Proposed by: " + joinCounts(proposedBy) + "\n")
		b.WriteString("- Merged by: " + joinCounts(mergedBy) + "\n")
		if q, ok := quantileSummary(durations); ok {
			fmt.Fprintf(&b, "- PR duration quantiles (days): %s\n", q)
		}
	}

	if len(cfg.Members) > 0 {
		r.renderMemberWorkloads(&b, report, since)
	}

	return b.String()
}

// renderMemberWorkloads emits the per-member section: open workload,
// blocked assignments and window activity, each count linked to the
// matching GitHub search scoped to the covered repositories.
func (r *Renderer) renderMemberWorkloads(b *strings.Builder, report *domain.Report, since time.Time) {
	cfg := report.Config
	fmt.Fprintf(b, "##### Member workloads (%d days window)\n", cfg.RecentDays)
	scope := make([]string, 0, len(report.RepoNames()))
	for _, name := range report.RepoNames() {
		scope = append(scope, "repo:"+name)
	}
	scopeQuery := strings.Join(scope, " ")
	sinceDate := since.Format("2006-01-02")

	for _, m := range cfg.Members.Sorted() {
		openIssues, blocked := 0, 0
		for _, i := range report.OpenIP {
			if i.IsPullRequest || !i.AssignedTo(m) {
				continue
			}
			openIssues++
			if i.HasLabel("blocked") {
				blocked++
			}
		}
		authoredPRs, assignedPRs := 0, 0
		for _, pr := range report.OpenPRs {
			if pr.User.Login == m {
				authoredPRs++
			}
			if pr.AssignedTo(m) {
				assignedPRs++
			}
		}
		openPRs := authoredPRs + assignedPRs

		newAssigned, newClosed := 0, 0
		for _, list := range [][]*domain.Issue{report.ActiveIssues, report.ActivePRs} {
			for _, i := range list {
				if !i.AssignedTo(m) {
					continue
				}
				if !i.CreatedAt.Before(since) {
					newAssigned++
				}
				if i.ClosedAt != nil && !i.ClosedAt.Before(since) {
					newClosed++
				}
			}
		}

		fmt.Fprintf(b,
			"- %s: [%d open issues](%s), [%d open PRs](%s), [%d blocked](%s), [%d newly assigned](%s), [%d newly closed](%s)\n",
			sanitizeMD(m),
			openIssues, searchURL(scopeQuery, "is:issue is:open assignee:"+m),
			openPRs, searchURL(scopeQuery, "is:pr is:open involves:"+m),
			blocked, searchURL(scopeQuery, "is:issue is:open assignee:"+m+" label:blocked"),
			newAssigned, searchURL(scopeQuery, "assignee:"+m+" created:>="+sinceDate),
			newClosed, searchURL(scopeQuery, "assignee:"+m+" closed:>="+sinceDate))
	}
}

func searchURL(scope, query string) string {
	q := query
	if scope != "" {
		q = scope + " " + query
	}
	return "https://github.com/search?q=" + url.QueryEscape(q)
}

// ageDays returns the age in whole days of t as of now.
func ageDays(now, t time.Time) int {
	return int(now.Sub(t) / (24 * time.Hour))
}

// joinCounts renders a leaderboard, highest count first. Ties are
// ordered by login so that rendering the same report twice yields
// identical output; the tie order carries no meaning.
func joinCounts(counts map[string]int) string {
	type entry struct {
		login string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for login, count := range counts {
		entries = append(entries, entry{login, count})
	}
	sort.Slice(entries, func(a, z int) bool {
		if entries[a].count != entries[z].count {
			return entries[a].count > entries[z].count
		}
		return entries[a].login < entries[z].login
	})
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s (%d)", sanitizeMD(e.login), e.count))
	}
	return strings.Join(parts, ", ")
}

// quantileSummary formats the quartile cut points of the data. Below
// two data points there is nothing meaningful to summarize and the
// second return value is false.
func quantileSummary(data []float64) (string, bool) {
	if len(data) < 2 {
		return "", false
	}
	q, err := stats.Quartile(data)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("[%g, %g, %g]", q.Q1, q.Q2, q.Q3), true
}

var mdEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)

// sanitizeMD escapes characters that would otherwise introduce
// markdown link syntax when embedded into the digest.
func sanitizeMD(s string) string {
	return mdEscaper.Replace(s)
}
