// Package config loads and validates the solidation configuration:
// the YAML file describing which repositories and organizations to
// cover, and the process environment carrying the access token.
package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

var (
	loginRe = regexp.MustCompile(`^[-_A-Za-z0-9]+$`)
	repoRe  = regexp.MustCompile(`^[-_A-Za-z0-9]+/[-_.A-Za-z0-9]+$`)
)

// MemberFetch is the fetch_members value of an organization spec:
// either a boolean (accept every member) or a pattern string matched
// anchored against the full login.
type MemberFetch struct {
	All     bool
	Pattern *regexp.Regexp
}

// UnmarshalYAML accepts a YAML boolean or a pattern string.
func (m *MemberFetch) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!bool":
		return value.Decode(&m.All)
	case "!!str":
		var pattern string
		if err := value.Decode(&pattern); err != nil {
			return err
		}
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return fmt.Errorf("invalid fetch_members pattern %q: %w", pattern, err)
		}
		m.Pattern = re
		return nil
	default:
		return fmt.Errorf("fetch_members must be a boolean or a pattern string, got %s", value.Tag)
	}
}

// Enabled reports whether member discovery should run for the org.
func (m MemberFetch) Enabled() bool {
	return m.All || m.Pattern != nil
}

// Accepts reports whether a discovered login should be added to the
// member set.
func (m MemberFetch) Accepts(login string) bool {
	if m.All {
		return true
	}
	return m.Pattern != nil && m.Pattern.MatchString(login)
}

// OrgSpec describes one covered organization. A bare YAML string is
// shorthand for an org with member fetching and activity filtering off.
type OrgSpec struct {
	Name               string      `yaml:"name"`
	FetchMembers       MemberFetch `yaml:"fetch_members"`
	MemberActivityOnly bool        `yaml:"member_activity_only"`
}

func (o *OrgSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&o.Name)
	}
	type plain OrgSpec
	return value.Decode((*plain)(o))
}

// RepoSpec describes one explicitly covered repository, with the same
// string shorthand as OrgSpec.
type RepoSpec struct {
	Name               string `yaml:"name"`
	MemberActivityOnly bool   `yaml:"member_activity_only"`
}

func (r *RepoSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&r.Name)
	}
	type plain RepoSpec
	return value.Decode((*plain)(r))
}

// Members is the set of known member logins. It may grow during a run
// (organization member discovery) but never shrinks.
type Members map[string]struct{}

func (m *Members) UnmarshalYAML(value *yaml.Node) error {
	var logins []string
	if err := value.Decode(&logins); err != nil {
		return err
	}
	*m = make(Members, len(logins))
	for _, login := range logins {
		(*m)[login] = struct{}{}
	}
	return nil
}

// Add records a login. Adding a known login is a no-op.
func (m Members) Add(login string) {
	m[login] = struct{}{}
}

func (m Members) Contains(login string) bool {
	_, ok := m[login]
	return ok
}

// Sorted returns the member logins in alphabetical order.
func (m Members) Sorted() []string {
	logins := make([]string, 0, len(m))
	for login := range m {
		logins = append(logins, login)
	}
	sort.Strings(logins)
	return logins
}

// Configuration is the validated settings object driving one run.
type Configuration struct {
	Project         string     `yaml:"project"`
	RecentDays      int        `yaml:"recent_days"`
	Organizations   []OrgSpec  `yaml:"organizations"`
	Repositories    []RepoSpec `yaml:"repositories"`
	Members         Members    `yaml:"members"`
	NumOldestPRs    int        `yaml:"num_oldest_prs"`
	MaxRandomIssues int        `yaml:"max_random_issues"`
}

// Parse decodes a YAML document, applies defaults and validates.
func Parse(data []byte) (*Configuration, error) {
	cfg := Configuration{
		Project:         "Project",
		RecentDays:      7,
		NumOldestPRs:    10,
		MaxRandomIssues: 5,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.Members == nil {
		cfg.Members = Members{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	return Parse(data)
}

func (c *Configuration) validate() error {
	if c.RecentDays < 1 {
		return fmt.Errorf("recent_days must be positive, got %d", c.RecentDays)
	}
	if c.NumOldestPRs < 1 {
		return fmt.Errorf("num_oldest_prs must be positive, got %d", c.NumOldestPRs)
	}
	if c.MaxRandomIssues < 1 {
		return fmt.Errorf("max_random_issues must be positive, got %d", c.MaxRandomIssues)
	}
	for _, org := range c.Organizations {
		if !loginRe.MatchString(org.Name) {
			return fmt.Errorf("invalid organization name %q", org.Name)
		}
	}
	for _, repo := range c.Repositories {
		if !repoRe.MatchString(repo.Name) {
			return fmt.Errorf("invalid repository name %q, expected owner/name", repo.Name)
		}
	}
	for login := range c.Members {
		if !loginRe.MatchString(login) {
			return fmt.Errorf("invalid member login %q", login)
		}
	}
	return nil
}

// Env holds the settings read from the process environment.
type Env struct {
	GitHubToken string `env:"GITHUB_TOKEN" env-required:"true" env-description:"GitHub access token"`
}

// LoadEnv reads the process environment.
func LoadEnv() (*Env, error) {
	var e Env
	if err := cleanenv.ReadEnv(&e); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &e, nil
}
