package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// GitHubAdapter reads repository activity for an asset's main codebase.
// Anonymous access works at 60 requests per hour; a token raises that and is
// sent as a bearer header when configured.
type GitHubAdapter struct {
	BaseAdapter
}

func newGitHub(d Descriptor, key, secret string) (Adapter, error) {
	a := &GitHubAdapter{
		BaseAdapter: newBase("github", d, map[string]string{
			"developer": "/repos/{owner}/{repo}",
		}, key, secret),
	}
	a.authorize = func(req *http.Request) {
		req.Header.Set("Accept", "application/vnd.github+json")
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}
	return a, nil
}

func (a *GitHubAdapter) Transform(raw []byte, dataType string) (any, error) {
	switch dataType {
	case "developer":
		var repo struct {
			FullName        string `json:"full_name"`
			StargazersCount int    `json:"stargazers_count"`
			ForksCount      int    `json:"forks_count"`
			OpenIssuesCount int    `json:"open_issues_count"`
			PushedAt        string `json:"pushed_at"`
		}
		if err := json.Unmarshal(raw, &repo); err != nil {
			return nil, err
		}
		if repo.FullName == "" {
			return nil, fmt.Errorf("response carries no repository")
		}
		return Developer{
			Repo:          repo.FullName,
			Stars:         repo.StargazersCount,
			Forks:         repo.ForksCount,
			OpenIssues:    repo.OpenIssuesCount,
			LastCommitUTC: repo.PushedAt,
		}, nil
	}
	return nil, fmt.Errorf("unsupported data type %q", dataType)
}

var _ Adapter = (*GitHubAdapter)(nil)
