// internal/github/remote.go
package github

import (
	"regexp"
	"strings"

	custom_errors "project-sync/internal/errors"
)

var remoteSeparator = regexp.MustCompile(`[/:]`)

// ParseRemoteURL extracts owner and repository name from a git remote URL.
// Both https://github.com/owner/repo.git and git@github.com:owner/repo.git are accepted.
func ParseRemoteURL(remoteURL string) (owner, name string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(remoteURL), "/")
	trimmed = strings.TrimSuffix(trimmed, ".git")

	parts := remoteSeparator.Split(trimmed, -1)
	if len(parts) < 3 {
		return "", "", &custom_errors.ErrInvalidRepoFormat{Repo: remoteURL}
	}
	owner, name = parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || name == "" {
		return "", "", &custom_errors.ErrInvalidRepoFormat{Repo: remoteURL}
	}
	return owner, name, nil
}
