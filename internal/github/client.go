// internal/github/client.go
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"project-sync/internal/model"
)

const (
	// maxRetries is the total number of attempts made for a single request.
	maxRetries = 3
	// retryBackoff is the wait before the second attempt; it doubles after each failure.
	retryBackoff = 100 * time.Millisecond
	// maxRateLimitWait caps how long we sleep for a rate limit reset before giving up.
	maxRateLimitWait = 2 * time.Minute
)

// Client is a wrapper around the go-github client.
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
// Outgoing requests are paced to requestsPerSecond; zero or less disables pacing.
func NewClient(token string, requestsPerSecond float64, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &Client{
		gh:      github.NewClient(tc),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// GetRepository fetches repository details and translates them to an ApiProject snapshot.
// The returned snapshot has Sync unset; the caller decides whether to carry its own flag over.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*model.ApiProject, error) {
	var repo *github.Repository
	err := c.withRetry(ctx, "get repository", func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		repo, resp, err = c.gh.Repositories.Get(ctx, owner, name)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return toApiProject(repo), nil
}

// GetCommitCount counts the commits pushed since a given time.
// It handles API pagination transparently.
func (c *Client) GetCommitCount(ctx context.Context, owner, name string, since time.Time) (int, error) {
	count := 0

	opts := &github.CommitsListOptions{
		Since: since,
		ListOptions: github.ListOptions{
			PerPage: 100, // Max per page
		},
	}

	for {
		c.logger.Debug("Fetching commits page", "owner", owner, "repo", name, "page", opts.Page)

		var (
			commits []*github.RepositoryCommit
			resp    *github.Response
		)
		err := c.withRetry(ctx, "list commits", func() (*github.Response, error) {
			var err error
			commits, resp, err = c.gh.Repositories.ListCommits(ctx, owner, name, opts)
			return resp, err
		})
		if err != nil {
			return 0, err
		}

		count += len(commits)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return count, nil
}

// withRetry runs call up to maxRetries times. Server errors back off exponentially;
// primary rate limits wait for the advertised reset. Anything else fails immediately.
func (c *Client) withRetry(ctx context.Context, op string, call func() (*github.Response, error)) error {
	backoff := retryBackoff
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return werr
		}
		var resp *github.Response
		resp, err = call()
		if err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}

		var wait time.Duration
		var rateErr *github.RateLimitError
		switch {
		case errors.As(err, &rateErr):
			wait = time.Until(rateErr.Rate.Reset.Time)
			if wait > maxRateLimitWait {
				return err
			}
			if wait < 0 {
				wait = 0
			}
		case resp != nil && resp.StatusCode >= http.StatusInternalServerError:
			wait = backoff
			backoff *= 2
		default:
			return err
		}

		c.logger.Warn("Retrying GitHub request", "op", op, "attempt", attempt, "wait", wait.String(), "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}

// toApiProject translates a github.Repository object to a model.ApiProject snapshot.
func toApiProject(r *github.Repository) *model.ApiProject {
	return &model.ApiProject{
		Name:         r.GetName(),
		Description:  r.Description,
		RepositoryID: strconv.FormatInt(r.GetID(), 10),
		GitURL:       r.GetCloneURL(),
		CreatedAt:    formatTimestamp(r.CreatedAt),
		UpdatedAt:    formatTimestamp(r.UpdatedAt),
	}
}

func formatTimestamp(ts *github.Timestamp) string {
	if ts == nil {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
