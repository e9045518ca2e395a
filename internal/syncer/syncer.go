// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"project-sync/internal/database"
	gh "project-sync/internal/github"
	"project-sync/internal/lock"
	"project-sync/internal/model"
)

const cycleLockName = "sync-cycle"

// errUnlinked marks a project that lost its remote link while its snapshot was in flight.
var errUnlinked = errors.New("project unlinked during sync")

// RemoteClient is the part of the remote API the syncer depends on.
type RemoteClient interface {
	GetRepository(ctx context.Context, owner, name string) (*model.ApiProject, error)
	GetCommitCount(ctx context.Context, owner, name string, since time.Time) (int, error)
}

// Locker keeps concurrent service replicas from running the same sync cycle.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (*lock.Lease, error)
}

// Syncer orchestrates the fetching of both sync channels for every linked project.
type Syncer struct {
	dbpool       *pgxpool.Pool
	remote       RemoteClient
	logger       *slog.Logger
	syncInterval time.Duration
	concurrency  int
	defaultSince time.Time
	locker       Locker
	lockTTL      time.Duration
	now          func() time.Time
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(dbpool *pgxpool.Pool, remote RemoteClient, logger *slog.Logger, interval time.Duration, concurrency int, defaultSince time.Time) *Syncer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Syncer{
		dbpool:       dbpool,
		remote:       remote,
		logger:       logger,
		syncInterval: interval,
		concurrency:  concurrency,
		defaultSince: defaultSince,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// UseLock makes every cycle take the shared cycle lock first. Cycles that
// find it held are skipped. The TTL bounds how long a crashed holder blocks others.
func (s *Syncer) UseLock(l Locker, ttl time.Duration) {
	s.locker = l
	s.lockTTL = ttl
}

// Start begins the continuous synchronization process.
func (s *Syncer) Start(ctx context.Context) {
	s.logger.Info("Starting syncer", "interval", s.syncInterval.String(), "concurrency", s.concurrency)
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	s.runSyncCycle(ctx) // Initial sync

	for {
		select {
		case <-ticker.C:
			s.runSyncCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("Syncer shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runSyncCycle performs a synchronization pass for all registered projects concurrently.
func (s *Syncer) runSyncCycle(ctx context.Context) {
	ran, err := s.withCycleLock(ctx, func() error {
		s.logger.Info("Starting new sync cycle")
		return s.SyncAll(ctx, database.New(s.dbpool))
	})
	switch {
	case err != nil:
		s.logger.Error("Sync cycle finished with an error", "error", err)
	case !ran:
		s.logger.Info("Sync cycle skipped, another instance holds the lock")
	default:
		s.logger.Info("Sync cycle finished")
	}
}

// withCycleLock runs fn while holding the cycle lock, if one is configured.
// It reports false without calling fn when the lock is held elsewhere.
func (s *Syncer) withCycleLock(ctx context.Context, fn func() error) (bool, error) {
	if s.locker == nil {
		return true, fn()
	}

	lease, err := s.locker.Acquire(ctx, cycleLockName, s.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() {
		// The cycle context may already be cancelled on shutdown.
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release sync cycle lock", "error", err)
		}
	}()

	return true, fn()
}

// SyncAll syncs every project that is linked to the remote service with sync enabled.
// Per-project failures are recorded in the project's fetch slots, not returned.
func (s *Syncer) SyncAll(ctx context.Context, q database.Querier) error {
	rows, err := q.ListProjects(ctx)
	if err != nil {
		return err
	}
	projects := database.ProjectsFromRows(rows, func(id model.ProjectID, err error) {
		s.logger.Error("Skipping unreadable project record", "project_id", id.String(), "error", err)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, p := range projects {
		if !syncEnabled(p) {
			s.logger.Debug("Skipping project without automatic sync", "project_id", p.ID.String())
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			s.SyncProject(gctx, q, p)
			return nil
		})
	}

	return g.Wait()
}

// SyncProject runs both channels for p. The channels share nothing but the
// remote coordinates, so a failure on one never blocks or rewrites the other.
func (s *Syncer) SyncProject(ctx context.Context, q database.Querier, p *model.Project) {
	logger := s.logger.With("project_id", p.ID.String(), "title", p.Title)
	logger.Info("Syncing project")

	owner, name, parseErr := remoteCoordinates(p)

	projectErr := parseErr
	if projectErr == nil {
		projectErr = s.fetchProjectData(ctx, p, owner, name, logger)
	}
	s.record(ctx, q, p.ID, model.ChannelProjectData, projectErr, logger)

	gitbutlerErr := parseErr
	if gitbutlerErr == nil {
		gitbutlerErr = s.fetchGitButlerData(ctx, q, p, owner, name, logger)
	}
	s.record(ctx, q, p.ID, model.ChannelGitButlerData, gitbutlerErr, logger)
}

// fetchProjectData checks the remote history since the last successful fetch of this channel.
func (s *Syncer) fetchProjectData(ctx context.Context, p *model.Project, owner, name string, logger *slog.Logger) error {
	since := s.defaultSince
	if last, ok := p.LastFetch(model.ChannelProjectData).(model.Fetched); ok {
		since = last.At
	}
	logger.Info("Fetching project data since", "timestamp", since.Format(time.RFC3339))

	n, err := s.remote.GetCommitCount(ctx, owner, name, since)
	if err != nil {
		return err
	}
	// The channel slot only stores success or failure; the count goes to the log.
	logger.Info("Fetched project data", "new_commits", n)
	return nil
}

// fetchGitButlerData refreshes the remote snapshot. The stored sync flag wins
// over the one read at cycle start, and a project unlinked in the meantime
// stays unlinked.
func (s *Syncer) fetchGitButlerData(ctx context.Context, q database.Querier, p *model.Project, owner, name string, logger *slog.Logger) error {
	snapshot, err := s.remote.GetRepository(ctx, owner, name)
	if err != nil {
		return err
	}
	snapshot.Sync = p.API.Sync
	if snapshot.GitURL == "" {
		snapshot.GitURL = p.API.GitURL
	}

	if _, err := database.RefreshAPI(ctx, q, p.ID, snapshot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errUnlinked
		}
		return err
	}
	logger.Info("Refreshed remote snapshot", "repository_id", snapshot.RepositoryID)
	return nil
}

// record stores the outcome of one channel. Storage failures are logged;
// the next cycle writes a fresh result anyway.
func (s *Syncer) record(ctx context.Context, q database.Querier, id model.ProjectID, ch model.SyncChannel, fetchErr error, logger *slog.Logger) {
	if errors.Is(fetchErr, context.Canceled) {
		return
	}
	if errors.Is(fetchErr, errUnlinked) {
		logger.Info("Project was unlinked during sync, nothing recorded", "channel", string(ch))
		return
	}
	result := model.NewFetchResult(s.now(), fetchErr)
	if fetchErr != nil {
		logger.Error("Fetch failed", "channel", string(ch), "error", fetchErr)
	}
	if _, err := database.SetLastFetch(ctx, q, id, ch, result); err != nil {
		logger.Error("Failed to record fetch result", "channel", string(ch), "error", err)
	}
}

func syncEnabled(p *model.Project) bool {
	return p.API != nil && p.API.Sync
}

func remoteCoordinates(p *model.Project) (string, string, error) {
	return gh.ParseRemoteURL(p.API.GitURL)
}
