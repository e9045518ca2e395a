// internal/syncer/syncer_test.go
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"project-sync/internal/database"
	"project-sync/internal/database/dbtest"
	"project-sync/internal/lock"
	"project-sync/internal/model"
)

// MockRemote is a mock of the RemoteClient interface.
type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) GetRepository(ctx context.Context, owner, name string) (*model.ApiProject, error) {
	args := m.Called(ctx, owner, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ApiProject), args.Error(1)
}
func (m *MockRemote) GetCommitCount(ctx context.Context, owner, name string, since time.Time) (int, error) {
	args := m.Called(ctx, owner, name, since)
	return args.Int(0), args.Error(1)
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestSyncer(remote RemoteClient) *Syncer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &Syncer{
		remote:       remote,
		logger:       logger,
		concurrency:  2,
		defaultSince: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		now:          func() time.Time { return fixedNow },
	}
}

func linkedProject(gitURL string, syncOn bool) *model.Project {
	return &model.Project{
		ID:    model.NewProjectID(),
		Title: "app",
		Path:  "/src/app",
		API:   &model.ApiProject{Name: "app", GitURL: gitURL, Sync: syncOn},
	}
}

func decodeFetch(t *testing.T, data []byte) model.FetchResult {
	t.Helper()
	r, err := model.UnmarshalFetchResult(data)
	require.NoError(t, err)
	return r
}

func TestSyncer_SyncProject(t *testing.T) {
	ctx := context.Background()

	t.Run("records success on both channels and refreshes the snapshot", func(t *testing.T) {
		p := linkedProject("git@github.com:o/app.git", true)
		remote := new(MockRemote)
		mockQ := new(dbtest.MockQuerier)
		s := newTestSyncer(remote)

		remote.On("GetCommitCount", ctx, "o", "app", s.defaultSince).Return(4, nil).Once()
		remote.On("GetRepository", ctx, "o", "app").Return(&model.ApiProject{Name: "app", RepositoryID: "9", GitURL: "https://github.com/o/app.git"}, nil).Once()

		mockQ.On("RefreshProjectAPI", ctx, mock.MatchedBy(func(arg database.RefreshProjectAPIParams) bool {
			var api model.ApiProject
			return json.Unmarshal(arg.Api, &api) == nil && api.Sync && api.RepositoryID == "9"
		})).Return(database.Project{ID: database.UUID(p.ID)}, nil).Once()
		mockQ.On("UpdateProjectDataLastFetch", ctx, mock.MatchedBy(func(arg database.UpdateProjectDataLastFetchParams) bool {
			return assert.ObjectsAreEqual(model.Fetched{At: fixedNow}, decodeFetch(t, arg.ProjectDataLastFetch))
		})).Return(database.Project{ID: database.UUID(p.ID)}, nil).Once()
		mockQ.On("UpdateGitbutlerDataLastFetch", ctx, mock.MatchedBy(func(arg database.UpdateGitbutlerDataLastFetchParams) bool {
			return assert.ObjectsAreEqual(model.Fetched{At: fixedNow}, decodeFetch(t, arg.GitbutlerDataLastFetch))
		})).Return(database.Project{ID: database.UUID(p.ID)}, nil).Once()

		s.SyncProject(ctx, mockQ, p)

		remote.AssertExpectations(t)
		mockQ.AssertExpectations(t)
	})

	t.Run("a failing channel does not affect the other", func(t *testing.T) {
		p := linkedProject("https://github.com/o/app.git", true)
		lastOK := time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)
		p.ProjectDataLastFetch = model.Fetched{At: lastOK}

		remote := new(MockRemote)
		mockQ := new(dbtest.MockQuerier)
		s := newTestSyncer(remote)

		remote.On("GetCommitCount", ctx, "o", "app", lastOK).Return(0, nil).Once()
		remote.On("GetRepository", ctx, "o", "app").Return(nil, errors.New("connection refused")).Once()

		mockQ.On("UpdateProjectDataLastFetch", ctx, mock.MatchedBy(func(arg database.UpdateProjectDataLastFetchParams) bool {
			return assert.ObjectsAreEqual(model.Fetched{At: fixedNow}, decodeFetch(t, arg.ProjectDataLastFetch))
		})).Return(database.Project{ID: database.UUID(p.ID)}, nil).Once()
		mockQ.On("UpdateGitbutlerDataLastFetch", ctx, mock.MatchedBy(func(arg database.UpdateGitbutlerDataLastFetchParams) bool {
			return assert.ObjectsAreEqual(model.FetchFailed{At: fixedNow, Message: "connection refused"}, decodeFetch(t, arg.GitbutlerDataLastFetch))
		})).Return(database.Project{ID: database.UUID(p.ID)}, nil).Once()

		s.SyncProject(ctx, mockQ, p)

		remote.AssertExpectations(t)
		mockQ.AssertExpectations(t)
		mockQ.AssertNotCalled(t, "RefreshProjectAPI", mock.Anything, mock.Anything)
	})

	t.Run("a project unlinked mid-cycle is left alone", func(t *testing.T) {
		p := linkedProject("https://github.com/o/app.git", true)
		remote := new(MockRemote)
		mockQ := new(dbtest.MockQuerier)
		s := newTestSyncer(remote)

		remote.On("GetCommitCount", ctx, "o", "app", s.defaultSince).Return(1, nil).Once()
		remote.On("GetRepository", ctx, "o", "app").Return(&model.ApiProject{Name: "app", RepositoryID: "9"}, nil).Once()

		// The guarded refresh matches no row once api is NULL.
		mockQ.On("RefreshProjectAPI", ctx, mock.Anything).Return(database.Project{}, pgx.ErrNoRows).Once()
		mockQ.On("UpdateProjectDataLastFetch", ctx, mock.Anything).Return(database.Project{ID: database.UUID(p.ID)}, nil).Once()

		s.SyncProject(ctx, mockQ, p)

		remote.AssertExpectations(t)
		mockQ.AssertExpectations(t)
		mockQ.AssertNotCalled(t, "UpdateGitbutlerDataLastFetch", mock.Anything, mock.Anything)
		mockQ.AssertNotCalled(t, "UpdateProjectAPI", mock.Anything, mock.Anything)
	})

	t.Run("a pointer success still moves the since cursor", func(t *testing.T) {
		p := linkedProject("https://github.com/o/app.git", true)
		lastOK := time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)
		p.ProjectDataLastFetch = &model.Fetched{At: lastOK}

		remote := new(MockRemote)
		mockQ := new(dbtest.MockQuerier)
		s := newTestSyncer(remote)

		remote.On("GetCommitCount", ctx, "o", "app", lastOK).Return(0, nil).Once()
		remote.On("GetRepository", ctx, "o", "app").Return(nil, errors.New("rate limited")).Once()
		mockQ.On("UpdateProjectDataLastFetch", ctx, mock.Anything).Return(database.Project{ID: database.UUID(p.ID)}, nil).Once()
		mockQ.On("UpdateGitbutlerDataLastFetch", ctx, mock.Anything).Return(database.Project{ID: database.UUID(p.ID)}, nil).Once()

		s.SyncProject(ctx, mockQ, p)

		remote.AssertExpectations(t)
	})

	t.Run("an unparsable git url fails both channels", func(t *testing.T) {
		p := linkedProject("not-a-remote", true)
		remote := new(MockRemote)
		mockQ := new(dbtest.MockQuerier)
		s := newTestSyncer(remote)

		mockQ.On("UpdateProjectDataLastFetch", ctx, mock.MatchedBy(func(arg database.UpdateProjectDataLastFetchParams) bool {
			_, failed := decodeFetch(t, arg.ProjectDataLastFetch).(model.FetchFailed)
			return failed
		})).Return(database.Project{ID: database.UUID(p.ID)}, nil).Once()
		mockQ.On("UpdateGitbutlerDataLastFetch", ctx, mock.MatchedBy(func(arg database.UpdateGitbutlerDataLastFetchParams) bool {
			_, failed := decodeFetch(t, arg.GitbutlerDataLastFetch).(model.FetchFailed)
			return failed
		})).Return(database.Project{ID: database.UUID(p.ID)}, nil).Once()

		s.SyncProject(ctx, mockQ, p)

		mockQ.AssertExpectations(t)
		remote.AssertNotCalled(t, "GetRepository", mock.Anything, mock.Anything, mock.Anything)
		remote.AssertNotCalled(t, "GetCommitCount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSyncer_SyncAll(t *testing.T) {
	ctx := context.Background()

	t.Run("skips unlinked and sync-disabled projects", func(t *testing.T) {
		unlinked := &model.Project{ID: model.NewProjectID(), Title: "local only", Path: "/a"}
		disabled := linkedProject("https://github.com/o/off.git", false)

		var rows []database.Project
		for _, p := range []*model.Project{unlinked, disabled} {
			params, err := database.CreateParamsFromProject(p)
			require.NoError(t, err)
			rows = append(rows, database.Project{
				ID: params.ID, Title: params.Title, Path: params.Path,
				PreferredKey: params.PreferredKey, Api: params.Api,
			})
		}

		remote := new(MockRemote)
		mockQ := new(dbtest.MockQuerier)
		mockQ.On("ListProjects", ctx).Return(rows, nil).Once()

		err := newTestSyncer(remote).SyncAll(ctx, mockQ)

		require.NoError(t, err)
		mockQ.AssertExpectations(t)
		mockQ.AssertNotCalled(t, "UpdateProjectDataLastFetch", mock.Anything, mock.Anything)
		mockQ.AssertNotCalled(t, "UpdateGitbutlerDataLastFetch", mock.Anything, mock.Anything)
	})

	t.Run("an unreadable record does not stop the others", func(t *testing.T) {
		good := linkedProject("https://github.com/o/app.git", true)
		broken := linkedProject("https://github.com/o/broken.git", true)

		var rows []database.Project
		for _, p := range []*model.Project{good, broken} {
			params, err := database.CreateParamsFromProject(p)
			require.NoError(t, err)
			rows = append(rows, database.Project{
				ID: params.ID, Title: params.Title, Path: params.Path,
				PreferredKey: params.PreferredKey, Api: params.Api,
			})
		}
		rows[1].PreferredKey = []byte(`"hardware"`)

		remote := new(MockRemote)
		mockQ := new(dbtest.MockQuerier)
		s := newTestSyncer(remote)

		mockQ.On("ListProjects", ctx).Return(rows, nil).Once()
		remote.On("GetCommitCount", mock.Anything, "o", "app", s.defaultSince).Return(3, nil).Once()
		remote.On("GetRepository", mock.Anything, "o", "app").Return(&model.ApiProject{Name: "app", RepositoryID: "9"}, nil).Once()
		mockQ.On("RefreshProjectAPI", mock.Anything, mock.Anything).Return(rows[0], nil).Once()
		mockQ.On("UpdateProjectDataLastFetch", mock.Anything, mock.Anything).Return(rows[0], nil).Once()
		mockQ.On("UpdateGitbutlerDataLastFetch", mock.Anything, mock.Anything).Return(rows[0], nil).Once()

		err := s.SyncAll(ctx, mockQ)

		require.NoError(t, err)
		remote.AssertExpectations(t)
		mockQ.AssertExpectations(t)
		remote.AssertNotCalled(t, "GetCommitCount", mock.Anything, "o", "broken", mock.Anything)
	})

	t.Run("returns list errors", func(t *testing.T) {
		mockQ := new(dbtest.MockQuerier)
		dbError := errors.New("unexpected database error")
		mockQ.On("ListProjects", ctx).Return([]database.Project(nil), dbError).Once()

		err := newTestSyncer(new(MockRemote)).SyncAll(ctx, mockQ)

		assert.Equal(t, dbError, err)
	})
}

func TestSyncer_WithCycleLock(t *testing.T) {
	ctx := context.Background()

	t.Run("runs directly without a locker", func(t *testing.T) {
		s := newTestSyncer(new(MockRemote))
		calls := 0

		ran, err := s.withCycleLock(ctx, func() error { calls++; return nil })

		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, 1, calls)
	})

	t.Run("skips the cycle while another instance holds the lock", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()
		locker := lock.NewRedisLocker(client)

		s := newTestSyncer(new(MockRemote))
		s.UseLock(locker, time.Minute)

		held, err := locker.Acquire(ctx, cycleLockName, time.Minute)
		require.NoError(t, err)

		ran, err := s.withCycleLock(ctx, func() error { t.Fatal("cycle must not run"); return nil })
		require.NoError(t, err)
		assert.False(t, ran)

		require.NoError(t, held.Release(ctx))
		ran, err = s.withCycleLock(ctx, func() error { return nil })
		require.NoError(t, err)
		assert.True(t, ran)

		// The lease is returned after the cycle.
		_, err = locker.Acquire(ctx, cycleLockName, time.Minute)
		assert.NoError(t, err)
	})

	t.Run("passes through cycle errors", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		s := newTestSyncer(new(MockRemote))
		s.UseLock(lock.NewRedisLocker(client), time.Minute)
		cycleErr := errors.New("list failed")

		ran, err := s.withCycleLock(ctx, func() error { return cycleErr })

		assert.True(t, ran)
		assert.Equal(t, cycleErr, err)
	})
}
