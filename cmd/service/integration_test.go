//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"project-sync/internal/api"
	"project-sync/internal/database"
	"project-sync/internal/model"
	"project-sync/internal/syncer"
)

func setupTestDatabase(ctx context.Context, t *testing.T) (*pgxpool.Pool, func()) {
	// Start a postgres container
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	// Get the connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	m, err := migrate.New("file://../../migrations", connStr)
	require.NoError(t, err)
	err = m.Up()
	require.NoError(t, err)

	// Create a connection pool
	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	// Teardown function to be called by the test
	teardown := func() {
		dbpool.Close()
		err := pgContainer.Terminate(ctx)
		require.NoError(t, err)
	}

	return dbpool, teardown
}

// stubRemote stands in for the GitHub client; the database is the part under test here.
// beforeSnapshot, when set, runs while the snapshot is in flight.
type stubRemote struct {
	beforeSnapshot func(name string)
}

func (s stubRemote) GetRepository(ctx context.Context, owner, name string) (*model.ApiProject, error) {
	if s.beforeSnapshot != nil {
		s.beforeSnapshot(name)
	}
	return &model.ApiProject{Name: name, RepositoryID: "123", GitURL: "https://github.com/" + owner + "/" + name + ".git"}, nil
}

func (s stubRemote) GetCommitCount(ctx context.Context, owner, name string, since time.Time) (int, error) {
	return 2, nil
}

func TestProjectRegistry_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	q := database.New(dbpool)
	passphrase := "x"
	p := &model.Project{
		ID:           model.NewProjectID(),
		Title:        "gitbutler",
		Path:         "/home/u/src/gitbutler",
		PreferredKey: model.LocalKey{PrivateKeyPath: "/home/u/.ssh/id_ed25519", Passphrase: &passphrase},
		API:          &model.ApiProject{Name: "gitbutler", GitURL: "git@github.com:test-owner/test-repo.git", Sync: true},
	}

	// --- ACT ---
	params, err := database.CreateParamsFromProject(p)
	require.NoError(t, err)
	_, err = q.CreateProject(ctx, params)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	appSyncer := syncer.NewSyncer(dbpool, stubRemote{}, logger, time.Hour, 2, time.Time{})
	require.NoError(t, appSyncer.SyncAll(ctx, q))

	// --- ASSERT ---
	row, err := q.GetProject(ctx, database.UUID(p.ID))
	require.NoError(t, err)
	stored, err := database.ProjectFromRow(row)
	require.NoError(t, err)

	assert.Equal(t, p.PreferredKey, stored.PreferredKey)
	require.NotNil(t, stored.API)
	assert.Equal(t, "123", stored.API.RepositoryID)
	assert.True(t, stored.API.Sync, "local sync flag must survive a snapshot refresh")
	assert.IsType(t, model.Fetched{}, stored.ProjectDataLastFetch)
	assert.IsType(t, model.Fetched{}, stored.GitButlerDataLastFetch)

	// Overwriting one channel leaves the other untouched.
	failedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	updated, err := database.SetLastFetch(ctx, q, p.ID, model.ChannelProjectData, model.FetchFailed{At: failedAt, Message: "connection refused"})
	require.NoError(t, err)
	assert.Equal(t, model.FetchFailed{At: failedAt, Message: "connection refused"}, updated.ProjectDataLastFetch)
	assert.Equal(t, stored.GitButlerDataLastFetch, updated.GitButlerDataLastFetch)
}

func TestSyncer_UserEditsMidCycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	q := database.New(dbpool)
	unlinked := &model.Project{
		ID: model.NewProjectID(), Title: "unlinked", Path: "/src/unlinked",
		API: &model.ApiProject{Name: "unlinked", GitURL: "https://github.com/o/unlinked.git", Sync: true},
	}
	turnedOff := &model.Project{
		ID: model.NewProjectID(), Title: "turned-off", Path: "/src/turned-off",
		API: &model.ApiProject{Name: "turned-off", GitURL: "https://github.com/o/turned-off.git", Sync: true},
	}
	for _, p := range []*model.Project{unlinked, turnedOff} {
		params, err := database.CreateParamsFromProject(p)
		require.NoError(t, err)
		_, err = q.CreateProject(ctx, params)
		require.NoError(t, err)
	}

	// The user acts after the cycle has listed the projects but before the snapshot lands.
	remote := stubRemote{beforeSnapshot: func(name string) {
		switch name {
		case "unlinked":
			_, err := database.SetAPI(ctx, q, unlinked.ID, nil)
			assert.NoError(t, err)
		case "turned-off":
			off := *turnedOff.API
			off.Sync = false
			_, err := database.SetAPI(ctx, q, turnedOff.ID, &off)
			assert.NoError(t, err)
		}
	}}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	appSyncer := syncer.NewSyncer(dbpool, remote, logger, time.Hour, 1, time.Time{})
	require.NoError(t, appSyncer.SyncAll(ctx, q))

	row, err := q.GetProject(ctx, database.UUID(unlinked.ID))
	require.NoError(t, err)
	stored, err := database.ProjectFromRow(row)
	require.NoError(t, err)
	assert.Nil(t, stored.API, "an unlink during the cycle must not be undone")
	assert.Nil(t, stored.GitButlerDataLastFetch)
	assert.IsType(t, model.Fetched{}, stored.ProjectDataLastFetch)

	row, err = q.GetProject(ctx, database.UUID(turnedOff.ID))
	require.NoError(t, err)
	stored, err = database.ProjectFromRow(row)
	require.NoError(t, err)
	require.NotNil(t, stored.API)
	assert.False(t, stored.API.Sync, "turning sync off during the cycle must stick")
	assert.Equal(t, "123", stored.API.RepositoryID)
	assert.IsType(t, model.Fetched{}, stored.GitButlerDataLastFetch)
}

func TestHTTPAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	server := httptest.NewServer(api.NewRouter(database.New(dbpool), logger, time.Hour, nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/v1/projects/" + model.NewProjectID().String())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := `{"title":"app","path":"/src/app"}`
	resp, err = http.Post(server.URL+"/v1/projects", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(server.URL+"/v1/projects", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "path is unique")
}
