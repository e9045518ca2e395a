// internal/database/dbtest/querier.go
package dbtest

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/mock"

	"project-sync/internal/database"
)

// MockQuerier is a mock of the database.Querier interface.
type MockQuerier struct {
	mock.Mock
}

var _ database.Querier = (*MockQuerier)(nil)

func (m *MockQuerier) CreateProject(ctx context.Context, arg database.CreateProjectParams) (database.Project, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Project), args.Error(1)
}
func (m *MockQuerier) DeleteProject(ctx context.Context, id pgtype.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) GetProject(ctx context.Context, id pgtype.UUID) (database.Project, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(database.Project), args.Error(1)
}
func (m *MockQuerier) ListProjects(ctx context.Context) ([]database.Project, error) {
	args := m.Called(ctx)
	return args.Get(0).([]database.Project), args.Error(1)
}
func (m *MockQuerier) RefreshProjectAPI(ctx context.Context, arg database.RefreshProjectAPIParams) (database.Project, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Project), args.Error(1)
}
func (m *MockQuerier) UpdateGitbutlerDataLastFetch(ctx context.Context, arg database.UpdateGitbutlerDataLastFetchParams) (database.Project, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Project), args.Error(1)
}
func (m *MockQuerier) UpdateProjectAPI(ctx context.Context, arg database.UpdateProjectAPIParams) (database.Project, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Project), args.Error(1)
}
func (m *MockQuerier) UpdateProjectDataLastFetch(ctx context.Context, arg database.UpdateProjectDataLastFetchParams) (database.Project, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Project), args.Error(1)
}
func (m *MockQuerier) UpdateProjectDetails(ctx context.Context, arg database.UpdateProjectDetailsParams) (database.Project, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.Project), args.Error(1)
}
