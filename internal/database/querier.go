// internal/database/querier.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	CreateProject(ctx context.Context, arg CreateProjectParams) (Project, error)
	DeleteProject(ctx context.Context, id pgtype.UUID) (int64, error)
	GetProject(ctx context.Context, id pgtype.UUID) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	RefreshProjectAPI(ctx context.Context, arg RefreshProjectAPIParams) (Project, error)
	UpdateGitbutlerDataLastFetch(ctx context.Context, arg UpdateGitbutlerDataLastFetchParams) (Project, error)
	UpdateProjectAPI(ctx context.Context, arg UpdateProjectAPIParams) (Project, error)
	UpdateProjectDataLastFetch(ctx context.Context, arg UpdateProjectDataLastFetchParams) (Project, error)
	UpdateProjectDetails(ctx context.Context, arg UpdateProjectDetailsParams) (Project, error)
}

var _ Querier = (*Queries)(nil)
