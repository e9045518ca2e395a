// internal/database/projects.sql.go
package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const projectColumns = `id, title, description, path, preferred_key, api, project_data_last_fetch, gitbutler_data_last_fetch, created_at, updated_at`

func scanProject(row interface{ Scan(dest ...any) error }) (Project, error) {
	var i Project
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Description,
		&i.Path,
		&i.PreferredKey,
		&i.Api,
		&i.ProjectDataLastFetch,
		&i.GitbutlerDataLastFetch,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createProject = `-- name: CreateProject :one
INSERT INTO projects (
    id, title, description, path, preferred_key, api, project_data_last_fetch, gitbutler_data_last_fetch
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8
)
RETURNING ` + projectColumns

type CreateProjectParams struct {
	ID                     pgtype.UUID `json:"id"`
	Title                  string      `json:"title"`
	Description            pgtype.Text `json:"description"`
	Path                   string      `json:"path"`
	PreferredKey           []byte      `json:"preferred_key"`
	Api                    []byte      `json:"api"`
	ProjectDataLastFetch   []byte      `json:"project_data_last_fetch"`
	GitbutlerDataLastFetch []byte      `json:"gitbutler_data_last_fetch"`
}

func (q *Queries) CreateProject(ctx context.Context, arg CreateProjectParams) (Project, error) {
	row := q.db.QueryRow(ctx, createProject,
		arg.ID,
		arg.Title,
		arg.Description,
		arg.Path,
		arg.PreferredKey,
		arg.Api,
		arg.ProjectDataLastFetch,
		arg.GitbutlerDataLastFetch,
	)
	return scanProject(row)
}

const deleteProject = `-- name: DeleteProject :execrows
DELETE FROM projects WHERE id = $1
`

func (q *Queries) DeleteProject(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteProject, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getProject = `-- name: GetProject :one
SELECT ` + projectColumns + ` FROM projects WHERE id = $1
`

func (q *Queries) GetProject(ctx context.Context, id pgtype.UUID) (Project, error) {
	row := q.db.QueryRow(ctx, getProject, id)
	return scanProject(row)
}

const listProjects = `-- name: ListProjects :many
SELECT ` + projectColumns + ` FROM projects ORDER BY created_at, id
`

func (q *Queries) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := q.db.Query(ctx, listProjects)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Project
	for rows.Next() {
		i, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateProjectDetails = `-- name: UpdateProjectDetails :one
UPDATE projects
SET title = $2, description = $3, preferred_key = $4, updated_at = NOW()
WHERE id = $1
RETURNING ` + projectColumns

type UpdateProjectDetailsParams struct {
	ID           pgtype.UUID `json:"id"`
	Title        string      `json:"title"`
	Description  pgtype.Text `json:"description"`
	PreferredKey []byte      `json:"preferred_key"`
}

func (q *Queries) UpdateProjectDetails(ctx context.Context, arg UpdateProjectDetailsParams) (Project, error) {
	row := q.db.QueryRow(ctx, updateProjectDetails,
		arg.ID,
		arg.Title,
		arg.Description,
		arg.PreferredKey,
	)
	return scanProject(row)
}

const updateProjectAPI = `-- name: UpdateProjectAPI :one
UPDATE projects
SET api = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + projectColumns

type UpdateProjectAPIParams struct {
	ID  pgtype.UUID `json:"id"`
	Api []byte      `json:"api"`
}

func (q *Queries) UpdateProjectAPI(ctx context.Context, arg UpdateProjectAPIParams) (Project, error) {
	row := q.db.QueryRow(ctx, updateProjectAPI, arg.ID, arg.Api)
	return scanProject(row)
}

const refreshProjectAPI = `-- name: RefreshProjectAPI :one
UPDATE projects
SET api = jsonb_set($2::jsonb, '{sync}', COALESCE(api->'sync', 'false'::jsonb)), updated_at = NOW()
WHERE id = $1 AND api IS NOT NULL
RETURNING ` + projectColumns

type RefreshProjectAPIParams struct {
	ID  pgtype.UUID `json:"id"`
	Api []byte      `json:"api"`
}

// RefreshProjectAPI replaces the snapshot of a project that is still linked.
// The stored sync flag wins over the one in the new snapshot.
func (q *Queries) RefreshProjectAPI(ctx context.Context, arg RefreshProjectAPIParams) (Project, error) {
	row := q.db.QueryRow(ctx, refreshProjectAPI, arg.ID, arg.Api)
	return scanProject(row)
}

const updateProjectDataLastFetch = `-- name: UpdateProjectDataLastFetch :one
UPDATE projects
SET project_data_last_fetch = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + projectColumns

type UpdateProjectDataLastFetchParams struct {
	ID                   pgtype.UUID `json:"id"`
	ProjectDataLastFetch []byte      `json:"project_data_last_fetch"`
}

func (q *Queries) UpdateProjectDataLastFetch(ctx context.Context, arg UpdateProjectDataLastFetchParams) (Project, error) {
	row := q.db.QueryRow(ctx, updateProjectDataLastFetch, arg.ID, arg.ProjectDataLastFetch)
	return scanProject(row)
}

const updateGitbutlerDataLastFetch = `-- name: UpdateGitbutlerDataLastFetch :one
UPDATE projects
SET gitbutler_data_last_fetch = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + projectColumns

type UpdateGitbutlerDataLastFetchParams struct {
	ID                     pgtype.UUID `json:"id"`
	GitbutlerDataLastFetch []byte      `json:"gitbutler_data_last_fetch"`
}

func (q *Queries) UpdateGitbutlerDataLastFetch(ctx context.Context, arg UpdateGitbutlerDataLastFetchParams) (Project, error) {
	row := q.db.QueryRow(ctx, updateGitbutlerDataLastFetch, arg.ID, arg.GitbutlerDataLastFetch)
	return scanProject(row)
}
