// internal/database/convert.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"project-sync/internal/model"
)

// uniqueViolation is the SQLSTATE of a unique constraint failure.
const uniqueViolation = "23505"

// UUID converts a ProjectID to its column value.
func UUID(id model.ProjectID) pgtype.UUID {
	return pgtype.UUID{Bytes: [16]byte(id), Valid: true}
}

func toText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func fromText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func marshalAPI(api *model.ApiProject) ([]byte, error) {
	if api == nil {
		return nil, nil
	}
	data, err := json.Marshal(api)
	if err != nil {
		return nil, fmt.Errorf("encode api project: %w", err)
	}
	return data, nil
}

// marshalFetch keeps an empty slot as SQL NULL rather than a JSON null.
func marshalFetch(r model.FetchResult) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return model.MarshalFetchResult(r)
}

// ProjectFromRow decodes a projects row into the domain model.
func ProjectFromRow(row Project) (*model.Project, error) {
	p := &model.Project{
		ID:          model.ProjectID(row.ID.Bytes),
		Title:       row.Title,
		Description: fromText(row.Description),
		Path:        row.Path,
	}

	var err error
	if p.PreferredKey, err = model.UnmarshalAuthKey(row.PreferredKey); err != nil {
		return nil, fmt.Errorf("project %s: %w", p.ID, err)
	}
	if len(row.Api) > 0 {
		var api model.ApiProject
		if err := json.Unmarshal(row.Api, &api); err != nil {
			return nil, fmt.Errorf("project %s: %w", p.ID, err)
		}
		p.API = &api
	}
	if p.ProjectDataLastFetch, err = model.UnmarshalFetchResult(row.ProjectDataLastFetch); err != nil {
		return nil, fmt.Errorf("project %s: %w", p.ID, err)
	}
	if p.GitButlerDataLastFetch, err = model.UnmarshalFetchResult(row.GitbutlerDataLastFetch); err != nil {
		return nil, fmt.Errorf("project %s: %w", p.ID, err)
	}
	return p, nil
}

// ProjectsFromRows decodes rows one at a time. A malformed row is handed to
// skipped and left out, so one bad record never hides the others.
func ProjectsFromRows(rows []Project, skipped func(id model.ProjectID, err error)) []*model.Project {
	projects := make([]*model.Project, 0, len(rows))
	for _, row := range rows {
		p, err := ProjectFromRow(row)
		if err != nil {
			if skipped != nil {
				skipped(model.ProjectID(row.ID.Bytes), err)
			}
			continue
		}
		projects = append(projects, p)
	}
	return projects
}

// CreateParamsFromProject encodes p for insertion.
func CreateParamsFromProject(p *model.Project) (CreateProjectParams, error) {
	key, err := model.MarshalAuthKey(p.Key())
	if err != nil {
		return CreateProjectParams{}, err
	}
	api, err := marshalAPI(p.API)
	if err != nil {
		return CreateProjectParams{}, err
	}
	projectData, err := marshalFetch(p.ProjectDataLastFetch)
	if err != nil {
		return CreateProjectParams{}, err
	}
	gitbutlerData, err := marshalFetch(p.GitButlerDataLastFetch)
	if err != nil {
		return CreateProjectParams{}, err
	}

	return CreateProjectParams{
		ID:                     UUID(p.ID),
		Title:                  p.Title,
		Description:            toText(p.Description),
		Path:                   p.Path,
		PreferredKey:           key,
		Api:                    api,
		ProjectDataLastFetch:   projectData,
		GitbutlerDataLastFetch: gitbutlerData,
	}, nil
}

// DetailsParamsFromProject encodes the user editable fields of p.
func DetailsParamsFromProject(p *model.Project) (UpdateProjectDetailsParams, error) {
	key, err := model.MarshalAuthKey(p.Key())
	if err != nil {
		return UpdateProjectDetailsParams{}, err
	}
	return UpdateProjectDetailsParams{
		ID:           UUID(p.ID),
		Title:        p.Title,
		Description:  toText(p.Description),
		PreferredKey: key,
	}, nil
}

// SetAPI replaces the remote snapshot of a project. A nil api unlinks it.
func SetAPI(ctx context.Context, q Querier, id model.ProjectID, api *model.ApiProject) (*model.Project, error) {
	data, err := marshalAPI(api)
	if err != nil {
		return nil, err
	}
	row, err := q.UpdateProjectAPI(ctx, UpdateProjectAPIParams{ID: UUID(id), Api: data})
	if err != nil {
		return nil, err
	}
	return ProjectFromRow(row)
}

// RefreshAPI stores a freshly fetched snapshot. It keeps the stored sync flag and
// does nothing to a project that was unlinked meanwhile; that case returns pgx.ErrNoRows.
func RefreshAPI(ctx context.Context, q Querier, id model.ProjectID, api *model.ApiProject) (*model.Project, error) {
	data, err := marshalAPI(api)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("refresh api: nil snapshot for project %s", id)
	}
	row, err := q.RefreshProjectAPI(ctx, RefreshProjectAPIParams{ID: UUID(id), Api: data})
	if err != nil {
		return nil, err
	}
	return ProjectFromRow(row)
}

// IsUniqueViolation reports whether err is a Postgres unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// SetLastFetch overwrites the fetch slot of one channel. It writes a single
// column, so the other channel's slot is never read or rewritten.
func SetLastFetch(ctx context.Context, q Querier, id model.ProjectID, ch model.SyncChannel, r model.FetchResult) (*model.Project, error) {
	data, err := marshalFetch(r)
	if err != nil {
		return nil, err
	}

	var row Project
	switch ch {
	case model.ChannelProjectData:
		row, err = q.UpdateProjectDataLastFetch(ctx, UpdateProjectDataLastFetchParams{ID: UUID(id), ProjectDataLastFetch: data})
	case model.ChannelGitButlerData:
		row, err = q.UpdateGitbutlerDataLastFetch(ctx, UpdateGitbutlerDataLastFetchParams{ID: UUID(id), GitbutlerDataLastFetch: data})
	default:
		return nil, fmt.Errorf("unknown sync channel %q", ch)
	}
	if err != nil {
		return nil, err
	}
	return ProjectFromRow(row)
}
