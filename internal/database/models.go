// internal/database/models.go
package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Project is a row of the projects table. The JSONB columns hold the model's
// tagged-union encodings; a NULL column scans to a nil slice.
type Project struct {
	ID                     pgtype.UUID        `json:"id"`
	Title                  string             `json:"title"`
	Description            pgtype.Text        `json:"description"`
	Path                   string             `json:"path"`
	PreferredKey           []byte             `json:"preferred_key"`
	Api                    []byte             `json:"api"`
	ProjectDataLastFetch   []byte             `json:"project_data_last_fetch"`
	GitbutlerDataLastFetch []byte             `json:"gitbutler_data_last_fetch"`
	CreatedAt              pgtype.Timestamptz `json:"created_at"`
	UpdatedAt              pgtype.Timestamptz `json:"updated_at"`
}
