// internal/model/api_project.go
package model

import (
	"encoding/json"
	"fmt"
)

// ApiProject is the remote service's view of a project. It is replaced
// wholesale on every refresh and never edited in place.
type ApiProject struct {
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	RepositoryID string  `json:"repositoryId"`
	GitURL       string  `json:"gitUrl"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
	Sync         bool    `json:"sync"`
}

// UnmarshalJSON accepts both the current camelCase keys and the snake_case keys of older records.
// Only description may be absent.
func (a *ApiProject) UnmarshalJSON(data []byte) error {
	fields, err := decodeFields("api project", data)
	if err != nil {
		return err
	}

	const kind = "api project"
	var out ApiProject
	if out.Name, err = decodeRequiredString(kind, fields, "name"); err != nil {
		return err
	}
	if out.Description, err = decodeOptionalString(fields, "description"); err != nil {
		return err
	}
	if out.RepositoryID, err = decodeRequiredString(kind, fields, "repositoryId", "repository_id"); err != nil {
		return err
	}
	if out.GitURL, err = decodeRequiredString(kind, fields, "gitUrl", "git_url"); err != nil {
		return err
	}
	if out.CreatedAt, err = decodeRequiredString(kind, fields, "createdAt", "created_at"); err != nil {
		return err
	}
	if out.UpdatedAt, err = decodeRequiredString(kind, fields, "updatedAt", "updated_at"); err != nil {
		return err
	}
	raw, err := requireField(kind, fields, "sync")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &out.Sync); err != nil {
		return fmt.Errorf("decode sync: %w", err)
	}

	*a = out
	return nil
}
