// internal/model/project.go
package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ProjectID is the immutable primary key of a Project.
type ProjectID uuid.UUID

// NewProjectID returns a fresh, globally unique ProjectID.
func NewProjectID() ProjectID {
	return ProjectID(uuid.New())
}

// ParseProjectID parses the canonical string form of a ProjectID.
func ParseProjectID(s string) (ProjectID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ProjectID{}, fmt.Errorf("parse project id: %w", err)
	}
	return ProjectID(id), nil
}

func (id ProjectID) String() string {
	return uuid.UUID(id).String()
}

func (id ProjectID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *ProjectID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

// SyncChannel names one of the two independently synced targets of a project.
type SyncChannel string

const (
	ChannelProjectData   SyncChannel = "projectData"
	ChannelGitButlerData SyncChannel = "gitbutlerData"
)

// Channels lists every sync channel in display order.
var Channels = []SyncChannel{ChannelProjectData, ChannelGitButlerData}

// Project is a locally tracked git working copy, optionally linked to the remote service.
//
// A nil PreferredKey means GeneratedKey. A nil API means the project is not linked.
// A nil fetch slot means that channel has never been attempted.
type Project struct {
	ID                     ProjectID
	Title                  string
	Description            *string
	Path                   string
	PreferredKey           AuthKey
	API                    *ApiProject
	ProjectDataLastFetch   FetchResult
	GitButlerDataLastFetch FetchResult
}

// ProjectRef is satisfied by anything that is, or refers to, a Project.
type ProjectRef interface {
	AsProject() *Project
}

// AsProject returns p itself.
func (p *Project) AsProject() *Project {
	return p
}

// Key returns the preferred key, falling back to the default key.
func (p Project) Key() AuthKey {
	k := NormalizeAuthKey(p.PreferredKey)
	if k == nil {
		return DefaultAuthKey()
	}
	return k
}

// LastFetch returns the most recent result for ch, or nil if it was never attempted.
func (p Project) LastFetch(ch SyncChannel) FetchResult {
	switch ch {
	case ChannelProjectData:
		return NormalizeFetchResult(p.ProjectDataLastFetch)
	case ChannelGitButlerData:
		return NormalizeFetchResult(p.GitButlerDataLastFetch)
	default:
		return nil
	}
}

// WithFetchResult returns a copy of p whose slot for ch holds r. The other channel is left alone.
func (p Project) WithFetchResult(ch SyncChannel, r FetchResult) Project {
	r = NormalizeFetchResult(r)
	switch ch {
	case ChannelProjectData:
		p.ProjectDataLastFetch = r
	case ChannelGitButlerData:
		p.GitButlerDataLastFetch = r
	}
	return p
}

// WithAPI returns a copy of p linked to api. A nil api unlinks the project.
func (p Project) WithAPI(api *ApiProject) Project {
	if api != nil {
		snapshot := *api
		api = &snapshot
	}
	p.API = api
	return p
}

// RedactedPassphrase replaces a stored passphrase in anything shown to users.
const RedactedPassphrase = "********"

// Redacted returns a copy of p with the key passphrase masked.
func (p Project) Redacted() Project {
	if local, ok := NormalizeAuthKey(p.PreferredKey).(LocalKey); ok && local.Passphrase != nil {
		masked := RedactedPassphrase
		local.Passphrase = &masked
		p.PreferredKey = local
	}
	return p
}

type projectJSON struct {
	ID                     ProjectID       `json:"id"`
	Title                  string          `json:"title"`
	Description            *string         `json:"description"`
	Path                   string          `json:"path"`
	PreferredKey           json.RawMessage `json:"preferredKey"`
	API                    *ApiProject     `json:"api"`
	ProjectDataLastFetch   json.RawMessage `json:"projectDataLastFetch"`
	GitButlerDataLastFetch json.RawMessage `json:"gitbutlerDataLastFetch"`
}

func (p Project) MarshalJSON() ([]byte, error) {
	key, err := MarshalAuthKey(p.Key())
	if err != nil {
		return nil, err
	}
	projectData, err := MarshalFetchResult(p.ProjectDataLastFetch)
	if err != nil {
		return nil, err
	}
	gitbutlerData, err := MarshalFetchResult(p.GitButlerDataLastFetch)
	if err != nil {
		return nil, err
	}

	return json.Marshal(projectJSON{
		ID:                     p.ID,
		Title:                  p.Title,
		Description:            p.Description,
		Path:                   p.Path,
		PreferredKey:           key,
		API:                    p.API,
		ProjectDataLastFetch:   projectData,
		GitButlerDataLastFetch: gitbutlerData,
	})
}

// UnmarshalJSON fills the fields added after the first release with their
// defaults when a record predates them, and accepts legacy snake_case keys.
// id, title and path have no default; a record without them is rejected.
func (p *Project) UnmarshalJSON(data []byte) error {
	fields, err := decodeFields("project", data)
	if err != nil {
		return err
	}

	var out Project
	raw, err := requireField("project", fields, "id")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &out.ID); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	if out.Title, err = decodeRequiredString("project", fields, "title"); err != nil {
		return err
	}
	if out.Description, err = decodeOptionalString(fields, "description"); err != nil {
		return err
	}
	if out.Path, err = decodeRequiredString("project", fields, "path"); err != nil {
		return err
	}

	raw, _ = pickField(fields, "preferredKey", "preferred_key")
	if out.PreferredKey, err = UnmarshalAuthKey(raw); err != nil {
		return err
	}

	if raw, ok := pickField(fields, "api"); ok {
		var api ApiProject
		if err := json.Unmarshal(raw, &api); err != nil {
			return err
		}
		out.API = &api
	}

	raw, _ = pickField(fields, "projectDataLastFetch", "project_data_last_fetch")
	if out.ProjectDataLastFetch, err = UnmarshalFetchResult(raw); err != nil {
		return err
	}
	raw, _ = pickField(fields, "gitbutlerDataLastFetch", "gitbutler_data_last_fetch")
	if out.GitButlerDataLastFetch, err = UnmarshalFetchResult(raw); err != nil {
		return err
	}

	*p = out
	return nil
}
