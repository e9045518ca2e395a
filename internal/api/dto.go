// internal/api/dto.go
package api

import (
	"encoding/json"
	"errors"
	"time"

	"project-sync/internal/model"
)

type createProjectRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Path         string          `json:"path"`
	PreferredKey json.RawMessage `json:"preferredKey"`
}

type updateProjectRequest struct {
	Title        *string         `json:"title"`
	Description  *string         `json:"description"`
	PreferredKey json.RawMessage `json:"preferredKey"`
}

// linkProjectRequest is what a client knows when it links a project. The
// remaining snapshot fields are filled in by the next sync.
type linkProjectRequest struct {
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	RepositoryID string  `json:"repositoryId"`
	GitURL       string  `json:"gitUrl"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
	Sync         bool    `json:"sync"`
}

func (req linkProjectRequest) snapshot() *model.ApiProject {
	return &model.ApiProject{
		Name:         req.Name,
		Description:  req.Description,
		RepositoryID: req.RepositoryID,
		GitURL:       req.GitURL,
		CreatedAt:    req.CreatedAt,
		UpdatedAt:    req.UpdatedAt,
		Sync:         req.Sync,
	}
}

type fetchStatusResponse struct {
	ProjectID   string                              `json:"projectId"`
	SyncEnabled bool                                `json:"syncEnabled"`
	Channels    map[model.SyncChannel]channelStatus `json:"channels"`
}

type channelStatus struct {
	Status    string     `json:"status"` // "never", "fetched" or "error"
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Error     string     `json:"error,omitempty"`
	Stale     bool       `json:"stale"`
}

func newChannelStatus(r model.FetchResult, now time.Time, staleAfter time.Duration) channelStatus {
	r = model.NormalizeFetchResult(r)
	cs := channelStatus{Status: "never", Stale: model.IsStale(r, now, staleAfter)}
	if r == nil {
		return cs
	}
	ts := r.Timestamp()
	cs.Timestamp = &ts
	switch r := r.(type) {
	case model.Fetched:
		cs.Status = "fetched"
	case model.FetchFailed:
		cs.Status = "error"
		cs.Error = r.Message
	}
	return cs
}

// parseKey decodes a requested key. A Local key must name a file.
func parseKey(raw json.RawMessage) (model.AuthKey, error) {
	key, err := model.UnmarshalAuthKey(raw)
	if err != nil {
		return nil, err
	}
	if local, ok := key.(model.LocalKey); ok && local.PrivateKeyPath == "" {
		return nil, errors.New("'privateKeyPath' is required for a local key")
	}
	return key, nil
}

// keepMaskedPassphrase lets clients send back a key exactly as they read it.
// A masked passphrase on the same key file keeps the stored passphrase.
func keepMaskedPassphrase(next, current model.AuthKey) model.AuthKey {
	n, ok := model.NormalizeAuthKey(next).(model.LocalKey)
	if !ok || n.Passphrase == nil || *n.Passphrase != model.RedactedPassphrase {
		return next
	}
	if c, ok := model.NormalizeAuthKey(current).(model.LocalKey); ok && c.PrivateKeyPath == n.PrivateKeyPath {
		n.Passphrase = c.Passphrase
		return n
	}
	return next
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
