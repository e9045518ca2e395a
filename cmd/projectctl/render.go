// cmd/projectctl/render.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"project-sync/internal/model"
)

// printProjects writes projects in the requested format. Passphrases are always masked.
func printProjects(w io.Writer, format string, projects []*model.Project) error {
	redacted := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		redacted = append(redacted, p.Redacted())
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(redacted, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		data, err := toYAML(redacted)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "table", "":
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.AppendHeader(table.Row{"ID", "Title", "Path", "Key", "Remote", "Sync", "Project data", "GitButler data"})
		for _, p := range redacted {
			remote, syncOn := "", false
			if p.API != nil {
				remote, syncOn = p.API.GitURL, p.API.Sync
			}
			tw.AppendRow(table.Row{
				p.ID.String(), p.Title, p.Path, describeKey(p.Key()), remote, syncOn,
				describeFetch(p.LastFetch(model.ChannelProjectData)), describeFetch(p.LastFetch(model.ChannelGitButlerData)),
			})
		}
		tw.Render()
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// toYAML renders v through its JSON form, so tagged variants keep their persisted shape.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	// JSON is valid YAML; decoding into a node keeps field order.
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	clearStyle(&node)
	return yaml.Marshal(&node)
}

// clearStyle switches flow-style nodes to block style, except empty collections.
func clearStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		if len(n.Content) > 0 {
			n.Style = 0
		}
	} else if n.Kind == yaml.ScalarNode && n.Style == yaml.DoubleQuotedStyle {
		n.Style = 0
	}
	for _, c := range n.Content {
		clearStyle(c)
	}
}

func describeKey(k model.AuthKey) string {
	switch k := k.(type) {
	case model.LocalKey:
		return "local:" + k.PrivateKeyPath
	default:
		return "generated"
	}
}

func describeFetch(r model.FetchResult) string {
	switch r := model.NormalizeFetchResult(r).(type) {
	case model.Fetched:
		return "ok " + r.At.Format(time.RFC3339)
	case model.FetchFailed:
		return fmt.Sprintf("error %s: %s", r.At.Format(time.RFC3339), r.Message)
	default:
		return "never"
	}
}
