package server

import (
	"encoding/json"

	"roadline/internal/domain"
	"roadline/internal/engine"
	"roadline/internal/ingest"
)

// Request payloads

type ResolveRequest struct {
	Branch      string `json:"branch,omitempty" doc:"Branch to resolve; defaults to roadmap.default_branch"`
	Mode        string `json:"mode,omitempty" enum:"live,artifact" doc:"live runs checks, artifact reconciles precomputed results"`
	Force       bool   `json:"force,omitempty" doc:"Run even when the stored snapshot is current"`
	Source      string `json:"source,omitempty" doc:"Raw JSON or YAML roadmap; fetched from the repository when empty"`
	Document    any    `json:"document,omitempty" doc:"Roadmap as a JSON value; takes precedence over source"`
	VerifierURL string `json:"verifier_url,omitempty"`
}

type ArtifactRequest struct {
	Branch   string `json:"branch,omitempty"`
	Document any    `json:"document" doc:"Roadmap carrying precomputed check results"`
}

type ManualItemRequest struct {
	Key  string `json:"key,omitempty" doc:"Generated when empty"`
	Name string `json:"name" minLength:"1"`
	Note string `json:"note,omitempty"`
	Done *bool  `json:"done,omitempty"`
}

type OverrideRequest struct {
	Done *bool  `json:"done,omitempty"`
	Note string `json:"note,omitempty"`
}

// Response payloads

type WeekSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Progress string `json:"progress" enum:"pass,fail,pending"`
	Done     int    `json:"done"`
	Total    int    `json:"total"`
}

type ResolutionResponse struct {
	Owner      string                `json:"owner"`
	Repo       string                `json:"repo"`
	Project    string                `json:"project,omitempty"`
	Branch     string                `json:"branch"`
	RunID      string                `json:"run_id"`
	CommitSHA  string                `json:"commit_sha,omitempty"`
	Mode       string                `json:"mode" enum:"live,artifact"`
	ResolvedAt string                `json:"resolved_at" format:"date-time"`
	Progress   string                `json:"progress" enum:"pass,fail,pending"`
	Reused     bool                  `json:"reused"`
	UpToDate   bool                  `json:"up_to_date"`
	Weeks      []WeekSummary         `json:"weeks"`
	Document   domain.Document       `json:"document"`
	State      domain.IngestionState `json:"state"`
}

type StateResponse struct {
	domain.IngestionState
	UpToDate bool `json:"up_to_date"`
}

type EventResponse struct {
	ID      int64          `json:"id"`
	TS      string         `json:"ts" format:"date-time"`
	Type    string         `json:"type"`
	Owner   string         `json:"owner"`
	Repo    string         `json:"repo"`
	Project string         `json:"project,omitempty"`
	ActorID string         `json:"actor_id,omitempty"`
	Payload map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func weekSummaries(doc domain.Document) []WeekSummary {
	out := make([]WeekSummary, 0, len(doc.Weeks))
	for _, w := range doc.Weeks {
		s := WeekSummary{ID: w.ID, Title: w.Title, Progress: string(domain.WeekProgress(w)), Total: len(w.Items)}
		for _, it := range w.Items {
			if domain.ItemProgress(it) == domain.ProgressPass {
				s.Done++
			}
		}
		out = append(out, s)
	}
	return out
}

func resolutionResponse(r engine.Resolution) ResolutionResponse {
	s := r.Snapshot
	return ResolutionResponse{
		Owner:      s.Key.Owner,
		Repo:       s.Key.Repo,
		Project:    s.Key.Project,
		Branch:     s.Branch,
		RunID:      s.RunID,
		CommitSHA:  s.CommitSHA,
		Mode:       s.Mode,
		ResolvedAt: s.ResolvedAt,
		Progress:   string(r.Progress),
		Reused:     r.Reused,
		UpToDate:   ingest.UpToDate(r.State),
		Weeks:      weekSummaries(r.View),
		Document:   r.View,
		State:      r.State,
	}
}

func stateResponse(v engine.StateView) StateResponse {
	return StateResponse{IngestionState: v.State, UpToDate: v.UpToDate}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:      e.ID,
		TS:      e.TS,
		Type:    e.Type,
		Owner:   e.Owner,
		Repo:    e.Repo,
		Project: e.Project,
		ActorID: e.ActorID,
		Payload: decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}
