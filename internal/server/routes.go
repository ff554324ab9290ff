package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"roadline/internal/domain"
	"roadline/internal/engine"
	"roadline/internal/enrich"
	"roadline/internal/overlay"
	"roadline/internal/repo"
)

type RepoParams struct {
	Owner   string `path:"owner"`
	Repo    string `path:"repo"`
	Project string `query:"project" doc:"Sub-roadmap within the repository"`
	ActorID string `header:"X-Actor-Id"`
}

func (p RepoParams) key() domain.RepoKey {
	return domain.RepoKey{Owner: p.Owner, Repo: p.Repo, Project: p.Project}
}

type WeekParams struct {
	RepoParams
	Week string `path:"week"`
}

type ItemParams struct {
	WeekParams
	Item string `path:"item"`
}

type resolutionOutput struct {
	Body ResolutionResponse `json:"body"`
}

type overlayOutput struct {
	Body overlay.Record `json:"body"`
}

type stateOutput struct {
	Body StateResponse `json:"body"`
}

func registerResolve(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "resolve-roadmap",
		Method:      http.MethodPost,
		Path:        "/repos/{owner}/{repo}/resolve",
		Summary:     "Resolve a roadmap",
		Description: "Normalizes the roadmap, runs or reconciles its checks, stores the snapshot and returns it with the manual overlay applied.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RepoParams
		Token string         `header:"X-GitHub-Token"`
		Body  ResolveRequest `required:"false"`
	}) (*resolutionOutput, error) {
		mode, err := enrich.ParseMode(input.Body.Mode)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"mode": input.Body.Mode})
		}
		res, err := e.Resolve(ctx, engine.ResolveOptions{
			Key:         input.key(),
			Branch:      input.Body.Branch,
			Mode:        mode,
			Source:      []byte(input.Body.Source),
			Document:    input.Body.Document,
			Token:       input.Token,
			VerifierURL: input.Body.VerifierURL,
			Force:       input.Body.Force,
			ActorID:     input.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &resolutionOutput{Body: resolutionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "push-artifact",
		Method:      http.MethodPost,
		Path:        "/repos/{owner}/{repo}/artifacts",
		Summary:     "Store precomputed check results",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		RepoParams
		Body ArtifactRequest
	}) (*resolutionOutput, error) {
		if input.Body.Document == nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "document is required", nil)
		}
		res, err := e.Resolve(ctx, engine.ResolveOptions{
			Key:      input.key(),
			Branch:   input.Body.Branch,
			Mode:     enrich.ModeArtifact,
			Document: input.Body.Document,
			ActorID:  input.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &resolutionOutput{Body: resolutionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "view-roadmap",
		Method:      http.MethodGet,
		Path:        "/repos/{owner}/{repo}/view",
		Summary:     "Stored roadmap with the overlay applied",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RepoParams
		Branch string `query:"branch"`
	}) (*resolutionOutput, error) {
		res, err := e.View(ctx, input.key(), input.Branch)
		if err != nil {
			return nil, handleError(err)
		}
		return &resolutionOutput{Body: resolutionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/repos/{owner}/{repo}/snapshot",
		Summary:     "Stored computed roadmap without the overlay",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RepoParams
		Branch string `query:"branch"`
	}) (*struct {
		Body domain.Snapshot `json:"body"`
	}, error) {
		snap, err := e.Snapshot(ctx, input.key(), input.Branch)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Snapshot `json:"body"`
		}{Body: snap}, nil
	})
}

func registerState(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/repos/{owner}/{repo}/state",
		Summary:     "Ingestion ledger",
	}, func(ctx context.Context, input *RepoParams) (*stateOutput, error) {
		v, err := e.State(ctx, input.key())
		if err != nil {
			return nil, handleError(err)
		}
		return &stateOutput{Body: stateResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-state",
		Method:        http.MethodDelete,
		Path:          "/repos/{owner}/{repo}/state",
		Summary:       "Drop the ingestion ledger",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *RepoParams) (*struct{}, error) {
		if err := e.DeleteState(ctx, input.key(), input.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-commit",
		Method:      http.MethodPost,
		Path:        "/repos/{owner}/{repo}/commits",
		Summary:     "Record the newest commit",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		RepoParams
		Body domain.CommitMeta
	}) (*stateOutput, error) {
		v, err := e.RecordCommit(ctx, input.key(), input.Body, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &stateOutput{Body: stateResponse(v)}, nil
	})
}

func registerOverlay(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-overlay",
		Method:      http.MethodGet,
		Path:        "/repos/{owner}/{repo}/overlay",
		Summary:     "Manual overlay",
	}, func(ctx context.Context, input *RepoParams) (*overlayOutput, error) {
		rec, err := e.Overlay(ctx, input.key())
		if err != nil {
			return nil, handleError(err)
		}
		return &overlayOutput{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "replace-overlay",
		Method:      http.MethodPut,
		Path:        "/repos/{owner}/{repo}/overlay",
		Summary:     "Replace the manual overlay",
		Description: "Malformed entries are dropped; an overlay left empty is deleted.",
	}, func(ctx context.Context, input *struct {
		RepoParams
		Body map[string]any
	}) (*overlayOutput, error) {
		rec, err := e.ReplaceOverlay(ctx, input.key(), input.Body, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &overlayOutput{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "reset-overlay",
		Method:        http.MethodDelete,
		Path:          "/repos/{owner}/{repo}/overlay",
		Summary:       "Delete the manual overlay",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *RepoParams) (*struct{}, error) {
		if err := e.ResetOverlay(ctx, input.key(), input.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-manual-item",
		Method:        http.MethodPost,
		Path:          "/repos/{owner}/{repo}/overlay/weeks/{week}/items",
		Summary:       "Add a manual item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		WeekParams
		Body ManualItemRequest
	}) (*struct {
		Body overlay.ManualItem `json:"body"`
	}, error) {
		it, err := e.AddManualItem(ctx, input.key(), input.Week, overlay.ManualItem{
			Key:  input.Body.Key,
			Name: input.Body.Name,
			Note: input.Body.Note,
			Done: input.Body.Done,
		}, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body overlay.ManualItem `json:"body"`
		}{Body: it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-manual-item",
		Method:      http.MethodDelete,
		Path:        "/repos/{owner}/{repo}/overlay/weeks/{week}/items/{item}",
		Summary:     "Delete a manual item",
	}, func(ctx context.Context, input *ItemParams) (*overlayOutput, error) {
		rec, err := e.DeleteManualItem(ctx, input.key(), input.Week, input.Item, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &overlayOutput{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "hide-item",
		Method:      http.MethodPut,
		Path:        "/repos/{owner}/{repo}/overlay/weeks/{week}/removed/{item}",
		Summary:     "Hide a computed item",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *ItemParams) (*overlayOutput, error) {
		rec, err := e.RemoveItem(ctx, input.key(), input.Week, input.Item, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &overlayOutput{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "restore-item",
		Method:      http.MethodDelete,
		Path:        "/repos/{owner}/{repo}/overlay/weeks/{week}/removed/{item}",
		Summary:     "Restore a hidden item",
	}, func(ctx context.Context, input *ItemParams) (*overlayOutput, error) {
		rec, err := e.RestoreItem(ctx, input.key(), input.Week, input.Item, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &overlayOutput{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-override",
		Method:      http.MethodPut,
		Path:        "/repos/{owner}/{repo}/overlay/weeks/{week}/overrides/{item}",
		Summary:     "Override an item's done flag or note",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ItemParams
		Body OverrideRequest
	}) (*overlayOutput, error) {
		rec, err := e.SetOverride(ctx, input.key(), input.Week, overlay.Override{
			Key:  input.Item,
			Done: input.Body.Done,
			Note: input.Body.Note,
		}, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &overlayOutput{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-override",
		Method:      http.MethodDelete,
		Path:        "/repos/{owner}/{repo}/overlay/weeks/{week}/overrides/{item}",
		Summary:     "Clear an override",
	}, func(ctx context.Context, input *ItemParams) (*overlayOutput, error) {
		rec, err := e.ClearOverride(ctx, input.key(), input.Week, input.Item, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &overlayOutput{Body: rec}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Owner   string `query:"owner"`
		Repo    string `query:"repo"`
		Project string `query:"project"`
		Type    string `query:"type"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		f := repo.EventFilter{Owner: input.Owner, Repo: input.Repo, Type: input.Type}
		if input.Owner != "" && input.Repo != "" {
			project := input.Project
			f.Project = &project
		}
		items, err := e.ListEvents(ctx, f, limit+1, cursorID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	switch {
	case in <= 0:
		return 50
	case in > 500:
		return 500
	default:
		return in
	}
}
