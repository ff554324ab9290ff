package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"roadline/internal/domain"
	"roadline/internal/events"
	"roadline/internal/ingest"
	"roadline/internal/repo"
)

// StateView is the ledger with its up-to-date verdict.
type StateView struct {
	State    domain.IngestionState `json:"state"`
	UpToDate bool                  `json:"up_to_date"`
}

func (e Engine) State(ctx context.Context, key domain.RepoKey) (StateView, error) {
	if err := validateKey(key); err != nil {
		return StateView{}, err
	}
	st, err := e.tracker().Get(ctx, key)
	if err != nil {
		return StateView{}, err
	}
	return StateView{State: st, UpToDate: ingest.UpToDate(st)}, nil
}

// RecordCommit is the commit observer's entry point.
func (e Engine) RecordCommit(ctx context.Context, key domain.RepoKey, meta domain.CommitMeta, actorID string) (StateView, error) {
	if err := validateKey(key); err != nil {
		return StateView{}, err
	}
	if meta.SHA == "" {
		return StateView{}, fmt.Errorf("%w: commit sha is required", ErrInvalidRequest)
	}
	if err := e.tracker().RecordCommit(ctx, key, meta); err != nil {
		return StateView{}, err
	}
	if _, err := e.events().AppendNow(ctx, events.TypeCommitRecorded, key, actorID, events.EventPayload{
		"sha":   meta.SHA,
		"paths": meta.Paths,
	}); err != nil {
		return StateView{}, fmt.Errorf("append event: %w", err)
	}
	e.log().Info("commit recorded", append(keyFields(key), zap.String("sha", meta.SHA))...)
	return e.State(ctx, key)
}

// DeleteState drops the ledger for key. Snapshots and overlays are kept.
func (e Engine) DeleteState(ctx context.Context, key domain.RepoKey, actorID string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := e.tracker().Delete(ctx, key); err != nil {
		return err
	}
	_, err := e.events().AppendNow(ctx, events.TypeStateDeleted, key, actorID, nil)
	return err
}

// ListEvents returns events newest first.
func (e Engine) ListEvents(ctx context.Context, f repo.EventFilter, limit int, cursor int64) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, limit, cursor, f)
}
