package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"roadline/internal/domain"
	"roadline/internal/events"
	"roadline/internal/overlay"
	"roadline/internal/repo"
)

func applyOverlay(doc domain.Document, rec overlay.Record) domain.Document {
	return overlay.Apply(doc, rec)
}

// Overlay loads the manual overlay for key. A missing or corrupt record reads
// as empty.
func (e Engine) Overlay(ctx context.Context, key domain.RepoKey) (overlay.Record, error) {
	raw, err := e.Repo.GetOverlay(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return overlay.Record{}, nil
	}
	if err != nil {
		return overlay.Record{}, fmt.Errorf("load overlay: %w", err)
	}
	return overlay.Parse(raw), nil
}

// OverlayEdit describes one change for the event log.
type OverlayEdit struct {
	Action  string
	WeekKey string
	ItemKey string
	ActorID string
}

// EditOverlay applies fn to the stored overlay in one transaction, persists
// the result (deleting it once empty), stamps the manual-edit time on the
// ledger and appends an overlay.updated event.
func (e Engine) EditOverlay(ctx context.Context, key domain.RepoKey, edit OverlayEdit, fn func(overlay.Record) (overlay.Record, error)) (overlay.Record, error) {
	if err := validateKey(key); err != nil {
		return overlay.Record{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return overlay.Record{}, err
	}
	defer tx.Rollback()

	current := overlay.Record{}
	raw, err := e.Repo.GetOverlayTx(ctx, tx, key)
	switch {
	case err == nil:
		current = overlay.Parse(raw)
	case !errors.Is(err, repo.ErrNotFound):
		return overlay.Record{}, fmt.Errorf("load overlay: %w", err)
	}

	next, err := fn(current)
	if err != nil {
		return overlay.Record{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	if next.Empty() {
		next = overlay.Record{}
		if err := e.Repo.DeleteOverlayTx(ctx, tx, key); err != nil {
			return overlay.Record{}, fmt.Errorf("delete overlay: %w", err)
		}
	} else {
		data, err := json.Marshal(next)
		if err != nil {
			return overlay.Record{}, err
		}
		if err := e.Repo.PutOverlayTx(ctx, tx, key, data, now); err != nil {
			return overlay.Record{}, fmt.Errorf("save overlay: %w", err)
		}
	}
	stamp, err := e.tracker().RecordManualEditTx(ctx, tx, key)
	if err != nil {
		return overlay.Record{}, err
	}
	payload := events.EventPayload{"action": edit.Action, "edited_at": stamp}
	if edit.WeekKey != "" {
		payload["week"] = edit.WeekKey
	}
	if edit.ItemKey != "" {
		payload["item"] = edit.ItemKey
	}
	if _, err := e.events().Append(ctx, tx, events.TypeOverlayUpdated, key, edit.ActorID, payload); err != nil {
		return overlay.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return overlay.Record{}, err
	}
	e.log().Info("overlay updated", append(keyFields(key), zap.String("action", edit.Action), zap.String("week", edit.WeekKey), zap.String("item", edit.ItemKey))...)
	return next, nil
}

// AddManualItem adds or replaces a user-authored item. An empty key is
// generated.
func (e Engine) AddManualItem(ctx context.Context, key domain.RepoKey, weekKey string, it overlay.ManualItem, actorID string) (overlay.ManualItem, error) {
	if it.Key == "" {
		it.Key = "manual-" + uuid.NewString()[:8]
	}
	rec, err := e.EditOverlay(ctx, key, OverlayEdit{Action: "add", WeekKey: weekKey, ItemKey: it.Key, ActorID: actorID},
		func(r overlay.Record) (overlay.Record, error) { return r.AddItem(weekKey, it) })
	if err != nil {
		return overlay.ManualItem{}, err
	}
	for _, a := range rec.Weeks[weekKey].Added {
		if a.Key == it.Key {
			return a, nil
		}
	}
	return it, nil
}

func (e Engine) DeleteManualItem(ctx context.Context, key domain.RepoKey, weekKey, itemKey, actorID string) (overlay.Record, error) {
	return e.EditOverlay(ctx, key, OverlayEdit{Action: "delete", WeekKey: weekKey, ItemKey: itemKey, ActorID: actorID},
		func(r overlay.Record) (overlay.Record, error) { return r.DeleteItem(weekKey, itemKey) })
}

func (e Engine) RemoveItem(ctx context.Context, key domain.RepoKey, weekKey, itemKey, actorID string) (overlay.Record, error) {
	return e.EditOverlay(ctx, key, OverlayEdit{Action: "remove", WeekKey: weekKey, ItemKey: itemKey, ActorID: actorID},
		func(r overlay.Record) (overlay.Record, error) { return r.RemoveItem(weekKey, itemKey) })
}

func (e Engine) RestoreItem(ctx context.Context, key domain.RepoKey, weekKey, itemKey, actorID string) (overlay.Record, error) {
	return e.EditOverlay(ctx, key, OverlayEdit{Action: "restore", WeekKey: weekKey, ItemKey: itemKey, ActorID: actorID},
		func(r overlay.Record) (overlay.Record, error) { return r.RestoreItem(weekKey, itemKey) })
}

func (e Engine) SetOverride(ctx context.Context, key domain.RepoKey, weekKey string, o overlay.Override, actorID string) (overlay.Record, error) {
	return e.EditOverlay(ctx, key, OverlayEdit{Action: "override", WeekKey: weekKey, ItemKey: o.Key, ActorID: actorID},
		func(r overlay.Record) (overlay.Record, error) { return r.SetOverride(weekKey, o) })
}

func (e Engine) ClearOverride(ctx context.Context, key domain.RepoKey, weekKey, itemKey, actorID string) (overlay.Record, error) {
	return e.EditOverlay(ctx, key, OverlayEdit{Action: "clear_override", WeekKey: weekKey, ItemKey: itemKey, ActorID: actorID},
		func(r overlay.Record) (overlay.Record, error) { return r.ClearOverride(weekKey, itemKey) })
}

// ReplaceOverlay stores a whole record after sanitizing it.
func (e Engine) ReplaceOverlay(ctx context.Context, key domain.RepoKey, raw any, actorID string) (overlay.Record, error) {
	clean := overlay.Sanitize(raw)
	return e.EditOverlay(ctx, key, OverlayEdit{Action: "replace", ActorID: actorID},
		func(overlay.Record) (overlay.Record, error) { return clean, nil })
}

func (e Engine) ResetOverlay(ctx context.Context, key domain.RepoKey, actorID string) error {
	_, err := e.EditOverlay(ctx, key, OverlayEdit{Action: "reset", ActorID: actorID},
		func(overlay.Record) (overlay.Record, error) { return overlay.Record{}, nil })
	return err
}
