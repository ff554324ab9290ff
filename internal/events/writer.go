package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"roadline/internal/domain"
)

const (
	TypeRoadmapResolved = "roadmap.resolved"
	TypeOverlayUpdated  = "overlay.updated"
	TypeCommitRecorded  = "commit.recorded"
	TypeStateDeleted    = "state.deleted"
)

// Types lists every event type the engine emits.
var Types = []string{TypeRoadmapResolved, TypeOverlayUpdated, TypeCommitRecorded, TypeStateDeleted}

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append inserts an event inside tx and returns it with its assigned id.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType string, key domain.RepoKey, actorID string, payload EventPayload) (domain.Event, error) {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("marshal event payload: %w", err)
	}
	evt := domain.Event{
		TS:      now().UTC().Format(time.RFC3339),
		Type:    evtType,
		Owner:   key.Owner,
		Repo:    key.Repo,
		Project: key.Project,
		ActorID: actorID,
		Payload: string(data),
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO events(ts,type,owner,repo,project,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		evt.TS, evt.Type, evt.Owner, evt.Repo, evt.Project, evt.ActorID, evt.Payload)
	if err != nil {
		return domain.Event{}, err
	}
	if evt.ID, err = res.LastInsertId(); err != nil {
		return domain.Event{}, err
	}
	return evt, nil
}

// AppendNow runs Append in its own transaction.
func (w Writer) AppendNow(ctx context.Context, evtType string, key domain.RepoKey, actorID string, payload EventPayload) (domain.Event, error) {
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, err
	}
	defer tx.Rollback()
	evt, err := w.Append(ctx, tx, evtType, key, actorID, payload)
	if err != nil {
		return domain.Event{}, err
	}
	return evt, tx.Commit()
}
