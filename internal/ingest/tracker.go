// Package ingest keeps the per-roadmap ledger that decides whether a
// resolution pass is needed.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"roadline/internal/domain"
	"roadline/internal/repo"
)

// Tracker records what each producer last saw. The commit observer, the
// overlay editor and the resolver each patch only their own fields.
type Tracker struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (t Tracker) now() string {
	now := t.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339Nano)
}

// Get returns the ledger for key. A key no producer has written yields a
// record with every field nil.
func (t Tracker) Get(ctx context.Context, key domain.RepoKey) (domain.IngestionState, error) {
	st, err := t.Repo.GetIngestionState(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.IngestionState{}, nil
	}
	if err != nil {
		return domain.IngestionState{}, fmt.Errorf("get ingestion state %s: %w", key, err)
	}
	return st, nil
}

func (t Tracker) RecordCommit(ctx context.Context, key domain.RepoKey, meta domain.CommitMeta) error {
	if meta.SHA == "" {
		return errors.New("commit sha is required")
	}
	if err := t.Repo.UpsertCommit(ctx, key, meta, t.now()); err != nil {
		return fmt.Errorf("record commit %s: %w", key, err)
	}
	return nil
}

// RecordManualEdit stamps the overlay edit time. It returns the stamp so the
// caller can report it.
func (t Tracker) RecordManualEdit(ctx context.Context, key domain.RepoKey) (string, error) {
	return t.RecordManualEditTx(ctx, nil, key)
}

func (t Tracker) RecordManualEditTx(ctx context.Context, tx *sql.Tx, key domain.RepoKey) (string, error) {
	ts := t.now()
	if err := t.Repo.UpsertManualEditTx(ctx, tx, key, ts, ts); err != nil {
		return "", fmt.Errorf("record manual edit %s: %w", key, err)
	}
	return ts, nil
}

// RecordRunComplete stores the commit sha and manual-edit stamp that were
// current when the pass started. A commit landing mid-pass therefore shows up
// as a needed re-run rather than being marked as processed.
func (t Tracker) RecordRunComplete(ctx context.Context, key domain.RepoKey, seen domain.IngestionState) error {
	now := t.now()
	if err := t.Repo.UpsertRunComplete(ctx, key, seen.LastCommitSHA, seen.LastManualStateAt, now, now); err != nil {
		return fmt.Errorf("record run %s: %w", key, err)
	}
	return nil
}

func (t Tracker) Delete(ctx context.Context, key domain.RepoKey) error {
	if err := t.Repo.DeleteIngestionState(ctx, key); err != nil {
		return fmt.Errorf("delete ingestion state %s: %w", key, err)
	}
	return nil
}

// UpToDate reports whether the last completed pass already covers the
// newest commit and the newest overlay edit. Two nils compare equal.
func UpToDate(st domain.IngestionState) bool {
	return sameString(st.LastRunSHA, st.LastCommitSHA) &&
		sameString(st.LastRunManualStateAt, st.LastManualStateAt)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
