package repo

import (
	"context"
	"database/sql"
	"errors"

	"roadline/internal/domain"
)

// GetOverlayTx returns the raw stored overlay JSON.
func (r Repo) GetOverlayTx(ctx context.Context, tx *sql.Tx, key domain.RepoKey) ([]byte, error) {
	var payload string
	err := r.conn(tx).QueryRowContext(ctx, `SELECT overlay_json FROM manual_overlays WHERE owner=? AND repo=? AND project=?`,
		key.Owner, key.Repo, key.Project).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

func (r Repo) GetOverlay(ctx context.Context, key domain.RepoKey) ([]byte, error) {
	return r.GetOverlayTx(ctx, nil, key)
}

func (r Repo) PutOverlayTx(ctx context.Context, tx *sql.Tx, key domain.RepoKey, payload []byte, now string) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO manual_overlays(owner,repo,project,overlay_json,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(owner,repo,project) DO UPDATE SET overlay_json=excluded.overlay_json, updated_at=excluded.updated_at`,
		key.Owner, key.Repo, key.Project, string(payload), now)
	return err
}

// DeleteOverlayTx is a no-op for a key without an overlay.
func (r Repo) DeleteOverlayTx(ctx context.Context, tx *sql.Tx, key domain.RepoKey) error {
	_, err := r.conn(tx).ExecContext(ctx, `DELETE FROM manual_overlays WHERE owner=? AND repo=? AND project=?`, key.Owner, key.Repo, key.Project)
	return err
}
