package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"roadline/internal/domain"
)

// SaveSnapshot replaces the stored resolution for (key, branch).
func (r Repo) SaveSnapshot(ctx context.Context, s domain.Snapshot) error {
	doc, err := json.Marshal(s.Document)
	if err != nil {
		return fmt.Errorf("marshal snapshot document: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO roadmap_snapshots(owner,repo,project,branch,run_id,commit_sha,mode,document_json,resolved_at) VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(owner,repo,project,branch) DO UPDATE SET
	run_id=excluded.run_id,
	commit_sha=excluded.commit_sha,
	mode=excluded.mode,
	document_json=excluded.document_json,
	resolved_at=excluded.resolved_at`,
		s.Key.Owner, s.Key.Repo, s.Key.Project, s.Branch, s.RunID, nullable(s.CommitSHA), s.Mode, string(doc), s.ResolvedAt)
	return err
}

func (r Repo) GetSnapshot(ctx context.Context, key domain.RepoKey, branch string) (domain.Snapshot, error) {
	s := domain.Snapshot{Key: key, Branch: branch}
	var (
		sha sql.NullString
		doc string
	)
	err := r.DB.QueryRowContext(ctx, `SELECT run_id,commit_sha,mode,document_json,resolved_at FROM roadmap_snapshots
WHERE owner=? AND repo=? AND project=? AND branch=?`, key.Owner, key.Repo, key.Project, branch).
		Scan(&s.RunID, &sha, &s.Mode, &doc, &s.ResolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.CommitSHA = sha.String
	if err := json.Unmarshal([]byte(doc), &s.Document); err != nil {
		return s, fmt.Errorf("decode snapshot document: %w", err)
	}
	return s, nil
}

// ListSnapshotBranches returns the branches with a stored snapshot for key.
func (r Repo) ListSnapshotBranches(ctx context.Context, key domain.RepoKey) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT branch FROM roadmap_snapshots WHERE owner=? AND repo=? AND project=? ORDER BY branch`,
		key.Owner, key.Repo, key.Project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
