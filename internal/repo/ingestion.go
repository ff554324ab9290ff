package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"roadline/internal/domain"
)

// GetIngestionState returns ErrNotFound when no producer has written the key.
func (r Repo) GetIngestionState(ctx context.Context, key domain.RepoKey) (domain.IngestionState, error) {
	var (
		st    domain.IngestionState
		cols  [10]sql.NullString
		paths sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, `SELECT last_commit_sha,last_commit_message,last_commit_author,last_commit_url,last_commit_at,
last_commit_paths_json,last_manual_state_at,last_run_sha,last_run_at,last_run_manual_state_at,updated_at
FROM ingestion_state WHERE owner=? AND repo=? AND project=?`, key.Owner, key.Repo, key.Project).
		Scan(&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &paths, &cols[5], &cols[6], &cols[7], &cols[8], &cols[9])
	if errors.Is(err, sql.ErrNoRows) {
		return st, ErrNotFound
	}
	if err != nil {
		return st, err
	}
	st.LastCommitSHA = stringPtr(cols[0])
	st.LastCommitMessage = stringPtr(cols[1])
	st.LastCommitAuthor = stringPtr(cols[2])
	st.LastCommitURL = stringPtr(cols[3])
	st.LastCommitAt = stringPtr(cols[4])
	st.LastManualStateAt = stringPtr(cols[5])
	st.LastRunSHA = stringPtr(cols[6])
	st.LastRunAt = stringPtr(cols[7])
	st.LastRunManualStateAt = stringPtr(cols[8])
	st.UpdatedAt = stringPtr(cols[9])
	if paths.Valid {
		if err := json.Unmarshal([]byte(paths.String), &st.LastCommitPaths); err != nil {
			return st, fmt.Errorf("decode last_commit_paths: %w", err)
		}
	}
	return st, nil
}

// UpsertCommit writes only the commit observer's columns.
func (r Repo) UpsertCommit(ctx context.Context, key domain.RepoKey, meta domain.CommitMeta, now string) error {
	var paths any
	if meta.Paths != nil {
		data, err := json.Marshal(meta.Paths)
		if err != nil {
			return err
		}
		paths = string(data)
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO ingestion_state(owner,repo,project,last_commit_sha,last_commit_message,last_commit_author,last_commit_url,last_commit_at,last_commit_paths_json,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(owner,repo,project) DO UPDATE SET
	last_commit_sha=excluded.last_commit_sha,
	last_commit_message=excluded.last_commit_message,
	last_commit_author=excluded.last_commit_author,
	last_commit_url=excluded.last_commit_url,
	last_commit_at=excluded.last_commit_at,
	last_commit_paths_json=excluded.last_commit_paths_json,
	updated_at=excluded.updated_at`,
		key.Owner, key.Repo, key.Project, nullable(meta.SHA), nullable(meta.Message), nullable(meta.Author), nullable(meta.URL), nullable(meta.At), paths, now)
	return err
}

// UpsertManualEditTx writes only last_manual_state_at.
func (r Repo) UpsertManualEditTx(ctx context.Context, tx *sql.Tx, key domain.RepoKey, ts, now string) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO ingestion_state(owner,repo,project,last_manual_state_at,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(owner,repo,project) DO UPDATE SET last_manual_state_at=excluded.last_manual_state_at, updated_at=excluded.updated_at`,
		key.Owner, key.Repo, key.Project, ts, now)
	return err
}

// UpsertRunComplete writes only the resolver's columns. sha and manualTS are
// the values observed before the pass started; nil stores NULL.
func (r Repo) UpsertRunComplete(ctx context.Context, key domain.RepoKey, sha, manualTS *string, runTS, now string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO ingestion_state(owner,repo,project,last_run_sha,last_run_manual_state_at,last_run_at,updated_at) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(owner,repo,project) DO UPDATE SET
	last_run_sha=excluded.last_run_sha,
	last_run_manual_state_at=excluded.last_run_manual_state_at,
	last_run_at=excluded.last_run_at,
	updated_at=excluded.updated_at`,
		key.Owner, key.Repo, key.Project, nullableStringPtr(sha), nullableStringPtr(manualTS), runTS, now)
	return err
}

func (r Repo) DeleteIngestionState(ctx context.Context, key domain.RepoKey) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM ingestion_state WHERE owner=? AND repo=? AND project=?`, key.Owner, key.Repo, key.Project)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
