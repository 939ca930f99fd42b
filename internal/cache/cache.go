// Package cache persists the last known task and tag snapshot to an embedded
// SQLite database so the daemon can keep serving reads while the backend is
// unreachable. The REST API stays the source of truth; the cache is rewritten
// after every successful sync and only ever read at startup or during an
// outage.
//
// The database runs embedded with WAL mode so the live feed can read while
// the sync loop writes.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/k-iizuka000/ai-todo-sub002/internal/types"
)

// Store wraps the snapshot database. Callers must Close it.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the snapshot database at path, creating the parent
// directory if needed.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}
	s.conn = nil
	return nil
}

// initSchema creates the snapshot tables. Idempotent.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		project_id TEXT,
		tags TEXT NOT NULL,      -- JSON array of embedded tag values
		subtasks TEXT,           -- JSON array
		schedule_info TEXT,      -- JSON object, NULL when unscheduled
		due_date TEXT,
		estimated_hours REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		created_by TEXT NOT NULL,
		updated_by TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		color TEXT,
		usage_count INTEGER NOT NULL DEFAULT 0,
		last_used TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshot_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
	CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the whole cached snapshot with the given tasks and
// tags in one transaction and stamps the sync time.
func (s *Store) SaveSnapshot(ctx context.Context, tasks []*types.Task, tags []*types.Tag) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("failed to clear cached tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tags"); err != nil {
		return fmt.Errorf("failed to clear cached tags: %w", err)
	}

	for _, task := range tasks {
		if err := insertTask(ctx, tx, task); err != nil {
			return err
		}
	}
	for _, tag := range tags {
		if err := insertTag(ctx, tx, tag); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (key, value) VALUES ('synced_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to stamp snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func insertTask(ctx context.Context, tx *sql.Tx, task *types.Task) error {
	tagsJSON, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags for task %s: %w", task.ID, err)
	}
	subtasksJSON, err := json.Marshal(task.Subtasks)
	if err != nil {
		return fmt.Errorf("failed to marshal subtasks for task %s: %w", task.ID, err)
	}
	var scheduleJSON sql.NullString
	if task.ScheduleInfo != nil {
		raw, err := json.Marshal(task.ScheduleInfo)
		if err != nil {
			return fmt.Errorf("failed to marshal schedule info for task %s: %w", task.ID, err)
		}
		scheduleJSON = sql.NullString{String: string(raw), Valid: true}
	}
	var projectID sql.NullString
	if task.ProjectID != nil {
		projectID = sql.NullString{String: *task.ProjectID, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO tasks (
		id, title, description, status, priority, project_id,
		tags, subtasks, schedule_info, due_date, estimated_hours,
		created_at, updated_at, created_by, updated_by
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		projectID,
		string(tagsJSON),
		string(subtasksJSON),
		scheduleJSON,
		timeToNullString(task.DueDate),
		task.EstimatedHours,
		task.CreatedAt.Format(time.RFC3339Nano),
		task.UpdatedAt.Format(time.RFC3339Nano),
		task.CreatedBy,
		task.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to cache task %s: %w", task.ID, err)
	}
	return nil
}

func insertTag(ctx context.Context, tx *sql.Tx, tag *types.Tag) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO tags (id, name, color, usage_count, last_used, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tag.ID,
		tag.Name,
		tag.Color,
		tag.UsageCount,
		timeToNullString(tag.LastUsed),
		tag.CreatedAt.Format(time.RFC3339Nano),
		tag.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to cache tag %s: %w", tag.ID, err)
	}
	return nil
}

// LoadTasks reads the cached task snapshot, ordered by creation time.
func (s *Store) LoadTasks(ctx context.Context) ([]*types.Task, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, title, description, status, priority, project_id,
	       tags, subtasks, schedule_info, due_date, estimated_hours,
	       created_at, updated_at, created_by, updated_by
	FROM tasks
	ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		var task types.Task
		var status, priority, tagsJSON, createdAt, updatedAt string
		var subtasksJSON, scheduleJSON, projectID, dueDate sql.NullString

		err := rows.Scan(
			&task.ID, &task.Title, &task.Description, &status, &priority, &projectID,
			&tagsJSON, &subtasksJSON, &scheduleJSON, &dueDate, &task.EstimatedHours,
			&createdAt, &updatedAt, &task.CreatedBy, &task.UpdatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached task: %w", err)
		}

		normalizedStatus, err := types.NormalizeStatus(status)
		if err != nil {
			return nil, fmt.Errorf("cached task %s: %w", task.ID, err)
		}
		task.Status = normalizedStatus
		normalizedPriority, err := types.NormalizePriority(priority)
		if err != nil {
			return nil, fmt.Errorf("cached task %s: %w", task.ID, err)
		}
		task.Priority = normalizedPriority
		if projectID.Valid {
			pid := projectID.String
			task.ProjectID = &pid
		}
		if err := json.Unmarshal([]byte(tagsJSON), &task.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags for task %s: %w", task.ID, err)
		}
		if subtasksJSON.Valid && subtasksJSON.String != "null" {
			if err := json.Unmarshal([]byte(subtasksJSON.String), &task.Subtasks); err != nil {
				return nil, fmt.Errorf("failed to unmarshal subtasks for task %s: %w", task.ID, err)
			}
		}
		if scheduleJSON.Valid {
			var info types.ScheduleInfo
			if err := json.Unmarshal([]byte(scheduleJSON.String), &info); err != nil {
				return nil, fmt.Errorf("failed to unmarshal schedule info for task %s: %w", task.ID, err)
			}
			task.ScheduleInfo = &info
		}
		task.DueDate = nullStringToTime(dueDate)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			task.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			task.UpdatedAt = t
		}

		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cached tasks: %w", err)
	}
	return tasks, nil
}

// LoadTags reads the cached tag snapshot.
func (s *Store) LoadTags(ctx context.Context) ([]*types.Tag, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, name, color, usage_count, last_used, created_at, updated_at
	FROM tags
	ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached tags: %w", err)
	}
	defer rows.Close()

	var tags []*types.Tag
	for rows.Next() {
		var tag types.Tag
		var lastUsed sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.UsageCount,
			&lastUsed, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cached tag: %w", err)
		}
		tag.LastUsed = nullStringToTime(lastUsed)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			tag.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			tag.UpdatedAt = t
		}
		tags = append(tags, &tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cached tags: %w", err)
	}
	return tags, nil
}

// SyncedAt returns the timestamp of the last saved snapshot, zero if no
// snapshot exists yet.
func (s *Store) SyncedAt(ctx context.Context) (time.Time, error) {
	var value string
	err := s.conn.QueryRowContext(ctx,
		"SELECT value FROM snapshot_meta WHERE key = 'synced_at'").Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read snapshot timestamp: %w", err)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed snapshot timestamp %q: %w", value, err)
	}
	return t, nil
}

// TaskCount returns the number of cached tasks.
func (s *Store) TaskCount(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cached tasks: %w", err)
	}
	return count, nil
}

func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
