package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"shuttle/internal/config"
)

// Store manages upload task persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the task database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "uploads.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// NewTaskParams carries the caller-supplied attributes for a new upload task.
type NewTaskParams struct {
	TaskKey         string
	ClientID        string
	ClientName      string
	RemotePath      string
	UploadURL       string
	SourcePath      string
	Size            int64
	MediaKind       MediaKind
	DurationSeconds float64
	Transcript      string
	Notes           string
	ContentType     string
}

// NewTask inserts a pending upload task.
func (s *Store) NewTask(ctx context.Context, params NewTaskParams) (*Task, error) {
	if strings.TrimSpace(params.RemotePath) == "" {
		return nil, errors.New("remote path is required")
	}
	if strings.TrimSpace(params.SourcePath) == "" {
		return nil, errors.New("source path is required")
	}
	kind := params.MediaKind
	if kind == "" {
		kind = MediaVideo
	}
	if _, ok := ParseMediaKind(string(kind)); !ok {
		return nil, fmt.Errorf("unknown media kind %q", params.MediaKind)
	}
	key := strings.TrimSpace(params.TaskKey)
	if key == "" {
		key = uuid.NewString()
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO upload_tasks (
            task_key, client_id, client_name, remote_path, upload_url,
            source_path, size, media_kind, duration_seconds, transcript,
            notes, content_type, status, bytes_total, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key,
		nullableString(params.ClientID),
		nullableString(params.ClientName),
		params.RemotePath,
		nullableString(params.UploadURL),
		params.SourcePath,
		params.Size,
		string(kind),
		params.DurationSeconds,
		nullableString(params.Transcript),
		nullableString(params.Notes),
		nullableString(params.ContentType),
		StatusPending,
		params.Size,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches an upload task by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM upload_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// FindByRemotePath returns the first task targeting a remote path.
func (s *Store) FindByRemotePath(ctx context.Context, remotePath string) (*Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+taskColumns+` FROM upload_tasks WHERE remote_path = ? ORDER BY id LIMIT 1`,
		remotePath,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by remote path: %w", err)
	}
	return task, nil
}

// Update persists changes to an existing upload task.
func (s *Store) Update(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE upload_tasks
         SET client_id = ?, client_name = ?, remote_path = ?, upload_url = ?,
             source_path = ?, spool_path = ?, size = ?, media_kind = ?,
             duration_seconds = ?, transcript = ?, notes = ?, content_type = ?,
             status = ?, progress_percent = ?, bytes_sent = ?, bytes_total = ?,
             error_message = ?, hook_invoked = ?, notified = ?, updated_at = ?,
             last_heartbeat = ?
         WHERE id = ?`,
		nullableString(task.ClientID),
		nullableString(task.ClientName),
		task.RemotePath,
		nullableString(task.UploadURL),
		nullableString(task.SourcePath),
		nullableString(task.SpoolPath),
		task.Size,
		string(task.MediaKind),
		task.DurationSeconds,
		nullableString(task.Transcript),
		nullableString(task.Notes),
		nullableString(task.ContentType),
		task.Status,
		task.ProgressPercent,
		task.BytesSent,
		task.BytesTotal,
		nullableString(task.ErrorMessage),
		boolToInt(task.HookInvoked),
		boolToInt(task.Notified),
		task.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(task.LastHeartbeat),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// UpdateProgress records a progress tick without rewriting the whole row.
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent float64, sent, total int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE upload_tasks
         SET progress_percent = ?, bytes_sent = ?, bytes_total = ?, updated_at = ?
         WHERE id = ?`,
		percent,
		sent,
		total,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// ItemsByStatus returns tasks matching a status ordered by creation time.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM upload_tasks WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// List returns tasks filtered by status set (or all tasks when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM upload_tasks`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// NextForStatuses returns the oldest task matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Task, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + taskColumns + ` FROM upload_tasks WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight task.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE upload_tasks SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleActive returns in-flight tasks to pending when heartbeats expire.
// Tasks that already transferred (processing) keep their status so the
// completion hook can be retried without re-uploading.
func (s *Store) ReclaimStaleActive(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE upload_tasks
        SET status = ?, progress_percent = 0, bytes_sent = 0,
            last_heartbeat = NULL, updated_at = ?
        WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending,
		now.Format(time.RFC3339Nano),
		StatusUploading,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale tasks: %w", err)
	}
	reclaimed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = s.db.ExecContext(
		ctx,
		`UPDATE upload_tasks
        SET last_heartbeat = NULL, updated_at = ?
        WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		now.Format(time.RFC3339Nano),
		StatusProcessing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return reclaimed, fmt.Errorf("release stale processing tasks: %w", err)
	}
	released, err := res.RowsAffected()
	if err != nil {
		return reclaimed, err
	}
	return reclaimed + released, nil
}

// Retry moves errored tasks back to pending for reprocessing.
func (s *Store) Retry(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE upload_tasks
            SET status = ?, progress_percent = 0, bytes_sent = 0,
                error_message = NULL, notified = 0, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusError,
		)
		if err != nil {
			return 0, fmt.Errorf("retry errored tasks: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE upload_tasks
        SET status = ?, progress_percent = 0, bytes_sent = 0,
            error_message = NULL, notified = 0, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusError) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected tasks: %w", err)
	}
	return res.RowsAffected()
}

// MarkHookInvoked flags the completion hook as fired for a task.
// The flag is persisted before the hook runs so recovery never fires it twice.
func (s *Store) MarkHookInvoked(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE upload_tasks SET hook_invoked = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark hook invoked: %w", err)
	}
	return nil
}

// MarkNotified flags a terminal task as surfaced to the user.
func (s *Store) MarkNotified(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE upload_tasks SET notified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// UnnotifiedTerminal returns terminal tasks that have not yet been surfaced.
func (s *Store) UnnotifiedTerminal(ctx context.Context) ([]*Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM upload_tasks
         WHERE status IN (?, ?) AND notified = 0 ORDER BY updated_at`,
		StatusCompleted,
		StatusError,
	)
	if err != nil {
		return nil, fmt.Errorf("query unnotified tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// Remove deletes a task by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM upload_tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// PurgeTerminalBefore deletes completed and errored tasks last updated before
// the cutoff, returning the removed tasks so callers can clean spool payloads.
func (s *Store) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) ([]*Task, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM upload_tasks
         WHERE status IN (?, ?) AND updated_at < ?`,
		StatusCompleted,
		StatusError,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query expired tasks: %w", err)
	}
	expired, err := collectTasks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(expired))
	for _, task := range expired {
		ids = append(ids, task.ID)
	}
	query := `DELETE FROM upload_tasks WHERE id IN (` + makePlaceholders(len(ids)) + `)`
	if _, err := s.db.ExecContext(ctx, query, ids...); err != nil {
		return nil, fmt.Errorf("purge expired tasks: %w", err)
	}
	return expired, nil
}

// ClearCompleted removes only completed tasks from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM upload_tasks WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearErrored removes only errored tasks from the queue.
func (s *Store) ClearErrored(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM upload_tasks WHERE status = ?`, StatusError)
	if err != nil {
		return 0, fmt.Errorf("clear errored: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all tasks from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM upload_tasks`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

const taskColumns = "id, task_key, client_id, client_name, remote_path, upload_url, source_path, spool_path, size, media_kind, duration_seconds, transcript, notes, content_type, status, progress_percent, bytes_sent, bytes_total, error_message, hook_invoked, notified, created_at, updated_at, last_heartbeat"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id               int64
		taskKey          string
		clientID         sql.NullString
		clientName       sql.NullString
		remotePath       string
		uploadURL        sql.NullString
		sourcePath       sql.NullString
		spoolPath        sql.NullString
		size             sql.NullInt64
		mediaKind        sql.NullString
		durationSeconds  sql.NullFloat64
		transcript       sql.NullString
		notes            sql.NullString
		contentType      sql.NullString
		statusStr        string
		progressPercent  sql.NullFloat64
		bytesSent        sql.NullInt64
		bytesTotal       sql.NullInt64
		errorMessage     sql.NullString
		hookInvoked      sql.NullInt64
		notified         sql.NullInt64
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&taskKey,
		&clientID,
		&clientName,
		&remotePath,
		&uploadURL,
		&sourcePath,
		&spoolPath,
		&size,
		&mediaKind,
		&durationSeconds,
		&transcript,
		&notes,
		&contentType,
		&statusStr,
		&progressPercent,
		&bytesSent,
		&bytesTotal,
		&errorMessage,
		&hookInvoked,
		&notified,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:              id,
		TaskKey:         taskKey,
		ClientID:        clientID.String,
		ClientName:      clientName.String,
		RemotePath:      remotePath,
		UploadURL:       uploadURL.String,
		SourcePath:      sourcePath.String,
		SpoolPath:       spoolPath.String,
		Size:            size.Int64,
		MediaKind:       MediaKind(mediaKind.String),
		DurationSeconds: durationSeconds.Float64,
		Transcript:      transcript.String,
		Notes:           notes.String,
		ContentType:     contentType.String,
		Status:          Status(statusStr),
		ProgressPercent: progressPercent.Float64,
		BytesSent:       bytesSent.Int64,
		BytesTotal:      bytesTotal.Int64,
		ErrorMessage:    errorMessage.String,
	}
	if hookInvoked.Valid {
		task.HookInvoked = hookInvoked.Int64 != 0
	}
	if notified.Valid {
		task.Notified = notified.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			task.LastHeartbeat = &heartbeat
		}
	}
	return task, nil
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
