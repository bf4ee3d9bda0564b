// Package sqlite provides a durable store implementation backed by SQLite.
// It persists agents, crews and membership versions, tasks with their
// append-only transcripts, and telemetry events. WAL mode is enabled for
// concurrent reads.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/crewmesh/core"
)

// DB wraps an SQLite database connection with crewmesh store operations.
// database/sql serializes access; DB is safe for concurrent use.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens an SQLite database at the given path, creating parent
// directories as needed.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error { return db.conn.Close() }

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Migrate creates the schema if it does not exist yet.
func (db *DB) Migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			endpoint TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS crews (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			created DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS crew_members (
			crew_id TEXT NOT NULL REFERENCES crews(id) ON DELETE CASCADE,
			agent_id TEXT NOT NULL REFERENCES agents(id),
			role TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (crew_id, agent_id)
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			crew_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			error TEXT NOT NULL DEFAULT '',
			created DATETIME NOT NULL,
			started DATETIME,
			completed DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS task_messages (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			author TEXT NOT NULL,
			agent_name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_messages_task ON task_messages(task_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS telemetry_events (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			target TEXT NOT NULL,
			start DATETIME NOT NULL,
			end DATETIME NOT NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_task ON telemetry_events(task_id)`,
	}

	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// PutAgent stores or replaces an agent definition.
func (db *DB) PutAgent(ctx context.Context, a core.Agent) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO agents (id, name, description, endpoint, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			endpoint = excluded.endpoint,
			active = excluded.active`,
		a.ID, a.Name, a.Description, a.Endpoint, boolToInt(a.Active),
	)
	if err != nil {
		return fmt.Errorf("put agent: %w", err)
	}
	return nil
}

// GetAgent returns an agent by id.
func (db *DB) GetAgent(ctx context.Context, id string) (core.Agent, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, endpoint, active FROM agents WHERE id = ?`, id)
	var a core.Agent
	var active int
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Endpoint, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Agent{}, core.ErrAgentNotFound
		}
		return core.Agent{}, fmt.Errorf("get agent: %w", err)
	}
	a.Active = active != 0
	return a, nil
}

// ListAgents returns all agents ordered by name.
func (db *DB) ListAgents(ctx context.Context) ([]core.Agent, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, description, endpoint, active FROM agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []core.Agent
	for rows.Next() {
		var a core.Agent
		var active int
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Endpoint, &active); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		a.Active = active != 0
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// PutCrew stores a crew and its membership in one transaction.
func (db *DB) PutCrew(ctx context.Context, c core.Crew) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put crew: %w", err)
	}
	defer tx.Rollback()

	version := c.Version
	if version == 0 {
		version = 1
	}
	created := c.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO crews (id, name, description, version, created)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version`,
		c.ID, c.Name, c.Description, version, created,
	); err != nil {
		return fmt.Errorf("put crew: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM crew_members WHERE crew_id = ?`, c.ID); err != nil {
		return fmt.Errorf("reset crew members: %w", err)
	}
	for _, m := range c.Members {
		if err := db.insertMember(ctx, tx, c.ID, m); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (db *DB) insertMember(ctx context.Context, tx *sql.Tx, crewID string, m core.CrewMember) error {
	if err := db.putAgentTx(ctx, tx, m.Agent); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO crew_members (crew_id, agent_id, role, position)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(crew_id, agent_id) DO UPDATE SET
			role = excluded.role,
			position = excluded.position`,
		crewID, m.Agent.ID, m.Role, m.Position,
	); err != nil {
		return fmt.Errorf("insert crew member: %w", err)
	}
	return nil
}

func (db *DB) putAgentTx(ctx context.Context, tx *sql.Tx, a core.Agent) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO agents (id, name, description, endpoint, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			endpoint = excluded.endpoint,
			active = excluded.active`,
		a.ID, a.Name, a.Description, a.Endpoint, boolToInt(a.Active),
	); err != nil {
		return fmt.Errorf("put agent: %w", err)
	}
	return nil
}

// GetCrew returns the crew with members resolved to agent snapshots, ordered
// by position.
func (db *DB) GetCrew(ctx context.Context, id string) (*core.Crew, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, version, created FROM crews WHERE id = ?`, id)

	var crew core.Crew
	if err := row.Scan(&crew.ID, &crew.Name, &crew.Description, &crew.Version, &crew.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrCrewNotFound
		}
		return nil, fmt.Errorf("get crew: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT a.id, a.name, a.description, a.endpoint, a.active, m.role, m.position
		FROM crew_members m JOIN agents a ON a.id = m.agent_id
		WHERE m.crew_id = ?
		ORDER BY m.position`, id)
	if err != nil {
		return nil, fmt.Errorf("get crew members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m core.CrewMember
		var active int
		if err := rows.Scan(&m.Agent.ID, &m.Agent.Name, &m.Agent.Description,
			&m.Agent.Endpoint, &active, &m.Role, &m.Position); err != nil {
			return nil, fmt.Errorf("scan crew member: %w", err)
		}
		m.Agent.Active = active != 0
		crew.Members = append(crew.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &crew, nil
}

// CrewVersion returns the current membership version without loading
// members.
func (db *DB) CrewVersion(ctx context.Context, id string) (uint64, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT version FROM crews WHERE id = ?`, id)
	var version uint64
	if err := row.Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, core.ErrCrewNotFound
		}
		return 0, fmt.Errorf("crew version: %w", err)
	}
	return version, nil
}

// AddMember inserts a member and bumps the membership version in the same
// transaction.
func (db *DB) AddMember(ctx context.Context, crewID string, m core.CrewMember) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add member: %w", err)
	}
	defer tx.Rollback()

	if err := db.insertMember(ctx, tx, crewID, m); err != nil {
		return err
	}
	if err := bumpVersion(ctx, tx, crewID); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveMember deletes a member and bumps the membership version in the same
// transaction. Removing an absent member is a no-op without a version bump.
func (db *DB) RemoveMember(ctx context.Context, crewID, agentID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove member: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM crew_members WHERE crew_id = ? AND agent_id = ?`, crewID, agentID)
	if err != nil {
		return fmt.Errorf("remove crew member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove crew member: %w", err)
	}
	if affected == 0 {
		return nil
	}

	if err := bumpVersion(ctx, tx, crewID); err != nil {
		return err
	}
	return tx.Commit()
}

func bumpVersion(ctx context.Context, tx *sql.Tx, crewID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE crews SET version = version + 1 WHERE id = ?`, crewID)
	if err != nil {
		return fmt.Errorf("bump crew version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump crew version: %w", err)
	}
	if affected == 0 {
		return core.ErrCrewNotFound
	}
	return nil
}

// CreateTask stores a new task.
func (db *DB) CreateTask(ctx context.Context, t *core.Task) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, crew_id, status, error, created)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.CrewID, string(t.Status), t.Error, t.Created,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask returns a task by id.
func (db *DB) GetTask(ctx context.Context, id string) (*core.Task, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, title, description, crew_id, status, error, created, started, completed
		FROM tasks WHERE id = ?`, id)

	var t core.Task
	var status string
	var started, completed sql.NullTime
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.CrewID, &status,
		&t.Error, &t.Created, &started, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	t.Status = core.TaskStatus(status)
	if started.Valid {
		t.Started = &started.Time
	}
	if completed.Valid {
		t.Completed = &completed.Time
	}
	return &t, nil
}

// SetTaskStatus applies a lifecycle transition.
func (db *DB) SetTaskStatus(ctx context.Context, id string, status core.TaskStatus, cause string) error {
	now := time.Now().UTC()
	var res sql.Result
	var err error
	switch status {
	case core.TaskInProgress:
		res, err = db.conn.ExecContext(ctx,
			`UPDATE tasks SET status = ?, started = ? WHERE id = ?`, string(status), now, id)
	case core.TaskCompleted, core.TaskFailed:
		res, err = db.conn.ExecContext(ctx,
			`UPDATE tasks SET status = ?, error = ?, completed = ? WHERE id = ?`,
			string(status), cause, now, id)
	default:
		res, err = db.conn.ExecContext(ctx,
			`UPDATE tasks SET status = ? WHERE id = ?`, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	if affected == 0 {
		return core.ErrTaskNotFound
	}
	return nil
}

// AppendMessage appends a transcript message. No update or delete statements
// exist for task_messages; the transcript is append-only by construction.
func (db *DB) AppendMessage(ctx context.Context, m core.TaskMessage) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO task_messages (id, task_id, author, agent_name, content, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.TaskID, string(m.Author), m.AgentName, m.Content, m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Messages returns the transcript ordered by creation.
func (db *DB) Messages(ctx context.Context, taskID string) ([]core.TaskMessage, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, task_id, author, agent_name, content, timestamp
		FROM task_messages WHERE task_id = ? ORDER BY timestamp, rowid`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []core.TaskMessage
	for rows.Next() {
		var m core.TaskMessage
		var author string
		if err := rows.Scan(&m.ID, &m.TaskID, &author, &m.AgentName, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Author = core.MessageAuthor(author)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// WriteTelemetry persists a run's telemetry events.
func (db *DB) WriteTelemetry(ctx context.Context, events []core.TelemetryEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write telemetry: %w", err)
	}
	defer tx.Rollback()

	for _, ev := range events {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO telemetry_events
				(id, task_id, kind, target, start, end, success, error, prompt_tokens, completion_tokens)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.TaskID, string(ev.Kind), ev.Target, ev.Start, ev.End,
			boolToInt(ev.Success), ev.Error, ev.PromptTokens, ev.CompletionTokens,
		); err != nil {
			return fmt.Errorf("insert telemetry event: %w", err)
		}
	}
	return tx.Commit()
}

// TelemetryEvents returns all events recorded for a task in insertion order.
func (db *DB) TelemetryEvents(ctx context.Context, taskID string) ([]core.TelemetryEvent, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, task_id, kind, target, start, end, success, error, prompt_tokens, completion_tokens
		FROM telemetry_events WHERE task_id = ? ORDER BY rowid`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list telemetry: %w", err)
	}
	defer rows.Close()

	var events []core.TelemetryEvent
	for rows.Next() {
		var ev core.TelemetryEvent
		var kind string
		var success int
		if err := rows.Scan(&ev.ID, &ev.TaskID, &kind, &ev.Target, &ev.Start, &ev.End,
			&success, &ev.Error, &ev.PromptTokens, &ev.CompletionTokens); err != nil {
			return nil, fmt.Errorf("scan telemetry event: %w", err)
		}
		ev.Kind = core.TelemetryKind(kind)
		ev.Success = success != 0
		events = append(events, ev)
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
