package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AgentRecord is the persisted view of one agent session.
type AgentRecord struct {
	AgentID      string     `json:"agent_id"`
	TaskID       string     `json:"task_id"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	Model        string     `json:"model"`
	Status       string     `json:"status"`
	TotalCostUSD float64    `json:"total_cost_usd"`
	TotalTokens  int        `json:"total_tokens"`
	ToolCalls    int        `json:"tool_calls"`
	MessagesSent int        `json:"messages_sent"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// TaskRecord is the persisted view of one orchestrated task.
type TaskRecord struct {
	TaskID         string     `json:"task_id"`
	Description    string     `json:"description"`
	TaskType       string     `json:"task_type"`
	Status         string     `json:"status"`
	AssignedAgents []string   `json:"assigned_agents"`
	TotalCostUSD   float64    `json:"total_cost_usd"`
	CurrentStep    int        `json:"current_step"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Result         string     `json:"result,omitempty"`
}

// Store provides idempotent upserts and reads over the agents and tasks
// tables.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open client.
func NewStore(client *Client) *Store {
	return &Store{db: client.DB()}
}

// UpsertAgent inserts or replaces an agent record with its current metrics
// snapshot.
func (s *Store) UpsertAgent(ctx context.Context, record AgentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents
			(agent_id, task_id, name, role, model, status, total_cost, total_tokens,
			 tool_calls, messages_sent, created_at, completed_at, deleted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
		ON CONFLICT (agent_id) DO UPDATE SET
			task_id       = EXCLUDED.task_id,
			name          = EXCLUDED.name,
			role          = EXCLUDED.role,
			model         = EXCLUDED.model,
			status        = EXCLUDED.status,
			total_cost    = EXCLUDED.total_cost,
			total_tokens  = EXCLUDED.total_tokens,
			tool_calls    = EXCLUDED.tool_calls,
			messages_sent = EXCLUDED.messages_sent,
			completed_at  = EXCLUDED.completed_at,
			deleted_at    = EXCLUDED.deleted_at,
			updated_at    = now()`,
		record.AgentID, record.TaskID, record.Name, record.Role, record.Model,
		record.Status, record.TotalCostUSD, record.TotalTokens,
		record.ToolCalls, record.MessagesSent,
		record.CreatedAt, record.CompletedAt, record.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert agent %s: %w", record.AgentID, err)
	}
	return nil
}

// MarkAgentDeleted stamps deleted_at and the deleted status on an agent.
func (s *Store) MarkAgentDeleted(ctx context.Context, agentID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agents SET status = 'deleted', deleted_at = $2, updated_at = now()
		WHERE agent_id = $1`,
		agentID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark agent %s deleted: %w", agentID, err)
	}
	return nil
}

// GetAgent returns one agent record, or sql.ErrNoRows.
func (s *Store) GetAgent(ctx context.Context, agentID string) (AgentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, task_id, name, role, model, status, total_cost, total_tokens,
		       tool_calls, messages_sent, created_at, completed_at, deleted_at
		FROM agents WHERE agent_id = $1`,
		agentID,
	)
	return scanAgent(row)
}

// ListAgents returns agent records filtered by status and role (empty
// filters match everything), newest first.
func (s *Store) ListAgents(ctx context.Context, status, role string) ([]AgentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, task_id, name, role, model, status, total_cost, total_tokens,
		       tool_calls, messages_sent, created_at, completed_at, deleted_at
		FROM agents
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR role = $2)
		ORDER BY created_at DESC`,
		status, role,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var records []AgentRecord
	for rows.Next() {
		record, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpsertTask inserts or replaces a task record.
func (s *Store) UpsertTask(ctx context.Context, record TaskRecord) error {
	agents, err := json.Marshal(record.AssignedAgents)
	if err != nil {
		return fmt.Errorf("failed to marshal assigned agents: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks
			(task_id, description, task_type, status, assigned_agents, total_cost,
			 current_step, created_at, completed_at, result, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (task_id) DO UPDATE SET
			description     = EXCLUDED.description,
			task_type       = EXCLUDED.task_type,
			status          = EXCLUDED.status,
			assigned_agents = EXCLUDED.assigned_agents,
			total_cost      = EXCLUDED.total_cost,
			current_step    = EXCLUDED.current_step,
			completed_at    = EXCLUDED.completed_at,
			result          = EXCLUDED.result,
			updated_at      = now()`,
		record.TaskID, record.Description, record.TaskType, record.Status,
		agents, record.TotalCostUSD, record.CurrentStep,
		record.CreatedAt, record.CompletedAt, nullableString(record.Result),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", record.TaskID, err)
	}
	return nil
}

// GetTask returns one task record, or sql.ErrNoRows.
func (s *Store) GetTask(ctx context.Context, taskID string) (TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, description, task_type, status, assigned_agents, total_cost,
		       current_step, created_at, completed_at, result
		FROM tasks WHERE task_id = $1`,
		taskID,
	)
	return scanTask(row)
}

// ListTasks returns task records filtered by status, newest first.
func (s *Store) ListTasks(ctx context.Context, status string) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, description, task_type, status, assigned_agents, total_cost,
		       current_step, created_at, completed_at, result
		FROM tasks
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		record, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// TotalCost sums cost across all tasks.
func (s *Store) TotalCost(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `SELECT SUM(total_cost) FROM tasks`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum task cost: %w", err)
	}
	return total.Float64, nil
}

// CostByRole returns the summed agent cost for each role, keyed by role.
func (s *Store) CostByRole(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, SUM(total_cost) AS total
		FROM agents GROUP BY role ORDER BY total DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to group cost by role: %w", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var role string
		var total float64
		if err := rows.Scan(&role, &total); err != nil {
			return nil, err
		}
		out[role] = total
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (AgentRecord, error) {
	var r AgentRecord
	err := row.Scan(
		&r.AgentID, &r.TaskID, &r.Name, &r.Role, &r.Model, &r.Status,
		&r.TotalCostUSD, &r.TotalTokens, &r.ToolCalls, &r.MessagesSent,
		&r.CreatedAt, &r.CompletedAt, &r.DeletedAt,
	)
	if err != nil {
		return AgentRecord{}, err
	}
	return r, nil
}

func scanTask(row rowScanner) (TaskRecord, error) {
	var r TaskRecord
	var agents []byte
	var result sql.NullString
	err := row.Scan(
		&r.TaskID, &r.Description, &r.TaskType, &r.Status, &agents,
		&r.TotalCostUSD, &r.CurrentStep, &r.CreatedAt, &r.CompletedAt, &result,
	)
	if err != nil {
		return TaskRecord{}, err
	}
	if len(agents) > 0 {
		if err := json.Unmarshal(agents, &r.AssignedAgents); err != nil {
			return TaskRecord{}, fmt.Errorf("failed to unmarshal assigned agents: %w", err)
		}
	}
	r.Result = result.String
	return r, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
