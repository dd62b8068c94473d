package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/office-memo-api/internal/models"
	"github.com/noah-isme/office-memo-api/pkg/database"
)

// ErrVersionConflict is returned when a guarded write finds a newer memo version.
var ErrVersionConflict = errors.New("memo version conflict")

const memoColumns = `id, memo_number, title, memo_type, department, body, priority, signature, date_of_issue,
       tags, attachments, status, recipients, created_by, created_by_name,
       desk_head_id, desk_head_name, desk_head_comment, desk_head_reviewed_at,
       leo_id, leo_name, leo_comment, leo_reviewed_at,
       submitted_to_desk_head_at, submitted_to_leo_at, approved_at,
       version, created_at, updated_at, deleted_at`

const historyColumns = `id, memo_id, sequence, action, from_status, to_status, actor_id, actor_role, actor_name, comment, created_at`

// MemoRepository persists memos and their workflow history.
type MemoRepository struct {
	db *sqlx.DB
}

// NewMemoRepository constructs the repository.
func NewMemoRepository(db *sqlx.DB) *MemoRepository {
	return &MemoRepository{db: db}
}

// Create inserts the memo together with its CREATE history entry.
func (r *MemoRepository) Create(ctx context.Context, memo *models.Memo, entry *models.WorkflowHistoryEntry) error {
	if memo.ID == "" {
		memo.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if memo.CreatedAt.IsZero() {
		memo.CreatedAt = now
	}
	if memo.UpdatedAt.IsZero() {
		memo.UpdatedAt = memo.CreatedAt
	}
	if memo.Version == 0 {
		memo.Version = 1
	}
	if memo.Attachments == nil {
		memo.Attachments = models.AttachmentList{}
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.MemoID = memo.ID
	entry.Sequence = 1
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = memo.CreatedAt
	}

	const insertMemo = `INSERT INTO memos
	(id, memo_number, title, memo_type, department, body, priority, signature, date_of_issue, tags, attachments,
	 status, recipients, created_by, created_by_name, version, created_at, updated_at)
	VALUES (:id, :memo_number, :title, :memo_type, :department, :body, :priority, :signature, :date_of_issue, :tags, :attachments,
	 :status, :recipients, :created_by, :created_by_name, :version, :created_at, :updated_at)`
	const insertHistory = `INSERT INTO memo_workflow_history
	(id, memo_id, sequence, action, from_status, to_status, actor_id, actor_role, actor_name, comment, created_at)
	VALUES (:id, :memo_id, :sequence, :action, :from_status, :to_status, :actor_id, :actor_role, :actor_name, :comment, :created_at)`

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertMemo, memo); err != nil {
			return fmt.Errorf("create memo: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, insertHistory, entry); err != nil {
			return fmt.Errorf("create memo history: %w", err)
		}
		return nil
	})
}

// GetByID fetches a live memo. Logically deleted memos yield sql.ErrNoRows.
func (r *MemoRepository) GetByID(ctx context.Context, id string) (*models.Memo, error) {
	query := `SELECT ` + memoColumns + ` FROM memos WHERE id = $1 AND deleted_at IS NULL`
	var memo models.Memo
	if err := r.db.GetContext(ctx, &memo, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get memo: %w", err)
	}
	return &memo, nil
}

// List returns live memos matching the filter, newest first.
func (r *MemoRepository) List(ctx context.Context, filter models.MemoFilter) ([]models.Memo, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT ` + memoColumns + ` FROM memos`)

	conditions := []string{"deleted_at IS NULL"}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Recipient != "" {
		args = append(args, filter.Recipient)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(recipients)", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	builder.WriteString(" WHERE ")
	builder.WriteString(strings.Join(conditions, " AND "))
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var memos []models.Memo
	if err := r.db.SelectContext(ctx, &memos, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list memos: %w", err)
	}
	return memos, nil
}

// Save persists content fields guarded by the memo's current version. On
// success memo.Version is advanced to the stored value.
func (r *MemoRepository) Save(ctx context.Context, memo *models.Memo) error {
	const query = `UPDATE memos SET
	title = :title, memo_type = :memo_type, department = :department, body = :body, priority = :priority,
	signature = :signature, date_of_issue = :date_of_issue, tags = :tags, attachments = :attachments,
	recipients = :recipients, updated_at = :updated_at, version = version + 1
	WHERE id = :id AND version = :version AND deleted_at IS NULL`
	result, err := r.db.NamedExecContext(ctx, query, memo)
	if err != nil {
		return fmt.Errorf("save memo: %w", err)
	}
	if err := checkVersionedWrite(result); err != nil {
		return err
	}
	memo.Version++
	return nil
}

// ApplyTransition writes the memo's workflow fields and appends the history
// entry in one transaction. Either both land or neither does.
func (r *MemoRepository) ApplyTransition(ctx context.Context, memo *models.Memo, entry *models.WorkflowHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.MemoID = memo.ID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	const update = `UPDATE memos SET
	status = :status,
	desk_head_id = :desk_head_id, desk_head_name = :desk_head_name, desk_head_comment = :desk_head_comment,
	desk_head_reviewed_at = :desk_head_reviewed_at,
	leo_id = :leo_id, leo_name = :leo_name, leo_comment = :leo_comment, leo_reviewed_at = :leo_reviewed_at,
	submitted_to_desk_head_at = :submitted_to_desk_head_at, submitted_to_leo_at = :submitted_to_leo_at,
	approved_at = :approved_at, updated_at = :updated_at, version = version + 1
	WHERE id = :id AND version = :version AND deleted_at IS NULL`
	const insertHistory = `INSERT INTO memo_workflow_history
	(id, memo_id, sequence, action, from_status, to_status, actor_id, actor_role, actor_name, comment, created_at)
	VALUES ($1, $2, (SELECT COALESCE(MAX(sequence), 0) + 1 FROM memo_workflow_history WHERE memo_id = $2),
	 $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING sequence`

	var sequence int
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.NamedExecContext(ctx, update, memo)
		if err != nil {
			return fmt.Errorf("update memo workflow: %w", err)
		}
		if err := checkVersionedWrite(result); err != nil {
			return err
		}
		if err := tx.QueryRowxContext(ctx, insertHistory,
			entry.ID, entry.MemoID, entry.Action, entry.FromStatus, entry.ToStatus,
			entry.ActorID, entry.ActorRole, entry.ActorName, entry.Comment, entry.CreatedAt,
		).Scan(&sequence); err != nil {
			return fmt.Errorf("append memo history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	entry.Sequence = sequence
	memo.Version++
	return nil
}

// ListHistory returns the memo's history oldest first.
func (r *MemoRepository) ListHistory(ctx context.Context, memoID string) ([]models.WorkflowHistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM memo_workflow_history WHERE memo_id = $1 ORDER BY sequence ASC`
	var entries []models.WorkflowHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, memoID); err != nil {
		return nil, fmt.Errorf("list memo history: %w", err)
	}
	return entries, nil
}

// SoftDelete marks the memo deleted, guarded by version.
func (r *MemoRepository) SoftDelete(ctx context.Context, id string, version int, at time.Time) error {
	const query = `UPDATE memos SET deleted_at = $1, updated_at = $1, version = version + 1
	WHERE id = $2 AND version = $3 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, at, id, version)
	if err != nil {
		return fmt.Errorf("delete memo: %w", err)
	}
	return checkVersionedWrite(result)
}

func checkVersionedWrite(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check memo update rows: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}
