package models

import "time"

// WorkflowAction names a recorded workflow event.
type WorkflowAction string

const (
	WorkflowActionCreate           WorkflowAction = "CREATE"
	WorkflowActionSubmitToDeskHead WorkflowAction = "SUBMIT_TO_DESK_HEAD"
	WorkflowActionApprove          WorkflowAction = "APPROVE"
	WorkflowActionReturnToCreator  WorkflowAction = "RETURN_TO_CREATOR"
	WorkflowActionReject           WorkflowAction = "REJECT"
)

// WorkflowHistoryEntry is an immutable record of one workflow event.
type WorkflowHistoryEntry struct {
	ID         string         `db:"id" json:"id"`
	MemoID     string         `db:"memo_id" json:"memoId"`
	Sequence   int            `db:"sequence" json:"sequence"`
	Action     WorkflowAction `db:"action" json:"action"`
	FromStatus *MemoStatus    `db:"from_status" json:"fromStatus,omitempty"`
	ToStatus   MemoStatus     `db:"to_status" json:"toStatus"`
	ActorID    string         `db:"actor_id" json:"actorId"`
	ActorRole  UserRole       `db:"actor_role" json:"actorRole"`
	ActorName  string         `db:"actor_name" json:"actorName"`
	Comment    *string        `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}
