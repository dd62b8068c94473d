package dto

import "github.com/noah-isme/office-memo-api/internal/models"

// CreateMemoRequest is the JSON `payload` part of a multipart memo creation.
type CreateMemoRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	MemoType    models.MemoType     `json:"memoType" validate:"required,oneof=GENERAL INSTRUCTIONAL INFORMATIONAL"`
	Department  string              `json:"department" validate:"required,max=32"`
	Body        string              `json:"body" validate:"required"`
	Priority    models.MemoPriority `json:"priority" validate:"omitempty,oneof=NORMAL URGENT CONFIDENTIAL"`
	Signature   string              `json:"signature" validate:"max=200"`
	DateOfIssue string              `json:"dateOfIssue" validate:"omitempty,datetime=2006-01-02"`
	Tags        []string            `json:"tags" validate:"max=20,dive,required,max=50"`
	Recipients  []string            `json:"recipients" validate:"max=100,dive,required"`
}

// UpdateMemoRequest replaces the editable content of a memo.
type UpdateMemoRequest CreateMemoRequest

// WorkflowActionRequest carries a reviewer decision.
type WorkflowActionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment" validate:"max=2000"`
}

// MemoQuery mirrors supported listing filters.
type MemoQuery struct {
	Status     []string `form:"status"`
	Department string   `form:"department"`
	Recipient  string   `form:"recipient"`
	CreatedBy  string   `form:"createdBy"`
	Limit      int      `form:"limit"`
	Offset     int      `form:"offset"`
}

// AttachmentLink is a time-limited download URL.
type AttachmentLink struct {
	FileName  string `json:"fileName"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}
