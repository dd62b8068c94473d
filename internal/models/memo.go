package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// MemoType enumerates supported memo categories.
type MemoType string

const (
	MemoTypeGeneral       MemoType = "GENERAL"
	MemoTypeInstructional MemoType = "INSTRUCTIONAL"
	MemoTypeInformational MemoType = "INFORMATIONAL"
)

// MemoPriority captures memo urgency and handling level.
type MemoPriority string

const (
	MemoPriorityNormal       MemoPriority = "NORMAL"
	MemoPriorityUrgent       MemoPriority = "URGENT"
	MemoPriorityConfidential MemoPriority = "CONFIDENTIAL"
)

// MemoStatus captures approval workflow states.
type MemoStatus string

const (
	MemoStatusDraft             MemoStatus = "DRAFT"
	MemoStatusPendingDeskHead   MemoStatus = "PENDING_DESK_HEAD"
	MemoStatusPendingLEO        MemoStatus = "PENDING_LEO"
	MemoStatusApproved          MemoStatus = "APPROVED"
	MemoStatusReturnedToCreator MemoStatus = "RETURNED_TO_CREATOR"
	MemoStatusRejected          MemoStatus = "REJECTED"
)

// MemoStatuses lists every workflow state.
var MemoStatuses = []MemoStatus{
	MemoStatusDraft,
	MemoStatusPendingDeskHead,
	MemoStatusPendingLEO,
	MemoStatusApproved,
	MemoStatusReturnedToCreator,
	MemoStatusRejected,
}

// Editable reports whether memo content may change in this status.
func (s MemoStatus) Editable() bool {
	return s == MemoStatusDraft || s == MemoStatusReturnedToCreator
}

// Terminal reports whether no further transitions are possible.
func (s MemoStatus) Terminal() bool {
	return s == MemoStatusApproved || s == MemoStatusRejected
}

// Memo is an internal office memorandum moving through the approval workflow.
type Memo struct {
	ID          string         `db:"id" json:"id"`
	MemoNumber  string         `db:"memo_number" json:"memoNumber"`
	Title       string         `db:"title" json:"title"`
	MemoType    MemoType       `db:"memo_type" json:"memoType"`
	Department  string         `db:"department" json:"department"`
	Body        string         `db:"body" json:"body"`
	Priority    MemoPriority   `db:"priority" json:"priority"`
	Signature   string         `db:"signature" json:"signature"`
	DateOfIssue time.Time      `db:"date_of_issue" json:"dateOfIssue"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	Attachments AttachmentList `db:"attachments" json:"attachments"`

	Status        MemoStatus     `db:"status" json:"status"`
	Recipients    pq.StringArray `db:"recipients" json:"recipients"`
	CreatedBy     string         `db:"created_by" json:"createdBy"`
	CreatedByName string         `db:"created_by_name" json:"createdByName"`

	DeskHeadID         *string    `db:"desk_head_id" json:"deskHeadId,omitempty"`
	DeskHeadName       *string    `db:"desk_head_name" json:"deskHeadName,omitempty"`
	DeskHeadComment    *string    `db:"desk_head_comment" json:"deskHeadComment,omitempty"`
	DeskHeadReviewedAt *time.Time `db:"desk_head_reviewed_at" json:"deskHeadReviewedAt,omitempty"`
	LEOID              *string    `db:"leo_id" json:"leoId,omitempty"`
	LEOName            *string    `db:"leo_name" json:"leoName,omitempty"`
	LEOComment         *string    `db:"leo_comment" json:"leoComment,omitempty"`
	LEOReviewedAt      *time.Time `db:"leo_reviewed_at" json:"leoReviewedAt,omitempty"`

	SubmittedToDeskHeadAt *time.Time `db:"submitted_to_desk_head_at" json:"submittedToDeskHeadAt,omitempty"`
	SubmittedToLEOAt      *time.Time `db:"submitted_to_leo_at" json:"submittedToLeoAt,omitempty"`
	ApprovedAt            *time.Time `db:"approved_at" json:"approvedAt,omitempty"`

	Version   int        `db:"version" json:"version"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// ClearDeskHeadReview drops the desk-head review set.
func (m *Memo) ClearDeskHeadReview() {
	m.DeskHeadID = nil
	m.DeskHeadName = nil
	m.DeskHeadComment = nil
	m.DeskHeadReviewedAt = nil
}

// ClearLEOReview drops the LEO review set.
func (m *Memo) ClearLEOReview() {
	m.LEOID = nil
	m.LEOName = nil
	m.LEOComment = nil
	m.LEOReviewedAt = nil
}

// HasAttachment reports whether a file with the given name is attached.
func (m *Memo) HasAttachment(fileName string) bool {
	_, ok := m.Attachments.Find(fileName)
	return ok
}

// IsRecipient reports whether actorID is one of the memo recipients.
func (m *Memo) IsRecipient(actorID string) bool {
	for _, r := range m.Recipients {
		if r == actorID {
			return true
		}
	}
	return false
}

// Attachment references a file held by the attachment store.
type Attachment struct {
	FileID     string    `json:"fileId"`
	FileName   string    `json:"fileName"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	MemoID     string    `json:"memoId"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// AttachmentList is persisted as a JSONB array.
type AttachmentList []Attachment

// Find returns the attachment with the given file name.
func (l AttachmentList) Find(fileName string) (Attachment, bool) {
	for _, a := range l {
		if a.FileName == fileName {
			return a, true
		}
	}
	return Attachment{}, false
}

// Without returns a copy of the list excluding fileName.
func (l AttachmentList) Without(fileName string) AttachmentList {
	out := make(AttachmentList, 0, len(l))
	for _, a := range l {
		if a.FileName != fileName {
			out = append(out, a)
		}
	}
	return out
}

// Value marshals the list to JSON for persistence.
func (l AttachmentList) Value() (driver.Value, error) {
	if l == nil {
		l = AttachmentList{}
	}
	data, err := json.Marshal([]Attachment(l))
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSON array into the list.
func (l *AttachmentList) Scan(value interface{}) error {
	if value == nil {
		*l = AttachmentList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for AttachmentList", value)
	}
	if len(data) == 0 {
		*l = AttachmentList{}
		return nil
	}
	var items []Attachment
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("unmarshal attachments: %w", err)
	}
	*l = items
	return nil
}

// MemoFilter constrains listing queries.
type MemoFilter struct {
	Status     []MemoStatus
	Department string
	Recipient  string
	CreatedBy  string
	Limit      int
	Offset     int
}
