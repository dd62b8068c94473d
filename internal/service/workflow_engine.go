package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/office-memo-api/internal/models"
	"github.com/noah-isme/office-memo-api/internal/repository"
	"github.com/noah-isme/office-memo-api/internal/workflow"
	appErrors "github.com/noah-isme/office-memo-api/pkg/errors"
)

type workflowStore interface {
	GetByID(ctx context.Context, id string) (*models.Memo, error)
	ApplyTransition(ctx context.Context, memo *models.Memo, entry *models.WorkflowHistoryEntry) error
}

// TransitionRequest asks the engine to move a memo along the workflow.
type TransitionRequest struct {
	MemoID  string
	Action  string
	Comment string
	Actor   models.Actor
	// Stage optionally pins the status the caller expects the memo to be in.
	Stage models.MemoStatus
}

// WorkflowEngine validates and applies workflow transitions. It holds no
// per-memo state; the repository version check serialises concurrent writers.
type WorkflowEngine struct {
	repo    workflowStore
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewWorkflowEngine constructs the engine.
func NewWorkflowEngine(repo workflowStore, metrics *MetricsService, logger *zap.Logger) *WorkflowEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowEngine{repo: repo, metrics: metrics, logger: logger, now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }}
}

// Transition re-reads the memo, checks the request and persists the new state
// together with its history entry.
func (e *WorkflowEngine) Transition(ctx context.Context, req TransitionRequest) (*models.Memo, *models.WorkflowHistoryEntry, error) {
	memo, entry, err := e.transition(ctx, req)
	result := "success"
	if err != nil {
		result = appErrors.FromError(err).Code
	}
	e.metrics.RecordTransition(strings.ToLower(strings.TrimSpace(req.Action)), result)
	return memo, entry, err
}

func (e *WorkflowEngine) transition(ctx context.Context, req TransitionRequest) (*models.Memo, *models.WorkflowHistoryEntry, error) {
	action, err := workflow.ParseAction(req.Action)
	if err != nil {
		return nil, nil, err
	}
	if err := workflow.ValidateComment(action, req.Comment); err != nil {
		return nil, nil, err
	}

	memo, err := e.repo.GetByID(ctx, req.MemoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.NotFound("memo", req.MemoID)
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load memo")
	}

	if err := workflow.Authorize(memo, req.Actor); err != nil {
		return nil, nil, err
	}
	if req.Stage != "" && memo.Status != req.Stage {
		return nil, nil, appErrors.InvalidTransition(string(memo.Status), string(action))
	}
	from := memo.Status
	to, err := workflow.Transition(from, action)
	if err != nil {
		return nil, nil, err
	}

	now := e.now()
	comment := optionalString(req.Comment)
	applyTransitionEffects(memo, from, action, req.Actor, comment, now)
	memo.Status = to
	memo.UpdatedAt = now

	expected := memo.Version
	entry := &models.WorkflowHistoryEntry{
		MemoID:     memo.ID,
		Action:     action.HistoryAction(),
		FromStatus: &from,
		ToStatus:   to,
		ActorID:    req.Actor.ID,
		ActorRole:  req.Actor.Role,
		ActorName:  req.Actor.DisplayName,
		Comment:    comment,
		CreatedAt:  now,
	}
	if err := e.repo.ApplyTransition(ctx, memo, entry); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, nil, appErrors.Conflict(memo.ID, expected)
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist transition")
	}

	e.logger.Info("memo transitioned",
		zap.String("memo_id", memo.ID),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_id", req.Actor.ID),
	)
	return memo, entry, nil
}

// applyTransitionEffects keeps at most one review set populated while a memo
// is mid-workflow. A reject keeps the earlier desk-head review alongside the
// LEO decision.
func applyTransitionEffects(memo *models.Memo, from models.MemoStatus, action workflow.Action, actor models.Actor, comment *string, now time.Time) {
	actorID := actor.ID
	actorName := actor.DisplayName
	reviewedAt := now

	if action == workflow.ActionSubmitToDeskHead {
		memo.ClearDeskHeadReview()
		memo.ClearLEOReview()
		memo.SubmittedToLEOAt = nil
		memo.SubmittedToDeskHeadAt = &reviewedAt
		return
	}

	switch from {
	case models.MemoStatusPendingDeskHead:
		memo.DeskHeadID = &actorID
		memo.DeskHeadName = &actorName
		memo.DeskHeadComment = comment
		memo.DeskHeadReviewedAt = &reviewedAt
		if action == workflow.ActionApprove {
			memo.SubmittedToLEOAt = &reviewedAt
		}
	case models.MemoStatusPendingLEO:
		memo.LEOID = &actorID
		memo.LEOName = &actorName
		memo.LEOComment = comment
		memo.LEOReviewedAt = &reviewedAt
		switch action {
		case workflow.ActionApprove:
			memo.ApprovedAt = &reviewedAt
		case workflow.ActionReturnToCreator:
			memo.ClearDeskHeadReview()
		}
	}
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
