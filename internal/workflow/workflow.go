// Package workflow holds the memo approval state machine: the transition
// table, who may act in each state, and the history fold.
package workflow

import (
	"fmt"
	"strings"

	"github.com/noah-isme/office-memo-api/internal/models"
	appErrors "github.com/noah-isme/office-memo-api/pkg/errors"
)

// Action is a transition request verb.
type Action string

const (
	ActionSubmitToDeskHead Action = "submit_to_desk_head"
	ActionApprove          Action = "approve"
	ActionReturnToCreator  Action = "return_to_creator"
	ActionReject           Action = "reject"
)

// Actions lists every transition verb.
var Actions = []Action{ActionSubmitToDeskHead, ActionApprove, ActionReturnToCreator, ActionReject}

// RoleCreator is reported as the required role for states owned by the memo author.
const RoleCreator = "CREATOR"

var table = map[models.MemoStatus]map[Action]models.MemoStatus{
	models.MemoStatusDraft: {
		ActionSubmitToDeskHead: models.MemoStatusPendingDeskHead,
	},
	models.MemoStatusReturnedToCreator: {
		ActionSubmitToDeskHead: models.MemoStatusPendingDeskHead,
	},
	models.MemoStatusPendingDeskHead: {
		ActionApprove:         models.MemoStatusPendingLEO,
		ActionReturnToCreator: models.MemoStatusReturnedToCreator,
		ActionReject:          models.MemoStatusRejected,
	},
	models.MemoStatusPendingLEO: {
		ActionApprove:         models.MemoStatusApproved,
		ActionReturnToCreator: models.MemoStatusReturnedToCreator,
		ActionReject:          models.MemoStatusRejected,
	},
}

var historyActions = map[Action]models.WorkflowAction{
	ActionSubmitToDeskHead: models.WorkflowActionSubmitToDeskHead,
	ActionApprove:          models.WorkflowActionApprove,
	ActionReturnToCreator:  models.WorkflowActionReturnToCreator,
	ActionReject:           models.WorkflowActionReject,
}

// ParseAction normalises raw input into a known action.
func ParseAction(raw string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := historyActions[action]; !ok {
		err := appErrors.Validation("action", fmt.Sprintf("unknown action %q", raw))
		return "", appErrors.WithDetail(err, "allowed", Actions)
	}
	return action, nil
}

// RequiresComment reports whether the action must carry a reviewer comment.
func (a Action) RequiresComment() bool {
	return a == ActionReject || a == ActionReturnToCreator
}

// HistoryAction maps the verb to its recorded history action.
func (a Action) HistoryAction() models.WorkflowAction {
	return historyActions[a]
}

// ValidateComment enforces the comment rule independently of state and actor.
func ValidateComment(action Action, comment string) error {
	if action.RequiresComment() && strings.TrimSpace(comment) == "" {
		return appErrors.Validation("comment", "comment required")
	}
	return nil
}

// Next returns the destination of action from status.
func Next(status models.MemoStatus, action Action) (models.MemoStatus, bool) {
	edges, ok := table[status]
	if !ok {
		return "", false
	}
	to, ok := edges[action]
	return to, ok
}

// Transition is like Next but reports an illegal pair as an error.
func Transition(status models.MemoStatus, action Action) (models.MemoStatus, error) {
	to, ok := Next(status, action)
	if !ok {
		return "", appErrors.InvalidTransition(string(status), string(action))
	}
	return to, nil
}

// RequiredRole names who may act on a memo in status. Terminal states return "".
func RequiredRole(status models.MemoStatus) string {
	switch status {
	case models.MemoStatusDraft, models.MemoStatusReturnedToCreator:
		return RoleCreator
	case models.MemoStatusPendingDeskHead:
		return string(models.RoleDeskHead)
	case models.MemoStatusPendingLEO:
		return string(models.RoleLEO)
	default:
		return ""
	}
}

// Authorize checks the actor against the outgoing edges of the memo's current
// state. Terminal states have no edges and always pass.
func Authorize(memo *models.Memo, actor models.Actor) error {
	if memo.Status.Terminal() {
		return nil
	}
	required := RequiredRole(memo.Status)
	switch required {
	case RoleCreator:
		if actor.ID != "" && actor.ID == memo.CreatedBy {
			return nil
		}
	default:
		if string(actor.Role) == required {
			return nil
		}
	}
	return appErrors.UnauthorizedAction(string(memo.Status), required, string(actor.Role))
}

// Fold replays history into the status it implies. The first entry must be
// CREATE and every later entry a legal edge from the running status.
func Fold(history []models.WorkflowHistoryEntry) (models.MemoStatus, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("fold: empty history")
	}
	var status models.MemoStatus
	for i, entry := range history {
		if i == 0 {
			if entry.Action != models.WorkflowActionCreate || entry.ToStatus != models.MemoStatusDraft {
				return "", fmt.Errorf("fold: history must start with CREATE, got %s", entry.Action)
			}
			status = models.MemoStatusDraft
			continue
		}
		if entry.FromStatus == nil || *entry.FromStatus != status {
			return "", fmt.Errorf("fold: entry %d does not start from %s", entry.Sequence, status)
		}
		action, ok := verbFor(entry.Action)
		if !ok {
			return "", fmt.Errorf("fold: entry %d has unexpected action %s", entry.Sequence, entry.Action)
		}
		to, ok := Next(status, action)
		if !ok || to != entry.ToStatus {
			return "", fmt.Errorf("fold: entry %d moves %s to %s illegally", entry.Sequence, status, entry.ToStatus)
		}
		status = to
	}
	return status, nil
}

func verbFor(action models.WorkflowAction) (Action, bool) {
	for verb, recorded := range historyActions {
		if recorded == action {
			return verb, true
		}
	}
	return "", false
}
