package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/office-memo-api/internal/models"
	appErrors "github.com/noah-isme/office-memo-api/pkg/errors"
)

func TestParseAction(t *testing.T) {
	action, err := ParseAction(" Approve ")
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, action)

	_, err = ParseAction("escalate")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, "action", appErrors.FromError(err).Details["field"])
}

func TestEveryPairOutsideTableIsInvalid(t *testing.T) {
	legal := 0
	for _, status := range models.MemoStatuses {
		for _, action := range Actions {
			to, err := Transition(status, action)
			if _, ok := table[status][action]; ok {
				require.NoError(t, err)
				assert.NotEmpty(t, to)
				legal++
				continue
			}
			require.Error(t, err, "%s/%s", status, action)
			assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
			details := appErrors.FromError(err).Details
			assert.Equal(t, string(status), details["status"])
			assert.Equal(t, string(action), details["action"])
		}
	}
	assert.Equal(t, 8, legal)
}

func TestResubmissionLandsInPendingDeskHead(t *testing.T) {
	to, ok := Next(models.MemoStatusReturnedToCreator, ActionSubmitToDeskHead)
	require.True(t, ok)
	assert.Equal(t, models.MemoStatusPendingDeskHead, to)
}

func TestValidateCommentIgnoresStateAndActor(t *testing.T) {
	for _, action := range []Action{ActionReject, ActionReturnToCreator} {
		for _, comment := range []string{"", "   ", "\n\t"} {
			err := ValidateComment(action, comment)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
			assert.Equal(t, "comment", appErrors.FromError(err).Details["field"])
		}
		assert.NoError(t, ValidateComment(action, "needs budget line"))
	}
	assert.NoError(t, ValidateComment(ActionApprove, ""))
	assert.NoError(t, ValidateComment(ActionSubmitToDeskHead, ""))
}

func TestAuthorize(t *testing.T) {
	creator := models.Actor{ID: "u-1", Role: models.RoleStaff}
	deskHead := models.Actor{ID: "u-2", Role: models.RoleDeskHead}
	leo := models.Actor{ID: "u-3", Role: models.RoleLEO}

	memo := &models.Memo{CreatedBy: creator.ID, Status: models.MemoStatusDraft}
	assert.NoError(t, Authorize(memo, creator))
	err := Authorize(memo, deskHead)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorizedAction))
	details := appErrors.FromError(err).Details
	assert.Equal(t, RoleCreator, details["requiredRole"])
	assert.Equal(t, string(models.RoleDeskHead), details["actorRole"])

	memo.Status = models.MemoStatusPendingDeskHead
	assert.NoError(t, Authorize(memo, deskHead))
	assert.Error(t, Authorize(memo, creator))
	assert.Error(t, Authorize(memo, leo))

	memo.Status = models.MemoStatusPendingLEO
	assert.NoError(t, Authorize(memo, leo))
	assert.Error(t, Authorize(memo, deskHead))

	for _, status := range []models.MemoStatus{models.MemoStatusApproved, models.MemoStatusRejected} {
		memo.Status = status
		assert.True(t, status.Terminal())
		assert.NoError(t, Authorize(memo, creator))
		assert.NoError(t, Authorize(memo, models.Actor{ID: "u-9", Role: models.RoleStaff}))
	}
	assert.False(t, models.MemoStatusPendingLEO.Terminal())
}

func TestFold(t *testing.T) {
	draft := models.MemoStatusDraft
	pendingDH := models.MemoStatusPendingDeskHead
	pendingLEO := models.MemoStatusPendingLEO
	history := []models.WorkflowHistoryEntry{
		{Sequence: 1, Action: models.WorkflowActionCreate, ToStatus: models.MemoStatusDraft},
		{Sequence: 2, Action: models.WorkflowActionSubmitToDeskHead, FromStatus: &draft, ToStatus: pendingDH},
		{Sequence: 3, Action: models.WorkflowActionApprove, FromStatus: &pendingDH, ToStatus: pendingLEO},
		{Sequence: 4, Action: models.WorkflowActionReject, FromStatus: &pendingLEO, ToStatus: models.MemoStatusRejected},
	}
	status, err := Fold(history)
	require.NoError(t, err)
	assert.Equal(t, models.MemoStatusRejected, status)

	_, err = Fold(nil)
	assert.Error(t, err)

	broken := append([]models.WorkflowHistoryEntry{}, history[:2]...)
	broken = append(broken, models.WorkflowHistoryEntry{Sequence: 3, Action: models.WorkflowActionApprove, FromStatus: &pendingDH, ToStatus: models.MemoStatusApproved})
	_, err = Fold(broken)
	assert.Error(t, err)
}
