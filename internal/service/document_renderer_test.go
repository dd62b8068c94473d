package service

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/office-memo-api/internal/models"
	"github.com/noah-isme/office-memo-api/pkg/config"
	appErrors "github.com/noah-isme/office-memo-api/pkg/errors"
)

func approvedMemo() *models.Memo {
	approvedAt := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	return &models.Memo{
		ID:          "memo-1",
		MemoNumber:  "MEMO/FIN/2026/abcd1234",
		Title:       "Budget <freeze>",
		MemoType:    models.MemoTypeInstructional,
		Department:  "FIN",
		Body:        "All discretionary spending is paused.",
		Priority:    models.MemoPriorityUrgent,
		Signature:   "J. Doe",
		DateOfIssue: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:      models.MemoStatusApproved,
		ApprovedAt:  &approvedAt,
		Version:     5,
		UpdatedAt:   approvedAt,
	}
}

func TestDocumentRendererStrictIsIdempotent(t *testing.T) {
	renderer := NewDocumentRenderer(config.DefaultTemplateCatalog(), nil)
	memo := approvedMemo()

	first, err := renderer.Render(memo, models.RenderModeStrict)
	require.NoError(t, err)
	second, err := renderer.Render(memo, models.RenderModeStrict)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Regexp(t, `^DOC-[0-9A-F]{16}$`, first.DocumentID)
	assert.Equal(t, "memo-instructional", first.Template)
	assert.Equal(t, "01 March 2026", first.Date)
	assert.True(t, first.GeneratedAt.Equal(*memo.ApprovedAt))
	assert.False(t, first.Preview)

	htmlA, err := renderer.RenderHTML(memo, models.RenderModeStrict)
	require.NoError(t, err)
	htmlB, err := renderer.RenderHTML(memo, models.RenderModeStrict)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(htmlA, htmlB))
	assert.Contains(t, string(htmlA), "Budget &lt;freeze&gt;")
	assert.NotContains(t, string(htmlA), "PREVIEW")
}

func TestDocumentRendererStrictRequiresApproval(t *testing.T) {
	renderer := NewDocumentRenderer(config.DefaultTemplateCatalog(), nil)
	for _, status := range models.MemoStatuses {
		if status == models.MemoStatusApproved {
			continue
		}
		memo := approvedMemo()
		memo.Status = status
		memo.ApprovedAt = nil

		_, err := renderer.Render(memo, models.RenderModeStrict)
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrNotReady))
		assert.Equal(t, string(status), appErrors.FromError(err).Details["status"])

		_, err = renderer.RenderPDF(memo, models.RenderModeStrict)
		assert.True(t, errors.Is(err, appErrors.ErrNotReady))
	}
}

func TestDocumentRendererPreview(t *testing.T) {
	renderer := NewDocumentRenderer(config.DefaultTemplateCatalog(), nil)
	memo := approvedMemo()
	memo.Status = models.MemoStatusPendingLEO
	memo.ApprovedAt = nil
	memo.MemoType = "UNKNOWN"

	doc, err := renderer.Render(memo, models.RenderModePreview)
	require.NoError(t, err)
	assert.True(t, doc.Preview)
	assert.Regexp(t, `^PREVIEW-[0-9A-F]{16}$`, doc.DocumentID)
	assert.Equal(t, "memo-general", doc.Template)

	html, err := renderer.RenderHTML(memo, models.RenderModePreview)
	require.NoError(t, err)
	assert.Contains(t, string(html), "PREVIEW - NOT A FINAL DOCUMENT")

	memo.Version++
	next, err := renderer.Render(memo, models.RenderModePreview)
	require.NoError(t, err)
	assert.NotEqual(t, doc.DocumentID, next.DocumentID)
}

func TestDocumentRendererPDF(t *testing.T) {
	renderer := NewDocumentRenderer(config.DefaultTemplateCatalog(), NewMetricsService())
	payload, err := renderer.RenderPDF(approvedMemo(), models.RenderModeStrict)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))

	// Crossing a second boundary would change any wall-clock date in the trailer.
	time.Sleep(1100 * time.Millisecond)
	again, err := renderer.RenderPDF(approvedMemo(), models.RenderModeStrict)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, again), "same memo must render identical PDF bytes")
}
