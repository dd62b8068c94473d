package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/office-memo-api/internal/models"
	"github.com/noah-isme/office-memo-api/pkg/jobs"
)

type documentWriter interface {
	Save(filename string, data []byte) (string, error)
}

// DocumentArchiver stores the final PDF of approved memos. It runs as the
// handler of the archive job queue.
type DocumentArchiver struct {
	repo     workflowStore
	renderer *DocumentRenderer
	files    documentWriter
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewDocumentArchiver constructs the archiver.
func NewDocumentArchiver(repo workflowStore, renderer *DocumentRenderer, files documentWriter, metrics *MetricsService, logger *zap.Logger) *DocumentArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentArchiver{repo: repo, renderer: renderer, files: files, metrics: metrics, logger: logger}
}

// Handle renders and stores the PDF for the memo named in the job payload.
func (a *DocumentArchiver) Handle(ctx context.Context, job jobs.Job) error {
	memoID, ok := job.Payload.(string)
	if !ok || memoID == "" {
		a.logger.Error("archive job without memo id", zap.String("job_id", job.ID))
		return nil
	}
	path, err := a.Archive(ctx, memoID)
	a.metrics.RecordArchive(err == nil)
	if err != nil {
		return err
	}
	a.logger.Info("memo document archived", zap.String("memo_id", memoID), zap.String("path", path))
	return nil
}

// Archive renders the strict PDF and writes it as <documentId>.pdf.
func (a *DocumentArchiver) Archive(ctx context.Context, memoID string) (string, error) {
	memo, err := a.repo.GetByID(ctx, memoID)
	if err != nil {
		return "", fmt.Errorf("load memo %s: %w", memoID, err)
	}
	doc, err := a.renderer.Render(memo, models.RenderModeStrict)
	if err != nil {
		return "", fmt.Errorf("render memo %s: %w", memoID, err)
	}
	payload, err := a.renderer.RenderPDF(memo, models.RenderModeStrict)
	if err != nil {
		return "", fmt.Errorf("render memo %s pdf: %w", memoID, err)
	}
	path, err := a.files.Save(doc.DocumentID+".pdf", payload)
	if err != nil {
		return "", fmt.Errorf("store memo %s document: %w", memoID, err)
	}
	return path, nil
}
