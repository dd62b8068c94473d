package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/office-memo-api/internal/models"
	"github.com/noah-isme/office-memo-api/pkg/config"
	"github.com/noah-isme/office-memo-api/pkg/jobs"
	"github.com/noah-isme/office-memo-api/pkg/storage"
)

func TestDocumentArchiverStoresApprovedPDF(t *testing.T) {
	store := newMemoStoreStub()
	memo := approvedMemo()
	store.seed(memo)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	renderer := NewDocumentRenderer(config.DefaultTemplateCatalog(), nil)
	archiver := NewDocumentArchiver(store, renderer, files, NewMetricsService(), nil)

	require.NoError(t, archiver.Handle(context.Background(), jobs.Job{ID: memo.ID, Type: ArchiveJobType, Payload: memo.ID}))

	doc, err := renderer.Render(memo, models.RenderModeStrict)
	require.NoError(t, err)
	assert.True(t, files.Exists(doc.DocumentID+".pdf"))
}

func TestDocumentArchiverRejectsUnapprovedMemo(t *testing.T) {
	store := newMemoStoreStub()
	seedDraft(store, "m1")
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	archiver := NewDocumentArchiver(store, NewDocumentRenderer(config.DefaultTemplateCatalog(), nil), files, nil, nil)

	_, err = archiver.Archive(context.Background(), "m1")
	assert.Error(t, err)

	assert.NoError(t, archiver.Handle(context.Background(), jobs.Job{ID: "bad", Payload: 42}))
}
