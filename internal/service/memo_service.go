package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/office-memo-api/internal/dto"
	"github.com/noah-isme/office-memo-api/internal/models"
	"github.com/noah-isme/office-memo-api/internal/repository"
	"github.com/noah-isme/office-memo-api/internal/workflow"
	appErrors "github.com/noah-isme/office-memo-api/pkg/errors"
	"github.com/noah-isme/office-memo-api/pkg/export"
	"github.com/noah-isme/office-memo-api/pkg/jobs"
	"github.com/noah-isme/office-memo-api/pkg/storage"
)

// ArchiveJobType identifies jobs that store the final PDF of an approved memo.
const ArchiveJobType = "memo.archive"

type memoStore interface {
	workflowStore
	Create(ctx context.Context, memo *models.Memo, entry *models.WorkflowHistoryEntry) error
	Save(ctx context.Context, memo *models.Memo) error
	List(ctx context.Context, filter models.MemoFilter) ([]models.Memo, error)
	ListHistory(ctx context.Context, memoID string) ([]models.WorkflowHistoryEntry, error)
	SoftDelete(ctx context.Context, id string, version int, at time.Time) error
}

type attachmentStore interface {
	Upload(ctx context.Context, data []byte, meta storage.UploadMeta) (string, error)
	Delete(ctx context.Context, fileID string) error
	Open(fileID string) (*os.File, error)
}

type downloadSigner interface {
	Generate(memoID, fileID string) (string, time.Time, error)
	Parse(token string) (memoID, fileID string, expiresAt time.Time, err error)
}

type archiveEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// AttachmentUpload is a file received alongside a create or update request.
type AttachmentUpload struct {
	FileName string
	MimeType string
	Data     []byte
}

// AttachmentDownload bundles an opened attachment for streaming.
type AttachmentDownload struct {
	File      *os.File
	FileName  string
	MimeType  string
	SizeBytes int64
}

// MemoServiceConfig holds limits and feature toggles.
type MemoServiceConfig struct {
	MaxFileSize     int64
	MaxFiles        int
	AllowedMIMEs    []string
	RetryOnConflict bool
	APIPrefix       string
}

// MemoService is the façade used by HTTP handlers.
type MemoService struct {
	repo      memoStore
	engine    *WorkflowEngine
	renderer  *DocumentRenderer
	files     attachmentStore
	signer    downloadSigner
	cache     *CacheService
	archiver  archiveEnqueuer
	csv       *export.CSVExporter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       MemoServiceConfig
	mimeSet   map[string]struct{}
	now       func() time.Time
}

// MemoServiceOption configures optional collaborators.
type MemoServiceOption func(*MemoService)

// WithDocumentCache caches strict renders of approved memos.
func WithDocumentCache(cache *CacheService) MemoServiceOption {
	return func(s *MemoService) {
		s.cache = cache
	}
}

// WithArchiveQueue enqueues an archive job whenever a memo is approved.
func WithArchiveQueue(queue archiveEnqueuer) MemoServiceOption {
	return func(s *MemoService) {
		s.archiver = queue
	}
}

// WithDownloadSigner enables signed attachment download links.
func WithDownloadSigner(signer downloadSigner) MemoServiceOption {
	return func(s *MemoService) {
		s.signer = signer
	}
}

// WithMemoMetrics records upload outcomes.
func WithMemoMetrics(metrics *MetricsService) MemoServiceOption {
	return func(s *MemoService) {
		s.metrics = metrics
	}
}

// NewMemoService constructs the service with defaults.
func NewMemoService(repo memoStore, engine *WorkflowEngine, renderer *DocumentRenderer, files attachmentStore, validate *validator.Validate, logger *zap.Logger, cfg MemoServiceConfig, opts ...MemoServiceOption) *MemoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	validate.RegisterTagNameFunc(jsonFieldName)
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 10
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	svc := &MemoService{
		repo:      repo,
		engine:    engine,
		renderer:  renderer,
		files:     files,
		csv:       export.NewCSVExporter(),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		mimeSet:   mimeSet,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create validates the request, stores every attachment and persists the memo
// as DRAFT. Either all uploads succeed and the memo exists, or nothing does.
func (s *MemoService) Create(ctx context.Context, req dto.CreateMemoRequest, files []AttachmentUpload, actor models.Actor) (*models.Memo, error) {
	if actor.ID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	issued, err := parseIssueDate(req.DateOfIssue, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.checkUploads(files, nil); err != nil {
		return nil, err
	}

	now := s.now()
	memo := &models.Memo{
		ID:            uuid.NewString(),
		Status:        models.MemoStatusDraft,
		CreatedBy:     actor.ID,
		CreatedByName: actor.DisplayName,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applyContent(memo, dto.UpdateMemoRequest(req), issued)
	memo.MemoNumber = memoNumber(memo.Department, issued, memo.ID)

	uploaded, err := s.uploadAll(ctx, memo.ID, files)
	if err != nil {
		return nil, err
	}
	memo.Attachments = uploaded

	entry := &models.WorkflowHistoryEntry{
		Action:    models.WorkflowActionCreate,
		ToStatus:  models.MemoStatusDraft,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		ActorName: actor.DisplayName,
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, memo, entry); err != nil {
		s.discardUploads(ctx, uploaded)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create memo")
	}
	s.logger.Info("memo created", zap.String("memo_id", memo.ID), zap.String("memo_number", memo.MemoNumber), zap.Int("attachments", len(uploaded)))
	return memo, nil
}

// Update replaces memo content and appends new attachments. Only the creator
// may edit, and only while the memo is DRAFT or RETURNED_TO_CREATOR.
func (s *MemoService) Update(ctx context.Context, id string, req dto.UpdateMemoRequest, files []AttachmentUpload, actor models.Actor) (*models.Memo, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	issued, err := parseIssueDate(req.DateOfIssue, s.now())
	if err != nil {
		return nil, err
	}
	memo, err := s.editable(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := s.checkUploads(files, memo.Attachments); err != nil {
		return nil, err
	}
	uploaded, err := s.uploadAll(ctx, memo.ID, files)
	if err != nil {
		return nil, err
	}

	applyContent(memo, req, issued)
	memo.Attachments = append(append(models.AttachmentList{}, memo.Attachments...), uploaded...)
	memo.UpdatedAt = s.now()
	if err := s.save(ctx, memo); err != nil {
		s.discardUploads(ctx, uploaded)
		return nil, err
	}
	return memo, nil
}

// Delete logically deletes an editable memo. Stored attachments are kept.
func (s *MemoService) Delete(ctx context.Context, id string, actor models.Actor) error {
	memo, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if memo.CreatedBy != actor.ID && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only the creator or an administrator may delete a memo")
	}
	if !memo.Status.Editable() {
		return appErrors.InvalidState(string(memo.Status))
	}
	if err := s.repo.SoftDelete(ctx, memo.ID, memo.Version, s.now()); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return appErrors.Conflict(memo.ID, memo.Version)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete memo")
	}
	s.logger.Info("memo deleted", zap.String("memo_id", memo.ID), zap.String("actor_id", actor.ID))
	return nil
}

// Get returns a memo visible to the actor.
func (s *MemoService) Get(ctx context.Context, id string, actor models.Actor) (*models.Memo, error) {
	memo, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(memo, actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "memo is confidential")
	}
	return memo, nil
}

// List returns memos matching the query. Staff only see memos they created or
// received.
func (s *MemoService) List(ctx context.Context, query dto.MemoQuery, actor models.Actor) ([]models.Memo, error) {
	if actor.ID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	filter, err := memoFilter(query)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStaff {
		switch {
		case filter.CreatedBy == "" && filter.Recipient == "":
			filter.CreatedBy = actor.ID
		case filter.CreatedBy != "" && filter.CreatedBy != actor.ID:
			return nil, appErrors.ErrForbidden
		case filter.Recipient != "" && filter.Recipient != actor.ID:
			return nil, appErrors.ErrForbidden
		}
	}
	return s.list(ctx, filter, actor)
}

// ListPendingForDeskHead returns memos awaiting desk-head review.
func (s *MemoService) ListPendingForDeskHead(ctx context.Context, query dto.MemoQuery, actor models.Actor) ([]models.Memo, error) {
	return s.listPending(ctx, query, actor, models.MemoStatusPendingDeskHead, models.RoleDeskHead)
}

// ListPendingForLEO returns memos awaiting LEO review.
func (s *MemoService) ListPendingForLEO(ctx context.Context, query dto.MemoQuery, actor models.Actor) ([]models.Memo, error) {
	return s.listPending(ctx, query, actor, models.MemoStatusPendingLEO, models.RoleLEO)
}

// DeleteAttachment detaches a file reference from an editable memo. The
// stored file is left in place.
func (s *MemoService) DeleteAttachment(ctx context.Context, id, fileName string, actor models.Actor) (*models.Memo, error) {
	memo, err := s.editable(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if !memo.HasAttachment(fileName) {
		return nil, appErrors.NotFound("attachment", fileName)
	}
	memo.Attachments = memo.Attachments.Without(fileName)
	memo.UpdatedAt = s.now()
	if err := s.save(ctx, memo); err != nil {
		return nil, err
	}
	return memo, nil
}

// AttachmentDownloadURL issues a signed, time-limited download link.
func (s *MemoService) AttachmentDownloadURL(ctx context.Context, id, fileName string, actor models.Actor) (*dto.AttachmentLink, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	memo, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	attachment, ok := memo.Attachments.Find(fileName)
	if !ok {
		return nil, appErrors.NotFound("attachment", fileName)
	}
	token, expiresAt, err := s.signer.Generate(memo.ID, attachment.FileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &dto.AttachmentLink{
		FileName:  attachment.FileName,
		URL:       fmt.Sprintf("%s/memos/%s/attachments/%s/download?token=%s", base, memo.ID, url.PathEscape(attachment.FileName), url.QueryEscape(token)),
		ExpiresAt: expiresAt.Format(time.RFC3339),
	}, nil
}

// OpenAttachment validates the download token and opens the stored file.
func (s *MemoService) OpenAttachment(ctx context.Context, id, fileName, token string, actor models.Actor) (*AttachmentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	memo, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	attachment, ok := memo.Attachments.Find(fileName)
	if !ok {
		return nil, appErrors.NotFound("attachment", fileName)
	}
	memoID, fileID, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if memoID != memo.ID || fileID != attachment.FileID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.files.Open(fileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attachment")
	}
	return &AttachmentDownload{
		File:      file,
		FileName:  attachment.FileName,
		MimeType:  attachment.MimeType,
		SizeBytes: attachment.SizeBytes,
	}, nil
}

// SubmitToDeskHead sends a DRAFT or returned memo to desk-head review.
func (s *MemoService) SubmitToDeskHead(ctx context.Context, id string, actor models.Actor) (*models.Memo, error) {
	return s.transition(ctx, TransitionRequest{MemoID: id, Action: string(workflow.ActionSubmitToDeskHead), Actor: actor})
}

// DeskHeadAction applies a desk-head decision to a memo awaiting desk-head review.
func (s *MemoService) DeskHeadAction(ctx context.Context, id string, req dto.WorkflowActionRequest, actor models.Actor) (*models.Memo, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, TransitionRequest{MemoID: id, Action: req.Action, Comment: req.Comment, Actor: actor, Stage: models.MemoStatusPendingDeskHead})
}

// LEOAction applies an LEO decision to a memo awaiting LEO review.
func (s *MemoService) LEOAction(ctx context.Context, id string, req dto.WorkflowActionRequest, actor models.Actor) (*models.Memo, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	return s.transition(ctx, TransitionRequest{MemoID: id, Action: req.Action, Comment: req.Comment, Actor: actor, Stage: models.MemoStatusPendingLEO})
}

// History returns the memo's workflow history oldest first.
func (s *MemoService) History(ctx context.Context, id string, actor models.Actor) ([]models.WorkflowHistoryEntry, error) {
	memo, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListHistory(ctx, memo.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load memo history")
	}
	return entries, nil
}

// ExportHistoryCSV renders the memo history as CSV and returns a download file name.
func (s *MemoService) ExportHistoryCSV(ctx context.Context, id string, actor models.Actor) ([]byte, string, error) {
	memo, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, "", err
	}
	entries, err := s.repo.ListHistory(ctx, memo.ID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load memo history")
	}
	headers := []string{"Sequence", "Action", "From", "To", "Actor ID", "Actor Role", "Actor Name", "Comment", "Timestamp"}
	dataset := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(entries))}
	for _, entry := range entries {
		row := map[string]string{
			"Sequence":   fmt.Sprintf("%d", entry.Sequence),
			"Action":     string(entry.Action),
			"To":         string(entry.ToStatus),
			"Actor ID":   entry.ActorID,
			"Actor Role": string(entry.ActorRole),
			"Actor Name": entry.ActorName,
			"Timestamp":  entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if entry.FromStatus != nil {
			row["From"] = string(*entry.FromStatus)
		}
		if entry.Comment != nil {
			row["Comment"] = *entry.Comment
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export memo history")
	}
	return payload, fmt.Sprintf("memo-%s-history.csv", memo.ID), nil
}

// GenerateDocument renders the final document of an approved memo.
func (s *MemoService) GenerateDocument(ctx context.Context, id string, actor models.Actor) (*models.Document, error) {
	memo, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	key := documentCacheKey(memo, "json")
	var cached models.Document
	if memo.Status == models.MemoStatusApproved && s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	doc, err := s.renderer.Render(memo, models.RenderModeStrict)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, doc)
	return doc, nil
}

// GenerateHTMLDocument renders the final HTML document of an approved memo.
func (s *MemoService) GenerateHTMLDocument(ctx context.Context, id string, actor models.Actor) ([]byte, error) {
	return s.renderBytes(ctx, id, actor, "html", s.renderer.RenderHTML)
}

// GeneratePDFDocument renders the final PDF document of an approved memo.
func (s *MemoService) GeneratePDFDocument(ctx context.Context, id string, actor models.Actor) ([]byte, error) {
	return s.renderBytes(ctx, id, actor, "pdf", s.renderer.RenderPDF)
}

// PreviewDocument renders a labelled preview of a memo in any status.
func (s *MemoService) PreviewDocument(ctx context.Context, id string, actor models.Actor) (*models.Document, error) {
	memo, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(memo, models.RenderModePreview)
}

// PreviewHTMLDocument renders a labelled HTML preview of a memo in any status.
func (s *MemoService) PreviewHTMLDocument(ctx context.Context, id string, actor models.Actor) ([]byte, error) {
	memo, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.renderer.RenderHTML(memo, models.RenderModePreview)
}

func (s *MemoService) renderBytes(ctx context.Context, id string, actor models.Actor, format string, render func(*models.Memo, models.RenderMode) ([]byte, error)) ([]byte, error) {
	memo, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	key := documentCacheKey(memo, format)
	if memo.Status == models.MemoStatusApproved {
		if payload, ok := s.cache.GetBytes(ctx, key); ok {
			return payload, nil
		}
	}
	payload, err := render(memo, models.RenderModeStrict)
	if err != nil {
		return nil, err
	}
	s.cache.SetBytes(ctx, key, payload)
	return payload, nil
}

// transition delegates to the engine. A lost version race is retried once
// against a fresh read; if the retry fails too the original conflict is returned.
func (s *MemoService) transition(ctx context.Context, req TransitionRequest) (*models.Memo, error) {
	memo, _, err := s.engine.Transition(ctx, req)
	if err != nil && s.cfg.RetryOnConflict && errors.Is(err, appErrors.ErrConflict) {
		s.logger.Warn("memo transition conflict, retrying", zap.String("memo_id", req.MemoID), zap.String("action", req.Action))
		retried, _, retryErr := s.engine.Transition(ctx, req)
		if retryErr != nil {
			s.logger.Warn("memo transition retry failed", zap.String("memo_id", req.MemoID), zap.Error(retryErr))
			return nil, err
		}
		memo, err = retried, nil
	}
	if err != nil {
		return nil, err
	}
	if memo.Status == models.MemoStatusApproved {
		s.scheduleArchive(memo)
	}
	return memo, nil
}

func (s *MemoService) scheduleArchive(memo *models.Memo) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Enqueue(jobs.Job{ID: memo.ID, Type: ArchiveJobType, Payload: memo.ID}); err != nil {
		s.logger.Warn("failed to enqueue memo archive", zap.String("memo_id", memo.ID), zap.Error(err))
	}
}

func (s *MemoService) load(ctx context.Context, id string) (*models.Memo, error) {
	memo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("memo", id)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load memo")
	}
	return memo, nil
}

func (s *MemoService) editable(ctx context.Context, id string, actor models.Actor) (*models.Memo, error) {
	memo, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if memo.CreatedBy != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the creator may modify a memo")
	}
	if !memo.Status.Editable() {
		return nil, appErrors.InvalidState(string(memo.Status))
	}
	return memo, nil
}

func (s *MemoService) save(ctx context.Context, memo *models.Memo) error {
	expected := memo.Version
	if err := s.repo.Save(ctx, memo); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return appErrors.Conflict(memo.ID, expected)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save memo")
	}
	return nil
}

func (s *MemoService) list(ctx context.Context, filter models.MemoFilter, actor models.Actor) ([]models.Memo, error) {
	memos, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list memos")
	}
	visible := make([]models.Memo, 0, len(memos))
	for i := range memos {
		if canView(&memos[i], actor) {
			visible = append(visible, memos[i])
		}
	}
	return visible, nil
}

func (s *MemoService) listPending(ctx context.Context, query dto.MemoQuery, actor models.Actor, status models.MemoStatus, reviewer models.UserRole) ([]models.Memo, error) {
	if actor.ID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != reviewer && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	filter, err := memoFilter(query)
	if err != nil {
		return nil, err
	}
	filter.Status = []models.MemoStatus{status}
	return s.list(ctx, filter, actor)
}

func (s *MemoService) validate(req interface{}) error {
	if err := s.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return appErrors.Validation(fe.Field(), fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag()))
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	return nil
}

// checkUploads enforces count, size and type limits and rejects file names
// already used in the batch or on the memo.
func (s *MemoService) checkUploads(files []AttachmentUpload, existing models.AttachmentList) error {
	if len(files)+len(existing) > s.cfg.MaxFiles {
		return appErrors.Validation("files", fmt.Sprintf("a memo may carry at most %d attachments", s.cfg.MaxFiles))
	}
	seen := make(map[string]struct{}, len(files)+len(existing))
	for _, a := range existing {
		seen[a.FileName] = struct{}{}
	}
	for i := range files {
		f := &files[i]
		f.FileName = strings.TrimSpace(f.FileName)
		if f.FileName == "" {
			return appErrors.Validation("files", "attachment file name is required")
		}
		if _, dup := seen[f.FileName]; dup {
			return appErrors.Validation("files", fmt.Sprintf("duplicate attachment file name %q", f.FileName))
		}
		seen[f.FileName] = struct{}{}
		if len(f.Data) == 0 {
			return appErrors.Validation("files", fmt.Sprintf("attachment %q is empty", f.FileName))
		}
		if int64(len(f.Data)) > s.cfg.MaxFileSize {
			return appErrors.Validation("files", fmt.Sprintf("attachment %q exceeds %d bytes limit", f.FileName, s.cfg.MaxFileSize))
		}
		if f.MimeType == "" || f.MimeType == "application/octet-stream" {
			f.MimeType = http.DetectContentType(f.Data)
		}
		if idx := strings.Index(f.MimeType, ";"); idx >= 0 {
			f.MimeType = strings.TrimSpace(f.MimeType[:idx])
		}
		if len(s.mimeSet) > 0 {
			if _, ok := s.mimeSet[strings.ToLower(f.MimeType)]; !ok {
				return appErrors.Validation("files", fmt.Sprintf("mime type %s not allowed", f.MimeType))
			}
		}
	}
	return nil
}

// uploadAll stores the files concurrently and joins before returning. On any
// failure the files that did land are deleted and the first error is returned.
func (s *MemoService) uploadAll(ctx context.Context, memoID string, files []AttachmentUpload) (models.AttachmentList, error) {
	if len(files) == 0 {
		return models.AttachmentList{}, nil
	}
	refs := make([]*models.Attachment, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		i, f := i, files[i]
		g.Go(func() error {
			fileID, err := s.files.Upload(gctx, f.Data, storage.UploadMeta{FileName: f.FileName, MimeType: f.MimeType, MemoID: memoID})
			s.metrics.RecordUpload(err == nil)
			if err != nil {
				return fmt.Errorf("upload %s: %w", f.FileName, err)
			}
			refs[i] = &models.Attachment{
				FileID:     fileID,
				FileName:   f.FileName,
				MimeType:   f.MimeType,
				SizeBytes:  int64(len(f.Data)),
				MemoID:     memoID,
				UploadedAt: s.now(),
			}
			return nil
		})
	}
	waitErr := g.Wait()

	uploaded := make(models.AttachmentList, 0, len(files))
	for _, ref := range refs {
		if ref != nil {
			uploaded = append(uploaded, *ref)
		}
	}
	if waitErr != nil {
		s.discardUploads(ctx, uploaded)
		return nil, appErrors.Wrap(waitErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachments")
	}
	return uploaded, nil
}

func (s *MemoService) discardUploads(ctx context.Context, uploaded models.AttachmentList) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, a := range uploaded {
		if err := s.files.Delete(cleanupCtx, a.FileID); err != nil {
			s.logger.Warn("failed to delete orphaned attachment", zap.String("file_id", a.FileID), zap.Error(err))
		}
	}
}

func applyContent(memo *models.Memo, req dto.UpdateMemoRequest, issued time.Time) {
	memo.Title = strings.TrimSpace(req.Title)
	memo.MemoType = models.MemoType(strings.ToUpper(string(req.MemoType)))
	memo.Department = strings.ToUpper(strings.TrimSpace(req.Department))
	memo.Body = req.Body
	memo.Priority = models.MemoPriority(strings.ToUpper(string(req.Priority)))
	if memo.Priority == "" {
		memo.Priority = models.MemoPriorityNormal
	}
	memo.Signature = strings.TrimSpace(req.Signature)
	memo.DateOfIssue = issued
	memo.Tags = dedupe(req.Tags)
	memo.Recipients = dedupe(req.Recipients)
}

func parseIssueDate(raw string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Validation("dateOfIssue", "dateOfIssue must be YYYY-MM-DD")
	}
	return t, nil
}

func memoNumber(department string, issued time.Time, id string) string {
	dept := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(department)), " ", "-")
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("MEMO/%s/%d/%s", dept, issued.Year(), short)
}

func memoFilter(query dto.MemoQuery) (models.MemoFilter, error) {
	filter := models.MemoFilter{
		Department: strings.ToUpper(strings.TrimSpace(query.Department)),
		Recipient:  strings.TrimSpace(query.Recipient),
		CreatedBy:  strings.TrimSpace(query.CreatedBy),
		Limit:      query.Limit,
		Offset:     query.Offset,
	}
	for _, raw := range query.Status {
		for _, part := range strings.Split(raw, ",") {
			status := models.MemoStatus(strings.ToUpper(strings.TrimSpace(part)))
			if status == "" {
				continue
			}
			if !knownStatus(status) {
				return filter, appErrors.Validation("status", fmt.Sprintf("unknown status %q", part))
			}
			filter.Status = append(filter.Status, status)
		}
	}
	return filter, nil
}

func knownStatus(status models.MemoStatus) bool {
	for _, s := range models.MemoStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// canView hides confidential memos from everyone except the creator, the
// recipients and the reviewing roles.
func canView(memo *models.Memo, actor models.Actor) bool {
	if memo.Priority != models.MemoPriorityConfidential {
		return true
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleDeskHead, models.RoleLEO:
		return true
	}
	return memo.CreatedBy == actor.ID || memo.IsRecipient(actor.ID)
}

func documentCacheKey(memo *models.Memo, format string) string {
	return fmt.Sprintf("memo:document:%s:%d:%s", memo.ID, memo.Version, format)
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}
