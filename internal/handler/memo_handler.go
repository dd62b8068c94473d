package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/office-memo-api/internal/dto"
	"github.com/noah-isme/office-memo-api/internal/models"
	"github.com/noah-isme/office-memo-api/internal/service"
	appErrors "github.com/noah-isme/office-memo-api/pkg/errors"
	"github.com/noah-isme/office-memo-api/pkg/response"
)

type memoService interface {
	Create(ctx context.Context, req dto.CreateMemoRequest, files []service.AttachmentUpload, actor models.Actor) (*models.Memo, error)
	Update(ctx context.Context, id string, req dto.UpdateMemoRequest, files []service.AttachmentUpload, actor models.Actor) (*models.Memo, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
	Get(ctx context.Context, id string, actor models.Actor) (*models.Memo, error)
	List(ctx context.Context, query dto.MemoQuery, actor models.Actor) ([]models.Memo, error)
	ListPendingForDeskHead(ctx context.Context, query dto.MemoQuery, actor models.Actor) ([]models.Memo, error)
	ListPendingForLEO(ctx context.Context, query dto.MemoQuery, actor models.Actor) ([]models.Memo, error)
	DeleteAttachment(ctx context.Context, id, fileName string, actor models.Actor) (*models.Memo, error)
	AttachmentDownloadURL(ctx context.Context, id, fileName string, actor models.Actor) (*dto.AttachmentLink, error)
	OpenAttachment(ctx context.Context, id, fileName, token string, actor models.Actor) (*service.AttachmentDownload, error)
	SubmitToDeskHead(ctx context.Context, id string, actor models.Actor) (*models.Memo, error)
	DeskHeadAction(ctx context.Context, id string, req dto.WorkflowActionRequest, actor models.Actor) (*models.Memo, error)
	LEOAction(ctx context.Context, id string, req dto.WorkflowActionRequest, actor models.Actor) (*models.Memo, error)
	History(ctx context.Context, id string, actor models.Actor) ([]models.WorkflowHistoryEntry, error)
	ExportHistoryCSV(ctx context.Context, id string, actor models.Actor) ([]byte, string, error)
	GenerateDocument(ctx context.Context, id string, actor models.Actor) (*models.Document, error)
	GenerateHTMLDocument(ctx context.Context, id string, actor models.Actor) ([]byte, error)
	GeneratePDFDocument(ctx context.Context, id string, actor models.Actor) ([]byte, error)
	PreviewDocument(ctx context.Context, id string, actor models.Actor) (*models.Document, error)
	PreviewHTMLDocument(ctx context.Context, id string, actor models.Actor) ([]byte, error)
}

// MemoHandler exposes memo CRUD, workflow and document endpoints.
type MemoHandler struct {
	service    memoService
	maxUploads int64
}

// NewMemoHandler constructs the handler. maxUploadBytes caps the multipart
// body kept in memory.
func NewMemoHandler(service memoService, maxUploadBytes int64) *MemoHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &MemoHandler{service: service, maxUploads: maxUploadBytes}
}

// Create godoc
// @Summary Create a memo draft
// @Tags Memos
// @Accept multipart/form-data
// @Produce json
// @Param payload formData string true "CreateMemoRequest as JSON"
// @Param files formData file false "Attachments"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /memos [post]
func (h *MemoHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateMemoRequest
	files, err := h.bindMemoPayload(c, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	memo, err := h.service.Create(c.Request.Context(), req, files, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, memo)
}

// List godoc
// @Summary List memos
// @Tags Memos
// @Produce json
// @Param status query []string false "Status filter" collectionFormat(multi)
// @Param department query string false "Department"
// @Param recipient query string false "Recipient user id"
// @Param createdBy query string false "Creator user id"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /memos [get]
func (h *MemoHandler) List(c *gin.Context) {
	h.list(c, h.service.List)
}

// PendingDeskHead godoc
// @Summary List memos awaiting desk-head review
// @Tags Memos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /memos/pending/desk-head [get]
func (h *MemoHandler) PendingDeskHead(c *gin.Context) {
	h.list(c, h.service.ListPendingForDeskHead)
}

// PendingLEO godoc
// @Summary List memos awaiting LEO review
// @Tags Memos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /memos/pending/leo [get]
func (h *MemoHandler) PendingLEO(c *gin.Context) {
	h.list(c, h.service.ListPendingForLEO)
}

// Get godoc
// @Summary Get memo
// @Tags Memos
// @Produce json
// @Param id path string true "Memo ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /memos/{id} [get]
func (h *MemoHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memo, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memo, nil)
}

// Update godoc
// @Summary Update an editable memo
// @Tags Memos
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Memo ID"
// @Param payload formData string true "UpdateMemoRequest as JSON"
// @Param files formData file false "Additional attachments"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /memos/{id} [put]
func (h *MemoHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateMemoRequest
	files, err := h.bindMemoPayload(c, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	memo, err := h.service.Update(c.Request.Context(), c.Param("id"), req, files, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memo, nil)
}

// Delete godoc
// @Summary Delete an editable memo
// @Tags Memos
// @Param id path string true "Memo ID"
// @Success 204
// @Router /memos/{id} [delete]
func (h *MemoHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteAttachment godoc
// @Summary Detach a file from an editable memo
// @Tags Memos
// @Produce json
// @Param id path string true "Memo ID"
// @Param fileName path string true "Attachment file name"
// @Success 200 {object} response.Envelope
// @Router /memos/{id}/attachments/{fileName} [delete]
func (h *MemoHandler) DeleteAttachment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memo, err := h.service.DeleteAttachment(c.Request.Context(), c.Param("id"), c.Param("fileName"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memo, nil)
}

// DownloadAttachment godoc
// @Summary Download an attachment
// @Description Without a token the response carries a signed, time-limited link. With a token the file is streamed.
// @Tags Memos
// @Produce octet-stream
// @Param id path string true "Memo ID"
// @Param fileName path string true "Attachment file name"
// @Param token query string false "Signed token"
// @Success 200 {file} binary
// @Router /memos/{id}/attachments/{fileName}/download [get]
func (h *MemoHandler) DownloadAttachment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		link, err := h.service.AttachmentDownloadURL(c.Request.Context(), c.Param("id"), c.Param("fileName"), actor)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, link, nil)
		return
	}
	result, err := h.service.OpenAttachment(c.Request.Context(), c.Param("id"), c.Param("fileName"), token, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}

// Submit godoc
// @Summary Submit a memo to desk-head review
// @Tags Workflow
// @Produce json
// @Param id path string true "Memo ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /memos/{id}/submit [post]
func (h *MemoHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	memo, err := h.service.SubmitToDeskHead(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memo, nil)
}

// DeskHeadAction godoc
// @Summary Apply a desk-head decision
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Memo ID"
// @Param payload body dto.WorkflowActionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /memos/{id}/desk-head-action [post]
func (h *MemoHandler) DeskHeadAction(c *gin.Context) {
	h.decide(c, h.service.DeskHeadAction)
}

// LEOAction godoc
// @Summary Apply an LEO decision
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Memo ID"
// @Param payload body dto.WorkflowActionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /memos/{id}/leo-action [post]
func (h *MemoHandler) LEOAction(c *gin.Context) {
	h.decide(c, h.service.LEOAction)
}

// History godoc
// @Summary Memo workflow history
// @Tags Workflow
// @Produce json
// @Param id path string true "Memo ID"
// @Success 200 {object} response.Envelope
// @Router /memos/{id}/history [get]
func (h *MemoHandler) History(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	entries, err := h.service.History(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ExportHistory godoc
// @Summary Export memo workflow history as CSV
// @Tags Workflow
// @Produce text/csv
// @Param id path string true "Memo ID"
// @Success 200 {file} binary
// @Router /memos/{id}/history/export [get]
func (h *MemoHandler) ExportHistory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payload, filename, err := h.service.ExportHistoryCSV(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	attachment(c, filename, "text/csv; charset=utf-8", payload)
}

// Document godoc
// @Summary Final document of an approved memo
// @Tags Documents
// @Produce json
// @Param id path string true "Memo ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /memos/{id}/document [get]
func (h *MemoHandler) Document(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	doc, err := h.service.GenerateDocument(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// DocumentHTML godoc
// @Summary Final HTML document of an approved memo
// @Tags Documents
// @Produce html
// @Param id path string true "Memo ID"
// @Success 200 {string} string
// @Router /memos/{id}/document/html [get]
func (h *MemoHandler) DocumentHTML(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payload, err := h.service.GenerateHTMLDocument(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", payload)
}

// DocumentPDF godoc
// @Summary Final PDF document of an approved memo
// @Tags Documents
// @Produce application/pdf
// @Param id path string true "Memo ID"
// @Success 200 {file} binary
// @Router /memos/{id}/document/pdf [get]
func (h *MemoHandler) DocumentPDF(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id := c.Param("id")
	payload, err := h.service.GeneratePDFDocument(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	attachment(c, fmt.Sprintf("memo-%s.pdf", id), "application/pdf", payload)
}

// Preview godoc
// @Summary Preview the document of a memo in any status
// @Tags Documents
// @Produce json,html
// @Param id path string true "Memo ID"
// @Param format query string false "json (default) or html"
// @Success 200 {object} response.Envelope
// @Router /memos/{id}/document/preview [get]
func (h *MemoHandler) Preview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if strings.EqualFold(c.Query("format"), "html") {
		payload, err := h.service.PreviewHTMLDocument(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", payload)
		return
	}
	doc, err := h.service.PreviewDocument(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

type memoLister func(ctx context.Context, query dto.MemoQuery, actor models.Actor) ([]models.Memo, error)

func (h *MemoHandler) list(c *gin.Context, fetch memoLister) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.MemoQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	memos, err := fetch(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memos, nil, map[string]interface{}{"count": len(memos)})
}

type memoDecision func(ctx context.Context, id string, req dto.WorkflowActionRequest, actor models.Actor) (*models.Memo, error)

func (h *MemoHandler) decide(c *gin.Context, apply memoDecision) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.WorkflowActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation("action", "invalid workflow action payload"))
		return
	}
	memo, err := apply(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, memo, nil)
}

// bindMemoPayload accepts either a multipart form with a JSON `payload` field
// and `files` parts, or a plain JSON body without attachments.
func (h *MemoHandler) bindMemoPayload(c *gin.Context, dest interface{}) ([]service.AttachmentUpload, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(dest); err != nil {
			return nil, appErrors.Validation("payload", "invalid memo payload")
		}
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, appErrors.Validation("payload", "invalid multipart form")
	}
	raw := form.Value["payload"]
	if len(raw) == 0 || strings.TrimSpace(raw[0]) == "" {
		return nil, appErrors.Validation("payload", "payload is required")
	}
	if err := json.Unmarshal([]byte(raw[0]), dest); err != nil {
		return nil, appErrors.Validation("payload", "payload must be valid JSON")
	}
	uploads := make([]service.AttachmentUpload, 0, len(form.File["files"]))
	for _, header := range form.File["files"] {
		upload, err := readUpload(header, h.maxUploads)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func readUpload(header *multipart.FileHeader, limit int64) (service.AttachmentUpload, error) {
	src, err := header.Open()
	if err != nil {
		return service.AttachmentUpload{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return service.AttachmentUpload{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file")
	}
	if int64(len(data)) > limit {
		return service.AttachmentUpload{}, appErrors.Validation("files", fmt.Sprintf("attachment %q is too large", header.Filename))
	}
	return service.AttachmentUpload{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func attachment(c *gin.Context, filename, contentType string, payload []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, payload)
}
