package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/office-memo-api/internal/dto"
	"github.com/noah-isme/office-memo-api/internal/middleware"
	"github.com/noah-isme/office-memo-api/internal/models"
	"github.com/noah-isme/office-memo-api/internal/service"
	appErrors "github.com/noah-isme/office-memo-api/pkg/errors"
)

type memoServiceStub struct {
	memo     *models.Memo
	memos    []models.Memo
	err      error
	csv      []byte
	pdf      []byte
	html     []byte
	doc      *models.Document
	link     *dto.AttachmentLink
	files    []service.AttachmentUpload
	request  dto.CreateMemoRequest
	decision dto.WorkflowActionRequest
	actor    models.Actor
	query    dto.MemoQuery
	preview  bool
}

func (s *memoServiceStub) Create(ctx context.Context, req dto.CreateMemoRequest, files []service.AttachmentUpload, actor models.Actor) (*models.Memo, error) {
	s.request, s.files, s.actor = req, files, actor
	return s.memo, s.err
}

func (s *memoServiceStub) Update(ctx context.Context, id string, req dto.UpdateMemoRequest, files []service.AttachmentUpload, actor models.Actor) (*models.Memo, error) {
	s.request, s.files, s.actor = dto.CreateMemoRequest(req), files, actor
	return s.memo, s.err
}

func (s *memoServiceStub) Delete(ctx context.Context, id string, actor models.Actor) error {
	return s.err
}

func (s *memoServiceStub) Get(ctx context.Context, id string, actor models.Actor) (*models.Memo, error) {
	return s.memo, s.err
}

func (s *memoServiceStub) List(ctx context.Context, query dto.MemoQuery, actor models.Actor) ([]models.Memo, error) {
	s.query = query
	return s.memos, s.err
}

func (s *memoServiceStub) ListPendingForDeskHead(ctx context.Context, query dto.MemoQuery, actor models.Actor) ([]models.Memo, error) {
	return s.memos, s.err
}

func (s *memoServiceStub) ListPendingForLEO(ctx context.Context, query dto.MemoQuery, actor models.Actor) ([]models.Memo, error) {
	return s.memos, s.err
}

func (s *memoServiceStub) DeleteAttachment(ctx context.Context, id, fileName string, actor models.Actor) (*models.Memo, error) {
	return s.memo, s.err
}

func (s *memoServiceStub) AttachmentDownloadURL(ctx context.Context, id, fileName string, actor models.Actor) (*dto.AttachmentLink, error) {
	return s.link, s.err
}

func (s *memoServiceStub) OpenAttachment(ctx context.Context, id, fileName, token string, actor models.Actor) (*service.AttachmentDownload, error) {
	return nil, s.err
}

func (s *memoServiceStub) SubmitToDeskHead(ctx context.Context, id string, actor models.Actor) (*models.Memo, error) {
	s.actor = actor
	return s.memo, s.err
}

func (s *memoServiceStub) DeskHeadAction(ctx context.Context, id string, req dto.WorkflowActionRequest, actor models.Actor) (*models.Memo, error) {
	s.decision, s.actor = req, actor
	return s.memo, s.err
}

func (s *memoServiceStub) LEOAction(ctx context.Context, id string, req dto.WorkflowActionRequest, actor models.Actor) (*models.Memo, error) {
	s.decision, s.actor = req, actor
	return s.memo, s.err
}

func (s *memoServiceStub) History(ctx context.Context, id string, actor models.Actor) ([]models.WorkflowHistoryEntry, error) {
	return nil, s.err
}

func (s *memoServiceStub) ExportHistoryCSV(ctx context.Context, id string, actor models.Actor) ([]byte, string, error) {
	return s.csv, "memo-" + id + "-history.csv", s.err
}

func (s *memoServiceStub) GenerateDocument(ctx context.Context, id string, actor models.Actor) (*models.Document, error) {
	return s.doc, s.err
}

func (s *memoServiceStub) GenerateHTMLDocument(ctx context.Context, id string, actor models.Actor) ([]byte, error) {
	return s.html, s.err
}

func (s *memoServiceStub) GeneratePDFDocument(ctx context.Context, id string, actor models.Actor) ([]byte, error) {
	return s.pdf, s.err
}

func (s *memoServiceStub) PreviewDocument(ctx context.Context, id string, actor models.Actor) (*models.Document, error) {
	s.preview = true
	return s.doc, s.err
}

func (s *memoServiceStub) PreviewHTMLDocument(ctx context.Context, id string, actor models.Actor) ([]byte, error) {
	s.preview = true
	return s.html, s.err
}

var staffClaims = &models.JWTClaims{UserID: "u-staff", Role: models.RoleStaff, FullName: "Sam Staff"}

func newMemoContext(method, path string, body []byte, contentType string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "memo-1"}}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *appErrors.Error {
	t.Helper()
	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	return envelope.Error
}

func TestMemoHandlerCreateMultipart(t *testing.T) {
	stub := &memoServiceStub{memo: &models.Memo{ID: "memo-1", Status: models.MemoStatusDraft}}
	handler := NewMemoHandler(stub, 0)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("payload", `{"title":"Relocation","memoType":"GENERAL","department":"FIN","body":"Move"}`))
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="files"; filename="agenda.txt"`)
	partHeader.Set("Content-Type", "text/plain")
	part, err := writer.CreatePart(partHeader)
	require.NoError(t, err)
	_, _ = part.Write([]byte("1. move"))
	require.NoError(t, writer.Close())

	c, w := newMemoContext(http.MethodPost, "/memos", body.Bytes(), writer.FormDataContentType(), staffClaims)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Relocation", stub.request.Title)
	require.Len(t, stub.files, 1)
	assert.Equal(t, "agenda.txt", stub.files[0].FileName)
	assert.Equal(t, "text/plain", stub.files[0].MimeType)
	assert.Equal(t, "1. move", string(stub.files[0].Data))
	assert.Equal(t, "u-staff", stub.actor.ID)
}

func TestMemoHandlerCreateRejectsMissingPayload(t *testing.T) {
	handler := NewMemoHandler(&memoServiceStub{}, 0)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.Close())

	c, w := newMemoContext(http.MethodPost, "/memos", body.Bytes(), writer.FormDataContentType(), staffClaims)
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "payload", decodeError(t, w).Details["field"])
}

func TestMemoHandlerRequiresClaims(t *testing.T) {
	handler := NewMemoHandler(&memoServiceStub{}, 0)
	c, w := newMemoContext(http.MethodGet, "/memos/memo-1", nil, "", nil)
	handler.Get(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMemoHandlerDecisionPassesErrorDetails(t *testing.T) {
	stub := &memoServiceStub{err: appErrors.UnauthorizedAction("PENDING_DESK_HEAD", "DESK_HEAD", "STAFF")}
	handler := NewMemoHandler(stub, 0)

	c, w := newMemoContext(http.MethodPost, "/memos/memo-1/desk-head-action", []byte(`{"action":"approve"}`), "application/json", staffClaims)
	handler.DeskHeadAction(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	appErr := decodeError(t, w)
	assert.Equal(t, "UNAUTHORIZED_ACTION", appErr.Code)
	assert.Equal(t, "DESK_HEAD", appErr.Details["requiredRole"])
	assert.Equal(t, "approve", stub.decision.Action)
}

func TestMemoHandlerLEOActionSuccess(t *testing.T) {
	stub := &memoServiceStub{memo: &models.Memo{ID: "memo-1", Status: models.MemoStatusRejected}}
	handler := NewMemoHandler(stub, 0)
	claims := &models.JWTClaims{UserID: "u-leo", Role: models.RoleLEO}

	c, w := newMemoContext(http.MethodPost, "/memos/memo-1/leo-action", []byte(`{"action":"reject","comment":"Budget exceeded"}`), "application/json", claims)
	handler.LEOAction(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Budget exceeded", stub.decision.Comment)
	assert.Equal(t, models.RoleLEO, stub.actor.Role)
}

func TestMemoHandlerListBindsQuery(t *testing.T) {
	stub := &memoServiceStub{memos: []models.Memo{{ID: "memo-1"}}}
	handler := NewMemoHandler(stub, 0)

	c, w := newMemoContext(http.MethodGet, "/memos?status=DRAFT&status=APPROVED&department=fin&limit=5", nil, "", staffClaims)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"DRAFT", "APPROVED"}, stub.query.Status)
	assert.Equal(t, "fin", stub.query.Department)
	assert.Equal(t, 5, stub.query.Limit)
}

func TestMemoHandlerExportHistory(t *testing.T) {
	stub := &memoServiceStub{csv: []byte("Sequence,Action\n1,CREATE\n")}
	handler := NewMemoHandler(stub, 0)

	c, w := newMemoContext(http.MethodGet, "/memos/memo-1/history/export", nil, "", staffClaims)
	handler.ExportHistory(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "memo-memo-1-history.csv")
	assert.Equal(t, "Sequence,Action\n1,CREATE\n", w.Body.String())
}

func TestMemoHandlerDocumentNotReady(t *testing.T) {
	handler := NewMemoHandler(&memoServiceStub{err: appErrors.NotReady("DRAFT")}, 0)

	c, w := newMemoContext(http.MethodGet, "/memos/memo-1/document/pdf", nil, "", staffClaims)
	handler.DocumentPDF(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NOT_READY", decodeError(t, w).Code)
}

func TestMemoHandlerPreviewHTML(t *testing.T) {
	stub := &memoServiceStub{html: []byte("<html>preview</html>")}
	handler := NewMemoHandler(stub, 0)

	c, w := newMemoContext(http.MethodGet, "/memos/memo-1/document/preview?format=html", nil, "", staffClaims)
	handler.Preview(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, stub.preview)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestMemoHandlerDownloadWithoutTokenReturnsLink(t *testing.T) {
	stub := &memoServiceStub{link: &dto.AttachmentLink{FileName: "agenda.txt", URL: "/api/v1/memos/memo-1/attachments/agenda.txt/download?token=abc"}}
	handler := NewMemoHandler(stub, 0)

	c, w := newMemoContext(http.MethodGet, "/memos/memo-1/attachments/agenda.txt/download", nil, "", staffClaims)
	c.Params = append(c.Params, gin.Param{Key: "fileName", Value: "agenda.txt"})
	handler.DownloadAttachment(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "token=abc")
}

func TestMemoHandlerServiceErrorsAreInternal(t *testing.T) {
	handler := NewMemoHandler(&memoServiceStub{err: errors.New("boom")}, 0)

	c, w := newMemoContext(http.MethodPost, "/memos/memo-1/submit", nil, "", staffClaims)
	handler.Submit(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{
		"database": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("dial tcp: refused") },
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	handler.Ready(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}
