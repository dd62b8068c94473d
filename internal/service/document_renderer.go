package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/noah-isme/office-memo-api/internal/models"
	"github.com/noah-isme/office-memo-api/pkg/config"
	appErrors "github.com/noah-isme/office-memo-api/pkg/errors"
	"github.com/noah-isme/office-memo-api/pkg/export"
)

const (
	documentDateLayout = "02 January 2006"
	previewBanner      = "PREVIEW - NOT A FINAL DOCUMENT"
)

var documentHTML = template.Must(template.New("memo").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body class="{{.Template}}">
{{- if .Preview}}
<div class="preview-banner">` + previewBanner + `</div>
{{- end}}
<header>
<h1>{{.Title}}</h1>
<p class="memo-number">{{.MemoNumber}}</p>
<p class="document-id">{{.DocumentID}}</p>
</header>
<table class="memo-fields">
<tr><th>Department</th><td>{{.Department}}</td></tr>
<tr><th>Date</th><td>{{.Date}}</td></tr>
<tr><th>Priority</th><td>{{.Priority}}</td></tr>
</table>
<section class="memo-body">{{.Content}}</section>
<footer>
<p class="signature">{{.Signature}}</p>
<p class="generated-at">{{.GeneratedAt.Format "2006-01-02T15:04:05Z07:00"}}</p>
</footer>
</body>
</html>
`))

// DocumentRenderer projects memos into print-ready documents. Output depends
// only on memo state, so rendering the same memo twice yields the same document.
type DocumentRenderer struct {
	catalog config.TemplateCatalog
	pdf     *export.PDFExporter
	metrics *MetricsService
}

// NewDocumentRenderer constructs a renderer backed by the template catalog.
func NewDocumentRenderer(catalog config.TemplateCatalog, metrics *MetricsService) *DocumentRenderer {
	if catalog.Default == "" {
		catalog = config.DefaultTemplateCatalog()
	}
	return &DocumentRenderer{catalog: catalog, pdf: export.NewPDFExporter(), metrics: metrics}
}

// Render builds the structured document. Strict mode requires an approved memo.
func (r *DocumentRenderer) Render(memo *models.Memo, mode models.RenderMode) (*models.Document, error) {
	start := time.Now()
	doc, err := r.project(memo, mode)
	r.metrics.ObserveRender("json", string(mode), time.Since(start))
	return doc, err
}

// RenderHTML serialises the document through the fixed HTML template.
func (r *DocumentRenderer) RenderHTML(memo *models.Memo, mode models.RenderMode) ([]byte, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveRender("html", string(mode), time.Since(start)) }()

	doc, err := r.project(memo, mode)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	if err := documentHTML.Execute(buf, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render html document")
	}
	return buf.Bytes(), nil
}

// RenderPDF serialises the document as an A4 PDF.
func (r *DocumentRenderer) RenderPDF(memo *models.Memo, mode models.RenderMode) ([]byte, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveRender("pdf", string(mode), time.Since(start)) }()

	doc, err := r.project(memo, mode)
	if err != nil {
		return nil, err
	}
	payload, err := r.pdf.Render(SheetFromDocument(doc))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf document")
	}
	return payload, nil
}

// SheetFromDocument maps a document onto the printable PDF layout.
func SheetFromDocument(doc *models.Document) export.Sheet {
	sheet := export.Sheet{
		Title:     doc.Title,
		Reference: doc.MemoNumber,
		Fields: []export.Field{
			{Label: "Department", Value: doc.Department},
			{Label: "Date", Value: doc.Date},
			{Label: "Priority", Value: string(doc.Priority)},
		},
		Body:      doc.Content,
		Signature: doc.Signature,
		Footer:    fmt.Sprintf("%s | %s", doc.DocumentID, doc.Template),
		CreatedAt: doc.GeneratedAt,
	}
	if doc.Preview {
		sheet.Banner = previewBanner
	}
	return sheet
}

func (r *DocumentRenderer) project(memo *models.Memo, mode models.RenderMode) (*models.Document, error) {
	if memo == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "memo not found")
	}
	var (
		documentID  string
		generatedAt time.Time
		preview     bool
	)
	switch mode {
	case models.RenderModeStrict:
		if memo.Status != models.MemoStatusApproved || memo.ApprovedAt == nil {
			return nil, appErrors.NotReady(string(memo.Status))
		}
		generatedAt = memo.ApprovedAt.UTC()
		documentID = "DOC-" + shortHash(memo.ID+"|"+generatedAt.Format(time.RFC3339Nano))
	case models.RenderModePreview:
		generatedAt = memo.UpdatedAt.UTC()
		documentID = "PREVIEW-" + shortHash(fmt.Sprintf("%s|%d", memo.ID, memo.Version))
		preview = true
	default:
		return nil, appErrors.Validation("mode", fmt.Sprintf("unknown render mode %q", mode))
	}

	return &models.Document{
		DocumentID:  documentID,
		MemoID:      memo.ID,
		MemoNumber:  memo.MemoNumber,
		Title:       memo.Title,
		Content:     memo.Body,
		Date:        memo.DateOfIssue.Format(documentDateLayout),
		Signature:   memo.Signature,
		Department:  memo.Department,
		Priority:    memo.Priority,
		Template:    r.catalog.Lookup(string(memo.MemoType)),
		Status:      memo.Status,
		GeneratedAt: generatedAt,
		Preview:     preview,
	}, nil
}

func shortHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:16]
}
