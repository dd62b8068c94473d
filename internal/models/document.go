package models

import "time"

// RenderMode selects strict (approved only) or preview rendering.
type RenderMode string

const (
	RenderModeStrict  RenderMode = "strict"
	RenderModePreview RenderMode = "preview"
)

// Document is the structured, print-ready projection of a memo.
type Document struct {
	DocumentID  string       `json:"documentId"`
	MemoID      string       `json:"memoId"`
	MemoNumber  string       `json:"memoNumber"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	Date        string       `json:"date"`
	Signature   string       `json:"signature"`
	Department  string       `json:"department"`
	Priority    MemoPriority `json:"priority"`
	Template    string       `json:"template"`
	Status      MemoStatus   `json:"status"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Preview     bool         `json:"preview"`
}
