package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/office-memo-api/internal/models"
	"github.com/noah-isme/office-memo-api/internal/repository"
	appErrors "github.com/noah-isme/office-memo-api/pkg/errors"
	"github.com/noah-isme/office-memo-api/pkg/jobs"
	"github.com/noah-isme/office-memo-api/pkg/storage"
)

// memoStoreStub mimics the repository's version guard in memory.
type memoStoreStub struct {
	mu        sync.Mutex
	memos     map[string]*models.Memo
	history   map[string][]models.WorkflowHistoryEntry
	createErr error
	applyErrs []error
	afterGet  func()
	gets      int
}

func newMemoStoreStub() *memoStoreStub {
	return &memoStoreStub{
		memos:   make(map[string]*models.Memo),
		history: make(map[string][]models.WorkflowHistoryEntry),
	}
}

func cloneMemo(m *models.Memo) *models.Memo {
	c := *m
	c.Tags = append(pq.StringArray(nil), m.Tags...)
	c.Recipients = append(pq.StringArray(nil), m.Recipients...)
	c.Attachments = append(models.AttachmentList(nil), m.Attachments...)
	return &c
}

func (s *memoStoreStub) seed(memo *models.Memo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if memo.Version == 0 {
		memo.Version = 1
	}
	s.memos[memo.ID] = cloneMemo(memo)
	s.history[memo.ID] = []models.WorkflowHistoryEntry{{
		ID: memo.ID + "-1", MemoID: memo.ID, Sequence: 1, Action: models.WorkflowActionCreate,
		ToStatus: models.MemoStatusDraft, ActorID: memo.CreatedBy, CreatedAt: memo.CreatedAt,
	}}
}

func (s *memoStoreStub) GetByID(ctx context.Context, id string) (*models.Memo, error) {
	s.mu.Lock()
	s.gets++
	memo, ok := s.memos[id]
	if !ok || memo.DeletedAt != nil {
		s.mu.Unlock()
		return nil, sql.ErrNoRows
	}
	clone := cloneMemo(memo)
	hook := s.afterGet
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return clone, nil
}

func (s *memoStoreStub) Create(ctx context.Context, memo *models.Memo, entry *models.WorkflowHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	entry.MemoID = memo.ID
	entry.Sequence = 1
	s.memos[memo.ID] = cloneMemo(memo)
	s.history[memo.ID] = []models.WorkflowHistoryEntry{*entry}
	return nil
}

func (s *memoStoreStub) Save(ctx context.Context, memo *models.Memo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.memos[memo.ID]
	if !ok || stored.DeletedAt != nil || stored.Version != memo.Version {
		return repository.ErrVersionConflict
	}
	memo.Version++
	s.memos[memo.ID] = cloneMemo(memo)
	return nil
}

func (s *memoStoreStub) ApplyTransition(ctx context.Context, memo *models.Memo, entry *models.WorkflowHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.applyErrs) > 0 {
		err := s.applyErrs[0]
		s.applyErrs = s.applyErrs[1:]
		if err != nil {
			return err
		}
	}
	stored, ok := s.memos[memo.ID]
	if !ok || stored.DeletedAt != nil || stored.Version != memo.Version {
		return repository.ErrVersionConflict
	}
	entry.MemoID = memo.ID
	entry.Sequence = len(s.history[memo.ID]) + 1
	memo.Version++
	s.memos[memo.ID] = cloneMemo(memo)
	s.history[memo.ID] = append(s.history[memo.ID], *entry)
	return nil
}

func (s *memoStoreStub) List(ctx context.Context, filter models.MemoFilter) ([]models.Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Memo
	for _, memo := range s.memos {
		if memo.DeletedAt != nil {
			continue
		}
		if filter.CreatedBy != "" && memo.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.Recipient != "" && !memo.IsRecipient(filter.Recipient) {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, st := range filter.Status {
				if memo.Status == st {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *cloneMemo(memo))
	}
	return out, nil
}

func (s *memoStoreStub) ListHistory(ctx context.Context, memoID string) ([]models.WorkflowHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WorkflowHistoryEntry(nil), s.history[memoID]...), nil
}

func (s *memoStoreStub) SoftDelete(ctx context.Context, id string, version int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.memos[id]
	if !ok || stored.DeletedAt != nil || stored.Version != version {
		return repository.ErrVersionConflict
	}
	stored.DeletedAt = &at
	stored.Version++
	return nil
}

func (s *memoStoreStub) memoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memos)
}

func (s *memoStoreStub) stored(id string) *models.Memo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMemo(s.memos[id])
}

// attachmentStoreStub keeps uploads in memory and can fail a named file.
type attachmentStoreStub struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
	failOn  string
}

func newAttachmentStoreStub() *attachmentStoreStub {
	return &attachmentStoreStub{files: make(map[string][]byte)}
}

func (a *attachmentStoreStub) Upload(ctx context.Context, data []byte, meta storage.UploadMeta) (string, error) {
	if meta.FileName == a.failOn {
		return "", errors.New("storage unavailable")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := fmt.Sprintf("%s-%s", meta.MemoID, meta.FileName)
	a.files[id] = append([]byte(nil), data...)
	return id, nil
}

func (a *attachmentStoreStub) Delete(ctx context.Context, fileID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.files, fileID)
	a.deleted = append(a.deleted, fileID)
	return nil
}

func (a *attachmentStoreStub) Open(fileID string) (*os.File, error) {
	return nil, errors.New("open not supported")
}

func (a *attachmentStoreStub) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.files)
}

type enqueuerStub struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (e *enqueuerStub) Enqueue(job jobs.Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs = append(e.jobs, job)
	return nil
}

type cacheRepoStub struct {
	mu    sync.Mutex
	items map[string][]byte
	gets  int
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{items: make(map[string][]byte)}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.GetBytes(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) GetBytes(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.items[key]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	return raw, nil
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.SetBytes(ctx, key, raw, ttl)
}

func (c *cacheRepoStub) SetBytes(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = payload
	return nil
}
