package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/uploads"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
)

type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: map[string][]byte{}}
}

func (m *memBlobStore) UploadFile(ctx context.Context, key string, body io.Reader, contentType string) error {
	if m.failOn != "" && m.failOn == contentType {
		return errors.New("bucket unavailable")
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = b
	m.mu.Unlock()
	return nil
}

func (m *memBlobStore) DeleteFile(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *memBlobStore) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (m *memBlobStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type chanNotifier struct {
	events chan uploads.UploadedEvent
	err    error
}

func (n *chanNotifier) MissingRoomUploaded(ctx context.Context, ev uploads.UploadedEvent) error {
	n.events <- ev
	return n.err
}

type failingStageRepo struct {
	repos.StageRunRepo
}

func (failingStageRepo) MinStartedAtByRunIDs(dbctx.Context, []string) (map[string]time.Time, error) {
	return nil, errors.New("stage table unavailable")
}

type failingJobRepo struct {
	repos.IngestJobRepo
}

func (failingJobRepo) List(dbctx.Context, repos.ListQuery) ([]*types.IngestJob, error) {
	return nil, errors.New("connection refused")
}

func (failingJobRepo) Count(dbctx.Context, repos.ListQuery) (int64, error) {
	return 0, errors.New("connection refused")
}
