package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"pixelhost/internal/metrics"
	"pixelhost/internal/models"
	"pixelhost/internal/repository"
)

var errBackend = errors.New("backend unavailable")

// memoryStore backs AccountStore and ImageStore with maps and enforces short
// id uniqueness like the images primary key does.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	images   map[string]models.Image

	failRecordUpload bool
	failCreate       bool
	failMarkDeleted  map[string]bool
	markCalls        int
}

func newMemoryStore(accounts ...models.Account) *memoryStore {
	s := &memoryStore{
		accounts:        make(map[string]models.Account),
		images:          make(map[string]models.Image),
		failMarkDeleted: make(map[string]bool),
	}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *memoryStore) GetByID(_ context.Context, id string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return models.Account{}, repository.ErrAccountNotFound
	}
	return a, nil
}

func (s *memoryStore) GetByUploadToken(_ context.Context, token string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.UploadToken == token {
			return a, nil
		}
	}
	return models.Account{}, repository.ErrAccountNotFound
}

func (s *memoryStore) RecordUpload(_ context.Context, id string, ip string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRecordUpload {
		return models.Account{}, errBackend
	}
	a, ok := s.accounts[id]
	if !ok {
		return models.Account{}, repository.ErrAccountNotFound
	}
	a.ImageCount++
	if ip != "" && !slices.Contains(a.KnownIPs, ip) {
		a.KnownIPs = append(append([]string(nil), a.KnownIPs...), ip)
	}
	s.accounts[id] = a
	return a, nil
}

func (s *memoryStore) SetImageCount(_ context.Context, id string, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.ImageCount = count
	s.accounts[id] = a
	return nil
}

func (s *memoryStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memoryStore) Create(_ context.Context, image models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errBackend
	}
	if _, taken := s.images[image.ShortID]; taken {
		return repository.ErrDuplicateShortID
	}
	s.images[image.ShortID] = image
	return nil
}

func (s *memoryStore) GetByStorageKey(_ context.Context, storageKey string) (models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, img := range s.images {
		if img.StorageKey == storageKey {
			return img, nil
		}
	}
	return models.Image{}, repository.ErrImageNotFound
}

func (s *memoryStore) ListActiveByUploader(_ context.Context, uploaderID string) ([]models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Image
	for _, img := range s.images {
		if img.UploaderID == uploaderID && !img.Deleted {
			out = append(out, img)
		}
	}
	return out, nil
}

func (s *memoryStore) MarkDeleted(_ context.Context, shortID string, reason models.DeletionReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	if s.failMarkDeleted[shortID] {
		return errBackend
	}
	img, ok := s.images[shortID]
	if !ok {
		return repository.ErrImageNotFound
	}
	s.images[shortID] = img.MarkDeleted(reason)
	return nil
}

func (s *memoryStore) CountByUploader(_ context.Context, uploaderID string, deleted bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, img := range s.images {
		if img.UploaderID == uploaderID && img.Deleted == deleted {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) account(id string) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

func (s *memoryStore) imageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

// seedImages inserts n active images for uploaderID and returns them.
func (s *memoryStore) seedImages(uploaderID string, n int) []models.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Image, 0, n)
	for i := 0; i < n; i++ {
		img := models.Image{
			ShortID:        fmt.Sprintf("%s-%03d", uploaderID, i),
			StorageKey:     fmt.Sprintf("%s-%03d.png", uploaderID, i),
			UploaderID:     uploaderID,
			DeletionKey:    fmt.Sprintf("key-%s-%03d", uploaderID, i),
			DeletionReason: models.DeletionReasonNone,
		}
		s.images[img.ShortID] = img
		out = append(out, img)
	}
	return out
}

type memoryBlobs struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPut    bool
	failDelete map[string]bool
	deletes    int
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{objects: make(map[string][]byte), failDelete: make(map[string]bool)}
}

func (b *memoryBlobs) Put(_ context.Context, key string, payload []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut {
		return errBackend
	}
	b.objects[key] = append([]byte(nil), payload...)
	return nil
}

func (b *memoryBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes++
	if b.failDelete[key] {
		return errBackend
	}
	delete(b.objects, key)
	return nil
}

func (b *memoryBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

// scriptedTokens replays fixed short ids before falling back to a counter.
type scriptedTokens struct {
	mu     sync.Mutex
	ids    []string
	n      int
	secret string
}

func (t *scriptedTokens) ShortID() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.ids) > 0 {
		id := t.ids[0]
		t.ids = t.ids[1:]
		return id, nil
	}
	t.n++
	return fmt.Sprintf("gen%05d", t.n), nil
}

func (t *scriptedTokens) Secret() (string, error) {
	if t.secret != "" {
		return t.secret, nil
	}
	return "0123456789abcdef0123456789abcdef0123456789abcdef", nil
}

// inlineDispatcher records tasks and optionally runs them straight away.
type inlineDispatcher struct {
	mu    sync.Mutex
	tasks []models.PurgeTask
	err   error
	run   func(models.PurgeTask)
}

func (d *inlineDispatcher) Dispatch(_ context.Context, task models.PurgeTask) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()
	if d.run != nil {
		d.run(task)
	}
	return nil
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
