package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/pair-notify/internal/domain"
	"github.com/kursadbilgin/pair-notify/internal/provider"
	"github.com/kursadbilgin/pair-notify/internal/queue"
	"github.com/kursadbilgin/pair-notify/internal/repository"
	"go.uber.org/zap"
)

type fakeNotificationRepo struct {
	createFn              func(ctx context.Context, r *domain.NotificationRecord) error
	getFn                 func(ctx context.Context, key domain.RecordKey) (*domain.NotificationRecord, error)
	listUnsentRetryableFn func(ctx context.Context, maxRetries int, after *repository.SweepCursor, limit int) ([]domain.NotificationRecord, error)
	markSentFn            func(ctx context.Context, key domain.RecordKey, sentAt time.Time) (bool, error)
	incrementRetryFn      func(ctx context.Context, key domain.RecordKey, triedAt time.Time, maxRetries int) (bool, error)
}

func (f *fakeNotificationRepo) Create(ctx context.Context, r *domain.NotificationRecord) error {
	if f.createFn != nil {
		return f.createFn(ctx, r)
	}
	return nil
}

func (f *fakeNotificationRepo) Get(ctx context.Context, key domain.RecordKey) (*domain.NotificationRecord, error) {
	if f.getFn != nil {
		return f.getFn(ctx, key)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) ListUnsentRetryable(ctx context.Context, maxRetries int, after *repository.SweepCursor, limit int) ([]domain.NotificationRecord, error) {
	if f.listUnsentRetryableFn != nil {
		return f.listUnsentRetryableFn(ctx, maxRetries, after, limit)
	}
	return nil, nil
}

func (f *fakeNotificationRepo) MarkSent(ctx context.Context, key domain.RecordKey, sentAt time.Time) (bool, error) {
	if f.markSentFn != nil {
		return f.markSentFn(ctx, key, sentAt)
	}
	return true, nil
}

func (f *fakeNotificationRepo) IncrementRetry(ctx context.Context, key domain.RecordKey, triedAt time.Time, maxRetries int) (bool, error) {
	if f.incrementRetryFn != nil {
		return f.incrementRetryFn(ctx, key, triedAt, maxRetries)
	}
	return true, nil
}

// memoryNotificationRepo mirrors the conditional updates of the gorm repository.
type memoryNotificationRepo struct {
	mu      sync.Mutex
	records map[domain.RecordKey]domain.NotificationRecord
	writes  int
}

func newMemoryNotificationRepo(records ...domain.NotificationRecord) *memoryNotificationRepo {
	repo := &memoryNotificationRepo{records: make(map[domain.RecordKey]domain.NotificationRecord)}
	for _, r := range records {
		repo.records[r.Key] = r
	}
	return repo
}

func (m *memoryNotificationRepo) Create(ctx context.Context, r *domain.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[r.Key]; ok {
		return domain.ErrConflict
	}
	m.records[r.Key] = *r
	m.writes++
	return nil
}

func (m *memoryNotificationRepo) Get(ctx context.Context, key domain.RecordKey) (*domain.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *memoryNotificationRepo) ListUnsentRetryable(ctx context.Context, maxRetries int, after *repository.SweepCursor, limit int) ([]domain.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.NotificationRecord, 0)
	for _, r := range m.records {
		if r.Sent || r.RetryCount >= maxRetries {
			continue
		}
		if after != nil && !sweepOrderLess(after.CreatedAt, after.Key, r.CreatedAt, r.Key) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return sweepOrderLess(out[i].CreatedAt, out[i].Key, out[j].CreatedAt, out[j].Key)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sweepOrderLess orders records by creation time, then relationship, then notification id.
func sweepOrderLess(at time.Time, a domain.RecordKey, bt time.Time, b domain.RecordKey) bool {
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	if a.RelationshipID != b.RelationshipID {
		return a.RelationshipID < b.RelationshipID
	}
	return a.NotificationID < b.NotificationID
}

func (m *memoryNotificationRepo) MarkSent(ctx context.Context, key domain.RecordKey, sentAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[key]
	if !ok || r.Sent {
		return false, nil
	}
	r.Sent = true
	r.SentAt = &sentAt
	m.records[key] = r
	m.writes++
	return true, nil
}

func (m *memoryNotificationRepo) IncrementRetry(ctx context.Context, key domain.RecordKey, triedAt time.Time, maxRetries int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[key]
	if !ok || r.Sent || r.RetryCount >= maxRetries {
		return false, nil
	}
	r.RetryCount++
	r.LastTriedAt = &triedAt
	m.records[key] = r
	m.writes++
	return true, nil
}

func (m *memoryNotificationRepo) record(key domain.RecordKey) domain.NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[key]
}

func (m *memoryNotificationRepo) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type fakeRelationshipRepo struct {
	listAllFn func(ctx context.Context) ([]domain.Relationship, error)
}

func (f *fakeRelationshipRepo) ListAll(ctx context.Context) ([]domain.Relationship, error) {
	if f.listAllFn != nil {
		return f.listAllFn(ctx)
	}
	return nil, nil
}

type fakeTokenResolver struct {
	tokens   map[string]string
	lookupFn func(ctx context.Context, uid string) (string, error)
}

func (f *fakeTokenResolver) LookupToken(ctx context.Context, uid string) (string, error) {
	if f.lookupFn != nil {
		return f.lookupFn(ctx, uid)
	}
	if token, ok := f.tokens[uid]; ok {
		return token, nil
	}
	return "", domain.ErrTokenAbsent
}

type fakeProvider struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, msg domain.PushMessage) (*provider.ProviderResponse, error)
	sent   []domain.PushMessage
}

func (f *fakeProvider) Send(ctx context.Context, msg domain.PushMessage) (*provider.ProviderResponse, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &provider.ProviderResponse{StatusCode: 200, MessageID: "msg-1"}, nil
}

func (f *fakeProvider) calls() []domain.PushMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PushMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, scope string) error
	waits  int
}

func (f *fakeRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, scope string) error {
	f.waits++
	if f.waitFn != nil {
		return f.waitFn(ctx, scope)
	}
	return nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.RecordCreatedMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.RecordCreatedMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error {
	return nil
}

type fakeDailyGuard struct {
	mu        sync.Mutex
	acquireFn func(ctx context.Context, relationshipID string, date string) (bool, error)
	seen      map[string]bool
}

func (f *fakeDailyGuard) Acquire(ctx context.Context, relationshipID string, date string) (bool, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx, relationshipID, date)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := relationshipID + ":" + date
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func newTestSender(t *testing.T, tokens *fakeTokenResolver, p *fakeProvider, limiter *fakeRateLimiter) *PushSender {
	t.Helper()

	sender, err := NewPushSender(tokens, p, nil, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPushSender() error = %v", err)
	}
	if limiter != nil {
		sender.rateLimiter = limiter
	}
	return sender
}

func strPtr(v string) *string {
	return &v
}
