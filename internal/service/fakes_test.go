package service

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/outreach-dispatch/internal/domain"
	"github.com/kursadbilgin/outreach-dispatch/internal/provider"
	"github.com/kursadbilgin/outreach-dispatch/internal/queue"
	"github.com/kursadbilgin/outreach-dispatch/internal/render"
	"github.com/kursadbilgin/outreach-dispatch/internal/suppression"
)

type fakeQueueRepo struct {
	mu              sync.Mutex
	fetchPendingFn  func(ctx context.Context, limit int) ([]domain.QueueItem, error)
	markSentFn      func(ctx context.Context, id string, at time.Time) error
	markFailedFn    func(ctx context.Context, id string, message string, at time.Time) error
	requeueFailedFn func(ctx context.Context, before time.Time, maxAttempts int, limit int) (int64, error)

	fetchLimits []int
	sent        []string
	failed      map[string]string
}

func (f *fakeQueueRepo) FetchPending(ctx context.Context, limit int) ([]domain.QueueItem, error) {
	f.mu.Lock()
	f.fetchLimits = append(f.fetchLimits, limit)
	f.mu.Unlock()
	if f.fetchPendingFn != nil {
		return f.fetchPendingFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeQueueRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	if f.markSentFn != nil {
		if err := f.markSentFn(ctx, id, at); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeQueueRepo) MarkFailed(ctx context.Context, id string, message string, at time.Time) error {
	if f.markFailedFn != nil {
		if err := f.markFailedFn(ctx, id, message, at); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = make(map[string]string)
	}
	f.failed[id] = message
	return nil
}

func (f *fakeQueueRepo) RequeueFailed(ctx context.Context, before time.Time, maxAttempts int, limit int) (int64, error) {
	if f.requeueFailedFn != nil {
		return f.requeueFailedFn(ctx, before, maxAttempts, limit)
	}
	return 0, nil
}

type fakeActivityRepo struct {
	mu               sync.Mutex
	appendFn         func(ctx context.Context, a *domain.ActivityRecord) error
	updateStatusFn   func(ctx context.Context, id string, status domain.ActivityStatus) error
	sentRecipientsFn func(ctx context.Context) ([]string, error)

	appended []domain.ActivityRecord
	statuses map[string]domain.ActivityStatus
}

func (f *fakeActivityRepo) Append(ctx context.Context, a *domain.ActivityRecord) error {
	if f.appendFn != nil {
		if err := f.appendFn(ctx, a); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, *a)
	if f.statuses == nil {
		f.statuses = make(map[string]domain.ActivityStatus)
	}
	f.statuses[a.ID] = a.Status
	return nil
}

func (f *fakeActivityRepo) UpdateStatus(ctx context.Context, id string, status domain.ActivityStatus) error {
	if f.updateStatusFn != nil {
		if err := f.updateStatusFn(ctx, id, status); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[string]domain.ActivityStatus)
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeActivityRepo) SentRecipients(ctx context.Context) ([]string, error) {
	if f.sentRecipientsFn != nil {
		return f.sentRecipientsFn(ctx)
	}
	return nil, nil
}

type fakeSuppressionSource struct {
	buildFn func(ctx context.Context) (*suppression.Oracle, error)
}

func (f *fakeSuppressionSource) Build(ctx context.Context) (*suppression.Oracle, error) {
	if f.buildFn != nil {
		return f.buildFn(ctx)
	}
	return suppression.NewOracle(nil), nil
}

type fakeRenderer struct {
	renderFn func(body, assetLink string) (render.Content, error)
}

func (f *fakeRenderer) Render(body, assetLink string) (render.Content, error) {
	if f.renderFn != nil {
		return f.renderFn(body, assetLink)
	}
	return render.Content{HTML: body, Text: body}, nil
}

type fakeProvider struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, msg provider.Message) (*provider.Response, error)
	sent   []provider.Message
}

func (f *fakeProvider) Send(ctx context.Context, msg provider.Message) (*provider.Response, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &provider.Response{StatusCode: 202, MessageID: "msg-" + msg.CustomArgs["queue_id"]}, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context, event queue.ActivityEvent) error
	events    []queue.ActivityEvent
}

func (f *fakePublisher) Publish(ctx context.Context, event queue.ActivityEvent) error {
	if f.publishFn != nil {
		if err := f.publishFn(ctx, event); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) Close() error {
	return nil
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, key string) (bool, error)
	keys    []string
}

func (f *fakeRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	f.keys = append(f.keys, key)
	if f.allowFn != nil {
		return f.allowFn(ctx, key)
	}
	return true, nil
}
