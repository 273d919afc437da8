package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// NotificationSink delivers a scan event to one user's live session.
type NotificationSink interface {
	Notify(ctx context.Context, userID string, event models.ScanEvent) error
}

// EventChannel is the pub/sub channel a user's session subscribes to.
func EventChannel(userID string) string {
	return "scan-events:" + userID
}

// RedisNotificationSink publishes events over Redis pub/sub. Events published
// while the user has no subscriber are lost.
type RedisNotificationSink struct {
	client *redis.Client
	logger logrus.FieldLogger
}

func NewRedisNotificationSink(client *redis.Client, logger logrus.FieldLogger) *RedisNotificationSink {
	return &RedisNotificationSink{client: client, logger: logger}
}

func (s *RedisNotificationSink) Notify(ctx context.Context, userID string, event models.ScanEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	receivers, err := s.client.Publish(ctx, EventChannel(userID), string(data)).Result()
	if err != nil {
		return err
	}
	if receivers == 0 {
		s.logger.WithFields(logrus.Fields{
			"user_id":   userID,
			"scan_code": event.ScanCode,
		}).Debug("no active session, scan event dropped")
	}
	return nil
}

type notification struct {
	userID string
	event  models.ScanEvent
}

// NotificationService delivers events asynchronously so a slow or failing
// sink never delays or fails the decision that produced the event.
// Delivery is best effort: a full queue drops the event and sink errors are
// logged, never retried.
type NotificationService struct {
	sink    NotificationSink
	queue   chan notification
	timeout time.Duration
	logger  logrus.FieldLogger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewNotificationService(sink NotificationSink, cfg config.NotifyConfig, logger logrus.FieldLogger) *NotificationService {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &NotificationService{
		sink:    sink,
		queue:   make(chan notification, size),
		timeout: timeout,
		logger:  logger.WithField("module", "notifications"),
	}
}

// Start launches the delivery worker. It is a no-op after the first call.
func (n *NotificationService) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started || n.closed {
		return
	}
	n.started = true

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for item := range n.queue {
			n.deliver(item)
		}
	}()
}

// Dispatch enqueues an event without blocking. It reports whether the event
// was accepted.
func (n *NotificationService) Dispatch(userID string, event models.ScanEvent) bool {
	if n == nil || n.sink == nil {
		return false
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return false
	}

	select {
	case n.queue <- notification{userID: userID, event: event}:
		return true
	default:
		n.logger.WithFields(logrus.Fields{
			"user_id":   userID,
			"scan_code": event.ScanCode,
		}).Warn("notification queue full, event dropped")
		return false
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (n *NotificationService) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
}

func (n *NotificationService) deliver(item notification) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.sink.Notify(ctx, item.userID, item.event); err != nil {
		config.LogError(n.logger, "notifications", "deliver", "scan event delivery failed", map[string]string{
			"user_id":   item.userID,
			"scan_code": item.event.ScanCode,
			"status":    string(item.event.Status),
		}, err)
	}
}

func approvedEvent(rec models.ScanRecord, at time.Time) models.ScanEvent {
	amount := rec.RewardAmount
	return models.ScanEvent{
		ScanCode:     rec.Code,
		Status:       models.ScanStatusApproved,
		RewardAmount: &amount,
		Message:      fmt.Sprintf("Approved! You earned ₹%s", amount.StringFixed(2)),
		OccurredAt:   at,
	}
}

func rejectedEvent(rec models.ScanRecord, at time.Time) models.ScanEvent {
	reason := ""
	if rec.RejectionReason != nil {
		reason = *rec.RejectionReason
	}
	return models.ScanEvent{
		ScanCode:   rec.Code,
		Status:     models.ScanStatusRejected,
		Message:    "Rejected: " + reason,
		OccurredAt: at,
	}
}
