// Package scheduler implements the async trip scheduler on top of a
// durable, at-least-once message queue.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/trasaroute/trasaroute/internal/errs"
	"github.com/trasaroute/trasaroute/internal/model"
	"github.com/trasaroute/trasaroute/internal/telemetry"
)

// ExpectedDelay is added to now() to compute a promise's expected_at.
const ExpectedDelay = 3 * time.Second

// TripRequest is a dequeued, validated trip request ready for a worker.
type TripRequest struct {
	Trip model.UnoptimizedTrip `json:"trip"`
	Meta model.TripMetadata    `json:"meta"`
}

// Scheduler wraps one Service Bus queue (pending_routes) with the
// schedule/poll/complete/discard contract. pendingCount is a local
// approximation of the queue depth, adjusted on schedule/complete/discard;
// it is not the provider's own queue-depth metric (that requires a
// management-plane client the pool does not otherwise need). ScheduleTrip
// does not consult it: expected_at is always now + ExpectedDelay.
type Scheduler struct {
	client   *azservicebus.Client
	sender   *azservicebus.Sender
	receiver *azservicebus.Receiver

	pendingCount int64
	pending      sync.Map // receipt handle string -> *azservicebus.ReceivedMessage
}

// Config configures the scheduler's queue connection.
type Config struct {
	ConnectionString string
	QueueName        string
}

// New connects a sender and a receiver to the configured queue.
func New(ctx context.Context, cfg Config) (*Scheduler, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("scheduler: connect: %w", err)
	}
	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("scheduler: sender: %w", err)
	}
	receiver, err := client.NewReceiverForQueue(cfg.QueueName, &azservicebus.ReceiverOptions{
		ReceiveMode: azservicebus.ReceiveModePeekLock,
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: receiver: %w", err)
	}
	return &Scheduler{client: client, sender: sender, receiver: receiver}, nil
}

// Close releases the sender/receiver/client.
func (s *Scheduler) Close(ctx context.Context) error {
	_ = s.sender.Close(ctx)
	_ = s.receiver.Close(ctx)
	return s.client.Close(ctx)
}

// PendingCount returns the queue's approximate pending-message count as
// tracked by this process. ScheduleTrip does not read it.
func (s *Scheduler) PendingCount() int64 {
	return atomic.LoadInt64(&s.pendingCount)
}

// ScheduleTrip serializes request as JSON and enqueues it, returning the
// client-visible promise.
func (s *Scheduler) ScheduleTrip(ctx context.Context, trip model.UnoptimizedTrip, meta model.TripMetadata) (model.TripPromise, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "scheduler.ScheduleTrip")
	defer span.End()

	body, err := json.Marshal(TripRequest{Trip: trip, Meta: meta})
	if err != nil {
		return model.TripPromise{}, errs.ServerErrorWrap(err, "scheduler_error")
	}

	id := ""
	if meta.ID != nil {
		id = *meta.ID
	}
	msg := &azservicebus.Message{Body: body, MessageID: &id}
	if err := s.sender.SendMessage(ctx, msg, nil); err != nil {
		return model.TripPromise{}, errs.ServerErrorWrap(err, "scheduler_error")
	}
	atomic.AddInt64(&s.pendingCount, 1)

	now := time.Now()
	return model.TripPromise{ID: id, ScheduledAt: now, ExpectedAt: now.Add(ExpectedDelay)}, nil
}

// PollTripRequest pulls up to one message with a visibility timeout. A
// message whose body fails to parse or validate is poison: it is
// acknowledged (deleted) immediately and (nil, nil) is returned, since a
// poison message must never be retried.
func (s *Scheduler) PollTripRequest(ctx context.Context) (*TripRequest, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "scheduler.PollTripRequest")
	defer span.End()

	messages, err := s.receiver.ReceiveMessages(ctx, 1, nil)
	if err != nil {
		return nil, errs.ServerErrorWrap(err, "scheduler_error")
	}
	if len(messages) == 0 {
		return nil, nil
	}
	raw := messages[0]

	var req TripRequest
	if err := json.Unmarshal(raw.Body, &req); err != nil || !validTripRequest(req) {
		_ = s.receiver.CompleteMessage(ctx, raw, nil)
		return nil, nil
	}

	receipt := fmt.Sprintf("%x", raw.LockToken)
	req.Meta.ReceiptHandle = &receipt
	if req.Meta.ID == nil {
		id := ""
		if raw.MessageID != nil {
			id = *raw.MessageID
		}
		req.Meta.ID = &id
	}

	s.pending.Store(receipt, raw)
	return &req, nil
}

func validTripRequest(req TripRequest) bool {
	return len(req.Trip.Waypoints) >= 3 && req.Meta.Region != "" && req.Meta.AccountID != ""
}

// CompleteTrip acknowledges the message using meta.receipt_handle. Called
// only after the result store has accepted the ready record.
func (s *Scheduler) CompleteTrip(ctx context.Context, meta model.TripMetadata) error {
	raw, ok := s.lookupRaw(meta)
	if !ok {
		return errs.ServerErrorWrap(fmt.Errorf("no tracked message for receipt"), "scheduler_error")
	}
	defer s.forgetRaw(meta)
	if err := s.receiver.CompleteMessage(ctx, raw, nil); err != nil {
		return errs.ServerErrorWrap(err, "scheduler_error")
	}
	atomic.AddInt64(&s.pendingCount, -1)
	return nil
}

// DiscardTrip acknowledges the message without recording a result; used
// only after a failed record has been persisted.
func (s *Scheduler) DiscardTrip(ctx context.Context, meta model.TripMetadata) error {
	raw, ok := s.lookupRaw(meta)
	if !ok {
		return errs.ServerErrorWrap(fmt.Errorf("no tracked message for receipt"), "scheduler_error")
	}
	defer s.forgetRaw(meta)
	if err := s.receiver.CompleteMessage(ctx, raw, nil); err != nil {
		return errs.ServerErrorWrap(err, "scheduler_error")
	}
	atomic.AddInt64(&s.pendingCount, -1)
	return nil
}

func (s *Scheduler) lookupRaw(meta model.TripMetadata) (*azservicebus.ReceivedMessage, bool) {
	if meta.ReceiptHandle == nil {
		return nil, false
	}
	v, ok := s.pending.Load(*meta.ReceiptHandle)
	if !ok {
		return nil, false
	}
	return v.(*azservicebus.ReceivedMessage), true
}

func (s *Scheduler) forgetRaw(meta model.TripMetadata) {
	if meta.ReceiptHandle != nil {
		s.pending.Delete(*meta.ReceiptHandle)
	}
}
