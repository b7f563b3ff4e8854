package bot

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/referral-bot/internal/models"
	"github.com/noah-isme/referral-bot/pkg/jobs"
)

type broadcastSender interface {
	Send(ctx context.Context, text string) (models.BroadcastResult, error)
}

// BroadcastJob is a confirmed broadcast waiting for delivery.
type BroadcastJob struct {
	AdminChatID int64
	Text        string
}

// BroadcastRunner delivers confirmed broadcasts in the background so the
// update loop keeps serving other users, then reports back to the admin chat.
type BroadcastRunner struct {
	sender    broadcastSender
	messenger Messenger
	queue     *jobs.Queue[BroadcastJob]
	logger    *zap.Logger
}

// NewBroadcastRunner builds a runner with a single worker. Broadcasts are
// never retried: a partial run would otherwise reach some chats twice.
func NewBroadcastRunner(sender broadcastSender, messenger Messenger, logger *zap.Logger) *BroadcastRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &BroadcastRunner{sender: sender, messenger: messenger, logger: logger}
	r.queue = jobs.NewQueue[BroadcastJob]("broadcast", r.run, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 8,
		MaxRetries: -1,
		Logger:     logger,
	})
	return r
}

// Start launches the worker.
func (r *BroadcastRunner) Start(ctx context.Context) { r.queue.Start(ctx) }

// Stop waits for the broadcast in flight to return.
func (r *BroadcastRunner) Stop() { r.queue.Stop() }

// Enqueue schedules text for delivery on behalf of the admin in adminChatID.
func (r *BroadcastRunner) Enqueue(_ context.Context, adminChatID int64, text string) error {
	id, err := r.queue.Enqueue(BroadcastJob{AdminChatID: adminChatID, Text: text})
	if err != nil {
		return err
	}
	r.logger.Info("broadcast queued", zap.String("job_id", id), zap.Int64("admin_chat_id", adminChatID))
	return nil
}

func (r *BroadcastRunner) run(ctx context.Context, job jobs.Job[BroadcastJob]) error {
	result, err := r.sender.Send(ctx, job.Payload.Text)
	report := Outbound{Text: BroadcastReport(result)}
	if err != nil {
		r.logger.Error("broadcast failed", zap.String("job_id", job.ID), zap.Error(err))
		report = Outbound{Text: msgBroadcastError}
	}
	if deliverErr := r.messenger.Deliver(ctx, job.Payload.AdminChatID, report); deliverErr != nil {
		r.logger.Warn("deliver broadcast report failed", zap.String("job_id", job.ID), zap.Error(deliverErr))
	}
	return nil
}
