package outbox

import (
	"context"
	"sync"
	"time"

	"parsely-go/internal/storage/models"
	"parsely-go/pkg/utils"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5 // 超过后标记为 FAILED，不再重试
)

// Publisher 把消息发布到消息代理，storage.RabbitMQ 满足该接口
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// Store 领取一批待发送消息，fn 返回后保存状态
type Store interface {
	WithPendingOutbox(ctx context.Context, limit int, fn func(msgs []models.OutboxMessage)) (int, error)
}

// MessageRelay 轮询 outbox 表并将消息发布到消息代理。
type MessageRelay struct {
	store           Store
	publisher       Publisher
	logger          zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	done            chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
	tracer          trace.Tracer
}

// Option 中继选项
type Option func(*MessageRelay)

// WithPollingInterval 设置轮询间隔
func WithPollingInterval(d time.Duration) Option {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 设置每次领取的消息数
func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// NewMessageRelay 创建一个新的 MessageRelay 实例。
func NewMessageRelay(store Store, publisher Publisher, logger zerolog.Logger, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		store:           store,
		publisher:       publisher,
		logger:          logger,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("parsely-go/outbox"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 开始消息中继的轮询过程。
func (r *MessageRelay) Start() {
	r.logger.Info().Dur("interval", r.pollingInterval).Msg("MessageRelay starting")
	ticker := time.NewTicker(r.pollingInterval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.logger.Info().Msg("MessageRelay stopped")
				return
			case <-ticker.C:
				if _, err := r.ProcessPending(context.Background()); err != nil {
					r.logger.Error().Err(err).Msg("处理待发送outbox消息失败")
				}
			}
		}
	}()
}

// Stop 优雅地停止消息中继服务，等待当前批次结束
func (r *MessageRelay) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

// ProcessPending 领取并发布一批消息，返回本批消息数
func (r *MessageRelay) ProcessPending(ctx context.Context) (int, error) {
	return r.store.WithPendingOutbox(ctx, r.batchSize, func(msgs []models.OutboxMessage) {
		// 只在有消息时创建 span，空轮询不产生追踪数据
		ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
			trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(msgs))),
		)
		defer span.End()

		for i := range msgs {
			err := r.publisher.PublishMessage(ctx, msgs[i].TargetExchange, msgs[i].TargetRoutingKey, []byte(msgs[i].Payload), true)
			ApplyPublishResult(&msgs[i], err, time.Now())
			if err != nil {
				r.logger.Warn().Err(err).
					Uint64("message_id", msgs[i].ID).
					Str("aggregate_id", msgs[i].AggregateID).
					Int("retries", msgs[i].RetryCount).
					Msg("发布outbox消息失败")
			}
		}
	})
}

// ApplyPublishResult 按发布结果更新消息状态：成功为 SENT，
// 失败时累加重试次数，达到上限后为 FAILED
func ApplyPublishResult(msg *models.OutboxMessage, err error, now time.Time) {
	if err != nil {
		msg.RetryCount++
		msg.ErrorMessage = err.Error()
		if msg.RetryCount >= maxRetryCount {
			msg.Status = models.OutboxStatusFailed
		}
		return
	}
	msg.Status = models.OutboxStatusSent
	msg.ProcessedAt = utils.TimePtr(now)
	msg.ErrorMessage = ""
}
