// Package processor drains inbound chat messages from a buffered queue with
// a worker pool. Messages are deduplicated by id in redis; ones that fail
// processing go to a redis dead-letter list for inspection.
package processor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"dexwatch/internal/activitylog"
	"dexwatch/internal/discord"
	"dexwatch/internal/market"
	"dexwatch/internal/redis"
)

// MarketService resolves token identifiers into normalized records.
type MarketService interface {
	LookupByAddress(ctx context.Context, address string) (*market.TokenRecord, error)
	LookupBySymbol(ctx context.Context, symbol string) (*market.TokenRecord, error)
}

// Replier posts replies back to the channel a message came from.
type Replier interface {
	SendText(ctx context.Context, channelID, content string) error
	SendEmbed(ctx context.Context, channelID string, embed discord.Embed) error
}

// ActivityRecorder is the append-only sighting/query log.
type ActivityRecorder interface {
	RecordSighting(ctx context.Context, userID, displayName, address string)
	RecordQuery(ctx context.Context, userID, displayName, query string)
	TodaySummary(ctx context.Context) ([]activitylog.Entry, error)
}

// LogoArchiver stores token logos out of band. May be nil when archiving is
// disabled.
type LogoArchiver interface {
	Enqueue(tokenAddress, symbol, imageURL string)
}

type Worker struct {
	ID        int
	processor *MessageProcessor
	stopChan  chan bool
}

type MessageProcessor struct {
	log      *slog.Logger
	redis    *redis.Client
	markets  MarketService
	replier  Replier
	activity ActivityRecorder
	logos    LogoArchiver

	// botUserID is read per message so the processor can be wired before
	// the gateway has received READY.
	botUserID func() string

	messageQueue chan discord.Message
	workerPool   []*Worker
	wg           sync.WaitGroup
	mu           sync.RWMutex
}

func NewMessageProcessor(
	log *slog.Logger,
	redisClient *redis.Client,
	markets MarketService,
	replier Replier,
	activity ActivityRecorder,
	logos LogoArchiver,
	botUserID func() string,
) *MessageProcessor {
	return &MessageProcessor{
		log:          log,
		redis:        redisClient,
		markets:      markets,
		replier:      replier,
		activity:     activity,
		logos:        logos,
		botUserID:    botUserID,
		messageQueue: make(chan discord.Message, 10000),
		workerPool:   make([]*Worker, 0),
	}
}

// Submit implements discord.MessageSink. Never blocks; a full queue drops
// the message with a warning.
func (mp *MessageProcessor) Submit(msg discord.Message) {
	select {
	case mp.messageQueue <- msg:
	default:
		mp.log.Warn("message_queue_full", "message_id", msg.ID)
	}
}

func (mp *MessageProcessor) StartWorkers(workerCount int) {
	if workerCount < 1 {
		workerCount = 5
	}
	// Upstream providers rate limit; keep concurrency modest.
	if workerCount > 64 {
		workerCount = 64
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	for i := 0; i < workerCount; i++ {
		worker := &Worker{
			ID:        i + 1,
			processor: mp,
			stopChan:  make(chan bool, 1),
		}
		mp.workerPool = append(mp.workerPool, worker)

		mp.wg.Add(1)
		go mp.runWorker(worker)
	}

	mp.log.Info("message_workers_started", "count", workerCount)
}

func (mp *MessageProcessor) runWorker(worker *Worker) {
	defer mp.wg.Done()

	for {
		select {
		case msg := <-mp.messageQueue:
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			if err := mp.ProcessMessage(ctx, msg); err != nil {
				mp.log.Warn("message_processing_failed",
					"worker_id", worker.ID,
					"message_id", msg.ID,
					"error", err,
				)
				mp.sendToDLQ(ctx, msg, err.Error())
			}
			cancel()
		case <-worker.stopChan:
			mp.log.Info("worker_stopped", "worker_id", worker.ID)
			return
		}
	}
}

func (mp *MessageProcessor) StopWorkers() {
	mp.mu.Lock()

	for _, worker := range mp.workerPool {
		select {
		case worker.stopChan <- true:
		default:
		}
	}

	mp.mu.Unlock()

	mp.wg.Wait()
	mp.log.Info("all_workers_stopped")
}

// isDuplicate dedups by message id. The gateway redelivers dispatches after
// resume; without this a reconnect can reply twice to the same message.
func (mp *MessageProcessor) isDuplicate(ctx context.Context, msg discord.Message) bool {
	if mp.redis == nil || msg.ID == "" {
		return false
	}

	key := "message:dedup:" + msg.ID
	exists, err := mp.redis.RDB().Exists(ctx, key).Result()
	if err == nil && exists > 0 {
		return true
	}
	_ = mp.redis.RDB().Set(ctx, key, "1", 10*time.Minute).Err()
	return false
}

func (mp *MessageProcessor) sendToDLQ(ctx context.Context, msg discord.Message, errorMsg string) {
	if mp.redis == nil {
		return
	}

	data, _ := json.Marshal(map[string]interface{}{
		"message":   msg,
		"error":     errorMsg,
		"timestamp": time.Now(),
	})
	mp.redis.RDB().LPush(ctx, "dlq:messages", data)
	mp.redis.RDB().Expire(ctx, "dlq:messages", 24*time.Hour)
}
