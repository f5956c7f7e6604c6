package storage

import (
	"context"
	"log/slog"
	"time"

	"dexwatch/internal/db"
)

// logoTask is one pending archive request coming from the message pipeline.
type logoTask struct {
	TokenAddress string
	Symbol       string
	SourceURL    string
}

// LogoArchiver copies provider-hosted token logos into our own bucket so
// replies keep working after the provider rotates or drops the image. Work
// is queued from the message path and done in the background; a periodic
// retry cycle picks up rows whose upload failed.
type LogoArchiver struct {
	db      *db.DB
	storage LogoStorage
	logger  *slog.Logger
	tasks   chan logoTask
	stop    chan struct{}
}

func NewLogoArchiver(logger *slog.Logger, dbConn *db.DB, storageClient LogoStorage) *LogoArchiver {
	return &LogoArchiver{
		db:      dbConn,
		storage: storageClient,
		logger:  logger,
		tasks:   make(chan logoTask, 1000),
		stop:    make(chan struct{}),
	}
}

// InitSchema creates the archive table if missing.
func (la *LogoArchiver) InitSchema(ctx context.Context) error {
	_, err := la.db.Pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS logo_archive (
			token_address TEXT PRIMARY KEY,
			symbol TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL,
			cdn_url TEXT,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	)
	return err
}

// Enqueue registers a logo for archiving. Never blocks the message path.
func (la *LogoArchiver) Enqueue(tokenAddress, symbol, imageURL string) {
	if tokenAddress == "" || imageURL == "" {
		return
	}
	select {
	case la.tasks <- logoTask{TokenAddress: tokenAddress, Symbol: symbol, SourceURL: imageURL}:
	default:
		la.logger.Warn("logo_queue_full", "token_address", tokenAddress)
	}
}

// Start runs the archive worker and the retry ticker until Stop is called.
func (la *LogoArchiver) Start() {
	go la.runWorker()
	go la.runRetryLoop()
}

func (la *LogoArchiver) Stop() {
	close(la.stop)
}

func (la *LogoArchiver) runWorker() {
	for {
		select {
		case task := <-la.tasks:
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			la.archiveOne(ctx, task)
			cancel()
		case <-la.stop:
			return
		}
	}
}

func (la *LogoArchiver) archiveOne(ctx context.Context, task logoTask) {
	// Register the row first so a failed upload can be retried later.
	_, err := la.db.Pool.Exec(ctx,
		`INSERT INTO logo_archive (token_address, symbol, source_url)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (token_address) DO UPDATE SET source_url = EXCLUDED.source_url, symbol = EXCLUDED.symbol`,
		task.TokenAddress, task.Symbol, task.SourceURL,
	)
	if err != nil {
		la.logger.Warn("failed_to_register_logo", "token_address", task.TokenAddress, "error", err)
		return
	}

	// Already archived: nothing to do.
	var existing *string
	if err := la.db.Pool.QueryRow(ctx,
		`SELECT cdn_url FROM logo_archive WHERE token_address = $1`,
		task.TokenAddress,
	).Scan(&existing); err == nil && existing != nil && *existing != "" {
		return
	}

	la.uploadAndRecord(ctx, task)
}

func (la *LogoArchiver) uploadAndRecord(ctx context.Context, task logoTask) {
	url, err := la.storage.UploadLogoFromURL(task.TokenAddress, task.Symbol, task.SourceURL)
	if err != nil {
		la.logger.Warn("logo_archive_failed",
			"token_address", task.TokenAddress,
			"source_url", task.SourceURL,
			"error", err,
		)
		return
	}

	_, err = la.db.Pool.Exec(ctx,
		`UPDATE logo_archive SET cdn_url = $1, archived_at = now() WHERE token_address = $2`,
		url, task.TokenAddress,
	)
	if err != nil {
		la.logger.Warn("failed_to_update_logo_url", "token_address", task.TokenAddress, "error", err)
		return
	}

	la.logger.Info("logo_archived", "token_address", task.TokenAddress, "cdn_url", url)
}

func (la *LogoArchiver) runRetryLoop() {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Hour)
			la.RunRetryCycle(ctx)
			cancel()
		case <-la.stop:
			return
		}
	}
}

// RunRetryCycle re-attempts rows that never got a cdn_url. Also reachable
// from the admin API.
func (la *LogoArchiver) RunRetryCycle(ctx context.Context) int {
	la.logger.Info("logo_retry_cycle_started")

	rows, err := la.db.Pool.Query(ctx,
		`SELECT token_address, symbol, source_url
		 FROM logo_archive
		 WHERE cdn_url IS NULL
		 LIMIT 100`,
	)
	if err != nil {
		la.logger.Warn("failed_to_fetch_pending_logos", "error", err)
		return 0
	}

	pending := []logoTask{}
	for rows.Next() {
		var t logoTask
		if err := rows.Scan(&t.TokenAddress, &t.Symbol, &t.SourceURL); err != nil {
			continue
		}
		pending = append(pending, t)
	}
	rows.Close()

	count := 0
	for _, task := range pending {
		select {
		case <-ctx.Done():
			return count
		default:
		}

		la.uploadAndRecord(ctx, task)
		count++

		// Spread uploads out to stay friendly with provider CDNs.
		time.Sleep(1 * time.Second)
	}

	la.logger.Info("logo_retry_cycle_completed", "processed", count)
	return count
}

// PendingCount reports rows still awaiting archive, for the admin API.
func (la *LogoArchiver) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := la.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM logo_archive WHERE cdn_url IS NULL`,
	).Scan(&n)
	return n, err
}
