// Package negotiate は交渉スレッドの定期巡回ワーカーを提供する。
// 1パスで未終了の会話を順に処理し、処理間隔のペーシングと
// 連続失敗時の指数バックオフを行う。
package negotiate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/dealman/internal/conversation"
	"github.com/hitoshi/dealman/internal/metrics"
	"github.com/hitoshi/dealman/internal/model"
	"github.com/hitoshi/dealman/internal/policy"
)

// Processor は1会話分の処理インターフェース。conversation.Machineが実装する。
type Processor interface {
	Process(ctx context.Context, conv *model.Conversation) error
}

// Runner は交渉スレッドの巡回パスを実行する。
type Runner struct {
	store     *conversation.Store
	processor Processor
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	backoff   *BackoffPolicy

	// maxPerRun は1パスで処理する会話数の上限。
	maxPerRun int
	// limiter は会話処理間のペーシング。連続したブラウザ操作の
	// 間隔を空けるために使う。
	limiter *rate.Limiter
}

// NewRunner はRunnerの新しいインスタンスを生成する。
// maxPerRunが0以下の場合はデフォルト値10を使用する。
// delayは会話処理間の最小間隔。
func NewRunner(
	store *conversation.Store,
	processor Processor,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxPerRun int,
	delay time.Duration,
) *Runner {
	if maxPerRun <= 0 {
		maxPerRun = 10
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &Runner{
		store:     store,
		processor: processor,
		metrics:   collector,
		logger:    logger,
		backoff:   NewBackoffPolicy(),
		maxPerRun: maxPerRun,
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Start は指定間隔で巡回パスを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
// パス全体が失敗した場合は次回パスまでの間隔にバックオフ遅延を上乗せする。
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	r.logger.Info("交渉ワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_per_run", r.maxPerRun),
	)

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.backoff.RecordFailure()
			r.logger.Error("巡回パスの実行に失敗しました",
				slog.String("error", err.Error()),
				slog.Duration("backoff", r.backoff.Delay()),
			)
		} else {
			r.backoff.RecordSuccess()
		}

		wait := interval + r.backoff.Delay()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("交渉ワーカーを停止しました")
			return
		case <-timer.C:
		}
	}
}

// RunOnce は1巡回パスを実行する。
// 終端状態の会話とパス内で処理済みのスレッドはスキップし、
// 上限件数に達したら残りを次回パスに回す。
// 個々の会話の処理エラーはパスを止めず、ログとメトリクスに記録する。
func (r *Runner) RunOnce(ctx context.Context) error {
	runID := uuid.New().String()
	start := time.Now()

	set := r.store.Load(ctx)

	r.logger.Info("巡回パスを開始します",
		slog.String("run_id", runID),
		slog.Int("conversation_count", len(set.Conversations)),
	)

	processed := 0
	seen := make(map[string]bool)

	for _, conv := range set.Conversations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if processed >= r.maxPerRun {
			r.logger.Info("1パスの処理上限に達したため残りは次回に回します",
				slog.String("run_id", runID),
				slog.Int("max_per_run", r.maxPerRun),
			)
			break
		}

		if conv.Status.IsTerminal() {
			continue
		}

		// 過去の実行で状態が保存されないまま打ち切り定型文だけが
		// 送信された会話を検出し、closedに修復する。
		if policy.MatchesClosingPhrase(conv.LastOurMessage()) || policy.MatchesClosingPhrase(conv.LastMessage) {
			conv.Status = model.StatusClosed
			conv.LastUpdated = time.Now()
			if err := r.store.SaveOne(ctx, conv); err != nil {
				r.logger.Error("打ち切り修復の保存に失敗しました",
					slog.String("run_id", runID),
					slog.String("thread_id", conv.ThreadID()),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		threadID := conv.ThreadID()
		if threadID == "" {
			r.logger.Warn("スレッドIDを導出できない会話をスキップします",
				slog.String("run_id", runID),
				slog.String("conversation_url", conv.ConversationURL),
			)
			continue
		}
		if seen[threadID] {
			continue
		}
		seen[threadID] = true

		// ブラウザ操作の間隔を空ける
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := r.processor.Process(ctx, conv); err != nil {
			r.metrics.RecordConversationError()
			r.logger.Error("会話の処理に失敗しました",
				slog.String("run_id", runID),
				slog.String("thread_id", threadID),
				slog.String("error", err.Error()),
			)
			continue
		}
		processed++
	}

	r.logger.Info("巡回パスが完了しました",
		slog.String("run_id", runID),
		slog.Int("processed_count", processed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
