// Package cleanup は長期間返信のない会話の打ち切りジョブを提供する。
// awaiting_responseのまま一定期間動きがないスレッドをno_response_finalに
// 遷移させる。この遷移を行うのはこのジョブだけであり、巡回パスの
// 返信なし判定は状態を変更しない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/dealman/internal/conversation"
	"github.com/hitoshi/dealman/internal/metrics"
	"github.com/hitoshi/dealman/internal/model"
)

// defaultStaleAfter は打ち切りまでの無応答期間のデフォルト（14日）。
const defaultStaleAfter = 14 * 24 * time.Hour

// StaleCloser は無応答スレッドの打ち切りジョブ。
// 冪等であり、打ち切り対象がない場合でもエラーにならない。
type StaleCloser struct {
	store   *conversation.Store
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	// StaleAfter は打ち切りまでの無応答期間。
	StaleAfter time.Duration
}

// NewStaleCloser は新しいStaleCloserを生成する。
// staleAfterが0以下の場合はデフォルトの14日を使用する。
func NewStaleCloser(store *conversation.Store, collector metrics.MetricsCollector, logger *slog.Logger, staleAfter time.Duration) *StaleCloser {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &StaleCloser{
		store:      store,
		metrics:    collector,
		logger:     logger,
		StaleAfter: staleAfter,
	}
}

// Run は無応答期間を超過したスレッドを打ち切る。
func (j *StaleCloser) Run(ctx context.Context) error {
	start := time.Now()
	before := start.Add(-j.StaleAfter)

	stale, err := j.store.ListStale(ctx, before)
	if err != nil {
		j.logger.Error("無応答スレッドの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("無応答スレッドの取得に失敗: %w", err)
	}

	closed := 0
	for _, conv := range stale {
		conv.Status = model.StatusNoResponseFinal
		conv.LastUpdated = start
		conv.UpdatedAt = start
		if err := j.store.SaveOne(ctx, conv); err != nil {
			j.logger.Error("打ち切りの保存に失敗しました",
				slog.String("thread_id", conv.ThreadID()),
				slog.String("error", err.Error()),
			)
			continue
		}
		closed++
	}

	j.metrics.RecordStaleClosed(closed)
	j.logger.Info("無応答スレッドの打ち切りジョブが完了しました",
		slog.Int("stale_count", len(stale)),
		slog.Int("closed_count", closed),
		slog.Duration("stale_after", j.StaleAfter),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は指定間隔で打ち切りジョブを定期実行する。
func (j *StaleCloser) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("打ち切りジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("打ち切りジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("打ち切りジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
