package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/dealman/internal/model"
	"github.com/hitoshi/dealman/internal/repository"
	"github.com/hitoshi/dealman/internal/security"
)

// rawPriceEntry は外部価格ドキュメントの1エントリ。
// 価格は卸の基準価格（マージン適用前）。
type rawPriceEntry struct {
	Model  string `json:"model"`
	Swap   int    `json:"swap"`
	GradeA int    `json:"grade_a"`
	GradeB int    `json:"grade_b"`
	GradeC int    `json:"grade_c"`
	GradeD int    `json:"grade_d"`
	DOA    int    `json:"doa"`
}

// Fetcher は外部の価格ドキュメントを取得して価格テーブルを更新する。
// 取得先URLは運用者が設定するため、SSRFガード付きクライアントでフェッチする。
type Fetcher struct {
	guard         security.SSRFGuardService
	repo          repository.PricingRepository
	logger        *slog.Logger
	sourceURL     string
	marginPercent float64
	timeout       time.Duration
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(guard security.SSRFGuardService, repo repository.PricingRepository, logger *slog.Logger, sourceURL string, marginPercent float64, timeout time.Duration) *Fetcher {
	return &Fetcher{
		guard:         guard,
		repo:          repo,
		logger:        logger,
		sourceURL:     sourceURL,
		marginPercent: marginPercent,
		timeout:       timeout,
	}
}

// Refresh は価格ドキュメントを取得し、マージンを適用した上で
// 価格テーブルをUPSERTする。
func (f *Fetcher) Refresh(ctx context.Context) error {
	if f.sourceURL == "" {
		f.logger.Debug("価格ドキュメントURLが未設定のため更新をスキップします")
		return nil
	}

	if err := f.guard.ValidateURL(f.sourceURL); err != nil {
		return fmt.Errorf("価格ドキュメントURLの検証に失敗しました: %w", err)
	}

	raw, err := f.fetch(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	entries := make([]*model.PriceEntry, 0, len(raw))
	for _, r := range raw {
		if r.Model == "" {
			continue
		}
		entries = append(entries, &model.PriceEntry{
			Model:     r.Model,
			Swap:      ApplyMargin(r.Swap, f.marginPercent),
			GradeA:    ApplyMargin(r.GradeA, f.marginPercent),
			GradeB:    ApplyMargin(r.GradeB, f.marginPercent),
			GradeC:    ApplyMargin(r.GradeC, f.marginPercent),
			GradeD:    ApplyMargin(r.GradeD, f.marginPercent),
			DOA:       ApplyMargin(r.DOA, f.marginPercent),
			UpdatedAt: now,
		})
	}

	if len(entries) == 0 {
		return fmt.Errorf("価格ドキュメントに有効なエントリが含まれていません")
	}

	if err := f.repo.UpsertAll(ctx, entries); err != nil {
		return fmt.Errorf("価格テーブルの保存に失敗しました: %w", err)
	}

	f.logger.Info("価格テーブルを更新しました",
		slog.Int("entry_count", len(entries)),
		slog.Float64("margin_percent", f.marginPercent),
	)
	return nil
}

// fetch は価格ドキュメントをSSRFガード付きクライアントで取得する。
func (f *Fetcher) fetch(ctx context.Context) ([]rawPriceEntry, error) {
	client := f.guard.NewSafeClient(f.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("価格ドキュメントの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("価格ドキュメントの取得がステータス %d で失敗しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var raw []rawPriceEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("価格ドキュメントのパースに失敗しました: %w", err)
	}
	return raw, nil
}
