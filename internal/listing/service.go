package listing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/dealman/internal/model"
	"github.com/hitoshi/dealman/internal/repository"
)

// Service は出品の取り込みと管理を提供する。
// 取り込みは既存レコードとの重複排除を伴い、同一出品が複数回
// 収集されてもストレージ上は1件に保たれる。
type Service struct {
	repo   repository.ListingRepository
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ListingRepository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Import は収集した出品を既存レコードとマージして保存する。
// 戻り値は新規に追加された出品の数。
func (s *Service) Import(ctx context.Context, incoming []*model.Listing) (int, error) {
	existing, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("既存出品の読み込みに失敗しました: %w", err)
	}

	known := make(map[int64]bool, len(existing))
	for _, l := range existing {
		known[l.ItemID] = true
	}

	now := time.Now()
	for _, l := range incoming {
		l.URL = NormalizeURL(l.URL)
		if l.ItemID == 0 {
			l.ItemID = ExtractItemID(l.URL)
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		l.UpdatedAt = now
	}

	merged := Merge(append(existing, incoming...))
	if err := s.repo.SaveAll(ctx, merged); err != nil {
		return 0, fmt.Errorf("出品の保存に失敗しました: %w", err)
	}

	added := 0
	for _, l := range merged {
		if !known[l.ItemID] {
			added++
		}
	}

	s.logger.Info("出品を取り込みました",
		slog.Int("incoming_count", len(incoming)),
		slog.Int("total_count", len(merged)),
		slog.Int("added_count", added),
	)
	return added, nil
}

// NextTargets は未送信かつ除外されていない出品を上限件数まで返す。
func (s *Service) NextTargets(ctx context.Context, limit int) ([]*model.Listing, error) {
	targets, err := s.repo.ListUnmessaged(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("オファー対象出品の取得に失敗しました: %w", err)
	}
	return targets, nil
}

// MarkMessaged は出品をオファー送信済みとして記録する。
func (s *Service) MarkMessaged(ctx context.Context, l *model.Listing, messageID string, offerPrice int, now time.Time) error {
	l.Messaged = true
	l.MessagedAt = &now
	l.MessageID = messageID
	l.OfferPrice = offerPrice
	l.UpdatedAt = now
	if err := s.repo.Update(ctx, l); err != nil {
		return fmt.Errorf("出品の更新に失敗しました: %w", err)
	}
	return nil
}

// MarkUnavailable は出品を取引不能（売却済み・削除済み）として記録する。
func (s *Service) MarkUnavailable(ctx context.Context, l *model.Listing, now time.Time) error {
	l.Unavailable = true
	l.UpdatedAt = now
	if err := s.repo.Update(ctx, l); err != nil {
		return fmt.Errorf("出品の更新に失敗しました: %w", err)
	}
	return nil
}

// MarkIrrelevant は出品を対象外商品として記録する。
func (s *Service) MarkIrrelevant(ctx context.Context, l *model.Listing, now time.Time) error {
	irrelevant := false
	l.Relevant = &irrelevant
	l.UpdatedAt = now
	if err := s.repo.Update(ctx, l); err != nil {
		return fmt.Errorf("出品の更新に失敗しました: %w", err)
	}
	return nil
}
