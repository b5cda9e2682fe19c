package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/dealman/internal/model"
	"github.com/hitoshi/dealman/internal/repository"
)

// Service は価格テーブルを使った価格照会サービス。
// テーブルはメモリにキャッシュし、Reloadで再読み込みする。
type Service struct {
	repo   repository.PricingRepository
	logger *slog.Logger

	mu      sync.RWMutex
	entries []*model.PriceEntry
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.PricingRepository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Reload は価格テーブルをストレージから再読み込みする。
func (s *Service) Reload(ctx context.Context) error {
	entries, err := s.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("価格テーブルの再読み込みに失敗しました: %w", err)
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.logger.Info("価格テーブルを読み込みました", slog.Int("entry_count", len(entries)))
	return nil
}

// QuoteFor は出品タイトルと説明文から価格照会結果を返す。
// 適合するモデルが見つからない場合はnil。
func (s *Service) QuoteFor(title, description string) *model.PriceQuote {
	s.mu.RLock()
	entries := s.entries
	s.mu.RUnlock()

	return Quote(title, description, entries)
}

// BasePriceFor は商品名から初回オファーの基準価格を引く。
// 交渉ポリシーのPriceResolverとして使用される。
func (s *Service) BasePriceFor(product string) (int, bool) {
	quote := s.QuoteFor(product, "")
	if quote == nil || quote.OfferPrice <= 0 {
		return 0, false
	}
	return quote.OfferPrice, true
}
