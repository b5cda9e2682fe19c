// Package offer は未接触の出品への初回オファー送信パスを提供する。
// 出品ページの確認、価格算出、オファーメッセージの送信、
// 会話スレッドの初期登録までを1出品ずつ行う。
package offer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/dealman/internal/agent"
	"github.com/hitoshi/dealman/internal/listing"
	"github.com/hitoshi/dealman/internal/metrics"
	"github.com/hitoshi/dealman/internal/model"
	"github.com/hitoshi/dealman/internal/pricing"
	"github.com/hitoshi/dealman/internal/security"
)

var (
	titlePattern  = regexp.MustCompile(`(?is)title:\s*(.+?)(?:\n|seller:|desc:|$)`)
	sellerPattern = regexp.MustCompile(`(?is)seller:\s*(.+?)(?:\n|desc:|$)`)
	descPattern   = regexp.MustCompile(`(?is)desc:\s*(.+?)(?:\n|$)`)
)

// Service は初回オファー送信パスの実装。
type Service struct {
	dispatcher agent.Dispatcher
	listings   *listing.Service
	pricing    *pricing.Service
	store      conversationSeeder
	sanitizer  security.TranscriptSanitizerService
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	now        func() time.Time

	// maxPerSession は1セッションで送信するオファー数の上限。
	maxPerSession int
	// limiter はオファー処理間のペーシング。連続したブラウザ操作の
	// 間隔を空けるために使う。
	limiter *rate.Limiter
}

// conversationSeeder はオファー送信後の会話スレッド初期登録に必要な操作。
type conversationSeeder interface {
	SaveOne(ctx context.Context, conv *model.Conversation) error
}

// NewService はServiceの新しいインスタンスを生成する。
// maxPerSessionが0以下の場合はデフォルト値10を使用する。
// delayはオファー処理間の最小間隔。
func NewService(
	dispatcher agent.Dispatcher,
	listings *listing.Service,
	pricingService *pricing.Service,
	store conversationSeeder,
	sanitizer security.TranscriptSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxPerSession int,
	delay time.Duration,
) *Service {
	if maxPerSession <= 0 {
		maxPerSession = 10
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &Service{
		dispatcher:    dispatcher,
		listings:      listings,
		pricing:       pricingService,
		store:         store,
		sanitizer:     sanitizer,
		metrics:       collector,
		logger:        logger,
		now:           time.Now,
		maxPerSession: maxPerSession,
		limiter:       rate.NewLimiter(rate.Every(delay), 1),
	}
}

// Discover はマーケットプレイス検索で出品を収集し、ストレージに取り込む。
// 既存レコードとの重複はマージされる。戻り値は新規に追加された出品の数。
func (s *Service) Discover(ctx context.Context, product string) (int, error) {
	s.metrics.RecordAgentDispatch("search_listings")
	report, err := s.dispatcher.Dispatch(ctx, agent.SearchListingsTask(product))
	if err != nil {
		return 0, model.NewAgentDispatchError(err.Error())
	}

	found := parseSearchReport(report, product, s.sanitizer)
	if len(found) == 0 {
		s.logger.Warn("検索結果から出品を抽出できませんでした",
			slog.String("product", product),
		)
		return 0, nil
	}

	added, err := s.listings.Import(ctx, found)
	if err != nil {
		return 0, err
	}

	s.logger.Info("出品の収集が完了しました",
		slog.String("product", product),
		slog.Int("found_count", len(found)),
		slog.Int("added_count", added),
	)
	return added, nil
}

// parseSearchReport は "LISTING: url | title | price" 形式の行を抽出する。
func parseSearchReport(report, product string, sanitizer security.TranscriptSanitizerService) []*model.Listing {
	var found []*model.Listing
	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimSpace(line)
		if strings.EqualFold(line, "SEARCH_END") {
			break
		}
		if !strings.HasPrefix(strings.ToUpper(line), "LISTING:") {
			continue
		}

		parts := strings.Split(line[len("LISTING:"):], "|")
		url := strings.TrimSpace(parts[0])
		if url == "" {
			continue
		}
		l := &model.Listing{URL: url, Product: product}
		if len(parts) > 1 {
			l.Title = sanitizer.Sanitize(strings.TrimSpace(parts[1]))
		}
		found = append(found, l)
	}
	return found
}

// RunOnce は未接触の出品を上限件数まで処理する。
// 個々の出品の処理エラーはパスを止めない。戻り値は送信したオファー数。
func (s *Service) RunOnce(ctx context.Context, limit int) (int, error) {
	targets, err := s.listings.NextTargets(ctx, limit)
	if err != nil {
		return 0, err
	}

	s.logger.Info("オファーパスを開始します",
		slog.Int("target_count", len(targets)),
	)

	sent := 0
	for _, l := range targets {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if sent >= s.maxPerSession {
			s.logger.Info("セッションの送信上限に達したため残りは次回に回します",
				slog.Int("max_per_session", s.maxPerSession),
			)
			break
		}

		// ブラウザ操作の間隔を空ける
		if err := s.limiter.Wait(ctx); err != nil {
			return sent, err
		}

		ok, err := s.processListing(ctx, l)
		if err != nil {
			s.logger.Error("出品の処理に失敗しました",
				slog.Int64("item_id", l.ItemID),
				slog.String("url", l.URL),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			sent++
		}
	}

	s.metrics.RecordOffersSent(sent)
	s.logger.Info("オファーパスが完了しました",
		slog.Int("sent_count", sent),
	)
	return sent, nil
}

// processListing は1出品を確認し、必要ならオファーを送信する。
// 戻り値はオファーを送信したかどうか。
func (s *Service) processListing(ctx context.Context, l *model.Listing) (bool, error) {
	s.metrics.RecordAgentDispatch("inspect_listing")
	report, err := s.dispatcher.Dispatch(ctx, agent.InspectListingTask(l.URL))
	if err != nil {
		return false, model.NewAgentDispatchError(err.Error())
	}

	now := s.now()
	lower := strings.ToLower(report)

	switch {
	case strings.Contains(lower, "status: unavailable"):
		return false, s.listings.MarkUnavailable(ctx, l, now)
	case strings.Contains(lower, "status: not_iphone"):
		return false, s.listings.MarkIrrelevant(ctx, l, now)
	case strings.Contains(lower, "status: already_messaged"):
		// 別経路で接触済み。二重オファーを防ぐため送信済み扱いにする。
		return false, s.listings.MarkMessaged(ctx, l, l.MessageID, l.OfferPrice, now)
	}

	title := s.extract(report, titlePattern)
	seller := s.extract(report, sellerPattern)
	desc := s.extract(report, descPattern)
	if title != "" {
		l.Title = title
	}
	if seller != "" {
		l.SellerName = seller
	}

	quote := s.pricing.QuoteFor(l.Title, desc)
	if quote == nil || quote.OfferPrice <= 0 {
		s.logger.Warn("価格を算出できないためオファーを見送ります",
			slog.Int64("item_id", l.ItemID),
			slog.String("title", l.Title),
		)
		return false, nil
	}

	// 破損が疑われる出品は金額を出す前に状態を確認する
	message := fmt.Sprintf("Hi I can do $%d cash for it", quote.OfferPrice)
	offerAmount := quote.OfferPrice
	if quote.Grade == model.GradeD || quote.Grade == model.GradeDOA {
		message = "Hi, can you tell me more about the damage?"
		offerAmount = 0
	}

	s.metrics.RecordAgentDispatch("send_offer")
	sendReport, err := s.dispatcher.Dispatch(ctx, agent.SendOfferTask(l.URL, message))
	if err != nil {
		return false, model.NewAgentDispatchError(err.Error())
	}

	threadID := extractConversationThreadID(sendReport)
	if err := s.listings.MarkMessaged(ctx, l, threadID, offerAmount, now); err != nil {
		return false, err
	}

	conv := s.seedConversation(l, message, offerAmount, threadID, now)
	if err := s.store.SaveOne(ctx, conv); err != nil {
		return false, model.NewPersistFailedError(err.Error())
	}

	s.logger.Info("初回オファーを送信しました",
		slog.Int64("item_id", l.ItemID),
		slog.String("thread_id", threadID),
		slog.Int("offer_price", offerAmount),
		slog.String("grade", string(quote.Grade)),
	)
	return true, nil
}

// seedConversation はオファー送信直後の会話スレッドを初期登録する。
func (s *Service) seedConversation(l *model.Listing, message string, offerAmount int, threadID string, now time.Time) *model.Conversation {
	conv := &model.Conversation{
		ID:              uuid.New().String(),
		ConversationURL: conversationURLFor(threadID),
		MessageID:       threadID,
		SellerName:      l.SellerName,
		ProductName:     l.Title,
		Status:          model.StatusAwaitingResponse,
		OfferAmount:     offerAmount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	conv.AppendOurMessage(message, now)
	return conv
}

// extract は正規表現で1フィールドを取り出してサニタイズする。
func (s *Service) extract(report string, pattern *regexp.Regexp) string {
	m := pattern.FindStringSubmatch(report)
	if m == nil {
		return ""
	}
	return s.sanitizer.Sanitize(strings.TrimSpace(m[1]))
}

// extractConversationThreadID は送信レポートのマーカー区間から
// 会話スレッドIDを抽出する。
func extractConversationThreadID(report string) string {
	start := strings.Index(report, "CONVERSATION_URL_START")
	if start < 0 {
		return model.ExtractThreadID(report)
	}
	return model.ExtractThreadID(report[start+len("CONVERSATION_URL_START"):])
}

func conversationURLFor(threadID string) string {
	if threadID == "" {
		return ""
	}
	return "https://www.facebook.com/messages/t/" + threadID
}
