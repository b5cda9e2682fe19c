package negotiate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/dealman/internal/agent"
	"github.com/hitoshi/dealman/internal/conversation"
	"github.com/hitoshi/dealman/internal/metrics"
	"github.com/hitoshi/dealman/internal/model"
)

// InboxScanner は受信箱を巡回して管理外のスレッドを取り込む。
// オファー送信時の登録漏れや手動で始めた会話を回収するための補助パス。
type InboxScanner struct {
	dispatcher agent.Dispatcher
	store      *conversation.Store
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	now        func() time.Time
}

// NewInboxScanner はInboxScannerの新しいインスタンスを生成する。
func NewInboxScanner(
	dispatcher agent.Dispatcher,
	store *conversation.Store,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *InboxScanner {
	return &InboxScanner{
		dispatcher: dispatcher,
		store:      store,
		metrics:    collector,
		logger:     logger,
		now:        time.Now,
	}
}

// Sync は受信箱のスレッド一覧を取得し、未登録のスレッドをnew状態で登録する。
// 戻り値は新規登録したスレッド数。
func (s *InboxScanner) Sync(ctx context.Context) (int, error) {
	s.metrics.RecordAgentDispatch("inbox_scan")
	report, err := s.dispatcher.Dispatch(ctx, agent.InboxScanTask())
	if err != nil {
		return 0, model.NewAgentDispatchError(err.Error())
	}

	added := 0
	now := s.now()
	for _, entry := range parseInboxReport(report) {
		threadID := model.ExtractThreadID(entry.url)
		if threadID == "" {
			s.logger.Warn("受信箱エントリからスレッドIDを抽出できません",
				slog.String("url", entry.url),
			)
			continue
		}

		existing, err := s.store.FindByThreadID(ctx, threadID)
		if err != nil {
			return added, err
		}
		if existing != nil {
			continue
		}

		// プレビューを最終メッセージとして残しておくと、過去の実行で
		// 打ち切り定型文だけ送信済みのスレッドを巡回パスが修復できる。
		conv := &model.Conversation{
			ID:              uuid.New().String(),
			ConversationURL: "https://www.facebook.com/messages/t/" + threadID,
			MessageID:       threadID,
			SellerName:      entry.sellerName,
			Status:          model.StatusNew,
			LastMessage:     entry.preview,
			LastUpdated:     now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.SaveOne(ctx, conv); err != nil {
			return added, model.NewPersistFailedError(err.Error())
		}
		added++

		s.logger.Info("受信箱から新しいスレッドを登録しました",
			slog.String("thread_id", threadID),
			slog.String("seller_name", entry.sellerName),
		)
	}

	s.logger.Info("受信箱の巡回が完了しました", slog.Int("added_count", added))
	return added, nil
}

// inboxEntry は受信箱レポートの1行分。
type inboxEntry struct {
	url        string
	sellerName string
	preview    string
}

// parseInboxReport は "THREAD: url | seller | preview" 形式の行を抽出する。
func parseInboxReport(report string) []inboxEntry {
	var entries []inboxEntry
	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimSpace(line)
		if strings.EqualFold(line, "INBOX_END") {
			break
		}
		if !strings.HasPrefix(strings.ToUpper(line), "THREAD:") {
			continue
		}

		parts := strings.Split(line[len("THREAD:"):], "|")
		entry := inboxEntry{url: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			entry.sellerName = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			entry.preview = strings.TrimSpace(parts[2])
		}
		if entry.url != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}
