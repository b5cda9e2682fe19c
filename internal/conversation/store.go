// Package conversation は交渉スレッドの保存と自動処理を提供する。
// Storeが永続化の境界を、Machineが1スレッド分の処理パイプラインを担当する。
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/dealman/internal/model"
	"github.com/hitoshi/dealman/internal/repository"
)

// Store は会話データの読み書きを提供する。
// 読み込み失敗時は空セットに退避した上でストレージの再作成を試みる。
// 書き込みはスレッドIDによる重複排除とサマリー再計算を伴う。
type Store struct {
	repo   repository.ConversationRepository
	logger *slog.Logger
	// recreate は破損したストレージの再作成処理。通常はマイグレーション実行。
	recreate func(ctx context.Context) error
}

// NewStore はStoreの新しいインスタンスを生成する。
// recreateがnilの場合、読み込み失敗時の再作成は行わない。
func NewStore(repo repository.ConversationRepository, logger *slog.Logger, recreate func(ctx context.Context) error) *Store {
	return &Store{
		repo:     repo,
		logger:   logger,
		recreate: recreate,
	}
}

// Load は全会話とサマリーを読み込む。
// 読み込みに失敗した場合はストレージの再作成を試みた上で空セットを返す。
// 処理を止めないことを優先し、エラーは返さない。
func (s *Store) Load(ctx context.Context) *model.ConversationSet {
	conversations, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error("会話データの読み込みに失敗したため空セットで続行します",
			slog.String("error", err.Error()),
		)
		if s.recreate != nil {
			if rerr := s.recreate(ctx); rerr != nil {
				s.logger.Error("ストレージの再作成に失敗しました",
					slog.String("error", rerr.Error()),
				)
			}
		}
		set := &model.ConversationSet{}
		set.Recount(time.Now())
		return set
	}

	set := &model.ConversationSet{Conversations: conversations}
	set.Recount(time.Now())
	return set
}

// Save は会話セット全体を重複排除してアトミックに保存する。
// サマリーは保存時点の内容から再計算される。
func (s *Store) Save(ctx context.Context, set *model.ConversationSet) error {
	set.Conversations = Dedup(set.Conversations)
	set.Recount(time.Now())

	if err := s.repo.ReplaceAll(ctx, set); err != nil {
		return fmt.Errorf("会話セットの保存に失敗しました: %w", err)
	}
	return nil
}

// SaveOne は1会話を保存する。失敗はそのラウンドの処理エラーとして
// 呼び出し元に伝播する。
func (s *Store) SaveOne(ctx context.Context, conv *model.Conversation) error {
	if err := s.repo.Upsert(ctx, conv); err != nil {
		return fmt.Errorf("会話の保存に失敗しました: %w", err)
	}
	return nil
}

// FindByThreadID はスレッドIDで会話を検索する。
// 保存済みmessage_idでの検索に失敗した場合、過去の不正な書き込みに備えて
// 各会話のURLから導出したIDとの照合にフォールバックする。
// 見つからない場合はnilを返す。
func (s *Store) FindByThreadID(ctx context.Context, threadID string) (*model.Conversation, error) {
	if threadID == "" {
		return nil, nil
	}

	conv, err := s.repo.FindByMessageID(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("会話の検索に失敗しました: %w", err)
	}
	if conv != nil {
		return conv, nil
	}

	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("会話の検索に失敗しました: %w", err)
	}
	for _, c := range all {
		if c.ThreadID() == threadID {
			return c, nil
		}
	}
	return nil, nil
}

// ListStale は指定時刻より前からawaiting_responseのまま動きがない会話を返す。
func (s *Store) ListStale(ctx context.Context, before time.Time) ([]*model.Conversation, error) {
	return s.repo.ListStale(ctx, before)
}

// Summary は保存済みのサマリーブロックを取得する。
func (s *Store) Summary(ctx context.Context) (*model.Summary, error) {
	return s.repo.GetSummary(ctx)
}

// Dedup は会話リストをスレッドIDで重複排除する。
// 同一スレッドの重複はlast_updatedが新しいレコードが残る。
// スレッドIDが導出できない会話はそのまま残す。
func Dedup(conversations []*model.Conversation) []*model.Conversation {
	byThread := make(map[string]*model.Conversation)
	var order []string
	var unidentified []*model.Conversation

	for _, c := range conversations {
		id := c.ThreadID()
		if id == "" {
			unidentified = append(unidentified, c)
			continue
		}

		existing, ok := byThread[id]
		if !ok {
			byThread[id] = c
			order = append(order, id)
			continue
		}
		if c.LastUpdated.After(existing.LastUpdated) {
			byThread[id] = c
		}
	}

	deduped := make([]*model.Conversation, 0, len(order)+len(unidentified))
	for _, id := range order {
		deduped = append(deduped, byThread[id])
	}
	return append(deduped, unidentified...)
}
