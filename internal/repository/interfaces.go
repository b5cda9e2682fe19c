// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/dealman/internal/model"
)

// ConversationRepository は会話データの永続化インターフェース。
type ConversationRepository interface {
	// ListAll は全会話をメッセージ履歴込みで取得する。
	ListAll(ctx context.Context) ([]*model.Conversation, error)

	// FindByMessageID は指定スレッドIDの会話を取得する。見つからない場合はnilを返す。
	FindByMessageID(ctx context.Context, messageID string) (*model.Conversation, error)

	// Upsert は会話をmessage_idをキーにUPSERTする。
	// 既存行より古いlast_updatedを持つ書き込みは既存行を上書きしない（後勝ち）。
	// メッセージ履歴は追記のみ行い、既存エントリは書き換えない。
	// サマリーカウンターの再計算まで同一トランザクションで行う。
	Upsert(ctx context.Context, conv *model.Conversation) error

	// ReplaceAll は重複排除済みの会話セット全体をアトミックに書き込む。
	// サマリーブロックも同一トランザクションで更新する。
	ReplaceAll(ctx context.Context, set *model.ConversationSet) error

	// GetSummary は保存済みのサマリーブロックを取得する。
	GetSummary(ctx context.Context) (*model.Summary, error)

	// ListStale は指定時刻より前からawaiting_responseのまま動きがない会話を返す。
	ListStale(ctx context.Context, before time.Time) ([]*model.Conversation, error)
}

// ListingRepository は出品データの永続化インターフェース。
type ListingRepository interface {
	// ListAll は全出品を取得する。
	ListAll(ctx context.Context) ([]*model.Listing, error)

	// ListUnmessaged は未オファーかつ有効な出品を取得する。
	// unavailable=trueまたはrelevant=falseの出品は除外する。
	ListUnmessaged(ctx context.Context, limit int) ([]*model.Listing, error)

	// FindByItemID は指定IDの出品を取得する。見つからない場合はnilを返す。
	FindByItemID(ctx context.Context, itemID int64) (*model.Listing, error)

	// SaveAll はマージ済み出品セット全体をアトミックに書き込む。
	SaveAll(ctx context.Context, listings []*model.Listing) error

	// Update は出品のステータスフィールドを更新する。
	Update(ctx context.Context, listing *model.Listing) error
}

// PricingRepository は買取価格テーブルの永続化インターフェース。
type PricingRepository interface {
	// ListAll は全モデルの価格エントリを取得する。
	ListAll(ctx context.Context) ([]*model.PriceEntry, error)

	// UpsertAll は価格エントリをモデル名をキーに一括UPSERTする。
	UpsertAll(ctx context.Context, entries []*model.PriceEntry) error
}
