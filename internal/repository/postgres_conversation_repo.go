package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/dealman/internal/model"
)

// PostgresConversationRepo はPostgreSQLを使用した会話リポジトリ。
type PostgresConversationRepo struct {
	db *sql.DB
}

// NewPostgresConversationRepo はPostgresConversationRepoを生成する。
func NewPostgresConversationRepo(db *sql.DB) *PostgresConversationRepo {
	return &PostgresConversationRepo{db: db}
}

const conversationColumns = `id, conversation_url, message_id, seller_name, product_name,
	        status, last_message, last_updated, offer_amount, counter_offer,
	        final_price, created_at, updated_at`

func scanConversation(scanner interface{ Scan(...any) error }) (*model.Conversation, error) {
	conv := &model.Conversation{}
	var sellerName, productName, lastMessage sql.NullString
	var status string

	err := scanner.Scan(
		&conv.ID, &conv.ConversationURL, &conv.MessageID, &sellerName, &productName,
		&status, &lastMessage, &conv.LastUpdated, &conv.OfferAmount, &conv.CounterOffer,
		&conv.FinalPrice, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conv.SellerName = nullStringValue(sellerName)
	conv.ProductName = nullStringValue(productName)
	conv.LastMessage = nullStringValue(lastMessage)
	conv.Status = model.ConversationStatus(status)
	return conv, nil
}

// ListAll は全会話をメッセージ履歴込みで取得する。
func (r *PostgresConversationRepo) ListAll(ctx context.Context) ([]*model.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("会話一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var convs []*model.Conversation
	byID := make(map[string]*model.Conversation)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("会話行の読み取りに失敗しました: %w", err)
		}
		convs = append(convs, conv)
		byID[conv.ID] = conv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("会話一覧の走査に失敗しました: %w", err)
	}

	if err := r.attachMessages(ctx, byID); err != nil {
		return nil, err
	}
	return convs, nil
}

// attachMessages は指定会話群のメッセージ履歴を追記順で読み込む。
func (r *PostgresConversationRepo) attachMessages(ctx context.Context, byID map[string]*model.Conversation) error {
	if len(byID) == 0 {
		return nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT conversation_id, sent_at, sender, body
		 FROM conversation_messages ORDER BY conversation_id, id`)
	if err != nil {
		return fmt.Errorf("メッセージ履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var convID, sender, body string
		var sentAt time.Time
		if err := rows.Scan(&convID, &sentAt, &sender, &body); err != nil {
			return fmt.Errorf("メッセージ行の読み取りに失敗しました: %w", err)
		}
		if conv, ok := byID[convID]; ok {
			conv.MessageHistory = append(conv.MessageHistory, model.Message{
				Timestamp: sentAt,
				From:      model.MessageSender(sender),
				Body:      body,
			})
		}
	}
	return rows.Err()
}

// FindByMessageID は指定スレッドIDの会話を取得する。見つからない場合はnilを返す。
func (r *PostgresConversationRepo) FindByMessageID(ctx context.Context, messageID string) (*model.Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE message_id = $1`, messageID)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("スレッドIDによる会話の検索に失敗しました: %w", err)
	}

	byID := map[string]*model.Conversation{conv.ID: conv}
	if err := r.attachMessages(ctx, byID); err != nil {
		return nil, err
	}
	return conv, nil
}

// Upsert は会話をmessage_idをキーにUPSERTする。
// 既存行より古いlast_updatedの書き込みは無視される（後勝ち）。
// メッセージ履歴は現在の保存件数を超える分のみ追記する。
func (r *PostgresConversationRepo) Upsert(ctx context.Context, conv *model.Conversation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if err := upsertConversationTx(ctx, tx, conv); err != nil {
		return err
	}
	if err := recountSummaryTx(ctx, tx, time.Now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("会話の保存コミットに失敗しました: %w", err)
	}
	return nil
}

func upsertConversationTx(ctx context.Context, tx *sql.Tx, conv *model.Conversation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, conversation_url, message_id, seller_name, product_name,
		                            status, last_message, last_updated, offer_amount, counter_offer,
		                            final_price, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (message_id) DO UPDATE SET
		    conversation_url = EXCLUDED.conversation_url,
		    seller_name = EXCLUDED.seller_name,
		    product_name = EXCLUDED.product_name,
		    status = EXCLUDED.status,
		    last_message = EXCLUDED.last_message,
		    last_updated = EXCLUDED.last_updated,
		    offer_amount = EXCLUDED.offer_amount,
		    counter_offer = EXCLUDED.counter_offer,
		    final_price = EXCLUDED.final_price,
		    updated_at = EXCLUDED.updated_at
		 WHERE conversations.last_updated <= EXCLUDED.last_updated`,
		conv.ID, conv.ConversationURL, conv.MessageID,
		nullString(conv.SellerName), nullString(conv.ProductName),
		string(conv.Status), nullString(conv.LastMessage), conv.LastUpdated,
		conv.OfferAmount, conv.CounterOffer, conv.FinalPrice,
		conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("会話のUPSERTに失敗しました: %w", err)
	}

	// 永続化済みの行IDを取り直す（衝突時はEXCLUDED側のidは採用されない）
	var storedID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE message_id = $1`, conv.MessageID,
	).Scan(&storedID)
	if err != nil {
		return fmt.Errorf("保存済み会話IDの取得に失敗しました: %w", err)
	}

	// 履歴は追記専用: 保存済み件数を超える分だけINSERTする
	var stored int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_messages WHERE conversation_id = $1`, storedID,
	).Scan(&stored)
	if err != nil {
		return fmt.Errorf("メッセージ件数の取得に失敗しました: %w", err)
	}

	for i := stored; i < len(conv.MessageHistory); i++ {
		m := conv.MessageHistory[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_messages (conversation_id, sent_at, sender, body)
			 VALUES ($1, $2, $3, $4)`,
			storedID, m.Timestamp, string(m.From), m.Body,
		)
		if err != nil {
			return fmt.Errorf("メッセージの追記に失敗しました: %w", err)
		}
	}
	return nil
}

// recountSummaryTx はサマリーカウンターを再計算して書き込む。
func recountSummaryTx(ctx context.Context, tx *sql.Tx, now time.Time) error {
	terminal := terminalStatusList()
	_, err := tx.ExecContext(ctx,
		`UPDATE conversation_summary SET
		    total_conversations = (SELECT COUNT(*) FROM conversations),
		    active_conversations = (SELECT COUNT(*) FROM conversations WHERE status <> ALL($1)),
		    closed_conversations = (SELECT COUNT(*) FROM conversations WHERE status = ANY($1)),
		    deals_closed = (SELECT COUNT(*) FROM conversations WHERE status = $2),
		    last_updated = $3
		 WHERE id = 1`,
		pq.Array(terminal), string(model.StatusDealClosed), now,
	)
	if err != nil {
		return fmt.Errorf("サマリーの更新に失敗しました: %w", err)
	}
	return nil
}

// ReplaceAll は重複排除済みの会話セット全体をアトミックに書き込む。
func (r *PostgresConversationRepo) ReplaceAll(ctx context.Context, set *model.ConversationSet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	for _, conv := range set.Conversations {
		if err := upsertConversationTx(ctx, tx, conv); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversation_summary SET
		    total_conversations = $1, active_conversations = $2,
		    closed_conversations = $3, deals_closed = $4, last_updated = $5
		 WHERE id = 1`,
		set.Summary.Total, set.Summary.Active,
		set.Summary.Closed, set.Summary.DealsClosed, set.Summary.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("サマリーの書き込みに失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("会話セットの保存コミットに失敗しました: %w", err)
	}
	return nil
}

// GetSummary は保存済みのサマリーブロックを取得する。
func (r *PostgresConversationRepo) GetSummary(ctx context.Context) (*model.Summary, error) {
	s := &model.Summary{}
	err := r.db.QueryRowContext(ctx,
		`SELECT total_conversations, active_conversations, closed_conversations,
		        deals_closed, last_updated
		 FROM conversation_summary WHERE id = 1`,
	).Scan(&s.Total, &s.Active, &s.Closed, &s.DealsClosed, &s.LastUpdated)
	if err == sql.ErrNoRows {
		return &model.Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("サマリーの取得に失敗しました: %w", err)
	}
	return s, nil
}

// ListStale は指定時刻より前からawaiting_responseのまま動きがない会話を返す。
func (r *PostgresConversationRepo) ListStale(ctx context.Context, before time.Time) ([]*model.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE status = $1 AND last_updated < $2`,
		string(model.StatusAwaitingResponse), before)
	if err != nil {
		return nil, fmt.Errorf("停滞会話の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var convs []*model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("会話行の読み取りに失敗しました: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// terminalStatusList は終端状態の文字列配列を返す（pqのANY/ALL用）。
func terminalStatusList() []string {
	statuses := []model.ConversationStatus{
		model.StatusDealPending, model.StatusDealClosed, model.StatusNeedsHelp,
		model.StatusClosed, model.StatusItemSold, model.StatusRejected,
		model.StatusNoResponseFinal,
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
