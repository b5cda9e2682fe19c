// Package notify は取引成立・介入要求の外部通知を提供する。
// 通知先はWebhook URLとして設定され、未設定の場合は何もしない実装に
// 差し替えられる。通知の失敗は交渉処理を止めない。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/dealman/internal/model"
)

// Notifier は交渉イベントの通知機能のインターフェースを定義する。
type Notifier interface {
	// NotifyDealPending は取引成立（deal_pendingへの遷移）を通知する。
	// 同一会話に対して2回以上呼んではならない。
	NotifyDealPending(ctx context.Context, conv *model.Conversation, finalPrice int) error

	// NotifyNeedsHelp は人間の介入要求を通知する。
	NotifyNeedsHelp(ctx context.Context, conv *model.Conversation, reason string) error
}

// webhookPayload はWebhook通知のリクエストボディ。
type webhookPayload struct {
	Event           string `json:"event"`
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
	SellerName      string `json:"seller_name"`
	ProductName     string `json:"product_name"`
	FinalPrice      int    `json:"final_price,omitempty"`
	Reason          string `json:"reason,omitempty"`
	LastMessage     string `json:"last_message,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

// WebhookNotifier はWebhook URLへPOSTするNotifier実装。
type WebhookNotifier struct {
	httpClient *http.Client
	logger     *slog.Logger
	webhookURL string
}

// NewWebhookNotifier はWebhookNotifierの新しいインスタンスを生成する。
func NewWebhookNotifier(httpClient *http.Client, logger *slog.Logger, webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: httpClient,
		logger:     logger,
		webhookURL: webhookURL,
	}
}

// NotifyDealPending は取引成立を通知する。
func (n *WebhookNotifier) NotifyDealPending(ctx context.Context, conv *model.Conversation, finalPrice int) error {
	n.logger.Info("取引成立を通知します",
		slog.String("conversation_id", conv.ID),
		slog.String("seller_name", conv.SellerName),
		slog.Int("final_price", finalPrice),
	)
	return n.post(ctx, webhookPayload{
		Event:           "deal_pending",
		ConversationID:  conv.ID,
		ConversationURL: conv.ConversationURL,
		SellerName:      conv.SellerName,
		ProductName:     conv.ProductName,
		FinalPrice:      finalPrice,
		OccurredAt:      time.Now().Format(time.RFC3339),
	})
}

// NotifyNeedsHelp は人間の介入要求を通知する。
// 判断材料として出品者の最新メッセージを含める。
func (n *WebhookNotifier) NotifyNeedsHelp(ctx context.Context, conv *model.Conversation, reason string) error {
	n.logger.Warn("人間の介入要求を通知します",
		slog.String("conversation_id", conv.ID),
		slog.String("reason", reason),
	)
	return n.post(ctx, webhookPayload{
		Event:           "needs_help",
		ConversationID:  conv.ID,
		ConversationURL: conv.ConversationURL,
		SellerName:      conv.SellerName,
		ProductName:     conv.ProductName,
		Reason:          reason,
		LastMessage:     conv.LastSellerMessage(),
		OccurredAt:      time.Now().Format(time.RFC3339),
	})
}

func (n *WebhookNotifier) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("通知ペイロードのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("Webhook通知の送信に失敗しました",
			slog.String("error", err.Error()),
			slog.String("event", payload.Event),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		n.logger.Error("Webhook通知がエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("event", payload.Event),
		)
		return fmt.Errorf("Webhook通知がステータス %d を返しました", resp.StatusCode)
	}
	return nil
}

// NopNotifier は何もしないNotifier実装。Webhook URL未設定時に使う。
type NopNotifier struct{}

// NewNopNotifier はNopNotifierを生成する。
func NewNopNotifier() *NopNotifier {
	return &NopNotifier{}
}

func (n *NopNotifier) NotifyDealPending(ctx context.Context, conv *model.Conversation, finalPrice int) error {
	return nil
}

func (n *NopNotifier) NotifyNeedsHelp(ctx context.Context, conv *model.Conversation, reason string) error {
	return nil
}
