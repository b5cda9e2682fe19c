// Package handler は運用状況確認用の読み取り専用HTTP APIを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dealman/internal/middleware"
	"github.com/hitoshi/dealman/internal/model"
)

// ConversationReader は会話ハンドラーが必要とするストア操作。
type ConversationReader interface {
	// Load は全会話と統計を読み込む。
	Load(ctx context.Context) *model.ConversationSet
	// FindByThreadID はスレッドIDで会話を検索する。見つからない場合はnil。
	FindByThreadID(ctx context.Context, threadID string) (*model.Conversation, error)
	// Summary は保存済みの統計ブロックを取得する。
	Summary(ctx context.Context) (*model.Summary, error)
}

// ConversationHandler は会話スレッドの読み取りAPIハンドラー。
type ConversationHandler struct {
	store ConversationReader
}

// NewConversationHandler はConversationHandlerを生成する。
func NewConversationHandler(store ConversationReader) *ConversationHandler {
	return &ConversationHandler{store: store}
}

// messageResponse はメッセージ履歴1件のAPIレスポンス。
type messageResponse struct {
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from"`
	Body      string    `json:"body"`
}

// conversationResponse は会話1件のAPIレスポンス。
type conversationResponse struct {
	ID              string            `json:"id"`
	ThreadID        string            `json:"thread_id"`
	ConversationURL string            `json:"conversation_url"`
	SellerName      string            `json:"seller_name"`
	ProductName     string            `json:"product_name"`
	Status          string            `json:"status"`
	LastMessage     string            `json:"last_message"`
	LastUpdated     time.Time         `json:"last_updated"`
	OfferAmount     int               `json:"offer_amount"`
	CounterOffer    int               `json:"counter_offer,omitempty"`
	FinalPrice      int               `json:"final_price,omitempty"`
	MessageHistory  []messageResponse `json:"message_history,omitempty"`
}

// summaryResponse は統計ブロックのAPIレスポンス。
type summaryResponse struct {
	Total       int       `json:"total"`
	Active      int       `json:"active"`
	Closed      int       `json:"closed"`
	DealsClosed int       `json:"deals_closed"`
	LastUpdated time.Time `json:"last_updated"`
}

// ListConversations は会話一覧を返す。
// GET /api/conversations?status=negotiating
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")

	set := h.store.Load(r.Context())

	resp := make([]conversationResponse, 0, len(set.Conversations))
	for _, conv := range set.Conversations {
		if statusFilter != "" && string(conv.Status) != statusFilter {
			continue
		}
		resp = append(resp, toConversationResponse(conv, false))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetConversation は会話1件をメッセージ履歴付きで返す。
// GET /api/conversations/{threadID}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	conv, err := h.store.FindByThreadID(r.Context(), threadID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if conv == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewConversationNotFoundError(threadID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toConversationResponse(conv, true))
}

// GetSummary は会話セットの統計を返す。
// GET /api/summary
func (h *ConversationHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summary(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaryResponse{
		Total:       summary.Total,
		Active:      summary.Active,
		Closed:      summary.Closed,
		DealsClosed: summary.DealsClosed,
		LastUpdated: summary.LastUpdated,
	})
}

// --- ヘルパー関数 ---

// toConversationResponse はmodel.ConversationからAPIレスポンスに変換する。
// withHistoryがtrueの場合はメッセージ履歴を含める。
func toConversationResponse(conv *model.Conversation, withHistory bool) conversationResponse {
	resp := conversationResponse{
		ID:              conv.ID,
		ThreadID:        conv.ThreadID(),
		ConversationURL: conv.ConversationURL,
		SellerName:      conv.SellerName,
		ProductName:     conv.ProductName,
		Status:          string(conv.Status),
		LastMessage:     conv.LastMessage,
		LastUpdated:     conv.LastUpdated,
		OfferAmount:     conv.OfferAmount,
		CounterOffer:    conv.CounterOffer,
		FinalPrice:      conv.FinalPrice,
	}
	if withHistory {
		resp.MessageHistory = make([]messageResponse, 0, len(conv.MessageHistory))
		for _, m := range conv.MessageHistory {
			resp.MessageHistory = append(resp.MessageHistory, messageResponse{
				Timestamp: m.Timestamp,
				From:      string(m.From),
				Body:      m.Body,
			})
		}
	}
	return resp
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var autoErr *model.AutomationError
	if errors.As(err, &autoErr) {
		middleware.WriteErrorResponse(w, mapAutomationErrorToHTTPStatus(autoErr), autoErr)
		return
	}

	// AutomationError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAutomationErrorToHTTPStatus はエラーコードからHTTPステータスコードにマッピングする。
func mapAutomationErrorToHTTPStatus(autoErr *model.AutomationError) int {
	switch autoErr.Code {
	case model.ErrCodeConversationLost:
		return http.StatusNotFound
	case model.ErrCodeInvalidThreadURL:
		return http.StatusBadRequest
	case model.ErrCodeAgentDispatch:
		return http.StatusBadGateway
	case model.ErrCodePersistFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
