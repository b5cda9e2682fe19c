package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/dealman/internal/model"
)

// mockConversationReader はConversationReaderのモック。
type mockConversationReader struct {
	set         *model.ConversationSet
	findFunc    func(ctx context.Context, threadID string) (*model.Conversation, error)
	summaryFunc func(ctx context.Context) (*model.Summary, error)
}

func (m *mockConversationReader) Load(ctx context.Context) *model.ConversationSet {
	if m.set == nil {
		return &model.ConversationSet{}
	}
	return m.set
}

func (m *mockConversationReader) FindByThreadID(ctx context.Context, threadID string) (*model.Conversation, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, threadID)
	}
	return nil, nil
}

func (m *mockConversationReader) Summary(ctx context.Context) (*model.Summary, error) {
	if m.summaryFunc != nil {
		return m.summaryFunc(ctx)
	}
	return &model.Summary{}, nil
}

// mockListingReader はListingReaderのモック。
type mockListingReader struct {
	listings []*model.Listing
	err      error
}

func (m *mockListingReader) ListAll(ctx context.Context) ([]*model.Listing, error) {
	return m.listings, m.err
}

func discardTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestRouter(conv *mockConversationReader, listings *mockListingReader) http.Handler {
	return NewRouter(&RouterDeps{
		Logger:            discardTestLogger(),
		ConversationStore: conv,
		ListingRepo:       listings,
	})
}

func TestListConversations(t *testing.T) {
	reader := &mockConversationReader{set: &model.ConversationSet{
		Conversations: []*model.Conversation{
			{ID: "a", MessageID: "111", Status: model.StatusNegotiating, OfferAmount: 280},
			{ID: "b", MessageID: "222", Status: model.StatusDealPending, FinalPrice: 300},
		},
	}}
	router := newTestRouter(reader, &mockListingReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp []conversationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("件数 = %d, want 2", len(resp))
	}
	if resp[0].ThreadID != "111" || resp[0].OfferAmount != 280 {
		t.Errorf("resp[0] = %+v", resp[0])
	}
	// 一覧ではメッセージ履歴を含めない
	if resp[0].MessageHistory != nil {
		t.Error("一覧レスポンスに履歴が含まれている")
	}
}

func TestListConversations_StatusFilter(t *testing.T) {
	reader := &mockConversationReader{set: &model.ConversationSet{
		Conversations: []*model.Conversation{
			{ID: "a", MessageID: "111", Status: model.StatusNegotiating},
			{ID: "b", MessageID: "222", Status: model.StatusNeedsHelp},
		},
	}}
	router := newTestRouter(reader, &mockListingReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations?status=needs_help", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp []conversationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if len(resp) != 1 || resp[0].Status != "needs_help" {
		t.Errorf("resp = %+v, want needs_helpのみ", resp)
	}
}

func TestGetConversation(t *testing.T) {
	conv := &model.Conversation{
		ID:        "a",
		MessageID: "111",
		Status:    model.StatusNegotiating,
		MessageHistory: []model.Message{
			{Timestamp: time.Now(), From: model.SenderUs, Body: "Hi I can do $280 cash for it"},
			{Timestamp: time.Now(), From: model.SenderSeller, Body: "Can you do 350?"},
		},
	}
	reader := &mockConversationReader{
		findFunc: func(ctx context.Context, threadID string) (*model.Conversation, error) {
			if threadID == "111" {
				return conv, nil
			}
			return nil, nil
		},
	}
	router := newTestRouter(reader, &mockListingReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/111", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp conversationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	// 詳細ではメッセージ履歴を含める
	if len(resp.MessageHistory) != 2 {
		t.Errorf("履歴件数 = %d, want 2", len(resp.MessageHistory))
	}
	if resp.MessageHistory[1].From != "seller" {
		t.Errorf("From = %q, want seller", resp.MessageHistory[1].From)
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	router := newTestRouter(&mockConversationReader{}, &mockListingReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if resp["code"] != model.ErrCodeConversationLost {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeConversationLost)
	}
}

func TestGetSummary(t *testing.T) {
	reader := &mockConversationReader{
		summaryFunc: func(ctx context.Context) (*model.Summary, error) {
			return &model.Summary{Total: 5, Active: 2, Closed: 3, DealsClosed: 1}, nil
		},
	}
	router := newTestRouter(reader, &mockListingReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp summaryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if resp.Total != 5 || resp.Active != 2 || resp.DealsClosed != 1 {
		t.Errorf("summary = %+v", resp)
	}
}

func TestGetSummary_StoreError(t *testing.T) {
	reader := &mockConversationReader{
		summaryFunc: func(ctx context.Context) (*model.Summary, error) {
			return nil, errors.New("接続エラー")
		},
	}
	router := newTestRouter(reader, &mockListingReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
