package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/dealman/internal/model"
)

// mockGuard はSSRFGuardServiceのモック。テストサーバーへの接続を許可する。
type mockGuard struct {
	validateURLFunc func(rawURL string) error
}

func (m *mockGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockGuard) ValidateURL(rawURL string) error {
	if m.validateURLFunc != nil {
		return m.validateURLFunc(rawURL)
	}
	return nil
}

// mockPricingRepo はPricingRepositoryのモック。
type mockPricingRepo struct {
	listAllFunc   func(ctx context.Context) ([]*model.PriceEntry, error)
	upsertAllFunc func(ctx context.Context, entries []*model.PriceEntry) error
}

func (m *mockPricingRepo) ListAll(ctx context.Context) ([]*model.PriceEntry, error) {
	if m.listAllFunc != nil {
		return m.listAllFunc(ctx)
	}
	return nil, nil
}

func (m *mockPricingRepo) UpsertAll(ctx context.Context, entries []*model.PriceEntry) error {
	if m.upsertAllFunc != nil {
		return m.upsertAllFunc(ctx, entries)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestFetcher_Refresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"model": "iPhone 15 Pro unlocked", "grade_b": 600, "grade_c": 480},
			{"model": "", "grade_b": 100}
		]`))
	}))
	defer server.Close()

	var saved []*model.PriceEntry
	repo := &mockPricingRepo{
		upsertAllFunc: func(ctx context.Context, entries []*model.PriceEntry) error {
			saved = entries
			return nil
		},
	}

	f := NewFetcher(&mockGuard{}, repo, discardLogger(), server.URL, 20, 5*time.Second)
	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// モデル名が空のエントリは除外される
	if len(saved) != 1 {
		t.Fatalf("保存エントリ数 = %d, want 1", len(saved))
	}
	// 600の20%マージンで480
	if saved[0].GradeB != 480 {
		t.Errorf("GradeB = %d, want 480", saved[0].GradeB)
	}
	if saved[0].GradeC != 380 {
		t.Errorf("GradeC = %d, want 380", saved[0].GradeC)
	}
}

func TestFetcher_Refresh_URLValidationFails(t *testing.T) {
	guard := &mockGuard{
		validateURLFunc: func(string) error {
			return errors.New("ブロック対象ネットワークへのアクセスです")
		},
	}

	f := NewFetcher(guard, &mockPricingRepo{}, discardLogger(), "http://169.254.169.254/", 20, time.Second)
	if err := f.Refresh(context.Background()); err == nil {
		t.Error("URL検証失敗時はエラーを返すべき")
	}
}

func TestFetcher_Refresh_EmptySourceURLSkips(t *testing.T) {
	f := NewFetcher(&mockGuard{}, &mockPricingRepo{}, discardLogger(), "", 20, time.Second)
	if err := f.Refresh(context.Background()); err != nil {
		t.Errorf("URL未設定時はスキップしてnilを返すべき: %v", err)
	}
}

func TestService_BasePriceFor(t *testing.T) {
	repo := &mockPricingRepo{
		listAllFunc: func(ctx context.Context) ([]*model.PriceEntry, error) {
			return []*model.PriceEntry{
				{Model: "iPhone 13 128GB unlocked", GradeB: 250},
			}, nil
		},
	}

	s := NewService(repo, discardLogger())
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	price, ok := s.BasePriceFor("iPhone 13 128GB")
	if !ok || price != 250 {
		t.Errorf("BasePriceFor = %d, %v, want 250, true", price, ok)
	}

	if _, ok := s.BasePriceFor("washing machine"); ok {
		t.Error("適合モデルなしでok=trueを返した")
	}
}
