package listing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/dealman/internal/model"
)

// mockListingRepo はListingRepositoryのモック。
type mockListingRepo struct {
	listAllFunc       func(ctx context.Context) ([]*model.Listing, error)
	listUnmessagedFunc func(ctx context.Context, limit int) ([]*model.Listing, error)
	findByItemIDFunc  func(ctx context.Context, itemID int64) (*model.Listing, error)
	saveAllFunc       func(ctx context.Context, listings []*model.Listing) error
	updateFunc        func(ctx context.Context, l *model.Listing) error
}

func (m *mockListingRepo) ListAll(ctx context.Context) ([]*model.Listing, error) {
	if m.listAllFunc != nil {
		return m.listAllFunc(ctx)
	}
	return nil, nil
}

func (m *mockListingRepo) ListUnmessaged(ctx context.Context, limit int) ([]*model.Listing, error) {
	if m.listUnmessagedFunc != nil {
		return m.listUnmessagedFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockListingRepo) FindByItemID(ctx context.Context, itemID int64) (*model.Listing, error) {
	if m.findByItemIDFunc != nil {
		return m.findByItemIDFunc(ctx, itemID)
	}
	return nil, nil
}

func (m *mockListingRepo) SaveAll(ctx context.Context, listings []*model.Listing) error {
	if m.saveAllFunc != nil {
		return m.saveAllFunc(ctx, listings)
	}
	return nil
}

func (m *mockListingRepo) Update(ctx context.Context, l *model.Listing) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, l)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestService_Import(t *testing.T) {
	existing := []*model.Listing{
		{ItemID: 111, URL: "https://www.facebook.com/marketplace/item/111", Title: "iPhone 13", Messaged: true},
	}

	var saved []*model.Listing
	repo := &mockListingRepo{
		listAllFunc: func(ctx context.Context) ([]*model.Listing, error) {
			return existing, nil
		},
		saveAllFunc: func(ctx context.Context, listings []*model.Listing) error {
			saved = listings
			return nil
		},
	}

	s := NewService(repo, discardLogger())
	added, err := s.Import(context.Background(), []*model.Listing{
		// 既存と同一出品（クエリ違い）
		{URL: "https://facebook.com/marketplace/item/111/?ref=feed", SellerName: "John"},
		// 新規出品
		{URL: "https://www.facebook.com/marketplace/item/222", Title: "iPhone 12"},
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
	if len(saved) != 2 {
		t.Fatalf("保存件数 = %d, want 2", len(saved))
	}

	var dup *model.Listing
	for _, l := range saved {
		if l.ItemID == 111 {
			dup = l
		}
	}
	if dup == nil {
		t.Fatal("ItemID=111が見つからない")
	}
	if !dup.Messaged {
		t.Error("既存のMessagedフラグが維持されるべき")
	}
	if dup.SellerName != "John" {
		t.Errorf("SellerNameが補完されていない: %q", dup.SellerName)
	}
}

func TestService_MarkMessaged(t *testing.T) {
	var updated *model.Listing
	repo := &mockListingRepo{
		updateFunc: func(ctx context.Context, l *model.Listing) error {
			updated = l
			return nil
		},
	}

	s := NewService(repo, discardLogger())
	l := &model.Listing{ItemID: 111}
	now := time.Now()

	if err := s.MarkMessaged(context.Background(), l, "555", 280, now); err != nil {
		t.Fatalf("MarkMessaged() error = %v", err)
	}
	if updated == nil {
		t.Fatal("Updateが呼ばれていない")
	}
	if !updated.Messaged || updated.MessageID != "555" || updated.OfferPrice != 280 {
		t.Errorf("updated = %+v", updated)
	}
	if updated.MessagedAt == nil || !updated.MessagedAt.Equal(now) {
		t.Errorf("MessagedAt = %v", updated.MessagedAt)
	}
}

func TestService_MarkIrrelevant(t *testing.T) {
	repo := &mockListingRepo{}
	s := NewService(repo, discardLogger())

	l := &model.Listing{ItemID: 111}
	if err := s.MarkIrrelevant(context.Background(), l, time.Now()); err != nil {
		t.Fatalf("MarkIrrelevant() error = %v", err)
	}
	if l.Relevant == nil || *l.Relevant {
		t.Errorf("Relevant = %v, want false", l.Relevant)
	}
}
