package listing

import (
	"testing"
	"time"

	"github.com/hitoshi/dealman/internal/model"
)

func TestMerge_Dedup(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)

	listings := []*model.Listing{
		{
			URL:       "https://www.facebook.com/marketplace/item/111",
			Title:     "iPhone 13 128GB",
			Messaged:  true,
			MessagedAt: &t2,
			CreatedAt: t1,
		},
		{
			URL:        "https://facebook.com/marketplace/item/111/?ref=search",
			SellerName: "John",
			MessagedAt: &t1,
			MessageID:  "9876",
			OfferPrice: 250,
			CreatedAt:  t2,
		},
		{
			URL:       "https://www.facebook.com/marketplace/item/222",
			Title:     "iPhone 12",
			CreatedAt: t2,
		},
	}

	merged := Merge(listings)
	if len(merged) != 2 {
		t.Fatalf("マージ後の件数 = %d, want 2", len(merged))
	}

	var first *model.Listing
	for _, l := range merged {
		if l.ItemID == 111 {
			first = l
		}
	}
	if first == nil {
		t.Fatal("ItemID=111のレコードが見つからない")
	}

	// messagedは論理和
	if !first.Messaged {
		t.Error("Messagedは論理和でtrueになるべき")
	}
	// messaged_atは最も早い値
	if first.MessagedAt == nil || !first.MessagedAt.Equal(t1) {
		t.Errorf("MessagedAt = %v, want %v", first.MessagedAt, t1)
	}
	// MessageID保持側を土台にしつつ空フィールドは補完される
	if first.MessageID != "9876" {
		t.Errorf("MessageID = %q", first.MessageID)
	}
	if first.Title != "iPhone 13 128GB" {
		t.Errorf("Titleが補完されていない: %q", first.Title)
	}
	if first.SellerName != "John" {
		t.Errorf("SellerName = %q", first.SellerName)
	}
	if first.OfferPrice != 250 {
		t.Errorf("OfferPrice = %d", first.OfferPrice)
	}
	// created_atは早い方
	if !first.CreatedAt.Equal(t1) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, t1)
	}
}

// 表示用連番はマージ後に1から振り直される
func TestMerge_AssignsSequentialDisplayIDs(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	listings := []*model.Listing{
		{URL: "https://www.facebook.com/marketplace/item/3", DisplayID: 99, CreatedAt: base.Add(2 * time.Hour)},
		{URL: "https://www.facebook.com/marketplace/item/1", DisplayID: 42, CreatedAt: base},
		{URL: "https://www.facebook.com/marketplace/item/2", CreatedAt: base.Add(time.Hour)},
	}

	merged := Merge(listings)
	if len(merged) != 3 {
		t.Fatalf("件数 = %d", len(merged))
	}
	for i, l := range merged {
		if l.DisplayID != i+1 {
			t.Errorf("merged[%d].DisplayID = %d, want %d", i, l.DisplayID, i+1)
		}
	}
	// 発見順（created_at昇順）に並ぶ
	if merged[0].ItemID != 1 || merged[1].ItemID != 2 || merged[2].ItemID != 3 {
		t.Errorf("並び順が不正: %d, %d, %d", merged[0].ItemID, merged[1].ItemID, merged[2].ItemID)
	}
}

// 同一入力を2回マージしても結果が変わらないこと（冪等性）を検証
func TestMerge_Idempotent(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	listings := []*model.Listing{
		{URL: "https://www.facebook.com/marketplace/item/111", Title: "iPhone 13", CreatedAt: t1},
		{URL: "https://facebook.com/marketplace/item/111", SellerName: "John", CreatedAt: t1},
	}

	once := Merge(listings)
	twice := Merge(once)

	if len(once) != 1 || len(twice) != 1 {
		t.Fatalf("件数 = %d, %d, want 1, 1", len(once), len(twice))
	}
	if *once[0] != *twice[0] {
		t.Errorf("再マージで結果が変化した: %+v != %+v", once[0], twice[0])
	}
}

func TestMerge_UnavailableIsSticky(t *testing.T) {
	listings := []*model.Listing{
		{URL: "https://www.facebook.com/marketplace/item/5", Unavailable: true},
		{URL: "https://www.facebook.com/marketplace/item/5", Title: "iPhone"},
	}

	merged := Merge(listings)
	if len(merged) != 1 || !merged[0].Unavailable {
		t.Errorf("Unavailableは論理和で維持されるべき: %+v", merged[0])
	}
}
