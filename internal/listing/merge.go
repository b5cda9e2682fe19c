package listing

import (
	"sort"

	"github.com/hitoshi/dealman/internal/model"
)

// Merge は出品リストをアイテムIDで重複排除する。
// 同一IDのレコードは1件に統合される:
//   - Messagedは論理和。一度オファーを送った事実は消えない。
//   - MessagedAtは最も早い非nil値。
//   - Unavailableは論理和。
//   - それ以外のフィールドは情報量の多いレコードを土台に、
//     空のフィールドだけをもう一方から補完する。MessageIDを持つ
//     レコードは会話と紐付いているため優先される。
//
// 統合後、表示用の連番DisplayIDを1から振り直す。
// アイテムIDが抽出できないレコードはそのまま残す。
func Merge(listings []*model.Listing) []*model.Listing {
	byID := make(map[int64]*model.Listing)
	var unidentified []*model.Listing
	var order []int64

	for _, l := range listings {
		if l.ItemID == 0 {
			l.ItemID = ExtractItemID(l.URL)
		}
		if l.ItemID == 0 {
			unidentified = append(unidentified, l)
			continue
		}

		existing, ok := byID[l.ItemID]
		if !ok {
			byID[l.ItemID] = l
			order = append(order, l.ItemID)
			continue
		}
		byID[l.ItemID] = mergePair(existing, l)
	}

	merged := make([]*model.Listing, 0, len(order)+len(unidentified))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	merged = append(merged, unidentified...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	for i, l := range merged {
		l.DisplayID = i + 1
	}
	return merged
}

// mergePair は同一アイテムIDの2レコードを1件に統合する。
func mergePair(a, b *model.Listing) *model.Listing {
	base, other := a, b
	// MessageID保持側を優先し、同等なら情報量で選ぶ
	switch {
	case a.MessageID == "" && b.MessageID != "":
		base, other = b, a
	case a.MessageID != "" && b.MessageID == "":
		base, other = a, b
	case b.FieldCount() > a.FieldCount():
		base, other = b, a
	}

	merged := *base

	merged.Messaged = a.Messaged || b.Messaged
	merged.Unavailable = a.Unavailable || b.Unavailable

	if a.MessagedAt != nil && b.MessagedAt != nil {
		if a.MessagedAt.Before(*b.MessagedAt) {
			merged.MessagedAt = a.MessagedAt
		} else {
			merged.MessagedAt = b.MessagedAt
		}
	} else if merged.MessagedAt == nil {
		if other.MessagedAt != nil {
			merged.MessagedAt = other.MessagedAt
		}
	}

	// 空フィールドの補完
	if merged.URL == "" {
		merged.URL = other.URL
	}
	if merged.Title == "" {
		merged.Title = other.Title
	}
	if merged.SellerName == "" {
		merged.SellerName = other.SellerName
	}
	if merged.Product == "" {
		merged.Product = other.Product
	}
	if merged.Relevant == nil {
		merged.Relevant = other.Relevant
	}
	if merged.MessageID == "" {
		merged.MessageID = other.MessageID
	}
	if merged.OfferPrice == 0 {
		merged.OfferPrice = other.OfferPrice
	}
	if other.CreatedAt.Before(merged.CreatedAt) && !other.CreatedAt.IsZero() {
		merged.CreatedAt = other.CreatedAt
	}
	if merged.UpdatedAt.Before(other.UpdatedAt) {
		merged.UpdatedAt = other.UpdatedAt
	}

	return &merged
}
