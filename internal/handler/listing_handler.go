package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/dealman/internal/model"
)

// ListingReader は出品ハンドラーが必要とするストレージ操作。
// repository.ListingRepositoryを直接要求せず、読み取りに必要な
// 最小限のインターフェースとして定義する。
type ListingReader interface {
	ListAll(ctx context.Context) ([]*model.Listing, error)
}

// ListingHandler は出品の読み取りAPIハンドラー。
type ListingHandler struct {
	repo ListingReader
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(repo ListingReader) *ListingHandler {
	return &ListingHandler{repo: repo}
}

// listingResponse は出品1件のAPIレスポンス。
type listingResponse struct {
	ItemID      int64      `json:"item_id"`
	DisplayID   int        `json:"display_id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	SellerName  string     `json:"seller_name"`
	Product     string     `json:"product"`
	Messaged    bool       `json:"messaged"`
	MessagedAt  *time.Time `json:"messaged_at,omitempty"`
	Relevant    *bool      `json:"relevant,omitempty"`
	Unavailable bool       `json:"unavailable"`
	MessageID   string     `json:"message_id,omitempty"`
	OfferPrice  int        `json:"offer_price,omitempty"`
}

// ListListings は出品一覧を返す。
// GET /api/listings?messaged=false
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.repo.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	messagedFilter := r.URL.Query().Get("messaged")

	resp := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		if messagedFilter == "true" && !l.Messaged {
			continue
		}
		if messagedFilter == "false" && l.Messaged {
			continue
		}
		resp = append(resp, listingResponse{
			ItemID:      l.ItemID,
			DisplayID:   l.DisplayID,
			URL:         l.URL,
			Title:       l.Title,
			SellerName:  l.SellerName,
			Product:     l.Product,
			Messaged:    l.Messaged,
			MessagedAt:  l.MessagedAt,
			Relevant:    l.Relevant,
			Unavailable: l.Unavailable,
			MessageID:   l.MessageID,
			OfferPrice:  l.OfferPrice,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
