// Package model はドメインモデルを定義する。
package model

import "time"

// Listing はマーケットプレイスの出品を表す。
type Listing struct {
	// ItemID はURLから抽出した数値の出品ID。重複排除の同一性キー。
	ItemID int64
	// DisplayID はマージ後に採番される連番。表示専用であり同一性判定には使わない。
	DisplayID  int
	URL        string
	Title      string
	SellerName string
	// Product はこの出品を発見した検索語。
	Product  string
	Messaged bool
	// MessagedAt は初回オファーを送信した時刻。
	MessagedAt *time.Time
	// Relevant は対象商品に合致するかの三値フラグ。nilは未判定。
	Relevant *bool
	// Unavailable は売却済み・削除済みの出品を示す。
	Unavailable bool
	// MessageID はオファー送信後に判明したチャットスレッドID。
	MessageID string
	// OfferPrice は送信した初回オファー額（ドル）。
	OfferPrice int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FieldCount は判定済みフィールドの数を返す。
// マージ時に「情報量の多いレコード」を選ぶための指標として使う。
func (l *Listing) FieldCount() int {
	n := 0
	if l.Title != "" {
		n++
	}
	if l.SellerName != "" {
		n++
	}
	if l.Product != "" {
		n++
	}
	if l.MessagedAt != nil {
		n++
	}
	if l.Relevant != nil {
		n++
	}
	if l.MessageID != "" {
		n++
	}
	if l.OfferPrice > 0 {
		n++
	}
	return n
}
