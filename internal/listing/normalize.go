// Package listing は出品の正規化と重複排除を提供する。
// 同一出品がドメイン表記やクエリ文字列の違いで別URLとして収集されるため、
// URLパスの数値アイテムIDを同一性の基準にする。
package listing

import (
	"regexp"
	"strconv"
	"strings"
)

var itemIDPattern = regexp.MustCompile(`/marketplace/item/(\d+)`)

// ExtractItemID は出品URLから数値アイテムIDを抽出する。
// クエリ文字列やドメインのプレフィックス（www有無）は同一性に影響しない。
// 抽出できない場合は0を返す。
func ExtractItemID(rawURL string) int64 {
	m := itemIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// NormalizeURL は出品URLを正規形に変換する。
// アイテムIDが抽出できる場合はクエリを落とした正規URLを、
// できない場合は前後空白を除去しただけの入力を返す。
func NormalizeURL(rawURL string) string {
	clean := strings.TrimSpace(rawURL)
	if id := ExtractItemID(clean); id != 0 {
		return "https://www.facebook.com/marketplace/item/" + strconv.FormatInt(id, 10)
	}
	return clean
}
