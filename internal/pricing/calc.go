package pricing

// RoundToNicePrice は価格を10の倍数に丸める。提示価格が中途半端な
// 数字にならないようにするためで、デフォルトは切り捨て。
func RoundToNicePrice(price float64, roundUp bool) int {
	if price < 10 {
		return int(price)
	}
	base := (int(price) / 10) * 10
	if roundUp && int(price)%10 > 0 {
		return base + 10
	}
	return base
}

// ApplyMargin は基準価格からマージンを差し引いたオファー価格を計算する。
// marginPercentは0〜100のパーセント値。結果は10の倍数に切り捨てられる。
func ApplyMargin(basePrice int, marginPercent float64) int {
	if basePrice <= 0 {
		return 0
	}
	discounted := float64(basePrice) * (1 - marginPercent/100)
	return RoundToNicePrice(discounted, false)
}
