package negotiate

import "time"

const (
	// defaultInitialBackoff は連続失敗時の初回追加遅延。
	defaultInitialBackoff = 30 * time.Second
	// defaultMaxBackoff は追加遅延の上限。
	defaultMaxBackoff = 30 * time.Minute
)

// BackoffPolicy は巡回パスの連続失敗に対する指数バックオフ戦略。
// 失敗のたびに遅延を2倍にし、成功でリセットする。
// 暗黙のリトライループに埋め込まず、戦略として独立させている。
type BackoffPolicy struct {
	Initial time.Duration
	Max     time.Duration

	consecutiveFailures int
}

// NewBackoffPolicy はデフォルト設定のBackoffPolicyを生成する。
func NewBackoffPolicy() *BackoffPolicy {
	return &BackoffPolicy{
		Initial: defaultInitialBackoff,
		Max:     defaultMaxBackoff,
	}
}

// RecordFailure は失敗を記録する。
func (b *BackoffPolicy) RecordFailure() {
	b.consecutiveFailures++
}

// RecordSuccess は成功を記録し、バックオフをリセットする。
func (b *BackoffPolicy) RecordSuccess() {
	b.consecutiveFailures = 0
}

// Delay は現在の連続失敗回数に応じた追加遅延を返す。
// 失敗がない場合は0。初回Initial、以降2倍ずつ増加、上限Max。
func (b *BackoffPolicy) Delay() time.Duration {
	if b.consecutiveFailures == 0 {
		return 0
	}
	delay := b.Initial
	for i := 1; i < b.consecutiveFailures; i++ {
		delay *= 2
		if delay > b.Max {
			return b.Max
		}
	}
	if delay > b.Max {
		return b.Max
	}
	return delay
}
