package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/dealman/internal/agent"
	"github.com/hitoshi/dealman/internal/metrics"
	"github.com/hitoshi/dealman/internal/model"
	"github.com/hitoshi/dealman/internal/notify"
	"github.com/hitoshi/dealman/internal/parser"
	"github.com/hitoshi/dealman/internal/policy"
)

// Machine は1会話分の自動処理パイプラインを実行する。
// エージェント呼び出し、レポート解析、意思決定、履歴更新、返信送信、
// 永続化をこの順で行う。意思決定自体はpolicyパッケージの純粋関数に
// 委ねており、Machineは副作用の実行順序だけに責任を持つ。
type Machine struct {
	dispatcher agent.Dispatcher
	parser     *parser.ResultParser
	engine     *policy.Engine
	store      *Store
	notifier   notify.Notifier
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	now        func() time.Time
}

// NewMachine はMachineの新しいインスタンスを生成する。
func NewMachine(
	dispatcher agent.Dispatcher,
	resultParser *parser.ResultParser,
	engine *policy.Engine,
	store *Store,
	notifier notify.Notifier,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Machine {
	return &Machine{
		dispatcher: dispatcher,
		parser:     resultParser,
		engine:     engine,
		store:      store,
		notifier:   notifier,
		metrics:    collector,
		logger:     logger,
		now:        time.Now,
	}
}

// Process は1会話を処理して永続化する。
// エージェント呼び出しは実際のブラウザ操作を伴い分単位でブロックしうる。
// 終端状態の会話を渡してはならない（スキップ判定は呼び出し元のランナーが行う）。
func (m *Machine) Process(ctx context.Context, conv *model.Conversation) error {
	start := m.now()

	m.metrics.RecordAgentDispatch("read_conversation")
	transcript, err := m.dispatcher.Dispatch(ctx, agent.ReadConversationTask(conv.ConversationURL))
	m.metrics.RecordAgentDispatchLatency(m.now().Sub(start))
	if err != nil {
		return model.NewAgentDispatchError(err.Error())
	}

	// 補助フィールドは分類結果に関係なく反映する。空フィールドのみ埋まる。
	aux := m.parser.ExtractAux(transcript)
	aux.ApplyTo(conv)

	result := m.parser.Parse(transcript)
	decision := m.engine.Decide(conv, result)

	m.logger.Info("会話を解析しました",
		slog.String("conversation_id", conv.ID),
		slog.String("thread_id", conv.ThreadID()),
		slog.String("result_kind", string(result.Kind)),
		slog.String("current_status", string(conv.Status)),
		slog.String("new_status", string(decision.NewStatus)),
	)

	if decision.Heartbeat {
		// 返信なし。last_updated以外は一切変更しない。
		conv.LastUpdated = m.now()
		if err := m.store.SaveOne(ctx, conv); err != nil {
			return model.NewPersistFailedError(err.Error())
		}
		m.metrics.RecordConversationProcessed(string(conv.Status))
		return nil
	}

	now := m.now()

	if decision.SellerEcho != "" {
		conv.AppendSellerMessage(decision.SellerEcho, now)
	}
	if decision.CounterOffer > 0 {
		conv.CounterOffer = decision.CounterOffer
	}

	// 返信は永続化より先に送る。送信に失敗した場合は状態を進めずに
	// エラーを返し、次回パスで同じ判断からやり直す。
	if decision.OutgoingMessage != "" {
		m.metrics.RecordAgentDispatch("send_reply")
		if _, err := m.dispatcher.Dispatch(ctx, agent.SendReplyTask(decision.OutgoingMessage)); err != nil {
			return model.NewAgentDispatchError(err.Error())
		}
		conv.AppendOurMessage(decision.OutgoingMessage, now)
	}

	if decision.FinalPrice > 0 {
		conv.FinalPrice = decision.FinalPrice
	}

	m.applyStatusAndSideEffects(ctx, conv, decision)

	conv.LastUpdated = now
	conv.UpdatedAt = now
	if err := m.store.SaveOne(ctx, conv); err != nil {
		return model.NewPersistFailedError(err.Error())
	}

	m.metrics.RecordConversationProcessed(string(conv.Status))
	return nil
}

// applyStatusAndSideEffects は状態遷移と通知を適用する。
// 通知は該当状態への遷移時のみ発火する。既にその状態にある会話への
// 再発火は起きない（1会話につき1回だけ）。通知失敗は処理を止めない。
func (m *Machine) applyStatusAndSideEffects(ctx context.Context, conv *model.Conversation, decision policy.Decision) {
	transitioned := decision.NewStatus != "" && decision.NewStatus != conv.Status
	if decision.NewStatus != "" {
		conv.Status = decision.NewStatus
	}
	if !transitioned {
		return
	}

	for _, effect := range decision.SideEffects {
		switch effect {
		case policy.SideEffectNotifyDeal:
			m.metrics.RecordDealPending()
			if err := m.notifier.NotifyDealPending(ctx, conv, conv.FinalPrice); err != nil {
				m.logger.Error("取引成立通知の送信に失敗しました",
					slog.String("conversation_id", conv.ID),
					slog.String("error", err.Error()),
				)
			}
		case policy.SideEffectNotifyHelp:
			m.metrics.RecordNeedsHelp()
			if err := m.notifier.NotifyNeedsHelp(ctx, conv, "自動交渉では判断できない状況です"); err != nil {
				m.logger.Error("介入要求通知の送信に失敗しました",
					slog.String("conversation_id", conv.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
