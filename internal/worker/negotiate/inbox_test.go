package negotiate

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/dealman/internal/conversation"
	"github.com/hitoshi/dealman/internal/model"
)

// scriptedDispatcher は固定レポートを返すagent.Dispatcherのモック。
type scriptedDispatcher struct {
	report string
	err    error
	calls  int
}

func (d *scriptedDispatcher) Dispatch(ctx context.Context, task string) (string, error) {
	d.calls++
	return d.report, d.err
}

func TestInboxScanner_Sync_RegistersNewThreads(t *testing.T) {
	dispatcher := &scriptedDispatcher{report: `Scanned the inbox.
THREAD: https://www.facebook.com/messages/t/111 | John | sounds good
THREAD: https://www.facebook.com/messages/t/222 | Jane | is it still available?
INBOX_END`}
	repo := &mockConversationRepo{}
	store := conversation.NewStore(repo, discardLogger(), nil)

	s := NewInboxScanner(dispatcher, store, nopMetrics{}, discardLogger())
	added, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
	if len(repo.upserted) != 2 {
		t.Fatalf("保存件数 = %d, want 2", len(repo.upserted))
	}

	first := repo.upserted[0]
	if first.MessageID != "111" || first.SellerName != "John" {
		t.Errorf("conv = %+v", first)
	}
	if first.Status != model.StatusNew {
		t.Errorf("Status = %q, want new", first.Status)
	}
	if first.ID == "" {
		t.Error("IDが採番されていない")
	}
	if first.LastMessage != "sounds good" {
		t.Errorf("LastMessage = %q, want %q", first.LastMessage, "sounds good")
	}
}

// 登録済みスレッドは再登録しない。
func TestInboxScanner_Sync_SkipsKnownThreads(t *testing.T) {
	dispatcher := &scriptedDispatcher{report: `THREAD: https://www.facebook.com/messages/t/111 | John | hello
INBOX_END`}
	repo := &mockConversationRepo{conversations: []*model.Conversation{
		{MessageID: "111", Status: model.StatusNegotiating},
	}}
	store := conversation.NewStore(repo, discardLogger(), nil)

	s := NewInboxScanner(dispatcher, store, nopMetrics{}, discardLogger())
	added, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if added != 0 {
		t.Errorf("added = %d, want 0", added)
	}
	if len(repo.upserted) != 0 {
		t.Error("登録済みスレッドが再登録された")
	}
}

func TestInboxScanner_Sync_DispatchError(t *testing.T) {
	dispatcher := &scriptedDispatcher{err: errors.New("エージェント停止中")}
	repo := &mockConversationRepo{}
	store := conversation.NewStore(repo, discardLogger(), nil)

	s := NewInboxScanner(dispatcher, store, nopMetrics{}, discardLogger())
	_, err := s.Sync(context.Background())
	if err == nil {
		t.Fatal("errorを返すべき")
	}
	var autoErr *model.AutomationError
	if !errors.As(err, &autoErr) || autoErr.Code != model.ErrCodeAgentDispatch {
		t.Errorf("err = %v, want AGENT_DISPATCH_FAILED", err)
	}
	if len(repo.upserted) != 0 {
		t.Error("失敗時に保存された")
	}
}

func TestParseInboxReport(t *testing.T) {
	tests := []struct {
		name   string
		report string
		want   int
	}{
		{
			"INBOX_END以降は読まない",
			"THREAD: https://www.facebook.com/messages/t/1 | A | x\nINBOX_END\nTHREAD: https://www.facebook.com/messages/t/2 | B | y",
			1,
		},
		{
			"THREAD以外の行は無視する",
			"I scanned the inbox.\nTHREAD: https://www.facebook.com/messages/t/1 | A | x\nDone.",
			1,
		},
		{
			"URL欠落行は捨てる",
			"THREAD:  | A | x",
			0,
		},
		{
			"出品者名とプレビューは省略可",
			"THREAD: https://www.facebook.com/messages/t/1",
			1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseInboxReport(tt.report)
			if len(got) != tt.want {
				t.Errorf("エントリ数 = %d, want %d", len(got), tt.want)
			}
		})
	}
}
