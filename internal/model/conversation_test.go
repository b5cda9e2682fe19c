package model

import (
	"testing"
	"time"
)

func TestConversationStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status ConversationStatus
		want   bool
	}{
		{StatusNew, false},
		{StatusAwaitingResponse, false},
		{StatusNegotiating, false},
		{StatusAnsweringQuestions, false},
		{StatusDealPending, true},
		{StatusDealClosed, true},
		{StatusNeedsHelp, true},
		{StatusClosed, true},
		{StatusItemSold, true},
		{StatusRejected, true},
		{StatusNoResponseFinal, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractThreadID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"標準URL", "https://www.facebook.com/messages/t/1234567890", "1234567890"},
		{"末尾スラッシュ付き", "https://www.facebook.com/messages/t/1234567890/", "1234567890"},
		{"改行以降のゴミを無視", "https://www.facebook.com/messages/t/777\nCONVERSATION_URL_END", "777"},
		{"エスケープされた改行も無視", `https://www.facebook.com/messages/t/777\nand then I closed the tab`, "777"},
		{"マーカー混入", "https://www.facebook.com/messages/t/888CONVERSATION_URL_END", "888"},
		{"英数字ID", "https://www.facebook.com/messages/t/abc123XYZ", "abc123XYZ"},
		{"スレッドURLでない", "https://www.facebook.com/marketplace/item/111", ""},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractThreadID(tt.url); got != tt.want {
				t.Errorf("ExtractThreadID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestConversation_ThreadID(t *testing.T) {
	tests := []struct {
		name string
		conv Conversation
		want string
	}{
		{
			"数字列のMessageIDを優先する",
			Conversation{MessageID: "111", ConversationURL: "https://www.facebook.com/messages/t/222"},
			"111",
		},
		{
			"URL形式で保存されたMessageIDから再抽出する",
			Conversation{MessageID: "https://www.facebook.com/messages/t/333"},
			"333",
		},
		{
			"MessageIDが壊れている場合はURLにフォールバック",
			Conversation{MessageID: "unknown", ConversationURL: "https://www.facebook.com/messages/t/444"},
			"444",
		},
		{
			"どちらからも導出できない場合は空文字",
			Conversation{MessageID: "", ConversationURL: ""},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conv.ThreadID(); got != tt.want {
				t.Errorf("ThreadID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConversation_AppendMessages(t *testing.T) {
	now := time.Now()
	conv := &Conversation{}

	conv.AppendOurMessage("Hi I can do $280 cash for it", now)
	conv.AppendSellerMessage("Can you do 350?", now.Add(time.Hour))

	if len(conv.MessageHistory) != 2 {
		t.Fatalf("履歴件数 = %d, want 2", len(conv.MessageHistory))
	}
	if conv.MessageHistory[0].From != SenderUs || conv.MessageHistory[1].From != SenderSeller {
		t.Errorf("送信者の順序が不正: %+v", conv.MessageHistory)
	}
	if conv.LastMessage != "Can you do 350?" {
		t.Errorf("LastMessage = %q", conv.LastMessage)
	}
	if !conv.LastUpdated.Equal(now.Add(time.Hour)) {
		t.Errorf("LastUpdated = %v", conv.LastUpdated)
	}
}

func TestConversation_LastSellerMessage(t *testing.T) {
	now := time.Now()
	conv := &Conversation{}

	if conv.LastSellerMessage() != "" {
		t.Error("履歴なしで空文字を返すべき")
	}

	conv.AppendSellerMessage("first", now)
	conv.AppendOurMessage("reply", now)
	conv.AppendSellerMessage("second", now)
	conv.AppendOurMessage("closing", now)

	if got := conv.LastSellerMessage(); got != "second" {
		t.Errorf("LastSellerMessage() = %q, want %q", got, "second")
	}
	if got := conv.LastOurMessage(); got != "closing" {
		t.Errorf("LastOurMessage() = %q, want %q", got, "closing")
	}
}

func TestConversationSet_Recount(t *testing.T) {
	now := time.Now()
	set := &ConversationSet{Conversations: []*Conversation{
		{Status: StatusNegotiating},
		{Status: StatusAwaitingResponse},
		{Status: StatusDealPending},
		{Status: StatusDealClosed},
		{Status: StatusClosed},
	}}

	set.Recount(now)

	if set.Summary.Total != 5 {
		t.Errorf("Total = %d, want 5", set.Summary.Total)
	}
	if set.Summary.Active != 2 {
		t.Errorf("Active = %d, want 2", set.Summary.Active)
	}
	if set.Summary.Closed != 3 {
		t.Errorf("Closed = %d, want 3", set.Summary.Closed)
	}
	// deal_pendingは「自動処理の終端」だがまだ成約ではない
	if set.Summary.DealsClosed != 1 {
		t.Errorf("DealsClosed = %d, want 1", set.Summary.DealsClosed)
	}
	if !set.Summary.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v", set.Summary.LastUpdated)
	}
}
