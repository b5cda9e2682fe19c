package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/dealman/internal/model"
)

// PostgresConversationRepoはConversationRepositoryインターフェースを満たすことを検証
func TestPostgresConversationRepo_ImplementsInterface(t *testing.T) {
	var _ ConversationRepository = (*PostgresConversationRepo)(nil)
}

func TestNewPostgresConversationRepo_Initializes(t *testing.T) {
	repo := NewPostgresConversationRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// 終端状態リストがモデル側の定義と一致することを検証
func TestTerminalStatusList_MatchesModel(t *testing.T) {
	list := terminalStatusList()

	seen := make(map[string]bool, len(list))
	for _, s := range list {
		seen[s] = true
		if !model.ConversationStatus(s).IsTerminal() {
			t.Errorf("%q は終端状態ではない", s)
		}
	}

	// 終端状態が漏れなく含まれること
	for _, s := range []model.ConversationStatus{
		model.StatusDealPending, model.StatusDealClosed, model.StatusNeedsHelp,
		model.StatusClosed, model.StatusItemSold, model.StatusRejected,
		model.StatusNoResponseFinal,
	} {
		if !seen[string(s)] {
			t.Errorf("終端状態 %q がリストに含まれていない", s)
		}
	}
}

// Conversationモデルのフィールドが正しく構築されることを検証
func TestConversationModel_Fields(t *testing.T) {
	now := time.Now()
	conv := &model.Conversation{
		ID:              "conv-id-1",
		ConversationURL: "https://www.facebook.com/messages/t/1234567890",
		MessageID:       "1234567890",
		Status:          model.StatusNew,
		LastUpdated:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if conv.MessageID != "1234567890" {
		t.Errorf("conv.MessageID = %q", conv.MessageID)
	}
	if conv.Status != model.StatusNew {
		t.Errorf("conv.Status = %q, want %q", conv.Status, model.StatusNew)
	}
	if conv.OfferAmount != 0 {
		t.Error("offer_amountはデフォルトで未設定（0）であるべき")
	}
}
