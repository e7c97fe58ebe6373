package conversation_test

import (
	"testing"

	"github.com/ctwww/cword/internal/model/conversation"
)

func buildSession() *conversation.Session {
	s := conversation.New("记账助手")
	s.SetStage(conversation.StageRequirements)
	s.AppendMessage(conversation.UserMessage("我想做一个记账应用"))
	s.AppendMessage(conversation.PersonaMessage("产品经理", "目标用户是谁？"))
	s.AppendDecision(conversation.Decision{
		ID:           "decision_001",
		Topic:        "数据库",
		Decision:     "就用 SQLite",
		Participants: []string{"技术专家", "产品经理"},
		Reasoning:    "单机应用，够用且省运维",
	})
	return s
}

func TestPortableRoundTrip(t *testing.T) {
	original := buildSession()

	restored, err := conversation.FromRecord(original.Portable())
	if err != nil {
		t.Fatalf("FromRecord err: %v", err)
	}

	if restored.ID() != original.ID() {
		t.Fatalf("id mismatch: %s vs %s", restored.ID(), original.ID())
	}
	if restored.ProductName() != original.ProductName() {
		t.Fatalf("product name mismatch: %s", restored.ProductName())
	}
	if restored.Stage() != original.Stage() {
		t.Fatalf("stage mismatch: %s", restored.Stage())
	}
	if restored.MessageCount() != original.MessageCount() {
		t.Fatalf("message count mismatch: %d", restored.MessageCount())
	}
	if restored.DecisionCount() != original.DecisionCount() {
		t.Fatalf("decision count mismatch: %d", restored.DecisionCount())
	}

	wantMsgs, gotMsgs := original.Messages(), restored.Messages()
	for i := range wantMsgs {
		if gotMsgs[i].Role != wantMsgs[i].Role ||
			gotMsgs[i].Speaker != wantMsgs[i].Speaker ||
			gotMsgs[i].Content != wantMsgs[i].Content {
			t.Fatalf("message %d mismatch: %+v vs %+v", i, gotMsgs[i], wantMsgs[i])
		}
	}

	wantDec, gotDec := original.Decisions()[0], restored.Decisions()[0]
	if gotDec.ID != wantDec.ID || gotDec.Topic != wantDec.Topic ||
		gotDec.Decision != wantDec.Decision || gotDec.Reasoning != wantDec.Reasoning {
		t.Fatalf("decision mismatch: %+v vs %+v", gotDec, wantDec)
	}
	if len(gotDec.Participants) != 2 || gotDec.Participants[0] != "技术专家" {
		t.Fatalf("participants not preserved in order: %v", gotDec.Participants)
	}
}

func TestFromRecordRejectsMalformedRole(t *testing.T) {
	record := buildSession().Portable()
	record.Messages[0].Role = "moderator"

	if _, err := conversation.FromRecord(record); err == nil {
		t.Fatal("expected error for malformed role")
	}
}

func TestFromRecordRejectsUnknownStage(t *testing.T) {
	record := buildSession().Portable()
	record.CurrentStage = "brainstorm"

	if _, err := conversation.FromRecord(record); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}
