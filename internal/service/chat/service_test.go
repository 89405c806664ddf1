package chat_test

import (
	"context"
	"errors"
	"testing"

	model "github.com/zhouzirui/med-assistant/backend/internal/model/chat"
	chat "github.com/zhouzirui/med-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/med-assistant/backend/internal/service/stream"
)

func TestServiceGetChat(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx)
	if err != nil {
		t.Fatalf("CreateChat err: %v", err)
	}

	got, err := svc.GetChat(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetChat err: %v", err)
	}
	if got.ID != c.ID {
		t.Fatalf("unexpected chat ID: got %s want %s", got.ID, c.ID)
	}
}

func TestServiceGetChatNotFound(t *testing.T) {
	svc := chat.NewService()

	if _, err := svc.GetChat(context.Background(), "missing"); !errors.Is(err, chat.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestServiceAppendAndUpdateTurns(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	c, _ := svc.CreateChat(ctx)

	if _, err := svc.AppendTurn(ctx, model.Turn{ChatID: c.ID, Role: model.RoleUser, Content: "65F with chest pain"}); err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}
	reply, err := svc.AppendTurn(ctx, model.Turn{ChatID: c.ID, Role: model.RoleAssistant, Status: string(stream.StatusPending)})
	if err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}

	if _, err := svc.ApplyUpdate(ctx, c.ID, reply.ID, stream.Update{Text: "## Most", Status: stream.StatusStreaming}); err != nil {
		t.Fatalf("ApplyUpdate err: %v", err)
	}
	if _, err := svc.ApplyUpdate(ctx, c.ID, reply.ID, stream.Update{Text: "## Most likely", Status: stream.StatusComplete, Final: true}); err != nil {
		t.Fatalf("ApplyUpdate err: %v", err)
	}
	if _, err := svc.ApplyUpdate(ctx, c.ID, reply.ID, stream.Update{Text: "late", Status: stream.StatusStreaming}); !errors.Is(err, chat.ErrTurnFinalized) {
		t.Fatalf("expected ErrTurnFinalized, got %v", err)
	}

	turns, err := svc.LoadTranscript(ctx, c.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[2].Content != "## Most likely" || turns[2].Status != "complete" {
		t.Fatalf("unexpected assistant turn: %+v", turns[2])
	}
}

func TestServiceCreateChatSeedsGreeting(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	c, err := svc.CreateChat(ctx)
	if err != nil {
		t.Fatalf("CreateChat err: %v", err)
	}

	turns, err := svc.LoadTranscript(ctx, c.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	greeting := turns[0]
	if greeting.Role != model.RoleAssistant || greeting.Content != model.Greeting || greeting.ChatID != c.ID {
		t.Fatalf("unexpected greeting: %+v", greeting)
	}
	if greeting.Status != string(stream.StatusComplete) {
		t.Fatalf("greeting status = %q, want complete", greeting.Status)
	}
	if _, err := svc.ApplyUpdate(ctx, c.ID, greeting.ID, stream.Update{Text: "changed"}); !errors.Is(err, chat.ErrTurnFinalized) {
		t.Fatalf("expected ErrTurnFinalized, got %v", err)
	}
}

func TestServiceUserTurnsAreImmutable(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	c, _ := svc.CreateChat(ctx)
	user, _ := svc.AppendTurn(ctx, model.Turn{ChatID: c.ID, Role: model.RoleUser, Content: "hi"})

	if _, err := svc.ApplyUpdate(ctx, c.ID, user.ID, stream.Update{Text: "changed"}); !errors.Is(err, chat.ErrTurnFinalized) {
		t.Fatalf("expected ErrTurnFinalized, got %v", err)
	}
}

func TestServiceDeleteChat(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	c, _ := svc.CreateChat(ctx)

	if err := svc.DeleteChat(ctx, c.ID); err != nil {
		t.Fatalf("DeleteChat err: %v", err)
	}
	if _, err := svc.LoadTranscript(ctx, c.ID); !errors.Is(err, chat.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	if _, err := svc.AppendTurn(ctx, model.Turn{ChatID: c.ID}); !errors.Is(err, chat.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}
