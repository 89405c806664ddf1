package ai

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeChatModel struct {
	input []*schema.Message
	model string
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage("unused", nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.input = input
	if o := model.GetCommonOptions(&model.Options{}, opts...); o.Model != nil {
		f.model = *o.Model
	}
	return schema.StreamReaderFromArray([]*schema.Message{
		textChunk("Most likely"),
		finishChunk(": ACS", "stop"),
	}), nil
}

func TestArkProviderRunsChain(t *testing.T) {
	fake := &fakeChatModel{}
	p, err := newArkProvider(context.Background(), fake)
	if err != nil {
		t.Fatalf("newArkProvider err: %v", err)
	}

	sr, err := p.Stream(context.Background(), "ark/ep-override", exchange())
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}

	out := drain(t, sr)
	if out.err != nil {
		t.Fatalf("drain err: %v", out.err)
	}
	if out.text != "Most likely: ACS" || out.finish != "stop" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if len(fake.input) != 2 || fake.input[0].Role != schema.System || fake.input[1].Content != "65F with chest pain" {
		t.Fatalf("unexpected chain input: %+v", fake.input)
	}
	if fake.model != "ep-override" {
		t.Fatalf("expected model override, got %q", fake.model)
	}
}

func TestArkProviderKeepsConfiguredModel(t *testing.T) {
	fake := &fakeChatModel{}
	p, err := newArkProvider(context.Background(), fake)
	if err != nil {
		t.Fatalf("newArkProvider err: %v", err)
	}

	sr, err := p.Stream(context.Background(), "ark", exchange())
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	drain(t, sr)

	if fake.model != "" {
		t.Fatalf("expected no override, got %q", fake.model)
	}
}
