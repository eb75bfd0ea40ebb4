package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	memoryx "github.com/dhrits/job-hopper/agent/memory"
	toolx "github.com/dhrits/job-hopper/agent/tool"
)

type scriptedCompleter struct {
	steps []contractx.Message
	err   error
	calls int
}

func (s *scriptedCompleter) Complete(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolDescriptor) (contractx.Message, error) {
	return s.CompleteStream(ctx, msgs, tools, func(string) {})
}

func (s *scriptedCompleter) CompleteStream(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolDescriptor, onDelta func(string)) (contractx.Message, error) {
	if s.err != nil {
		return contractx.Message{}, s.err
	}
	if s.calls >= len(s.steps) {
		return contractx.Message{}, errors.New("no scripted step left")
	}
	msg := s.steps[s.calls]
	s.calls++
	if msg.Content != "" && onDelta != nil {
		onDelta(msg.Content)
	}
	return msg, nil
}

func testRegistry(t *testing.T) *toolx.Registry {
	t.Helper()
	registry := toolx.NewRegistry()
	specs := []toolx.Spec{
		{
			Name:        "lookup",
			Description: "returns a canned result",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return "lookup result", nil
			},
		},
		{
			Name:        "broken",
			Description: "always fails",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				return "", errors.New("backend down")
			},
		},
		{
			Name:        "slow",
			Description: "blocks until cancelled",
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
		},
	}
	for _, spec := range specs {
		if err := registry.Register(spec); err != nil {
			t.Fatalf("Register(%s) error = %v", spec.Name, err)
		}
	}
	return registry
}

func collectEvents(emitter *Emitter) (func() []Event, *sync.WaitGroup) {
	var mu sync.Mutex
	var got []Event
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range emitter.Events() {
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
		}
	}()
	return func() []Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]Event(nil), got...)
	}, &wg
}

func newTestLoop(t *testing.T, completer contractx.Completer, cfg Config) *Loop {
	t.Helper()
	l, err := New(completer, testRegistry(t), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l
}

func userMemory(t *testing.T, text string) *memoryx.ConversationMemory {
	t.Helper()
	mem := memoryx.NewConversationMemory("t1")
	if err := mem.Append(contractx.NewUserMessage(text)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	return mem
}

func TestRunPlainReply(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{steps: []contractx.Message{
		contractx.NewAssistantMessage("Happy to help with your search.", nil),
	}}
	l := newTestLoop(t, completer, Config{})

	emitter := NewEmitter(context.Background(), 64)
	events, wg := collectEvents(emitter)

	mem := userMemory(t, "hello")
	reply, err := l.Run(context.Background(), "you are a job coach", mem, emitter)
	emitter.Close()
	wg.Wait()

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reply.Content != "Happy to help with your search." {
		t.Fatalf("unexpected reply: %q", reply.Content)
	}
	if mem.Len() != 2 {
		t.Fatalf("expected user + assistant, got %d messages", mem.Len())
	}

	got := events()
	if len(got) == 0 || got[len(got)-1].Type != EventDone {
		t.Fatalf("expected trailing done event, got %+v", got)
	}
	var sawDelta bool
	for _, ev := range got {
		if ev.Type == EventContentDelta {
			sawDelta = true
		}
	}
	if !sawDelta {
		t.Fatal("expected at least one content delta")
	}
}

func TestRunToolRoundTrip(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{steps: []contractx.Message{
		contractx.NewAssistantMessage("", []contractx.ToolCallRequest{
			{CallID: "call-a", Name: "lookup"},
			{CallID: "call-b", Name: "lookup"},
		}),
		contractx.NewAssistantMessage("Found two leads for you.", nil),
	}}
	l := newTestLoop(t, completer, Config{})

	emitter := NewEmitter(context.Background(), 64)
	events, wg := collectEvents(emitter)

	mem := userMemory(t, "find go jobs")
	reply, err := l.Run(context.Background(), "coach", mem, emitter)
	emitter.Close()
	wg.Wait()

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reply.Content != "Found two leads for you." {
		t.Fatalf("unexpected reply: %q", reply.Content)
	}

	// user, assistant w/ calls, two tool results, terminal assistant
	msgs := mem.Messages()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(msgs))
	}
	if msgs[2].Role != contractx.RoleTool || msgs[2].ToolCallID != "call-a" {
		t.Fatalf("result order broken: %+v", msgs[2])
	}
	if msgs[3].Role != contractx.RoleTool || msgs[3].ToolCallID != "call-b" {
		t.Fatalf("result order broken: %+v", msgs[3])
	}
	if err := mem.Validate(); err != nil {
		t.Fatalf("ledger unbalanced: %v", err)
	}

	var pending int
	for _, ev := range events() {
		if ev.Type == EventToolPending {
			pending++
		}
	}
	if pending != 2 {
		t.Fatalf("expected 2 tool pending events, got %d", pending)
	}
}

func TestRunHandlerFailureBecomesErrorResult(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{steps: []contractx.Message{
		contractx.NewAssistantMessage("", []contractx.ToolCallRequest{
			{CallID: "call-a", Name: "broken"},
		}),
		contractx.NewAssistantMessage("I couldn't complete that action.", nil),
	}}
	l := newTestLoop(t, completer, Config{})

	emitter := NewEmitter(context.Background(), 64)
	_, wg := collectEvents(emitter)

	mem := userMemory(t, "do the thing")
	reply, err := l.Run(context.Background(), "coach", mem, emitter)
	emitter.Close()
	wg.Wait()

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reply.Content != "I couldn't complete that action." {
		t.Fatalf("unexpected reply: %q", reply.Content)
	}

	msgs := mem.Messages()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[2].Role != contractx.RoleTool || !strings.Contains(msgs[2].Content, "tool call failed") {
		t.Fatalf("expected synthetic error result, got %+v", msgs[2])
	}
	if err := mem.Validate(); err != nil {
		t.Fatalf("ledger unbalanced: %v", err)
	}
}

func TestRunUnknownToolBecomesErrorResult(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{steps: []contractx.Message{
		contractx.NewAssistantMessage("", []contractx.ToolCallRequest{
			{CallID: "call-a", Name: "hallucinated_tool"},
		}),
		contractx.NewAssistantMessage("Let me try something else.", nil),
	}}
	l := newTestLoop(t, completer, Config{})

	emitter := NewEmitter(context.Background(), 64)
	_, wg := collectEvents(emitter)

	mem := userMemory(t, "hi")
	_, err := l.Run(context.Background(), "coach", mem, emitter)
	emitter.Close()
	wg.Wait()

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := mem.Validate(); err != nil {
		t.Fatalf("ledger unbalanced: %v", err)
	}
}

func TestRunRoundTripCeiling(t *testing.T) {
	t.Parallel()

	// every step requests another tool call, so the ceiling must fire
	steps := make([]contractx.Message, 5)
	for i := range steps {
		steps[i] = contractx.NewAssistantMessage("", []contractx.ToolCallRequest{
			{CallID: fmt.Sprintf("call-%d", i), Name: "lookup"},
		})
	}
	completer := &scriptedCompleter{steps: steps}
	l := newTestLoop(t, completer, Config{MaxRoundTrips: 3})

	emitter := NewEmitter(context.Background(), 64)
	_, wg := collectEvents(emitter)

	mem := userMemory(t, "loop forever")
	_, err := l.Run(context.Background(), "coach", mem, emitter)
	emitter.Close()
	wg.Wait()

	if !errors.Is(err, contractx.ErrTurnExceeded) {
		t.Fatalf("expected ErrTurnExceeded, got %v", err)
	}
	if completer.calls != 3 {
		t.Fatalf("expected 3 model steps, got %d", completer.calls)
	}
	// committed rounds stay intact and balanced
	if err := mem.Validate(); err != nil {
		t.Fatalf("ledger unbalanced: %v", err)
	}
	if mem.Len() != 1+3*2 {
		t.Fatalf("expected 7 messages, got %d", mem.Len())
	}
}

func TestRunDuplicateCallIDsFailTurn(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{steps: []contractx.Message{
		contractx.NewAssistantMessage("", []contractx.ToolCallRequest{
			{CallID: "call-a", Name: "lookup"},
			{CallID: "call-a", Name: "lookup"},
		}),
	}}
	l := newTestLoop(t, completer, Config{})

	emitter := NewEmitter(context.Background(), 64)
	events, wg := collectEvents(emitter)

	mem := userMemory(t, "hi")
	_, err := l.Run(context.Background(), "coach", mem, emitter)
	emitter.Close()
	wg.Wait()

	if !errors.Is(err, contractx.ErrOrchestration) {
		t.Fatalf("expected ErrOrchestration, got %v", err)
	}
	// the malformed round must not have been committed
	if mem.Len() != 1 {
		t.Fatalf("expected only the user message, got %d", mem.Len())
	}
	// nor announced: no tool from the batch runs, so none goes pending
	for _, ev := range events() {
		if ev.Type == EventToolPending {
			t.Fatalf("pending notice for %q after batch validation failed", ev.Tool)
		}
	}
}

func TestRunToolTimeoutFailsTurn(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{steps: []contractx.Message{
		contractx.NewAssistantMessage("", []contractx.ToolCallRequest{
			{CallID: "call-a", Name: "slow"},
		}),
	}}
	l := newTestLoop(t, completer, Config{ToolTimeout: 20 * time.Millisecond})

	emitter := NewEmitter(context.Background(), 64)
	_, wg := collectEvents(emitter)

	mem := userMemory(t, "hi")
	_, err := l.Run(context.Background(), "coach", mem, emitter)
	emitter.Close()
	wg.Wait()

	if !errors.Is(err, contractx.ErrTurnTimeout) {
		t.Fatalf("expected ErrTurnTimeout, got %v", err)
	}
	if mem.Len() != 1 {
		t.Fatalf("expected only the user message, got %d", mem.Len())
	}
}

func TestRunIncludesSummaryInPrompt(t *testing.T) {
	t.Parallel()

	var promptRoles []contractx.Role
	var promptTexts []string
	completer := &captureCompleter{reply: contractx.NewAssistantMessage("ok", nil), onMsgs: func(msgs []contractx.Message) {
		promptRoles = promptRoles[:0]
		promptTexts = promptTexts[:0]
		for _, m := range msgs {
			promptRoles = append(promptRoles, m.Role)
			promptTexts = append(promptTexts, m.Content)
		}
	}}
	l := newTestLoop(t, completer, Config{})

	emitter := NewEmitter(context.Background(), 64)
	_, wg := collectEvents(emitter)

	mem := userMemory(t, "any news?")
	mem.ReplaceSummary("user wants remote Go roles")

	_, err := l.Run(context.Background(), "coach prompt", mem, emitter)
	emitter.Close()
	wg.Wait()

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(promptRoles) != 3 {
		t.Fatalf("expected system+summary+user, got %d messages", len(promptRoles))
	}
	if promptRoles[0] != contractx.RoleSystem || promptTexts[0] != "coach prompt" {
		t.Fatalf("system prompt misplaced: %v %q", promptRoles[0], promptTexts[0])
	}
	if promptRoles[1] != contractx.RoleSystem || !strings.Contains(promptTexts[1], "user wants remote Go roles") {
		t.Fatalf("summary misplaced: %v %q", promptRoles[1], promptTexts[1])
	}
}

type captureCompleter struct {
	reply  contractx.Message
	onMsgs func([]contractx.Message)
}

func (c *captureCompleter) Complete(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolDescriptor) (contractx.Message, error) {
	return c.CompleteStream(ctx, msgs, tools, nil)
}

func (c *captureCompleter) CompleteStream(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolDescriptor, onDelta func(string)) (contractx.Message, error) {
	if c.onMsgs != nil {
		c.onMsgs(msgs)
	}
	return c.reply, nil
}
