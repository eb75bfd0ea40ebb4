package coach

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	loopx "github.com/dhrits/job-hopper/agent/loop"
	memoryx "github.com/dhrits/job-hopper/agent/memory"
	nodex "github.com/dhrits/job-hopper/agent/nodes"
	promptx "github.com/dhrits/job-hopper/agent/prompt"
	summarizerx "github.com/dhrits/job-hopper/agent/summarizer"
	toolx "github.com/dhrits/job-hopper/agent/tool"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidThread  = nodex.ErrInvalidThread
)

// sessionOpener is the first user turn of a fresh session, sent on the
// caller's behalf right after a resume upload.
const sessionOpener = "Hello! I just uploaded my resume. Please introduce yourself and ask how you can help with my job search."

const eventBuffer = 32

// Deps are the collaborators a Coach is assembled from.
type Deps struct {
	Sessions   *memoryx.SessionStore
	Model      contractx.Completer
	Writer     contractx.Completer
	Summarizer *summarizerx.Summarizer
	Retriever  contractx.Retriever
	Searcher   contractx.WebSearcher
	Fetcher    contractx.URLFetcher
	Extractor  contractx.DocumentExtractor

	Loop loopx.Config
}

// Coach is the conversational job-coaching service. One instance serves many
// threads; turns on the same thread are serialized through the session store.
type Coach struct {
	sessions   *memoryx.SessionStore
	summarizer *summarizerx.Summarizer
	extractor  contractx.DocumentExtractor
	prompts    promptx.PromptSet
	loopDeps   nodex.LoopDeps

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(deps Deps) (*Coach, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Model == nil {
		return nil, errors.New("coach model is required")
	}
	if deps.Summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if deps.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if deps.Searcher == nil {
		return nil, errors.New("web searcher is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("url fetcher is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("document extractor is required")
	}

	writer := deps.Writer
	if writer == nil {
		writer = deps.Model
	}

	prompts := promptx.LoadPromptSet()
	c := &Coach{
		sessions:   deps.Sessions,
		summarizer: deps.Summarizer,
		extractor:  deps.Extractor,
		prompts:    prompts,
		loopDeps: nodex.LoopDeps{
			Completer: deps.Model,
			Catalog: toolx.CatalogDeps{
				Writer:    writer,
				Retriever: deps.Retriever,
				Searcher:  deps.Searcher,
				Fetcher:   deps.Fetcher,
				Prompts:   prompts,
			},
			Prompts: prompts,
			Config:  deps.Loop,
		},
		now: time.Now,
	}

	graphRunner, err := c.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	c.graphRunner = graphRunner

	return c, nil
}

// HandleMessage runs one user turn and returns the event stream for it. The
// channel carries content deltas and tool notices, ends with exactly one
// done or error event, then closes. The turn holds the thread's exclusive
// section until the channel closes.
func (c *Coach) HandleMessage(ctx context.Context, threadID string, text string) <-chan loopx.Event {
	threadID = strings.TrimSpace(threadID)
	emitter := loopx.NewEmitter(ctx, eventBuffer)
	release := c.sessions.Acquire(threadID)

	go func() {
		defer emitter.Close()
		defer release()

		revert := c.sessions.Checkpoint(threadID)
		_, err := c.graphRunner.Invoke(ctx, nodex.GraphInput{
			ThreadID: threadID,
			Text:     text,
			Emitter:  emitter,
		})
		if err != nil {
			// Timeouts and the round-trip ceiling keep their committed
			// rounds; any other failure reverts the live memory so the
			// cache never drifts from the persisted record.
			if !errors.Is(err, contractx.ErrTurnTimeout) && !errors.Is(err, contractx.ErrTurnExceeded) {
				revert()
			}
			emitter.Fail(err)
		}
	}()

	return emitter.Events()
}

// Reply is the blocking form of HandleMessage: it drains the event stream
// and returns the terminal reply text.
func (c *Coach) Reply(ctx context.Context, threadID string, text string) (string, error) {
	var final string
	for ev := range c.HandleMessage(ctx, threadID, text) {
		switch ev.Type {
		case loopx.EventDone:
			final = ev.Final
		case loopx.EventError:
			return "", ev.Err
		}
	}
	if final == "" && ctx.Err() != nil {
		return "", ctx.Err()
	}
	return final, nil
}

// StartSession extracts the uploaded document, binds it to the thread as the
// session resume, and runs an opening turn so the caller gets a greeting
// grounded in the resume.
func (c *Coach) StartSession(ctx context.Context, threadID string, document []byte, filename string) (<-chan loopx.Event, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, ErrInvalidThread
	}

	resume, err := c.extractor.Extract(ctx, document, filename)
	if err != nil {
		return nil, err
	}

	if err := c.bindResume(ctx, threadID, resume); err != nil {
		return nil, err
	}

	return c.HandleMessage(ctx, threadID, sessionOpener), nil
}

func (c *Coach) bindResume(ctx context.Context, threadID string, resume string) error {
	release := c.sessions.Acquire(threadID)
	defer release()

	sess, _, err := c.sessions.GetOrCreate(ctx, contractx.SessionContext{
		ThreadID: threadID,
		Resume:   resume,
	})
	if err != nil {
		return err
	}
	if sess.Resume != resume {
		if err := c.sessions.SetResume(threadID, resume); err != nil {
			return err
		}
	}
	return c.sessions.Persist(ctx, threadID)
}
