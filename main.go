package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	coachx "github.com/dhrits/job-hopper/agent/agents/coach"
	llmx "github.com/dhrits/job-hopper/agent/llm"
	loopx "github.com/dhrits/job-hopper/agent/loop"
	memoryx "github.com/dhrits/job-hopper/agent/memory"
	promptx "github.com/dhrits/job-hopper/agent/prompt"
	summarizerx "github.com/dhrits/job-hopper/agent/summarizer"
	configx "github.com/dhrits/job-hopper/pkg/config"
	extractx "github.com/dhrits/job-hopper/pkg/extract"
	fetchx "github.com/dhrits/job-hopper/pkg/fetch"
	_ "github.com/dhrits/job-hopper/pkg/logger/autoload"
	openaiclientx "github.com/dhrits/job-hopper/pkg/openaiclient"
	tavilyx "github.com/dhrits/job-hopper/pkg/tavily"
)

type AppConfig struct {
	StoreBackend string `envconfig:"STORE_BACKEND" split_words:"true" default:"memory"`
	ResumePath   string `envconfig:"RESUME_PATH" split_words:"true"`
	ThreadID     string `envconfig:"THREAD_ID" split_words:"true"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("APP")

	llmCfg := configx.MustNew[llmx.Config]("OPENAI")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}

	coachModel := mustClient(llmCfg.ClientFor(llmx.PurposeCoach))
	summarizerModel := mustClient(llmCfg.ClientFor(llmx.PurposeSummarizer))
	writerModel := mustClient(llmCfg.ClientFor(llmx.PurposeWriter))

	backend := newStoreBackend(appCfg.StoreBackend)
	sessions := memoryx.NewSessionStore(backend)

	tavilyCfg := configx.MustNew[tavilyx.Config]("TAVILY")
	searcher := tavilyx.MustNew(*tavilyCfg)

	fetchCfg := configx.MustNew[fetchx.Config]("FETCH")
	fetcher := fetchx.NewClient(*fetchCfg)

	summarizerCfg := configx.MustNew[summarizerx.Config]("SUMMARIZER")
	summarizer := summarizerx.New(summarizerModel, promptx.LoadPromptSet(), *summarizerCfg)

	loopCfg := configx.MustNew[loopx.Config]("")

	coach, err := coachx.New(coachx.Deps{
		Sessions:   sessions,
		Model:      coachModel,
		Writer:     writerModel,
		Summarizer: summarizer,
		Retriever:  searcher,
		Searcher:   searcher,
		Fetcher:    fetcher,
		Extractor:  extractx.New(),
		Loop:       *loopCfg,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble coach")
	}

	threadID := strings.TrimSpace(appCfg.ThreadID)
	if threadID == "" {
		threadID = uuid.NewString()
	}

	ctx := context.Background()
	if path := strings.TrimSpace(appCfg.ResumePath); path != "" {
		document, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to read resume")
		}
		events, err := coach.StartSession(ctx, threadID, document, path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start session")
		}
		drainEvents(events)
	}

	fmt.Printf("thread %s ready. Type a message, or \"exit\" to quit.\n", threadID)
	runChat(ctx, coach, threadID)
}

func runChat(ctx context.Context, coach *coachx.Coach, threadID string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return
		}
		drainEvents(coach.HandleMessage(ctx, threadID, text))
	}
}

func drainEvents(events <-chan loopx.Event) {
	for ev := range events {
		switch ev.Type {
		case loopx.EventContentDelta:
			fmt.Print(ev.Delta)
		case loopx.EventToolPending:
			fmt.Printf("\n[running %s...]\n", ev.Tool)
		case loopx.EventDone:
			fmt.Println()
		case loopx.EventError:
			fmt.Printf("\nerror: %v\n", ev.Err)
		}
	}
}

func newStoreBackend(kind string) memoryx.Store {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "memory":
		return nil
	case "upstash":
		cfg := configx.MustNew[memoryx.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := memoryx.NewUpstashRedisStore(*cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build upstash store")
		}
		return store
	case "postgres":
		cfg := configx.MustNew[memoryx.PostgresConfig]("POSTGRES")
		store, err := memoryx.NewPostgresStore(*cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build postgres store")
		}
		if err := store.Init(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to init postgres schema")
		}
		return store
	default:
		log.Fatal().Str("backend", kind).Msg("unknown store backend")
		return nil
	}
}

func mustClient(cfg openaiclientx.Config) *llmx.Client {
	client, err := llmx.NewClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build llm client")
	}
	return client
}
