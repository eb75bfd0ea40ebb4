// Package summarizer bounds conversation memory growth. When a thread's
// history reaches the configured threshold, the old messages are compressed
// into a rolling summary and pruned down to the most recent exchange.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	memoryx "github.com/dhrits/job-hopper/agent/memory"
	promptx "github.com/dhrits/job-hopper/agent/prompt"
)

const (
	DefaultThreshold = 60
	DefaultKeepLast  = 2
)

type Config struct {
	// Threshold is the message count at which compaction runs.
	Threshold int `envconfig:"THRESHOLD" split_words:"true" default:"60"`
	// KeepLast is how many trailing messages survive a compaction verbatim.
	KeepLast int `envconfig:"KEEP_LAST" split_words:"true" default:"2"`
}

type Summarizer struct {
	completer contractx.Completer
	prompts   promptx.PromptSet
	threshold int
	keepLast  int
}

func New(completer contractx.Completer, prompts promptx.PromptSet, cfg Config) *Summarizer {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	keepLast := cfg.KeepLast
	if keepLast <= 0 {
		keepLast = DefaultKeepLast
	}
	return &Summarizer{
		completer: completer,
		prompts:   prompts,
		threshold: threshold,
		keepLast:  keepLast,
	}
}

// Compact is a no-op below the threshold. At or above it, one completion call
// produces the new summary (extending the previous one when present), then
// the history is pruned to the last keepLast messages. The compression is
// one-way: pruned content survives only as summary gist.
//
// Memory is not touched until the completion succeeds, so a failed call
// leaves the thread in its pre-summarization state.
func (s *Summarizer) Compact(ctx context.Context, mem *memoryx.ConversationMemory) (bool, error) {
	if mem.Len() < s.threshold {
		return false, nil
	}

	instruction := s.prompts.SummaryInitial
	if prior := mem.Summary(); prior != "" {
		instruction = promptx.Render(s.prompts.SummaryExtend, map[string]string{"summary": prior})
	}

	msgs := append(mem.Messages(), contractx.NewUserMessage(instruction))
	reply, err := s.completer.Complete(ctx, msgs, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", contractx.ErrSummarization, err)
	}

	summary := strings.TrimSpace(reply.Content)
	if summary == "" {
		return false, fmt.Errorf("%w: model returned an empty summary", contractx.ErrSummarization)
	}

	mem.ReplaceSummary(summary)
	removed := mem.Prune(s.keepLast)

	log.Debug().
		Str("thread_id", mem.ThreadID()).
		Int("removed", len(removed)).
		Int("kept", mem.Len()).
		Msg("conversation memory compacted")

	return true, nil
}
