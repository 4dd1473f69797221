// Package dispatch runs one user turn end to end: memory-augmented
// context in, handler graph dispatch, reply out, conversation persisted.
package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tsengs/familyagent/internal/agent"
	"github.com/tsengs/familyagent/internal/llm"
	"github.com/tsengs/familyagent/internal/memory"
	"github.com/tsengs/familyagent/internal/observability"
)

// User-facing replies for failed turns. Dispatch never surfaces raw
// errors to the chat.
const (
	apologyRateLimited = "等價交換的原則告訴我們，獲得需要付出代價。今天的額度已經用完了，明天再來找我吧。"
	apologyGeneric     = "我、我才沒有出錯呢！只是稍微休息一下，請再試一次吧。"
)

// Coordinator wires the assembler, the handler graph and the store into
// one HandleTurn entry point.
type Coordinator struct {
	assembler *memory.Assembler
	runner    *agent.Runner
	root      *agent.Agent
	store     memory.Store
	metrics   *observability.Metrics
}

func NewCoordinator(assembler *memory.Assembler, runner *agent.Runner, root *agent.Agent, store memory.Store, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		assembler: assembler,
		runner:    runner,
		root:      root,
		store:     store,
		metrics:   metrics,
	}
}

// HandleTurn processes one message for one caller and always returns
// reply text. Dispatch failures map to apologies; persistence failures
// are logged and swallowed so the user still gets the reply.
func (c *Coordinator) HandleTurn(ctx context.Context, id memory.Identity, message string) string {
	start := time.Now()
	turnID := uuid.NewString()
	ctx = memory.WithIdentity(ctx, id)
	log.Printf("turn %s start for %s", turnID, id.Key())

	input, _ := c.assembler.Build(ctx, id, message)

	reply, err := c.runner.Run(ctx, c.root, input)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, llm.ErrRateLimited):
		log.Printf("turn %s rate limited: %v", turnID, err)
		reply = apologyRateLimited
		outcome = "rate_limited"
	default:
		log.Printf("turn %s failed: %v", turnID, err)
		reply = apologyGeneric
		outcome = "error"
	}

	if outcome == "ok" {
		if err := c.store.Append(ctx, id, message, reply); err != nil {
			log.Printf("turn %s persist conversation: %v", turnID, err)
			if c.metrics != nil {
				c.metrics.StoreErrors.Inc()
			}
		}
	}

	if c.metrics != nil {
		c.metrics.Turns.WithLabelValues(outcome).Inc()
		c.metrics.ObserveTurnLatency(time.Since(start))
	}
	log.Printf("turn %s done (%s) in %s", turnID, outcome, time.Since(start).Round(time.Millisecond))
	return reply
}
