// Package main is a synthetic-intent emulator: it fabricates one intent
// envelope per tick and publishes it straight to the state fabric, without
// running the scheduler or any bank's decision logic. Useful for exercising
// the fabric/intent-protocol plumbing and the CCP's margin-call handling in
// isolation. Grounded on original_source/central/agent_emulator.py, ported
// from its HTTP-POST loop to a direct fabric.Publish loop (spec.md §1 has no
// HTTP API in scope beyond the ops surface).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paynet/interbank-ccp/internal/fabric"
	"github.com/paynet/interbank-ccp/internal/intent"
	"github.com/redis/go-redis/v9"
)

func main() {
	nAgents := flag.Int("agents", 5, "number of synthetic bank agents")
	ticks := flag.Int("ticks", 0, "number of intents to emit (0 = run until interrupted)")
	interval := flag.Duration("interval", 2*time.Second, "delay between emitted intents")
	redisAddr := flag.String("redis", "", "Redis address to publish against (empty = in-memory)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	agents := make([]string, *nAgents)
	for i := range agents {
		agents[i] = fmt.Sprintf("bank_%02d", i)
	}

	var store fabric.Store = fabric.NewMemStore()
	if *redisAddr != "" {
		store = fabric.NewRedisStore(redis.NewClient(&redis.Options{Addr: *redisAddr}))
	}
	store = fabric.NewResilientStore(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[emulate] stopping...")
		cancel()
	}()

	rng := rand.New(rand.NewSource(*seed))
	log.Printf("[emulate] emitting synthetic intents for %d agents against the fabric", *nAgents)

	tick := 0
	for *ticks == 0 || tick < *ticks {
		tick++
		select {
		case <-ctx.Done():
			return
		default:
		}

		env := randomIntent(rng, tick, agents)
		if err := fabric.Publish(ctx, store, env); err != nil {
			log.Printf("[emulate] tick %d: publish %s: %v", tick, env.ActionType, err)
		} else {
			log.Printf("[emulate] tick %d: %s from %s -> %v", tick, env.ActionType, env.AgentID, env.Payload)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(*interval):
		}
	}
}

// generators mirrors the original emulator's GENERATORS list: one synthetic
// envelope builder per representative action shape.
var generators = []func(rng *rand.Rand, tick int, agents []string) intent.Envelope{
	generateLending,
	generateOTC,
	generateRepay,
	generateFireSale,
	generateMarginCallPay,
	generateDepositDefaultFund,
}

// randomIntent picks a random other agent, then a random generator — with a
// 5% chance of a voluntary default instead, matching the original's
// "random.random() < 0.05" branch.
func randomIntent(rng *rand.Rand, tick int, agents []string) intent.Envelope {
	agent := agents[rng.Intn(len(agents))]
	if rng.Float64() < 0.05 {
		return generateDefault(rng, tick, agent, agents)
	}
	gen := generators[rng.Intn(len(generators))]
	return gen(rng, tick, agents)
}

func randomOther(rng *rand.Rand, agents []string, exclude string) string {
	if len(agents) == 1 {
		return agents[0]
	}
	for {
		t := agents[rng.Intn(len(agents))]
		if t != exclude {
			return t
		}
	}
}

func generateLending(rng *rand.Rand, tick int, agents []string) intent.Envelope {
	agent := agents[rng.Intn(len(agents))]
	target := randomOther(rng, agents, agent)
	return intent.New(tick, agent, intent.ActionProvideInterbankCredit, intent.Private, intent.Payload{
		"target_agent_id": target,
		"principal":       float64(50 + rng.Intn(150)),
	})
}

func generateOTC(rng *rand.Rand, tick int, agents []string) intent.Envelope {
	agent := agents[rng.Intn(len(agents))]
	target := randomOther(rng, agents, agent)
	return intent.New(tick, agent, intent.ActionRouteOTCProposal, intent.Private, intent.Payload{
		"target_agent_id": target,
		"encrypted_content": map[string]any{
			"type": "otc_loan_offer", "amount": float64(50 + rng.Intn(150)), "interest_rate": 0.05,
		},
	})
}

func generateRepay(rng *rand.Rand, tick int, agents []string) intent.Envelope {
	agent := agents[rng.Intn(len(agents))]
	return intent.New(tick, agent, intent.ActionRepayInterbankLoan, intent.Public, intent.Payload{
		"principal": float64(10 + rng.Intn(90)),
		"interest":  float64(rng.Intn(50)),
	})
}

func generateFireSale(rng *rand.Rand, tick int, agents []string) intent.Envelope {
	agent := agents[rng.Intn(len(agents))]
	return intent.New(tick, agent, intent.ActionFireSaleAsset, intent.Public, intent.Payload{
		"asset_id": "liquid_bond",
		"quantity": float64(1 + rng.Intn(10)),
	})
}

func generateMarginCallPay(rng *rand.Rand, tick int, agents []string) intent.Envelope {
	agent := agents[rng.Intn(len(agents))]
	return intent.New(tick, agent, intent.ActionPayMarginCall, intent.Private, intent.Payload{
		"target_agent_id": agent,
		"amount":          float64(5 + rng.Intn(20)),
	})
}

func generateDepositDefaultFund(rng *rand.Rand, tick int, agents []string) intent.Envelope {
	agent := agents[rng.Intn(len(agents))]
	return intent.New(tick, agent, intent.ActionDepositDefaultFund, intent.Public, intent.Payload{
		"amount": float64(10 + rng.Intn(40)),
	})
}

func generateDefault(rng *rand.Rand, tick int, agent string, agents []string) intent.Envelope {
	return intent.New(tick, agent, intent.ActionDeclareDefault, intent.Public, intent.Payload{
		"reason": "emulated",
	})
}
