// Package stats keeps running usage profiles of model and tool calls in Redis.
package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dileep-u-k/openapi-agent/internal/api"
)

// Kind separates model profiles from tool profiles in the key space.
type Kind string

const (
	KindModel Kind = "model"
	KindTool  Kind = "tool"
)

const (
	statusOnline   = "online"
	statusDegraded = "degraded"

	// latencyAlpha weights the newest sample in the moving average.
	latencyAlpha = 0.1
)

// Profile is the aggregated record of one model or tool.
type Profile struct {
	Kind              Kind      `json:"kind" redis:"kind"`
	Name              string    `json:"name" redis:"name"`
	AvgLatencyMS      int64     `json:"avg_latency_ms" redis:"avg_latency_ms"`
	Status            string    `json:"status" redis:"status"`
	ErrorRate         float64   `json:"error_rate" redis:"error_rate"`
	TotalSuccesses    int64     `json:"total_successes" redis:"total_successes"`
	TotalFailures     int64     `json:"total_failures" redis:"total_failures"`
	TotalInputTokens  int64     `json:"total_input_tokens" redis:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens" redis:"total_output_tokens"`
	LastSeen          time.Time `json:"last_seen" redis:"last_seen"`
}

// Profiler records call outcomes. A nil *Profiler is valid and records nothing,
// which is how the agent runs when no Redis is configured.
type Profiler struct {
	rdb redis.UniversalClient
}

// NewProfiler wraps a Redis client.
func NewProfiler(rdb redis.UniversalClient) *Profiler {
	return &Profiler{rdb: rdb}
}

func profileKey(kind Kind, name string) string {
	return fmt.Sprintf("profile:%s:%s", kind, name)
}

// Get returns the profile of name. A profile that was never recorded is
// returned zero-valued with Status empty.
func (p *Profiler) Get(ctx context.Context, kind Kind, name string) (*Profile, error) {
	if p == nil {
		return nil, errors.New("stats profiler is not configured")
	}
	data, err := p.rdb.HGetAll(ctx, profileKey(kind, name)).Result()
	if err != nil {
		return nil, err
	}
	profile := &Profile{Kind: kind, Name: name}
	if len(data) == 0 {
		return profile, nil
	}
	profile.AvgLatencyMS, _ = strconv.ParseInt(data["avg_latency_ms"], 10, 64)
	profile.Status = data["status"]
	profile.ErrorRate, _ = strconv.ParseFloat(data["error_rate"], 64)
	profile.TotalSuccesses, _ = strconv.ParseInt(data["total_successes"], 10, 64)
	profile.TotalFailures, _ = strconv.ParseInt(data["total_failures"], 10, 64)
	profile.TotalInputTokens, _ = strconv.ParseInt(data["total_input_tokens"], 10, 64)
	profile.TotalOutputTokens, _ = strconv.ParseInt(data["total_output_tokens"], 10, 64)
	profile.LastSeen, _ = time.Parse(time.RFC3339Nano, data["last_seen"])
	return profile, nil
}

// RecordModelSuccess folds one successful model call into the model's profile.
func (p *Profiler) RecordModelSuccess(ctx context.Context, model string, latency time.Duration, usage api.Usage) {
	p.recordSuccess(ctx, KindModel, model, latency, usage)
}

// RecordModelFailure counts one failed model call.
func (p *Profiler) RecordModelFailure(ctx context.Context, model string) {
	p.recordFailure(ctx, KindModel, model)
}

// RecordTool folds one tool execution into the tool's profile.
func (p *Profiler) RecordTool(ctx context.Context, tool string, latency time.Duration, success bool) {
	if success {
		p.recordSuccess(ctx, KindTool, tool, latency, api.Usage{})
		return
	}
	p.recordFailure(ctx, KindTool, tool)
}

func (p *Profiler) recordSuccess(ctx context.Context, kind Kind, name string, latency time.Duration, usage api.Usage) {
	if p == nil {
		return
	}
	key := profileKey(kind, name)

	err := p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "avg_latency_ms").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next := latency.Milliseconds()
		if current != "" {
			prev, _ := strconv.ParseInt(current, 10, 64)
			next = int64(latencyAlpha*float64(latency.Milliseconds()) + (1.0-latencyAlpha)*float64(prev))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "avg_latency_ms", next)
			return nil
		})
		return err
	}, key)
	if err != nil {
		log.Printf("⚠️ Error updating latency for %s %s: %v", kind, name, err)
	}

	pipe := p.rdb.Pipeline()
	successes := pipe.HIncrBy(ctx, key, "total_successes", 1)
	failures := pipe.HGet(ctx, key, "total_failures")
	if usage.InputTokens > 0 || usage.OutputTokens > 0 {
		pipe.HIncrBy(ctx, key, "total_input_tokens", int64(usage.InputTokens))
		pipe.HIncrBy(ctx, key, "total_output_tokens", int64(usage.OutputTokens))
	}
	pipe.HSet(ctx, key, "kind", string(kind), "name", name, "status", statusOnline,
		"last_seen", time.Now().UTC().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("⚠️ Error in success update pipeline for %s %s: %v", kind, name, err)
		return
	}

	totalFailures, _ := strconv.ParseInt(failures.Val(), 10, 64)
	p.storeErrorRate(ctx, key, totalFailures, successes.Val()+totalFailures)
}

func (p *Profiler) recordFailure(ctx context.Context, kind Kind, name string) {
	if p == nil {
		return
	}
	key := profileKey(kind, name)

	pipe := p.rdb.Pipeline()
	failures := pipe.HIncrBy(ctx, key, "total_failures", 1)
	successes := pipe.HGet(ctx, key, "total_successes")
	pipe.HSet(ctx, key, "kind", string(kind), "name", name, "status", statusDegraded,
		"last_seen", time.Now().UTC().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("⚠️ Error in failure update pipeline for %s %s: %v", kind, name, err)
		return
	}

	totalSuccesses, _ := strconv.ParseInt(successes.Val(), 10, 64)
	p.storeErrorRate(ctx, key, failures.Val(), totalSuccesses+failures.Val())
}

func (p *Profiler) storeErrorRate(ctx context.Context, key string, failures, total int64) {
	if total == 0 {
		return
	}
	if err := p.rdb.HSet(ctx, key, "error_rate", float64(failures)/float64(total)).Err(); err != nil {
		log.Printf("⚠️ Error storing error rate for %s: %v", key, err)
	}
}
