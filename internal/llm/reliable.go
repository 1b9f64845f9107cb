package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ReliableClient guards a Completer with a rate limiter and a circuit breaker.
type ReliableClient struct {
	next    Completer
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	onCall  func(err error)
}

// NewReliableClient wraps next. requestsPerSecond <= 0 disables the limiter.
// onCall, when set, is invoked after every upstream call.
func NewReliableClient(next Completer, requestsPerSecond float64, onCall func(err error)) *ReliableClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// rate limiting from the provider is not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || IsRateLimit(err)
		},
	})

	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = max(1, int(requestsPerSecond))
	}

	return &ReliableClient{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(limit, burst),
		onCall:  onCall,
	}
}

func (r *ReliableClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("waiting for AI request slot: %w", err)
	}

	res, err := r.cb.Execute(func() (interface{}, error) {
		return r.next.CreateChatCompletion(ctx, req)
	})
	if r.onCall != nil {
		r.onCall(err)
	}
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return res.(openai.ChatCompletionResponse), nil
}

// IsRateLimit reports whether err is a provider rate-limit rejection.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate") && strings.Contains(msg, "limit")
}
