package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/llmgate/llmgate/internal/sse"
)

// refreshGate serializes credential refreshes per adapter. Concurrent calls
// that all hit a 401 issue one refresh; late arrivals observe the bumped
// generation and skip their own.
type refreshGate struct {
	mu  sync.Mutex
	gen uint64
}

func (g *refreshGate) generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// refreshOnce runs fn unless another caller already refreshed past the
// observed generation.
func (g *refreshGate) refreshOnce(ctx context.Context, observed uint64, fn func(context.Context) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != observed {
		return nil
	}
	if fn == nil {
		return fmt.Errorf("credential refresh not supported")
	}
	if err := fn(ctx); err != nil {
		return err
	}
	g.gen++
	return nil
}

// transport is the shared HTTP execution layer: auth-refresh on 401/400 once
// per call, exponential backoff on 429 and 5xx.
type transport struct {
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	gate       refreshGate
	refresh    func(context.Context) error
}

// do executes build() until success or the retry budget runs out. build must
// return a fresh request each attempt so the body can be re-read.
func (t *transport) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, *ErrorMessage) {
	refreshed := false

	for attempt := 0; ; attempt++ {
		observed := t.gate.generation()
		req, err := build(ctx)
		if err != nil {
			return nil, NewErrorMessage(fmt.Errorf("build request: %w", err))
		}
		resp, err := t.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, NewErrorMessage(ctx.Err())
			}
			if attempt < t.maxRetries {
				if !t.sleep(ctx, attempt) {
					return nil, NewErrorMessage(ctx.Err())
				}
				continue
			}
			return nil, NewErrorMessage(err)
		}

		switch {
		case resp.StatusCode < 400:
			return resp, nil

		case (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest) && !refreshed:
			body := drain(resp)
			refreshed = true
			if err = t.gate.refreshOnce(ctx, observed, t.refresh); err != nil {
				return nil, &ErrorMessage{StatusCode: resp.StatusCode, Error: fmt.Errorf("refresh after %d: %w (%s)", resp.StatusCode, err, body)}
			}
			log.Debugf("retrying after credential refresh, status %d", resp.StatusCode)
			continue

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			body := drain(resp)
			if attempt < t.maxRetries {
				if !t.sleep(ctx, attempt) {
					return nil, NewErrorMessage(ctx.Err())
				}
				continue
			}
			return nil, &ErrorMessage{StatusCode: resp.StatusCode, Error: fmt.Errorf("upstream error %d: %s", resp.StatusCode, body)}

		default:
			body := drain(resp)
			return nil, &ErrorMessage{StatusCode: resp.StatusCode, Error: fmt.Errorf("upstream error %d: %s", resp.StatusCode, body)}
		}
	}
}

// sleep waits base_delay * 2^attempt, abandoning the wait on cancellation.
func (t *transport) sleep(ctx context.Context, attempt int) bool {
	delay := t.baseDelay * (1 << attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func drain(resp *http.Response) string {
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	return string(body)
}

// pumpSSE reads data payloads off resp and forwards them to out, appending
// the terminal "[DONE]" chunk. Single-event decode problems never abort the
// stream; they surface as io errors from the decoder only when the
// connection itself breaks.
func pumpSSE(ctx context.Context, resp *http.Response, out chan<- []byte, errs chan<- *ErrorMessage) {
	defer func() { _ = resp.Body.Close() }()
	defer close(out)
	defer close(errs)

	decoder := sse.NewDecoder(resp.Body)
	delivered := false
	for {
		payload, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				errs <- NewErrorMessage(ctx.Err())
				return
			}
			if !delivered {
				errs <- NewErrorMessage(fmt.Errorf("read stream: %w", err))
				return
			}
			log.Warnf("stream interrupted after delivery: %v", err)
			break
		}
		if len(payload) == 0 {
			continue
		}
		if string(payload) == "[DONE]" {
			break
		}
		delivered = true
		select {
		case out <- payload:
		case <-ctx.Done():
			errs <- NewErrorMessage(ctx.Err())
			return
		}
	}

	select {
	case out <- []byte("[DONE]"):
	case <-ctx.Done():
	}
}
