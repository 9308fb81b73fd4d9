// hyperstack_throttle.go
//
// Standalone program hammering a scripted mock upstream to observe the token
// bucket and retry behavior under load: the first burst goes through
// instantly, the rest drain at the configured requests-per-minute rate, and
// scripted 429/500 responses exercise the backoff path.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	hyperbridge "github.com/nexgencloud/hyper-bridge"
	"github.com/nexgencloud/hyper-bridge/mock"
)

func main() {
	upstream := mock.NewUpstream()
	defer upstream.Close()

	// A couple of transient failures early on to watch retries kick in.
	upstream.EnqueueStatus(500, `{"error":"internal"}`)
	upstream.Enqueue(mock.ScriptedResponse{
		StatusCode: 429,
		Headers:    map[string]string{"Retry-After": "1"},
		Body:       `{"error":"rate limited"}`,
	})

	cfg := hyperbridge.DefaultConfig()
	cfg.BaseURL = upstream.URL()
	cfg.MaxConnections = 4
	cfg.MaxKeepaliveConnections = 4
	cfg.RateLimitRequestsPerMinute = 120 // 2 per second
	cfg.RateLimitBurst = 5
	cfg.RetryBaseBackoff = 200 * time.Millisecond

	logger := hclog.New(&hclog.LoggerOptions{Name: "throttle", Level: hclog.Debug})

	client, err := hyperbridge.New(cfg, hyperbridge.WithLogger(logger))
	if err != nil {
		log.Fatalf("Error creating client: %v", err)
	}
	defer client.Close()

	const total = 15
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req := &hyperbridge.NormalizedRequest{
				Method:     http.MethodGet,
				Path:       fmt.Sprintf("/core/virtual-machines?page=%d", n),
				Idempotent: true,
			}
			resp, err := client.Request(context.Background(), req)
			if err != nil {
				fmt.Printf("request %d failed after %v: %v\n", n, time.Since(start), err)
				return
			}
			fmt.Printf("request %d done in %v (status %d)\n", n, time.Since(start), resp.StatusCode)
		}(i)
	}
	wg.Wait()

	fmt.Printf("served %d upstream requests in %v (burst %d, then ~2/s)\n",
		upstream.RequestCount(), time.Since(start), cfg.RateLimitBurst)
}
