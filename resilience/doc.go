// Package resilience provides the retry and throttling helpers used when
// pipelines talk to remote services.
//
//   - Retry: retries failed operations with exponential backoff and jitter
//   - RateLimiter: paces calls to a service with a token bucket
//
// Remote inputs are fetched through Retry; the HTTP service transformer
// paces its requests with a RateLimiter and retries each call:
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "annotator", Rate: 2})
//	body, err := resilience.Retry(ctx, cfg, func() ([]byte, error) {
//	    if err := rl.Wait(ctx); err != nil {
//	        return nil, err
//	    }
//	    return post(ctx, segment)
//	})
package resilience
