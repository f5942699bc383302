package endpoint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/logger"
	"github.com/Pret-a-LLOD/Fintan/observability"
	"github.com/Pret-a-LLOD/Fintan/resilience"
)

// fetch GETs url, retrying transport failures and 5xx responses. The body
// is streamed to the caller.
func (r *Resolver) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanFetch)
	defer span.End()
	span.SetAttributes(attribute.String(observability.AttrRef, url))

	cfg := r.retry
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		r.log.Warn("Fetch failed, retrying", logger.Fields(
			logger.FieldRef, url,
			"attempt", attempt,
			"backoff", backoff.String(),
			logger.FieldError, err.Error(),
		))
	}

	body, err := resilience.Retry(ctx, cfg, func() (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, apperrors.ConfigInvalid("invalid URL: " + url).WithCause(err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, apperrors.ExternalServiceError(url, err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			statusErr := fmt.Errorf("unexpected status %s", resp.Status)
			if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
				return nil, resilience.WithRetryAfter(apperrors.ExternalServiceError(url, statusErr), resilience.ParseRetryAfter(resp.Header))
			}
			return nil, apperrors.Resource(url, statusErr)
		}
		return resp.Body, nil
	})
	if err != nil {
		observability.SetSpanError(ctx, err)
		if _, ok := apperrors.AsAppError(err); ok {
			return nil, err
		}
		return nil, apperrors.Resource(url, err)
	}
	return body, nil
}
