package quizgen

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"quiztube/internal/domain"

	openai "github.com/sashabaranov/go-openai"
)

// statusPattern finds the HTTP status in messages such as "googleapi: Error 401: ..."
// or "API returned unexpected status code: 503: ...".
var statusPattern = regexp.MustCompile(`(?:error|status code:?|status:?)\s+(\d{3})\b`)

// classifyError maps client failures onto domain errors for the synthesize stage.
// Context errors pass through so the pipeline can report the stage timeout.
func classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests || code == "insufficient_quota":
			return domain.NewQuotaExceededError(domain.StageSynthesize, err)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return domain.NewNetworkError(domain.StageSynthesize, err)
		default:
			return domain.NewQuizGenerationError("model request rejected", err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.HTTPStatusCode == http.StatusTooManyRequests:
			return domain.NewQuotaExceededError(domain.StageSynthesize, err)
		case reqErr.HTTPStatusCode == 0 || reqErr.HTTPStatusCode >= http.StatusInternalServerError:
			return domain.NewNetworkError(domain.StageSynthesize, err)
		default:
			return domain.NewQuizGenerationError("model request rejected", err).
				WithContext("http_status", reqErr.HTTPStatusCode)
		}
	}

	// Dial, TLS and read failures, including *url.Error from the provider's HTTP client.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.NewNetworkError(domain.StageSynthesize, err)
	}

	// langchaingo providers surface quota failures and HTTP statuses only through their messages.
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "resource_exhausted", "quota", "rate limit"} {
		if strings.Contains(msg, marker) {
			return domain.NewQuotaExceededError(domain.StageSynthesize, err)
		}
	}
	if m := statusPattern.FindStringSubmatch(msg); m != nil {
		status, _ := strconv.Atoi(m[1])
		if status >= http.StatusInternalServerError {
			return domain.NewNetworkError(domain.StageSynthesize, err)
		}
		return domain.NewQuizGenerationError("model request rejected", err).WithContext("http_status", status)
	}

	// Auth, unknown model and malformed request failures do not improve on retry.
	return domain.NewQuizGenerationError("model request failed", err)
}
