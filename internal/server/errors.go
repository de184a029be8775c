package server

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dshills/promptcoach/internal/providers"
	"github.com/dshills/promptcoach/internal/redact"
)

// maxRawBytes bounds the raw provider text echoed back for parse failures.
const maxRawBytes = 4096

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	kind := providers.KindOf(err)
	if kind == providers.KindRetriesExhausted {
		// Report what kept failing.
		if k := providers.KindOf(providers.Cause(err)); k == providers.KindRateLimit || k == providers.KindTimeout {
			kind = k
		}
	}
	switch kind {
	case providers.KindConfiguration:
		return fiber.StatusBadRequest
	case providers.KindRateLimit:
		return fiber.StatusTooManyRequests
	case providers.KindTimeout:
		return fiber.StatusGatewayTimeout
	case providers.KindTransientServer, providers.KindParse, providers.KindRetriesExhausted:
		return fiber.StatusBadGateway
	case providers.KindCancelled:
		return fiber.StatusRequestTimeout
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	body := fiber.Map{"error": redact.Secrets(err.Error())}

	var pe *providers.Error
	if errors.As(err, &pe) {
		body["kind"] = pe.Kind.String()
		if pe.Attempts > 0 {
			body["attempts"] = pe.Attempts
		}
	}
	var last *providers.Error
	if errors.As(providers.Cause(err), &last) && last.RetryAfter > 0 {
		secs := max(1, int(math.Ceil(last.RetryAfter.Seconds())))
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
	}
	if raw, ok := providers.RawText(err); ok {
		if len(raw) > maxRawBytes {
			raw = raw[:maxRawBytes]
		}
		body["raw"] = redact.Secrets(raw)
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("error", redact.Secrets(err.Error())))
	}
	return c.Status(code).JSON(body)
}
