package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ventry-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// errorLogSize is the number of entries kept under KeyErrorLog.
const errorLogSize = 50

// ErrorHandler renders errors in the standard format. Server errors are logged and,
// when rdb is set, pushed to the error log served by /health/errors.
func ErrorHandler(rdb *redis.Client) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}

		if code >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("trace_id", GetTraceID(c)).Str("method", c.Method()).
				Str("path", c.Path()).Msg("request failed")
			if rdb != nil {
				entry, _ := json.Marshal(map[string]interface{}{
					"time":     time.Now().UTC(),
					"trace_id": GetTraceID(c),
					"method":   c.Method(),
					"path":     c.OriginalURL(),
					"message":  err.Error(),
				})
				ctx := context.Background()
				rdb.LPush(ctx, KeyErrorLog, entry)
				rdb.LTrim(ctx, KeyErrorLog, 0, errorLogSize-1)
			}
		}
		return response.Error(c, message, code, nil)
	}
}
