package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler renders ops-surface errors as JSON. Client errors are logged at
// debug so probes with bad paths do not flood the log.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("ops request failed", fields...)
		} else {
			logger.Debug("ops request rejected", fields...)
		}

		message := err.Error()
		if code >= fiber.StatusInternalServerError {
			message = "internal error"
		}
		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
