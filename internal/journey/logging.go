package journey

import (
	"errors"

	"go.uber.org/zap"
)

var noOpLogger = zap.NewNop()

// logFailure writes one entry per failed operation. Caller mistakes log at info,
// storage and setup defects at error, and catalog gaps additionally carry alert=true.
func logFailure(logger *zap.Logger, operation string, err error, fields ...zap.Field) {
	if logger == nil {
		logger = noOpLogger
	}
	attrs := []zap.Field{zap.String("operation", operation)}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		attrs = append(attrs, zap.String("code", serviceErr.Code()), zap.String("kind", serviceErr.Kind().Error()))
	}
	attrs = append(attrs, zap.Error(err))
	attrs = append(attrs, fields...)

	switch {
	case errors.Is(err, ErrCatalogGap):
		attrs = append(attrs, zap.Bool("alert", true))
		logger.Error("journey catalog integrity failure", attrs...)
	case errors.Is(err, ErrInternal), errors.Is(err, ErrNotInitialized):
		logger.Error("journey service error", attrs...)
	default:
		logger.Info("journey request rejected", attrs...)
	}
}
