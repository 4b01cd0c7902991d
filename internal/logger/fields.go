package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldPlatform is the structured log field key for the job board name.
	FieldPlatform = "platform"
	// FieldRunID is the structured log field key for the scrape run identifier.
	FieldRunID = "run_id"
	// FieldRequester is the structured log field key for whoever triggered a run.
	FieldRequester = "requester"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches the provided fields to the logger. A nil logger becomes
// a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	logger = OrNop(logger)

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// SourceFields returns the fields that identify one source inside one run.
func SourceFields(platform, runID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldPlatform, Value: platform},
		StringField{Key: FieldRunID, Value: runID},
	)
}

// ForSource attaches SourceFields to the provided logger.
func ForSource(logger *zap.Logger, platform, runID string) *zap.Logger {
	return WithFields(logger, SourceFields(platform, runID)...)
}
