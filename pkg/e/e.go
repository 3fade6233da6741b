package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")

	// Ошибки векторного индекса
	ErrDimMismatch     = fmt.Errorf("vector dimension mismatch")
	ErrNotTrained      = fmt.Errorf("index is not trained")
	ErrInvalidPosition = fmt.Errorf("invalid index position")
	ErrUnknownStrategy = fmt.Errorf("unknown index strategy")
	ErrCorruptIndex    = fmt.Errorf("corrupt index data")

	// Ошибки реестра идентификаторов
	ErrDuplicateID = fmt.Errorf("duplicate item id")

	// Ошибки жизненного цикла индекса
	ErrIndexUnavailable    = fmt.Errorf("index is not available")
	ErrBuildFailed         = fmt.Errorf("index build failed")
	ErrRebuildInProgress   = fmt.Errorf("index rebuild already in progress")
	ErrArtifactNotFound    = fmt.Errorf("index artifact not found")
	ErrArtifactIncomplete  = fmt.Errorf("index artifact is incomplete")
	ErrArtifactMismatch    = fmt.Errorf("index artifact does not match its mapping")
	ErrEmptyVectors        = fmt.Errorf("empty vectors")
	ErrObjectNotFound      = fmt.Errorf("object not found")
	ErrSourceNotConfigured = fmt.Errorf("source is not configured")

	// Ошибки кэша
	ErrCacheUnavailable = fmt.Errorf("cache backend unavailable")

	// 400 Bad Request
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrEmptyBatch      = fmt.Errorf("empty batch: %w", ErrInvalidArgument)
	ErrBatchTooLarge   = fmt.Errorf("batch too large: %w", ErrInvalidArgument)

	// 404 Not Found
	ErrNotFound = fmt.Errorf("item not found")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
