package domain

import "errors"

// Классы ошибок ядра. Хендлеры маппят их в HTTP-статусы через errors.Is;
// подробности добавляются через fmt.Errorf("%w: ...").
var (
	ErrNotFound           = errors.New("not found")
	ErrNameConflict       = errors.New("name conflict")
	ErrInvalidMove        = errors.New("invalid move")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrForbidden          = errors.New("forbidden")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrQuotaExceeded      = errors.New("not enough storage space available")
)
