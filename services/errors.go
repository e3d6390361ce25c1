package services

import "errors"

// Ошибки бизнес-логики биллинга. Все они отклоняют конкретный запрос и
// никогда не повторяются автоматически.
var (
	ErrInvalidPlan           = errors.New("тарифный план не существует или неактивен")
	ErrPlanNotFound          = errors.New("тарифный план не найден")
	ErrAlreadyActive         = errors.New("у учебного заведения уже есть принятая подписка")
	ErrNoSubscription        = errors.New("подписка не найдена")
	ErrInvalidOrExpiredToken = errors.New("токен принятия недействителен или истек")
	ErrNotOnTrial            = errors.New("подписка не находится в пробном периоде")
	ErrInvalidDays           = errors.New("количество дней должно быть не меньше 1")
	ErrInvalidBillingCycle   = errors.New("недопустимый цикл тарификации")
	ErrMissingPaymentFields  = errors.New("сумма и идентификатор транзакции обязательны")
	ErrInvalidStatus         = errors.New("недопустимый статус подписки")
	ErrConflict              = errors.New("конфликт одновременного изменения подписки")
)
