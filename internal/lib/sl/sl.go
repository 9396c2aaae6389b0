// Package sl содержит вспомогательные функции для структурированного
// логирования через slog, общие для всех процессов биллингового движка.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и текстом ошибки. Все сервисы
// движка логируют ошибки этим атрибутом, чтобы поле называлось одинаково.
//
// Пример:
//
//	log.Error("failed to charge subscription", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}
