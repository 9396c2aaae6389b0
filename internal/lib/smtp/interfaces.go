// Package smtp реализует транспорт почтовых уведомлений биллинга:
// неудачные списания, низкий остаток и итоги автопродлений уходят письмами
// через STARTTLS-соединение.
package smtp

import "io"

// Client покрывает команды SMTP-сессии, нужные для отправки одного письма.
// За интерфейсом прячется *smtp.Client, в тестах — мок.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface открывает SMTP-сессии для сервиса уведомлений.
type TransportInterface interface {
	Connect() (Client, error)
	GetSMTPUser() string
}
