package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ChannelPublisher публикует сообщения в обменник billing через открытый канал.
type ChannelPublisher struct {
	Channel *amqp.Channel
}

// Publish отправляет сообщение с заданным ключом маршрутизации.
func (p *ChannelPublisher) Publish(routingKey string, message any) error {
	return PublishMessage(p.Channel, "billing", routingKey, message)
}
