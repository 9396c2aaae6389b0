package rabbitmq

// QueueConfig описывает очередь и ключ маршрутизации в обменнике billing.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetBillingQueues возвращает очереди биллинговых событий.
func GetBillingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "billing.events", RoutingKey: "events"},
	}
}
