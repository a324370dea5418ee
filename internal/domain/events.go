package domain

// Словарь значений OutboxMessage.EventType. Единственный источник
// имён событий для эмитентов и публикаторов.
const (
	EventSaleCompleted = "sale.completed"
	EventDeliverySent  = "delivery.sent"
	EventStockAdded    = "stock.added"
	EventStockLow      = "stock.low"
)
