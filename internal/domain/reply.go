package domain

// Reply — закрытое объединение вариантов ответа бота. Вызывающая
// сторона обязана обработать каждый вариант явно, вместо проверки
// наличия полей в произвольной структуре.
type Reply interface {
	reply()
}

// TextReply — обычный текстовый ответ отправителю.
type TextReply struct {
	Text string
}

// DeliveryReply — ответ отправителю плюс доставка сообщения другому
// клиенту (выдача товара после подтверждения оплаты).
type DeliveryReply struct {
	Text         string
	CustomerID   string
	CustomerText string
}

// BroadcastReply — ответ отправителю плюс рассылка всем активным клиентам.
type BroadcastReply struct {
	Text       string
	Recipients []string
	Message    string
}

func (TextReply) reply()      {}
func (DeliveryReply) reply()  {}
func (BroadcastReply) reply() {}
