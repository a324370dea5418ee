package domain

// Category ограничивает набор категорий каталога.
type Category string

const (
	// CategoryPremiumAccount — аккаунты стриминговых сервисов.
	CategoryPremiumAccount Category = "premium_accounts"
	// CategoryVirtualCard — виртуальные банковские карты.
	CategoryVirtualCard Category = "virtual_cards"
)

// Product — запись каталога. Поле Stock всегда производное:
// равно длине очереди учётных данных и никогда не пишется напрямую.
type Product struct {
	ID          string
	Name        string
	PriceUSD    int64
	Description string
	Category    Category
	Stock       int
}
