package domain

import "time"

// Promo описывает промокод со скидкой в процентах.
type Promo struct {
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	ExpiresAt       time.Time `json:"expires_at"`
	MaxUses         int       `json:"max_uses"`
	CurrentUses     int       `json:"current_uses"`
	CreatedAt       time.Time `json:"created_at"`
	IsActive        bool      `json:"is_active"`
}

// Discount — результат применения скидки к сумме заказа.
type Discount struct {
	OriginalUSD int64
	AmountUSD   int64
	FinalUSD    int64
	Percent     int
}

// DiscountUSD считает размер скидки от суммы с округлением к ближайшей
// целой единице. Единая точка округления: корзина и промо-сервис
// обязаны сходиться в сумме к оплате.
func DiscountUSD(amountUSD int64, percent int) int64 {
	if amountUSD <= 0 || percent <= 0 {
		return 0
	}
	return (amountUSD*int64(percent) + 50) / 100
}

// PromoStats агрегирует использование одного промокода.
type PromoStats struct {
	Code            string
	DiscountPercent int
	TotalUses       int
	RemainingUses   int
	ExpiresInDays   int
	IsActive        bool
	IsExpired       bool
}
