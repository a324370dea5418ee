package domain

import "errors"

var (
	// ErrProductNotFound возвращается при неизвестном идентификаторе товара.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден ни в одной сессии.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotPending — заказ существует, но не ожидает подтверждения админом.
	ErrOrderNotPending = errors.New("order is not awaiting admin approval")
	// ErrCartFull — корзина достигла настроенного лимита позиций.
	ErrCartFull = errors.New("cart item limit reached")
	// ErrCredentialEmpty — пустая строка учётных данных.
	ErrCredentialEmpty = errors.New("credential cannot be empty")
	// ErrCredentialNoSeparator — в учётных данных нет разделителя (:, | или ,).
	ErrCredentialNoSeparator = errors.New("credential must contain a separator (:, | or ,)")
	// ErrCredentialTooShort — учётные данные короче минимальной длины.
	ErrCredentialTooShort = errors.New("credential is too short")
	// ErrProductIDEmpty — после санитизации от идентификатора товара ничего не осталось.
	ErrProductIDEmpty = errors.New("product id is empty after sanitization")
	// ErrOutOfStock — очередь товара пуста, выдача заказа целиком отменена.
	ErrOutOfStock = errors.New("product is out of stock")
	// ErrPromoNotFound — код промо не существует.
	ErrPromoNotFound = errors.New("promo code not found")
	// ErrPromoInactive — код промо деактивирован админом.
	ErrPromoInactive = errors.New("promo code is inactive")
	// ErrPromoExpired — срок действия кода промо истёк.
	ErrPromoExpired = errors.New("promo code is expired")
	// ErrPromoExhausted — достигнут лимит использований кода промо.
	ErrPromoExhausted = errors.New("promo code usage limit reached")
	// ErrPromoAlreadyUsed — клиент уже применял этот код промо.
	ErrPromoAlreadyUsed = errors.New("promo code already used by this customer")
	// ErrPromoBadFormat — код промо не прошёл проверку формата.
	ErrPromoBadFormat = errors.New("promo code must be alphanumeric, at least 3 characters")
	// ErrPromoBadPercent — скидка вне диапазона 1..100.
	ErrPromoBadPercent = errors.New("discount percent must be between 1 and 100")
	// ErrPromoBadExpiry — срок действия меньше одного дня.
	ErrPromoBadExpiry = errors.New("promo expiry must be at least one day")
	// ErrPromoExists — код промо с таким именем уже создан.
	ErrPromoExists = errors.New("promo code already exists")
	// ErrGatewayUnavailable — платёжный шлюз недоступен или не ответил вовремя.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrPaymentNotConfirmed — шлюз не подтвердил оплату инвойса.
	ErrPaymentNotConfirmed = errors.New("payment is not confirmed by gateway")
	// ErrUnauthorized — команда доступна только админам из whitelist.
	ErrUnauthorized = errors.New("sender is not an authorized admin")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)
