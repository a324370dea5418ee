package promo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

const (
	promosFileName = "promos.json"
	usageFileName  = "promo_usage.json"
)

// codePattern — формат кода: прописные буквы и цифры, минимум 3 символа.
var codePattern = regexp.MustCompile(`^[A-Z0-9]{3,}$`)

// Service — файловый сервис промокодов: promos.json хранит коды,
// promo_usage.json — карту customerID → использованные коды.
// Все операции выполняются под одним мьютексом, чтение и перезапись
// файлов не конкурируют.
type Service struct {
	promosPath string
	usagePath  string

	mu     sync.Mutex
	logger *log.Entry
	now    func() time.Time
}

// NewService создаёт сервис промокодов с данными в каталоге dir.
func NewService(dir string, logger *log.Entry) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create promo dir: %w", err)
	}
	if logger == nil {
		logger = log.New().WithField("component", "promo")
	}
	return &Service{
		promosPath: filepath.Join(dir, promosFileName),
		usagePath:  filepath.Join(dir, usageFileName),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// NormalizeCode приводит код к каноническому виду.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CalculateDiscount считает скидку от суммы. Округление делает
// domain.DiscountUSD, то же, что применяет корзина.
func CalculateDiscount(amountUSD int64, percent int) domain.Discount {
	discount := domain.DiscountUSD(amountUSD, percent)
	return domain.Discount{
		OriginalUSD: amountUSD,
		AmountUSD:   discount,
		FinalUSD:    amountUSD - discount,
		Percent:     percent,
	}
}

// CreatePromo создаёт новый промокод: скидка 1–100%, срок в днях ≥ 1,
// maxUses=0 — без лимита.
func (s *Service) CreatePromo(code string, discountPercent, validDays, maxUses int) (domain.Promo, error) {
	code = NormalizeCode(code)
	if !codePattern.MatchString(code) {
		return domain.Promo{}, domain.ErrPromoBadFormat
	}
	if discountPercent < 1 || discountPercent > 100 {
		return domain.Promo{}, domain.ErrPromoBadPercent
	}
	if validDays < 1 {
		return domain.Promo{}, domain.ErrPromoBadExpiry
	}
	if maxUses < 0 {
		maxUses = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	promos, err := s.loadPromos()
	if err != nil {
		return domain.Promo{}, err
	}
	if _, ok := promos[code]; ok {
		return domain.Promo{}, domain.ErrPromoExists
	}

	now := s.now()
	promo := domain.Promo{
		Code:            code,
		DiscountPercent: discountPercent,
		ExpiresAt:       now.AddDate(0, 0, validDays),
		MaxUses:         maxUses,
		CreatedAt:       now,
		IsActive:        true,
	}
	promos[code] = promo
	if err := s.savePromos(promos); err != nil {
		return domain.Promo{}, err
	}

	s.logger.WithFields(log.Fields{
		"code":     code,
		"percent":  discountPercent,
		"days":     validDays,
		"max_uses": maxUses,
	}).Info("promo created")
	return promo, nil
}

// ValidatePromo проверяет применимость кода для клиента. Порядок
// проверок фиксирован: формат → существование → активность → срок →
// лимит использований → повторное применение тем же клиентом.
func (s *Service) ValidatePromo(code, customerID string) (domain.Promo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.validateLocked(NormalizeCode(code), customerID)
}

func (s *Service) validateLocked(code, customerID string) (domain.Promo, error) {
	if !codePattern.MatchString(code) {
		return domain.Promo{}, domain.ErrPromoBadFormat
	}

	promos, err := s.loadPromos()
	if err != nil {
		return domain.Promo{}, err
	}
	promo, ok := promos[code]
	if !ok {
		return domain.Promo{}, domain.ErrPromoNotFound
	}
	if !promo.IsActive {
		return domain.Promo{}, domain.ErrPromoInactive
	}
	if s.now().After(promo.ExpiresAt) {
		return domain.Promo{}, domain.ErrPromoExpired
	}
	if promo.MaxUses > 0 && promo.CurrentUses >= promo.MaxUses {
		return domain.Promo{}, domain.ErrPromoExhausted
	}

	usage, err := s.loadUsage()
	if err != nil {
		return domain.Promo{}, err
	}
	for _, used := range usage[customerID] {
		if used == code {
			return domain.Promo{}, domain.ErrPromoAlreadyUsed
		}
	}
	return promo, nil
}

// ApplyPromo применяет код: валидация, инкремент счётчика, отметка
// использования за клиентом. Пара (код, клиент) применяется один раз.
func (s *Service) ApplyPromo(code, customerID string) (domain.Promo, error) {
	code = NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	promo, err := s.validateLocked(code, customerID)
	if err != nil {
		return domain.Promo{}, err
	}

	promos, err := s.loadPromos()
	if err != nil {
		return domain.Promo{}, err
	}
	promo = promos[code]
	promo.CurrentUses++
	promos[code] = promo
	if err := s.savePromos(promos); err != nil {
		return domain.Promo{}, err
	}

	usage, err := s.loadUsage()
	if err != nil {
		return domain.Promo{}, err
	}
	usage[customerID] = append(usage[customerID], code)
	if err := s.saveUsage(usage); err != nil {
		return domain.Promo{}, err
	}

	s.logger.WithFields(log.Fields{
		"code":        code,
		"customer_id": customerID,
		"uses":        promo.CurrentUses,
	}).Info("promo applied")
	return promo, nil
}

// ListPromos возвращает все промокоды, новые раньше старых.
func (s *Service) ListPromos() ([]domain.Promo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	promos, err := s.loadPromos()
	if err != nil {
		return nil, err
	}
	list := make([]domain.Promo, 0, len(promos))
	for _, promo := range promos {
		list = append(list, promo)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// DeletePromo удаляет код навсегда.
func (s *Service) DeletePromo(code string) error {
	code = NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	promos, err := s.loadPromos()
	if err != nil {
		return err
	}
	if _, ok := promos[code]; !ok {
		return domain.ErrPromoNotFound
	}
	delete(promos, code)
	return s.savePromos(promos)
}

// DeactivatePromo выключает код, не удаляя его историю.
func (s *Service) DeactivatePromo(code string) error {
	code = NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	promos, err := s.loadPromos()
	if err != nil {
		return err
	}
	promo, ok := promos[code]
	if !ok {
		return domain.ErrPromoNotFound
	}
	promo.IsActive = false
	promos[code] = promo
	return s.savePromos(promos)
}

// Stats возвращает сводку по использованию кода.
func (s *Service) Stats(code string) (domain.PromoStats, error) {
	code = NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	promos, err := s.loadPromos()
	if err != nil {
		return domain.PromoStats{}, err
	}
	promo, ok := promos[code]
	if !ok {
		return domain.PromoStats{}, domain.ErrPromoNotFound
	}

	now := s.now()
	stats := domain.PromoStats{
		Code:            promo.Code,
		DiscountPercent: promo.DiscountPercent,
		TotalUses:       promo.CurrentUses,
		IsActive:        promo.IsActive,
		IsExpired:       now.After(promo.ExpiresAt),
	}
	if promo.MaxUses > 0 {
		stats.RemainingUses = promo.MaxUses - promo.CurrentUses
	} else {
		stats.RemainingUses = -1 // без лимита
	}
	if !stats.IsExpired {
		stats.ExpiresInDays = int(promo.ExpiresAt.Sub(now).Hours() / 24)
	}
	return stats, nil
}

func (s *Service) loadPromos() (map[string]domain.Promo, error) {
	promos := make(map[string]domain.Promo)
	if err := loadJSON(s.promosPath, &promos); err != nil {
		return nil, fmt.Errorf("load promos: %w", err)
	}
	return promos, nil
}

func (s *Service) savePromos(promos map[string]domain.Promo) error {
	if err := saveJSON(s.promosPath, promos); err != nil {
		return fmt.Errorf("save promos: %w", err)
	}
	return nil
}

func (s *Service) loadUsage() (map[string][]string, error) {
	usage := make(map[string][]string)
	if err := loadJSON(s.usagePath, &usage); err != nil {
		return nil, fmt.Errorf("load promo usage: %w", err)
	}
	return usage, nil
}

func (s *Service) saveUsage(usage map[string][]string) error {
	if err := saveJSON(s.usagePath, usage); err != nil {
		return fmt.Errorf("save promo usage: %w", err)
	}
	return nil
}

func loadJSON(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dst)
}

// saveJSON пишет атомарно: временный файл + rename.
func saveJSON(path string, src interface{}) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
