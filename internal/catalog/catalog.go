package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// defaultProducts — встроенный набор товаров магазина.
var defaultProducts = []domain.Product{
	{
		ID:          "netflix",
		Name:        "Netflix Premium",
		PriceUSD:    1,
		Description: "Akun Netflix Premium 1 bulan",
		Category:    domain.CategoryPremiumAccount,
	},
	{
		ID:          "spotify",
		Name:        "Spotify Premium",
		PriceUSD:    1,
		Description: "Akun Spotify Premium 1 bulan",
		Category:    domain.CategoryPremiumAccount,
	},
	{
		ID:          "youtube",
		Name:        "YouTube Premium",
		PriceUSD:    1,
		Description: "Akun YouTube Premium 1 bulan",
		Category:    domain.CategoryPremiumAccount,
	},
	{
		ID:          "disney",
		Name:        "Disney+ Hotstar",
		PriceUSD:    1,
		Description: "Akun Disney+ Hotstar 1 bulan",
		Category:    domain.CategoryPremiumAccount,
	},
	{
		ID:          "vcc-basic",
		Name:        "VCC Basic",
		PriceUSD:    1,
		Description: "Virtual credit card saldo basic",
		Category:    domain.CategoryVirtualCard,
	},
	{
		ID:          "vcc-standard",
		Name:        "VCC Standard",
		PriceUSD:    1,
		Description: "Virtual credit card saldo standard",
		Category:    domain.CategoryVirtualCard,
	},
}

// productOverride — переопределение метаданных товара из products.json.
type productOverride struct {
	Name        string `json:"name"`
	PriceUSD    *int64 `json:"price_usd"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// StockCounter отдаёт остатки склада для производного поля Stock.
type StockCounter interface {
	Lens() (map[string]int, error)
}

// Catalog — читаемый каталог товаров: встроенный набор, переопределения
// из products.json и динамически обнаруженные товары, у которых есть
// очередь на складе, но нет записи в каталоге.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	order    []string

	stock  StockCounter
	logger *log.Entry
}

// New собирает каталог. overridesPath может быть пустым; stock может
// быть nil — тогда остатки всегда нулевые.
func New(overridesPath string, stock StockCounter, logger *log.Entry) (*Catalog, error) {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}

	c := &Catalog{
		products: make(map[string]domain.Product, len(defaultProducts)),
		stock:    stock,
		logger:   logger,
	}
	for _, p := range defaultProducts {
		c.products[p.ID] = p
		c.order = append(c.order, p.ID)
	}

	if overridesPath != "" {
		if err := c.applyOverrides(overridesPath); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) applyOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read product overrides: %w", err)
	}

	overrides := make(map[string]productOverride)
	if err := json.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse product overrides: %w", err)
	}

	for id, o := range overrides {
		id = strings.ToLower(strings.TrimSpace(id))
		p, ok := c.products[id]
		if !ok {
			// новый товар, объявленный только в products.json
			p = domain.Product{ID: id, PriceUSD: 1, Category: domain.CategoryPremiumAccount}
			c.order = append(c.order, id)
		}
		if o.Name != "" {
			p.Name = o.Name
		}
		if o.PriceUSD != nil && *o.PriceUSD > 0 {
			p.PriceUSD = *o.PriceUSD
		}
		if o.Description != "" {
			p.Description = o.Description
		}
		if o.Category != "" {
			p.Category = domain.Category(o.Category)
		}
		if p.Name == "" {
			p.Name = id
		}
		c.products[id] = p
	}

	c.logger.WithField("overrides", len(overrides)).Info("product overrides applied")
	return nil
}

// Refresh подхватывает товары, появившиеся только на складе: у очереди
// есть остаток, а записи в каталоге нет. Такие товары получают имя по
// идентификатору и цену по умолчанию.
func (c *Catalog) Refresh() error {
	if c.stock == nil {
		return nil
	}
	lens, err := c.stock.Lens()
	if err != nil {
		return fmt.Errorf("read stock counts: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	discovered := 0
	for id := range lens {
		if _, ok := c.products[id]; ok {
			continue
		}
		c.products[id] = domain.Product{
			ID:       id,
			Name:     id,
			PriceUSD: 1,
			Category: domain.CategoryPremiumAccount,
		}
		c.order = append(c.order, id)
		discovered++
	}
	if discovered > 0 {
		c.logger.WithField("discovered", discovered).Info("stock-only products discovered")
	}
	return nil
}

// Get возвращает товар с актуальным остатком.
func (c *Catalog) Get(id string) (domain.Product, error) {
	c.mu.RLock()
	p, ok := c.products[strings.ToLower(strings.TrimSpace(id))]
	c.mu.RUnlock()
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	p.Stock = c.stockFor(p.ID)
	return p, nil
}

// List возвращает товары в порядке объявления с актуальными остатками.
func (c *Catalog) List() []domain.Product {
	c.mu.RLock()
	ids := append([]string(nil), c.order...)
	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		products = append(products, c.products[id])
	}
	c.mu.RUnlock()

	counts := c.stockCounts()
	for i := range products {
		products[i].Stock = counts[products[i].ID]
	}
	return products
}

// ByCategory возвращает товары категории, отсортированные по id.
func (c *Catalog) ByCategory(category domain.Category) []domain.Product {
	all := c.List()
	filtered := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if p.Category == category {
			filtered = append(filtered, p)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID < filtered[j].ID })
	return filtered
}

func (c *Catalog) stockFor(id string) int {
	return c.stockCounts()[id]
}

func (c *Catalog) stockCounts() map[string]int {
	if c.stock == nil {
		return map[string]int{}
	}
	counts, err := c.stock.Lens()
	if err != nil {
		c.logger.WithError(err).Warn("stock counts unavailable")
		return map[string]int{}
	}
	return counts
}
