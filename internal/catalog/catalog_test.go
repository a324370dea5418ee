package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

type stubStock map[string]int

func (s stubStock) Lens() (map[string]int, error) { return s, nil }

func TestCatalogDefaults(t *testing.T) {
	c, err := New("", nil, nil)
	require.NoError(t, err)

	products := c.List()
	require.Len(t, products, 6)

	p, err := c.Get("netflix")
	require.NoError(t, err)
	require.Equal(t, "Netflix Premium", p.Name)
	require.Equal(t, domain.CategoryPremiumAccount, p.Category)

	_, err = c.Get("unknown")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCatalogStockDerived(t *testing.T) {
	stock := stubStock{"netflix": 3, "vcc-basic": 1}
	c, err := New("", stock, nil)
	require.NoError(t, err)

	p, err := c.Get("netflix")
	require.NoError(t, err)
	require.Equal(t, 3, p.Stock)

	p, err = c.Get("spotify")
	require.NoError(t, err)
	require.Equal(t, 0, p.Stock)
}

func TestCatalogOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	price := `{"netflix": {"name": "Netflix UHD", "price_usd": 2}, "telegram-premium": {"name": "Telegram Premium"}}`
	require.NoError(t, os.WriteFile(path, []byte(price), 0o644))

	c, err := New(path, nil, nil)
	require.NoError(t, err)

	p, err := c.Get("netflix")
	require.NoError(t, err)
	require.Equal(t, "Netflix UHD", p.Name)
	require.Equal(t, int64(2), p.PriceUSD)

	p, err = c.Get("telegram-premium")
	require.NoError(t, err)
	require.Equal(t, "Telegram Premium", p.Name)
}

func TestCatalogRefreshDiscoversStockOnly(t *testing.T) {
	stock := stubStock{"canva-pro": 4}
	c, err := New("", stock, nil)
	require.NoError(t, err)

	_, err = c.Get("canva-pro")
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	require.NoError(t, c.Refresh())

	p, err := c.Get("canva-pro")
	require.NoError(t, err)
	require.Equal(t, 4, p.Stock)
}

func TestByCategory(t *testing.T) {
	c, err := New("", nil, nil)
	require.NoError(t, err)

	cards := c.ByCategory(domain.CategoryVirtualCard)
	require.Len(t, cards, 2)
	require.Equal(t, "vcc-basic", cards[0].ID)
	require.Equal(t, "vcc-standard", cards[1].ID)
}

func TestFuzzyMatch(t *testing.T) {
	c, err := New("", nil, nil)
	require.NoError(t, err)

	// точное совпадение id
	p, ok := c.Match("netflix")
	require.True(t, ok)
	require.Equal(t, "netflix", p.ID)

	// регистр и пробелы не мешают
	p, ok = c.Match("  NETFLIX  ")
	require.True(t, ok)
	require.Equal(t, "netflix", p.ID)

	// подстрока имени
	p, ok = c.Match("disney")
	require.True(t, ok)
	require.Equal(t, "disney", p.ID)

	// опечатка в пределах порога
	p, ok = c.Match("netflik")
	require.True(t, ok)
	require.Equal(t, "netflix", p.ID)

	p, ok = c.Match("spotfy")
	require.True(t, ok)
	require.Equal(t, "spotify", p.ID)

	// мусор не матчится
	_, ok = c.Match("zzzzzzzzzz")
	require.False(t, ok)

	_, ok = c.Match("")
	require.False(t, ok)
}

func TestLevenshtein(t *testing.T) {
	require.Equal(t, 0, levenshtein("abc", "abc"))
	require.Equal(t, 3, levenshtein("", "abc"))
	require.Equal(t, 1, levenshtein("netflix", "netflik"))
	require.Equal(t, 2, levenshtein("kitten", "sittin"))
}
