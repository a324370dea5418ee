package catalog

import (
	"strings"

	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// similarityThreshold — минимальная близость запроса к товару для
// нечёткого совпадения.
const similarityThreshold = 0.5

// Match ищет товар по свободному тексту: точное совпадение id, затем
// вхождение подстроки в id или имя, затем близость по Левенштейну.
// Возвращает false, если ни один кандидат не прошёл порог.
func (c *Catalog) Match(query string) (domain.Product, bool) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return domain.Product{}, false
	}

	if p, err := c.Get(normalized); err == nil {
		return p, true
	}

	var (
		best      domain.Product
		bestScore float64
	)
	for _, p := range c.List() {
		name := strings.ToLower(p.Name)
		if strings.Contains(p.ID, normalized) || strings.Contains(name, normalized) {
			return p, true
		}

		score := similarity(normalized, p.ID)
		if s := similarity(normalized, name); s > score {
			score = s
		}
		if score > bestScore {
			best, bestScore = p, score
		}
	}

	if bestScore >= similarityThreshold {
		return best, true
	}
	return domain.Product{}, false
}

// similarity — нормированная близость строк: 1 − dist/maxLen.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein считает редакционное расстояние с двухстрочным буфером.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
