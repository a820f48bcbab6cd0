// Package zoo: зоопарк игрока: каталог животных, начисление звёзд,
// сбор накопленного и покупка новых животных.
package zoo

import (
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"serotonyl.ru/zoo-bot/internal/domain"
)

// Species: позиция каталога.
type Species struct {
	Key           string
	Name          string
	Emoji         string
	Rarity        domain.Rarity
	StarsPerHour  decimal.Decimal
	PriceDiamonds decimal.Decimal
}

// Title: "🦁 Лев".
func (s Species) Title() string {
	return s.Emoji + " " + s.Name
}

// Catalog: таблица видов. Цены можно менять на лету: купленные животные
// хранят свою доходность и от каталога больше не зависят.
type Catalog struct {
	mu      sync.RWMutex
	species map[string]Species
}

var rarityOrder = map[domain.Rarity]int{
	domain.RarityCommon:    0,
	domain.RarityRare:      1,
	domain.RarityLegendary: 2,
}

// NewCatalog создаёт каталог из списка видов.
func NewCatalog(species ...Species) *Catalog {
	c := &Catalog{species: make(map[string]Species, len(species))}
	for _, s := range species {
		c.species[s.Key] = s
	}
	return c
}

// DefaultCatalog: стандартный набор из девяти видов.
func DefaultCatalog() *Catalog {
	d := decimal.NewFromInt
	return NewCatalog(
		Species{Key: "lion", Name: "Лев", Emoji: "🦁", Rarity: domain.RarityCommon, StarsPerHour: d(10), PriceDiamonds: d(50)},
		Species{Key: "tiger", Name: "Тигр", Emoji: "🐯", Rarity: domain.RarityCommon, StarsPerHour: d(12), PriceDiamonds: d(60)},
		Species{Key: "elephant", Name: "Слон", Emoji: "🐘", Rarity: domain.RarityCommon, StarsPerHour: d(15), PriceDiamonds: d(75)},
		Species{Key: "panda", Name: "Панда", Emoji: "🐼", Rarity: domain.RarityRare, StarsPerHour: d(25), PriceDiamonds: d(150)},
		Species{Key: "penguin", Name: "Пингвин", Emoji: "🐧", Rarity: domain.RarityRare, StarsPerHour: d(30), PriceDiamonds: d(180)},
		Species{Key: "koala", Name: "Коала", Emoji: "🐨", Rarity: domain.RarityRare, StarsPerHour: d(35), PriceDiamonds: d(200)},
		Species{Key: "dragon", Name: "Дракон", Emoji: "🐉", Rarity: domain.RarityLegendary, StarsPerHour: d(50), PriceDiamonds: d(500)},
		Species{Key: "unicorn", Name: "Единорог", Emoji: "🦄", Rarity: domain.RarityLegendary, StarsPerHour: d(60), PriceDiamonds: d(600)},
		Species{Key: "phoenix", Name: "Феникс", Emoji: "🔥", Rarity: domain.RarityLegendary, StarsPerHour: d(75), PriceDiamonds: d(750)},
	)
}

// Get ищет вид по ключу (регистр не важен).
func (c *Catalog) Get(key string) (Species, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.species[strings.ToLower(strings.TrimSpace(key))]
	return s, ok
}

// Set добавляет или заменяет вид.
func (c *Catalog) Set(s Species) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.species[s.Key] = s
}

// List возвращает виды редкости r (пустая строка: все), от дешёвых к дорогим.
func (c *Catalog) List(r domain.Rarity) []Species {
	c.mu.RLock()
	out := make([]Species, 0, len(c.species))
	for _, s := range c.species {
		if r == "" || s.Rarity == r {
			out = append(out, s)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Rarity != out[j].Rarity {
			return rarityOrder[out[i].Rarity] < rarityOrder[out[j].Rarity]
		}
		return out[i].PriceDiamonds.LessThan(out[j].PriceDiamonds)
	})
	return out
}

// RarityTitle: название редкости для сообщений.
func RarityTitle(r domain.Rarity) string {
	switch r {
	case domain.RarityCommon:
		return "Обычные"
	case domain.RarityRare:
		return "Редкие"
	case domain.RarityLegendary:
		return "Легендарные"
	}
	return string(r)
}
