// Package menu содержит неизменяемый каталог позиций чайханы.
package menu

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/choyxona-bot/internal/model"
)

// Currency — подпись валюты для ответов и Web App.
const Currency = "so'm"

var (
	// ErrDuplicateItem возвращается, если идентификатор позиции повторяется.
	ErrDuplicateItem = errors.New("duplicate menu item")
	// ErrInvalidItem возвращается для позиции без идентификатора или с отрицательной ценой.
	ErrInvalidItem = errors.New("invalid menu item")
)

// Catalogue хранит позиции меню. После создания не изменяется и безопасен для конкурентного чтения.
type Catalogue struct {
	items []model.MenuItem
	byID  map[string]model.MenuItem
}

// New создаёт каталог из переданных позиций, сохраняя порядок их определения.
func New(items ...model.MenuItem) (*Catalogue, error) {
	c := &Catalogue{
		items: make([]model.MenuItem, 0, len(items)),
		byID:  make(map[string]model.MenuItem, len(items)),
	}

	for _, it := range items {
		if it.ID == "" || it.Price.IsNegative() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidItem, it.ID)
		}
		if _, ok := c.byID[it.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateItem, it.ID)
		}
		c.items = append(c.items, it)
		c.byID[it.ID] = it
	}

	return c, nil
}

// Default возвращает стандартное меню чайханы.
func Default() *Catalogue {
	c, err := New(
		item("tea_green", "Ko'k choy", "Ichimliklar", 5000),
		item("tea_black", "Qora choy", "Ichimliklar", 4000),
		item("lepyoshka", "Non", "Qo'shimchalar", 3000),
		item("somsa_lamb", "Qo'y go'shtli somsa", "Somsa", 12000),
		item("somsa_beef", "Mol go'shtli somsa", "Somsa", 11000),
		item("plov", "Palov", "Asosiy taomlar", 28000),
		item("lagman", "Lag'mon", "Asosiy taomlar", 26000),
		item("shashlik", "Kabob", "Asosiy taomlar", 18000),
		item("salad", "Achchiq-chuchuk", "Salatlar", 9000),
		item("ayran", "Ayran", "Ichimliklar", 7000),
	)
	if err != nil {
		panic(err)
	}
	return c
}

func item(id, name, category string, price int64) model.MenuItem {
	return model.MenuItem{
		ID:       id,
		Name:     name,
		Category: category,
		Price:    decimal.NewFromInt(price),
	}
}

// Lookup ищет позицию по идентификатору.
func (c *Catalogue) Lookup(id string) (model.MenuItem, bool) {
	it, ok := c.byID[id]
	return it, ok
}

// Items возвращает копию всех позиций в порядке определения.
func (c *Catalogue) Items() []model.MenuItem {
	out := make([]model.MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

// Sections группирует позиции по категориям. Категории отсортированы по имени,
// позиции внутри категории идут в порядке определения.
func (c *Catalogue) Sections() []model.MenuSection {
	byCategory := make(map[string][]model.MenuItem)
	for _, it := range c.items {
		byCategory[it.Category] = append(byCategory[it.Category], it)
	}

	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	sections := make([]model.MenuSection, 0, len(categories))
	for _, cat := range categories {
		sections = append(sections, model.MenuSection{
			Category: cat,
			Items:    byCategory[cat],
		})
	}
	return sections
}
