package delivery

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"

	yaml "go.yaml.in/yaml/v3"

	"clinicase-bot/internal/domain"
)

//go:embed companion.yaml
var embeddedCompanions []byte

// ErrCompanionsEmpty: в библиотеке нет ни одного сообщения.
var ErrCompanionsEmpty = errors.New("библиотека сопроводительных сообщений пуста")

// CompanionGroup: группа шуток со своим весом.
type CompanionGroup struct {
	Name     string   `yaml:"name"`
	Weight   int      `yaml:"weight"`
	Messages []string `yaml:"messages"`
}

// Companions выбирает сопроводительное сообщение по стилю.
type Companions struct {
	Plain  string           `yaml:"plain"`
	Groups []CompanionGroup `yaml:"groups"`

	total int
	intn  func(n int) int
}

// LoadCompanions читает библиотеку из файла, пустой путь означает встроенную.
func LoadCompanions(path string) (*Companions, error) {
	if path == "" {
		return ParseCompanions(embeddedCompanions)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение %s: %w", path, err)
	}
	return ParseCompanions(data)
}

// ParseCompanions разбирает YAML библиотеки.
func ParseCompanions(data []byte) (*Companions, error) {
	var c Companions
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	for _, g := range c.Groups {
		if g.Weight > 0 {
			c.total += g.Weight * len(g.Messages)
		}
	}
	if c.Plain == "" || c.total == 0 {
		return nil, ErrCompanionsEmpty
	}
	c.intn = rand.Intn
	return &c, nil
}

// Pick возвращает текст для стиля. Вес группы умножается на число её сообщений,
// так что каждое сообщение группы весит Weight.
func (c *Companions) Pick(style domain.CompanionStyle) string {
	if style == domain.CompanionPlain {
		return c.Plain
	}
	n := c.intn(c.total)
	for _, g := range c.Groups {
		if g.Weight <= 0 || len(g.Messages) == 0 {
			continue
		}
		span := g.Weight * len(g.Messages)
		if n < span {
			return g.Messages[n/g.Weight]
		}
		n -= span
	}
	return c.Plain
}
