// Package catalog holds the static mission definitions. Missions are
// loaded once at process start and are immutable afterwards.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mobwars/server/pkg/core"
)

// missionSpec mirrors one entry of a catalog YAML file.
type missionSpec struct {
	ID         string  `yaml:"id"`
	Name       string  `yaml:"name"`
	Reward     int64   `yaml:"reward"`
	BaseFactor float64 `yaml:"baseFactor"`
	CooldownMs int64   `yaml:"cooldownMs"`
	Difficulty string  `yaml:"difficulty"`
}

type fileSpec struct {
	Missions []missionSpec `yaml:"missions"`
}

// Catalog is a read-only mission lookup. The zero value is unusable;
// construct via New, Default or LoadFile.
type Catalog struct {
	byID  map[string]core.Mission
	order []string
}

// New validates the given missions and builds a catalog from them.
func New(missions []core.Mission) (*Catalog, error) {
	if len(missions) == 0 {
		return nil, errors.New("catalog must define at least one mission")
	}

	c := &Catalog{byID: make(map[string]core.Mission, len(missions))}
	for _, m := range missions {
		if m.ID == "" {
			return nil, errors.New("mission with empty id")
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate mission id %q", m.ID)
		}
		if m.Reward < 0 {
			return nil, fmt.Errorf("mission %q: negative reward", m.ID)
		}
		if m.BaseFactor <= 0 || m.BaseFactor > 1 {
			return nil, fmt.Errorf("mission %q: base factor %v outside (0,1]", m.ID, m.BaseFactor)
		}
		if m.Cooldown <= 0 {
			return nil, fmt.Errorf("mission %q: non-positive cooldown", m.ID)
		}
		if m.Difficulty < core.DifficultyEasy || m.Difficulty > core.DifficultyExtreme {
			return nil, fmt.Errorf("mission %q: unknown difficulty tier %d", m.ID, m.Difficulty)
		}
		c.byID[m.ID] = m
		c.order = append(c.order, m.ID)
	}
	return c, nil
}

// LoadFile reads a YAML mission catalog from path.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var spec fileSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	missions := make([]core.Mission, 0, len(spec.Missions))
	for _, s := range spec.Missions {
		tier, ok := core.ParseDifficulty(s.Difficulty)
		if !ok {
			return nil, fmt.Errorf("mission %q: unknown difficulty %q", s.ID, s.Difficulty)
		}
		missions = append(missions, core.Mission{
			ID:         s.ID,
			Name:       s.Name,
			Reward:     s.Reward,
			BaseFactor: s.BaseFactor,
			Cooldown:   time.Duration(s.CooldownMs) * time.Millisecond,
			Difficulty: tier,
		})
	}
	return New(missions)
}

// Default returns the built-in mission set.
func Default() *Catalog {
	c, err := New([]core.Mission{
		{ID: "pickpocket", Name: "Pickpocket a Tourist", Reward: 500, BaseFactor: 0.85, Cooldown: 30 * time.Second, Difficulty: core.DifficultyEasy},
		{ID: "burglary", Name: "Break into a Warehouse", Reward: 2500, BaseFactor: 0.65, Cooldown: time.Minute, Difficulty: core.DifficultyMedium},
		{ID: "smuggling", Name: "Run Contraband Across Town", Reward: 10000, BaseFactor: 0.55, Cooldown: 2 * time.Minute, Difficulty: core.DifficultyMedium},
		{ID: "heist", Name: "Rob the First National Bank", Reward: 50000, BaseFactor: 0.35, Cooldown: 5 * time.Minute, Difficulty: core.DifficultyHard},
		{ID: "casino-job", Name: "Hit the Casino Vault", Reward: 250000, BaseFactor: 0.15, Cooldown: 10 * time.Minute, Difficulty: core.DifficultyExtreme},
	})
	if err != nil {
		// defaults are compile-time constants; a failure here is a programming error
		panic(err)
	}
	return c
}

// Get returns the mission with the given id.
func (c *Catalog) Get(id string) (core.Mission, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// All returns the missions in catalog order.
func (c *Catalog) All() []core.Mission {
	out := make([]core.Mission, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len returns the number of missions defined.
func (c *Catalog) Len() int {
	return len(c.order)
}
