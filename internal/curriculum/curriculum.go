// Package curriculum is the read-only content source: levels, their units, and
// the items each activity scores against.
package curriculum

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vytor/phonicsmastery/internal/models"
)

//go:embed default.yaml
var defaultCurriculum []byte

var (
	ErrUnitNotFound  = errors.New("unit not found")
	ErrLevelNotFound = errors.New("level not found")
)

type Unit struct {
	ID         string   `yaml:"id"`
	Number     int      `yaml:"number"`
	Title      string   `yaml:"title"`
	SightWords []string `yaml:"sight_words"`
	Decodable  []string `yaml:"decodable"`
	Sentences  []string `yaml:"sentences"`
	Stories    []string `yaml:"stories"`

	levelID string
}

// LevelID is the level the unit belongs to.
func (u *Unit) LevelID() string { return u.levelID }

// Items returns the ordered content set of the given kind.
func (u *Unit) Items(kind models.ContentKind) []string {
	switch kind {
	case models.ContentSightWords:
		return u.SightWords
	case models.ContentDecodable:
		return u.Decodable
	case models.ContentSentences:
		return u.Sentences
	case models.ContentStories:
		return u.Stories
	}
	return nil
}

type Level struct {
	ID     string `yaml:"id"`
	Number int    `yaml:"number"`
	Title  string `yaml:"title"`
	Units  []Unit `yaml:"units"`
}

type document struct {
	Activities []string `yaml:"activities"`
	Levels     []Level  `yaml:"levels"`
}

// Curriculum indexes levels and units by ID. It is immutable after Parse.
type Curriculum struct {
	levels   []Level
	roster   []models.ActivityType
	units    map[string]*Unit
	byNumber map[int]*Unit
	byLevel  map[string]*Level
}

// Load reads a YAML curriculum from path, or the embedded default when path
// is empty.
func Load(path string) (*Curriculum, error) {
	if path == "" {
		return Parse(defaultCurriculum)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curriculum %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded curriculum.
func Default() *Curriculum {
	c, err := Parse(defaultCurriculum)
	if err != nil {
		panic(fmt.Sprintf("embedded curriculum is invalid: %v", err))
	}
	return c
}

func Parse(data []byte) (*Curriculum, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse curriculum: %w", err)
	}

	c := &Curriculum{
		levels:   doc.Levels,
		units:    make(map[string]*Unit),
		byNumber: make(map[int]*Unit),
		byLevel:  make(map[string]*Level),
	}

	if len(doc.Activities) == 0 {
		c.roster = append([]models.ActivityType(nil), models.ActivityRoster...)
	}
	seen := make(map[models.ActivityType]bool)
	for _, name := range doc.Activities {
		a, ok := models.ParseActivityType(name)
		if !ok {
			return nil, fmt.Errorf("unknown activity %q", name)
		}
		if seen[a] {
			return nil, fmt.Errorf("activity %q listed twice", name)
		}
		seen[a] = true
		c.roster = append(c.roster, a)
	}

	for li := range c.levels {
		level := &c.levels[li]
		if level.ID == "" {
			return nil, fmt.Errorf("level #%d has no id", li+1)
		}
		if _, dup := c.byLevel[level.ID]; dup {
			return nil, fmt.Errorf("duplicate level id %q", level.ID)
		}
		c.byLevel[level.ID] = level

		for ui := range level.Units {
			unit := &level.Units[ui]
			if unit.ID == "" {
				return nil, fmt.Errorf("unit #%d of level %s has no id", ui+1, level.ID)
			}
			if _, dup := c.units[unit.ID]; dup {
				return nil, fmt.Errorf("duplicate unit id %q", unit.ID)
			}
			unit.levelID = level.ID
			c.units[unit.ID] = unit
			if unit.Number > 0 {
				if _, dup := c.byNumber[unit.Number]; dup {
					return nil, fmt.Errorf("duplicate unit number %d", unit.Number)
				}
				c.byNumber[unit.Number] = unit
			}
		}
	}
	return c, nil
}

// Roster is the activity set every unit is measured against.
func (c *Curriculum) Roster() []models.ActivityType {
	return c.roster
}

// Offers reports whether the activity is part of the roster.
func (c *Curriculum) Offers(a models.ActivityType) bool {
	for _, r := range c.roster {
		if r == a {
			return true
		}
	}
	return false
}

func (c *Curriculum) Levels() []Level {
	return c.levels
}

func (c *Curriculum) Level(id string) (*Level, error) {
	if l, ok := c.byLevel[id]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrLevelNotFound, id)
}

func (c *Curriculum) Unit(id string) (*Unit, error) {
	if u, ok := c.units[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
}

// UnitByNumber translates a legacy unit number into its unit.
func (c *Curriculum) UnitByNumber(n int) (*Unit, error) {
	if u, ok := c.byNumber[n]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: number %d", ErrUnitNotFound, n)
}

// Items returns the content an activity scores against within a unit. An
// empty result is valid here; scoring it is a configuration error for the
// caller to raise.
func (c *Curriculum) Items(unitID string, a models.ActivityType) ([]string, error) {
	u, err := c.Unit(unitID)
	if err != nil {
		return nil, err
	}
	var items []string
	for _, it := range u.Items(a.ContentKind()) {
		if strings.TrimSpace(it) != "" {
			items = append(items, it)
		}
	}
	return items, nil
}
