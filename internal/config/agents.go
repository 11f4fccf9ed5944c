package config

import (
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/kjzl/valorant-instalock/internal/catalog"
)

// Mode selects how the candidate agents for one map are produced.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeOrdered  Mode = "ordered"   // listed agents, in listed order
	ModeRandom   Mode = "random"    // every playable agent, shuffled
	ModeRandomOf Mode = "random_of" // listed agents, shuffled
)

func (m Mode) valid() bool {
	switch m {
	case ModeNone, ModeOrdered, ModeRandom, ModeRandomOf:
		return true
	}
	return false
}

// Strategy decides which selection applies to a map.
type Strategy string

const (
	StrategyNone            Strategy = "none"
	StrategyDefault         Strategy = "default"
	StrategyPerMap          Strategy = "per_map"
	StrategyDefaultOnMaps   Strategy = "default_on_maps"
	StrategyPerMapOrDefault Strategy = "per_map_or_default"
)

func (s Strategy) valid() bool {
	switch s {
	case StrategyNone, StrategyDefault, StrategyPerMap, StrategyDefaultOnMaps, StrategyPerMapOrDefault:
		return true
	}
	return false
}

type AgentSelection struct {
	Mode   Mode     `mapstructure:"mode"`
	Agents []string `mapstructure:"agents"`
}

func (s AgentSelection) String() string {
	switch s.Mode {
	case ModeOrdered:
		return strings.Join(s.Agents, ", ")
	case ModeRandom:
		return "random agent"
	case ModeRandomOf:
		return "random from " + strings.Join(s.Agents, ", ")
	default:
		return "disabled"
	}
}

type MapAgentConfig struct {
	Strategy Strategy                  `mapstructure:"strategy"`
	Default  AgentSelection            `mapstructure:"default"`
	Maps     map[string]AgentSelection `mapstructure:"maps"`
	OnlyMaps []string                  `mapstructure:"only_maps"`
}

func (m MapAgentConfig) Validate() error {
	if !m.Strategy.valid() {
		return fmt.Errorf("map_agent_config.strategy: unknown strategy %q", m.Strategy)
	}
	if m.Default.Mode != "" && !m.Default.Mode.valid() {
		return fmt.Errorf("map_agent_config.default.mode: unknown mode %q", m.Default.Mode)
	}
	for name, sel := range m.Maps {
		if sel.Mode != "" && !sel.Mode.valid() {
			return fmt.Errorf("map_agent_config.maps.%s.mode: unknown mode %q", name, sel.Mode)
		}
	}
	return nil
}

func (m MapAgentConfig) mapSelection(mapName string) (AgentSelection, bool) {
	want := catalog.FoldName(mapName)
	for name, sel := range m.Maps {
		if catalog.FoldName(name) == want {
			return sel, true
		}
	}
	return AgentSelection{}, false
}

func (m MapAgentConfig) onlyOn(mapName string) bool {
	want := catalog.FoldName(mapName)
	for _, name := range m.OnlyMaps {
		if catalog.FoldName(name) == want {
			return true
		}
	}
	return false
}

// Selection returns the agent selection that applies on mapName.
func (m MapAgentConfig) Selection(mapName string) AgentSelection {
	switch m.Strategy {
	case StrategyDefault:
		return m.Default
	case StrategyPerMap:
		sel, _ := m.mapSelection(mapName)
		return sel
	case StrategyDefaultOnMaps:
		if m.onlyOn(mapName) {
			return m.Default
		}
	case StrategyPerMapOrDefault:
		if sel, ok := m.mapSelection(mapName); ok {
			return sel
		}
		return m.Default
	}
	return AgentSelection{Mode: ModeNone}
}

// Planner turns the configured selection for a map into the ordered list
// of agents the automation attempts.
type Planner struct {
	cfg     MapAgentConfig
	catalog catalog.Catalog
	log     *zap.Logger
	shuffle func(n int, swap func(i, j int))
}

func NewPlanner(cfg MapAgentConfig, cat catalog.Catalog, logger *zap.Logger) *Planner {
	return &Planner{
		cfg:     cfg,
		catalog: cat,
		log:     logger.Named("planner"),
		shuffle: rand.Shuffle,
	}
}

// Candidates returns the agents to try on mapName, in attempt order. Names
// the catalog does not know are skipped.
func (p *Planner) Candidates(mapName string) []catalog.Agent {
	sel := p.cfg.Selection(mapName)

	var agents []catalog.Agent
	switch sel.Mode {
	case ModeOrdered, ModeRandomOf:
		agents = p.resolve(sel.Agents)
	case ModeRandom:
		agents = append(agents, p.catalog.Agents...)
	default:
		return nil
	}

	if sel.Mode == ModeRandom || sel.Mode == ModeRandomOf {
		p.shuffle(len(agents), func(i, j int) { agents[i], agents[j] = agents[j], agents[i] })
	}
	return agents
}

func (p *Planner) resolve(names []string) []catalog.Agent {
	agents := make([]catalog.Agent, 0, len(names))
	for _, name := range names {
		a, ok := p.catalog.AgentByName(name)
		if !ok {
			p.log.Warn("configured agent not found", zap.String("agent", name))
			continue
		}
		agents = append(agents, a)
	}
	return agents
}
