package session

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soundloom/companion-bot/internal/navigation"
	"github.com/soundloom/companion-bot/internal/platform/logger"
)

// Tuning holds the engine's timing knobs. Defaults are compiled in; a YAML
// file named by SESSION_TUNING_PATH overrides them per deployment.
type Tuning struct {
	Navigation struct {
		MaxHistory     int    `yaml:"max_history"`
		SameRouteLimit int    `yaml:"same_route_limit"`
		LoopWindowMS   int    `yaml:"loop_window_ms"`
		RootRoute      string `yaml:"root_route"`
	} `yaml:"navigation"`
	Feed struct {
		BaseDelayMS    int `yaml:"base_delay_ms"`
		MaxDelayMS     int `yaml:"max_delay_ms"`
		MaxAttempts    int `yaml:"max_attempts"`
		PollIntervalMS int `yaml:"poll_interval_ms"`
	} `yaml:"feed"`
	Sweep struct {
		IntervalMS int `yaml:"interval_ms"`
	} `yaml:"sweep"`
}

func defaultTuning() Tuning {
	var t Tuning
	t.Navigation.MaxHistory = navigation.DefaultMaxHistory
	t.Navigation.SameRouteLimit = navigation.DefaultSameRouteLimit
	t.Navigation.LoopWindowMS = int(navigation.DefaultLoopWindow / time.Millisecond)
	t.Navigation.RootRoute = navigation.DefaultRootRoute
	t.Feed.BaseDelayMS = 1000
	t.Feed.MaxDelayMS = 30000
	t.Feed.MaxAttempts = 8
	t.Feed.PollIntervalMS = 15000
	t.Sweep.IntervalMS = 30000
	return t
}

func LoadTuning(log *logger.Logger) Tuning {
	tuning := defaultTuning()

	path := strings.TrimSpace(os.Getenv("SESSION_TUNING_PATH"))
	if path == "" {
		return tuning
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Session tuning file unreadable, using defaults", "path", path, "error", err)
		return tuning
	}
	if err := yaml.Unmarshal(raw, &tuning); err != nil {
		log.Warn("Session tuning file invalid, using defaults", "path", path, "error", err)
		return defaultTuning()
	}
	return tuning
}

func (t Tuning) NavigationConfig() navigation.Config {
	return navigation.Config{
		MaxHistory:     t.Navigation.MaxHistory,
		SameRouteLimit: t.Navigation.SameRouteLimit,
		LoopWindow:     time.Duration(t.Navigation.LoopWindowMS) * time.Millisecond,
		RootRoute:      t.Navigation.RootRoute,
	}
}

func (t Tuning) SweepInterval() time.Duration {
	return time.Duration(t.Sweep.IntervalMS) * time.Millisecond
}
