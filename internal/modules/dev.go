package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/SnowFuhrer/spiraltgbot/internal/dispatch"
	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/report"
)

// DevModule holds the developer-only maintenance commands plus the
// plain /start and /help entry points.
type DevModule struct {
	api       BotAPI
	gate      *privilege.Gate
	reporter  *report.Reporter
	reporters map[string]StatsReporter
}

func NewDevModule(api BotAPI, gate *privilege.Gate, reporter *report.Reporter) *DevModule {
	return &DevModule{
		api:       api,
		gate:      gate,
		reporter:  reporter,
		reporters: make(map[string]StatsReporter),
	}
}

// AddStatsReporter registers a module's contribution to /stats.
func (m *DevModule) AddStatsReporter(name string, r StatsReporter) {
	m.reporters[name] = r
}

func (m *DevModule) Register(router *dispatch.Router) {
	devReq := privilege.Requirement{Level: privilege.Developer}
	router.RegisterCommand(&dispatch.Registration{
		Name: "stats", Req: devReq, Handler: m.stats,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "errors", Req: devReq, Handler: m.errors,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name:      "admincache",
		Req:       privilege.Requirement{Level: privilege.ChatAdmin},
		GroupOnly: true,
		Handler:   m.reloadAdmins,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "start", Handler: m.start,
	})
	router.RegisterCommand(&dispatch.Registration{
		Name: "help", Handler: m.help,
	})
}

func (m *DevModule) stats(ctx context.Context, c *dispatch.Ctx) (string, error) {
	var b strings.Builder
	b.WriteString("Current stats:\n")
	for name, r := range m.reporters {
		line, err := r.Stats(ctx)
		if err != nil {
			fmt.Fprintf(&b, " - %s: unavailable (%v)\n", name, err)
			continue
		}
		if line != "" {
			fmt.Fprintf(&b, " - %s\n", line)
		}
	}
	return "", reply(ctx, m.api, c, b.String())
}

func (m *DevModule) errors(ctx context.Context, c *dispatch.Ctx) (string, error) {
	recent := m.reporter.Recent()
	if len(recent) == 0 {
		return "", reply(ctx, m.api, c, "No errors recorded since startup.")
	}
	var b strings.Builder
	b.WriteString("Recorded errors:\n")
	for _, e := range recent {
		fmt.Fprintf(&b, " - %s (%dx) %s: %s\n", e.ID, e.Count, e.Scope, e.Message)
	}
	return "", reply(ctx, m.api, c, b.String())
}

func (m *DevModule) reloadAdmins(ctx context.Context, c *dispatch.Ctx) (string, error) {
	m.gate.InvalidateAdmins(c.Chat.ID)
	return "", reply(ctx, m.api, c, "Admin cache has been refreshed.")
}

func (m *DevModule) start(ctx context.Context, c *dispatch.Ctx) (string, error) {
	if !c.IsPrivate() {
		return "", nil
	}
	return "", reply(ctx, m.api, c, "Hi there! I'm a group management bot. Add me to a group and promote me to admin to get started.")
}

func (m *DevModule) help(ctx context.Context, c *dispatch.Ctx) (string, error) {
	return "", reply(ctx, m.api, c,
		"I manage groups: antiflood, raid mode, join verification, welcomes, log channels and command toggles.\nAll settings commands are admin only inside the group.")
}
