package dispatch

import (
	"context"

	"github.com/SnowFuhrer/spiraltgbot/internal/privilege"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
)

type limiter interface {
	Allow(ctx context.Context, userID int64) bool
}

// RateLimitMiddleware throttles command usage per user.
type RateLimitMiddleware struct {
	limiter limiter
}

func NewRateLimitMiddleware(l limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: l}
}

func (m *RateLimitMiddleware) Name() string { return "rate_limit" }

func (m *RateLimitMiddleware) Check(ctx context.Context, c *Ctx, _ *Registration) (*Verdict, error) {
	if c.Sender == nil || c.IsAnonymous {
		return &Verdict{Allowed: true}, nil
	}
	if !m.limiter.Allow(ctx, c.Sender.ID) {
		return &Verdict{Allowed: false, Silent: true}, nil
	}
	return &Verdict{Allowed: true}, nil
}

type gate interface {
	Allow(ctx context.Context, req privilege.Requirement, chatID, userID int64) (bool, error)
	Resolve(ctx context.Context, chatID, userID int64) (privilege.Level, error)
}

// PermissionMiddleware enforces a command's privilege requirement.
type PermissionMiddleware struct {
	gate gate
}

func NewPermissionMiddleware(g gate) *PermissionMiddleware {
	return &PermissionMiddleware{gate: g}
}

func (m *PermissionMiddleware) Name() string { return "permission" }

func (m *PermissionMiddleware) Check(ctx context.Context, c *Ctx, reg *Registration) (*Verdict, error) {
	if reg.Req.Level == privilege.Member && reg.Req.Perm == privilege.PermNone {
		return &Verdict{Allowed: true}, nil
	}
	// Private chats have no admins, so chat-scoped requirements are
	// moot there; global tiers are still enforced.
	if c.IsPrivate() && reg.Req.Level <= privilege.ChatAdmin {
		return &Verdict{Allowed: true}, nil
	}
	if c.Sender == nil {
		return &Verdict{Allowed: false, Silent: true}, nil
	}
	ok, err := m.gate.Allow(ctx, reg.Req, c.Chat.ID, c.Sender.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Verdict{Allowed: false, Reason: texts.MsgNotAdmin, DeleteMessage: true}, nil
	}
	return &Verdict{Allowed: true}, nil
}

// DisabledMiddleware drops commands switched off in the chat.
type DisabledMiddleware struct {
	disabled repository.DisabledRepository
	gate     gate
}

func NewDisabledMiddleware(d repository.DisabledRepository, g gate) *DisabledMiddleware {
	return &DisabledMiddleware{disabled: d, gate: g}
}

func (m *DisabledMiddleware) Name() string { return "disabled" }

func (m *DisabledMiddleware) Check(ctx context.Context, c *Ctx, reg *Registration) (*Verdict, error) {
	if !reg.Disableable || !c.IsGroup() {
		return &Verdict{Allowed: true}, nil
	}
	off, err := m.disabled.IsDisabled(c.Chat.ID, reg.Name)
	if err != nil {
		return nil, err
	}
	if !off {
		return &Verdict{Allowed: true}, nil
	}
	if reg.AdminOK && c.Sender != nil {
		level, err := m.gate.Resolve(ctx, c.Chat.ID, c.Sender.ID)
		if err != nil {
			return nil, err
		}
		if level >= privilege.ChatAdmin {
			return &Verdict{Allowed: true}, nil
		}
	}
	return &Verdict{Allowed: false, Silent: true, DeleteMessage: true}, nil
}
