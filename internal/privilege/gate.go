package privilege

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
)

// adminLister is the slice of the bot client the gate needs.
type adminLister interface {
	GetChatAdministrators(ctx context.Context, params *bot.GetChatAdministratorsParams) ([]models.ChatMember, error)
}

// AdminRights is the cached view of one chat admin.
type AdminRights struct {
	UserID      int64
	IsCreator   bool
	IsAnonymous bool
	CanRestrict bool
	CanDelete   bool
	CanChange   bool
	CanInvite   bool
	CanPin      bool
	CanPromote  bool
}

func (r AdminRights) Has(perm AdminPerm) bool {
	if r.IsCreator {
		return true
	}
	switch perm {
	case PermNone:
		return true
	case PermRestrict:
		return r.CanRestrict
	case PermDelete:
		return r.CanDelete
	case PermChangeInfo:
		return r.CanChange
	case PermInvite:
		return r.CanInvite
	case PermPin:
		return r.CanPin
	case PermPromote:
		return r.CanPromote
	default:
		return false
	}
}

const adminCacheTTL = 10 * time.Minute

// Gate resolves a user's effective privilege level in a chat and checks
// command requirements against it.
type Gate struct {
	api     adminLister
	ranks   repository.RankRepository
	botID   int64
	ownerID int64
	devIDs  map[int64]struct{}
	admins  *expirable.LRU[int64, []AdminRights]
	logger  *slog.Logger
}

func NewGate(api adminLister, ranks repository.RankRepository, botID, ownerID int64, devIDs []int64, logger *slog.Logger) *Gate {
	devs := make(map[int64]struct{}, len(devIDs))
	for _, id := range devIDs {
		devs[id] = struct{}{}
	}
	return &Gate{
		api:     api,
		ranks:   ranks,
		botID:   botID,
		ownerID: ownerID,
		devIDs:  devs,
		admins:  expirable.NewLRU[int64, []AdminRights](2048, nil, adminCacheTTL),
		logger:  logger,
	}
}

// ChatAdmins returns the admin list for chatID, served from a 10 minute
// cache so one chat cannot hammer getChatAdministrators.
func (g *Gate) ChatAdmins(ctx context.Context, chatID int64) ([]AdminRights, error) {
	if cached, ok := g.admins.Get(chatID); ok {
		return cached, nil
	}
	members, err := g.api.GetChatAdministrators(ctx, &bot.GetChatAdministratorsParams{ChatID: chatID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat admins: %w", err)
	}
	rights := make([]AdminRights, 0, len(members))
	for _, m := range members {
		switch {
		case m.Owner != nil:
			rights = append(rights, AdminRights{
				UserID:      m.Owner.User.ID,
				IsCreator:   true,
				IsAnonymous: m.Owner.IsAnonymous,
			})
		case m.Administrator != nil:
			a := m.Administrator
			rights = append(rights, AdminRights{
				UserID:      a.User.ID,
				IsAnonymous: a.IsAnonymous,
				CanRestrict: a.CanRestrictMembers,
				CanDelete:   a.CanDeleteMessages,
				CanChange:   a.CanChangeInfo,
				CanInvite:   a.CanInviteUsers,
				CanPin:      a.CanPinMessages,
				CanPromote:  a.CanPromoteMembers,
			})
		}
	}
	g.admins.Add(chatID, rights)
	return rights, nil
}

// InvalidateAdmins drops the cached admin list, used after promotions
// and the explicit admin cache reload command.
func (g *Gate) InvalidateAdmins(chatID int64) {
	g.admins.Remove(chatID)
}

// Rights returns the admin rights of userID in chatID, if any.
func (g *Gate) Rights(ctx context.Context, chatID, userID int64) (AdminRights, bool, error) {
	admins, err := g.ChatAdmins(ctx, chatID)
	if err != nil {
		return AdminRights{}, false, err
	}
	for _, r := range admins {
		if r.UserID == userID {
			return r, true, nil
		}
	}
	return AdminRights{}, false, nil
}

// Resolve computes the effective level of userID inside chatID.
func (g *Gate) Resolve(ctx context.Context, chatID, userID int64) (Level, error) {
	if _, ok := g.devIDs[userID]; ok {
		return Developer, nil
	}
	if userID == g.ownerID {
		return Owner, nil
	}
	rank, err := g.ranks.GetRank(userID)
	if err != nil {
		return Member, err
	}
	switch rank {
	case repository.RankSudo:
		return Sudo, nil
	case repository.RankSupport:
		return Support, nil
	}
	if _, isAdmin, err := g.Rights(ctx, chatID, userID); err != nil {
		return Member, err
	} else if isAdmin {
		return ChatAdmin, nil
	}
	if rank == repository.RankWhitelist || rank == repository.RankPro {
		return Whitelist, nil
	}
	return Member, nil
}

// Allow checks req against the user's effective level. Chat admins must
// additionally hold the named admin right; global staff are exempt from
// the per-right check.
func (g *Gate) Allow(ctx context.Context, req Requirement, chatID, userID int64) (bool, error) {
	level, err := g.Resolve(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	if level < req.Level {
		return false, nil
	}
	if req.Perm == PermNone || level > ChatAdmin {
		return true, nil
	}
	if level == ChatAdmin {
		rights, ok, err := g.Rights(ctx, chatID, userID)
		if err != nil {
			return false, err
		}
		return ok && rights.Has(req.Perm), nil
	}
	return true, nil
}

// BanProtected reports whether the user outranks plain members in the
// chat: global staff, whitelisted ranks and the chat's own admins.
// Automatic removal paths must never touch such users.
func (g *Gate) BanProtected(ctx context.Context, chatID, userID int64) (bool, error) {
	level, err := g.Resolve(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	return level > Member, nil
}

// BotCan reports whether the bot itself holds perm in the chat, read
// from the same cached admin list the user checks use.
func (g *Gate) BotCan(ctx context.Context, chatID int64, perm AdminPerm) (bool, error) {
	rights, isAdmin, err := g.Rights(ctx, chatID, g.botID)
	if err != nil {
		return false, err
	}
	return isAdmin && rights.Has(perm), nil
}

// IsStaff reports whether the user outranks chat-level administration.
func (g *Gate) IsStaff(userID int64) bool {
	if _, ok := g.devIDs[userID]; ok {
		return true
	}
	if userID == g.ownerID {
		return true
	}
	rank, err := g.ranks.GetRank(userID)
	if err != nil {
		g.logger.Warn("failed to read rank", "user_id", userID, "error", err)
		return false
	}
	return rank == repository.RankSudo || rank == repository.RankSupport
}
