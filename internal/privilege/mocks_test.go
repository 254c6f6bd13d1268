package privilege

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
)

type mockRankRepo struct {
	ranks       map[int64]string
	err         error
	GetRankFunc func(_ int64) (string, error)
}

func (m *mockRankRepo) GetRank(userID int64) (string, error) {
	if m.GetRankFunc != nil {
		return m.GetRankFunc(userID)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.ranks[userID], nil
}

func (m *mockRankRepo) SetRank(userID int64, rank string) error {
	if m.ranks == nil {
		m.ranks = make(map[int64]string)
	}
	m.ranks[userID] = rank
	return m.err
}

func (m *mockRankRepo) RemoveRank(userID int64) error {
	delete(m.ranks, userID)
	return m.err
}

func (m *mockRankRepo) ListByRank(rank string) ([]repository.UserRank, error) {
	var rows []repository.UserRank
	for id, r := range m.ranks {
		if r == rank {
			rows = append(rows, repository.UserRank{UserID: id, Rank: r})
		}
	}
	return rows, m.err
}

type mockAdminLister struct {
	admins map[int64][]models.ChatMember
	err    error
	calls  int
}

func (m *mockAdminLister) GetChatAdministrators(_ context.Context, params *bot.GetChatAdministratorsParams) ([]models.ChatMember, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.admins[params.ChatID.(int64)], nil
}

func creator(userID int64) models.ChatMember {
	return models.ChatMember{
		Owner: &models.ChatMemberOwner{User: &models.User{ID: userID}},
	}
}

func adminWith(userID int64, canRestrict, canDelete bool) models.ChatMember {
	return models.ChatMember{
		Administrator: &models.ChatMemberAdministrator{
			User:               models.User{ID: userID},
			CanRestrictMembers: canRestrict,
			CanDeleteMessages:  canDelete,
		},
	}
}
