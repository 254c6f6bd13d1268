// Package verify mutes joining members until they prove they are
// human, with a button press or a captcha depending on the chat's
// welcome-mute mode.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/SnowFuhrer/spiraltgbot/internal/metrics"
	"github.com/SnowFuhrer/spiraltgbot/internal/repository"
	"github.com/SnowFuhrer/spiraltgbot/internal/texts"
	"github.com/SnowFuhrer/spiraltgbot/internal/utils"
)

// CallbackPrefix keys verification button presses in the dispatcher.
const CallbackPrefix = "verify"

const (
	ModeOff     = "off"
	ModeSoft    = "soft"
	ModeStrong  = "strong"
	ModeCaptcha = "captcha"

	// Soft mode only blocks media, and wears off on its own.
	softRestrictionTTL = 24 * time.Hour

	DefaultDeadline = 120 * time.Second
)

type botAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	RestrictChatMember(ctx context.Context, params *bot.RestrictChatMemberParams) (bool, error)
	BanChatMember(ctx context.Context, params *bot.BanChatMemberParams) (bool, error)
	UnbanChatMember(ctx context.Context, params *bot.UnbanChatMemberParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Greeter delivers a deferred welcome once a challenged joiner passes.
type Greeter interface {
	DeliverWelcome(ctx context.Context, chatID int64, text string)
}

// Service runs join verification. Deadline timers live in memory, the
// pending rows themselves are persisted and re-armed on startup.
type Service struct {
	api      botAPI
	pending  repository.PendingRepository
	deadline time.Duration
	greeter  Greeter
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewService(api botAPI, pending repository.PendingRepository, deadline time.Duration, logger *slog.Logger) *Service {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Service{
		api:      api,
		pending:  pending,
		deadline: deadline,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// SetGreeter wires in the deferred welcome delivery.
func (s *Service) SetGreeter(g Greeter) {
	s.greeter = g
}

func timerKey(chatID, userID int64) string {
	return fmt.Sprintf("%d/%d", chatID, userID)
}

func mutedPermissions() *models.ChatPermissions {
	return &models.ChatPermissions{}
}

func unmutedPermissions() *models.ChatPermissions {
	return &models.ChatPermissions{
		CanSendMessages:       true,
		CanSendAudios:         true,
		CanSendDocuments:      true,
		CanSendPhotos:         true,
		CanSendVideos:         true,
		CanSendVideoNotes:     true,
		CanSendVoiceNotes:     true,
		CanSendPolls:          true,
		CanSendOtherMessages:  true,
		CanAddWebPagePreviews: true,
		CanInviteUsers:        true,
	}
}

func mediaOnlyRestriction() *models.ChatPermissions {
	return &models.ChatPermissions{
		CanSendMessages: true,
		CanSendPolls:    true,
		CanInviteUsers:  true,
	}
}

// OnJoin challenges one new member according to mode. It reports
// whether a challenge message was posted; a true result means the
// caller must not greet now, the welcome text is delivered on pass.
func (s *Service) OnJoin(ctx context.Context, chat *models.Chat, user *models.User, mode, welcome string) (bool, error) {
	if user.IsBot {
		return false, nil
	}
	switch mode {
	case ModeSoft:
		_, err := s.api.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
			ChatID:      chat.ID,
			UserID:      user.ID,
			Permissions: mediaOnlyRestriction(),
			UntilDate:   int(time.Now().Add(softRestrictionTTL).Unix()),
		})
		if err != nil {
			return false, fmt.Errorf("failed to soft-restrict joiner: %w", err)
		}
		return false, nil
	case ModeStrong, ModeCaptcha:
	default:
		return false, nil
	}

	// A user who already passed here once is not challenged again.
	if existing, err := s.pending.Get(chat.ID, user.ID); err != nil {
		return false, err
	} else if existing != nil && existing.Status == repository.VerificationVerified {
		return false, nil
	}

	if _, err := s.api.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
		ChatID:      chat.ID,
		UserID:      user.ID,
		Permissions: mutedPermissions(),
	}); err != nil {
		return false, fmt.Errorf("failed to mute joiner: %w", err)
	}

	var (
		prompt *models.Message
		answer string
		err    error
	)
	if mode == ModeCaptcha {
		prompt, answer, err = s.sendCaptcha(ctx, chat, user)
	} else {
		prompt, err = s.sendButton(ctx, chat, user)
	}
	if err != nil {
		return false, err
	}

	deadline := time.Now().Add(s.deadline)
	row := &repository.PendingVerification{
		ChatID:      chat.ID,
		UserID:      user.ID,
		Mode:        mode,
		Answer:      answer,
		ChallengeID: prompt.ID,
		WelcomeText: welcome,
		Status:      repository.VerificationPending,
		Deadline:    deadline,
	}
	if err := s.pending.Upsert(row); err != nil {
		return false, err
	}
	s.arm(chat.ID, user.ID, s.deadline)
	s.observePending()
	return true, nil
}

func (s *Service) sendButton(ctx context.Context, chat *models.Chat, user *models.User) (*models.Message, error) {
	prompt, err := s.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chat.ID,
		Text:      fmt.Sprintf(texts.MsgVerifyPrompt, utils.MentionHTML(user.ID, user.FirstName), int(s.deadline.Seconds())),
		ParseMode: models.ParseModeHTML,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{
					Text:         "Click here to prove you're human",
					CallbackData: fmt.Sprintf("%s/%d", CallbackPrefix, user.ID),
				},
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send verification prompt: %w", err)
	}
	return prompt, nil
}

func (s *Service) sendCaptcha(ctx context.Context, chat *models.Chat, user *models.User) (*models.Message, string, error) {
	ch, err := newChallenge()
	if err != nil {
		return nil, "", err
	}
	var rows [][]models.InlineKeyboardButton
	for i := 0; i < len(ch.options); i += captchaColumns {
		var row []models.InlineKeyboardButton
		for j := i; j < i+captchaColumns && j < len(ch.options); j++ {
			row = append(row, models.InlineKeyboardButton{
				Text:         ch.options[j],
				CallbackData: fmt.Sprintf("%s/%d/%s", CallbackPrefix, user.ID, ch.options[j]),
			})
		}
		rows = append(rows, row)
	}
	prompt, err := s.api.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: chat.ID,
		Photo: &models.InputFileUpload{
			Filename: "captcha.png",
			Data:     bytes.NewReader(ch.image),
		},
		Caption:     fmt.Sprintf(texts.MsgVerifyCaptchaPrompt, utils.MentionHTML(user.ID, user.FirstName), int(s.deadline.Seconds())),
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: &models.InlineKeyboardMarkup{InlineKeyboard: rows},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to send captcha: %w", err)
	}
	return prompt, ch.answer, nil
}

// OnCallback handles verification button presses. Data is
// verify/{userID} or verify/{userID}/{answer}.
func (s *Service) OnCallback(ctx context.Context, q *models.CallbackQuery, parts []string) error {
	msg := q.Message.Message
	if msg == nil || len(parts) < 2 {
		return nil
	}
	targetID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if q.From.ID != targetID {
		s.answer(ctx, q.ID, texts.MsgVerifyNotForYou)
		return nil
	}

	row, err := s.pending.Get(msg.Chat.ID, targetID)
	if err != nil {
		return err
	}
	if row == nil || row.Status != repository.VerificationPending {
		s.answer(ctx, q.ID, "")
		return nil
	}

	if row.Mode == ModeCaptcha {
		if len(parts) < 3 || parts[2] != row.Answer {
			s.answer(ctx, q.ID, texts.MsgVerifyWrongAnswer)
			metrics.IncVerification("failed")
			return s.fail(ctx, msg.Chat.ID, targetID, row.ChallengeID, "")
		}
	}

	s.disarm(msg.Chat.ID, targetID)
	if err := s.pending.MarkVerified(msg.Chat.ID, targetID); err != nil {
		return err
	}
	if _, err := s.api.RestrictChatMember(ctx, &bot.RestrictChatMemberParams{
		ChatID:      msg.Chat.ID,
		UserID:      targetID,
		Permissions: unmutedPermissions(),
	}); err != nil {
		return fmt.Errorf("failed to unmute verified user: %w", err)
	}
	s.deleteChallenge(ctx, msg.Chat.ID, row.ChallengeID)
	s.answer(ctx, q.ID, texts.MsgVerifyHuman)
	metrics.IncVerification("passed")
	s.observePending()
	if row.WelcomeText != "" && s.greeter != nil {
		s.greeter.DeliverWelcome(ctx, msg.Chat.ID, row.WelcomeText)
	}
	return nil
}

// Resume kicks users whose deadline lapsed while the bot was down and
// re-arms timers for the rows still in flight.
func (s *Service) Resume(ctx context.Context) error {
	now := time.Now()
	due, err := s.pending.ListDue(now)
	if err != nil {
		return err
	}
	for _, row := range due {
		s.expire(row.ChatID, row.UserID)
	}
	rows, err := s.pending.ListPending()
	if err != nil {
		return err
	}
	armed := 0
	for _, row := range rows {
		remaining := row.Deadline.Sub(now)
		if remaining <= 0 {
			continue
		}
		s.arm(row.ChatID, row.UserID, remaining)
		armed++
	}
	s.observePending()
	if armed > 0 || len(due) > 0 {
		s.logger.Info("resumed verification deadlines", "armed", armed, "overdue", len(due))
	}
	return nil
}

func (s *Service) arm(chatID, userID int64, d time.Duration) {
	key := timerKey(chatID, userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(d, func() {
		s.expire(chatID, userID)
	})
}

func (s *Service) disarm(chatID, userID int64) {
	key := timerKey(chatID, userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// expire kicks a user who never answered. The row is re-read first so
// a verification racing the deadline wins.
func (s *Service) expire(chatID, userID int64) {
	s.disarm(chatID, userID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	row, err := s.pending.Get(chatID, userID)
	if err != nil {
		s.logger.Error("failed to read pending row on deadline", "chat_id", chatID, "user_id", userID, "error", err)
		return
	}
	if row == nil || row.Status != repository.VerificationPending {
		return
	}
	metrics.IncVerification("timeout")
	if err := s.fail(ctx, chatID, userID, row.ChallengeID, texts.MsgVerifyKicked); err != nil {
		s.logger.Error("failed to kick unverified user", "chat_id", chatID, "user_id", userID, "error", err)
	}
}

// fail kicks the user (ban then unban, so rejoining stays possible)
// and clears their pending row. A non-empty notice replaces the
// challenge message instead of deleting it.
func (s *Service) fail(ctx context.Context, chatID, userID int64, challengeID int, notice string) error {
	s.disarm(chatID, userID)
	if _, err := s.api.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID: chatID,
		UserID: userID,
	}); err != nil {
		return fmt.Errorf("failed to kick unverified user: %w", err)
	}
	if _, err := s.api.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       chatID,
		UserID:       userID,
		OnlyIfBanned: true,
	}); err != nil {
		s.logger.Warn("failed to lift kick ban", "chat_id", chatID, "user_id", userID, "error", err)
	}
	if notice == "" {
		s.deleteChallenge(ctx, chatID, challengeID)
	} else {
		s.replaceChallenge(ctx, chatID, userID, challengeID, notice)
	}
	if err := s.pending.Delete(chatID, userID); err != nil {
		return err
	}
	s.observePending()
	return nil
}

// replaceChallenge edits the challenge message into the notice. Photo
// captchas and already deleted messages cannot be edited into text, so
// a fresh notice is posted instead when the edit fails.
func (s *Service) replaceChallenge(ctx context.Context, chatID, userID int64, challengeID int, notice string) {
	if challengeID != 0 {
		if _, err := s.api.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: challengeID,
			Text:      notice,
		}); err == nil {
			return
		}
	}
	if _, err := s.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      fmt.Sprintf(texts.MsgVerifyKickedFresh, utils.MentionHTML(userID, "A user")),
		ParseMode: models.ParseModeHTML,
	}); err != nil {
		s.logger.Debug("failed to post kick notice", "chat_id", chatID, "error", err)
	}
}

func (s *Service) deleteChallenge(ctx context.Context, chatID int64, challengeID int) {
	if challengeID == 0 {
		return
	}
	if _, err := s.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: challengeID,
	}); err != nil {
		s.logger.Debug("failed to delete challenge message", "chat_id", chatID, "error", err)
	}
}

func (s *Service) answer(ctx context.Context, callbackID, text string) {
	_, err := s.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       text != "",
	})
	if err != nil {
		s.logger.Debug("failed to answer callback", "error", err)
	}
}

func (s *Service) observePending() {
	rows, err := s.pending.ListPending()
	if err != nil {
		return
	}
	metrics.SetPendingVerifications(float64(len(rows)))
}
