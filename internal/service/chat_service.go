package service

import (
	"context"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragchat/internal/generation"
	"github.com/xxxsen/ragchat/internal/model"
	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
	"github.com/xxxsen/ragchat/internal/pkg/timeutil"
	"github.com/xxxsen/ragchat/internal/repo"
)

const (
	titleMaxChars = 50

	// Shown when the generation service is unreachable; the user's
	// question is persisted either way.
	fallbackAnswer = "Sorry, the answer service is currently unavailable. Your question has been saved, please try again in a moment."
)

type generator interface {
	Chat(ctx context.Context, message, sessionID string) (*generation.ResponsePayload, error)
	Compare(ctx context.Context, message, sessionID string) (*generation.ComparisonPayload, error)
}

type ingester interface {
	Ingest(ctx context.Context, chatID string, payload *generation.ResponsePayload) (*IngestResult, error)
	IngestComparison(ctx context.Context, chatID string, payload *generation.ComparisonPayload) ([]*IngestResult, error)
}

// ChatService owns the chat container and the message flow: persist the
// user turn, call the generation service, hand the payload to the
// ingestion pipeline.
type ChatService struct {
	chats  *repo.ChatRepo
	turns  *repo.TurnRepo
	gen    generator
	ingest ingester
}

func NewChatService(chats *repo.ChatRepo, turns *repo.TurnRepo, gen generator, ingest ingester) *ChatService {
	return &ChatService{chats: chats, turns: turns, gen: gen, ingest: ingest}
}

func (s *ChatService) Create(ctx context.Context, ownerKind, ownerID, title string) (*model.Chat, error) {
	if ownerKind != model.OwnerKindUser && ownerKind != model.OwnerKindAnonymous {
		return nil, appErr.ErrInvalid
	}
	if ownerID == "" {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	chat := &model.Chat{
		ID:        newID(),
		OwnerKind: ownerKind,
		OwnerID:   ownerID,
		Title:     title,
		Ctime:     now,
		Mtime:     now,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// FindOrCreateAnonymous resumes the latest chat for an anonymous
// session id, creating one on first contact.
func (s *ChatService) FindOrCreateAnonymous(ctx context.Context, sessionID string) (*model.Chat, error) {
	if sessionID == "" {
		return nil, appErr.ErrInvalid
	}
	chat, err := s.chats.FindLatestByOwner(ctx, model.OwnerKindAnonymous, sessionID)
	if err == nil {
		return chat, nil
	}
	if !appErr.IsNotFound(err) {
		return nil, err
	}
	return s.Create(ctx, model.OwnerKindAnonymous, sessionID, "")
}

func (s *ChatService) Get(ctx context.Context, chatID string) (*model.Chat, error) {
	return s.chats.GetByID(ctx, chatID)
}

func (s *ChatService) List(ctx context.Context, ownerKind, ownerID string, limit, offset uint) ([]model.Chat, error) {
	return s.chats.ListByOwner(ctx, ownerKind, ownerID, limit, offset)
}

func (s *ChatService) ListTurns(ctx context.Context, chatID string) ([]model.Turn, error) {
	if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		return nil, err
	}
	return s.turns.ListByChat(ctx, chatID)
}

// SendResult is the outcome of one user message round trip.
type SendResult struct {
	UserTurn         *model.Turn     `json:"user_turn"`
	Ingest           *IngestResult   `json:"ingest,omitempty"`
	Comparison       []*IngestResult `json:"comparison,omitempty"`
	GenerationFailed bool            `json:"generation_failed,omitempty"`
}

// SendMessage persists the user turn, asks the generation service for
// an answer and ingests the payload. A generation failure still leaves
// the user turn in place and answers with a canned fallback turn.
func (s *ChatService) SendMessage(ctx context.Context, chatID, content string) (*SendResult, error) {
	chat, userTurn, err := s.beginRound(ctx, chatID, content)
	if err != nil {
		return nil, err
	}
	payload, err := s.gen.Chat(ctx, content, chat.ID)
	if err != nil {
		return s.fallbackRound(ctx, chat, userTurn, err)
	}
	ingested, err := s.ingest.Ingest(ctx, chat.ID, payload)
	if err != nil {
		return nil, err
	}
	_ = s.chats.Touch(ctx, chat.ID, timeutil.NowUnix())
	return &SendResult{UserTurn: userTurn, Ingest: ingested}, nil
}

// SendComparison is SendMessage for the multi-variant evaluation path.
func (s *ChatService) SendComparison(ctx context.Context, chatID, content string) (*SendResult, error) {
	chat, userTurn, err := s.beginRound(ctx, chatID, content)
	if err != nil {
		return nil, err
	}
	payload, err := s.gen.Compare(ctx, content, chat.ID)
	if err != nil {
		return s.fallbackRound(ctx, chat, userTurn, err)
	}
	results, err := s.ingest.IngestComparison(ctx, chat.ID, payload)
	if err != nil {
		return nil, err
	}
	_ = s.chats.Touch(ctx, chat.ID, timeutil.NowUnix())
	return &SendResult{UserTurn: userTurn, Comparison: results}, nil
}

func (s *ChatService) beginRound(ctx context.Context, chatID, content string) (*model.Chat, *model.Turn, error) {
	if content == "" {
		return nil, nil, appErr.ErrInvalid
	}
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	userTurn := &model.Turn{
		ID:      newID(),
		ChatID:  chat.ID,
		Role:    model.RoleUser,
		Content: content,
		Ctime:   timeutil.NowUnix(),
	}
	if err := s.turns.Create(ctx, userTurn); err != nil {
		return nil, nil, err
	}
	if chat.Title == "" {
		if err := s.chats.UpdateTitle(ctx, chat.ID, deriveTitle(content), timeutil.NowUnix()); err != nil {
			logutil.GetLogger(ctx).Error("derive chat title failed", zap.String("chat_id", chat.ID), zap.Error(err))
		}
	}
	return chat, userTurn, nil
}

func (s *ChatService) fallbackRound(ctx context.Context, chat *model.Chat, userTurn *model.Turn, genErr error) (*SendResult, error) {
	logutil.GetLogger(ctx).Error("generation call failed",
		zap.String("chat_id", chat.ID), zap.Error(genErr))
	assistantTurn := &model.Turn{
		ID:      newID(),
		ChatID:  chat.ID,
		Role:    model.RoleAssistant,
		Content: fallbackAnswer,
		Ctime:   timeutil.NowUnix(),
	}
	if err := s.turns.Create(ctx, assistantTurn); err != nil {
		return nil, err
	}
	return &SendResult{
		UserTurn:         userTurn,
		Ingest:           &IngestResult{Turn: assistantTurn},
		GenerationFailed: true,
	}, nil
}

// deriveTitle takes the first user message as the chat title, cut at 50
// characters.
func deriveTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleMaxChars {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleMaxChars])
}
