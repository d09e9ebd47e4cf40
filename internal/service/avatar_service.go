package service

import (
	"context"
	"heartspeak/internal/model"

	"go.uber.org/zap"
)

// fallbackSuggestion is sent when the recognition service cannot help
var fallbackSuggestion = model.AvatarSuggestion{
	Text:       "Based on your recent emotions, you might want to reach out...",
	Emotion:    "caring",
	Confidence: 0.75,
}

// AvatarService produces conversation suggestions for a user
type AvatarService struct {
	recognizer Recognizer
	hub        Broadcaster
	logger     *zap.Logger
}

// NewAvatarService creates a new avatar suggestion service
func NewAvatarService(recognizer Recognizer, hub Broadcaster, logger *zap.Logger) *AvatarService {
	return &AvatarService{
		recognizer: recognizer,
		hub:        hub,
		logger:     logger.Named("avatar"),
	}
}

// RequestSuggestion replies to the actor with one suggestion
func (s *AvatarService) RequestSuggestion(ctx context.Context, actor Actor, req *model.AvatarSuggestionRequest) error {
	suggestion := fallbackSuggestion

	suggestions, err := s.recognizer.SuggestAvatar(ctx, &SuggestRequest{
		UserID:      actor.UserID,
		Context:     req.Context,
		RecipientID: req.RecipientID,
	})
	switch {
	case err != nil:
		s.logger.Warn("avatar suggestion failed, using fallback", zap.String("userId", actor.UserID), zap.Error(err))
	case len(suggestions) > 0:
		suggestion = suggestions[0]
	}

	reply(s.hub, actor, EvAvatarSuggestion, &suggestion)
	return nil
}
