package service

import (
	"context"
	"fmt"
	"heartspeak/internal/metrics"
	"heartspeak/internal/model"
	"heartspeak/internal/repository"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	// fallbackEmotion is relayed while the recognition service is unavailable
	fallbackEmotion = "processing"
	topEmotionCount = 5
)

// CallLookup resolves a call the user participates in
type CallLookup interface {
	Get(ctx context.Context, callID, userID string) (*model.CallSession, error)
}

// EmotionServiceOptions tunes persistence of observations
type EmotionServiceOptions struct {
	// PersistThreshold is the confidence an analysis must exceed to be stored
	PersistThreshold float64
	StoreFrames      bool
}

// EmotionService relays emotion results between participants and keeps the
// call's emotion log. Real-time delivery always wins over persistence.
type EmotionService struct {
	emotions   repository.EmotionRepo
	calls      CallLookup
	recognizer Recognizer
	hub        Broadcaster
	logger     *zap.Logger
	metrics    *metrics.Metrics
	opts       EmotionServiceOptions
	now        func() time.Time
}

// NewEmotionService creates a new emotion pipeline
func NewEmotionService(
	emotions repository.EmotionRepo,
	calls CallLookup,
	recognizer Recognizer,
	hub Broadcaster,
	logger *zap.Logger,
	m *metrics.Metrics,
	opts EmotionServiceOptions,
) *EmotionService {
	return &EmotionService{
		emotions:   emotions,
		calls:      calls,
		recognizer: recognizer,
		hub:        hub,
		logger:     logger.Named("emotion"),
		metrics:    m,
		opts:       opts,
		now:        time.Now,
	}
}

// HandleFrame picks the pipeline mode from the payload shape: a frame is
// analyzed, a pre-computed emotion is broadcast.
func (s *EmotionService) HandleFrame(ctx context.Context, actor Actor, req *model.EmotionFrameRequest) error {
	switch {
	case req.FrameData != "":
		return s.AnalyzeFrame(ctx, actor, req)
	case len(req.Emotion) > 0 && string(req.Emotion) != "null":
		return s.Broadcast(actor, req)
	default:
		return badRequest("frameData or emotion is required")
	}
}

// Broadcast fans a pre-computed result out to every other member of the call channel
func (s *EmotionService) Broadcast(actor Actor, req *model.EmotionFrameRequest) error {
	if req.CallID == "" {
		return badRequest("callId is required")
	}
	userID := req.UserID
	if userID == "" {
		userID = actor.UserID
	}

	s.hub.PublishExcept(CallChannel(req.CallID), actor.Conn, EvEmotionResult, &model.EmotionResultEvent{
		UserID:  userID,
		Emotion: req.Emotion,
	})
	return nil
}

// AnalyzeFrame runs the frame through the recognition service, stores
// confident results and relays the outcome to the target participant. A
// recognition failure is relayed as a fallback payload, never returned.
func (s *EmotionService) AnalyzeFrame(ctx context.Context, actor Actor, req *model.EmotionFrameRequest) error {
	if req.CallID == "" {
		return badRequest("callId is required")
	}
	if req.TargetUserID == "" {
		return badRequest("targetUserId is required")
	}

	start := time.Now()
	analysis, err := s.recognizer.AnalyzeEmotion(ctx, &AnalyzeRequest{
		Image:  req.FrameData,
		UserID: actor.UserID,
		CallID: req.CallID,
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		s.metrics.RecognitionDone("failure", elapsed)
		s.logger.Warn("recognition failed, relaying fallback",
			zap.String("callId", req.CallID),
			zap.String("userId", actor.UserID),
			zap.Error(err))
		s.hub.Publish(UserChannel(req.TargetUserID), EvCallEmotion, s.fallbackEvent(req.CallID, actor.UserID))
		return nil
	}
	s.metrics.RecognitionDone("success", elapsed)

	now := s.now()
	s.hub.Publish(UserChannel(req.TargetUserID), EvCallEmotion, &model.CallEmotionEvent{
		CallID:          req.CallID,
		FromUserID:      actor.UserID,
		Emotions:        analysis.Emotions,
		DominantEmotion: analysis.DominantEmotion,
		Text:            analysis.GeneratedText,
		Confidence:      analysis.Confidence,
		Intensity:       analysis.Intensity,
		Nuances:         analysis.Nuances,
		Timestamp:       now,
	})

	// delivery first; a slow store only delays the log
	if analysis.Confidence > s.opts.PersistThreshold {
		s.persist(ctx, &model.EmotionLog{
			CallID:           req.CallID,
			UserID:           actor.UserID,
			Timestamp:        now,
			DetectedEmotions: analysis.Emotions,
			DominantEmotion:  analysis.DominantEmotion,
			Confidence:       analysis.Confidence,
			GeneratedText:    analysis.GeneratedText,
			FrameData:        s.frameToStore(req.FrameData),
		})
	}
	return nil
}

// LogEmotion stores an observation submitted directly by a participant of an active call
func (s *EmotionService) LogEmotion(ctx context.Context, userID, callID string, req *model.LogEmotionRequest) (*model.EmotionLog, error) {
	if err := validateLogEmotion(req); err != nil {
		return nil, err
	}

	call, err := s.calls.Get(ctx, callID, userID)
	if err != nil {
		return nil, err
	}
	if call.Status != model.CallActive {
		return nil, fmt.Errorf("%w: call %s is not active", ErrInvalidState, callID)
	}

	log := &model.EmotionLog{
		CallID:           callID,
		UserID:           userID,
		Timestamp:        s.now(),
		DetectedEmotions: req.DetectedEmotions,
		DominantEmotion:  req.DominantEmotion,
		Confidence:       req.Confidence,
		GeneratedText:    req.GeneratedText,
		FrameData:        s.frameToStore(req.FrameData),
	}
	if err := s.emotions.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to log emotion: %w", err)
	}
	s.metrics.Persisted()
	log.FrameData = ""
	return log, nil
}

// History returns a call's observations oldest first
func (s *EmotionService) History(ctx context.Context, userID, callID string) ([]*model.EmotionLog, error) {
	if _, err := s.calls.Get(ctx, callID, userID); err != nil {
		return nil, err
	}
	return s.emotions.ListByCall(ctx, callID)
}

// Summary tallies the dominant emotions of a call
func (s *EmotionService) Summary(ctx context.Context, userID, callID string) (*model.EmotionSummary, error) {
	logs, err := s.History(ctx, userID, callID)
	if err != nil {
		return nil, err
	}
	return summarize(callID, logs), nil
}

func (s *EmotionService) persist(ctx context.Context, log *model.EmotionLog) {
	if err := s.emotions.Create(ctx, log); err != nil {
		s.metrics.PersistFailed()
		s.logger.Error("persist emotion log",
			zap.String("callId", log.CallID),
			zap.String("userId", log.UserID),
			zap.Error(err))
		return
	}
	s.metrics.Persisted()
}

func (s *EmotionService) frameToStore(frame string) string {
	if s.opts.StoreFrames {
		return frame
	}
	return ""
}

func (s *EmotionService) fallbackEvent(callID, fromUserID string) *model.CallEmotionEvent {
	return &model.CallEmotionEvent{
		CallID:          callID,
		FromUserID:      fromUserID,
		Emotions:        []string{},
		DominantEmotion: fallbackEmotion,
		Text:            "Reading emotions...",
		Confidence:      0,
		Timestamp:       s.now(),
	}
}

func validateLogEmotion(req *model.LogEmotionRequest) error {
	switch {
	case len(req.DetectedEmotions) == 0:
		return badRequest("detectedEmotions must not be empty")
	case req.DominantEmotion == "":
		return badRequest("dominantEmotion is required")
	case req.Confidence < 0 || req.Confidence > 1:
		return badRequest("confidence must be within [0,1]")
	case req.GeneratedText == "":
		return badRequest("generatedText is required")
	}
	return nil
}

// summarize counts dominant emotions and keeps the most frequent ones
func summarize(callID string, logs []*model.EmotionLog) *model.EmotionSummary {
	counts := make(map[string]int)
	for _, l := range logs {
		counts[l.DominantEmotion]++
	}

	top := make([]model.EmotionCount, 0, len(counts))
	for emotion, n := range counts {
		top = append(top, model.EmotionCount{
			Emotion:    emotion,
			Count:      n,
			Percentage: math.Round(float64(n)*1000/float64(len(logs))) / 10,
		})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Emotion < top[j].Emotion
	})
	if len(top) > topEmotionCount {
		top = top[:topEmotionCount]
	}

	summary := &model.EmotionSummary{
		CallID:        callID,
		TotalAnalyzed: len(logs),
		TopEmotions:   top,
	}
	if len(top) == 0 {
		summary.Summary = "No emotions were analyzed during this call."
	} else {
		summary.Summary = fmt.Sprintf("Mostly %s (%.1f%%) across %d observations.",
			top[0].Emotion, top[0].Percentage, len(logs))
	}
	return summary
}
