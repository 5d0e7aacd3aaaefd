package eventbus

import (
	"context"
	"time"

	"roadscan-server-go/internal/domain/eventbus/repository"
	"roadscan-server-go/internal/utils"
)

// Subscriber is the part of a bus the handlers attach to.
type Subscriber interface {
	Subscribe(topic string, fn interface{}) error
}

// DefaultEventHandler logs analysis and session events and, when a
// repository is set, journals them.
type DefaultEventHandler struct {
	logger *utils.Logger
	repo   repository.EventRepository
}

func NewDefaultEventHandler(logger *utils.Logger, repo repository.EventRepository) *DefaultEventHandler {
	return &DefaultEventHandler{logger: logger, repo: repo}
}

func (h *DefaultEventHandler) Handle(eventType string, data interface{}) {
	switch d := data.(type) {
	case AnalysisEventData:
		h.handleAnalysis(eventType, d)
		h.journal(eventType, d.SessionID, d)
	case RecordFallbackEventData:
		h.logger.WarnTag("Events", "record fallback: op=%s placeholder=%s reason=%s", d.Operation, d.PlaceholderID, d.Reason)
		h.journal(eventType, "", d)
	case SessionEventData:
		h.logger.DebugTag("Events", "session %s: %s -> %s", d.SessionID, d.From, d.To)
		h.journal(eventType, d.SessionID, d)
	default:
		h.logger.DebugTag("Events", "unhandled event type: %s", eventType)
	}
}

func (h *DefaultEventHandler) handleAnalysis(eventType string, d AnalysisEventData) {
	switch eventType {
	case EventAnalysisStarted:
		h.logger.DebugTag("Events", "analysis started: file=%s session=%s", d.FileName, d.SessionID)
	case EventAnalysisCompleted:
		h.logger.InfoTag("Events", "analysis completed: file=%s result=%s upload=%s damage=%.2f%% took=%dms",
			d.FileName, d.ResultID, d.UploadID, d.DamagePercentage, d.DurationMS)
	case EventAnalysisFailed:
		h.logger.WarnTag("Events", "analysis failed: file=%s error=%s", d.FileName, d.Error)
	}
}

func (h *DefaultEventHandler) journal(eventType, sessionID string, data interface{}) {
	if h.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.repo.Store(ctx, repository.Event{
		EventType: eventType,
		SessionID: sessionID,
		Data:      data,
		CreatedAt: time.Now(),
	}); err != nil {
		h.logger.WarnTag("Events", "journal %s: %v", eventType, err)
	}
}

// SetupEventHandlers subscribes handler to every analysis topic on bus.
func SetupEventHandlers(bus Subscriber, handler *DefaultEventHandler) error {
	topics := []string{
		EventAnalysisStarted,
		EventAnalysisCompleted,
		EventAnalysisFailed,
		EventRecordFallback,
		EventSessionTransition,
	}
	for _, topic := range topics {
		if err := bus.Subscribe(topic, func(args ...interface{}) {
			if len(args) > 0 {
				handler.Handle(topic, args[0])
			}
		}); err != nil {
			return err
		}
	}
	return nil
}
