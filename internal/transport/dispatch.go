package transport

import (
	"context"
	"errors"

	"github.com/vburojevic/readtime/internal/domain"
	"github.com/vburojevic/readtime/internal/session"
	"go.uber.org/zap"
)

// dispatch answers one request. The response always carries req.ID.
func (s *Server) dispatch(ctx context.Context, c *conn, req domain.Envelope) domain.Envelope {
	ack := domain.Envelope{Type: domain.MsgAck, ID: req.ID, ContextID: req.ContextID}

	switch req.Type {
	case domain.MsgRegister:
		if err := s.tracker.Register(ctx, req.ContextID); err != nil {
			return errorEnvelope(req.ID, err)
		}
		c.track(req.ContextID)
		return ack

	case domain.MsgUnregister:
		if err := s.tracker.Unregister(ctx, req.ContextID); err != nil {
			return errorEnvelope(req.ID, err)
		}
		c.untrack(req.ContextID)
		return ack

	case domain.MsgTick:
		result, err := s.tracker.Tick(ctx, req.ContextID)
		if err != nil {
			return errorEnvelope(req.ID, err)
		}
		return domain.Envelope{Type: domain.MsgTickResult, ID: req.ID, ContextID: req.ContextID, Tick: &result}

	case domain.MsgAcknowledge:
		if err := s.tracker.Acknowledge(ctx, req.URL); err != nil {
			return errorEnvelope(req.ID, err)
		}
		return ack

	case domain.MsgResetSession:
		if err := s.tracker.Reset(ctx); err != nil {
			return errorEnvelope(req.ID, err)
		}
		return ack

	case domain.MsgGetSettings:
		settings, err := s.tracker.Settings(ctx)
		return settingsEnvelope(req.ID, settings, err)

	case domain.MsgSetThreshold:
		if req.ThresholdSeconds == nil {
			return domain.NewErrorEnvelope(req.ID, domain.CodeInvalidRequest, "threshold_seconds is required")
		}
		settings, err := s.tracker.SetThreshold(ctx, *req.ThresholdSeconds)
		return settingsEnvelope(req.ID, settings, err)

	case domain.MsgSetEnabled:
		if req.Enabled == nil {
			return domain.NewErrorEnvelope(req.ID, domain.CodeInvalidRequest, "enabled is required")
		}
		settings, err := s.tracker.SetEnabled(ctx, *req.Enabled)
		return settingsEnvelope(req.ID, settings, err)

	case domain.MsgGetStatus:
		st, err := s.tracker.Status(ctx)
		if err != nil {
			return errorEnvelope(req.ID, err)
		}
		return domain.Envelope{Type: domain.MsgStatus, ID: req.ID, Status: &st}

	case domain.MsgContextEntered, domain.MsgContextNavigated:
		return s.dispatchPage(ctx, c, req)

	case domain.MsgContextLeft:
		if s.lifecycle == nil {
			return domain.NewErrorEnvelope(req.ID, domain.CodeUnknownType, "lifecycle events are not enabled")
		}
		if err := s.lifecycle.OnContextLeft(ctx, req.ContextID); err != nil {
			return errorEnvelope(req.ID, err)
		}
		c.untrack(req.ContextID)
		return ack
	}

	s.logger.Debug("unknown message type", zap.String("type", string(req.Type)))
	return domain.NewErrorEnvelope(req.ID, domain.CodeUnknownType, "unknown message type "+string(req.Type))
}

func (s *Server) dispatchPage(ctx context.Context, c *conn, req domain.Envelope) domain.Envelope {
	if s.lifecycle == nil {
		return domain.NewErrorEnvelope(req.ID, domain.CodeUnknownType, "lifecycle events are not enabled")
	}
	if req.ContextID == "" || req.Page == nil {
		return domain.NewErrorEnvelope(req.ID, domain.CodeInvalidRequest, "context_id and page are required")
	}

	var (
		tracked bool
		err     error
	)
	if req.Type == domain.MsgContextEntered {
		tracked, err = s.lifecycle.OnContextEntered(ctx, req.ContextID, *req.Page)
	} else {
		tracked, err = s.lifecycle.OnContextNavigated(ctx, req.ContextID, *req.Page)
	}
	if err != nil {
		return errorEnvelope(req.ID, err)
	}
	if tracked {
		c.track(req.ContextID)
	} else {
		c.untrack(req.ContextID)
	}
	return domain.Envelope{Type: domain.MsgAck, ID: req.ID, ContextID: req.ContextID, Tracked: &tracked}
}

func settingsEnvelope(id uint64, settings domain.Settings, err error) domain.Envelope {
	if err != nil {
		return errorEnvelope(id, err)
	}
	return domain.Envelope{Type: domain.MsgSettings, ID: id, Settings: &settings}
}

// errorEnvelope maps tracker errors onto wire error codes.
func errorEnvelope(id uint64, err error) domain.Envelope {
	code := domain.CodeInternal
	switch {
	case errors.Is(err, domain.ErrThresholdOutOfRange):
		code = domain.CodeThresholdRange
	case errors.Is(err, session.ErrEmptyContextID):
		code = domain.CodeInvalidRequest
	case errors.Is(err, session.ErrStopped):
		code = domain.CodeTrackerStopped
	}
	return domain.NewErrorEnvelope(id, code, err.Error())
}
