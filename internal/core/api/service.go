// Package api implements the rulesmith.v1.ConversationService gRPC service:
// a multi-session front end over the conversation state machine.
package api

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/rules"
)

// ConversationService implements ConversationServer.
// Thin orchestration layer over SessionStore and conversation.Session.
type ConversationService struct {
	sessions       *SessionStore
	requestTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

var _ ConversationServer = (*ConversationService)(nil)

// NewConversationService creates the service. requestTimeout bounds each
// SendMessage turn; zero leaves the caller's deadline in charge.
func NewConversationService(sessions *SessionStore, requestTimeout time.Duration, logger *zap.Logger) (*ConversationService, error) {
	if sessions == nil {
		return nil, fmt.Errorf("sessions cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		sessions:       sessions,
		requestTimeout: requestTimeout,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// StartSession opens a session and returns its greeting state.
func (s *ConversationService) StartSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.sessions.Create()
	if err != nil {
		s.logger.Warn("session rejected", zap.Error(err), zap.Int("active", s.sessions.Len()))
		return nil, toStatus(err)
	}
	s.logger.Info("session started", zap.String("session_id", string(sess.ID())))
	return s.render(sess.Snapshot())
}

// SendMessage runs one conversation turn.
func (s *ConversationService) SendMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireSessionID(req)
	if err != nil {
		return nil, toStatus(err)
	}
	text, err := requireString(req, "text")
	if err != nil {
		return nil, toStatus(err)
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}

	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	st, err := sess.Send(ctx, text)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.render(st)
}

// ResetSession discards the current rule and starts over.
func (s *ConversationService) ResetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireSessionID(req)
	if err != nil {
		return nil, toStatus(err)
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.render(sess.Reset())
}

// GetSession returns the current state without changing it.
func (s *ConversationService) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireSessionID(req)
	if err != nil {
		return nil, toStatus(err)
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.render(sess.Snapshot())
}

// ExportRule returns the confirmed rule as canonical JSON with its file name.
func (s *ConversationService) ExportRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireSessionID(req)
	if err != nil {
		return nil, toStatus(err)
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}

	rs, ok := sess.Snapshot().ConfirmedRule()
	if !ok {
		return nil, toStatus(ErrNotConfirmed)
	}
	data, err := rules.Export(rs)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := toStruct(ExportView{
		SessionID: string(id),
		FileName:  rules.ExportFileName(s.now()),
		Rule:      string(data),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

// EndSession forgets a session.
func (s *ConversationService) EndSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireSessionID(req)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.sessions.Delete(id); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("session ended", zap.String("session_id", string(id)))

	out, err := toStruct(EndView{SessionID: string(id), Ended: true})
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

func (s *ConversationService) render(st conversation.State) (*structpb.Struct, error) {
	view, err := newSessionView(st)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := toStruct(view)
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}
