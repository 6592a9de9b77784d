package server

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/seu-repo/terra-assistant/internal/domain"
	"github.com/seu-repo/terra-assistant/internal/ports"
)

const (
	ServiceName            = "terra.assistant.v1.Assistant"
	MethodProcessUtterance = "/" + ServiceName + "/ProcessUtterance"
	MethodHistory          = "/" + ServiceName + "/History"
	defaultHistoryLimit    = 20
)

type UtteranceRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (r *UtteranceRequest) Session() string { return r.SessionID }

type HistoryRequest struct {
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
}

func (r *HistoryRequest) Session() string { return r.SessionID }

type HistoryResponse struct {
	Commands []domain.CommandRecord `json:"commands"`
}

// AssistantServer is the server API of terra.assistant.v1.Assistant.
type AssistantServer interface {
	ProcessUtterance(ctx context.Context, req *UtteranceRequest) (*domain.AssistantResponse, error)
	History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error)
}

// AssistantServiceDesc is registered by hand in place of generated code.
var AssistantServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AssistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessUtterance", Handler: processUtteranceHandler},
		{MethodName: "History", Handler: historyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "terra/assistant/v1/assistant.json",
}

func processUtteranceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UtteranceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).ProcessUtterance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodProcessUtterance}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AssistantServer).ProcessUtterance(ctx, req.(*UtteranceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func historyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).History(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodHistory}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AssistantServer).History(ctx, req.(*HistoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type assistantService struct {
	assistant ports.VoiceAssistant
	log       *zap.Logger
}

func (s *assistantService) ProcessUtterance(ctx context.Context, req *UtteranceRequest) (*domain.AssistantResponse, error) {
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	if req.Text == "" {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}
	return s.assistant.ProcessUtterance(ctx, req.SessionID, req.Text), nil
}

func (s *assistantService) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, err := s.assistant.History(ctx, req.SessionID, limit)
	if err != nil {
		s.log.Error("Failed to load command history", zap.String("session_id", req.SessionID), zap.Error(err))
		return nil, status.Error(codes.Unavailable, "history unavailable")
	}
	return &HistoryResponse{Commands: records}, nil
}
