package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func (s *GRPCServer) Whoami(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	return s.describe(ctx, claims.Identifier)
}

func (s *GRPCServer) Introspect(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := strings.TrimSpace(in.GetValue())
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	return s.describe(ctx, claims.Identifier)
}

func (s *GRPCServer) describe(ctx context.Context, identifier string) (*structpb.Struct, error) {
	user, err := s.accounts.Me(ctx, identifier)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := userStruct(user)
	if err != nil {
		s.logger.Error(ctx, "encode user", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func userStruct(u *models.User) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":                u.ID,
		"emailOrTelegramId": u.Identifier,
		"role":              u.Role,
		"verified":          u.Verified,
		"telegramId":        nil,
	}
	if u.TelegramID != nil {
		fields["telegramId"] = *u.TelegramID
	}
	if u.Telegram.Username != "" {
		fields["telegramUsername"] = u.Telegram.Username
	}
	if u.Telegram.FirstName != "" {
		fields["firstName"] = u.Telegram.FirstName
	}
	if u.Telegram.LastName != "" {
		fields["lastName"] = u.Telegram.LastName
	}
	if u.Telegram.PhotoURL != "" {
		fields["photoUrl"] = u.Telegram.PhotoURL
	}
	return structpb.NewStruct(fields)
}

// toStatus maps service errors onto gRPC codes. Only *common.Error messages
// are passed to the caller.
func toStatus(err error) error {
	msg := "internal error"
	var ce *common.Error
	if errors.As(err, &ce) {
		msg = ce.Message
	}

	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, msg)
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, msg)
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, msg)
	case errors.Is(err, common.ErrorConflict):
		return status.Error(codes.AlreadyExists, msg)
	case errors.Is(err, common.ErrorServiceUnavailable):
		return status.Error(codes.Unavailable, msg)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, msg)
	}
}
