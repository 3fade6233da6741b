package grpc

import (
	"errors"
	"fmt"
	"math"

	"github.com/DRSN-tech/recommender/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func GRPCErrorResponse(err error) error {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return status.Error(codes.NotFound, e.ErrNotFound.Error())
	case errors.Is(err, e.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, e.ErrDimMismatch):
		return status.Error(codes.InvalidArgument, e.ErrDimMismatch.Error())
	case errors.Is(err, e.ErrIndexUnavailable):
		return status.Error(codes.Unavailable, e.ErrIndexUnavailable.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}

// intField читает целое поле запроса. Отсутствующее поле даёт def.
func intField(s *structpb.Struct, name string, def int) (int, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return def, nil
	}

	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("%w: %s must be an integer", e.ErrInvalidArgument, name)
	}

	return int(n.NumberValue), nil
}

func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", e.ErrInvalidArgument, name)
	}

	return v.StringValue, nil
}

func stringListField(s *structpb.Struct, name string) ([]string, error) {
	list, ok := s.GetFields()[name].GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a list of strings", e.ErrInvalidArgument, name)
	}

	res := make([]string, 0, len(list.ListValue.GetValues()))
	for _, v := range list.ListValue.GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a list of strings", e.ErrInvalidArgument, name)
		}
		res = append(res, sv.StringValue)
	}

	return res, nil
}
