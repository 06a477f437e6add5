package server

import (
	"context"
	"errors"
	"os"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/xtding233/fairwheel/internal/sched"
	"github.com/xtding233/fairwheel/internal/store"
	"github.com/xtding233/fairwheel/internal/wheel"
)

// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var loadErr *store.LoadError
	switch {
	case errors.Is(err, wheel.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, wheel.ErrBusy):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, wheel.ErrEmptyPool), errors.Is(err, wheel.ErrNoEligible):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, sched.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.As(err, &loadErr):
		if errors.Is(err, os.ErrNotExist) {
			return status.Error(codes.NotFound, err.Error())
		}
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
