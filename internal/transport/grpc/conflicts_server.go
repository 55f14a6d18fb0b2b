package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"bookingcrm/backend/internal/conflicts"
	"bookingcrm/backend/internal/domain"
	"bookingcrm/backend/internal/service/bookings"
	"bookingcrm/backend/internal/store"
)

type ConflictsServer struct {
	svc           bookingsService
	watchDebounce time.Duration
	log           *slog.Logger
}

type bookingsService interface {
	CheckConflicts(ctx context.Context, p domain.ProposedAssignment) (conflicts.Result, error)
	Watch(ctx context.Context, in <-chan domain.ProposedAssignment, opts conflicts.WatchOptions) <-chan conflicts.State
	Create(ctx context.Context, in bookings.CreateInput) (domain.Booking, error)
	Reschedule(ctx context.Context, in bookings.RescheduleInput) (domain.Booking, error)
	Delete(ctx context.Context, bookingID uuid.UUID) error
}

var _ ConflictsServiceServer = (*ConflictsServer)(nil)

func NewConflictsServer(svc bookingsService, watchDebounce time.Duration, log *slog.Logger) *ConflictsServer {
	if log == nil {
		log = slog.Default()
	}
	return &ConflictsServer{
		svc:           svc,
		watchDebounce: watchDebounce,
		log:           log.With(slog.String("component", "grpc.conflicts")),
	}
}

func (s *ConflictsServer) CheckConflicts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CheckConflicts"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	p, err := proposalFromStruct(req)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.svc.CheckConflicts(ctx, p)
	if err != nil {
		return nil, s.statusError(log, "conflict check", err)
	}

	log.Debug(
		"conflicts checked",
		slog.String("staff_id", p.StaffID.String()),
		slog.String("team_id", p.TeamID.String()),
		slog.Int("conflicts", len(res.Conflicts)),
	)

	out, err := resultToStruct(res)
	if err != nil {
		return nil, s.statusError(log, "conflict check", err)
	}
	return out, nil
}

// WatchConflicts streams a conflict state for every change of the proposal
// sent by the client. The stream ends when the client closes its side and
// the last check has settled.
func (s *ConflictsServer) WatchConflicts(stream WatchConflictsStream) error {
	log := s.log.With(slog.String("rpc", "WatchConflicts"))

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	in := make(chan domain.ProposedAssignment)
	recvErr := make(chan error, 1)
	go func() {
		defer close(in)
		recvErr <- s.receiveProposals(ctx, cancel, stream, in)
	}()

	states := s.svc.Watch(ctx, in, conflicts.WatchOptions{Debounce: s.watchDebounce})
	for st := range states {
		msg, err := stateToStruct(st)
		if err != nil {
			log.Error("encode state failed", slog.Any("err", err))
			return status.Error(codes.Internal, "internal error")
		}
		if err := stream.Send(msg); err != nil {
			log.Info("watch send failed", slog.Any("err", err))
			return err
		}
	}

	if err := <-recvErr; err != nil {
		return err
	}
	log.Debug("watch closed")
	return nil
}

func (s *ConflictsServer) receiveProposals(ctx context.Context, cancel context.CancelFunc, stream WatchConflictsStream, in chan<- domain.ProposedAssignment) error {
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		p, err := proposalFromStruct(msg)
		if err != nil {
			cancel()
			return status.Error(codes.InvalidArgument, err.Error())
		}

		select {
		case in <- p:
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		}
	}
}

func (s *ConflictsServer) CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	p, err := proposalFromStruct(req)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	b, err := s.svc.Create(ctx, bookings.CreateInput{
		StaffID:        p.StaffID,
		TeamID:         p.TeamID,
		Title:          stringField(req, "title"),
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		StartTime:      p.StartTime,
		EndTime:        p.EndTime,
		Status:         domain.BookingStatus(stringField(req, "status")),
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, s.statusError(log, "booking create", err)
	}

	log.Info(
		"booking created",
		slog.String("booking_id", b.ID.String()),
		slog.String("start_date", domain.FormatDate(b.StartDate)),
		slog.String("start_time", b.StartTime),
	)

	out, err := bookingToStruct(b)
	if err != nil {
		return nil, s.statusError(log, "booking create", err)
	}
	return out, nil
}

func (s *ConflictsServer) RescheduleBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "RescheduleBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := requiredBookingID(req)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	p, err := proposalFromStruct(req)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err), slog.String("booking_id", id.String()))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	b, err := s.svc.Reschedule(ctx, bookings.RescheduleInput{
		BookingID: id,
		StaffID:   p.StaffID,
		TeamID:    p.TeamID,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
	})
	if err != nil {
		return nil, s.statusError(log.With(slog.String("booking_id", id.String())), "booking reschedule", err)
	}

	log.Info(
		"booking rescheduled",
		slog.String("booking_id", b.ID.String()),
		slog.String("start_date", domain.FormatDate(b.StartDate)),
		slog.String("start_time", b.StartTime),
	)

	out, err := bookingToStruct(b)
	if err != nil {
		return nil, s.statusError(log, "booking reschedule", err)
	}
	return out, nil
}

func (s *ConflictsServer) DeleteBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "DeleteBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := requiredBookingID(req)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.svc.Delete(ctx, id); err != nil {
		return nil, s.statusError(log.With(slog.String("booking_id", id.String())), "booking delete", err)
	}

	log.Info("booking deleted", slog.String("booking_id", id.String()))
	return &structpb.Struct{}, nil
}

func requiredBookingID(req *structpb.Struct) (uuid.UUID, error) {
	id, err := uuidField(req, "booking_id")
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, &fieldError{field: "booking_id", reason: "is required"}
	}
	return id, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// statusError logs err at the level its kind deserves and maps it to a gRPC
// status. Internal errors never leak their text to the client.
func (s *ConflictsServer) statusError(log *slog.Logger, what string, err error) error {
	var cErr *bookings.ConflictError
	switch {
	case errors.As(err, &cErr):
		log.Info(what+" conflict", slog.Int("conflicts", len(cErr.Conflicts)))
		return status.Error(codes.FailedPrecondition, cErr.Error())
	case errors.Is(err, store.ErrConflict):
		log.Info(what+" conflict", slog.String("source", "constraint"))
		return status.Error(codes.FailedPrecondition, "The staff member or team is already booked during that time. Pick a different slot.")
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info(what+" idempotency conflict")
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different booking. Try again.")
	case errors.Is(err, domain.ErrInvalidInput):
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info("booking not found")
		return status.Error(codes.NotFound, "booking not found")
	case conflicts.IsTimeout(err):
		log.Warn(what+" timed out", slog.Any("err", err))
		return status.Error(codes.DeadlineExceeded, conflicts.ErrFetchFailed.Error())
	case errors.Is(err, conflicts.ErrFetchFailed):
		log.Warn(what+" unavailable", slog.Any("err", err))
		return status.Error(codes.Unavailable, conflicts.ErrFetchFailed.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Info(what+" aborted", slog.Any("err", err))
		return status.FromContextError(err).Err()
	}
	log.Error(what+" failed", slog.Any("err", err))
	return status.Error(codes.Internal, "internal error")
}

// stateError reduces a watch error to a short code and a client-safe message.
func stateError(err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_argument", err.Error()
	case conflicts.IsTimeout(err):
		return "timeout", conflicts.ErrFetchFailed.Error()
	case errors.Is(err, conflicts.ErrFetchFailed):
		return "unavailable", conflicts.ErrFetchFailed.Error()
	}
	return "internal", "internal error"
}
