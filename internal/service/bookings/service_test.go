package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"bookingcrm/backend/internal/conflicts"
	"bookingcrm/backend/internal/domain"
	"bookingcrm/backend/internal/store"
)

var (
	staffA = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	staffB = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
	teamX  = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
)

type fakeTx struct {
	listCandidatesFn  func(ctx context.Context, q store.CandidateQuery) ([]domain.Booking, error)
	listTeamMembersFn func(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error)
	getBookingFn      func(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	createFn          func(ctx context.Context, b domain.Booking) (domain.Booking, error)
	updateFn          func(ctx context.Context, b domain.Booking) (domain.Booking, error)
	softDeleteFn      func(ctx context.Context, bookingID uuid.UUID) error
}

func (f *fakeTx) ListCandidates(ctx context.Context, q store.CandidateQuery) ([]domain.Booking, error) {
	if f.listCandidatesFn == nil {
		panic("ListCandidates not configured")
	}
	return f.listCandidatesFn(ctx, q)
}

func (f *fakeTx) ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	if f.listTeamMembersFn == nil {
		panic("ListTeamMembers not configured")
	}
	return f.listTeamMembersFn(ctx, teamID)
}

func (f *fakeTx) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	if f.getBookingFn == nil {
		panic("GetBooking not configured")
	}
	return f.getBookingFn(ctx, bookingID)
}

func (f *fakeTx) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if f.createFn == nil {
		panic("CreateBooking not configured")
	}
	return f.createFn(ctx, b)
}

func (f *fakeTx) UpdateBookingSchedule(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if f.updateFn == nil {
		panic("UpdateBookingSchedule not configured")
	}
	return f.updateFn(ctx, b)
}

func (f *fakeTx) SoftDeleteBooking(ctx context.Context, bookingID uuid.UUID) error {
	if f.softDeleteFn == nil {
		panic("SoftDeleteBooking not configured")
	}
	return f.softDeleteFn(ctx, bookingID)
}

// fakeRepo runs every transaction against tx and records the lock keys.
type fakeRepo struct {
	*fakeTx
	lockedKeys [][]string
}

func (f *fakeRepo) InResourceTransaction(ctx context.Context, keys []string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	f.lockedKeys = append(f.lockedKeys, keys)
	return fn(ctx, f.fakeTx)
}

type countingObserver struct {
	results map[string]int
}

func (o *countingObserver) ObserveWrite(op, result string) {
	if o.results == nil {
		o.results = map[string]int{}
	}
	o.results[op+"/"+result]++
}

func newService(repo *fakeRepo, includeMembers bool, obs WriteObserver) *Service {
	checker := conflicts.NewChecker(repo, repo, conflicts.Options{IncludeTeamMembers: includeMembers})
	return NewService(repo, checker, Options{Observer: obs})
}

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func staffBooking(staff uuid.UUID, start, from, to string) domain.Booking {
	return domain.Booking{
		ID:        uuid.New(),
		StaffID:   &staff,
		Title:     "Window cleaning",
		StartDate: day(start),
		StartTime: from,
		EndTime:   to,
		Status:    domain.BookingStatusConfirmed,
	}
}

func noCandidates(context.Context, store.CandidateQuery) ([]domain.Booking, error) {
	return nil, nil
}

func TestServiceCreate_ValidationErrorType(t *testing.T) {
	svc := newService(&fakeRepo{fakeTx: &fakeTx{}}, false, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		StaffID:   staffA,
		StartDate: day("2026-02-19"),
		StartTime: "10:00",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *domain.ValidationError", err)
	}
	if vErr.Error() != "title is required" {
		t.Fatalf("error = %q, want %q", vErr.Error(), "title is required")
	}
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("errors.Is(err, ErrInvalidInput) = false")
	}
}

func TestServiceCreate_RejectsInvalidSchedule(t *testing.T) {
	svc := newService(&fakeRepo{fakeTx: &fakeTx{}}, false, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		StaffID:   staffA,
		Title:     "x",
		StartDate: day("2026-02-19"),
		StartTime: "12:00",
		EndTime:   "10:00",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestServiceCreate_WritesWhenClear(t *testing.T) {
	var got domain.Booking
	repo := &fakeRepo{fakeTx: &fakeTx{
		listCandidatesFn: func(ctx context.Context, q store.CandidateQuery) ([]domain.Booking, error) {
			return []domain.Booking{staffBooking(staffA, "2026-02-19", "10:00", "12:00")}, nil
		},
		createFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
			got = b
			return b, nil
		},
	}}
	obs := &countingObserver{}
	svc := newService(repo, false, obs)

	_, err := svc.Create(context.Background(), CreateInput{
		StaffID:   staffA,
		Title:     "  Carpet  ",
		StartDate: day("2026-02-19"),
		StartTime: "12:00",
		EndTime:   "14:00",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.Title != "Carpet" {
		t.Fatalf("title = %q, want %q", got.Title, "Carpet")
	}
	if got.Status != domain.BookingStatusPending {
		t.Fatalf("status = %q, want %q", got.Status, domain.BookingStatusPending)
	}
	if got.StaffID == nil || *got.StaffID != staffA || got.TeamID != nil {
		t.Fatalf("resource = %v/%v, want staff %s", got.StaffID, got.TeamID, staffA)
	}
	if len(repo.lockedKeys) != 1 || len(repo.lockedKeys[0]) != 1 || repo.lockedKeys[0][0] != "staff:"+staffA.String() {
		t.Fatalf("locked keys = %v", repo.lockedKeys)
	}
	if obs.results["create/ok"] != 1 {
		t.Fatalf("observed = %v", obs.results)
	}
}

func TestServiceCreate_ConflictBlocksWrite(t *testing.T) {
	repo := &fakeRepo{fakeTx: &fakeTx{
		listCandidatesFn: func(ctx context.Context, q store.CandidateQuery) ([]domain.Booking, error) {
			return []domain.Booking{staffBooking(staffA, "2026-02-19", "10:00", "12:00")}, nil
		},
	}}
	obs := &countingObserver{}
	svc := newService(repo, false, obs)

	_, err := svc.Create(context.Background(), CreateInput{
		StaffID:   staffA,
		Title:     "x",
		StartDate: day("2026-02-19"),
		StartTime: "11:00",
		EndTime:   "13:00",
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
	var cErr *ConflictError
	if !errors.As(err, &cErr) || len(cErr.Conflicts) != 1 {
		t.Fatalf("error = %#v, want one conflict", err)
	}
	if obs.results["create/conflict"] != 1 {
		t.Fatalf("observed = %v", obs.results)
	}
}

func TestServiceCreate_CancelledSkipsCheck(t *testing.T) {
	created := false
	repo := &fakeRepo{fakeTx: &fakeTx{
		createFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
			created = true
			return b, nil
		},
	}}
	svc := newService(repo, false, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		StaffID:   staffA,
		Title:     "x",
		StartDate: day("2026-02-19"),
		StartTime: "11:00",
		Status:    domain.BookingStatusCancelled,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !created {
		t.Fatalf("booking not written")
	}
}

func TestServiceCreate_FetchFailureBlocksWrite(t *testing.T) {
	repo := &fakeRepo{fakeTx: &fakeTx{
		listCandidatesFn: func(ctx context.Context, q store.CandidateQuery) ([]domain.Booking, error) {
			return nil, errors.New("connection reset")
		},
	}}
	svc := newService(repo, false, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		StaffID:   staffA,
		Title:     "x",
		StartDate: day("2026-02-19"),
		StartTime: "11:00",
	})
	if !errors.Is(err, conflicts.ErrFetchFailed) {
		t.Fatalf("error = %v, want ErrFetchFailed", err)
	}
}

func TestServiceCreate_IdempotencyKeyDeterministicUUID(t *testing.T) {
	var ids []uuid.UUID
	var excluded []uuid.UUID
	repo := &fakeRepo{fakeTx: &fakeTx{
		listCandidatesFn: func(ctx context.Context, q store.CandidateQuery) ([]domain.Booking, error) {
			excluded = append(excluded, q.ExcludeID)
			return nil, nil
		},
		createFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
			ids = append(ids, b.ID)
			return b, nil
		},
	}}
	svc := newService(repo, false, nil)

	in := CreateInput{
		StaffID:        staffA,
		Title:          "x",
		StartDate:      day("2026-02-19"),
		StartTime:      "11:00",
		IdempotencyKey: "form-42",
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Create(context.Background(), in); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	want := uuid.NewSHA1(uuid.NameSpaceOID, []byte("bookingcrm:create_booking:form-42"))
	if len(ids) != 2 || ids[0] != want || ids[1] != want {
		t.Fatalf("ids = %v, want both %s", ids, want)
	}
	if len(excluded) != 2 || excluded[0] != want {
		t.Fatalf("excluded = %v, want %s", excluded, want)
	}
}

func TestServiceCreate_TeamLocksMembers(t *testing.T) {
	repo := &fakeRepo{fakeTx: &fakeTx{
		listCandidatesFn: noCandidates,
		listTeamMembersFn: func(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
			return []uuid.UUID{staffA, staffB}, nil
		},
		createFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
			return b, nil
		},
	}}
	svc := newService(repo, true, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		TeamID:    teamX,
		Title:     "x",
		StartDate: day("2026-02-19"),
		StartTime: "11:00",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	want := []string{"team:" + teamX.String(), "staff:" + staffA.String(), "staff:" + staffB.String()}
	if len(repo.lockedKeys) != 1 || len(repo.lockedKeys[0]) != len(want) {
		t.Fatalf("locked keys = %v, want %v", repo.lockedKeys, want)
	}
	for i := range want {
		if repo.lockedKeys[0][i] != want[i] {
			t.Fatalf("locked keys = %v, want %v", repo.lockedKeys[0], want)
		}
	}
}

func TestServiceReschedule_ExcludesItself(t *testing.T) {
	existing := staffBooking(staffA, "2026-02-19", "10:00", "12:00")
	var updated domain.Booking
	repo := &fakeRepo{fakeTx: &fakeTx{
		listCandidatesFn: func(ctx context.Context, q store.CandidateQuery) ([]domain.Booking, error) {
			// The store may still return the row; the evaluator must skip it.
			return []domain.Booking{existing}, nil
		},
		getBookingFn: func(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
			if bookingID != existing.ID {
				return domain.Booking{}, store.ErrNotFound
			}
			return existing, nil
		},
		updateFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
			updated = b
			return b, nil
		},
	}}
	svc := newService(repo, false, nil)

	_, err := svc.Reschedule(context.Background(), RescheduleInput{
		BookingID: existing.ID,
		StaffID:   staffA,
		StartDate: day("2026-02-19"),
		StartTime: "11:00",
		EndTime:   "13:00",
	})
	if err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}
	if updated.ID != existing.ID || updated.Title != existing.Title || updated.StartTime != "11:00" {
		t.Fatalf("updated = %+v", updated)
	}
}

func TestServiceReschedule_NotFound(t *testing.T) {
	repo := &fakeRepo{fakeTx: &fakeTx{
		getBookingFn: func(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
			return domain.Booking{}, store.ErrNotFound
		},
	}}
	obs := &countingObserver{}
	svc := newService(repo, false, obs)

	_, err := svc.Reschedule(context.Background(), RescheduleInput{
		BookingID: uuid.New(),
		StaffID:   staffA,
		StartDate: day("2026-02-19"),
		StartTime: "11:00",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if obs.results["reschedule/not_found"] != 1 {
		t.Fatalf("observed = %v", obs.results)
	}
}

func TestServiceDelete(t *testing.T) {
	id := uuid.New()
	var deleted uuid.UUID
	repo := &fakeRepo{fakeTx: &fakeTx{
		softDeleteFn: func(ctx context.Context, bookingID uuid.UUID) error {
			deleted = bookingID
			return nil
		},
	}}
	svc := newService(repo, false, nil)

	if err := svc.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if deleted != id {
		t.Fatalf("deleted = %s, want %s", deleted, id)
	}

	if err := svc.Delete(context.Background(), uuid.Nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}
