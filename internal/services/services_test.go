package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/freightops/go-freight-backend/internal/domain"
	"github.com/freightops/go-freight-backend/internal/guard"
	"github.com/freightops/go-freight-backend/internal/realtime"
	"github.com/freightops/go-freight-backend/internal/records"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingWriter wraps a Writer and counts calls that reach it.
type countingWriter struct {
	next  guard.Writer
	mu    sync.Mutex
	calls int
}

func (w *countingWriter) Write(ctx context.Context, payload any) (string, error) {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()
	return w.next.Write(ctx, payload)
}

func (w *countingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

type harness struct {
	db       *gorm.DB
	clock    *fakeClock
	cache    *records.Cache
	counting *countingWriter
	events   *realtime.Dispatcher

	consignments *ConsignmentService
	challans     *ChallanService
	bills        *BillingService
}

// newHarness wires the three services the way cmd/server does: one shared
// throttle, one uniqueness index over the records cache, one deduplicating
// writer in front of the record writer.
func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.ConsignmentNote{}, &domain.Challan{}, &domain.Bill{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	cache := records.NewCache()
	guards := Guards{
		Throttle: guard.NewSubmissionThrottle(2*time.Second, clock.now),
		Unique:   guard.NewUniquenessIndex(cache),
	}
	counting := &countingWriter{next: RecordWriter{DB: db}}
	writer := guard.NewDeduplicatingWriter(counting, time.Second, clock.now)
	events := realtime.NewDispatcher()

	return &harness{
		db:       db,
		clock:    clock,
		cache:    cache,
		counting: counting,
		events:   events,
		consignments: &ConsignmentService{
			DB: db, Guards: guards, Writer: writer, Cache: cache, Events: events,
		},
		challans: &ChallanService{
			DB: db, Guards: guards, Writer: writer, Cache: cache, Events: events,
		},
		bills: &BillingService{
			DB: db, Guards: guards, Writer: writer, Cache: cache, Events: events,
		},
	}
}

func bookingNote(lr string) *domain.ConsignmentNote {
	return &domain.ConsignmentNote{
		Kind:        domain.ConsignmentKindBooking,
		LRNumber:    lr,
		Consignor:   "Sharma Traders",
		Consignee:   "Verma & Sons",
		FromStation: "delhi",
		ToStation:   "mumbai",
		Freight:     1250,
	}
}

func TestConsignmentCreate_NormalizesAndPublishes(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, _ := h.events.Subscribe(ctx)

	n, err := h.consignments.Create(ctx, "", bookingNote("  lr-001 "))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.ID == "" {
		t.Fatal("expected backend ID to be assigned")
	}
	if n.LRNumber != "LR-001" {
		t.Fatalf("LRNumber = %q, want normalized LR-001", n.LRNumber)
	}
	if n.FromStation != "Delhi" || n.ToStation != "Mumbai" {
		t.Fatalf("stations not title-cased: %q → %q", n.FromStation, n.ToStation)
	}
	if h.cache.Len() != 1 {
		t.Fatalf("cache len = %d, want 1", h.cache.Len())
	}

	select {
	case ev := <-stream:
		if ev.Action != realtime.ActionCreated || ev.Kind != domain.KindConsignmentBooking {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.BusinessKey != "LR-001" || ev.BackendID != n.ID {
			t.Fatalf("event does not match record: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no record-change event published")
	}
}

func TestConsignmentCreate_DuplicateKeyReleasesThrottle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// A non-excluded record already holds lr-001 (different casing).
	h.cache.Upsert(domain.CachedRecord{
		Kind:        domain.KindConsignmentBooking,
		BusinessKey: "lr-001",
		BackendID:   "existing-id",
	})

	_, err := h.consignments.Create(ctx, "", bookingNote("LR-001"))
	if !errors.Is(err, guard.ErrDuplicateBusinessKey) {
		t.Fatalf("err = %v, want ErrDuplicateBusinessKey", err)
	}
	var rej *guard.Rejection
	if !errors.As(err, &rej) || rej.Validator != "uniqueness" {
		t.Fatalf("expected a uniqueness rejection, got %v", err)
	}
	if rej.Key != "LR-001" {
		t.Fatalf("rejection key = %q, want LR-001", rej.Key)
	}
	if h.counting.count() != 0 {
		t.Fatalf("backend calls = %d, want 0", h.counting.count())
	}

	// The throttle was released on rejection: the corrected resubmission
	// goes through with no cooldown wait.
	if _, err := h.consignments.Create(ctx, "", bookingNote("LR-002")); err != nil {
		t.Fatalf("corrected resubmission blocked: %v", err)
	}
}

func TestConsignmentCreate_ThrottleCoolsDownPerForm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.consignments.Create(ctx, "", bookingNote("LR-010")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := h.consignments.Create(ctx, "", bookingNote("LR-011"))
	if !errors.Is(err, guard.ErrThrottled) {
		t.Fatalf("err = %v, want ErrThrottled", err)
	}
	if h.counting.count() != 1 {
		t.Fatalf("backend calls = %d, want 1", h.counting.count())
	}

	// A different form is an independent cooldown.
	if _, err := h.consignments.Create(ctx, FormDailyRegister, bookingNote("LR-011")); err != nil {
		t.Fatalf("independent form blocked: %v", err)
	}

	h.clock.advance(2 * time.Second)
	if _, err := h.consignments.Create(ctx, "", bookingNote("LR-012")); err != nil {
		t.Fatalf("create after cooldown: %v", err)
	}
}

func TestCreate_DeduplicatesIdenticalPayloads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Cold cache: the uniqueness index has nothing to compare against, so
	// the deduplicating writer is the last net against a doubled call.
	h.consignments.Guards.Unique = guard.NewUniquenessIndex(nil)
	h.consignments.Cache = nil

	first := bookingNote("LR-020")
	if _, err := h.consignments.Create(ctx, FormLR, first); err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Same payload again under a different form ID, inside the dedup
	// window. The throttle and uniqueness gates both pass; the writer does
	// not.
	second := bookingNote("LR-020")
	_, err := h.consignments.Create(ctx, FormDailyRegister, second)
	if !errors.Is(err, guard.ErrDuplicateCreation) {
		t.Fatalf("err = %v, want ErrDuplicateCreation", err)
	}
	if h.counting.count() != 1 {
		t.Fatalf("backend calls = %d, want 1", h.counting.count())
	}

	var rows int64
	if err := h.db.Model(&domain.ConsignmentNote{}).Count(&rows).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("persisted rows = %d, want 1", rows)
	}
}

func TestConsignmentUpdate_ExcludesOwnRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.consignments.Create(ctx, "", bookingNote("LR-030"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h.clock.advance(3 * time.Second)

	// Editing a record while keeping its own LR number is not a conflict.
	upd := bookingNote("LR-030")
	upd.Freight = 1500
	got, err := h.consignments.Update(ctx, "", created.ID, upd)
	if err != nil {
		t.Fatalf("update with own key: %v", err)
	}
	if got.Freight != 1500 {
		t.Fatalf("Freight = %v, want 1500", got.Freight)
	}

	h.clock.advance(3 * time.Second)
	other, err := h.consignments.Create(ctx, "", bookingNote("LR-031"))
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	h.clock.advance(3 * time.Second)

	// Moving the other record onto a taken key is rejected.
	steal := bookingNote("LR-030")
	_, err = h.consignments.Update(ctx, "", other.ID, steal)
	if !errors.Is(err, guard.ErrDuplicateBusinessKey) {
		t.Fatalf("err = %v, want ErrDuplicateBusinessKey", err)
	}
}

func TestConsignmentCreate_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	n := bookingNote("LR-040")
	n.Kind = "transfer"
	if _, err := h.consignments.Create(ctx, "", n); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("err = %v, want ErrInvalidKind", err)
	}

	n = bookingNote("   ")
	if _, err := h.consignments.Create(ctx, "", n); !errors.Is(err, ErrMissingBusinessKey) {
		t.Fatalf("err = %v, want ErrMissingBusinessKey", err)
	}

	n = bookingNote("LR-040")
	n.Consignee = "  "
	if _, err := h.consignments.Create(ctx, "", n); !errors.Is(err, ErrMissingParty) {
		t.Fatalf("err = %v, want ErrMissingParty", err)
	}
	// Validation failures never consume the throttle.
	if _, err := h.consignments.Create(ctx, "", bookingNote("LR-040")); err != nil {
		t.Fatalf("create after validation failures: %v", err)
	}
}

func TestConsignmentGet_NotFound(t *testing.T) {
	h := newHarness(t)
	if _, err := h.consignments.Get(context.Background(), "no-such-id"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestConsignmentListPage_Defaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.consignments.Create(ctx, "", bookingNote(fmt.Sprintf("LR-05%d", i))); err != nil {
			t.Fatalf("seed create %d: %v", i, err)
		}
		h.clock.advance(3 * time.Second)
	}

	items, total, err := h.consignments.ListPage(ctx, "", 0, -1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("total=%d len=%d, want 3/3", total, len(items))
	}

	if _, _, err := h.consignments.ListPage(ctx, "transfer", 1, 10); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("err = %v, want ErrInvalidKind", err)
	}
}

func TestConsignmentCreate_SameLRAcrossKinds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.consignments.Create(ctx, "", bookingNote("LR-777")); err != nil {
		t.Fatalf("booking create: %v", err)
	}
	h.clock.advance(3 * time.Second)

	// Uniqueness is scoped per kind all the way down to the database
	// index: a non-booking note may carry a booking note's LR number.
	nb := bookingNote("LR-777")
	nb.Kind = domain.ConsignmentKindNonBooking
	if _, err := h.consignments.Create(ctx, "", nb); err != nil {
		t.Fatalf("non-booking note with same LR rejected: %v", err)
	}

	var rows int64
	if err := h.db.Model(&domain.ConsignmentNote{}).Count(&rows).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 2 {
		t.Fatalf("persisted rows = %d, want 2", rows)
	}
}

func TestChallanService_CreateAndScopedUniqueness(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ch, err := h.challans.Create(ctx, "", &domain.Challan{
		ChallanNumber: " ch-100 ",
		VehicleNumber: "mh04ab1234",
		DriverName:    "Ram Singh",
		Route:         "Delhi - Mumbai",
	})
	if err != nil {
		t.Fatalf("create challan: %v", err)
	}
	if ch.ChallanNumber != "CH-100" || ch.VehicleNumber != "MH04AB1234" {
		t.Fatalf("normalization: %q %q", ch.ChallanNumber, ch.VehicleNumber)
	}

	h.clock.advance(3 * time.Second)

	// A bill may reuse the same key string: uniqueness is scoped per kind.
	if _, err := h.bills.Create(ctx, "", &domain.Bill{
		BillNumber: "CH-100",
		Party:      "Verma & Sons",
		Amount:     9000,
	}); err != nil {
		t.Fatalf("bill with same key string: %v", err)
	}

	h.clock.advance(3 * time.Second)

	_, err = h.challans.Create(ctx, "", &domain.Challan{
		ChallanNumber: "ch-100",
		VehicleNumber: "MH04CD5678",
		DriverName:    "Shyam Lal",
	})
	if !errors.Is(err, guard.ErrDuplicateBusinessKey) {
		t.Fatalf("err = %v, want ErrDuplicateBusinessKey", err)
	}
}

func TestBillingService_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.bills.Create(ctx, "", &domain.Bill{Party: "X"}); !errors.Is(err, ErrMissingBusinessKey) {
		t.Fatalf("err = %v, want ErrMissingBusinessKey", err)
	}
	if _, err := h.bills.Create(ctx, "", &domain.Bill{BillNumber: "B-1"}); !errors.Is(err, ErrMissingParty) {
		t.Fatalf("err = %v, want ErrMissingParty", err)
	}
}
