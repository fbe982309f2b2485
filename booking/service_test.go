package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ariebrainware/agendamento/account"
	"github.com/ariebrainware/agendamento/availability"
	"github.com/ariebrainware/agendamento/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	tuesday = "2026-01-06"
	sunday  = "2026-01-04"
	monday  = "2026-01-05"
)

var errWrite = errors.New("write refused")

// flakyKV wraps a store and can refuse writes.
type flakyKV struct {
	store.KV
	mu       sync.Mutex
	failSets bool
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := f.failSets
	f.mu.Unlock()
	if fail {
		return errWrite
	}
	return f.KV.Set(ctx, key, value)
}

func (f *flakyKV) refuseWrites(v bool) {
	f.mu.Lock()
	f.failSets = v
	f.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *flakyKV) {
	t.Helper()
	dsn := fmt.Sprintf("file:booking_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	gs, err := store.NewGormStore(db)
	if err != nil {
		t.Fatalf("failed to create gorm store: %v", err)
	}
	kv := &flakyKV{KV: gs}
	return NewService(kv, availability.NewCalendar(nil)), kv
}

func openSession(t *testing.T, svc *Service, username string) *Session {
	t.Helper()
	sess, err := svc.Open(context.Background(), username)
	require.NoError(t, err)
	return sess
}

func TestBookBlocksHalfOpenSpan(t *testing.T) {
	svc, _ := newTestService(t)
	sess := openSession(t, svc, "ana")
	ctx := context.Background()

	a, err := sess.Book(ctx, BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Corte de cabelo"}})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, 30, a.DurationMinutes)

	slots, err := sess.Slots(tuesday)
	require.NoError(t, err)
	assert.Equal(t, []string{"13:00", "13:15"}, slots.Blocked)
	assert.Contains(t, slots.Available, "13:30")
	assert.Len(t, slots.All, 33)
	assert.Len(t, slots.Available, 31)
}

func TestBookCompositeDuration(t *testing.T) {
	svc, _ := newTestService(t)
	sess := openSession(t, svc, "ana")

	a, err := sess.Book(context.Background(), BookRequest{
		Date: tuesday, Time: "14:00", Services: []string{"Coloração", "Corte de cabelo"},
	})
	require.NoError(t, err)
	assert.Equal(t, 90, a.DurationMinutes)

	slots, err := sess.Slots(tuesday)
	require.NoError(t, err)
	assert.Equal(t, []string{"14:00", "14:15", "14:30", "14:45", "15:00", "15:15"}, slots.Blocked)
	assert.Contains(t, slots.Available, "15:30")
}

func TestBookBackToBack(t *testing.T) {
	svc, _ := newTestService(t)
	sess := openSession(t, svc, "ana")
	ctx := context.Background()

	_, err := sess.Book(ctx, BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Corte de cabelo"}})
	require.NoError(t, err)
	_, err = sess.Book(ctx, BookRequest{Date: tuesday, Time: "13:30", Services: []string{"Barba"}})
	assert.NoError(t, err)
}

func TestBookRejectsOverlap(t *testing.T) {
	svc, _ := newTestService(t)
	sess := openSession(t, svc, "ana")
	ctx := context.Background()

	_, err := sess.Book(ctx, BookRequest{Date: tuesday, Time: "14:00", Services: []string{"Coloração"}})
	require.NoError(t, err)

	_, err = sess.Book(ctx, BookRequest{Date: tuesday, Time: "13:30", Services: []string{"Escova"}})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Contains(t, err.Error(), "14:00")

	sched, err := sess.Schedule()
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Len())
}

func TestOpenRejectsReservedUsername(t *testing.T) {
	svc, kv := newTestService(t)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "user-carol", []byte(`{"username":"carol","password":"x"}`)))

	for _, name := range []string{"user-carol", "session-abc"} {
		_, err := svc.Open(ctx, name)
		assert.ErrorIs(t, err, account.ErrReservedUsername, name)
	}

	raw, err := kv.Get(ctx, "user-carol")
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"carol","password":"x"}`, string(raw))
}

func TestBookValidation(t *testing.T) {
	svc, _ := newTestService(t)
	sess := openSession(t, svc, "ana")
	ctx := context.Background()

	tests := []struct {
		name string
		req  BookRequest
		want error
	}{
		{"no services", BookRequest{Date: tuesday, Time: "13:00"}, ErrNoServices},
		{"repeated service", BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Barba", "Barba", "Barba"}}, ErrDuplicateService},
		{"repeated among others", BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Barba", "Manicure", "Barba"}}, ErrDuplicateService},
		{"unknown service", BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Massagem"}}, availability.ErrUnknownService},
		{"bad date", BookRequest{Date: "06/01/2026", Time: "13:00", Services: []string{"Barba"}}, availability.ErrInvalidDate},
		{"sunday", BookRequest{Date: sunday, Time: "13:00", Services: []string{"Barba"}}, ErrClosedDay},
		{"monday", BookRequest{Date: monday, Time: "13:00", Services: []string{"Barba"}}, ErrClosedDay},
		{"off catalog time", BookRequest{Date: tuesday, Time: "13:10", Services: []string{"Barba"}}, ErrInvalidTime},
		{"before opening", BookRequest{Date: tuesday, Time: "11:45", Services: []string{"Barba"}}, ErrInvalidTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sess.Book(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	sched, err := sess.Schedule()
	require.NoError(t, err)
	assert.Equal(t, 0, sched.Len())
}

func TestSlotsClosedDay(t *testing.T) {
	svc, _ := newTestService(t)
	sess := openSession(t, svc, "ana")

	_, err := sess.Slots(sunday)
	assert.ErrorIs(t, err, ErrClosedDay)
	_, err = sess.Slots("not-a-date")
	assert.ErrorIs(t, err, availability.ErrInvalidDate)

	slots, err := sess.Slots(tuesday)
	require.NoError(t, err)
	assert.Empty(t, slots.Blocked)
	assert.Equal(t, slots.All, slots.Available)
}

func TestCancelFreesSlotsAndKeepsOthers(t *testing.T) {
	svc, _ := newTestService(t)
	sess := openSession(t, svc, "ana")
	ctx := context.Background()

	first, err := sess.Book(ctx, BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Corte de cabelo"}})
	require.NoError(t, err)
	second, err := sess.Book(ctx, BookRequest{Date: tuesday, Time: "16:00", Services: []string{"Barba"}})
	require.NoError(t, err)

	removed, err := sess.Cancel(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, removed.ID)

	day, err := sess.Appointments(tuesday)
	require.NoError(t, err)
	if assert.Len(t, day, 1) {
		assert.Equal(t, second.ID, day[0].ID)
	}

	slots, err := sess.Slots(tuesday)
	require.NoError(t, err)
	assert.Equal(t, []string{"16:00"}, slots.Blocked)

	// the freed slot is bookable again
	_, err = sess.Book(ctx, BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Manicure"}})
	assert.NoError(t, err)
}

func TestCancelLastRemovesDate(t *testing.T) {
	svc, _ := newTestService(t)
	sess := openSession(t, svc, "ana")
	ctx := context.Background()

	a, err := sess.Book(ctx, BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Barba"}})
	require.NoError(t, err)
	_, err = sess.Cancel(ctx, a.ID)
	require.NoError(t, err)

	sched, err := sess.Schedule()
	require.NoError(t, err)
	_, present := sched[tuesday]
	assert.False(t, present)

	raw, err := svc.kv.Get(ctx, "ana")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))

	_, err = sess.Cancel(ctx, a.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestScheduleSurvivesReopen(t *testing.T) {
	svc, kv := newTestService(t)
	ctx := context.Background()

	sess := openSession(t, svc, "ana")
	a, err := sess.Book(ctx, BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Barba"}})
	require.NoError(t, err)
	sess.Close()

	raw, err := kv.Get(ctx, "ana")
	require.NoError(t, err)
	var stored map[string][]Appointment
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, a.ID, stored[tuesday][0].ID)

	again := openSession(t, svc, "ana")
	day, err := again.Appointments(tuesday)
	require.NoError(t, err)
	if assert.Len(t, day, 1) {
		assert.Equal(t, a.ID, day[0].ID)
	}

	other := openSession(t, svc, "bia")
	sched, err := other.Schedule()
	require.NoError(t, err)
	assert.Equal(t, 0, sched.Len())
}

func TestBookSeesWritesFromOtherSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	s1 := openSession(t, svc, "ana")
	s2 := openSession(t, svc, "ana")

	_, err := s1.Book(ctx, BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Corte de cabelo"}})
	require.NoError(t, err)
	_, err = s2.Book(ctx, BookRequest{Date: tuesday, Time: "13:15", Services: []string{"Barba"}})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = s2.Book(ctx, BookRequest{Date: tuesday, Time: "17:00", Services: []string{"Barba"}})
	require.NoError(t, err)

	final := openSession(t, svc, "ana")
	sched, err := final.Schedule()
	require.NoError(t, err)
	assert.Equal(t, 2, sched.Len())
}

func TestFailedWriteLeavesScheduleUntouched(t *testing.T) {
	svc, kv := newTestService(t)
	sess := openSession(t, svc, "ana")
	ctx := context.Background()

	a, err := sess.Book(ctx, BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Barba"}})
	require.NoError(t, err)

	kv.refuseWrites(true)
	_, err = sess.Book(ctx, BookRequest{Date: tuesday, Time: "15:00", Services: []string{"Barba"}})
	assert.ErrorIs(t, err, errWrite)
	_, err = sess.Cancel(ctx, a.ID)
	assert.ErrorIs(t, err, errWrite)
	kv.refuseWrites(false)

	sched, err := sess.Schedule()
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Len())
	_, ok := sched.Find(a.ID)
	assert.True(t, ok)
}

func TestClosedSession(t *testing.T) {
	svc, _ := newTestService(t)
	sess := openSession(t, svc, "ana")
	sess.Close()

	_, err := sess.Schedule()
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = sess.Book(context.Background(), BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Barba"}})
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = sess.Cancel(context.Background(), "x")
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = sess.Slots(tuesday)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestOpenRequiresUsername(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Open(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestWithSession(t *testing.T) {
	svc, _ := newTestService(t)
	var kept *Session
	err := svc.WithSession(context.Background(), "ana", func(s *Session) error {
		kept = s
		_, err := s.Book(context.Background(), BookRequest{Date: tuesday, Time: "12:00", Services: []string{"Barba"}})
		return err
	})
	require.NoError(t, err)
	_, err = kept.Schedule()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestConcurrentBookingsSameUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sessions := make([]*Session, 8)
	for i := range sessions {
		sessions[i] = openSession(t, svc, "ana")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			if _, err := sess.Book(ctx, BookRequest{Date: tuesday, Time: "13:00", Services: []string{"Barba"}}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(sess)
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

func TestWriteICS(t *testing.T) {
	svc, _ := newTestService(t)
	sess := openSession(t, svc, "ana")
	ctx := context.Background()

	a, err := sess.Book(ctx, BookRequest{Date: tuesday, Time: "14:00", Services: []string{"Coloração", "Corte de cabelo"}})
	require.NoError(t, err)
	sched, err := sess.Schedule()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteICS(&buf, "ana", sched, time.UTC))
	out := buf.String()
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "UID:"+a.ID)
	assert.Contains(t, out, "20260106T140000Z")
	assert.Contains(t, out, "20260106T153000Z")
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
}

func TestWriteICSEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := WriteICS(&buf, "ana", Schedule{}, time.UTC)
	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Zero(t, buf.Len())
}
