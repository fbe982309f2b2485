package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ariebrainware/agendamento/account"
	"github.com/ariebrainware/agendamento/availability"
	"github.com/ariebrainware/agendamento/store"
	"github.com/google/uuid"
)

var (
	ErrNoServices          = errors.New("select at least one service")
	ErrInvalidTime         = errors.New("time is not a bookable slot")
	ErrClosedDay           = errors.New("no bookings on this weekday")
	ErrSlotUnavailable     = errors.New("slot already taken")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSessionClosed       = errors.New("session closed")
	ErrNoUser              = errors.New("username is required")
	ErrDuplicateService    = errors.New("service selected more than once")
)

// BookRequest is what the client confirms: a day, a start slot and the
// services to perform.
type BookRequest struct {
	Date     string   `json:"date"`
	Time     string   `json:"time"`
	Services []string `json:"services"`
}

// DaySlots partitions the slot catalog of one day.
type DaySlots struct {
	Date      string   `json:"date"`
	All       []string `json:"all"`
	Blocked   []string `json:"blocked"`
	Available []string `json:"available"`
}

// Service loads and saves schedules. Writes for the same username are
// serialized; different users never wait on each other.
type Service struct {
	kv       store.KV
	calendar *availability.Calendar
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(kv store.KV, calendar *availability.Calendar) *Service {
	if calendar == nil {
		calendar = availability.NewCalendar(nil)
	}
	return &Service{
		kv:       kv,
		calendar: calendar,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Calendar exposes the slot and day policy the service books against.
func (s *Service) Calendar() *availability.Calendar {
	return s.calendar
}

func (s *Service) userLock(username string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[username]
	if !ok {
		l = &sync.Mutex{}
		s.locks[username] = l
	}
	return l
}

// load reads the schedule stored under the bare username. A user who never
// booked has an empty schedule.
func (s *Service) load(ctx context.Context, username string) (Schedule, error) {
	sched := Schedule{}
	err := store.GetJSON(ctx, s.kv, username, &sched)
	if errors.Is(err, store.ErrNotFound) {
		return Schedule{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule %s: %w", username, err)
	}
	for date, list := range sched {
		if len(list) == 0 {
			delete(sched, date)
		}
	}
	return sched, nil
}

func (s *Service) save(ctx context.Context, username string, sched Schedule) error {
	if err := store.SetJSON(ctx, s.kv, username, sched); err != nil {
		return fmt.Errorf("save schedule %s: %w", username, err)
	}
	return nil
}

// Open loads the schedule of username into a new session.
func (s *Service) Open(ctx context.Context, username string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrNoUser
	}
	if err := account.CheckUsername(username); err != nil {
		return nil, err
	}
	sched, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	return &Session{svc: s, username: username, schedule: sched}, nil
}

// WithSession opens a session for username, runs fn and closes it.
func (s *Service) WithSession(ctx context.Context, username string, fn func(*Session) error) error {
	sess, err := s.Open(ctx, username)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}

// Session is one logged in user's view of their schedule. It lives from
// login to logout and is discarded afterwards.
type Session struct {
	svc      *Service
	username string

	mu       sync.Mutex
	schedule Schedule
	closed   bool
}

func (s *Session) Username() string {
	return s.username
}

// Schedule returns a copy of the session's schedule.
func (s *Session) Schedule() (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.schedule.Clone(), nil
}

// Appointments lists the bookings of one day in booking order.
func (s *Session) Appointments(date string) ([]Appointment, error) {
	if _, err := availability.ParseDate(date); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.schedule.On(date), nil
}

// Slots reports which catalog slots of date are blocked by the session's own
// appointments. Closed weekdays have no slots.
func (s *Session) Slots(date string) (DaySlots, error) {
	cal := s.svc.calendar
	closed, err := cal.IsClosed(date)
	if err != nil {
		return DaySlots{}, err
	}
	if closed {
		return DaySlots{}, ErrClosedDay
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return DaySlots{}, ErrSessionClosed
	}
	spans := spansOf(s.schedule[date])
	return DaySlots{
		Date:      date,
		All:       cal.Slots.Labels(),
		Blocked:   cal.Slots.Blocked(spans),
		Available: cal.Slots.Available(spans),
	}, nil
}

// Book validates req against the catalog, the day policy and the slots
// already blocked, then stores the new appointment. Nothing changes when any
// check or the write fails.
func (s *Session) Book(ctx context.Context, req BookRequest) (Appointment, error) {
	if len(req.Services) == 0 {
		return Appointment{}, ErrNoServices
	}
	seen := make(map[string]bool, len(req.Services))
	for _, name := range req.Services {
		if seen[name] {
			return Appointment{}, fmt.Errorf("%w: %q", ErrDuplicateService, name)
		}
		seen[name] = true
	}
	duration, err := availability.TotalDuration(req.Services...)
	if err != nil {
		return Appointment{}, err
	}
	cal := s.svc.calendar
	closed, err := cal.IsClosed(req.Date)
	if err != nil {
		return Appointment{}, err
	}
	if closed {
		return Appointment{}, ErrClosedDay
	}
	if !cal.Slots.Contains(req.Time) {
		return Appointment{}, fmt.Errorf("%w: %q", ErrInvalidTime, req.Time)
	}

	lock := s.svc.userLock(s.username)
	lock.Lock()
	defer lock.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Appointment{}, ErrSessionClosed
	}

	// Another session of the same user may have written since this one loaded.
	current, err := s.svc.load(ctx, s.username)
	if err != nil {
		return Appointment{}, err
	}

	candidate := availability.Span{Start: req.Time, DurationMinutes: duration}
	if taken := cal.Slots.Conflicts(candidate, spansOf(current[req.Date])); len(taken) > 0 {
		s.schedule = current
		return Appointment{}, fmt.Errorf("%w: %s", ErrSlotUnavailable, strings.Join(taken, ", "))
	}

	appt := Appointment{
		ID:              uuid.NewString(),
		Date:            req.Date,
		Time:            req.Time,
		Services:        append([]string(nil), req.Services...),
		DurationMinutes: duration,
		CreatedAt:       s.svc.now().UTC(),
	}
	next := current.Clone()
	next.Add(appt)
	if err := s.svc.save(ctx, s.username, next); err != nil {
		s.schedule = current
		return Appointment{}, err
	}
	s.schedule = next
	return appt, nil
}

// Cancel removes the appointment with the given id. Its slots become free
// again since blocked slots are derived from the remaining appointments.
func (s *Session) Cancel(ctx context.Context, id string) (Appointment, error) {
	lock := s.svc.userLock(s.username)
	lock.Lock()
	defer lock.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Appointment{}, ErrSessionClosed
	}

	current, err := s.svc.load(ctx, s.username)
	if err != nil {
		return Appointment{}, err
	}
	next := current.Clone()
	removed, ok := next.Remove(id)
	if !ok {
		s.schedule = current
		return Appointment{}, ErrAppointmentNotFound
	}
	if err := s.svc.save(ctx, s.username, next); err != nil {
		s.schedule = current
		return Appointment{}, err
	}
	s.schedule = next
	return removed, nil
}

// Close discards the in-memory schedule. Further calls fail with
// ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.schedule = nil
}

func spansOf(list []Appointment) []availability.Span {
	spans := make([]availability.Span, 0, len(list))
	for _, a := range list {
		spans = append(spans, availability.Span{Start: a.Time, DurationMinutes: a.DurationMinutes})
	}
	return spans
}
