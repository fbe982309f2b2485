package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ariebrainware/agendamento/account"
	"github.com/ariebrainware/agendamento/availability"
	"github.com/ariebrainware/agendamento/booking"
	"github.com/ariebrainware/agendamento/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestBackend(t *testing.T) openFunc {
	t.Helper()
	dsn := fmt.Sprintf("file:agendactl_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	kv, err := store.NewGormStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	b := &backend{
		accounts: account.NewStore(kv),
		booking:  booking.NewService(kv, availability.NewCalendar(nil)),
	}
	return func() (*backend, error) { return b, nil }
}

func run(t *testing.T, open openFunc, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(open, &out)
	err := app.Run(append([]string{"agendactl"}, args...))
	return out.String(), err
}

func TestRegisterCommand(t *testing.T) {
	open := newTestBackend(t)

	out, err := run(t, open, "register", "--user", "ana", "--password", "pw123", "--name", "Ana")
	require.NoError(t, err)
	assert.Contains(t, out, "registered ana")

	_, err = run(t, open, "register", "-u", "ana", "-p", "again")
	assert.ErrorIs(t, err, account.ErrUserExists)
}

func TestBookListSlotsCancel(t *testing.T) {
	open := newTestBackend(t)

	out, err := run(t, open, "book", "-u", "ana", "--date", "2026-01-06", "--time", "14:00",
		"-s", "Coloração", "-s", "Corte de cabelo")
	require.NoError(t, err)
	assert.Contains(t, out, "(90min)")

	out, err = run(t, open, "list", "-u", "ana")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "2026-01-06 14:00"))
	assert.Contains(t, lines[0], "Coloração, Corte de cabelo")
	id := strings.Fields(lines[0])[3]

	out, err = run(t, open, "slots", "-u", "ana", "--date", "2026-01-06")
	require.NoError(t, err)
	assert.Contains(t, out, "blocked: 14:00 14:15 14:30 14:45 15:00 15:15\n")

	out, err = run(t, open, "cancel", "-u", "ana", "--id", id)
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled "+id)

	out, err = run(t, open, "list", "-u", "ana", "--date", "2026-01-06")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestCommandErrors(t *testing.T) {
	open := newTestBackend(t)

	_, err := run(t, open, "book", "-u", "ana", "--date", "2026-01-04", "--time", "14:00", "-s", "Barba")
	assert.ErrorIs(t, err, booking.ErrClosedDay)

	_, err = run(t, open, "slots", "-u", "ana", "--date", "2026-01-05")
	assert.ErrorIs(t, err, booking.ErrClosedDay)

	_, err = run(t, open, "cancel", "-u", "ana", "--id", "missing")
	assert.ErrorIs(t, err, booking.ErrAppointmentNotFound)

	_, err = run(t, open, "list", "-u", "ana", "--date", "tomorrow")
	assert.ErrorIs(t, err, availability.ErrInvalidDate)

	_, err = run(t, open, "list")
	assert.Error(t, err, "--user is required")
}

func TestExportCommand(t *testing.T) {
	open := newTestBackend(t)

	_, err := run(t, open, "export", "-u", "ana", "--tz", "UTC")
	assert.ErrorIs(t, err, booking.ErrNothingToExport)

	_, err = run(t, open, "book", "-u", "ana", "--date", "2026-01-06", "--time", "13:00", "-s", "Barba")
	require.NoError(t, err)

	out, err := run(t, open, "export", "-u", "ana", "--tz", "UTC")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "DTSTART:20260106T130000Z")

	path := filepath.Join(t.TempDir(), "ana.ics")
	_, err = run(t, open, "export", "-u", "ana", "--tz", "UTC", "-o", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN:VCALENDAR")

	_, err = run(t, open, "export", "-u", "ana", "--tz", "Nowhere/City")
	assert.Error(t, err)
}
