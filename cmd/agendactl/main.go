// Command agendactl administers accounts and schedules directly in the
// key-value store, without going through the HTTP API.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ariebrainware/agendamento/account"
	"github.com/ariebrainware/agendamento/availability"
	"github.com/ariebrainware/agendamento/booking"
	"github.com/ariebrainware/agendamento/config"
	"github.com/ariebrainware/agendamento/store"
	"github.com/urfave/cli/v2"
)

// backend is what every command works against.
type backend struct {
	accounts *account.Store
	booking  *booking.Service
}

type openFunc func() (*backend, error)

func main() {
	app := newApp(openConfigured, os.Stdout)
	if err := app.Run(os.Args); err != nil {
		log.Printf("agendactl: %v", err)
		os.Exit(1)
	}
}

// openConfigured connects to the store configured through the environment.
func openConfigured() (*backend, error) {
	cfg := config.LoadConfig()
	db, err := config.ConnectMySQL()
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if _, err := config.ConnectRedis(); err != nil {
		log.Printf("agendactl: redis unavailable: %v", err)
	}
	kv, err := store.Open(cfg, db)
	if err != nil {
		return nil, err
	}
	calendar, err := cfg.Calendar()
	if err != nil {
		return nil, err
	}
	return &backend{
		accounts: account.NewStore(kv),
		booking:  booking.NewService(kv, calendar),
	}, nil
}

func newApp(open openFunc, out io.Writer) *cli.App {
	return &cli.App{
		Name:   "agendactl",
		Usage:  "Manage agendamento accounts and appointments.",
		Writer: out,
		Commands: []*cli.Command{
			registerCommand(open),
			listCommand(open),
			slotsCommand(open),
			bookCommand(open),
			cancelCommand(open),
			exportCommand(open),
		},
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Username whose schedule to use.", Required: true}
}

func registerCommand(open openFunc) *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true},
			&cli.StringFlag{Name: "name", Usage: "Display name."},
		},
		Action: func(c *cli.Context) error {
			b, err := open()
			if err != nil {
				return err
			}
			if err := b.accounts.Register(c.Context, c.String("user"), c.String("password"), c.String("name")); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "registered %s\n", c.String("user"))
			return nil
		},
	}
}

func listCommand(open openFunc) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List a user's appointments.",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "date", Usage: "Only this day (YYYY-MM-DD)."},
		},
		Action: func(c *cli.Context) error {
			return withSession(c, open, func(sess *booking.Session) error {
				sched, err := sess.Schedule()
				if err != nil {
					return err
				}
				dates := sched.Dates()
				if d := c.String("date"); d != "" {
					if _, err := availability.ParseDate(d); err != nil {
						return err
					}
					dates = []string{d}
				}
				for _, d := range dates {
					for _, a := range sched[d] {
						fmt.Fprintf(c.App.Writer, "%s %s %3dmin %s %s\n", a.Date, a.Time, a.DurationMinutes, a.ID, strings.Join(a.Services, ", "))
					}
				}
				return nil
			})
		},
	}
}

func slotsCommand(open openFunc) *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "Show free and blocked slots of a day.",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "date", Required: true},
		},
		Action: func(c *cli.Context) error {
			return withSession(c, open, func(sess *booking.Session) error {
				slots, err := sess.Slots(c.String("date"))
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "available: %s\n", strings.Join(slots.Available, " "))
				fmt.Fprintf(c.App.Writer, "blocked: %s\n", strings.Join(slots.Blocked, " "))
				return nil
			})
		},
	}
}

func bookCommand(open openFunc) *cli.Command {
	return &cli.Command{
		Name:  "book",
		Usage: "Book services at a date and time.",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "date", Required: true},
			&cli.StringFlag{Name: "time", Required: true},
			&cli.StringSliceFlag{Name: "service", Aliases: []string{"s"}, Required: true, Usage: "Service name; repeat for several."},
		},
		Action: func(c *cli.Context) error {
			return withSession(c, open, func(sess *booking.Session) error {
				a, err := sess.Book(c.Context, booking.BookRequest{
					Date:     c.String("date"),
					Time:     c.String("time"),
					Services: c.StringSlice("service"),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "booked %s on %s at %s (%dmin)\n", a.ID, a.Date, a.Time, a.DurationMinutes)
				return nil
			})
		},
	}
}

func cancelCommand(open openFunc) *cli.Command {
	return &cli.Command{
		Name:  "cancel",
		Usage: "Cancel an appointment by id.",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "id", Required: true},
		},
		Action: func(c *cli.Context) error {
			return withSession(c, open, func(sess *booking.Session) error {
				a, err := sess.Cancel(c.Context, c.String("id"))
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "cancelled %s on %s at %s\n", a.ID, a.Date, a.Time)
				return nil
			})
		},
	}
}

func exportCommand(open openFunc) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a user's schedule as iCalendar.",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file; standard output when empty."},
			&cli.StringFlag{Name: "tz", Value: "Local", Usage: "Time zone of the salon."},
		},
		Action: func(c *cli.Context) error {
			loc, err := time.LoadLocation(c.String("tz"))
			if err != nil {
				return fmt.Errorf("invalid timezone '%s': %w", c.String("tz"), err)
			}
			return withSession(c, open, func(sess *booking.Session) error {
				sched, err := sess.Schedule()
				if err != nil {
					return err
				}
				w := c.App.Writer
				if path := c.String("out"); path != "" {
					f, err := os.Create(path)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return booking.WriteICS(w, sess.Username(), sched, loc)
			})
		},
	}
}

func withSession(c *cli.Context, open openFunc, fn func(*booking.Session) error) error {
	b, err := open()
	if err != nil {
		return err
	}
	return b.booking.WithSession(c.Context, c.String("user"), fn)
}
