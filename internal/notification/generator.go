// Package notification turns clinic state into dated notifications. Each run is
// idempotent: a notification is keyed by (entity, type, date) and never created twice.
package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
)

const (
	TypeAppointmentReminder = "appointment_reminder"
	TypeLowStock            = "low_stock"
	TypeSupplyExpiring      = "supply_expiring"
	TypeInvoiceOverdue      = "invoice_overdue"
)

type Store interface {
	clinic.ReminderSource
	clinic.NotificationRepository
}

// Publisher fans newly created notifications out to other services.
type Publisher interface {
	Publish(ctx context.Context, n clinic.Notification) error
}

type RunSummary struct {
	Evaluated int `json:"evaluated"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
}

type Generator struct {
	store        Store
	publisher    Publisher
	loc          *time.Location
	expiryWindow time.Duration
	now          func() time.Time
	log          *zap.Logger
}

type Option func(*Generator)

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

func WithExpiryWindow(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.expiryWindow = d
		}
	}
}

func NewGenerator(store Store, publisher Publisher, log *zap.Logger, opts ...Option) *Generator {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	g := &Generator{
		store:        store,
		publisher:    publisher,
		loc:          time.UTC,
		expiryWindow: 30 * 24 * time.Hour,
		now:          time.Now,
		log:          log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run evaluates every rule for today's date in the clinic zone.
func (g *Generator) Run(ctx context.Context) (RunSummary, error) {
	var summary RunSummary

	now := g.now().In(g.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.loc)

	candidates, err := g.collect(ctx, today)
	if err != nil {
		return summary, err
	}

	for _, n := range candidates {
		summary.Evaluated++

		exists, err := g.store.NotificationExists(ctx, n.EntityID, n.Type, n.NotifyDate)
		if err != nil {
			return summary, err
		}
		if exists {
			summary.Skipped++
			continue
		}

		// another worker may have inserted between the lookup and here
		inserted, err := g.store.InsertNotification(ctx, &n)
		if err != nil {
			return summary, err
		}
		if !inserted {
			summary.Skipped++
			continue
		}
		summary.Created++

		if err := g.publisher.Publish(ctx, n); err != nil {
			g.log.Warn("failed to publish notification",
				zap.String("type", n.Type),
				zap.String("entity_id", n.EntityID.String()),
				zap.Error(err),
			)
		}
	}

	g.log.Info("notification run complete",
		zap.Time("date", today),
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func (g *Generator) collect(ctx context.Context, today time.Time) ([]clinic.Notification, error) {
	var out []clinic.Notification

	tomorrow := today.AddDate(0, 0, 1)
	appts, err := g.store.ListActiveAppointmentsBetween(ctx, tomorrow, tomorrow.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load tomorrow's appointments: %w", err)
	}
	for _, a := range appts {
		out = append(out, clinic.Notification{
			ClinicID:   a.ClinicID,
			EntityID:   a.ID,
			Type:       TypeAppointmentReminder,
			NotifyDate: today,
			Title:      "Appointment reminder",
			Message:    fmt.Sprintf("Appointment tomorrow at %s", a.StartsAt.In(g.loc).Format("15:04")),
		})
	}

	low, err := g.store.ListLowStockSupplies(ctx)
	if err != nil {
		return nil, fmt.Errorf("load low stock supplies: %w", err)
	}
	for _, s := range low {
		out = append(out, clinic.Notification{
			ClinicID:   s.ClinicID,
			EntityID:   s.ID,
			Type:       TypeLowStock,
			NotifyDate: today,
			Title:      "Low stock: " + s.Name,
			Message:    fmt.Sprintf("%s: %d left (minimum %d)", s.Name, s.Quantity, s.MinQuantity),
		})
	}

	expiring, err := g.store.ListSuppliesExpiringBefore(ctx, today.Add(g.expiryWindow))
	if err != nil {
		return nil, fmt.Errorf("load expiring supplies: %w", err)
	}
	for _, s := range expiring {
		if s.ExpiryDate == nil {
			continue
		}
		out = append(out, clinic.Notification{
			ClinicID:   s.ClinicID,
			EntityID:   s.ID,
			Type:       TypeSupplyExpiring,
			NotifyDate: today,
			Title:      "Supply expiring: " + s.Name,
			Message:    fmt.Sprintf("%s expires on %s", s.Name, s.ExpiryDate.Format("2006-01-02")),
		})
	}

	overdue, err := g.store.ListOverdueInvoices(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("load overdue invoices: %w", err)
	}
	for _, inv := range overdue {
		msg := fmt.Sprintf("Invoice %s is overdue", inv.InvoiceNumber)
		if inv.DueDate != nil {
			msg = fmt.Sprintf("Invoice %s was due on %s", inv.InvoiceNumber, inv.DueDate.Format("2006-01-02"))
		}
		out = append(out, clinic.Notification{
			ClinicID:   inv.ClinicID,
			EntityID:   inv.ID,
			Type:       TypeInvoiceOverdue,
			NotifyDate: today,
			Title:      "Invoice overdue",
			Message:    msg,
		})
	}

	return out, nil
}
