package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"gocart/internal/domain"
	"gocart/internal/repositories"
	"gocart/internal/topology"
	"gocart/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// TicketService renders PDF tickets for confirmed bookings.
type TicketService struct {
	Catalog   repositories.Catalog
	Seats     repositories.SeatInventory
	Bookings  repositories.BookingStore
	Users     repositories.UserStore
	Location  *time.Location
	RequestID string
	Loader    func(ctx context.Context, userID, bookingID int64) (ticketData, error)
}

type ticketData struct {
	BookingID   int64
	Passenger   string
	SeatNumbers []string
	From        string
	To          string
	Path        []string
	TravelDate  string
	StartTime   string
	DropTime    string
	NumberPlate string
	Method      string
	Fare        string
	BookedAt    string
}

// GenerateTicket returns the PDF and its file name. Only the owner of a
// confirmed booking gets a ticket.
func (s TicketService) GenerateTicket(ctx context.Context, userID, bookingID int64) ([]byte, string, error) {
	load := s.Loader
	if load == nil {
		load = s.loadTicketData
	}
	data, err := load(ctx, userID, bookingID)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "ticket", "generate", fmt.Sprintf("booking_id=%d", bookingID))
	return buildTicketPDF(data)
}

func (s TicketService) loadTicketData(ctx context.Context, userID, bookingID int64) (ticketData, error) {
	var out ticketData
	b, err := s.Bookings.Booking(ctx, bookingID)
	if err != nil {
		return out, err
	}
	if b.StudentID != userID {
		return out, domain.NotFoundError{Resource: "booking", ID: bookingID}
	}
	if b.Status != domain.StatusConfirmed {
		return out, domain.ConflictError{Resource: "booking", Msg: "ticket is available after payment", Step: domain.StepPayment}
	}
	sc, err := s.Catalog.ScheduleByID(ctx, b.ScheduleID)
	if err != nil {
		return out, err
	}
	route, err := topology.Store{Source: s.Catalog}.Route(ctx, sc.Route.ID)
	if err != nil {
		return out, err
	}
	seats, err := s.Seats.SeatsByIDs(ctx, b.ScheduleID, b.SeatIDs)
	if err != nil {
		return out, err
	}
	for _, seat := range seats {
		out.SeatNumbers = append(out.SeatNumbers, seat.SeatNumber)
	}
	if u, err := s.Users.UserByID(ctx, b.StudentID); err == nil {
		out.Passenger = u.Username
	}

	out.BookingID = b.ID
	out.From = stopName(route, b.FromStopID)
	out.To = stopName(route, b.ToStopID)
	out.Path = PathFor(route, b)
	out.TravelDate = sc.TravelDate
	out.StartTime = sc.StartTime
	out.DropTime = sc.DropTime
	out.NumberPlate = sc.Cart.NumberPlate
	out.Method = b.PaymentID
	out.Fare = utils.FormatTaka(b.Fare)
	out.BookedAt = utils.FormatDateTime(b.CreatedAt, s.Location)
	return out, nil
}

func buildTicketPDF(d ticketData) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("GoCart Ticket", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "GOCART TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Booking      : #%d", d.BookingID),
		fmt.Sprintf("Passenger    : %s", safe(d.Passenger, "N/A")),
		fmt.Sprintf("Seats        : %s", safe(strings.Join(d.SeatNumbers, ", "), "-")),
		fmt.Sprintf("Route        : %s -> %s", safe(d.From, "-"), safe(d.To, "-")),
		fmt.Sprintf("Date         : %s", safe(d.TravelDate, "-")),
		fmt.Sprintf("Departure    : %s", safe(timeHM(d.StartTime), "-")),
		fmt.Sprintf("Arrival      : %s", safe(timeHM(d.DropTime), "-")),
		fmt.Sprintf("Cart         : %s", safe(d.NumberPlate, "-")),
		fmt.Sprintf("Paid with    : %s", safe(strings.ToUpper(d.Method), "-")),
		fmt.Sprintf("Total fare   : %s", safe(d.Fare, "-")),
		fmt.Sprintf("Booked at    : %s", safe(d.BookedAt, "-")),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	if len(d.Path) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, "Stops:")
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, strings.Join(d.Path, " > "), "", "", false)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Show this ticket to the driver when boarding.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("ticket_%d.pdf", d.BookingID), nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func timeHM(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 5 {
		return v[:5]
	}
	return v
}
