package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/export"
)

type daySheetReader interface {
	ListByProviderAndDay(ctx context.Context, providerID string, dayStart, dayEnd time.Time) ([]models.BookingDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// DaySheetFormat selects the rendered output of a day sheet.
type DaySheetFormat string

const (
	DaySheetFormatCSV DaySheetFormat = "csv"
	DaySheetFormatPDF DaySheetFormat = "pdf"
)

// DaySheet is a rendered provider day sheet ready to stream to the client.
type DaySheet struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders a provider's bookings for one day as CSV or PDF.
type ExportService struct {
	bookings daySheetReader
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(bookings daySheetReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{bookings: bookings, csv: csv, pdf: pdf, logger: logger}
}

var daySheetHeaders = []string{"Start", "End", "Status", "Customer", "Booking ID"}

// DaySheet renders the provider's non-cancelled bookings for the calendar day
// containing date, in the given timezone. Slot times are printed in that
// timezone so the sheet reads in the provider's local clock.
func (s *ExportService) DaySheet(ctx context.Context, providerID string, date time.Time, tz string, format DaySheetFormat) (*DaySheet, error) {
	if providerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provider id is required")
	}
	loc := time.UTC
	if tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown timezone")
		}
	}

	local := date.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	bookings, err := s.bookings.ListByProviderAndDay(ctx, providerID, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load day sheet bookings")
	}

	dataset := export.Dataset{Headers: daySheetHeaders}
	for _, b := range bookings {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Start":      b.SlotStartAt.In(loc).Format("15:04"),
			"End":        b.SlotEndAt.In(loc).Format("15:04"),
			"Status":     string(b.Status),
			"Customer":   b.CustomerID,
			"Booking ID": b.ID,
		})
	}

	day := dayStart.Format("2006-01-02")
	title := fmt.Sprintf("Day sheet %s", day)

	var payload []byte
	var contentType, ext string
	switch format {
	case DaySheetFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType, ext = "application/pdf", "pdf"
	case DaySheetFormatCSV, "":
		payload, err = s.csv.Render(dataset)
		contentType, ext = "text/csv", "csv"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render day sheet")
	}

	s.logger.Info("day sheet rendered",
		zap.String("provider_id", providerID),
		zap.String("day", day),
		zap.String("format", string(format)),
		zap.Int("bookings", len(bookings)),
	)

	return &DaySheet{
		Filename:    fmt.Sprintf("day-sheet-%s.%s", day, ext),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}
