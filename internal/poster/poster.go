package poster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
	"weeklydigest/internal/digest"
	"weeklydigest/internal/google"
	"weeklydigest/internal/models"
	"weeklydigest/internal/schedule"
	"weeklydigest/internal/week"
)

// RowFetcher returns the rows of one sheet, header row first.
type RowFetcher interface {
	FetchRows(ctx context.Context, spreadsheetID string, sel google.SheetSelector) ([][]string, error)
}

// Publisher delivers a digest to a destination.
type Publisher interface {
	Publish(ctx context.Context, destination, text string) error
}

// Mirror copies the week's events to a secondary calendar.
type Mirror interface {
	MirrorEvents(ctx context.Context, events []models.Event) error
}

// Options configures a Poster.
type Options struct {
	SpreadsheetID string
	Sheet         google.SheetSelector
	Channel       string
	Columns       schedule.Columns
	Location      *time.Location
	DryRun        bool
}

// Poster runs one fetch → classify → format → publish cycle.
type Poster struct {
	logger     *slog.Logger
	fetcher    RowFetcher
	publisher  Publisher // nil prints the digest instead
	mirror     Mirror    // optional
	classifier *schedule.Classifier
	opts       Options
	out        io.Writer
	now        func() time.Time
}

// NewPoster creates a new Poster. publisher and mirror may be nil.
func NewPoster(logger *slog.Logger, fetcher RowFetcher, publisher Publisher, mirror Mirror, out io.Writer, opts Options) *Poster {
	if opts.Location == nil {
		opts.Location = week.Tokyo()
	}
	return &Poster{
		logger:     logger,
		fetcher:    fetcher,
		publisher:  publisher,
		mirror:     mirror,
		classifier: schedule.NewClassifier(logger, opts.Columns),
		opts:       opts,
		out:        out,
		now:        time.Now,
	}
}

// Run performs a full cycle and returns the digest it produced.
// Only a fetch failure is returned as an error; publish and mirror failures
// are logged and the digest is printed instead.
func (p *Poster) Run(ctx context.Context) (string, error) {
	window := week.Current(p.now(), p.opts.Location)
	p.logger.Info("Starting digest run.", "monday", window.Monday, "sunday", window.End())

	rows, err := p.fetcher.FetchRows(ctx, p.opts.SpreadsheetID, p.opts.Sheet)
	if err != nil {
		return "", fmt.Errorf("failed to load spreadsheet: %w", err)
	}

	records := schedule.Records(rows)
	events := p.classifier.Classify(records, window)
	p.logger.Info("Classified schedule rows.", "records", len(records), "events", len(events))

	text := digest.Format(events, window)
	p.logger.Debug("Rendered digest", "text", text)

	if p.opts.DryRun {
		p.logger.Info("[DRY RUN] Not publishing digest.")
		p.print(text)
		return text, nil
	}

	p.publish(ctx, text)

	if p.mirror != nil {
		if err := p.mirror.MirrorEvents(ctx, events); err != nil {
			p.logger.Error("Failed to mirror events", "error", err)
		}
	}

	p.logger.Info("Digest run finished.")
	return text, nil
}

func (p *Poster) publish(ctx context.Context, text string) {
	if p.publisher == nil || p.opts.Channel == "" {
		p.logger.Warn("No notification channel configured, printing digest.")
		p.print(text)
		return
	}
	if err := p.publisher.Publish(ctx, p.opts.Channel, text); err != nil {
		p.logger.Error("Failed to publish digest, printing it instead", "channel", p.opts.Channel, "error", err)
		p.print(text)
	}
}

func (p *Poster) print(text string) {
	if p.out == nil {
		return
	}
	fmt.Fprintln(p.out, text)
}
