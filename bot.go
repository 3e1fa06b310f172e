package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

// Provider defaults used when the configuration leaves them unset.
const (
	// DefaultAPIURL is the booking API base URL.
	DefaultAPIURL = "https://api.bookingbug.com/api/v1"
	// DefaultLoginURL is the member portal page that starts the sign-in.
	DefaultLoginURL = "https://www.nuffieldhealth.com/account/idaaslogin"
	// DefaultAccountURL hosts the sign-in tenant.
	DefaultAccountURL = "https://account.nuffieldhealth.com"
	// DefaultSiteID is the venue id used in booking API paths.
	DefaultSiteID = 37018
	// DefaultTimezone is the club's local time zone.
	DefaultTimezone = "Europe/London"

	dateLayout = "2006-01-02"
)

// Config holds the account credentials and the provider endpoints.
type Config struct {
	Email      string
	Password   string
	AppID      string
	AppKey     string
	APIURL     string
	SiteID     int
	LoginURL   string
	AccountURL string
	Timeout    time.Duration
}

// Request describes the slot to book.
type Request struct {
	Date  time.Time
	Start StartTime
	Lane  Lane
}

// Booking is a confirmed reservation.
type Booking struct {
	Email        string    `json:"email" yaml:"email"`
	Date         string    `json:"date" yaml:"date"`
	Start        string    `json:"start" yaml:"start"`
	Lane         string    `json:"lane" yaml:"lane"`
	StartsAt     time.Time `json:"starts_at" yaml:"starts_at"`
	EventID      int       `json:"event_id" yaml:"event_id"`
	EventChainID int       `json:"event_chain_id" yaml:"event_chain_id"`
	MemberID     int       `json:"member_id" yaml:"member_id"`
}

// Bot talks to the member portal and the booking API using a single
// cookie session.
type Bot struct {
	cfg      Config
	client   *http.Client
	headers  http.Header
	log      logrus.FieldLogger
	memberID int
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger used for request and progress messages.
func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Bot) {
		b.log = log
	}
}

// New creates a bot with a fresh cookie session.
func New(cfg Config, opts ...Option) (*Bot, error) {
	// Set cookiejar options
	options := cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	}
	jar, err := cookiejar.New(&options)
	if err != nil {
		return nil, fmt.Errorf("couldn't create cookiejar: %w", err)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.AccountURL = strings.TrimRight(cfg.AccountURL, "/")

	b := &Bot{
		cfg: cfg,
		client: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		headers: http.Header{},
		log:     logrus.StandardLogger(),
	}
	b.headers.Set("App-Id", cfg.AppID)
	b.headers.Set("App-Key", cfg.AppKey)
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// TargetDate returns the calendar date daysAhead days after now in loc.
func TargetDate(now time.Time, daysAhead int, loc *time.Location) time.Time {
	now = now.In(loc)
	return time.Date(now.Year(), now.Month(), now.Day()+daysAhead, 0, 0, 0, 0, loc)
}

// Book logs in, looks up the slots for the requested date and reserves
// the one matching the requested start time and lane.
func (b *Bot) Book(ctx context.Context, req Request) (*Booking, error) {
	if req.Lane == Unknown {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLane, req.Lane)
	}
	if !req.Start.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStartTime, req.Start)
	}
	date := req.Date.Format(dateLayout)
	log := b.log.WithFields(logrus.Fields{
		"date":  date,
		"start": req.Start.String(),
		"lane":  req.Lane.String(),
	})
	log.Info("booking slot")

	if err := b.Login(ctx); err != nil {
		return nil, err
	}

	slots, err := b.Slots(ctx, req.Date)
	if err != nil {
		return nil, err
	}

	slot, err := Match(slots, req.Start, req.Lane)
	if err != nil {
		return nil, fmt.Errorf("%w on %s", err, date)
	}
	log.WithField("event_id", slot.EventID).Info("found matching slot")

	if err := b.Checkout(ctx, slot); err != nil {
		return nil, err
	}
	log.Info("slot booked")

	return &Booking{
		Email:        b.cfg.Email,
		Date:         date,
		Start:        slot.Start.String(),
		Lane:         slot.Lane.String(),
		StartsAt:     slot.StartsAt,
		EventID:      slot.EventID,
		EventChainID: slot.EventChainID,
		MemberID:     b.memberID,
	}, nil
}

func (b *Bot) do(ctx context.Context, method, u string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("couldn't create request: %w", err)
	}
	for k, v := range b.headers {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	b.log.WithFields(logrus.Fields{
		"method": method,
		"url":    req.URL.Host + req.URL.Path,
	}).Debug("sending request")
	res, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	return res, nil
}

func checkStatus(res *http.Response) error {
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return statusError(res)
	}
	return nil
}
