package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zegheim/nuffield-book-classes/internal/providertest"
)

func newTestBot(t *testing.T, baseURL, password string) *Bot {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	b, err := New(Config{
		Email:      providertest.Email,
		Password:   password,
		AppID:      providertest.AppID,
		AppKey:     providertest.AppKey,
		APIURL:     baseURL + "/api/",
		SiteID:     providertest.SiteID,
		LoginURL:   baseURL + "/account/idaaslogin",
		AccountURL: baseURL,
		Timeout:    5 * time.Second,
	}, WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func testRequest(start StartTime, lane Lane) Request {
	return Request{
		Date:  time.Date(2026, 10, 27, 0, 0, 0, 0, time.UTC),
		Start: start,
		Lane:  lane,
	}
}

func TestBook(t *testing.T) {
	p := providertest.New(t, providertest.Events())
	b := newTestBot(t, p.URL, providertest.Password)

	booking, err := b.Book(context.Background(), testRequest(800, Medium))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.EventID != 2 || booking.EventChainID != 20 {
		t.Errorf("booked event %d/%d, want 2/20", booking.EventID, booking.EventChainID)
	}
	if booking.MemberID != providertest.MemberID {
		t.Errorf("member %d, want %d", booking.MemberID, providertest.MemberID)
	}
	if booking.Date != "2026-10-27" || booking.Start != "08:00" || booking.Lane != "MEDIUM" {
		t.Errorf("unexpected booking %+v", booking)
	}

	want := providertest.BasketItem{EventID: 2, EventChainID: 20, MemberID: providertest.MemberID}
	if basket := p.Basket(); len(basket) != 1 || basket[0] != want {
		t.Errorf("basket %+v, want [%+v]", basket, want)
	}
	if checkouts := p.Checkouts(); len(checkouts) != 1 || checkouts[0] != providertest.MemberID {
		t.Errorf("checkout %v, want [%d]", checkouts, providertest.MemberID)
	}
}

func TestBookOtherLayout(t *testing.T) {
	p := providertest.New(t, providertest.Events())
	b := newTestBot(t, p.URL, providertest.Password)

	booking, err := b.Book(context.Background(), testRequest(900, Medium))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.EventID != 3 {
		t.Errorf("booked event %d, want 3", booking.EventID)
	}
}

func TestBookNoMatchingSlot(t *testing.T) {
	tests := []struct {
		name  string
		start StartTime
		lane  Lane
	}{
		{name: "lane", start: 800, lane: Fast},
		{name: "time", start: 1900, lane: Medium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := providertest.New(t, providertest.Events())
			b := newTestBot(t, p.URL, providertest.Password)

			_, err := b.Book(context.Background(), testRequest(tt.start, tt.lane))
			if !errors.Is(err, ErrNoSlot) {
				t.Fatalf("expected ErrNoSlot, got %v", err)
			}
			if !p.Requested(p.EventsPath()) {
				t.Error("events were not requested")
			}
			if p.Requested(p.AddItemPath()) || p.Requested(p.CheckoutPath()) {
				t.Error("basket was called without a matching slot")
			}
		})
	}
}

func TestBookProviderFailures(t *testing.T) {
	serverError := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}
	tests := []struct {
		name       string
		path       func(p *providertest.Provider) string
		handler    http.HandlerFunc
		wantErr    error
		wantBasket bool
	}{
		{
			name:    "events status",
			path:    (*providertest.Provider).EventsPath,
			handler: serverError,
		},
		{
			name: "events body",
			path: (*providertest.Provider).EventsPath,
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"_embedded":{"events":[{"id":"oops"`)
			},
		},
		{
			name:       "add item status",
			path:       (*providertest.Provider).AddItemPath,
			handler:    serverError,
			wantErr:    ErrCheckout,
			wantBasket: true,
		},
		{
			name:       "checkout status",
			path:       (*providertest.Provider).CheckoutPath,
			handler:    serverError,
			wantErr:    ErrCheckout,
			wantBasket: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := providertest.New(t, providertest.Events())
			p.Override(tt.path(p), tt.handler)
			b := newTestBot(t, p.URL, providertest.Password)

			booking, err := b.Book(context.Background(), testRequest(800, Medium))
			if err == nil {
				t.Fatalf("expected error, got booking %+v", booking)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if got := p.Requested(p.AddItemPath()); got != tt.wantBasket {
				t.Errorf("basket requested %t, want %t", got, tt.wantBasket)
			}
		})
	}
}

func TestBookRejectedCredentials(t *testing.T) {
	p := providertest.New(t, providertest.Events())
	b := newTestBot(t, p.URL, "wrong")

	_, err := b.Book(context.Background(), testRequest(800, Medium))
	if !errors.Is(err, ErrLogin) {
		t.Fatalf("expected ErrLogin, got %v", err)
	}
	if p.Requested(p.EventsPath()) {
		t.Error("events requested after failed login")
	}
}

func TestLoginSelfAssertedBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "string status", body: `{"status":"400","message":"Your password is incorrect."}`, wantErr: true},
		{name: "numeric status", body: `{"status":400,"message":"Your password is incorrect."}`, wantErr: true},
		{name: "unexpected json", body: `{"status":{"code":400}}`, wantErr: true},
		{name: "numeric success", body: `{"status":200}`},
		{name: "not json", body: `ok`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := providertest.New(t, providertest.Events())
			p.Override(p.SelfAssertedPath(), func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})
			b := newTestBot(t, p.URL, providertest.Password)

			err := b.Login(context.Background())
			if tt.wantErr {
				if !errors.Is(err, ErrLogin) {
					t.Fatalf("expected ErrLogin, got %v", err)
				}
				if p.Requested(p.ConfirmedPath()) {
					t.Error("sign-in continued after rejected credentials")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestBookInvalidRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{name: "start", req: testRequest(2460, Medium), wantErr: ErrInvalidStartTime},
		{name: "lane", req: testRequest(800, Unknown), wantErr: ErrInvalidLane},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := providertest.New(t, providertest.Events())
			b := newTestBot(t, p.URL, providertest.Password)

			_, err := b.Book(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if n := p.RequestCount(); n != 0 {
				t.Errorf("%d requests sent for an invalid request", n)
			}
		})
	}
}

func TestLoginMissingSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><script data-container="true">var nothing = 1;</script></body></html>`)
	}))
	t.Cleanup(srv.Close)
	b := newTestBot(t, srv.URL, providertest.Password)

	err := b.Login(context.Background())
	if !errors.Is(err, ErrLogin) {
		t.Fatalf("expected ErrLogin, got %v", err)
	}
}

func TestLoginStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	b := newTestBot(t, srv.URL, providertest.Password)

	err := b.Login(context.Background())
	if !errors.Is(err, ErrLogin) {
		t.Fatalf("expected ErrLogin, got %v", err)
	}
}

func TestCheckoutRequiresLogin(t *testing.T) {
	p := providertest.New(t, providertest.Events())
	b := newTestBot(t, p.URL, providertest.Password)

	err := b.Checkout(context.Background(), Slot{EventID: 2, EventChainID: 20, Available: true})
	if !errors.Is(err, ErrCheckout) {
		t.Fatalf("expected ErrCheckout, got %v", err)
	}
	if n := p.RequestCount(); n != 0 {
		t.Errorf("%d requests sent before login", n)
	}
}
