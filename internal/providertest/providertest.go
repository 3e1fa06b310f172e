// Package providertest runs a fake member portal and booking API for
// tests.
package providertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Account and API values the fake accepts.
const (
	Email     = "swimmer@example.com"
	Password  = "hunter2"
	AppID     = "app-id"
	AppKey    = "app-key"
	MemberID  = 99
	SiteID    = 37018
	companyID = "41285"
	authToken = "auth-1"
)

// Event is an entry of the events listing.
type Event struct {
	ID           int    `json:"id"`
	EventChainID int    `json:"event_chain_id"`
	Datetime     string `json:"datetime"`
	Description  string `json:"description"`
}

// BasketItem is an item received by the add_item endpoint.
type BasketItem struct {
	EventID      int `json:"event_id"`
	EventChainID int `json:"event_chain_id"`
	MemberID     int `json:"member_id"`
}

// Events returns a day of lane sessions on 2026-10-27: slow and medium
// at 08:00, medium at 09:00 and an event with a broken datetime.
func Events() []Event {
	return []Event{
		{ID: 1, EventChainID: 10, Datetime: "2026-10-27T08:00:00+00:00", Description: "Slow lane swimming"},
		{ID: 2, EventChainID: 20, Datetime: "2026-10-27T08:00:00+00:00", Description: "Medium lane swimming"},
		{ID: 3, EventChainID: 30, Datetime: "2026-10-27T09:00:00+0000", Description: "Medium lane swimming"},
		{ID: 4, EventChainID: 40, Datetime: "not a date", Description: "Fast lane swimming"},
	}
}

// Provider is the fake. It is closed when the test ends.
type Provider struct {
	URL string

	events []Event

	mu        sync.Mutex
	paths     []string
	basket    []BasketItem
	checkouts []int
	overrides map[string]http.HandlerFunc
}

// New starts a provider listing events.
func New(t testing.TB, events []Event) *Provider {
	t.Helper()
	p := &Provider{
		events:    events,
		overrides: map[string]http.HandlerFunc{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /account/idaaslogin", p.loginPage)
	mux.HandleFunc("POST /tenant/SelfAsserted", p.selfAsserted)
	mux.HandleFunc("GET /tenant/api/CombinedSigninAndSignup/confirmed", p.confirmed)
	mux.HandleFunc("POST /signin-oidc", p.signin)
	mux.HandleFunc("POST /api/login/sso/"+companyID, p.sso)
	mux.HandleFunc("GET "+p.EventsPath(), p.eventList)
	mux.HandleFunc("POST "+p.AddItemPath(), p.addItem)
	mux.HandleFunc("POST "+p.CheckoutPath(), p.checkout)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.paths = append(p.paths, r.URL.Path)
		h := p.overrides[r.URL.Path]
		p.mu.Unlock()
		if h != nil {
			h(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	p.URL = srv.URL
	return p
}

// Override replaces the handler of path.
func (p *Provider) Override(path string, h http.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[path] = h
}

// LoginURL returns the sign-in page URL.
func (p *Provider) LoginURL() string { return p.URL + "/account/idaaslogin" }

// AccountURL returns the base URL of the sign-in tenant.
func (p *Provider) AccountURL() string { return p.URL }

// APIURL returns the booking API base URL.
func (p *Provider) APIURL() string { return p.URL + "/api" }

// SelfAssertedPath is the path credentials are posted to.
func (p *Provider) SelfAssertedPath() string { return "/tenant/SelfAsserted" }

// ConfirmedPath is the path of the page holding the authorization code.
func (p *Provider) ConfirmedPath() string {
	return "/tenant/api/CombinedSigninAndSignup/confirmed"
}

// EventsPath is the path of the events listing.
func (p *Provider) EventsPath() string { return fmt.Sprintf("/api/%d/events", SiteID) }

// AddItemPath is the path of the add to basket call.
func (p *Provider) AddItemPath() string { return fmt.Sprintf("/api/%d/basket/add_item", SiteID) }

// CheckoutPath is the path of the basket checkout call.
func (p *Provider) CheckoutPath() string { return fmt.Sprintf("/api/%d/basket/checkout", SiteID) }

// Requested reports whether path was requested.
func (p *Provider) Requested(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.paths {
		if r == path {
			return true
		}
	}
	return false
}

// RequestCount returns the number of requests served.
func (p *Provider) RequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paths)
}

// Basket returns the items added to the basket.
func (p *Provider) Basket() []BasketItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]BasketItem(nil), p.basket...)
}

// Checkouts returns the client ids of the checkouts.
func (p *Provider) Checkouts() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.checkouts...)
}

func (p *Provider) loginPage(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "portal", Value: "1", Path: "/"})
	fmt.Fprint(w, `<html><body>
<script>var other = 1;</script>
<script data-container="true">
var SETTINGS = {"csrf":"csrf-1","transId":"tx-1","api":"CombinedSigninAndSignup","hosts":{"tenant":"/tenant","policy":"B2C_1A_signin"}};
</script>
</body></html>`)
}

func (p *Provider) selfAsserted(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-CSRF-TOKEN") != "csrf-1" {
		http.Error(w, "missing csrf", http.StatusForbidden)
		return
	}
	if r.URL.Query().Get("tx") != "tx-1" || r.URL.Query().Get("p") != "B2C_1A_signin" {
		http.Error(w, "bad transaction", http.StatusBadRequest)
		return
	}
	if _, err := r.Cookie("portal"); err != nil {
		http.Error(w, "no session", http.StatusForbidden)
		return
	}
	if r.FormValue("email") != Email || r.FormValue("password") != Password {
		fmt.Fprint(w, `{"status":"400","message":"Your password is incorrect."}`)
		return
	}
	fmt.Fprint(w, `{"status":"200"}`)
}

func (p *Provider) confirmed(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("csrf_token") != "csrf-1" {
		http.Error(w, "bad csrf", http.StatusForbidden)
		return
	}
	fmt.Fprint(w, `<html><body><form id="auto" action="/signin-oidc" method="post">
<input type="hidden" id="code" name="code" value="code-1"></form></body></html>`)
}

func (p *Provider) signin(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("code") != "code-1" {
		http.Error(w, "bad code", http.StatusUnauthorized)
		return
	}
	fmt.Fprintf(w, `<html><body><div class="booking" member-sso-login="sso-token" company-id="%s"></div></body></html>`, companyID)
}

func (p *Provider) sso(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("App-Id") != AppID || r.Header.Get("App-Key") != AppKey {
		http.Error(w, "bad app", http.StatusUnauthorized)
		return
	}
	if r.FormValue("token") != "sso-token" {
		http.Error(w, "bad token", http.StatusUnauthorized)
		return
	}
	fmt.Fprintf(w, `{"auth_token":%q,"_embedded":{"members":[{"id":%d}]}}`, authToken, MemberID)
}

func (p *Provider) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Auth-Token") != authToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (p *Provider) eventList(w http.ResponseWriter, r *http.Request) {
	if !p.authorized(w, r) {
		return
	}
	q := r.URL.Query()
	if q.Get("start_date") != q.Get("end_date") || q.Get("include_non_bookable") != "false" {
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}
	var out struct {
		Embedded struct {
			Events []Event `json:"events"`
		} `json:"_embedded"`
	}
	out.Embedded.Events = p.events
	_ = json.NewEncoder(w).Encode(out)
}

func (p *Provider) addItem(w http.ResponseWriter, r *http.Request) {
	if !p.authorized(w, r) {
		return
	}
	var in struct {
		EntireBasket bool         `json:"entire_basket"`
		Items        []BasketItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !in.EntireBasket {
		http.Error(w, "bad basket", http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.basket = append(p.basket, in.Items...)
	p.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func (p *Provider) checkout(w http.ResponseWriter, r *http.Request) {
	if !p.authorized(w, r) {
		return
	}
	var in struct {
		Client struct {
			ID int `json:"id"`
		} `json:"client"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad checkout", http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.checkouts = append(p.checkouts, in.Client.ID)
	p.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}
