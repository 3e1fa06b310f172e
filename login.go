package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var settingsRegexp = regexp.MustCompile(`var SETTINGS = (.*);`)

// loginSettings is embedded by the member portal in its sign-in page.
type loginSettings struct {
	CSRF    string `json:"csrf"`
	TransID string `json:"transId"`
	API     string `json:"api"`
	Hosts   struct {
		Tenant string `json:"tenant"`
		Policy string `json:"policy"`
	} `json:"hosts"`
}

// selfAssertedResponse.Status is sent either as a string or as a number.
type selfAssertedResponse struct {
	Status  json.RawMessage `json:"status"`
	Message string          `json:"message"`
}

func (r *selfAssertedResponse) ok() bool {
	status := strings.Trim(string(r.Status), `"`)
	return status == "" || status == "200"
}

type ssoResponse struct {
	AuthToken string `json:"auth_token"`
	Embedded  struct {
		Members []struct {
			ID int `json:"id"`
		} `json:"members"`
	} `json:"_embedded"`
}

// Login signs in to the member portal and exchanges the resulting single
// sign-on token for a booking API session.
func (b *Bot) Login(ctx context.Context) error {
	if err := b.login(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLogin, err)
	}
	b.log.WithField("member_id", b.memberID).Infof("logged in as %s", b.cfg.Email)
	return nil
}

func (b *Bot) login(ctx context.Context) error {
	settings, err := b.settings(ctx)
	if err != nil {
		return err
	}
	b.headers.Set("X-CSRF-TOKEN", settings.CSRF)

	if err := b.selfAsserted(ctx, settings); err != nil {
		return err
	}

	action, code, err := b.confirmed(ctx, settings)
	if err != nil {
		return err
	}

	token, companyID, err := b.handoff(ctx, action, code)
	if err != nil {
		return err
	}

	return b.sso(ctx, token, companyID)
}

func (b *Bot) settings(ctx context.Context) (*loginSettings, error) {
	doc, err := b.document(ctx, http.MethodGet, b.cfg.LoginURL, nil)
	if err != nil {
		return nil, err
	}
	script := doc.Find("script[data-container]").First().Text()
	match := settingsRegexp.FindStringSubmatch(script)
	if match == nil {
		return nil, errors.New("login settings not found")
	}
	var settings loginSettings
	if err := json.Unmarshal([]byte(match[1]), &settings); err != nil {
		return nil, fmt.Errorf("couldn't decode login settings: %w", err)
	}
	if settings.CSRF == "" || settings.TransID == "" || settings.Hosts.Tenant == "" {
		return nil, errors.New("login settings incomplete")
	}
	return &settings, nil
}

func (b *Bot) tenantURL(s *loginSettings) string {
	return b.cfg.AccountURL + "/" + strings.TrimLeft(s.Hosts.Tenant, "/")
}

func (s *loginSettings) params() url.Values {
	return url.Values{
		"tx": {s.TransID},
		"p":  {s.Hosts.Policy},
	}
}

func (b *Bot) selfAsserted(ctx context.Context, s *loginSettings) error {
	form := url.Values{
		"request_type": {"RESPONSE"},
		"email":        {b.cfg.Email},
		"password":     {b.cfg.Password},
	}
	u := b.tenantURL(s) + "/SelfAsserted?" + s.params().Encode()
	res, err := b.do(ctx, http.MethodPost, u, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if err := checkStatus(res); err != nil {
		return err
	}

	// The portal answers 200 and reports rejected credentials in the body.
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return nil
	}
	var out selfAssertedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("couldn't decode sign-in response: %w", err)
	}
	if !out.ok() {
		if out.Message == "" {
			out.Message = "credentials rejected"
		}
		return errors.New(out.Message)
	}
	return nil
}

func (b *Bot) confirmed(ctx context.Context, s *loginSettings) (string, string, error) {
	params := s.params()
	params.Set("csrf_token", s.CSRF)
	u := fmt.Sprintf("%s/api/%s/confirmed?%s", b.tenantURL(s), s.API, params.Encode())
	res, err := b.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return "", "", err
	}
	defer res.Body.Close()
	if err := checkStatus(res); err != nil {
		return "", "", err
	}
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", "", err
	}

	action, ok := doc.Find("form#auto").Attr("action")
	if !ok || action == "" {
		return "", "", errors.New("sign-in form not found")
	}
	code, ok := doc.Find("input#code").Attr("value")
	if !ok || code == "" {
		return "", "", errors.New("authorization code not found")
	}
	// The action may be relative to the confirmation page.
	target, err := res.Request.URL.Parse(action)
	if err != nil {
		return "", "", fmt.Errorf("invalid sign-in form action: %w", err)
	}
	return target.String(), code, nil
}

func (b *Bot) handoff(ctx context.Context, action, code string) (string, string, error) {
	form := url.Values{"code": {code}}
	doc, err := b.document(ctx, http.MethodPost, action, form)
	if err != nil {
		return "", "", err
	}
	div := doc.Find("div[member-sso-login][company-id]").First()
	token, _ := div.Attr("member-sso-login")
	companyID, _ := div.Attr("company-id")
	if token == "" || companyID == "" {
		return "", "", errors.New("member sso token not found")
	}
	return token, companyID, nil
}

func (b *Bot) sso(ctx context.Context, token, companyID string) error {
	form := url.Values{"token": {token}}
	u := fmt.Sprintf("%s/login/sso/%s", b.cfg.APIURL, url.PathEscape(companyID))
	res, err := b.do(ctx, http.MethodPost, u, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if err := checkStatus(res); err != nil {
		return err
	}

	var out ssoResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("couldn't decode sso response: %w", err)
	}
	if out.AuthToken == "" {
		return errors.New("auth token not found")
	}
	if len(out.Embedded.Members) == 0 {
		return errors.New("member not found")
	}
	b.headers.Set("Auth-Token", out.AuthToken)
	b.memberID = out.Embedded.Members[0].ID
	return nil
}

// document sends a GET, or a form POST when form is not nil, and parses
// the HTML answer.
func (b *Bot) document(ctx context.Context, method, u string, form url.Values) (*goquery.Document, error) {
	var (
		body        io.Reader
		contentType string
	)
	if form != nil {
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}
	res, err := b.do(ctx, method, u, body, contentType)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if err := checkStatus(res); err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(res.Body)
}
