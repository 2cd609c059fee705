package handlers

import (
	"context"
	"crypto/sha256"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/CMSgov/dpc-portal/api/middleware"
	"github.com/CMSgov/dpc-portal/api/services"
	"github.com/CMSgov/dpc-portal/internal/authn"
	"github.com/CMSgov/dpc-portal/models"
	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog"
)

const TimeFormat string = "2006-01-02T15:04:05Z"

const flashCookie = "dpc_portal_flash"

// recentEventLimit is how many audit events the portal page shows.
const recentEventLimit = 10

//go:embed templates/*.html
var templateFS embed.FS

// EventLister reads the credential audit trail of an organization.
type EventLister interface {
	ListCredentialEvents(ctx context.Context, orgID string, limit int) ([]models.CredentialEvent, error)
}

// Portal holds the dependencies of the HTML handlers.
type Portal struct {
	Service       *services.Service
	Sessions      *authn.SessionIssuer
	Events        EventLister
	SecureCookies bool

	views   *template.Template
	flashes *securecookie.SecureCookie
}

// page is the data passed to every view.
type page struct {
	Title string
	User  *models.User
	Flash models.Flash
	Error string
	Form  url.Values
	Token string

	Bundle       *models.CredentialBundle
	Orgs         models.OrganizationView
	Credentials  models.CredentialList
	Organization *models.Organization
	Members      []models.User
	Events       []models.CredentialEvent
}

func NewPortal(svc *services.Service, sessions *authn.SessionIssuer, events EventLister, secureCookies bool) (*Portal, error) {
	views, err := template.New("").Funcs(template.FuncMap{
		"eventTime": func(ts int64) string { return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04") },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	hashKey := sha256.Sum256(append([]byte("flash:"), sessions.Secret...))
	flashes := securecookie.New(hashKey[:], nil).MaxAge(300)
	flashes.SetSerializer(securecookie.JSONEncoder{})

	return &Portal{
		Service:       svc,
		Sessions:      sessions,
		Events:        events,
		SecureCookies: secureCookies,
		views:         views,
		flashes:       flashes,
	}, nil
}

// render writes a view. The flash cookie is consumed on every rendered page.
func (p *Portal) render(w http.ResponseWriter, r *http.Request, status int, view string, data page) {
	if user, ok := middleware.UserFromContext(r.Context()); ok && data.User == nil {
		data.User = &user
	}
	if data.Flash.Empty() {
		data.Flash = p.popFlash(w, r)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := p.views.ExecuteTemplate(w, view, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("view", view).Msg("Failed to render view")
	}
}

func (p *Portal) setFlash(w http.ResponseWriter, flash models.Flash) {
	value, err := p.flashes.Encode(flashCookie, flash)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   p.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (p *Portal) popFlash(w http.ResponseWriter, r *http.Request) models.Flash {
	var flash models.Flash

	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return flash
	}
	if err := p.flashes.Decode(flashCookie, cookie.Value, &flash); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Discarding invalid flash cookie")
	}

	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	return flash
}

func (p *Portal) redirect(w http.ResponseWriter, r *http.Request, target string, flash models.Flash) {
	if !flash.Empty() {
		p.setFlash(w, flash)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// redirectBack returns to the page the request came from. Only the path of a same-site
// Referer is used; anything else falls back to the portal page.
func (p *Portal) redirectBack(w http.ResponseWriter, r *http.Request, flash models.Flash) {
	target := "/portal"
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" && (ref.Host == "" || ref.Host == r.Host) {
		target = ref.Path
	}
	p.redirect(w, r, target, flash)
}

func (p *Portal) startSession(w http.ResponseWriter, user *models.User) error {
	token, err := p.Sessions.Issue(user.ID, user.Email, user.ImplementerID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(p.Sessions.TTL.Seconds()),
		HttpOnly: true,
		Secure:   p.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (p *Portal) endSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// SignInRedirect sends anonymous visitors of protected pages to the sign in form.
func (p *Portal) SignInRedirect(w http.ResponseWriter, r *http.Request) {
	p.endSession(w)
	p.redirect(w, r, "/users/sign_in", models.Flash{Alert: "You need to sign in or sign up before continuing."})
}

// currentUser returns the user loaded by the RequireUser middleware.
func currentUser(r *http.Request) models.User {
	user, _ := middleware.UserFromContext(r.Context())
	return user
}
