package main

import (
	"context"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/contact"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/logger"
	"github.com/Zachkp/folio/internal/particle"
	"github.com/Zachkp/folio/internal/relay"
	"github.com/Zachkp/folio/internal/section"
	"github.com/Zachkp/folio/internal/store"
	"github.com/Zachkp/folio/internal/view"
)

const pageKey = "page"

type site struct {
	cfg        *config.Config
	profile    atomic.Pointer[content.Profile]
	assets     *content.Assets
	views      *view.Registry
	db         *store.Store
	dispatcher contact.Dispatcher
	relayName  string
	admin      *adminAuth
}

func newSite(cfg *config.Config, profile *content.Profile, db *store.Store) *site {
	dispatcher, relayName := newDispatcher(cfg)
	return newSiteWithDispatcher(cfg, profile, db, dispatcher, relayName)
}

func newDispatcher(cfg *config.Config) (contact.Dispatcher, string) {
	d, err := relay.New(relay.Config{
		Driver: cfg.Relay.Driver,
		EmailJS: relay.EmailJSConfig{
			ServiceID:   cfg.Relay.EmailJS.ServiceID,
			TemplateID:  cfg.Relay.EmailJS.TemplateID,
			PublicKey:   cfg.Relay.EmailJS.PublicKey,
			AccessToken: cfg.Relay.EmailJS.AccessToken,
			BaseURL:     cfg.Relay.EmailJS.URL,
		},
		SMTP: relay.SMTPConfig{
			Host: cfg.Relay.SMTP.Host,
			Port: cfg.Relay.SMTP.Port,
			User: cfg.Relay.SMTP.User,
			Pass: cfg.Relay.SMTP.Pass,
			To:   cfg.Relay.SMTP.To,
		},
	})
	if err != nil {
		zlog.Warn().Err(err).Msg("Email relay not configured, contact submissions will fail")
		return relay.Unconfigured{Reason: err}, "unconfigured"
	}
	return d, cfg.Relay.Driver
}

func newSiteWithDispatcher(cfg *config.Config, profile *content.Profile, db *store.Store, d contact.Dispatcher, relayName string) *site {
	s := &site{
		cfg:        cfg,
		assets:     content.NewAssets(cfg.Server.Public),
		db:         db,
		dispatcher: d,
		relayName:  relayName,
		admin:      newAdminAuth(cfg.Admin),
	}
	s.profile.Store(profile)

	var particles *particle.Config
	if !cfg.Particles.Disabled {
		particles = &particle.Config{
			Interval: cfg.Particles.Interval,
			Lifetime: cfg.Particles.Lifetime,
			MaxLive:  cfg.Particles.MaxLive,
		}
	}
	s.views = view.NewRegistry(cfg.Site.ViewTTL, s.newContact, particles)
	return s
}

func (s *site) currentProfile() *content.Profile {
	return s.profile.Load()
}

// setProfile swaps the rendered content. Open page views keep their
// contact controllers; new ones pick up the new fallback address.
func (s *site) setProfile(p *content.Profile) {
	s.profile.Store(p)
}

func (s *site) newContact() *contact.Controller {
	fallback := s.cfg.Contact.FallbackEmail
	if fallback == "" {
		fallback = s.currentProfile().Contact.Email
	}
	return contact.NewController(s.dispatcher,
		contact.WithTimeout(s.cfg.Contact.Timeout),
		contact.WithFallbackEmail(fallback),
		contact.WithNotifier(contact.NotifierFunc(func(n contact.Notification) {
			zlog.Debug().Str("title", n.Title).Str("severity", string(n.Severity)).Msg("Contact notification")
		})),
	)
}

func newRouter(s *site) *gin.Engine {
	r := gin.New()
	r.Use(logger.Middleware(), gin.Recovery())

	r.SetFuncMap(template.FuncMap{
		"image":   s.assets.Image,
		"timeAgo": humanize.Time,
		"comma":   humanize.Comma,
		"odd":     func(i int) bool { return i%2 == 1 },
	})
	r.LoadHTMLGlob(s.cfg.Server.Templates)

	r.Static("/images", s.cfg.Server.Public+"/images")
	r.Static("/static", s.cfg.Server.Public+"/static")

	r.Use(s.visitorTrackingMiddleware())

	// Home page route
	r.GET("/", s.handleHome)

	// HTMX contact form endpoint - returns just the form HTML
	r.GET("/contact-form", func(c *gin.Context) {
		c.HTML(http.StatusOK, "contact-form.html", formData{ViewID: c.Query("view")})
	})

	r.POST("/view", s.handleOpen)
	// an expired view must not swallow a submission
	r.POST("/view/:id/contact", s.handleContact)

	v := r.Group("/view/:id", s.requirePage())
	v.POST("/scroll", s.handleScroll)
	v.POST("/nav/:section", s.handleNav)
	v.POST("/menu", s.handleMenu)
	v.GET("/events", s.handleEvents)
	v.POST("/close", s.handleClose)

	s.setupAdminRoutes(r)

	return r
}

type navItem struct {
	ID     section.ID
	Label  string
	Active bool
}

type navData struct {
	ViewID   string
	Initials string
	Items    []navItem
	MenuOpen bool
}

type formData struct {
	ViewID string
	Fields contact.Fields
	Errors map[string]string
}

func (s *site) nav(page *view.Page) navData {
	active := page.Tracker.Active()
	ids := section.All()
	items := make([]navItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, navItem{ID: id, Label: id.Label(), Active: id == active})
	}
	return navData{
		ViewID:   page.ID,
		Initials: s.currentProfile().Initials,
		Items:    items,
		MenuOpen: page.MenuOpen(),
	}
}

func (s *site) handleHome(c *gin.Context) {
	page := s.views.Open()
	c.HTML(http.StatusOK, "index.html", gin.H{
		"profile":   s.currentProfile(),
		"nav":       s.nav(page),
		"form":      formData{ViewID: page.ID},
		"viewID":    page.ID,
		"particles": !s.cfg.Particles.Disabled,
	})
}

func (s *site) requirePage() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := s.views.Get(c.Param("id"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusGone, gin.H{"error": "page view expired"})
			return
		}
		c.Set(pageKey, page)
		c.Next()
	}
}

func pageFrom(c *gin.Context) *view.Page {
	return c.MustGet(pageKey).(*view.Page)
}

type scrollReport struct {
	ScrollY  float64                     `json:"scroll_y"`
	Sections map[string]section.Geometry `json:"sections" binding:"required"`
}

func (s *site) handleScroll(c *gin.Context) {
	var report scrollReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	layout := make(section.Offsets, len(report.Sections))
	for name, g := range report.Sections {
		if id, ok := section.Parse(name); ok {
			layout[id] = g
		}
	}

	active := pageFrom(c).Report(report.ScrollY, layout)
	c.JSON(http.StatusOK, gin.H{"active": active})
}

func (s *site) handleNav(c *gin.Context) {
	page := pageFrom(c)
	id, ok := page.ScrollTo(c.Param("section"))
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	setTrigger(c, "scroll-to", id)
	c.HTML(http.StatusOK, "nav.html", s.nav(page))
}

func (s *site) handleMenu(c *gin.Context) {
	page := pageFrom(c)
	page.ToggleMenu()
	c.HTML(http.StatusOK, "nav.html", s.nav(page))
}

// handleOpen opens a replacement view for a tab whose view expired or
// was closed, e.g. after a back/forward cache restore.
func (s *site) handleOpen(c *gin.Context) {
	page := s.views.Open()
	c.JSON(http.StatusCreated, gin.H{"id": page.ID})
}

// Handle contact form submission with HTMX
func (s *site) handleContact(c *gin.Context) {
	triggers := gin.H{}
	page, ok := s.views.Get(c.Param("id"))
	if !ok {
		page = s.views.Open()
		triggers["view-renewed"] = page.ID
		zlog.Debug().Str("view", page.ID).Msg("Renewed expired view for contact submission")
	}

	var fields contact.Fields
	if err := c.ShouldBind(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// the dispatch outlives a closed tab; only the timeout ends it
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := page.Contact.Submit(ctx, fields)

	var verr *contact.ValidationError
	switch {
	case errors.Is(err, contact.ErrInFlight):
		c.Status(http.StatusConflict)
		return
	case errors.As(err, &verr):
		setTriggers(c, triggers)
		c.HTML(http.StatusUnprocessableEntity, "contact-form.html", formData{
			ViewID: page.ID,
			Fields: page.Contact.Fields(),
			Errors: verr.Fields,
		})
		return
	case err != nil:
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}

	s.recordSubmission(fields, res)

	triggers["toast"] = res.Notification
	setTriggers(c, triggers)
	c.HTML(http.StatusOK, "contact-form.html", formData{
		ViewID: page.ID,
		Fields: page.Contact.Fields(),
	})
}

func (s *site) recordSubmission(fields contact.Fields, res contact.Result) {
	sub := store.Submission{
		ID:          uuid.New().String(),
		HashedEmail: s.admin.hash(fields.Email),
		Relay:       s.relayName,
		Outcome:     res.Outcome.String(),
		Elapsed:     res.Elapsed,
		Timestamp:   time.Now(),
	}
	ev := zlog.Info()
	if res.Reason != nil {
		sub.Reason = res.Reason.Error()
		ev = zlog.Warn().Err(res.Reason)
	}
	ev.Str("outcome", sub.Outcome).Dur("elapsed", res.Elapsed).Msg("Contact form dispatched")

	if s.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.db.RecordSubmission(ctx, sub); err != nil {
		zlog.Error().Err(err).Msg("Error recording submission")
	}
}

func (s *site) handleEvents(c *gin.Context) {
	events, err := pageFrom(c).Events(c.Request.Context())
	if err != nil {
		c.AbortWithStatus(http.StatusGone)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(ev.Kind), ev.Data())
		return true
	})
}

func (s *site) handleClose(c *gin.Context) {
	s.views.Close(pageFrom(c).ID)
	c.Status(http.StatusNoContent)
}

func setTrigger(c *gin.Context, event string, detail any) {
	setTriggers(c, gin.H{event: detail})
}

func setTriggers(c *gin.Context, events gin.H) {
	if len(events) == 0 {
		return
	}
	b, err := json.Marshal(events)
	if err != nil {
		return
	}
	c.Header("HX-Trigger", string(b))
}
