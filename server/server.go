package server

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"headlines/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

//go:embed views
var views embed.FS

const (
	layout       = "layouts/main"
	notFoundText = "404 page not found 💩"
)

// Ingester produces the feed page content. feeds.Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, sources []models.Source, limit int) (map[string]models.FeedMetadata, []models.Entry, error)
}

type ServerConfig struct {
	// Runs one ingestion per feed page request
	Ingester Ingester

	// Sources passed to every ingestion run
	Sources []models.Source

	// Number of entries shown on the feed page
	Limit int

	// Placeholder content of the home page
	Home models.HomeMessage
}

type handlers struct {
	config *ServerConfig

	// Runs share one entry log, so only one may be in flight
	mu sync.Mutex
}

// Returns a fiber.App instance serving the home page and the feed page
func Server(config *ServerConfig) *fiber.App {
	h := &handlers{config: config}

	app := fiber.New(fiber.Config{
		Views:                 viewEngine(),
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		// Errors are handled here so the logged status is the one sent
		if err := c.Next(); err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return nil
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Get("/", h.index)
	app.Get("/feed", h.feedPage)
	app.Get("/feed.json", h.feedJSON)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "OK"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Anything else is not found
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).SendString(notFoundText)
	})

	return app
}

func viewEngine() *html.Engine {
	sub, err := fs.Sub(views, "views")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("date", formatDate)
	return engine
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "undated"
	}
	return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
}

func (h *handlers) index(c *fiber.Ctx) error {
	return c.Render("index", fiber.Map{
		"Title":   h.config.Home.Title,
		"Message": h.config.Home,
	}, layout)
}

func (h *handlers) load(ctx context.Context) (map[string]models.FeedMetadata, []models.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.config.Ingester.Ingest(ctx, h.config.Sources, h.config.Limit)
}

func (h *handlers) feedPage(c *fiber.Ctx) error {
	feeds, entries, err := h.load(c.UserContext())
	if err != nil {
		return err
	}

	return c.Render("feed", fiber.Map{
		"Title":   "Feed",
		"Feeds":   feeds,
		"Entries": entries,
	}, layout)
}

func (h *handlers) feedJSON(c *fiber.Ctx) error {
	feeds, entries, err := h.load(c.UserContext())
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []models.Entry{}
	}

	return c.JSON(models.FeedPage{
		Feeds:   feeds,
		Entries: entries,
	})
}

// errorHandler turns any failure, including a failed ingestion run, into a
// generic error page. The cause is only logged.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	if code == fiber.StatusNotFound {
		return c.Status(code).SendString(notFoundText)
	}

	log.WithFields(log.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"status": code,
		"error":  err,
	}).Error("Request failed")

	c.Status(code)
	if renderErr := c.Render("error", fiber.Map{
		"Title":   http.StatusText(code),
		"Status":  code,
		"Message": http.StatusText(code),
	}, layout); renderErr != nil {
		return c.SendString(http.StatusText(code))
	}
	return nil
}
