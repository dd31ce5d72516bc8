package http

import (
	"embed"
	"io/fs"
	stdhttp "net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk/internal/observability"
)

//go:embed views
var viewsFS embed.FS

// ServerOptions configures the Fiber application.
type ServerOptions struct {
	AppName        string
	RequestTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
}

// NewViews returns the HTML engine over the embedded templates.
func NewViews() *html.Engine {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(stdhttp.FS(sub), ".html")
	engine.AddFunc("deref", func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	})
	engine.AddFunc("fmtTime", func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04")
	})
	return engine
}

// NewApp builds the Fiber app with views, middlewares and routes.
func NewApp(opts ServerOptions, routes RouteConfig) *fiber.App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               opts.AppName,
		Views:                 NewViews(),
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, opts.Metrics, opts.RequestTimeout)
	RegisterRoutes(app, routes)
	return app
}
