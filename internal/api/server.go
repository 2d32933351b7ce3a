package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/auth"
	"github.com/yourorg/pairchat/internal/config"
	"github.com/yourorg/pairchat/internal/hub"
	"github.com/yourorg/pairchat/internal/media"
	"github.com/yourorg/pairchat/internal/metrics"
	"github.com/yourorg/pairchat/internal/presence"
	"github.com/yourorg/pairchat/internal/repository"
	"github.com/yourorg/pairchat/internal/storage"
	"github.com/yourorg/pairchat/internal/ws"
)

type Server struct {
	cfg      *config.Config
	verifier *auth.Verifier
	repos    *repository.Repositories
	gate     *media.Gate
	blobs    *storage.S3Store
	hub      *hub.Hub
	sweeper  *presence.Sweeper
	log      *zap.SugaredLogger
}

func New(cfg *config.Config, verifier *auth.Verifier, repos *repository.Repositories, gate *media.Gate, blobs *storage.S3Store, h *hub.Hub, sweeper *presence.Sweeper, wsHandler *ws.Handler, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.Media.MaxUploadBytes),
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{
		cfg:      cfg,
		verifier: verifier,
		repos:    repos,
		gate:     gate,
		blobs:    blobs,
		hub:      h,
		sweeper:  sweeper,
		log:      log,
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.Handle))

	rl := newRateLimiter(20, 40)
	apiGroup := app.Group("/api", rl.middleware, s.requireAuth)

	conv := apiGroup.Group("/conversations")
	conv.Get("/", s.listConversations)
	conv.Post("/start", s.startConversation)
	conv.Get("/:id", s.getConversation)
	conv.Post("/:id/read", s.markConversationRead)

	med := apiGroup.Group("/media")
	med.Post("/check-duplicate/:conversationId", s.checkDuplicate)
	med.Post("/upload-url/:conversationId", s.reserveUploadSlot)
	med.Post("/create-duplicate-media/:conversationId", s.attachDuplicate)
	med.Post("/confirm-upload", s.confirmUpload)
	med.Get("/download-url/:key", s.downloadURL)
	med.Post("/upload", s.directUpload)
	med.Delete("/:mediaId", s.cancelUpload)

	admin := app.Group("/admin", rl.middleware, s.requireAuth)
	admin.Post("/presence/sweep", s.forceSweep)

	return app
}

// forceSweep is the operational trigger for an immediate full presence
// reconciliation.
func (s *Server) forceSweep(c *fiber.Ctx) error {
	res := s.sweeper.Reconcile(c.Context())
	return c.JSON(res)
}
