// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"time"

	_ "huddle/docs" // swagger docs
	"huddle/internal/bootstrap"
	"huddle/internal/config"
	"huddle/internal/featureflags"
	"huddle/internal/middleware"
	"huddle/internal/models"
	"huddle/internal/notifications"
	"huddle/internal/repository"
	"huddle/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const defaultAllowedOrigins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	limiter        *middleware.RateLimiter
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	store          *repository.Store
	hub            *notifications.Hub
	publisher      *notifications.Publisher
	dispatcher     *notifications.Dispatcher
	featureFlags   *featureflags.Manager

	authService         *service.AuthService
	userService         *service.UserService
	friendService       *service.FriendService
	groupService        *service.GroupService
	eventService        *service.EventService
	notificationService *service.NotificationService
	postService         *service.PostService
	attachmentService   *service.AttachmentService
}

// NewServer creates a server on top of an initialized runtime.
func NewServer(cfg *config.Config, rt *bootstrap.Runtime) *Server {
	s := &Server{
		config:         cfg,
		db:             rt.DB,
		redis:          rt.Redis,
		limiter:        middleware.NewRateLimiter(rt.Redis, cfg.Env),
		promMiddleware: middleware.InitMetrics("huddle-api"),
		store:          rt.Store,
		hub:            rt.Hub,
		publisher:      rt.Publisher,
		dispatcher:     rt.Dispatcher,
		featureFlags:   rt.Flags,
	}

	s.authService = service.NewAuthService(rt.Store.Users, rt.Redis, service.AuthConfig{
		JWTSecret:         cfg.JWTSecret,
		RequireActivation: cfg.RequireActivation,
	})
	s.userService = service.NewUserService(rt.Store)
	s.friendService = service.NewFriendService(rt.Store, rt.Dispatcher)
	s.groupService = service.NewGroupService(rt.Store, rt.Dispatcher)
	s.eventService = service.NewEventService(rt.Store, rt.Dispatcher)
	s.notificationService = service.NewNotificationService(rt.Store, rt.Dispatcher, rt.Publisher)
	s.postService = service.NewPostService(rt.Store)
	s.attachmentService = service.NewAttachmentService(rt.Store.Attachments, cfg)

	models.HideInternalDetails = cfg.IsProduction()
	return s
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:   "Huddle API",
		BodyLimit: (s.config.AttachmentMaxUploadMB + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, err)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultAllowedOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewRateLimitedError())
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", s.limiter.Handler(middleware.RateRule{Name: "signup", Limit: 3, Window: 10 * time.Minute, FailClosed: true}), s.Signup)
	auth.Post("/login", s.limiter.Handler(middleware.RateRule{Name: "login", Limit: 10, Window: 5 * time.Minute, FailClosed: true}), s.Login)
	auth.Post("/activate", s.limiter.Handler(middleware.RateRule{Name: "activate", Limit: 10, Window: 5 * time.Minute}), s.Activate)

	protected := api.Group("", s.AuthRequired())
	protected.Post("/auth/logout", s.Logout)
	protected.Post("/ws/ticket", s.IssueWSTicket)
	protected.Get("/ws", s.NotificationsWebSocket())

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Put("/me/password", s.limiter.Handler(middleware.RateRule{Name: "change_password", Limit: 5, Window: 10 * time.Minute}), s.ChangePassword)
	users.Get("/search", s.limiter.Handler(middleware.RateRule{Name: "user_search", Limit: 30, Window: time.Minute}), s.SearchUsers)
	users.Get("/blocked", s.GetBlockedUsers)
	users.Post("/:id/block", s.BlockUser)
	users.Delete("/:id/block", s.UnblockUser)
	users.Get("/:id", s.GetUserProfile)

	devices := protected.Group("/devices")
	devices.Post("/", s.RegisterDevice)
	devices.Delete("/:token", s.UnregisterDevice)

	friends := protected.Group("/friends")
	friends.Get("/", s.GetFriends)
	friends.Get("/requests", s.GetPendingRequests)
	friends.Get("/requests/sent", s.GetSentRequests)
	friends.Post("/requests/:userId", s.limiter.Handler(middleware.RateRule{Name: "friend_request", Limit: 20, Window: 5 * time.Minute}), s.SendFriendRequest)
	friends.Put("/requests/:requestId/status", s.UpdateFriendRequestStatus)
	friends.Delete("/requests/:requestId", s.WithdrawFriendRequest)
	friends.Get("/status/:userId", s.GetFriendshipStatus)
	friends.Get("/mutual/:userId", s.GetMutualFriends)
	friends.Get("/mutual/:userId/groups", s.GetMutualGroups)
	friends.Get("/mutual/:userId/events", s.GetMutualEvents)
	friends.Delete("/:userId", s.RemoveFriend)

	groups := protected.Group("/groups")
	groups.Get("/", s.GetGroups)
	groups.Post("/", s.limiter.Handler(middleware.RateRule{Name: "create_group", Limit: 10, Window: time.Hour}), s.CreateGroup)
	groups.Get("/invites/me", s.GetMyGroupInvites)
	groups.Get("/:id", s.GetGroup)
	groups.Put("/:id", s.UpdateGroup)
	groups.Delete("/:id", s.DeleteGroup)
	groups.Post("/:id/join", s.JoinGroup)
	groups.Post("/:id/leave", s.LeaveGroup)
	groups.Post("/:id/invites", s.InviteToGroup)
	groups.Post("/:id/invites/respond", s.RespondToGroupInvite)
	groups.Post("/:id/requests/:userId/approve", s.ApproveGroupRequest)
	groups.Post("/:id/requests/:userId/deny", s.DenyGroupRequest)
	groups.Get("/:id/members", s.GetGroupMembers)

	events := protected.Group("/events")
	events.Get("/", s.GetEvents)
	events.Post("/", s.limiter.Handler(middleware.RateRule{Name: "create_event", Limit: 20, Window: time.Hour}), s.CreateEvent)
	events.Get("/invites/me", s.GetMyEventInvites)
	events.Get("/:id", s.GetEvent)
	events.Put("/:id", s.UpdateEvent)
	events.Delete("/:id", s.DeleteEvent)
	events.Post("/:id/join", s.JoinEvent)
	events.Post("/:id/leave", s.LeaveEvent)
	events.Post("/:id/invites", s.InviteToEvent)
	events.Post("/:id/invites/respond", s.RespondToEventInvite)
	events.Post("/:id/requests/:userId/approve", s.ApproveEventRequest)
	events.Post("/:id/requests/:userId/deny", s.DenyEventRequest)
	events.Get("/:id/participants", s.GetEventParticipants)
	events.Get("/:id/members", s.GetEventParticipants)

	notifs := protected.Group("/notifications")
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/unread-count", s.GetUnreadCount)
	notifs.Post("/read-all", s.MarkAllNotificationsRead)
	notifs.Post("/:id/read", s.MarkNotificationRead)
	notifs.Delete("/:id", s.DeleteNotification)

	posts := protected.Group("/posts")
	posts.Post("/", s.limiter.Handler(middleware.RateRule{Name: "create_post", Limit: 10, Window: time.Minute}), s.CreatePost)
	posts.Get("/feed", s.GetFeed)
	posts.Delete("/:id", s.DeletePost)

	attachments := protected.Group("/attachments")
	attachments.Post("/", s.limiter.Handler(middleware.RateRule{Name: "upload", Limit: 20, Window: time.Minute}), s.UploadAttachment)
	attachments.Get("/:id", s.GetAttachment)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/monitor", monitor.New(monitor.Config{Title: "Huddle API Monitor"}))
	admin.Post("/notifications/broadcast", s.BroadcastAnnouncement)
	admin.Post("/notifications/users", s.SendAnnouncementToUsers)
	admin.Post("/users/:id/promote-admin", s.PromoteToAdmin)
	admin.Post("/users/:id/demote-admin", s.DemoteFromAdmin)
	admin.Post("/users/:id/block", s.AdminBlockUser)
	admin.Delete("/users/:id/block", s.AdminUnblockUser)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it the API still serves, only uncached and single-instance.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus == "unhealthy" {
		overallStatus = "degraded"
	}

	checks := fiber.Map{
		"database": dbStatus,
		"redis":    redisStatus,
	}
	if s.dispatcher != nil {
		checks["push_queue_depth"] = s.dispatcher.QueueDepth()
	}
	if s.hub != nil {
		checks["websocket_connections"] = s.hub.ConnectionCount()
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": checks,
		"time":   time.Now(),
	})
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return middleware.AuthRequired(s.config.JWTSecret, s.redis)
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.userService.GetMe(c.UserContext(), currentUserID(c))
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and waits for in-flight ones. The runtime owns
// the connections and is shut down separately.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app == nil {
		return nil
	}
	return s.app.ShutdownWithContext(ctx)
}
