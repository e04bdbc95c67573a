package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"capsule-server/internal/auth"
	"capsule-server/internal/dispatch"
	"capsule-server/internal/handler"
	"capsule-server/internal/middleware"
	"capsule-server/internal/presence"
	"capsule-server/internal/registry"
	"capsule-server/internal/store"
)

// Deps carries the explicitly constructed collaborators. The registry and
// dispatcher are built once at startup and injected, never reached through
// package globals.
type Deps struct {
	Store       *store.Store
	TokenConfig auth.TokenConfig
	Registry    *registry.Registry
	Dispatcher  *dispatch.Dispatcher
	Presence    presence.Store
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	versionHandler := &handler.VersionHandler{}
	r.GET("/version", versionHandler.Get)

	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	authHandler := &handler.AuthHandler{Store: deps.Store, TokenConfig: deps.TokenConfig, Limiter: authLimiter}
	r.POST("/v1/auth/register", authHandler.Register)
	r.POST("/v1/auth/login", authHandler.Login)

	protected := r.Group("/v1")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))

	protected.GET("/auth/me", authHandler.Me)

	usersHandler := &handler.UsersHandler{Store: deps.Store, Presence: deps.Presence}
	protected.GET("/users/search", usersHandler.Search)
	protected.GET("/users/:id", usersHandler.Get)

	friendsHandler := &handler.FriendsHandler{Store: deps.Store, Dispatcher: deps.Dispatcher, Presence: deps.Presence}
	protected.POST("/friends/request", friendsHandler.Request)
	protected.POST("/friends/respond/:id", friendsHandler.Respond)
	protected.GET("/friends", friendsHandler.List)
	protected.GET("/friends/requests", friendsHandler.Requests)

	chatHandler := &handler.ChatHandler{Store: deps.Store, Dispatcher: deps.Dispatcher, Registry: deps.Registry}
	protected.POST("/chat/messages", chatHandler.SendMessage)
	protected.GET("/chat/conversations", chatHandler.Conversations)
	protected.GET("/chat/conversations/:id/messages", chatHandler.Messages)
	protected.POST("/chat/conversations/:id/read", chatHandler.MarkRead)
	protected.GET("/chat/online-users", chatHandler.OnlineUsers)

	capsulesHandler := &handler.CapsulesHandler{Store: deps.Store, Dispatcher: deps.Dispatcher}
	protected.POST("/capsules", capsulesHandler.Create)
	protected.GET("/capsules", capsulesHandler.List)
	protected.GET("/capsules/unlockable", capsulesHandler.Unlockable)
	protected.GET("/capsules/shared", capsulesHandler.Shared)
	protected.GET("/capsules/:id", capsulesHandler.Get)
	protected.PUT("/capsules/:id", capsulesHandler.Update)
	protected.DELETE("/capsules/:id", capsulesHandler.Delete)
	protected.POST("/capsules/:id/share", capsulesHandler.Share)
	protected.GET("/capsules/:id/access", capsulesHandler.Access)
	protected.DELETE("/capsules/:id/share/:userId", capsulesHandler.Revoke)

	notificationsHandler := &handler.NotificationsHandler{Store: deps.Store}
	protected.GET("/notifications", notificationsHandler.List)
	protected.POST("/notifications/:id/read", notificationsHandler.MarkRead)

	accountHandler := &handler.AccountHandler{Store: deps.Store}
	protected.GET("/account/settings", accountHandler.Settings)
	protected.PUT("/account/settings", accountHandler.UpdateSettings)

	wsHandler := &handler.WebSocketHandler{
		Registry:    deps.Registry,
		Dispatcher:  deps.Dispatcher,
		Store:       deps.Store,
		TokenConfig: deps.TokenConfig,
	}
	r.GET("/ws", wsHandler.Serve)

	return r
}
