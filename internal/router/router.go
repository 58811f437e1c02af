package router

import (
	"net/http"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/taskflow/backend/api/handler"
	"github.com/taskflow/backend/api/transport"
)

type Handlers struct {
	Auth     *apiHandler.AuthHandler
	Project  *apiHandler.ProjectHandler
	Task     *apiHandler.TaskHandler
	Comment  *apiHandler.CommentHandler
	Team     *apiHandler.TeamHandler
	Realtime *apiHandler.RealtimeHandler
	Function *apiHandler.FunctionHandler
	Health   *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler, logger *zap.Logger) *router.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := router.New()
	r.PanicHandler = func(ctx *fasthttp.RequestCtx, v interface{}) {
		logger.Error("handler panic",
			zap.String("method", string(ctx.Method())),
			zap.String("path", string(ctx.Path())),
			zap.Any("panic", v))
		ctx.Response.Header.SetContentType("application/json")
		ctx.SetStatusCode(http.StatusInternalServerError)
		ctx.SetBody(transport.NewError("INTERNAL", "internal error", nil).Bytes())
	}

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/register", handlers.Auth.Register)
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/refresh", authMiddleware(handlers.Auth.Refresh))
	r.POST("/api/v1/auth/logout", authMiddleware(handlers.Auth.Logout))
	r.DELETE("/api/v1/auth/sessions", authMiddleware(handlers.Auth.LogoutAll))
	r.GET("/api/v1/account", authMiddleware(handlers.Auth.Account))

	// Webhook, guarded by its own signature
	r.POST("/api/v1/functions/notify-events", handlers.Function.NotifyEvents)

	// Protected routes
	r.GET("/api/v1/projects", authMiddleware(handlers.Project.List))
	r.POST("/api/v1/projects", authMiddleware(handlers.Project.Create))
	r.GET("/api/v1/projects/{id}", authMiddleware(handlers.Project.Get))
	r.PUT("/api/v1/projects/{id}", authMiddleware(handlers.Project.Update))
	r.DELETE("/api/v1/projects/{id}", authMiddleware(handlers.Project.Delete))
	r.GET("/api/v1/projects/{id}/tasks", authMiddleware(handlers.Task.ListByProject))

	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.Create))
	r.GET("/api/v1/tasks/{id}", authMiddleware(handlers.Task.Get))
	r.PATCH("/api/v1/tasks/{id}", authMiddleware(handlers.Task.Update))
	r.PATCH("/api/v1/tasks/{id}/status", authMiddleware(handlers.Task.Move))
	r.DELETE("/api/v1/tasks/{id}", authMiddleware(handlers.Task.Delete))

	r.GET("/api/v1/comments", authMiddleware(handlers.Comment.List))
	r.POST("/api/v1/comments", authMiddleware(handlers.Comment.Create))
	r.PATCH("/api/v1/comments/{id}", authMiddleware(handlers.Comment.Update))
	r.DELETE("/api/v1/comments/{id}", authMiddleware(handlers.Comment.Delete))

	r.GET("/api/v1/teams", authMiddleware(handlers.Team.List))
	r.POST("/api/v1/teams", authMiddleware(handlers.Team.Create))
	r.GET("/api/v1/teams/{id}/memberships", authMiddleware(handlers.Team.Members))
	r.POST("/api/v1/teams/{id}/memberships", authMiddleware(handlers.Team.Invite))
	r.PATCH("/api/v1/teams/{id}/memberships/{membershipId}", authMiddleware(handlers.Team.UpdateRole))
	r.DELETE("/api/v1/teams/{id}/memberships/{membershipId}", authMiddleware(handlers.Team.Remove))

	r.GET("/api/v1/realtime", authMiddleware(handlers.Realtime.Stream))

	return r
}
