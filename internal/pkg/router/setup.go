package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Vahana/app/controllers"
)

// Router registers a set of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, svc *controllers.Services) {
	// The HttpRouter carries the operational endpoints and must stay outside
	// the rate limiter the ApiRouter installs.
	setup(app, NewHttpRouter(), NewApiRouter(svc))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
