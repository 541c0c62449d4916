package web

import "github.com/gofiber/fiber/v3"

// RegisterRoutes mounts the owner API under /flujos and the respondent API
// under /completion.
func (h *APIHandlers) RegisterRoutes(router fiber.Router) {
	f := router.Group("/flujos")
	f.Get("/", h.GetFlujos)
	f.Post("/", h.CreateFlujo)
	f.Get("/:id", h.GetFlujo)
	f.Patch("/:id", h.UpdateFlujo)
	f.Delete("/:id", h.DeleteFlujo)
	f.Get("/:id/steps/:kind", h.GetStepData)

	c := router.Group("/completion")
	c.Get("/:id", h.GetFlujo)
	c.Post("/:id/start", h.StartFlujo)
	c.Post("/:id/finish", h.FinishFlujo)
	c.Put("/:id/faceid", h.SubmitFaceID)
	c.Post("/:id/faceid/confirm", h.ConfirmFaceID)
	c.Put("/:id/contact-info", h.SubmitContactInfo)
	c.Put("/:id/signature", h.SubmitSignature)

	router.Get("/health", h.HealthCheck)
}
