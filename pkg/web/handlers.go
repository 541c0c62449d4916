// Package web provides HTTP handlers and REST API endpoints for flujo management
// and respondent completion.
package web

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/flujo/pkg/services"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	flujoService      *services.Flujo
	completionService *services.Completion
}

func NewAPIHandlers(flujoService *services.Flujo, completionService *services.Completion) *APIHandlers {
	return &APIHandlers{
		flujoService:      flujoService,
		completionService: completionService,
	}
}

func (h *APIHandlers) GetFlujos(c fiber.Ctx) error {
	page := 0

	if pageStr := c.Query("page"); pageStr != "" {
		var err error

		page, err = strconv.Atoi(pageStr)
		if err != nil {
			return badRequest(c, "Invalid page: "+err.Error())
		}
	}

	result, err := h.flujoService.List(c.Context(), page)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) CreateFlujo(c fiber.Ctx) error {
	var req services.CreateFlujoRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.flujoService.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created.Public())
}

// GetFlujo serves both the owner and the respondent read. Either way a
// flujo past its deadline is locked before it is returned.
func (h *APIHandlers) GetFlujo(c fiber.Ctx) error {
	flujo, err := h.flujoService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flujo.Public())
}

func (h *APIHandlers) UpdateFlujo(c fiber.Ctx) error {
	var req services.UpdateFlujoRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.flujoService.Update(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated.Public())
}

func (h *APIHandlers) DeleteFlujo(c fiber.Ctx) error {
	if err := h.flujoService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetStepData(c fiber.Ctx) error {
	kind, ok := stepKinds[c.Params("kind")]
	if !ok {
		return handleServiceError(c, services.NewValidationError("getStepData", services.CodeUnsupportedStepKind,
			"unsupported step kind "+strconv.Quote(c.Params("kind"))))
	}

	data, err := h.flujoService.GetStepData(c.Context(), c.Params("id"), kind)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(data)
}

func (h *APIHandlers) StartFlujo(c fiber.Ctx) error {
	var req StartFlujoRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	result, err := h.flujoService.Start(c.Context(), c.Params("id"), req.Passcode)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(StartFlujoResponse{
		Token:       result.Token,
		SecondsLeft: result.SecondsLeft,
		Flujo:       result.Flujo.Public(),
	})
}

func (h *APIHandlers) FinishFlujo(c fiber.Ctx) error {
	tok, err := requestToken(c)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.completionService.Finish(c.Context(), tok, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) SubmitFaceID(c fiber.Ctx) error {
	tok, err := requestToken(c)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	upload, err := h.completionService.SubmitFaceID(c.Context(), tok, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(upload)
}

func (h *APIHandlers) ConfirmFaceID(c fiber.Ctx) error {
	tok, err := requestToken(c)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	faceID, err := h.completionService.ConfirmFaceID(c.Context(), tok, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(faceID)
}

func (h *APIHandlers) SubmitContactInfo(c fiber.Ctx) error {
	var body ContactInfoBody
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	tok := bearerToken(c)
	if tok == "" {
		tok = body.value()
	}

	info, err := h.completionService.SubmitContactInfo(c.Context(), tok, c.Params("id"), body.ContactInfoRequest)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(info)
}

func (h *APIHandlers) SubmitSignature(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "A multipart \"file\" field is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "Unreadable file: "+err.Error())
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		return badRequest(c, "Unreadable file: "+err.Error())
	}

	tok := bearerToken(c)
	if tok == "" {
		tok = c.FormValue("token")
	}

	signature, err := h.completionService.SubmitSignature(c.Context(), tok, c.Params("id"), image,
		fileHeader.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(signature)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.flujoService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Flujo API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Flujo API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func bearerToken(c fiber.Ctx) string {
	tok, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok {
		return ""
	}

	return strings.TrimSpace(tok)
}

// requestToken reads the access token from the Authorization header, falling
// back to the JSON body.
func requestToken(c fiber.Ctx) (string, error) {
	if tok := bearerToken(c); tok != "" {
		return tok, nil
	}

	if len(c.Body()) == 0 {
		return "", nil
	}

	var body TokenBody
	if err := c.Bind().JSON(&body); err != nil {
		return "", err
	}

	return body.value(), nil
}
