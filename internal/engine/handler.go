package engine

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"rocket-transfer/internal/portable"
)

// Handler exposes export and import over HTTP.
type Handler struct {
	exporter *Exporter
	importer *Importer
	defaults ImportOptions
}

func NewHandler(exporter *Exporter, importer *Importer, defaults ImportOptions) *Handler {
	return &Handler{exporter: exporter, importer: importer, defaults: defaults}
}

func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	api := app.Group("/api/transfer", middleware...)
	api.Post("/export", h.Export)
	api.Post("/import", h.Import)
}

// Export builds a portable document and returns it verbatim, tab-indented.
// The request body is decoded over the defaults, so an omitted
// exportAllLocales stays true.
func (h *Handler) Export(c *fiber.Ctx) error {
	opts := DefaultExportOptions()
	if err := c.BodyParser(&opts); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "invalid export request: "+err.Error())
	}
	if len(opts.ContentTypes) == 0 {
		return NewAppError("INVALID_PAYLOAD", 400, "contentTypes is required")
	}

	doc, err := h.exporter.Export(c.UserContext(), opts)
	if err != nil {
		return err
	}
	out, err := portable.Serialize(doc)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(out)
}

type importRequest struct {
	Data    json.RawMessage `json:"data"`
	Options json.RawMessage `json:"options"`
}

// Import applies a portable document. Pre-flight issues come back as 422,
// a concurrent run as 409; field failures ride in a 200 result.
func (h *Handler) Import(c *fiber.Ctx) error {
	var req importRequest
	if err := c.BodyParser(&req); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "invalid import request: "+err.Error())
	}
	if len(req.Data) == 0 {
		return NewAppError("INVALID_PAYLOAD", 400, "data is required")
	}

	doc, err := portable.Parse(req.Data)
	if err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, err.Error())
	}

	// Decoding over a copy of the defaults keeps unspecified options at
	// their default values.
	opts := h.defaults
	if len(req.Options) > 0 {
		if err := json.Unmarshal(req.Options, &opts); err != nil {
			return NewAppError("INVALID_PAYLOAD", 400, "invalid import options: "+err.Error())
		}
		if opts.ExistingAction == "" {
			opts.ExistingAction = h.defaults.ExistingAction
		}
	}

	result, err := h.importer.Import(c.UserContext(), doc, opts)
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}
	return c.JSON(result)
}
