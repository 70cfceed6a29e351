// Package admin manages the schema definitions that drive transfer:
// content types and components stored in the system tables.
package admin

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"rocket-transfer/internal/engine"
	"rocket-transfer/internal/schema"
	"rocket-transfer/internal/store"
)

type Handler struct {
	store    *store.Store
	registry *schema.Registry
}

func NewHandler(s *store.Store, reg *schema.Registry) *Handler {
	return &Handler{store: s, registry: reg}
}

func RegisterRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	admin := app.Group("/api/_admin", middleware...)

	admin.Get("/schemas", h.ListSchemas)
	admin.Get("/schemas/:uid", h.GetSchema)
	admin.Put("/schemas/:uid", h.UpsertSchema)
	admin.Delete("/schemas/:uid", h.DeleteSchema)
}

func (h *Handler) ListSchemas(c *fiber.Ctx) error {
	out := h.registry.AllContentTypes()
	if out == nil {
		out = []*schema.Schema{}
	}
	return c.JSON(fiber.Map{"data": out})
}

func (h *Handler) GetSchema(c *fiber.Ctx) error {
	uid := c.Params("uid")
	s := h.registry.GetModel(uid)
	if s == nil {
		return engine.UnknownContentTypeError(uid)
	}
	return c.JSON(fiber.Map{"data": s})
}

// UpsertSchema stores a definition and reloads the registry. Components go
// to _components, everything else to _content_types.
func (h *Handler) UpsertSchema(c *fiber.Ctx) error {
	uid := c.Params("uid")

	var s schema.Schema
	if err := c.BodyParser(&s); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	s.UID = uid

	if err := validateSchema(&s); err != nil {
		return engine.NewAppError("VALIDATION_FAILED", 422, err.Error())
	}

	defJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	table := "_content_types"
	if s.IsComponent() {
		table = "_components"
	}

	ctx := c.Context()
	pb := h.store.Dialect.NewParamBuilder()
	if _, err := store.Exec(ctx, h.store.DB,
		fmt.Sprintf("DELETE FROM %s WHERE uid = %s", table, pb.Add(uid)), pb.Params()...); err != nil {
		return fmt.Errorf("replace schema %s: %w", uid, err)
	}
	pb = h.store.Dialect.NewParamBuilder()
	if _, err := store.Exec(ctx, h.store.DB,
		fmt.Sprintf("INSERT INTO %s (uid, definition) VALUES (%s, %s)", table, pb.Add(uid), pb.Add(string(defJSON))),
		pb.Params()...); err != nil {
		return fmt.Errorf("insert schema %s: %w", uid, err)
	}

	if err := schema.LoadAll(ctx, h.store.DB, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}

	return c.JSON(fiber.Map{"data": s})
}

func (h *Handler) DeleteSchema(c *fiber.Ctx) error {
	uid := c.Params("uid")
	s := h.registry.GetModel(uid)
	if s == nil {
		return engine.UnknownContentTypeError(uid)
	}

	table := "_content_types"
	if s.IsComponent() {
		table = "_components"
	}

	ctx := c.Context()
	pb := h.store.Dialect.NewParamBuilder()
	if _, err := store.Exec(ctx, h.store.DB,
		fmt.Sprintf("DELETE FROM %s WHERE uid = %s", table, pb.Add(uid)), pb.Params()...); err != nil {
		return fmt.Errorf("delete schema %s: %w", uid, err)
	}
	if err := schema.LoadAll(ctx, h.store.DB, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}
	return c.JSON(fiber.Map{"message": "deleted"})
}

func validateSchema(s *schema.Schema) error {
	if s.UID == "" {
		return fmt.Errorf("uid is required")
	}
	switch s.Kind {
	case schema.KindCollection, schema.KindSingle, schema.KindComponentType:
	default:
		return fmt.Errorf("unknown schema kind %q", s.Kind)
	}
	for _, attr := range s.Attributes {
		if attr.Name == "" {
			return fmt.Errorf("attribute without a name")
		}
		switch attr.Kind {
		case schema.KindScalar, schema.KindRelation, schema.KindComponent, schema.KindDynamicZone, schema.KindMedia:
		default:
			return fmt.Errorf("attribute %s has unknown kind %q", attr.Name, attr.Kind)
		}
		if attr.Kind == schema.KindRelation && attr.Target == "" {
			return fmt.Errorf("relation %s needs a target", attr.Name)
		}
		if attr.Kind == schema.KindComponent && attr.Component == "" {
			return fmt.Errorf("component %s needs a component uid", attr.Name)
		}
	}
	if !s.IsComponent() {
		if err := engine.ValidateIdentifierField(s); err != nil {
			return err
		}
	}
	return nil
}
