package auth

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"rocket-transfer/internal/engine"
	"rocket-transfer/internal/store"
)

// Handler handles authentication endpoints.
type Handler struct {
	store     *store.Store
	jwtSecret string
}

func NewHandler(s *store.Store, jwtSecret string) *Handler {
	return &Handler{store: s, jwtSecret: jwtSecret}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	pb := h.store.Dialect.NewParamBuilder()
	user, err := store.QueryRow(c.Context(), h.store.DB,
		"SELECT id, email, password_hash, roles FROM _users WHERE email = "+pb.Add(body.Email),
		pb.Params()...)
	if err != nil {
		return engine.UnauthorizedError("Invalid email or password")
	}

	passwordHash, _ := user["password_hash"].(string)
	if !CheckPassword(body.Password, passwordHash) {
		return engine.UnauthorizedError("Invalid email or password")
	}

	userID, _ := user["id"].(string)
	token, err := GenerateAccessToken(userID, extractRoles(user["roles"]), h.jwtSecret)
	if err != nil {
		return engine.NewAppError("INTERNAL_ERROR", 500, "Failed to generate access token")
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"access_token": token}})
}

// RegisterRoutes registers auth routes on the given Fiber app.
func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Post("/api/auth/login", h.Login)
}

// extractRoles decodes the roles column, which arrives either as a JSON
// string from the database or as an already-decoded array.
func extractRoles(v any) []string {
	switch roles := v.(type) {
	case string:
		var out []string
		if err := json.Unmarshal([]byte(roles), &out); err != nil {
			return []string{}
		}
		return out
	case []string:
		return roles
	case []any:
		out := make([]string, 0, len(roles))
		for _, r := range roles {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}
