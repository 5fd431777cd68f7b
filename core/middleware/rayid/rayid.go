package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// HeaderName is the response header carrying the ray ID.
	HeaderName = "X-Ray-ID"
	// LocalsKey is the fiber locals key holding the ray ID.
	LocalsKey = "ray_id"
)

// New returns a middleware that tags every request with a ray ID. An incoming
// X-Ray-ID header is kept so callers can correlate across services.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(HeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(LocalsKey, id)
		c.Set(HeaderName, id)
		return c.Next()
	}
}
