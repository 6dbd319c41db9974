package server

import (
	"errors"
	"strings"
	"unicode"

	"huddle/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten means a helper already wrote the error response. Handlers
// return nil on it so the app ErrorHandler leaves the response alone.
var errResponseWritten = errors.New("response already written")

var (
	errCannotDemoteSelf = models.NewValidationError("You cannot remove your own admin rights")
	errCannotBlockSelf  = models.NewValidationError("You cannot suspend your own account")
)

const (
	defaultPageSize    = 20
	maxPaginationLimit = 100
)

// Pagination is a clamped limit/offset window.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads ?limit= and ?offset=. A non-positive limit falls back to
// defaultLimit and no limit exceeds maxPaginationLimit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	return Pagination{
		Limit:  min(limit, maxPaginationLimit),
		Offset: max(c.QueryInt("offset", 0), 0),
	}
}

// parseID reads a positive integer route param. On failure it writes 400 with
// a message naming the param ("Invalid user ID" for userId) and returns
// errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	if id, err := c.ParamsInt(param); err == nil && id > 0 {
		return uint(id), nil
	}
	_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid "+humanizeParam(param)))
	return 0, errResponseWritten
}

// parseBody decodes the request body into dst or writes 400.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// humanizeParam turns "id" into "ID" and "friendRequestId" into "friend request ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	stem, ok := strings.CutSuffix(param, "Id")
	if !ok {
		return param
	}
	var b strings.Builder
	for i, r := range stem {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String() + " ID"
}

func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// fail writes err with the status its code maps to.
func fail(c *fiber.Ctx, err error) error {
	return models.RespondWithAppError(c, err)
}

func respondOK(c *fiber.Ctx, message string, data interface{}) error {
	return models.Respond(c, fiber.StatusOK, message, data)
}

func respondCreated(c *fiber.Ctx, message string, data interface{}) error {
	return models.Respond(c, fiber.StatusCreated, message, data)
}

// paged wraps a list with the window it was fetched with.
func paged(items interface{}, p Pagination) fiber.Map {
	return fiber.Map{"items": items, "limit": p.Limit, "offset": p.Offset}
}
