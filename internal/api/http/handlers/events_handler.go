package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/event-service/internal/api/dto"
	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/service"
	apperrors "github.com/spec-kit/event-service/pkg/util/errorutil"
)

// EventsHandler manages event endpoints.
type EventsHandler struct {
	events     *service.EventService
	membership *service.MembershipService
}

// NewEventsHandler constructs handler.
func NewEventsHandler(eventService *service.EventService, membershipService *service.MembershipService) *EventsHandler {
	return &EventsHandler{events: eventService, membership: membershipService}
}

// Create POST /events.
func (h *EventsHandler) Create(c *fiber.Ctx) error {
	principal, err := requireUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	event, err := h.events.Create(c.UserContext(), principal.UserID(), req.ToInput())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewEventResponse(event, principalDirectory(principal))})
}

// Mine GET /events/mine.
func (h *EventsHandler) Mine(c *fiber.Ctx) error {
	principal, err := requireUser(c)
	if err != nil {
		return err
	}
	events, err := h.events.ListMine(c.UserContext(), principal.UserID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEventResponses(events, h.events.CreatorsOf(c.UserContext(), events))})
}

// Upcoming GET /events/upcoming.
func (h *EventsHandler) Upcoming(c *fiber.Ctx) error {
	events, err := h.events.Upcoming(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEventResponses(events, h.events.CreatorsOf(c.UserContext(), events))})
}

// Past GET /events/past.
func (h *EventsHandler) Past(c *fiber.Ctx) error {
	events, err := h.events.Past(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEventResponses(events, h.events.CreatorsOf(c.UserContext(), events))})
}

// Filter POST /events/filter.
func (h *EventsHandler) Filter(c *fiber.Ctx) error {
	var req dto.FilterEventsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	events, err := h.events.Filter(c.UserContext(), req.ToInput())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEventResponses(events, h.events.CreatorsOf(c.UserContext(), events))})
}

// Get GET /events/:id.
func (h *EventsHandler) Get(c *fiber.Ctx) error {
	event, users, err := h.events.GetDetails(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEventDetailResponse(event, users)})
}

// Update PUT /events/:id.
func (h *EventsHandler) Update(c *fiber.Ctx) error {
	principal, err := requireUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	event, err := h.events.Update(c.UserContext(), principal.UserID(), c.Params("id"), req.ToInput())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEventResponse(event, principalDirectory(principal))})
}

// Delete DELETE /events/:id.
func (h *EventsHandler) Delete(c *fiber.Ctx) error {
	principal, err := requireUser(c)
	if err != nil {
		return err
	}
	if err := h.events.Delete(c.UserContext(), principal.UserID(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "event deleted successfully"}})
}

// Join POST /events/:id/join.
func (h *EventsHandler) Join(c *fiber.Ctx) error {
	return h.applyMembership(c, domain.IntentJoin)
}

// Leave POST /events/:id/leave.
func (h *EventsHandler) Leave(c *fiber.Ctx) error {
	return h.applyMembership(c, domain.IntentLeave)
}

func (h *EventsHandler) applyMembership(c *fiber.Ctx, intent domain.Intent) error {
	principal, err := requireUser(c)
	if err != nil {
		return err
	}
	result, err := h.membership.Apply(c.UserContext(),
		domain.NewIdentifier(c.Params("id")),
		domain.NewIdentifier(principal.UserID()),
		intent)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMembershipResponse(result)})
}

// principalDirectory resolves the caller, who is the creator of anything
// they just created or updated.
func principalDirectory(principal *auth.Principal) service.UserDirectory {
	return service.UserDirectory{principal.UserID(): *principal.User}
}

func requireUser(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal, nil
}
