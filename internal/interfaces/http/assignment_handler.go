package http

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/flota-api/internal/application/assignment"
	"github.com/jhoicas/flota-api/internal/application/dto"
	"github.com/jhoicas/flota-api/internal/domain"
)

// AssignmentHandler maneja las peticiones HTTP del tablero de asignación.
//
// El motor es no interactivo: cuando una operación requiere consentimiento
// devuelve domain.ErrConfirmationRequired y este handler responde 409 con un
// código CONFIRM_* y el detalle para el diálogo; el cliente reenvía la misma
// petición con confirm=true (o la frase exacta en el reinicio masivo).
type AssignmentHandler struct {
	engine *assignment.Engine
}

// NewAssignmentHandler construye el handler.
func NewAssignmentHandler(engine *assignment.Engine) *AssignmentHandler {
	return &AssignmentHandler{engine: engine}
}

// Board godoc
// @Summary      Tablero de asignación
// @Description  Camionetas con sus usuarios asignados y usuarios disponibles.
// @Tags         assignment
// @Produce      json
// @Success      200  {object}  dto.BoardResponse
// @Router       /api/assignment/board [get]
func (h *AssignmentHandler) Board(c *fiber.Ctx) error {
	return c.JSON(h.engine.Board())
}

// Assign godoc
// @Summary      Asignar usuario a camioneta
// @Tags         assignment
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AssignRequest  true  "Asignación"
// @Success      200   {object}  dto.StatusResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/assignment/assign [post]
func (h *AssignmentHandler) Assign(c *fiber.Ctx) error {
	var in dto.AssignRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.UserID == "" || in.WarehouseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: "user_id y warehouse_id son requeridos",
		})
	}

	err := h.engine.Assign(c.Context(), in.UserID, in.WarehouseID, in.Confirm)
	if errors.Is(err, domain.ErrConfirmationRequired) {
		recordOp("assign", "rejected")
		msg := "el usuario ya tiene una camioneta asignada; confirme la reasignación"
		if w, ok := h.engine.CurrentAssignment(in.UserID); ok {
			msg = fmt.Sprintf("el usuario ya está asignado a %s; confirme la reasignación", w.Name)
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "CONFIRM_REASSIGN", Message: msg,
		})
	}
	return h.finish(c, "assign", err)
}

// Unassign godoc
// @Summary      Retirar usuario de su camioneta
// @Tags         assignment
// @Accept       json
// @Produce      json
// @Param        body  body  dto.UnassignRequest  true  "Usuario"
// @Success      200   {object}  dto.StatusResponse
// @Router       /api/assignment/unassign [post]
func (h *AssignmentHandler) Unassign(c *fiber.Ctx) error {
	var in dto.UnassignRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: "user_id es requerido",
		})
	}
	return h.finish(c, "unassign", h.engine.Unassign(c.Context(), in.UserID))
}

// Move godoc
// @Summary      Mover usuario entre camionetas (fin de arrastre)
// @Tags         assignment
// @Accept       json
// @Produce      json
// @Param        body  body  dto.MoveRequest  true  "Movimiento"
// @Success      200   {object}  dto.StatusResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/assignment/move [post]
func (h *AssignmentHandler) Move(c *fiber.Ctx) error {
	var in dto.MoveRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.UserID == "" || in.ToWarehouseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: "user_id y to_warehouse_id son requeridos",
		})
	}

	err := h.engine.Move(c.Context(), in.UserID, in.FromWarehouseID, in.ToWarehouseID, in.Confirm)
	if errors.Is(err, domain.ErrConfirmationRequired) {
		recordOp("move", "rejected")
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "CONFIRM_REASSIGN", Message: "el movimiento reasigna al usuario; confirme para continuar",
		})
	}
	return h.finish(c, "move", err)
}

// ToggleExclusion godoc
// @Summary      Alternar exclusión de una camioneta
// @Description  Excluir una camioneta ocupada evacúa primero a todos sus asignados.
// @Tags         assignment
// @Accept       json
// @Produce      json
// @Param        id    path  int  true  "ID de la camioneta"
// @Param        body  body  dto.ExclusionRequest  true  "Confirmación"
// @Success      200   {object}  dto.StatusResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/warehouses/{id}/exclusion [post]
func (h *AssignmentHandler) ToggleExclusion(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: "id de camioneta inválido",
		})
	}
	var in dto.ExclusionRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}

	warehouseID := int64(id)
	err = h.engine.ToggleExclusion(c.Context(), warehouseID, in.Confirm)
	if errors.Is(err, domain.ErrConfirmationRequired) {
		recordOp("toggle_exclusion", "rejected")
		if h.engine.IsExcluded(warehouseID) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Code:    "CONFIRM_INCLUDE",
				Message: "la camioneta volverá a ser asignable; confirme para continuar",
			})
		}
		msg := "la camioneta quedará excluida de asignación; confirme para continuar"
		if n := h.engine.AssignedCount(warehouseID); n > 0 {
			msg = fmt.Sprintf("excluir la camioneta evacuará a %d usuario(s) asignado(s); confirme para continuar", n)
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "CONFIRM_EXCLUDE", Message: msg,
		})
	}
	return h.finish(c, "toggle_exclusion", err)
}

// Reset godoc
// @Summary      Reinicio masivo de asignaciones
// @Description  Evacúa a todos los usuarios asignados. Requiere la frase exacta de confirmación.
// @Tags         assignment
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ResetRequest  true  "Frase de confirmación"
// @Success      200   {object}  dto.StatusResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/assignment/reset [post]
func (h *AssignmentHandler) Reset(c *fiber.Ctx) error {
	var in dto.ResetRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}

	err := h.engine.ResetAll(c.Context(), in.Phrase)
	if errors.Is(err, domain.ErrConfirmationRequired) {
		recordOp("reset", "rejected")
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "CONFIRM_PHRASE",
			Message: fmt.Sprintf("escriba exactamente %q para confirmar el reinicio", assignment.ResetConfirmationPhrase),
		})
	}
	return h.finish(c, "reset", err)
}

// RefreshCatalog godoc
// @Summary      Refrescar catálogo de camionetas
// @Tags         assignment
// @Produce      json
// @Success      200  {object}  dto.StatusResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/catalog/refresh [post]
func (h *AssignmentHandler) RefreshCatalog(c *fiber.Ctx) error {
	if err := h.engine.RefreshCatalog(c.Context()); err != nil {
		recordOp("refresh_catalog", "error")
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Code: "CATALOG_UNAVAILABLE", Message: "no se pudo refrescar el catálogo",
		})
	}
	recordOp("refresh_catalog", "ok")
	return c.JSON(dto.StatusResponse{Status: "ok"})
}

// finish mapea el resultado de una operación del motor a la respuesta HTTP.
func (h *AssignmentHandler) finish(c *fiber.Ctx, op string, err error) error {
	if err == nil {
		recordOp(op, "ok")
		return c.JSON(dto.StatusResponse{Status: "ok"})
	}

	code, status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		recordOp(op, "error")
	} else {
		recordOp(op, "rejected")
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

// errorStatus traduce errores de dominio a código HTTP + código de API.
func errorStatus(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return "USER_NOT_FOUND", fiber.StatusNotFound
	case errors.Is(err, domain.ErrWarehouseNotFound):
		return "WAREHOUSE_NOT_FOUND", fiber.StatusNotFound
	case errors.Is(err, domain.ErrWarehouseExcluded):
		return "WAREHOUSE_EXCLUDED", fiber.StatusConflict
	case errors.Is(err, domain.ErrCapacityFull):
		return "CAPACITY_FULL", fiber.StatusConflict
	case errors.Is(err, domain.ErrNotAssigned):
		return "NOT_ASSIGNED", fiber.StatusConflict
	case errors.Is(err, domain.ErrRemoteWrite):
		// La mutación local fue revertida: el tablero sigue consistente.
		return "SYNC_FAILED", fiber.StatusBadGateway
	default:
		return "INTERNAL", fiber.StatusInternalServerError
	}
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Code: "INVALID_BODY", Message: "cuerpo inválido",
	})
}
