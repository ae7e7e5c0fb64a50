package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"productshot-backend/internal/models"
	"productshot-backend/internal/services"
)

type CreditsHandler struct {
	store services.ProjectStore
}

func NewCreditsHandler(store services.ProjectStore) *CreditsHandler {
	return &CreditsHandler{
		store: store,
	}
}

// GetCredits godoc
// @Summary     Get the caller's credit balance
// @Tags        credits
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.CreditsResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /credits [get]
func (h *CreditsHandler) GetCredits(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	// First authenticated call creates the ledger row with the signup grant.
	if err := h.store.EnsureUser(userID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load credits"})
		return
	}

	credits, err := h.store.GetCredits(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load credits"})
		return
	}

	c.JSON(http.StatusOK, models.CreditsResponse{Credits: credits})
}
