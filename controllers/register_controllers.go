package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-core/kds"
	"github.com/yeremiapane/restaurant-core/middlewares"
	"github.com/yeremiapane/restaurant-core/services"
	"github.com/yeremiapane/restaurant-core/utils"
)

type RegisterController struct {
	Registers *services.RegisterService
}

func NewRegisterController(registers *services.RegisterService) *RegisterController {
	return &RegisterController{Registers: registers}
}

// OpenRegister -> POST /api/registers/open
func (rc *RegisterController) OpenRegister(c *gin.Context) {
	var req struct {
		TerminalNumber int `json:"terminal_number" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := rc.Registers.Open(c.Request.Context(), req.TerminalNumber, middlewares.ActorID(c), requestID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	kds.BroadcastRegisterUpdate(*session)
	utils.RespondJSON(c, http.StatusCreated, "Register session opened", session)
}

// CloseRegister -> POST /api/registers/:session_id/close
func (rc *RegisterController) CloseRegister(c *gin.Context) {
	id, ok := paramID(c, "session_id")
	if !ok {
		return
	}

	session, err := rc.Registers.Close(c.Request.Context(), id, middlewares.ActorID(c), requestID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	kds.BroadcastRegisterUpdate(*session)
	utils.RespondJSON(c, http.StatusOK, "Register session closed", session)
}

// CurrentRegister -> GET /api/registers/terminal/:terminal
func (rc *RegisterController) CurrentRegister(c *gin.Context) {
	terminal, err := strconv.Atoi(c.Param("terminal"))
	if err != nil || terminal <= 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid terminal"))
		return
	}

	session, err := rc.Registers.Current(c.Request.Context(), terminal)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if session == nil {
		utils.RespondJSON(c, http.StatusOK, "No open session", nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Open session", session)
}

// RegisterSummary -> GET /api/registers/:session_id/summary
func (rc *RegisterController) RegisterSummary(c *gin.Context) {
	id, ok := paramID(c, "session_id")
	if !ok {
		return
	}
	summary, err := rc.Registers.Summary(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session summary", summary)
}
