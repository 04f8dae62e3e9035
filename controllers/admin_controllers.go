package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-core/services"
	"github.com/yeremiapane/restaurant-core/utils"
)

// AdminController serves the read models payroll and back office consume.
type AdminController struct {
	Tips  *services.TipsService
	Audit *services.AuditService
}

func NewAdminController(tips *services.TipsService, audit *services.AuditService) *AdminController {
	return &AdminController{Tips: tips, Audit: audit}
}

// GetTips -> GET /api/tips?start=&end=&employee_id=
// Defaults to today. With by=employee the total is broken down per employee.
func (ac *AdminController) GetTips(c *gin.Context) {
	start, ok := queryTime(c, "start")
	if !ok {
		return
	}
	end, ok := queryTime(c, "end")
	if !ok {
		return
	}
	if start == nil {
		y, m, d := time.Now().Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
		start = &today
	}
	if end == nil {
		next := start.AddDate(0, 0, 1)
		end = &next
	}

	if c.Query("by") == "employee" {
		rows, err := ac.Tips.TipsByEmployee(c.Request.Context(), *start, *end)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		utils.RespondJSON(c, http.StatusOK, "Tips by employee", rows)
		return
	}

	var employeeID *uint
	if raw := c.Query("employee_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		eid := uint(id)
		employeeID = &eid
	}

	total, err := ac.Tips.SumTips(c.Request.Context(), *start, *end, employeeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Tips", gin.H{
		"start":       start,
		"end":         end,
		"employee_id": employeeID,
		"total":       total,
	})
}

// GetAuditEntries -> GET /api/audit?entity_type=&entity_id=&action=&start=&end=&page=&page_size=
func (ac *AdminController) GetAuditEntries(c *gin.Context) {
	start, ok := queryTime(c, "start")
	if !ok {
		return
	}
	end, ok := queryTime(c, "end")
	if !ok {
		return
	}

	filter := services.AuditFilter{
		EntityType: c.Query("entity_type"),
		Action:     c.Query("action"),
		Start:      start,
		End:        end,
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if raw := c.Query("entity_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		filter.EntityID = uint(id)
	}

	page, err := ac.Audit.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Audit entries", page)
}
