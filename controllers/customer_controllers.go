package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-core/services"
	"github.com/yeremiapane/restaurant-core/utils"
)

type CustomerController struct {
	Customers *services.CustomerService
}

func NewCustomerController(customers *services.CustomerService) *CustomerController {
	return &CustomerController{Customers: customers}
}

// GetCustomerProfile -> GET /api/customers/:contact
func (cc *CustomerController) GetCustomerProfile(c *gin.Context) {
	profile, err := cc.Customers.GetByContact(c.Request.Context(), c.Param("contact"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Customer profile", profile)
}
