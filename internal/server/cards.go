package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type AddCardRequest struct {
	CardToken string `json:"card_token"`
}

// AddCard attaches a tokenized card to the account's processor customer,
// creating the customer on first use.
func (s *Server) AddCard(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	var req AddCardRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.CardToken) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	customer, card, err := s.paymentSvc.EnsureCustomer(c.Request.Context(), accountID, req.CardToken)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"customer_id": customer.CustomerID}
	if card != nil {
		resp["card_id"] = card.CardID
		resp["is_primary"] = card.IsPrimary
	}
	c.JSON(http.StatusCreated, resp)
}

// RemoveCard detaches a stored card from the account.
func (s *Server) RemoveCard(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	cardID := strings.TrimSpace(c.Param("card_id"))
	if cardID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.paymentSvc.RemoveCard(c.Request.Context(), accountID, cardID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
