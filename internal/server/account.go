package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func accountIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("account_id"), 10, 64)
	if err != nil || id <= 0 {
		AbortWithError(c, invalidRequestError())
		return 0, false
	}
	return id, true
}

func (s *Server) GetAccount(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	account, err := s.accountSvc.Get(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id":          account.ID.String(),
		"name":                account.Name(),
		"business_name":       account.BusinessName,
		"contact_email":       account.ContactEmail,
		"contact_phone":       account.ContactPhone,
		"payment_on_platform": account.PaymentOnPlatform,
		"created_at":          account.CreatedAt,
	})
}

func (s *Server) GetCredits(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	remaining, err := s.creditSvc.Remaining(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id": strconv.FormatInt(accountID, 10),
		"remaining":  remaining,
	})
}
