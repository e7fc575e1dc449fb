package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	paymentdomain "github.com/gluufederation/ecommerce/internal/payment/domain"
	"github.com/gluufederation/ecommerce/pkg/db/option"
	"github.com/gluufederation/ecommerce/pkg/db/pagination"
)

type paymentView struct {
	InvoiceID   string  `json:"invoice_id"`
	Amount      float64 `json:"amount"`
	CreditsUsed float64 `json:"credits_used"`
	PaidAmount  float64 `json:"paid_amount"`
	Status      string  `json:"status"`
	Month       int     `json:"month"`
	Year        int     `json:"year"`
	Details     any     `json:"details"`
}

func (s *Server) ListPayments(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	limit := page.Limit()

	opts := []option.QueryOption{
		option.OrderBy("id DESC"),
		option.Limit(limit + 1),
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		opts = append(opts, option.Where("id < ?", cursor.ID))
	}

	rows, err := s.payments.Find(c.Request.Context(),
		&paymentdomain.Payment{AccountID: snowflake.ID(accountID)}, opts...)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows, pageInfo := pagination.Page(rows, limit, func(p *paymentdomain.Payment) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: p.ID.String()})
		return token
	})

	views := make([]paymentView, 0, len(rows))
	for _, p := range rows {
		views = append(views, paymentView{
			InvoiceID:   p.InvoiceID,
			Amount:      p.Amount,
			CreditsUsed: p.CreditsUsed,
			PaidAmount:  p.PaidAmount(),
			Status:      string(p.Status),
			Month:       p.Month,
			Year:        p.Year,
			Details:     p.Details,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"payments":  views,
		"page_info": pageInfo,
	})
}
