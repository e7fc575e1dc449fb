package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gluufederation/ecommerce/internal/signup"
)

type SignupRequest struct {
	BusinessName string `json:"business_name"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	Address1     string `json:"address_1"`
	Address2     string `json:"address_2"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	Country      string `json:"country"`
}

type SignupResponse struct {
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
}

func (s *Server) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" ||
		strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, _, err := s.signupSvc.Register(c.Request.Context(), signup.Registration{
		BusinessName: req.BusinessName,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		Password:     req.Password,
		Address1:     req.Address1,
		Address2:     req.Address2,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
		Country:      req.Country,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SignupResponse{
		AccountID: user.AccountID.String(),
		UserID:    user.ID.String(),
		Email:     user.Email,
	})
}

func (s *Server) Activate(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.signupSvc.Activate(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id": user.AccountID.String(),
		"email":      user.Email,
		"is_active":  user.IsActive,
	})
}
