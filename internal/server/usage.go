package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	licensedomain "github.com/gluufederation/ecommerce/internal/license/domain"
)

func (s *Server) license(c *gin.Context, accountID int64) *licensedomain.License {
	license, err := s.licenseSvc.GetByAccount(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return nil
	}
	if license == nil {
		AbortWithError(c, ErrNotFound)
		return nil
	}
	return license
}

func (s *Server) GetLicense(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}
	license := s.license(c, accountID)
	if license == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"license_id":      license.LicenseID,
		"public_key":      license.PublicKey,
		"is_active":       license.IsActive,
		"is_blocked":      license.IsBlocked,
		"creation_date":   license.CreationDate,
		"expiration_date": license.ExpirationDate,
	})
}

func (s *Server) ListUsage(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}
	license := s.license(c, accountID)
	if license == nil {
		return
	}

	records, err := s.licenseSvc.Records(c.Request.Context(), license)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	views := make([]gin.H, 0, len(records))
	for _, r := range records {
		views = append(views, gin.H{
			"year":            r.Year,
			"month":           r.Month,
			"number_licenses": r.NumberLicenses,
			"details":         r.Details,
		})
	}
	c.JSON(http.StatusOK, gin.H{"usage": views})
}

// SyncUsage pulls the latest statistics from the license server on demand,
// outside the nightly job.
func (s *Server) SyncUsage(c *gin.Context) {
	accountID, ok := accountIDParam(c)
	if !ok {
		return
	}
	license := s.license(c, accountID)
	if license == nil {
		return
	}

	if err := s.licenseSvc.Sync(c.Request.Context(), license); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "synced"})
}
