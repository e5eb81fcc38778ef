package dto

import (
	"expensehq.app/web/internal/app"
	"expensehq.app/web/internal/model"
)

type CreateOrganizationRequest struct {
	Name string `form:"name" json:"name" binding:"max=255"`
	Slug string `form:"slug" json:"slug" binding:"max=255"`
}

type SelectOrganizationRequest struct {
	OrganizationID string `form:"organization_id" binding:"required"`
}

type OrganizationResponse struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Slug   string     `json:"slug"`
	Role   model.Role `json:"role"`
	Active bool       `json:"active"`
}

type OrganizationsResponse struct {
	Organizations []OrganizationResponse `json:"organizations"`
	Message       string                 `json:"message,omitempty"`
}

func ToOrganizationsResponse(v app.View) OrganizationsResponse {
	resp := OrganizationsResponse{
		Organizations: make([]OrganizationResponse, 0, len(v.Organizations)),
		Message:       v.OrganizationMessage,
	}
	for _, org := range v.Organizations {
		resp.Organizations = append(resp.Organizations, OrganizationResponse{
			ID:     org.ID,
			Name:   org.Name,
			Slug:   org.Slug,
			Role:   org.Role,
			Active: v.Active != nil && v.Active.ID == org.ID,
		})
	}
	return resp
}
