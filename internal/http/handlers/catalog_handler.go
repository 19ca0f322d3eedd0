// README: Catalog handlers: categories, provider applications and items, properties.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"staybook/internal/modules/catalog"
	"staybook/internal/modules/identity"
	"staybook/internal/types"
)

type CatalogService interface {
	ListCategories(ctx context.Context) ([]*catalog.Category, error)
	SubmitProviderApplication(ctx context.Context, actor *identity.User, in catalog.ApplicationInput) (*catalog.Provider, error)
	DecideProvider(ctx context.Context, actor *identity.User, providerID types.ID, approve bool, reason string) (*catalog.Provider, error)
	DeleteProvider(ctx context.Context, actor *identity.User, providerID types.ID) error
	GetProvider(ctx context.Context, id types.ID) (*catalog.Provider, error)
	GetProviderByUser(ctx context.Context, userID types.ID) (*catalog.Provider, error)
	ListProviders(ctx context.Context, status catalog.ApprovalStatus) ([]*catalog.Provider, error)
	CreateProperty(ctx context.Context, actor *identity.User, in catalog.PropertyInput) (*catalog.Property, error)
	SetPropertyActive(ctx context.Context, actor *identity.User, id types.ID, active bool) (*catalog.Property, error)
	GetProperty(ctx context.Context, id types.ID) (*catalog.Property, error)
	ListPropertiesByOwner(ctx context.Context, ownerID types.ID) ([]*catalog.Property, error)
	AddItem(ctx context.Context, actor *identity.User, kind catalog.ItemKind, name string, price types.Money) (*catalog.Item, error)
	ListItems(ctx context.Context, providerID types.ID, kind catalog.ItemKind) ([]*catalog.Item, error)
}

type CatalogHandler struct {
	catalog CatalogService
}

func NewCatalogHandler(svc CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: svc}
}

type applicationReq struct {
	CategoryID   string      `json:"category_id" binding:"required"`
	BusinessName string      `json:"business_name" binding:"required"`
	Description  string      `json:"description"`
	City         string      `json:"city"`
	Country      string      `json:"country"`
	HourlyRate   types.Money `json:"hourly_rate"`
}

type propertyReq struct {
	Title         string      `json:"title" binding:"required"`
	City          string      `json:"city"`
	Country       string      `json:"country"`
	PricePerNight types.Money `json:"price_per_night"`
	MaxGuests     int         `json:"max_guests" binding:"required,gt=0"`
}

type activeReq struct {
	Active *bool `json:"active" binding:"required"`
}

type itemReq struct {
	Name  string      `json:"name" binding:"required"`
	Price types.Money `json:"price"`
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	cats, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(cats))
}

func (h *CatalogHandler) Apply(c *gin.Context) {
	var req applicationReq
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.catalog.SubmitProviderApplication(c.Request.Context(), caller(c), catalog.ApplicationInput{
		CategoryID:   req.CategoryID,
		BusinessName: req.BusinessName,
		Description:  req.Description,
		City:         req.City,
		Country:      req.Country,
		HourlyRate:   req.HourlyRate,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, p)
}

func (h *CatalogHandler) DecideProvider(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req decisionReq
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.catalog.DecideProvider(c.Request.Context(), caller(c), id, req.approve(), req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *CatalogHandler) DeleteProvider(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProvider(c.Request.Context(), caller(c), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) GetProvider(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.GetProvider(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *CatalogHandler) MyProvider(c *gin.Context) {
	p, err := h.catalog.GetProviderByUser(c.Request.Context(), caller(c).ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

// ListProviders defaults to approved profiles; coordinators pass ?status=pending for the review queue.
func (h *CatalogHandler) ListProviders(c *gin.Context) {
	status := catalog.ApprovalStatus(c.DefaultQuery("status", string(catalog.ApprovalApproved)))
	if status != catalog.ApprovalApproved {
		u := caller(c)
		if u.Role != identity.RoleAdmin && !u.Role.IsCoordinator() {
			writeError(c, http.StatusForbidden, "only admins and coordinators may list unapproved providers")
			return
		}
	}
	ps, err := h.catalog.ListProviders(c.Request.Context(), status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(ps))
}

func (h *CatalogHandler) addItem(kind catalog.ItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req itemReq
		if !bindJSON(c, &req) {
			return
		}
		it, err := h.catalog.AddItem(c.Request.Context(), caller(c), kind, req.Name, req.Price)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		writeJSON(c, http.StatusCreated, it)
	}
}

func (h *CatalogHandler) listItems(kind catalog.ItemKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		items, err := h.catalog.ListItems(c.Request.Context(), id, kind)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, list(items))
	}
}

func (h *CatalogHandler) AddMenuItem() gin.HandlerFunc { return h.addItem(catalog.KindMenuItem) }
func (h *CatalogHandler) AddTask() gin.HandlerFunc     { return h.addItem(catalog.KindTask) }
func (h *CatalogHandler) ListMenu() gin.HandlerFunc    { return h.listItems(catalog.KindMenuItem) }
func (h *CatalogHandler) ListTasks() gin.HandlerFunc   { return h.listItems(catalog.KindTask) }

func (h *CatalogHandler) CreateProperty(c *gin.Context) {
	var req propertyReq
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.catalog.CreateProperty(c.Request.Context(), caller(c), catalog.PropertyInput{
		Title:         req.Title,
		City:          req.City,
		Country:       req.Country,
		PricePerNight: req.PricePerNight,
		MaxGuests:     req.MaxGuests,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, p)
}

func (h *CatalogHandler) SetPropertyActive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req activeReq
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.catalog.SetPropertyActive(c.Request.Context(), caller(c), id, *req.Active)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *CatalogHandler) GetProperty(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.GetProperty(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *CatalogHandler) MyProperties(c *gin.Context) {
	ps, err := h.catalog.ListPropertiesByOwner(c.Request.Context(), caller(c).ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list(ps))
}
