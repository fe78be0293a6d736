package handlers

import (
	"net/http"
	"strings"

	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

type StoreHandler struct {
	stores *service.StoreService
}

func NewStoreHandler(stores *service.StoreService) *StoreHandler {
	return &StoreHandler{stores: stores}
}

type storeRequest struct {
	Name           string `json:"name" binding:"required"`
	Zone           string `json:"zone"`
	Contact        string `json:"contact"`
	Email          string `json:"email" binding:"omitempty,email"`
	Address        string `json:"address"`
	MinFreeReports int    `json:"min_free_reports" binding:"min=0"`
	MinFullReports int    `json:"min_full_reports" binding:"min=0"`
}

type managerStoresRequest struct {
	StoreIDs []int64 `json:"store_ids" binding:"dive,gt=0"`
}

type resolveLabelsRequest struct {
	Labels []string `json:"labels" binding:"required,min=1"`
}

// GetStores returns the registry ordered by name
func (h *StoreHandler) GetStores(c *gin.Context) {
	stores, err := h.stores.List(c.Request.Context())
	if err != nil {
		errorResponse(c, err, "failed to fetch stores")
		return
	}
	c.JSON(http.StatusOK, stores)
}

func (h *StoreHandler) GetStore(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	store, err := h.stores.Get(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, err, "failed to fetch store")
		return
	}
	c.JSON(http.StatusOK, store)
}

// SaveStore creates a store or updates the one with the same normalized name
func (h *StoreHandler) SaveStore(c *gin.Context) {
	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	store := &domain.Store{
		Name:           strings.TrimSpace(req.Name),
		Zone:           strings.TrimSpace(req.Zone),
		Contact:        strings.TrimSpace(req.Contact),
		Email:          strings.TrimSpace(req.Email),
		Address:        strings.TrimSpace(req.Address),
		MinFreeReports: req.MinFreeReports,
		MinFullReports: req.MinFullReports,
	}

	created, err := h.stores.Save(c.Request.Context(), store)
	if err != nil {
		errorResponse(c, err, "failed to save store")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, store)
}

func (h *StoreHandler) DeleteStore(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.stores.Delete(c.Request.Context(), id); err != nil {
		errorResponse(c, err, "failed to delete store")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoreHandler) GetManagerStores(c *gin.Context) {
	ids, err := h.stores.ManagerStores(c.Request.Context(), c.Param("manager"))
	if err != nil {
		errorResponse(c, err, "failed to fetch manager stores")
		return
	}
	c.JSON(http.StatusOK, gin.H{"manager": c.Param("manager"), "store_ids": ids})
}

// AssignManagerStores replaces the set of stores a manager oversees
func (h *StoreHandler) AssignManagerStores(c *gin.Context) {
	manager := strings.TrimSpace(c.Param("manager"))
	var req managerStoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.stores.AssignManager(c.Request.Context(), manager, req.StoreIDs); err != nil {
		errorResponse(c, err, "failed to assign stores")
		return
	}
	c.JSON(http.StatusOK, gin.H{"manager": manager, "store_ids": req.StoreIDs})
}

// ResolveLabels is a diagnostic: it shows which registry store each raw label
// would approximately match. Imports never use it.
func (h *StoreHandler) ResolveLabels(c *gin.Context) {
	var req resolveLabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	results, err := h.stores.ResolveApproximate(c.Request.Context(), req.Labels)
	if err != nil {
		errorResponse(c, err, "failed to resolve labels")
		return
	}
	c.JSON(http.StatusOK, results)
}
