package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zots0127/dedupstore/pkg/service"
	"github.com/zots0127/dedupstore/pkg/types"
)

// API is the thin HTTP surface over the file service. All dedup logic
// lives below it.
type API struct {
	files  *service.FileService
	apiKey string
}

// NewAPI creates the HTTP layer.
func NewAPI(files *service.FileService, apiKey string) *API {
	return &API{
		files:  files,
		apiKey: apiKey,
	}
}

// RegisterRoutes attaches all endpoints to the router.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.Use(requestIDMiddleware())
	router.GET("/health", a.health)

	api := router.Group("/api")
	api.Use(a.authMiddleware())

	api.POST("/files", a.uploadFile)
	api.GET("/files", a.listFiles)
	api.GET("/files/:id/download", a.downloadFile)
	api.GET("/savings", a.savings)
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func (a *API) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey != a.apiKey {
			c.JSON(http.StatusUnauthorized, types.APIResponse{Success: false, Error: "Invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) uploadFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: "No file provided"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")

	result, err := a.files.Upload(c.Request.Context(), header.Filename, contentType, file)
	if err != nil {
		if errors.Is(err, types.ErrNoContent) {
			c.JSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: "No file provided"})
			return
		}
		c.JSON(http.StatusInternalServerError, types.APIResponse{Success: false, Error: "Storage failure"})
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (a *API) listFiles(c *gin.Context) {
	filter, err := parseFileFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: err.Error()})
		return
	}

	files, err := a.files.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.APIResponse{Success: false, Error: "Failed to list files"})
		return
	}
	if files == nil {
		files = []*types.File{}
	}

	c.JSON(http.StatusOK, files)
}

func (a *API) downloadFile(c *gin.Context) {
	fileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: "Invalid file id"})
		return
	}

	caller := c.GetHeader("X-Caller-ID")
	if caller == "" {
		caller = c.ClientIP()
	}

	rc, file, err := a.files.Download(c.Request.Context(), caller, fileID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrContentMissing) {
			c.JSON(http.StatusNotFound, types.APIResponse{Success: false, Error: "File not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, types.APIResponse{Success: false, Error: "Failed to read file"})
		return
	}
	defer rc.Close()

	c.Header("Content-Type", file.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalFilename))
	c.Header("Content-Length", strconv.FormatInt(file.Size, 10))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, rc); err != nil {
		// Headers are gone already; nothing to do but note it.
		_ = c.Error(err)
	}
}

func (a *API) savings(c *gin.Context) {
	savings, err := a.files.Savings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.APIResponse{Success: false, Error: "Failed to compute savings"})
		return
	}

	c.JSON(http.StatusOK, savings)
}

func parseFileFilter(c *gin.Context) (*types.FileFilter, error) {
	filter := &types.FileFilter{
		Name:     c.Query("name"),
		OrderBy:  c.Query("order_by"),
		OrderDir: strings.ToUpper(c.Query("order_dir")),
	}

	if v := c.Query("type"); v != "" {
		filter.ContentTypes = strings.Split(v, ",")
	}

	if v := c.Query("min_size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid min_size: %s", v)
		}
		filter.MinSize = &n
	}
	if v := c.Query("max_size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid max_size: %s", v)
		}
		filter.MaxSize = &n
	}

	if v := c.Query("uploaded_after"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid uploaded_after: %s", v)
		}
		filter.UploadedAfter = &ts
	}
	if v := c.Query("uploaded_before"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid uploaded_before: %s", v)
		}
		filter.UploadedBefore = &ts
	}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid limit: %s", v)
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid offset: %s", v)
		}
		filter.Offset = n
	}

	return filter, nil
}
