package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"s3-gallery/internal/domain"
	"s3-gallery/internal/gallery"
	"s3-gallery/internal/repository"
)

const defaultJournalLimit = 50

// Handler wires HTTP routes to the gallery state.
type Handler struct {
	state       *gallery.State
	journal     repository.UploadRepository
	stagingDir  string
	environment string
	logger      *logrus.Logger
	now         func() time.Time
}

func NewHandler(state *gallery.State, journal repository.UploadRepository, stagingDir, environment string, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		state:       state,
		journal:     journal,
		stagingDir:  stagingDir,
		environment: environment,
		logger:      logger,
		now:         time.Now,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/gallery", h.getGallery)
		api.POST("/gallery/refresh", h.refreshGallery)
		api.PUT("/selection", h.chooseFile)
		api.POST("/upload", h.upload)
		api.GET("/upload/progress", h.uploadProgress)
		api.GET("/uploads", h.listUploads)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) getGallery(c *gin.Context) {
	c.JSON(http.StatusOK, h.galleryResponse())
}

func (h *Handler) refreshGallery(c *gin.Context) {
	if err := h.state.OnManualRefresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.galleryResponse())
}

func (h *Handler) chooseFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}

	name := uploadedName(header.Filename)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file name is required"})
		return
	}

	if err := os.MkdirAll(h.stagingDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("create staging dir: %v", err)})
		return
	}
	staged := filepath.Join(h.stagingDir, uuid.NewString()+filepath.Ext(name))
	if err := c.SaveUploadedFile(header, staged); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("stage file: %v", err)})
		return
	}

	file, err := domain.OpenLocalFile(staged)
	if err != nil {
		_ = os.Remove(staged)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	file.Name = name
	// browsers send octet-stream when they don't know; let the uploader sniff
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		file.ContentType = ct
	}

	h.logger.WithField("file", name).Debugf("staged selection at %s", staged)
	h.state.OnFileChosen(file)
	c.JSON(http.StatusOK, selectionToResponse(file))
}

func (h *Handler) upload(c *gin.Context) {
	key, err := h.state.OnUploadRequested(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if key == "" {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"key": key})
}

func (h *Handler) uploadProgress(c *gin.Context) {
	stream := h.state.Progress()
	if stream == nil {
		c.Status(http.StatusNoContent)
		return
	}

	events := stream.Subscribe()
	ctx := c.Request.Context()
	c.Header("Cache-Control", "no-cache")
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(string(ev.Kind), progressToResponse(ev))
			c.Writer.Flush()
			if ev.Terminal() {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) listUploads(c *gin.Context) {
	limit := defaultJournalLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = v
	}

	if h.journal == nil {
		c.JSON(http.StatusOK, []UploadResponse{})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	uploads, err := h.journal.List(ctx, limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]UploadResponse, len(uploads))
	for i := range uploads {
		resp[i] = uploadToResponse(uploads[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) galleryResponse() GalleryResponse {
	images := h.state.Images()
	now := h.now()
	resp := GalleryResponse{
		Environment: h.environment,
		Images:      make([]ImageResponse, len(images)),
	}
	for i := range images {
		resp.Images[i] = ImageResponse{
			Key:       images[i].Key.String(),
			URL:       images[i].URL,
			ExpiresAt: images[i].ExpiresAt.UTC().Format(time.RFC3339),
			Expired:   images[i].Expired(now),
		}
		if ms, name, ok := images[i].Key.Split(); ok {
			captured := time.UnixMilli(ms).UTC().Format(time.RFC3339)
			resp.Images[i].Name = name
			resp.Images[i].CapturedAt = &captured
		}
	}
	if selected := h.state.Selected(); selected != nil {
		s := selectionToResponse(selected)
		resp.Selected = &s
	}
	return resp
}

type GalleryResponse struct {
	Environment string             `json:"environment"`
	Images      []ImageResponse    `json:"images"`
	Selected    *SelectionResponse `json:"selected"`
}

type ImageResponse struct {
	Key        string  `json:"key"`
	Name       string  `json:"name,omitempty"`
	CapturedAt *string `json:"captured_at,omitempty"`
	URL        string  `json:"url"`
	ExpiresAt  string  `json:"expires_at"`
	// Expired is set once the URL has outlived its signature; a refresh
	// issues new ones.
	Expired bool `json:"expired"`
}

type SelectionResponse struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

type ProgressResponse struct {
	Kind    gallery.ProgressKind `json:"kind"`
	Done    int64                `json:"done"`
	Total   int64                `json:"total"`
	Percent float64              `json:"percent"`
	Error   string               `json:"error,omitempty"`
}

type UploadResponse struct {
	ID           string              `json:"id"`
	Key          string              `json:"key"`
	FileName     string              `json:"file_name"`
	ContentType  string              `json:"content_type"`
	Size         int64               `json:"size"`
	Status       domain.UploadStatus `json:"status"`
	ErrorMessage string              `json:"error_message"`
	CreatedAt    string              `json:"created_at"`
	UpdatedAt    string              `json:"updated_at"`
	CompletedAt  *string             `json:"completed_at,omitempty"`
}

// uploadedName strips any client-side directories, including Windows ones,
// from a multipart file name.
func uploadedName(raw string) string {
	name := path.Base(strings.ReplaceAll(raw, `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func selectionToResponse(file *domain.LocalFile) SelectionResponse {
	return SelectionResponse{
		Name:        file.Name,
		Size:        file.Size,
		ContentType: file.ContentType,
	}
}

func progressToResponse(ev gallery.ProgressEvent) ProgressResponse {
	resp := ProgressResponse{
		Kind:    ev.Kind,
		Done:    ev.Done,
		Total:   ev.Total,
		Percent: ev.Percent,
	}
	if ev.Err != nil {
		resp.Error = ev.Err.Error()
	}
	return resp
}

func uploadToResponse(u domain.Upload) UploadResponse {
	resp := UploadResponse{
		ID:           u.ID,
		Key:          u.Key.String(),
		FileName:     u.FileName,
		ContentType:  u.ContentType,
		Size:         u.Size,
		Status:       u.Status,
		ErrorMessage: u.ErrorMessage,
		CreatedAt:    u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    u.UpdatedAt.Format(time.RFC3339),
	}
	if u.CompletedAt != nil {
		v := u.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &v
	}
	return resp
}
