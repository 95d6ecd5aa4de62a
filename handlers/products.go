package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/centrodecompra/catalog/internal/catalog"
	"github.com/centrodecompra/catalog/internal/upload"
	"github.com/centrodecompra/catalog/pkg/logger"
	"github.com/centrodecompra/catalog/pkg/middleware"
)

// multipart field names used by the storefront admin form
const (
	fieldName        = "nome"
	fieldDescription = "descricao"
	fieldCategory    = "categoria"
	fieldStore       = "loja"
	fieldLink        = "link"
	fieldPrice       = "preco"
	fieldImages      = "imagens"
)

// formOverhead is the allowance for non-file fields in a multipart body.
const formOverhead = 1 << 20

// DefaultMutationTimeout bounds a write once it is detached from the client.
const DefaultMutationTimeout = 2 * time.Minute

// ProductHandler exposes the catalog over REST.
type ProductHandler struct {
	repo            catalog.Repository
	orch            *upload.Orchestrator
	maxBodyBytes    int64
	mutationTimeout time.Duration
}

func NewProductHandler(repo catalog.Repository, orch *upload.Orchestrator, maxFileBytes int64) *ProductHandler {
	if maxFileBytes <= 0 {
		maxFileBytes = upload.DefaultMaxFileBytes
	}
	return &ProductHandler{
		repo:            repo,
		orch:            orch,
		maxBodyBytes:    int64(catalog.MaxImages)*maxFileBytes + formOverhead,
		mutationTimeout: DefaultMutationTimeout,
	}
}

// WithMutationTimeout sets how long a create, update or delete may run.
func (h *ProductHandler) WithMutationTimeout(d time.Duration) *ProductHandler {
	if d > 0 {
		h.mutationTimeout = d
	}
	return h
}

// mutationContext outlives a disconnecting client but not mutationTimeout.
func (h *ProductHandler) mutationContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.mutationTimeout)
}

// Register mounts the product routes. Writes always go through auth; reads
// only when protectReads is set.
func (h *ProductHandler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc, protectReads bool) {
	p := rg.Group("/produtos")
	if protectReads {
		p.GET("", auth, h.List)
		p.GET("/:id", auth, h.Get)
	} else {
		p.GET("", h.List)
		p.GET("/:id", h.Get)
	}
	p.POST("", auth, h.Create)
	p.PUT("/:id", auth, h.Update)
	p.DELETE("/:id", auth, h.Delete)
}

func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.repo.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, "list products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"produtos": products, "total": len(products)})
}

func (h *ProductHandler) Get(c *gin.Context) {
	p, err := h.repo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "get product", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) Create(c *gin.Context) {
	sub, err := h.readSubmission(c)
	if err != nil {
		respondError(c, "create product", err)
		return
	}
	ctx, cancel := h.mutationContext(c)
	defer cancel()
	p, err := h.orch.Create(ctx, sub)
	if err != nil {
		respondError(c, "create product", err)
		return
	}
	logger.Infof("product %s created by %s", p.ID, subjectOf(c))
	c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) Update(c *gin.Context) {
	sub, err := h.readSubmission(c)
	if err != nil {
		respondError(c, "update product", err)
		return
	}
	ctx, cancel := h.mutationContext(c)
	defer cancel()
	p, err := h.orch.Update(ctx, c.Param("id"), sub)
	if err != nil {
		respondError(c, "update product", err)
		return
	}
	logger.Infof("product %s updated by %s", p.ID, subjectOf(c))
	c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := h.mutationContext(c)
	defer cancel()
	if _, err := h.orch.Delete(ctx, id); err != nil {
		respondError(c, "delete product", err)
		return
	}
	logger.Infof("product %s deleted by %s", id, subjectOf(c))
	c.JSON(http.StatusOK, gin.H{"message": "Produto deletado com sucesso", "id": id})
}

// readSubmission parses the multipart form into an upload submission.
func (h *ProductHandler) readSubmission(c *gin.Context) (upload.Submission, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return upload.Submission{}, errBodyTooLarge
		}
		return upload.Submission{}, &upload.ValidationError{Problems: []string{"expected a multipart/form-data body"}}
	}
	value := func(k string) string {
		if v := form.Value[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	sub := upload.Submission{
		Name:        value(fieldName),
		Description: value(fieldDescription),
		Category:    value(fieldCategory),
		Store:       value(fieldStore),
		Link:        value(fieldLink),
		Price:       value(fieldPrice),
	}
	for _, fh := range form.File[fieldImages] {
		sub.Images = append(sub.Images, imagePayload(fh))
	}
	return sub, nil
}

func imagePayload(fh *multipart.FileHeader) upload.ImagePayload {
	return upload.ImagePayload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func subjectOf(c *gin.Context) string {
	if s := middleware.Subject(c); s != "" {
		return s
	}
	return "anonymous"
}
