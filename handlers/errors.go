package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/centrodecompra/catalog/internal/catalog"
	"github.com/centrodecompra/catalog/internal/upload"
	"github.com/centrodecompra/catalog/pkg/logger"
)

var errBodyTooLarge = errors.New("request body too large")

// statusFor maps domain errors to an HTTP status and a message safe to show
// to the client.
func statusFor(err error) (int, string) {
	var ve *upload.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, catalog.ErrInvalidProduct):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "Corpo da requisição excede o limite"
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "Produto não encontrado"
	case errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict, "O catálogo foi alterado por outra requisição, tente novamente"
	case errors.Is(err, catalog.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge, "O catálogo atingiu o tamanho máximo"
	}
	return http.StatusInternalServerError, "Erro interno do servidor"
}

func respondError(c *gin.Context, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s: %v", op, err)
	} else {
		logger.Debugf("%s: %v", op, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
