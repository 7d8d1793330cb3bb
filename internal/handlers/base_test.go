package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"plforum/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWriteErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&services.ValidationError{Field: "title", Message: "required"}, http.StatusBadRequest},
		{services.ErrInvalidInput, http.StatusBadRequest},
		{services.ErrInsufficientBalance, http.StatusBadRequest},
		{services.ErrBanned, http.StatusForbidden},
		{services.ErrMuted, http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", services.ErrPermissionDenied), http.StatusForbidden},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrRateLimited, http.StatusTooManyRequests},
		{services.ErrConflict, http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		writeError(c, tc.err)
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
	}
}

func TestValidationErrorCarriesField(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	writeError(c, &services.ValidationError{Field: "nickname", Message: "required"})
	assert.JSONEq(t, `{"error":"required","field":"nickname"}`, w.Body.String())
}

func TestParamID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	_, ok := paramID(c, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c.Params = gin.Params{{Key: "id", Value: "12"}}
	id, ok := paramID(c, "id")
	assert.True(t, ok)
	assert.EqualValues(t, 12, id)
}
