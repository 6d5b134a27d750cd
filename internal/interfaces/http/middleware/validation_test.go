package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/reseller/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineInput struct {
	Quantity int    `json:"quantity" binding:"gt=0"`
	Name     string `json:"name" binding:"required,notblank"`
}

type validatedInput struct {
	Customer  string      `json:"customer" binding:"required,notblank,max=10"`
	ProductID string      `json:"product_id" binding:"omitempty,uuid"`
	Date      string      `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Items     []lineInput `json:"items" binding:"required,min=1,dive"`
}

func bindRouter(t *testing.T) *gin.Engine {
	t.Helper()
	require.NoError(t, SetupValidator())
	r := gin.New()
	r.Use(RequestID())
	r.POST("/test", func(c *gin.Context) {
		var in validatedInput
		if err := c.ShouldBindJSON(&in); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestSetupValidator_Binding(t *testing.T) {
	r := bindRouter(t)

	t.Run("valid body", func(t *testing.T) {
		body := `{"customer":"Ana","date":"2025-03-01","items":[{"quantity":1,"name":"x"}]}`
		w := serve(r, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body)))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	tests := []struct {
		name    string
		body    string
		field   string
		message string
	}{
		{"blank customer", `{"customer":"   ","items":[{"quantity":1,"name":"x"}]}`, "customer", "Must not be blank"},
		{"long customer", `{"customer":"abcdefghijkl","items":[{"quantity":1,"name":"x"}]}`, "customer", "Must be at most 10 characters"},
		{"bad uuid", `{"customer":"A","product_id":"nope","items":[{"quantity":1,"name":"x"}]}`, "product_id", "Invalid UUID format"},
		{"bad date", `{"customer":"A","date":"01/03/2025","items":[{"quantity":1,"name":"x"}]}`, "date", "Must be a date formatted as 2006-01-02"},
		{"no items", `{"customer":"A","items":[]}`, "items", "Must contain at least 1 entries"},
		{"nested quantity", `{"customer":"A","items":[{"quantity":0,"name":"x"}]}`, "items[0].quantity", "Must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body)))

			require.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
			require.NotEmpty(t, resp.Error.Fields)
			assert.Equal(t, tt.field, resp.Error.Fields[0].Field)
			assert.Equal(t, tt.message, resp.Error.Fields[0].Message)
		})
	}
}

func TestFormatValidationErrors_MalformedJSON(t *testing.T) {
	resp := FormatValidationErrors(errors.New("unexpected EOF"), "req-1")

	require.NotNil(t, resp.Error)
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Empty(t, resp.Error.Fields)
}
