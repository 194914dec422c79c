// internal/utils/pagination_test.go
package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func paramsForQuery(t *testing.T, query string) PaginationParams {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return GetPaginationParams(c)
}

func TestGetPaginationParams(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		params := paramsForQuery(t, "")
		assert.Equal(t, PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"}, params)
	})

	t.Run("passes valid values through", func(t *testing.T) {
		params := paramsForQuery(t, "page=3&limit=50&sort=price&order=asc")
		assert.Equal(t, PaginationParams{Page: 3, Limit: 50, Sort: "price", Order: "asc"}, params)
	})

	t.Run("clamps out-of-range values", func(t *testing.T) {
		params := paramsForQuery(t, "page=0&limit=500&order=sideways")
		assert.Equal(t, 1, params.Page)
		assert.Equal(t, 20, params.Limit)
		assert.Equal(t, "desc", params.Order)
	})
}

func TestCreatePaginationResult(t *testing.T) {
	result := CreatePaginationResult([]string{"a"}, 101, PaginationParams{Page: 2, Limit: 20})
	assert.Equal(t, int64(101), result.Total)
	assert.Equal(t, 6, result.TotalPages)
	assert.Equal(t, 2, result.Page)

	empty := CreatePaginationResult(nil, 0, PaginationParams{})
	assert.Equal(t, 0, empty.TotalPages)
}
