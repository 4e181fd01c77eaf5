package pkg

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type grantBody struct {
	UserID string `json:"userId" validate:"required"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}

func parse(t *testing.T, body string) error {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	var dto grantBody
	return ParseAndValidate(c, &dto)
}

func TestParseAndValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{"valid", `{"userId":"u1","amount":5}`, nil},
		{"missing user", `{"amount":5}`, map[string]string{"userId": "required"}},
		{"negative amount", `{"userId":"u1","amount":-5}`, map[string]string{"amount": "gt=0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parse(t, tt.body)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, ValidationDetails(err))
		})
	}
}

func TestValidationDetails_DecodeError(t *testing.T) {
	err := parse(t, `{"userId":`)
	require.Error(t, err)
	assert.Contains(t, ValidationDetails(err), "body")
}

func TestDeref(t *testing.T) {
	assert.Equal(t, "fallback", Deref[string](nil, "fallback"))
	assert.Equal(t, "set", Deref(ToPtr("set"), "fallback"))
}
