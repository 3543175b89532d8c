package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circulation-backend/internal/domains/circulation/handler"
	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/domains/circulation/service"
)

// recordingService captures the requests the handler passes on.
type recordingService struct {
	service.ServiceInterface
	returns []model.ReturnRequest
	renews  []model.RenewRequest
}

func (s *recordingService) Return(_ context.Context, id uuid.UUID, req model.ReturnRequest) (*model.Loan, error) {
	s.returns = append(s.returns, req)
	return &model.Loan{ID: id}, nil
}

func (s *recordingService) Renew(_ context.Context, id uuid.UUID, req model.RenewRequest) (*model.Loan, error) {
	s.renews = append(s.renews, req)
	return &model.Loan{ID: id}, nil
}

func newLoanRouter(svc service.ServiceInterface) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handler.NewHandler(svc)
	r := gin.New()
	r.POST("/loans/:id/return", h.Return)
	r.POST("/loans/:id/renew", h.Renew)
	return r
}

func send(r http.Handler, path, body string, chunked bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, path, nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if chunked {
		req.ContentLength = -1
		req.TransferEncoding = []string{"chunked"}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReturn_BindsOptionalBody(t *testing.T) {
	path := "/loans/" + uuid.NewString() + "/return"

	tests := []struct {
		name     string
		body     string
		chunked  bool
		wantCode int
		wantRate string
	}{
		{name: "no body", wantCode: http.StatusOK},
		{name: "sized body", body: `{"fine_per_day":"0.50"}`, wantCode: http.StatusOK, wantRate: "0.5"},
		{name: "chunked body", body: `{"fine_per_day":"0.25"}`, chunked: true, wantCode: http.StatusOK, wantRate: "0.25"},
		{name: "malformed body", body: `{"fine_per_day":`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &recordingService{}
			w := send(newLoanRouter(svc), path, tt.body, tt.chunked)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())

			if tt.wantCode != http.StatusOK {
				assert.Empty(t, svc.returns)
				return
			}
			require.Len(t, svc.returns, 1)
			if tt.wantRate == "" {
				assert.Nil(t, svc.returns[0].FinePerDay)
				return
			}
			require.NotNil(t, svc.returns[0].FinePerDay)
			assert.True(t, svc.returns[0].FinePerDay.Equal(decimal.RequireFromString(tt.wantRate)))
		})
	}
}

func TestRenew_BindsChunkedBody(t *testing.T) {
	svc := &recordingService{}
	w := send(newLoanRouter(svc), "/loans/"+uuid.NewString()+"/renew", `{"extension_days":3}`, true)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, svc.renews, 1)
	require.NotNil(t, svc.renews[0].ExtensionDays)
	assert.Equal(t, 3, *svc.renews[0].ExtensionDays)
}
