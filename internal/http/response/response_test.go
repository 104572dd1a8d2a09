package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/apierr"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/services"
)

func TestRespondServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{err: services.ErrTokenExpiredOrClosed, wantStatus: http.StatusGone, wantCode: "token_expired_or_closed"},
		{err: services.ErrTokenNotFound, wantStatus: http.StatusNotFound, wantCode: "invalid_token"},
		{err: &services.QueryFailedError{Op: "ListJobs", Err: errors.New("dial tcp 10.0.0.1:5432")}, wantStatus: http.StatusServiceUnavailable, wantCode: "storage_failure", wantMsg: "Service Unavailable"},
		{err: apierr.New(http.StatusRequestEntityTooLarge, "payload_too_large", fmt.Errorf("too big")), wantStatus: http.StatusRequestEntityTooLarge, wantCode: "payload_too_large", wantMsg: "too big"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		RespondServiceError(c, tc.err)
		if rec.Code != tc.wantStatus {
			t.Fatalf("%v: status want=%d got=%d", tc.err, tc.wantStatus, rec.Code)
		}
		var env ErrorEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Error.Code != tc.wantCode {
			t.Fatalf("%v: code want=%s got=%s", tc.err, tc.wantCode, env.Error.Code)
		}
		if tc.wantMsg != "" && env.Error.Message != tc.wantMsg {
			t.Fatalf("%v: message want=%q got=%q", tc.err, tc.wantMsg, env.Error.Message)
		}
	}
}
