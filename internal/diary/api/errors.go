package api

import (
	"net/http"

	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/blueplan/diary-go/internal/diary/types"
	"github.com/gin-gonic/gin"
)

// statusFor 错误类型到 HTTP 状态码
func statusFor(kind types.ErrorKind) int {
	switch kind {
	case types.KindEmptyContext:
		return http.StatusBadRequest
	case types.KindSessionNotFound:
		return http.StatusNotFound
	case types.KindGenerationBusy, types.KindNothingToSave:
		return http.StatusConflict
	case types.KindPermissionDenied, types.KindPositionUnavailable, types.KindTimeout,
		types.KindGeoUnknown, types.KindDecodeFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError 统一错误响应 {error, code}
func (s *Server) writeError(c *gin.Context, err error) {
	kind := types.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "请求处理失败",
			logx.KV("path", c.FullPath()),
			logx.KV("kind", kind),
			logx.KV("error", err))
	}
	body := gin.H{"error": types.UserMessage(kind)}
	if kind != "" {
		body["code"] = string(kind)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "code": "bad_request"})
}
