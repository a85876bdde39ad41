package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "ims-cics/backend/pkg/errors"
	"ims-cics/backend/pkg/response"
)

// ── 考勤业务错误码（17xxx） ──

var reasonCodes = map[pkgerrors.Reason]int{
	pkgerrors.ReasonMissingGeofence:   17001,
	pkgerrors.ReasonStudentNotFound:   17002,
	pkgerrors.ReasonCompanyNotFound:   17003,
	pkgerrors.ReasonOutsideGeofence:   17004,
	pkgerrors.ReasonSpoofingSuspected: 17005,
	pkgerrors.ReasonNonWorkingDay:     17006,
	pkgerrors.ReasonOutsideWindow:     17007,
	pkgerrors.ReasonBadSequence:       17008,
	pkgerrors.ReasonLocationRequired:  17009,
	pkgerrors.ReasonInvalidInput:      17010,
	pkgerrors.ReasonAlreadyCheckedIn:  17011,
	pkgerrors.ReasonAlreadyCheckedOut: 17012,
	pkgerrors.ReasonNoActiveSession:   17013,
}

var kindStatus = map[pkgerrors.Kind]int{
	pkgerrors.KindConfig:     http.StatusUnprocessableEntity,
	pkgerrors.KindValidation: http.StatusBadRequest,
	pkgerrors.KindConflict:   http.StatusConflict,
	pkgerrors.KindNotFound:   http.StatusNotFound,
}

// handleServiceError 业务错误按类别映射状态码并原样返回具体文案，其余一律 500
func handleServiceError(c *gin.Context, err error) {
	appErr, ok := pkgerrors.As(err)
	if !ok {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}

	status, ok := kindStatus[appErr.Kind]
	if !ok {
		status = http.StatusBadRequest
	}
	code, ok := reasonCodes[appErr.Reason]
	if !ok {
		code = 17000
	}
	response.Rejected(c, status, code, string(appErr.Reason), appErr.Message)
}
