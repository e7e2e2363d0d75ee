package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/waiter-pos/services"
	"github.com/yeremiapane/waiter-pos/utils"
)

// statusFor maps an engine error kind to an HTTP status.
func statusFor(err error) int {
	switch services.KindOf(err) {
	case services.KindValidation:
		return http.StatusUnprocessableEntity
	case services.KindConflict:
		return http.StatusConflict
	case services.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondEngineError(c *gin.Context, err error, data interface{}) {
	_ = c.Error(err)
	utils.RespondErrorData(c, statusFor(err), err, data)
}
