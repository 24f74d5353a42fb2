package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/mmdatafocus/winery_ingest/workflow"
)

var kindStatus = map[utils.ErrorKind]int{
	utils.KindInvalidArgument: http.StatusBadRequest,
	utils.KindUnauthenticated: http.StatusUnauthorized,
	utils.KindNotFound:        http.StatusNotFound,
	utils.KindAborted:         http.StatusConflict,
	utils.KindInternal:        http.StatusInternalServerError,
}

func errorBody(kind utils.ErrorKind, message string) gin.H {
	return gin.H{"error": gin.H{"kind": kind, "message": message}}
}

func writeJobError(c *gin.Context, err error) {
	kind := utils.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, errorBody(kind, err.Error()))
}

func jobHandler(run func(ctx context.Context) (*workflow.Result, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := run(c.Request.Context())
		if err != nil {
			writeJobError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func normalizeHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req workflow.NormalizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJobError(c, utils.InvalidArgument(workflow.JobNormalizeBottleInfo, "invalid request: "+err.Error()))
			return
		}
		res, err := app.Service.Jobs.NormalizeBottleInfo(c.Request.Context(), req)
		if err != nil {
			writeJobError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
