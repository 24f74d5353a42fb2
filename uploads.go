package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/winery_ingest/config"
	"github.com/mmdatafocus/winery_ingest/sheet"
	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/sirupsen/logrus"
)

type uploadSignRequest struct {
	// Kind is "sales" or "balance".
	Kind     string `json:"kind" validate:"oneof=sales balance"`
	FileName string `json:"fileName" validate:"notblank"`
	MimeType string `json:"mimeType" validate:"notblank"`
	Size     int64  `json:"size" validate:"gt=0"`
}

var spreadsheetExtensions = map[string]string{
	sheet.MimeXLSX: ".xlsx",
	sheet.MimeXLS:  ".xls",
	sheet.MimeCSV:  ".csv",
}

// signUploadHandler hands out a signed URL inside the upload folder of the requested kind.
// The object key keeps the original file name so the import logs stay readable.
func signUploadHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := app.Logger

		var req uploadSignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(utils.KindInvalidArgument, "invalid request"))
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(utils.KindInvalidArgument, err.Error()))
			return
		}
		if app.Settings.MaxUploadBytes > 0 && req.Size > app.Settings.MaxUploadBytes {
			c.JSON(http.StatusBadRequest, errorBody(utils.KindInvalidArgument, fmt.Sprintf("file size exceeds %d bytes", app.Settings.MaxUploadBytes)))
			return
		}
		ext, ok := spreadsheetExtensions[req.MimeType]
		if !ok {
			c.JSON(http.StatusBadRequest, errorBody(utils.KindInvalidArgument, "unsupported file type"))
			return
		}

		prefix := app.Settings.SalesUploadPrefix
		if req.Kind == "balance" {
			prefix = app.Settings.BalanceUploadPrefix
		}
		base := sanitizeFileName(strings.TrimSuffix(filepath.Base(req.FileName), filepath.Ext(req.FileName)))
		objectKey := path.Join(prefix, time.Now().UTC().Format("2006-01-02"), uuid.NewString()+"-"+base+ext)

		signed, err := app.SignUpload(c.Request.Context(), "", objectKey, req.MimeType, 15*time.Minute)
		if err != nil {
			config.LogError(logger, "uploads.go", "signUploadHandler", "SignUpload", objectKey, err)
			message := "failed to sign upload"
			if !app.Settings.IsProduction() {
				message = "failed to sign upload: " + err.Error()
			}
			c.JSON(http.StatusInternalServerError, errorBody(utils.KindInternal, message))
			return
		}

		username, _ := utils.GetUsernameFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"username":   username,
			"kind":       req.Kind,
			"mime_type":  req.MimeType,
			"size":       req.Size,
			"object_key": objectKey,
		}).Info("[upload.sign]")

		c.JSON(http.StatusOK, gin.H{"data": signed})
	}
}

func sanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == '#' || r == '?' || r < 0x20:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "upload"
	}
	return out
}

type pubSubPushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data,omitempty"`
		Attributes map[string]string `json:"attributes"`
		ID         string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// uploadPushHandler receives Cloud Storage notifications pushed by Pub/Sub. Anything that
// cannot succeed on retry is acked with 204; store and download failures return 500 so
// Pub/Sub redelivers and the import resumes from its checkpoint.
func uploadPushHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := app.Logger

		if want := app.Settings.PubSubVerificationToken; want != "" && c.Query("token") != want {
			c.JSON(http.StatusUnauthorized, errorBody(utils.KindUnauthenticated, "unauthorized"))
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadPushHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		var envelope pubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			config.LogError(logger, "uploads.go", "uploadPushHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}

		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), envelope.Message.ID)
		fields := logrus.Fields{
			"message_id": envelope.Message.ID,
			"object":     envelope.Message.Attributes["objectId"],
		}

		res, err := app.Processor.Process(ctx, envelope.Message.Attributes, envelope.Message.Data)
		if err != nil {
			if utils.KindOf(err) == utils.KindInternal {
				logger.WithFields(fields).Error("[upload.import.failed] " + err.Error())
				c.Status(http.StatusInternalServerError)
				return
			}
			logger.WithFields(fields).Warn("[upload.import.dropped] " + err.Error())
			c.Status(http.StatusNoContent)
			return
		}

		logger.WithFields(fields).WithFields(logrus.Fields{
			"records": res.RecordsProcessed,
			"skipped": res.Skipped,
		}).Info("[upload.import] " + res.Message)
		c.Status(http.StatusNoContent)
	}
}
