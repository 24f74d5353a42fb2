package imports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/sirupsen/logrus"
)

const (
	eventTypeAttr  = "eventType"
	objectFinalize = "OBJECT_FINALIZE"
)

// storageObject is the object resource Cloud Storage sends as notification payload.
type storageObject struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	Generation  string `json:"generation"`
	ContentType string `json:"contentType"`
}

// ParseStorageNotification reads a Cloud Storage Pub/Sub notification. ok is false for
// events other than a finished upload.
func ParseStorageNotification(attributes map[string]string, data []byte) (ev FileEvent, ok bool, err error) {
	if t := attributes[eventTypeAttr]; t != "" && t != objectFinalize {
		return FileEvent{}, false, nil
	}
	var obj storageObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return FileEvent{}, false, fmt.Errorf("decode storage notification: %w", err)
	}
	if obj.Bucket == "" || obj.Name == "" {
		return FileEvent{}, false, errors.New("storage notification without bucket or object name")
	}
	ev = FileEvent{Bucket: obj.Bucket, Name: obj.Name, MimeType: obj.ContentType}
	if obj.Generation != "" {
		ev.Generation, _ = strconv.ParseInt(obj.Generation, 10, 64)
	}
	return ev, true, nil
}

type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, objectName string) ([]byte, error)
}

// Processor turns upload notifications into imports. The push endpoint and the pull worker
// share it.
type Processor struct {
	Router  *Router
	Fetcher ObjectFetcher
	Logger  *logrus.Logger
}

func (p *Processor) Process(ctx context.Context, attributes map[string]string, data []byte) (*Result, error) {
	ev, ok, err := ParseStorageNotification(attributes, data)
	if err != nil {
		return nil, &utils.JobError{Kind: utils.KindInvalidArgument, Batch: -1, Message: err.Error(), Err: err}
	}
	if !ok {
		return skipped("ignored %s event", attributes[eventTypeAttr]), nil
	}
	if !p.Router.Handles(ev.Prefix()) {
		return skipped("no import configured for %s", ev.Name), nil
	}

	content, err := p.Fetcher.Fetch(ctx, ev.Bucket, ev.Name)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, &utils.JobError{Kind: utils.KindNotFound, Batch: -1, Message: ev.Name + " no longer exists", Err: err}
	}
	if errors.Is(err, utils.ErrObjectTooLarge) {
		return nil, &utils.JobError{Kind: utils.KindInvalidArgument, Batch: -1, Message: err.Error(), Err: err}
	}
	if err != nil {
		return nil, utils.Internal("download", err)
	}
	ev.Content = content
	return p.Router.Dispatch(ctx, ev)
}
