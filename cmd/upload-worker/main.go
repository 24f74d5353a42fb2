// Command upload-worker imports uploaded spreadsheets from a pull subscription on the bucket
// notification topic, for deployments that cannot receive Pub/Sub push requests.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/winery_ingest/config"
	"github.com/mmdatafocus/winery_ingest/imports"
	"github.com/mmdatafocus/winery_ingest/service"
	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := config.GetLogger()

	settings, err := config.LoadSettings()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "settings"}).Fatal(err.Error())
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.Open(sigCtx, settings, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "service"}).Fatal(err.Error())
	}
	defer svc.Close()

	fetcher, err := utils.NewGCSFetcher(sigCtx, settings.MaxUploadBytes)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "storage"}).Fatal(err.Error())
	}
	defer fetcher.Close()

	client, err := config.GetClient(sigCtx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Fatal(err.Error())
	}
	topic, err := config.CreateTopicIfNotExists(sigCtx, client, settings.UploadTopic)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Fatal(err.Error())
	}
	sub, err := config.CreateSubscriptionIfNotExists(sigCtx, client, settings.UploadSubscription, topic)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Fatal(err.Error())
	}
	// Imports are memory heavy; take one file at a time.
	sub.ReceiveSettings.MaxOutstandingMessages = 1

	processor := &imports.Processor{Router: svc.Router, Fetcher: fetcher, Logger: logger}

	logger.WithFields(logrus.Fields{
		"subscription": settings.UploadSubscription,
		"topic":        settings.UploadTopic,
	}).Info("[upload-worker.start]")

	err = sub.Receive(sigCtx, func(ctx context.Context, msg *pubsub.Message) {
		ctx = utils.SetCorrelationIdInContext(ctx, msg.ID)
		fields := logrus.Fields{"message_id": msg.ID, "object": msg.Attributes["objectId"]}

		res, err := processor.Process(ctx, msg.Attributes, msg.Data)
		if err != nil {
			if utils.KindOf(err) == utils.KindInternal {
				logger.WithFields(fields).Error("[upload.import.failed] " + err.Error())
				msg.Nack()
				return
			}
			logger.WithFields(fields).Warn("[upload.import.dropped] " + err.Error())
			msg.Ack()
			return
		}
		logger.WithFields(fields).Info("[upload.import] " + res.Message)
		msg.Ack()
	})
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Error("receive stopped: " + err.Error())
	}
}
