// Package main runs the esa webhook endpoint as an AWS Lambda behind an API
// Gateway HTTP API or a function URL.
//
// Configuration comes from the environment (see esasync.Config), optionally
// seeded from the YAML file named by ESASYNC_CONFIG. Deploy hooks and the
// admin console work as in the long-running server, except that a full sync
// finishes before its response is sent. The sqlite target is
// not useful here since the filesystem does not outlive the instance.
package main

import (
	"os"
	"runtime"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/labstack/gommon/log"

	"github.com/eringen/esasync"
)

var app *esasync.App

func init() {
	initStart := time.Now()
	logger := log.New("esasync-lambda")
	logger.SetLevel(log.INFO)

	cfg, err := esasync.LoadConfig(os.Getenv("ESASYNC_CONFIG"))
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	app, err = esasync.New(cfg, esasync.WithLogger(logger), esasync.WithForegroundJobs())
	if err != nil {
		logger.Fatalf("failed to start: %v", err)
	}
	logger.Infof("init complete: team=%s target=%s go=%s in %s",
		cfg.EsaTeam, cfg.Target, runtime.Version(), time.Since(initStart))
}

func main() {
	adapter := httpadapter.NewV2(app.Echo)
	lambda.Start(adapter.ProxyWithContext)
}
