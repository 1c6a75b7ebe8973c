// Package scheduler
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	businessflow "github.com/scrapeflow/scrapeflow-api/business_flow"
	"github.com/scrapeflow/scrapeflow-api/config"
)

// CampaignPoller periodically reconciles running campaigns against their
// provider runs so terminal states are reached even when no client polls.
type CampaignPoller struct {
	campaignFlow businessflow.CampaignFlow
	logger       *log.Logger
	interval     time.Duration
	batchSize    int
}

// NewCampaignPoller creates a new campaign poller
func NewCampaignPoller(campaignFlow businessflow.CampaignFlow, cfg config.SchedulerConfig) *CampaignPoller {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	p := &CampaignPoller{
		campaignFlow: campaignFlow,
		interval:     interval,
		batchSize:    batchSize,
	}
	p.initPollerLogger(cfg.LogPath)

	return p
}

// initPollerLogger configures a logger that writes to both stdout and a
// rotated persistent file
func (p *CampaignPoller) initPollerLogger(logPath string) {
	if logPath == "" {
		p.logger = log.New(os.Stdout, "poller ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	mw := io.MultiWriter(os.Stdout, rotator)
	p.logger = log.New(mw, "poller ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the poller loop in a background goroutine and returns a stop function
func (p *CampaignPoller) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (p *CampaignPoller) runOnce(ctx context.Context) {
	reconciled, err := p.campaignFlow.ReconcileRunningCampaigns(ctx, p.batchSize)
	if err != nil {
		p.logger.Printf("poller: reconcile pass failed: %v", err)
		return
	}
	if reconciled > 0 {
		p.logger.Printf("poller: reconciled %d running campaigns", reconciled)
	}
}
