// Package scheduler contains background workers that keep campaign state current
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/pesaops/tillboard/app/dto"
	businessflow "github.com/pesaops/tillboard/business_flow"
	"github.com/pesaops/tillboard/config"
	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/repository"
)

// DeliveryRefresher periodically polls the gateway for delivery status of
// campaigns that still have messages in flight. It reuses the same refresh
// flow the HTTP endpoint calls, so a manual refresh and a scheduled one
// behave identically.
type DeliveryRefresher struct {
	campaignRepo repository.SMSCampaignRepository
	dispatchFlow businessflow.DispatchFlow
	logger       *log.Logger

	interval    time.Duration
	batchLimit  int
	campaignCap int
}

// NewDeliveryRefresher creates a new delivery refresher
func NewDeliveryRefresher(
	campaignRepo repository.SMSCampaignRepository,
	dispatchFlow businessflow.DispatchFlow,
	cfg config.SchedulerConfig,
	logger *log.Logger,
) *DeliveryRefresher {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	batchLimit := cfg.RefreshBatchLimit
	if batchLimit <= 0 {
		batchLimit = 20
	}
	campaignCap := cfg.CampaignsPerInterval
	if campaignCap <= 0 {
		campaignCap = 10
	}
	if logger == nil {
		logger = log.Default()
	}

	return &DeliveryRefresher{
		campaignRepo: campaignRepo,
		dispatchFlow: dispatchFlow,
		logger:       logger,
		interval:     interval,
		batchLimit:   batchLimit,
		campaignCap:  campaignCap,
	}
}

// Start launches the background loop and returns a stop function
func (s *DeliveryRefresher) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *DeliveryRefresher) runOnce(ctx context.Context) {
	campaigns, err := s.campaignRepo.ListByStatus(ctx, models.SMSCampaignStatusSending, s.campaignCap)
	if err != nil {
		s.logger.Printf("refresher: failed to list sending campaigns: %v", err)
		return
	}
	if len(campaigns) == 0 {
		return
	}

	metadata := businessflow.NewClientMetadata("127.0.0.1", "tillboard-scheduler")

	for _, campaign := range campaigns {
		if ctx.Err() != nil {
			return
		}

		limit := s.batchLimit
		req := &dto.RefreshCampaignRequest{
			UUID:  campaign.UUID.String(),
			Limit: &limit,
		}

		result, err := s.dispatchFlow.RefreshCampaign(ctx, req, metadata)
		if err != nil {
			s.logger.Printf("refresher: campaign %s refresh failed: %v", campaign.UUID, err)
			continue
		}

		if result.Checked > 0 {
			s.logger.Printf("refresher: campaign %s checked=%d delivered=%d failed=%d",
				campaign.UUID, result.Checked, result.Delivered, result.Failed)
		}
		for _, msg := range result.Errors {
			s.logger.Printf("refresher: campaign %s gateway error: %s", campaign.UUID, msg)
		}
	}
}
