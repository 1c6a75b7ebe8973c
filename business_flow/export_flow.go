// Package businessflow contains the core business logic and use cases for campaign result exports
package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	"github.com/scrapeflow/scrapeflow-api/models"
	"github.com/scrapeflow/scrapeflow-api/repository"
	"github.com/scrapeflow/scrapeflow-api/utils"
)

// Export formats accepted by ExportCampaign. "excel" is the client-facing
// name for the xlsx path.
const (
	ExportFormatXLSX  = "xlsx"
	ExportFormatExcel = "excel"
	ExportFormatCSV   = "csv"
)

// exportHeader is the column contract shared by both export formats
var exportHeader = []string{
	"Post ID",
	"Username",
	"Full Name",
	"Caption",
	"Likes Count",
	"Comments Count",
	"Post Type",
	"Sponsored",
	"Post URL",
	"Hashtags",
	"Date",
}

// ExportFlow renders a completed campaign's results as a downloadable file
type ExportFlow interface {
	ExportCampaign(ctx context.Context, req *dto.ExportCampaignRequest, metadata *ClientMetadata) (*dto.ExportCampaignResponse, error)
}

// ExportFlowImpl implements the export business flow
type ExportFlowImpl struct {
	campaignRepo repository.CampaignRepository
	auditRepo    repository.AuditLogRepository
	txRunner     repository.TxRunner
}

// NewExportFlow creates a new export flow instance
func NewExportFlow(
	campaignRepo repository.CampaignRepository,
	auditRepo repository.AuditLogRepository,
	txRunner repository.TxRunner,
) ExportFlow {
	return &ExportFlowImpl{
		campaignRepo: campaignRepo,
		auditRepo:    auditRepo,
		txRunner:     txRunner,
	}
}

// ExportCampaign builds an Excel or CSV file from the campaign's stored
// results. Only completed campaigns can be exported.
func (f *ExportFlowImpl) ExportCampaign(ctx context.Context, req *dto.ExportCampaignRequest, metadata *ClientMetadata) (*dto.ExportCampaignResponse, error) {
	campaign, err := getCampaign(ctx, f.campaignRepo, req.UUID, req.UserID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusCompleted {
		return nil, NewBusinessError("CAMPAIGN_NOT_COMPLETED", "Campaign has not completed yet", ErrCampaignNotCompleted)
	}

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = ExportFormatXLSX
	}

	var (
		fileName    string
		contentType string
		content     []byte
	)
	switch format {
	case ExportFormatXLSX, ExportFormatExcel:
		fileName = fmt.Sprintf("campaign_%s.xlsx", campaign.UUID.String())
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		content, err = buildExcel(campaign.ResultData)
	case ExportFormatCSV:
		fileName = fmt.Sprintf("campaign_%s.csv", campaign.UUID.String())
		contentType = "text/csv"
		content, err = buildCSV(campaign.ResultData)
	default:
		return nil, NewBusinessErrorf("EXPORT_FORMAT_INVALID", "Unsupported export format: %s", nil, req.Format)
	}
	if err != nil {
		return nil, NewBusinessError("EXPORT_BUILD_FAILED", "Failed to build export file", err)
	}

	// Bookkeeping only, failures do not block the download
	campaign.FilePath = utils.ToPtr(fileName)
	_ = f.txRunner.Run(ctx, func(txCtx context.Context) error {
		return f.campaignRepo.Update(txCtx, *campaign)
	})

	owner := &models.User{ID: campaign.UserID}
	msg := fmt.Sprintf("Campaign #%s exported as %s (%d posts)", campaign.UUID.String(), format, len(campaign.ResultData))
	_ = f.createAuditLog(ctx, owner, models.AuditActionCampaignExported, msg, true, nil, metadata)

	return &dto.ExportCampaignResponse{
		FileName:    fileName,
		ContentType: contentType,
		Content:     content,
	}, nil
}

func exportRecord(post models.ScrapeResult) []string {
	return []string{
		post.ID,
		post.OwnerUsername,
		post.OwnerFullName,
		post.Caption,
		strconv.FormatInt(post.LikesCount, 10),
		strconv.FormatInt(post.CommentsCount, 10),
		post.Type,
		strconv.FormatBool(post.IsSponsored),
		post.URL,
		strings.Join(post.Hashtags, ", "),
		post.Timestamp.UTC().Format(time.RFC3339),
	}
}

func buildCSV(results models.ScrapeResults) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, post := range results {
		if err := w.Write(exportRecord(post)); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildExcel(results models.ScrapeResults) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := xl.GetSheetName(0)
	if err := xl.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, err
	}

	for ri, post := range results {
		record := exportRecord(post)
		cellRef, err := excelize.CoordinatesToCellName(1, ri+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(sheet, cellRef, &record); err != nil {
			return nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *ExportFlowImpl) createAuditLog(ctx context.Context, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var userID *uint
	if user != nil && user.ID != 0 {
		userID = &user.ID
	}

	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return f.auditRepo.Save(ctx, audit)
}
