package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/trainsmart-io/trainsmart-api/internal/dto"
	"github.com/trainsmart-io/trainsmart-api/internal/models"
	"github.com/trainsmart-io/trainsmart-api/internal/repository"
	appErrors "github.com/trainsmart-io/trainsmart-api/pkg/errors"
	"github.com/trainsmart-io/trainsmart-api/pkg/export"
)

type reportRepository interface {
	ComplianceRows(ctx context.Context, groupBy, lineID, categoryID, moduleID string) ([]repository.ComplianceSource, error)
	Trend(ctx context.Context, since time.Time) ([]repository.TrendBucket, error)
}

type reportStorage interface {
	Save(filename string, data []byte) (string, error)
}

// ReportConfig controls report rendering and retention.
type ReportConfig struct {
	StorageDir  string
	TrendMonths int
}

// ReportService aggregates compliance rollups. Counts are computed from the
// same evidence-based derivation the list views use, so a report can never
// disagree with what an employee sees on their own screen.
type ReportService struct {
	repo      reportRepository
	storage   reportStorage
	signer    materialURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
	config    ReportConfig
}

// NewReportService constructs the service.
func NewReportService(
	repo reportRepository,
	storage reportStorage,
	signer materialURLSigner,
	audit auditWriter,
	validate *validator.Validate,
	logger *zap.Logger,
	config ReportConfig,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TrendMonths <= 0 {
		config.TrendMonths = 12
	}
	return &ReportService{
		repo:      repo,
		storage:   storage,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		audit:     audit,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Compliance builds the status rollup grouped by line, category, module, or
// employee.
func (s *ReportService) Compliance(ctx context.Context, filter dto.ComplianceFilter) (*dto.ComplianceReport, error) {
	groupBy := normalizeGroupBy(filter.GroupBy)

	sources, err := s.repo.ComplianceRows(ctx, groupBy, filter.LineID, filter.CategoryID, filter.ModuleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load compliance data")
	}

	report := &dto.ComplianceReport{GroupBy: groupBy}
	groups := make(map[string]*dto.ComplianceRow)
	order := make([]string, 0)

	for _, src := range sources {
		state := deriveSourceState(src)
		addState(&report.Overall, state)

		row, ok := groups[src.GroupID]
		if !ok {
			row = &dto.ComplianceRow{GroupID: src.GroupID, GroupName: src.GroupName}
			groups[src.GroupID] = row
			order = append(order, src.GroupID)
		}
		addState(&row.Counts, state)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return groups[order[i]].GroupName < groups[order[j]].GroupName
	})
	for _, id := range order {
		report.Rows = append(report.Rows, *groups[id])
	}
	return report, nil
}

// Trend returns the monthly completion and sign-off series.
func (s *ReportService) Trend(ctx context.Context) ([]dto.TrendPoint, error) {
	since := time.Now().UTC().AddDate(0, -s.config.TrendMonths, 0)
	buckets, err := s.repo.Trend(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trend data")
	}

	points := make([]dto.TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, dto.TrendPoint{
			Month:       b.Month.Format("2006-01"),
			Completions: b.Completions,
			Signoffs:    b.Signoffs,
		})
	}
	return points, nil
}

// Export renders the compliance report to CSV or PDF, stores the file, and
// returns a signed download link.
func (s *ReportService) Export(ctx context.Context, actor *models.JWTClaims, req dto.ExportRequest, meta RequestMeta) (*dto.ExportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	report, err := s.Compliance(ctx, dto.ComplianceFilter{GroupBy: req.GroupBy})
	if err != nil {
		return nil, err
	}

	dataset := complianceDataset(report)
	var payload []byte
	switch req.Format {
	case "pdf":
		payload, err = s.pdf.Render(dataset, "Training Compliance Report")
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	filename := fmt.Sprintf("compliance-%s-%s.%s", report.GroupBy, time.Now().UTC().Format("20060102-150405"), req.Format)
	relPath := "reports/" + filename
	if _, err := s.storage.Save(relPath, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate("report-"+filename, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	s.writeAudit(ctx, actor, filename, meta, map[string]string{
		"group_by": report.GroupBy,
		"format":   req.Format,
	})

	return &dto.ExportResponse{
		URL:       downloadBasePath + token,
		Filename:  filename,
		Format:    req.Format,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *ReportService) writeAudit(ctx context.Context, actor *models.JWTClaims, resourceID string, meta RequestMeta, values map[string]string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	log := &models.AuditLog{
		Action:    models.AuditActionReportExport,
		Resource:  "report",
		NewValues: payload,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func normalizeGroupBy(raw string) string {
	switch raw {
	case repository.GroupByCategory, repository.GroupByModule, repository.GroupByEmployee:
		return raw
	default:
		return repository.GroupByLine
	}
}

func deriveSourceState(src repository.ComplianceSource) models.AssignmentState {
	detail := models.AssignmentDetail{
		Assignment:   models.Assignment{Status: src.Status},
		CompletionID: src.CompletionID,
		SignoffID:    src.SignoffID,
	}
	return models.DeriveDetailState(&detail)
}

func addState(counts *dto.StatusCounts, state models.AssignmentState) {
	counts.Total++
	switch state {
	case models.StateInProgress:
		counts.InProgress++
	case models.StateAwaitingSignoff:
		counts.AwaitingSignoff++
	case models.StateApproved:
		counts.Approved++
	default:
		counts.NotStarted++
	}
}

func complianceDataset(report *dto.ComplianceReport) export.Dataset {
	headers := []string{"Group", "Not Started", "In Progress", "Awaiting Sign-off", "Approved", "Total"}
	rows := make([]map[string]string, 0, len(report.Rows)+1)
	for _, r := range report.Rows {
		rows = append(rows, map[string]string{
			"Group":             r.GroupName,
			"Not Started":       fmt.Sprintf("%d", r.Counts.NotStarted),
			"In Progress":       fmt.Sprintf("%d", r.Counts.InProgress),
			"Awaiting Sign-off": fmt.Sprintf("%d", r.Counts.AwaitingSignoff),
			"Approved":          fmt.Sprintf("%d", r.Counts.Approved),
			"Total":             fmt.Sprintf("%d", r.Counts.Total),
		})
	}
	rows = append(rows, map[string]string{
		"Group":             "Overall",
		"Not Started":       fmt.Sprintf("%d", report.Overall.NotStarted),
		"In Progress":       fmt.Sprintf("%d", report.Overall.InProgress),
		"Awaiting Sign-off": fmt.Sprintf("%d", report.Overall.AwaitingSignoff),
		"Approved":          fmt.Sprintf("%d", report.Overall.Approved),
		"Total":             fmt.Sprintf("%d", report.Overall.Total),
	})
	return export.Dataset{Headers: headers, Rows: rows}
}
