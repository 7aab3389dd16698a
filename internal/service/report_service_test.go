package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trainsmart-io/trainsmart-api/internal/dto"
	"github.com/trainsmart-io/trainsmart-api/internal/models"
	"github.com/trainsmart-io/trainsmart-api/internal/repository"
)

type mockReportRepo struct {
	rows    []repository.ComplianceSource
	buckets []repository.TrendBucket
}

func (m *mockReportRepo) ComplianceRows(ctx context.Context, groupBy, lineID, categoryID, moduleID string) ([]repository.ComplianceSource, error) {
	return m.rows, nil
}

func (m *mockReportRepo) Trend(ctx context.Context, since time.Time) ([]repository.TrendBucket, error) {
	return m.buckets, nil
}

type mockReportStorage struct {
	saved map[string][]byte
}

func (m *mockReportStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func strPtr(s string) *string { return &s }

func TestComplianceCountsDerivedStates(t *testing.T) {
	repo := &mockReportRepo{rows: []repository.ComplianceSource{
		{GroupID: "l1", GroupName: "Line A", Status: models.AssignmentStatusAssigned},
		{GroupID: "l1", GroupName: "Line A", Status: models.AssignmentStatusInProgress},
		{GroupID: "l1", GroupName: "Line A", Status: models.AssignmentStatusInProgress, CompletionID: strPtr("c1")},
		{GroupID: "l2", GroupName: "Line B", Status: models.AssignmentStatusInProgress, CompletionID: strPtr("c2"), SignoffID: strPtr("s2")},
		// stale stored enum carries no authority once evidence exists
		{GroupID: "l2", GroupName: "Line B", Status: models.AssignmentStatusAssigned, CompletionID: strPtr("c3"), SignoffID: strPtr("s3")},
	}}
	svc := NewReportService(repo, &mockReportStorage{}, mockSigner{}, &mockAudit{}, validator.New(), zap.NewNop(), ReportConfig{})

	report, err := svc.Compliance(context.Background(), dto.ComplianceFilter{GroupBy: "line"})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Overall.Total)
	assert.Equal(t, 1, report.Overall.NotStarted)
	assert.Equal(t, 1, report.Overall.InProgress)
	assert.Equal(t, 1, report.Overall.AwaitingSignoff)
	assert.Equal(t, 2, report.Overall.Approved)

	require.Len(t, report.Rows, 2)
	assert.Equal(t, "Line A", report.Rows[0].GroupName)
	assert.Equal(t, 3, report.Rows[0].Counts.Total)
	assert.Equal(t, "Line B", report.Rows[1].GroupName)
	assert.Equal(t, 2, report.Rows[1].Counts.Approved)
}

func TestComplianceUnknownGroupByFallsBackToLine(t *testing.T) {
	svc := NewReportService(&mockReportRepo{}, &mockReportStorage{}, mockSigner{}, &mockAudit{}, validator.New(), zap.NewNop(), ReportConfig{})

	report, err := svc.Compliance(context.Background(), dto.ComplianceFilter{GroupBy: "nonsense"})
	require.NoError(t, err)
	assert.Equal(t, "line", report.GroupBy)
}

func TestTrendFormatsMonths(t *testing.T) {
	repo := &mockReportRepo{buckets: []repository.TrendBucket{
		{Month: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), Completions: 4, Signoffs: 3},
		{Month: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), Completions: 6, Signoffs: 5},
	}}
	svc := NewReportService(repo, &mockReportStorage{}, mockSigner{}, &mockAudit{}, validator.New(), zap.NewNop(), ReportConfig{})

	points, err := svc.Trend(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2026-07", points[0].Month)
	assert.Equal(t, 6, points[1].Completions)
}

func TestExportStoresFileAndSignsURL(t *testing.T) {
	repo := &mockReportRepo{rows: []repository.ComplianceSource{
		{GroupID: "l1", GroupName: "Line A", Status: models.AssignmentStatusAssigned},
	}}
	storage := &mockReportStorage{}
	audit := &mockAudit{}
	svc := NewReportService(repo, storage, mockSigner{}, audit, validator.New(), zap.NewNop(), ReportConfig{})

	res, err := svc.Export(context.Background(), claimsFor("manager-1", models.RoleManager), dto.ExportRequest{Format: "csv", GroupBy: "line"}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/downloads/signed-token", res.URL)
	assert.Equal(t, "csv", res.Format)
	assert.Len(t, storage.saved, 1)
	assert.Contains(t, audit.actions(), models.AuditActionReportExport)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewReportService(&mockReportRepo{}, &mockReportStorage{}, mockSigner{}, &mockAudit{}, validator.New(), zap.NewNop(), ReportConfig{})

	_, err := svc.Export(context.Background(), claimsFor("manager-1", models.RoleManager), dto.ExportRequest{Format: "xlsx"}, RequestMeta{})
	require.Error(t, err)
}
