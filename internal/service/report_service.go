package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/policy"
	"github.com/ssn-coe/rcms-api/internal/repository"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
	"github.com/ssn-coe/rcms-api/pkg/export"
)

type yearStatsRepository interface {
	YearOverview(ctx context.Context, academicYear string) (*repository.OverviewCounts, error)
	YearCategoryBreakdown(ctx context.Context, academicYear string) ([]models.CategoryBreakdown, error)
	YearDepartmentRollup(ctx context.Context, academicYear string) ([]models.DepartmentStats, error)
}

// ReportService builds the annual compliance report and renders it as
// JSON, PDF, or CSV. Restricted to institution-wide viewers.
type ReportService struct {
	stats  yearStatsRepository
	pdf    *export.PDFExporter
	csv    *export.CSVExporter
	logger *zap.Logger
}

// NewReportService constructs a ReportService instance.
func NewReportService(stats yearStatsRepository, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		stats:  stats,
		pdf:    export.NewPDFExporter(),
		csv:    export.NewCSVExporter(),
		logger: logger,
	}
}

// Data assembles the report for one academic year. An empty year
// defaults to the current one.
func (s *ReportService) Data(ctx context.Context, viewer *models.JWTClaims, academicYear string) (*models.ReportData, error) {
	if !policy.CanManageUsers(viewer.Role) {
		return nil, appErrors.PermissionDeniedf("%s accounts cannot generate reports", viewer.Role)
	}
	if academicYear == "" {
		academicYear = currentAcademicYear(nowUTC())
	}

	counts, err := s.stats.YearOverview(ctx, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load year counts")
	}

	categories, err := s.stats.YearCategoryBreakdown(ctx, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category breakdown")
	}
	byCategory := make(map[string]models.CategoryBreakdown, len(categories))
	for _, row := range categories {
		byCategory[row.Category] = row
	}
	mergedCategories := make([]models.CategoryBreakdown, 0, len(models.Categories))
	for _, category := range models.Categories {
		row := models.CategoryBreakdown{Category: category}
		if found, ok := byCategory[category]; ok {
			row = found
		}
		mergedCategories = append(mergedCategories, row)
	}

	departments, err := s.stats.YearDepartmentRollup(ctx, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department rollup")
	}

	return &models.ReportData{
		AcademicYear:        academicYear,
		TotalCirculars:      counts.TotalCirculars,
		CompletedCirculars:  counts.CompletedCirculars,
		ActiveCirculars:     counts.ActiveCirculars,
		TotalSubmissions:    counts.TotalSubmissions,
		ApprovedSubmissions: counts.ApprovedSubmissions,
		RejectedSubmissions: counts.RejectedSubmissions,
		PendingSubmissions:  counts.PendingSubmissions,
		ComplianceRate:      complianceRate(counts.ApprovedSubmissions, counts.TotalSubmissions),
		Categories:          mergedCategories,
		Departments:         mergeDepartmentStats(departments),
	}, nil
}

// AnnualPDF renders the year report as a PDF document.
func (s *ReportService) AnnualPDF(ctx context.Context, viewer *models.JWTClaims, academicYear string) ([]byte, string, error) {
	data, err := s.Data(ctx, viewer, academicYear)
	if err != nil {
		return nil, "", err
	}

	doc := export.Document{
		Title:    "Annual Compliance Report",
		Subtitle: fmt.Sprintf("Academic Year %s", data.AcademicYear),
		Sections: []export.Section{
			overviewSection(data),
			categorySection(data.Categories),
			departmentSection(data.Departments),
		},
	}

	payload, err := s.pdf.Render(doc)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return payload, fmt.Sprintf("compliance-report-%s.pdf", data.AcademicYear), nil
}

// DepartmentPDF renders one department's slice of the year report.
func (s *ReportService) DepartmentPDF(ctx context.Context, viewer *models.JWTClaims, academicYear, department string) ([]byte, string, error) {
	if !models.ValidDepartment(department) {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unknown department")
	}

	data, err := s.Data(ctx, viewer, academicYear)
	if err != nil {
		return nil, "", err
	}

	var row models.DepartmentStats
	for _, d := range data.Departments {
		if d.Department == department {
			row = d
			break
		}
	}

	doc := export.Document{
		Title:    fmt.Sprintf("%s Compliance Report", department),
		Subtitle: fmt.Sprintf("Academic Year %s", data.AcademicYear),
		Sections: []export.Section{departmentSection([]models.DepartmentStats{row})},
	}

	payload, err := s.pdf.Render(doc)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return payload, fmt.Sprintf("compliance-report-%s-%s.pdf", department, data.AcademicYear), nil
}

// CSV renders the per-department rollup of the year report as CSV.
func (s *ReportService) CSV(ctx context.Context, viewer *models.JWTClaims, academicYear string) ([]byte, string, error) {
	data, err := s.Data(ctx, viewer, academicYear)
	if err != nil {
		return nil, "", err
	}

	payload, err := s.csv.Render(departmentSection(data.Departments).Data)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return payload, fmt.Sprintf("compliance-report-%s.csv", data.AcademicYear), nil
}

func overviewSection(data *models.ReportData) export.Section {
	headers := []string{"Metric", "Value"}
	rows := []map[string]string{
		{"Metric": "Total Circulars", "Value": strconv.Itoa(data.TotalCirculars)},
		{"Metric": "Completed Circulars", "Value": strconv.Itoa(data.CompletedCirculars)},
		{"Metric": "Active Circulars", "Value": strconv.Itoa(data.ActiveCirculars)},
		{"Metric": "Total Submissions", "Value": strconv.Itoa(data.TotalSubmissions)},
		{"Metric": "Approved Submissions", "Value": strconv.Itoa(data.ApprovedSubmissions)},
		{"Metric": "Rejected Submissions", "Value": strconv.Itoa(data.RejectedSubmissions)},
		{"Metric": "Pending Submissions", "Value": strconv.Itoa(data.PendingSubmissions)},
		{"Metric": "Compliance Rate", "Value": formatRate(data.ComplianceRate)},
	}
	return export.Section{Title: "Overview", Data: export.Dataset{Headers: headers, Rows: rows}}
}

func categorySection(categories []models.CategoryBreakdown) export.Section {
	headers := []string{"Category", "Total", "Completed", "Active", "Submissions", "Approved"}
	rows := make([]map[string]string, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, map[string]string{
			"Category":    c.Category,
			"Total":       strconv.Itoa(c.Total),
			"Completed":   strconv.Itoa(c.Completed),
			"Active":      strconv.Itoa(c.Active),
			"Submissions": strconv.Itoa(c.Submissions),
			"Approved":    strconv.Itoa(c.Approved),
		})
	}
	return export.Section{Title: "By Category", Data: export.Dataset{Headers: headers, Rows: rows}}
}

func departmentSection(departments []models.DepartmentStats) export.Section {
	headers := []string{"Department", "Users", "Submissions", "Approved", "Compliance Rate"}
	rows := make([]map[string]string, 0, len(departments))
	for _, d := range departments {
		rows = append(rows, map[string]string{
			"Department":      d.Department,
			"Users":           strconv.Itoa(d.UserCount),
			"Submissions":     strconv.Itoa(d.TotalSubmissions),
			"Approved":        strconv.Itoa(d.ApprovedSubmissions),
			"Compliance Rate": formatRate(d.ComplianceRate),
		})
	}
	return export.Section{Title: "By Department", Data: export.Dataset{Headers: headers, Rows: rows}}
}

func formatRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate)
}
