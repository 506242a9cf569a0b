package ui

import (
	"fmt"
	"net/http"
	"time"

	"supptrace/domain/core"
	"supptrace/domain/effect"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{
	"Supplement",
	"Status",
	"Bucket",
	"Metric",
	"Direction",
	"Effect Size",
	"Confidence",
	"Days On",
	"Days Off",
	"Days Excluded",
	"Generated",
}

// handleExport streams the user's latest reports as a spreadsheet
func (s *Server) handleExport(c *gin.Context) {
	userID, err := core.ParseUserID(c.Param("user_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	reports, err := s.reports.LatestReports(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	names := make(map[core.UserSupplementID]string)
	if sups, err := s.supplements.ListUserSupplements(c.Request.Context(), userID); err == nil {
		for _, sup := range sups {
			names[sup.ID] = sup.Name
		}
	}

	f, err := buildWorkbook(reports, names)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("supplement-reports-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		s.log.Error("export write failed for %s: %v", userID, err)
	}
}

func buildWorkbook(reports []effect.Report, names map[core.UserSupplementID]string) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Reports"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for col, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	for i, report := range reports {
		row := i + 2
		name := names[report.UserSupplementID]
		if name == "" {
			name = string(report.UserSupplementID)
		}
		values := []interface{}{
			name,
			string(report.Status),
			string(effect.BucketFor(report.Status)),
			report.PrimaryMetric,
			string(report.Direction),
			report.EffectSize,
			report.Confidence,
			report.SampleDaysOn,
			report.SampleDaysOff,
			report.DaysExcludedConfounds,
			report.CreatedAt.Time().Format("2006-01-02"),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}
