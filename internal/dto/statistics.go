package dto

import "time"

// OverviewResponse 全局统计快照
type OverviewResponse struct {
	DistrictsByStatus    map[string]int64 `json:"districts_by_status"`
	PlotsByStatus        map[string]int64 `json:"plots_by_status"`
	ApplicationsByStatus map[string]int64 `json:"applications_by_status"`
	WaitingListSize      int64            `json:"waiting_list_size"`
	TotalPlotArea        float64          `json:"total_plot_area"`
	AssignedArea         float64          `json:"assigned_area"`
	GeneratedAt          time.Time        `json:"generated_at"`
}
