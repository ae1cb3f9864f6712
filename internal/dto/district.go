package dto

import "time"

// ── 区（Bezirk）DTO ──

// CreateDistrictRequest 创建区请求
type CreateDistrictRequest struct {
	Name        string  `json:"name"         binding:"required,districtname"`
	DisplayName string  `json:"display_name" binding:"omitempty,max=100"`
	Description string  `json:"description"  binding:"omitempty,max=2000"`
	SortOrder   int     `json:"sort_order"   binding:"gte=0"`
	TotalArea   float64 `json:"total_area"   binding:"gte=0"`
	Status      string  `json:"status"       binding:"omitempty,oneof=active inactive archived"`
	CreatedBy   string  `json:"created_by"`
}

// UpdateDistrictRequest 更新区请求（仅更新提供的字段）
type UpdateDistrictRequest struct {
	Name        *string  `json:"name"         binding:"omitempty,districtname"`
	DisplayName *string  `json:"display_name" binding:"omitempty,max=100"`
	Description *string  `json:"description"  binding:"omitempty,max=2000"`
	SortOrder   *int     `json:"sort_order"   binding:"omitempty,gte=0"`
	TotalArea   *float64 `json:"total_area"   binding:"omitempty,gte=0"`
	Status      *string  `json:"status"       binding:"omitempty,oneof=active inactive archived"`
	UpdatedBy   string   `json:"updated_by"`
}

// ChangeDistrictStatusRequest 区状态变更请求
type ChangeDistrictStatusRequest struct {
	Status    string `json:"status"     binding:"required,oneof=active inactive archived"`
	ChangedBy string `json:"changed_by"`
}

// DistrictListRequest 区列表查询参数
type DistrictListRequest struct {
	PaginationRequest
	Search            string   `form:"search"             json:"search"`
	Status            string   `form:"status"             json:"status"   binding:"omitempty,oneof=active inactive archived"`
	IsActive          *bool    `form:"is_active"          json:"is_active"`
	MinArea           *float64 `form:"min_area"           json:"min_area" binding:"omitempty,gte=0"`
	MaxArea           *float64 `form:"max_area"           json:"max_area" binding:"omitempty,gte=0"`
	IncludeStatistics bool     `form:"include_statistics" json:"include_statistics"`
}

// DistrictResponse 区信息响应
type DistrictResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	DisplayName string             `json:"display_name,omitempty"`
	Label       string             `json:"label"`
	Description string             `json:"description,omitempty"`
	SortOrder   int                `json:"sort_order"`
	TotalArea   float64            `json:"total_area"`
	Status      string             `json:"status"`
	StatusText  string             `json:"status_text"`
	PlotCount   int                `json:"plot_count"`
	Statistics  *DistrictPlotStats `json:"statistics,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	CreatedBy   string             `json:"created_by,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
	UpdatedBy   string             `json:"updated_by,omitempty"`
}

// DistrictPlotStats 列表中附带的地块统计
type DistrictPlotStats struct {
	TotalPlots    int64 `json:"total_plots"`
	AssignedPlots int64 `json:"assigned_plots"`
}

// DistrictStatisticsResponse 单区统计快照
type DistrictStatisticsResponse struct {
	DistrictID          string           `json:"district_id"`
	Name                string           `json:"name"`
	TotalPlots          int64            `json:"total_plots"`
	PlotsByStatus       map[string]int64 `json:"plots_by_status"`
	TotalPlotArea       float64          `json:"total_plot_area"`
	AssignedArea        float64          `json:"assigned_area"`
	OccupancyRate       float64          `json:"occupancy_rate"`
	WaitingApplications int64            `json:"waiting_applications"`
	GeneratedAt         time.Time        `json:"generated_at"`
}

// DistrictDeleteResult 删除结果：物理删除或归档
type DistrictDeleteResult struct {
	ID       string `json:"id"`
	Deleted  bool   `json:"deleted"`
	Archived bool   `json:"archived"`
}
