package dto

import "time"

// ── 地块（Parzelle）DTO ──

// CreatePlotRequest 创建地块请求
type CreatePlotRequest struct {
	DistrictID     string   `json:"district_id"     binding:"required"`
	Number         string   `json:"number"          binding:"required,max=20"`
	Area           float64  `json:"area"            binding:"gte=0"`
	Price          *float64 `json:"price"           binding:"omitempty,gte=0"`
	HasWater       bool     `json:"has_water"`
	HasElectricity bool     `json:"has_electricity"`
	Priority       int      `json:"priority"        binding:"gte=0"`
	Description    string   `json:"description"     binding:"omitempty,max=2000"`
	Gemarkung      string   `json:"gemarkung"       binding:"omitempty,max=100"`
	Flur           string   `json:"flur"            binding:"omitempty,max=50"`
	CreatedBy      string   `json:"created_by"`
}

// UpdatePlotRequest 更新地块请求（仅更新提供的字段）
type UpdatePlotRequest struct {
	Number         *string  `json:"number"          binding:"omitempty,min=1,max=20"`
	Area           *float64 `json:"area"            binding:"omitempty,gte=0"`
	Price          *float64 `json:"price"           binding:"omitempty,gte=0"`
	HasWater       *bool    `json:"has_water"`
	HasElectricity *bool    `json:"has_electricity"`
	Priority       *int     `json:"priority"        binding:"omitempty,gte=0"`
	Description    *string  `json:"description"     binding:"omitempty,max=2000"`
	Gemarkung      *string  `json:"gemarkung"       binding:"omitempty,max=100"`
	Flur           *string  `json:"flur"            binding:"omitempty,max=50"`
	UpdatedBy      string   `json:"updated_by"`
}

// AssignPlotRequest 地块分配请求。PersonID 与 ApplicationID 必须且只能提供一个；
// Force 时 Reason 必填；AssignmentDate 须在 [当前-1年, 当前+30天] 内。
type AssignPlotRequest struct {
	PlotID         string     `json:"plot_id"         binding:"required"`
	PersonID       string     `json:"person_id"       binding:"omitempty,uuid"`
	ApplicationID  string     `json:"application_id"`
	AssignmentDate *time.Time `json:"assignment_date"`
	Notes          string     `json:"notes"           binding:"omitempty,max=2000"`
	Priority       *int       `json:"priority"        binding:"omitempty,gte=0"`
	Force          bool       `json:"force"`
	Reason         string     `json:"reason"          binding:"omitempty,max=500"`
	AssignedBy     string     `json:"assigned_by"`
}

// ChangePlotStatusRequest 地块状态变更请求
type ChangePlotStatusRequest struct {
	Status    string `json:"status"     binding:"required,oneof=available reserved unavailable under_development decommissioned pending_approval"`
	ChangedBy string `json:"changed_by"`
}

// PlotListRequest 地块列表查询参数
type PlotListRequest struct {
	PaginationRequest
	DistrictID     string   `form:"district_id"     json:"district_id" binding:"omitempty,uuid"`
	Status         string   `form:"status"          json:"status"   binding:"omitempty,oneof=available reserved assigned unavailable under_development decommissioned pending_approval"`
	Search         string   `form:"search"          json:"search"`
	MinArea        *float64 `form:"min_area"        json:"min_area" binding:"omitempty,gte=0"`
	MaxArea        *float64 `form:"max_area"        json:"max_area" binding:"omitempty,gte=0"`
	HasWater       *bool    `form:"has_water"       json:"has_water"`
	HasElectricity *bool    `form:"has_electricity" json:"has_electricity"`
}

// PlotResponse 地块信息响应
type PlotResponse struct {
	ID              string     `json:"id"`
	Number          string     `json:"number"`
	DistrictID      string     `json:"district_id"`
	DistrictName    string     `json:"district_name,omitempty"`
	Area            float64    `json:"area"`
	Price           *float64   `json:"price,omitempty"`
	HasWater        bool       `json:"has_water"`
	HasElectricity  bool       `json:"has_electricity"`
	Priority        int        `json:"priority"`
	Status          string     `json:"status"`
	StatusText      string     `json:"status_text"`
	Description     string     `json:"description,omitempty"`
	Gemarkung       string     `json:"gemarkung,omitempty"`
	Flur            string     `json:"flur,omitempty"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	AssignmentNotes string     `json:"assignment_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	UpdatedBy       string     `json:"updated_by,omitempty"`
}

// PlotAssignmentResponse 分配结果：地块与申请
type PlotAssignmentResponse struct {
	Plot          PlotResponse `json:"plot"`
	ApplicationID string       `json:"application_id"`
	Forced        bool         `json:"forced"`
}
