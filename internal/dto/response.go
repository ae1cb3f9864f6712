package dto

import "kgv/backend/internal/spec"

// PaginationRequest 通用分页与排序参数
type PaginationRequest struct {
	Page     int    `form:"page"      json:"page"`
	PageSize int    `form:"page_size" json:"page_size"`
	SortBy   string `form:"sort_by"   json:"sort_by"`
	SortDir  string `form:"sort_dir"  json:"sort_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// PageWindow 获取分页窗口（页码 < 1 → 1，每页 < 1 → 20，> 100 → 100）
func (p PaginationRequest) PageWindow() spec.Page {
	return spec.NewPage(p.Page, p.PageSize)
}

// DeleteRequest 删除请求
type DeleteRequest struct {
	Force     bool   `json:"force"`
	DeletedBy string `json:"deleted_by"`
}
