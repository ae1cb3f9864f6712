package dto

import "time"

// ── 申请（Antrag）DTO ──

// PersonNameInput 姓名输入
type PersonNameInput struct {
	Salutation string     `json:"salutation" binding:"omitempty,oneof=herr frau divers familie"`
	Title      string     `json:"title"      binding:"omitempty,max=50"`
	FirstName  string     `json:"first_name" binding:"omitempty,max=100"`
	LastName   string     `json:"last_name"  binding:"required,max=100"`
	BirthDate  *time.Time `json:"birth_date"`
}

// CreateApplicationRequest 创建申请请求；PersonID 为空时生成新的申请人标识
type CreateApplicationRequest struct {
	PersonID            string           `json:"person_id"`
	DistrictID          string           `json:"district_id"            binding:"required"`
	Applicant           PersonNameInput  `json:"applicant"`
	CoApplicant         *PersonNameInput `json:"co_applicant"`
	LetterSalutation    string           `json:"letter_salutation"      binding:"omitempty,max=200"`
	Street              string           `json:"street"                 binding:"omitempty,max=200"`
	PostalCode          string           `json:"postal_code"            binding:"omitempty,len=5,numeric"`
	City                string           `json:"city"                   binding:"omitempty,max=100"`
	Phone               string           `json:"phone"                  binding:"omitempty,max=50"`
	MobilePhone         string           `json:"mobile_phone"           binding:"omitempty,max=50"`
	MobilePhone2        string           `json:"mobile_phone_2"         binding:"omitempty,max=50"`
	BusinessPhone       string           `json:"business_phone"         binding:"omitempty,max=50"`
	Email               string           `json:"email"                  binding:"omitempty,max=255"`
	ApplicationDate     *time.Time       `json:"application_date"`
	WaitingListNumber32 string           `json:"waiting_list_number_32" binding:"omitempty,max=20"`
	WaitingListNumber33 string           `json:"waiting_list_number_33" binding:"omitempty,max=20"`
	Preferences         string           `json:"preferences"            binding:"omitempty,max=2000"`
	Remarks             string           `json:"remarks"                binding:"omitempty,max=4000"`
	CreatedBy           string           `json:"created_by"`
}

// UpdateApplicationRequest 更新申请请求（仅更新提供的字段）
type UpdateApplicationRequest struct {
	LetterSalutation    *string `json:"letter_salutation"      binding:"omitempty,max=200"`
	Street              *string `json:"street"                 binding:"omitempty,max=200"`
	PostalCode          *string `json:"postal_code"            binding:"omitempty,max=5"`
	City                *string `json:"city"                   binding:"omitempty,max=100"`
	Phone               *string `json:"phone"                  binding:"omitempty,max=50"`
	MobilePhone         *string `json:"mobile_phone"           binding:"omitempty,max=50"`
	MobilePhone2        *string `json:"mobile_phone_2"         binding:"omitempty,max=50"`
	BusinessPhone       *string `json:"business_phone"         binding:"omitempty,max=50"`
	Email               *string `json:"email"                  binding:"omitempty,max=255"`
	WaitingListNumber32 *string `json:"waiting_list_number_32" binding:"omitempty,max=20"`
	WaitingListNumber33 *string `json:"waiting_list_number_33" binding:"omitempty,max=20"`
	Preferences         *string `json:"preferences"            binding:"omitempty,max=2000"`
	Remarks             *string `json:"remarks"                binding:"omitempty,max=4000"`
	UpdatedBy           string  `json:"updated_by"`
}

// ChangeApplicationStatusRequest 申请状态变更请求
type ChangeApplicationStatusRequest struct {
	Status     string `json:"status"      binding:"required,oneof=received in_progress queued offer_made accepted rejected completed cancelled deactivated"`
	Note       string `json:"note"        binding:"omitempty,max=2000"`
	CaseWorker string `json:"case_worker" binding:"omitempty,max=100"`
	ChangedBy  string `json:"changed_by"`
}

// AddHistoryEntryRequest 追加历史记录请求
type AddHistoryEntryRequest struct {
	Kind       string     `json:"kind"        binding:"required,oneof=application_received confirmation_sent offer_made offer_accepted offer_rejected inspection contract_created completed note"`
	OccurredAt *time.Time `json:"occurred_at"`
	Gemarkung  string     `json:"gemarkung"   binding:"omitempty,max=100"`
	Flur       string     `json:"flur"        binding:"omitempty,max=50"`
	Parcel     string     `json:"parcel"      binding:"omitempty,max=50"`
	SizeInfo   string     `json:"size_info"   binding:"omitempty,max=50"`
	CaseWorker string     `json:"case_worker" binding:"omitempty,max=100"`
	Note       string     `json:"note"        binding:"omitempty,max=4000"`
	Comment    string     `json:"comment"     binding:"omitempty,max=4000"`
	CreatedBy  string     `json:"created_by"`
}

// ApplicationListRequest 申请列表查询参数
type ApplicationListRequest struct {
	PaginationRequest
	Search         string `form:"search"          json:"search"`
	Status         string `form:"status"          json:"status" binding:"omitempty,oneof=received in_progress queued offer_made accepted rejected completed cancelled deactivated"`
	DistrictID     string `form:"district_id"     json:"district_id" binding:"omitempty,uuid"`
	PersonID       string `form:"person_id"       json:"person_id"   binding:"omitempty,uuid"`
	IncludeDeleted bool   `form:"include_deleted" json:"include_deleted"`
}

// ApplicationResponse 申请信息响应（值对象已展开）
type ApplicationResponse struct {
	ID                  string     `json:"id"`
	PersonID            string     `json:"person_id"`
	DistrictID          string     `json:"district_id"`
	FileReference       string     `json:"file_reference,omitempty"`
	EntryNumber         string     `json:"entry_number,omitempty"`
	WaitingListNumber32 string     `json:"waiting_list_number_32,omitempty"`
	WaitingListNumber33 string     `json:"waiting_list_number_33,omitempty"`
	Salutation          string     `json:"salutation,omitempty"`
	SalutationText      string     `json:"salutation_text,omitempty"`
	Title               string     `json:"title,omitempty"`
	FirstName           string     `json:"first_name,omitempty"`
	LastName            string     `json:"last_name"`
	BirthDate           *time.Time `json:"birth_date,omitempty"`
	FullName            string     `json:"full_name"`
	CoSalutation        string     `json:"co_salutation,omitempty"`
	CoSalutationText    string     `json:"co_salutation_text,omitempty"`
	CoTitle             string     `json:"co_title,omitempty"`
	CoFirstName         string     `json:"co_first_name,omitempty"`
	CoLastName          string     `json:"co_last_name,omitempty"`
	CoBirthDate         *time.Time `json:"co_birth_date,omitempty"`
	DisplayName         string     `json:"display_name"`
	LetterSalutation    string     `json:"letter_salutation"`
	Street              string     `json:"street,omitempty"`
	PostalCode          string     `json:"postal_code,omitempty"`
	City                string     `json:"city,omitempty"`
	AddressLine         string     `json:"address_line,omitempty"`
	Phone               string     `json:"phone,omitempty"`
	MobilePhone         string     `json:"mobile_phone,omitempty"`
	MobilePhone2        string     `json:"mobile_phone_2,omitempty"`
	BusinessPhone       string     `json:"business_phone,omitempty"`
	Email               string     `json:"email,omitempty"`
	ApplicationDate     time.Time  `json:"application_date"`
	ConfirmationDate    *time.Time `json:"confirmation_date,omitempty"`
	CurrentOfferDate    *time.Time `json:"current_offer_date,omitempty"`
	DeactivatedAt       *time.Time `json:"deactivated_at,omitempty"`
	Preferences         string     `json:"preferences,omitempty"`
	Remarks             string     `json:"remarks,omitempty"`
	Status              string     `json:"status"`
	StatusText          string     `json:"status_text"`
	AssignedPlotID      string     `json:"assigned_plot_id,omitempty"`
	Deleted             bool       `json:"deleted"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// HistoryEntryResponse 历史记录响应
type HistoryEntryResponse struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	Sequence      int       `json:"sequence"`
	Kind          string    `json:"kind"`
	KindText      string    `json:"kind_text"`
	OccurredAt    time.Time `json:"occurred_at"`
	Gemarkung     string    `json:"gemarkung,omitempty"`
	Flur          string    `json:"flur,omitempty"`
	Parcel        string    `json:"parcel,omitempty"`
	SizeInfo      string    `json:"size_info,omitempty"`
	CaseWorker    string    `json:"case_worker,omitempty"`
	Note          string    `json:"note,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// WaitingListEntry 等候名单条目
type WaitingListEntry struct {
	Position        int       `json:"position"`
	ApplicationID   string    `json:"application_id"`
	EntryNumber     string    `json:"entry_number"`
	FileReference   string    `json:"file_reference"`
	Name            string    `json:"name"`
	AddressLine     string    `json:"address_line"`
	ApplicationDate time.Time `json:"application_date"`
	Preferences     string    `json:"preferences,omitempty"`
}
