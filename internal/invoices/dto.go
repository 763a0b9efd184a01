package invoices

import "time"

type CreateInvoiceItemReq struct {
	Description string `json:"description" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"required,gte=1"`
	UnitPrice   string `json:"unit_price" validate:"required"`
}

type CreateInvoiceRequest struct {
	UserID      int64                  `json:"user_id" validate:"required,gt=0"`
	ClientName  string                 `json:"client_name" validate:"required"`
	ClientEmail string                 `json:"client_email" validate:"required,email"`
	EntityType  string                 `json:"entity_type" validate:"required,oneof=INDIVIDUAL CORPORATE"`
	IssueDate   time.Time              `json:"issue_date" validate:"required"`
	DueDate     time.Time              `json:"due_date" validate:"required"`
	Currency    string                 `json:"currency" validate:"required,len=3"`
	ApplyVAT    bool                   `json:"apply_vat"`
	ApplyWHT    bool                   `json:"apply_wht"`
	Items       []CreateInvoiceItemReq `json:"items" validate:"required,min=1,dive"`
	Channels    []PaymentChannel       `json:"channels,omitempty"`
}

type UpdateInvoiceRequest struct {
	ClientName  *string                 `json:"client_name,omitempty"`
	ClientEmail *string                 `json:"client_email,omitempty" validate:"omitempty,email"`
	DueDate     *time.Time              `json:"due_date,omitempty"`
	ApplyVAT    *bool                   `json:"apply_vat,omitempty"`
	ApplyWHT    *bool                   `json:"apply_wht,omitempty"`
	Items       *[]CreateInvoiceItemReq `json:"items,omitempty" validate:"omitempty,min=1,dive"`
	Channels    *[]PaymentChannel       `json:"channels,omitempty"`
}

type RecordPaymentRequest struct {
	Amount string     `json:"amount" validate:"required"`
	Date   *time.Time `json:"date,omitempty"`
	Note   *string    `json:"note,omitempty"`
}

type ListInvoicesRequest struct {
	UserID int64      `json:"user_id" validate:"required,gt=0"`
	Status *Status    `json:"status,omitempty"`
	From   *time.Time `json:"from,omitempty"`
	To     *time.Time `json:"to,omitempty"`
	Limit  int        `json:"limit" validate:"gte=0,lte=1000"`
	Offset int        `json:"offset" validate:"gte=0"`
}
