package model

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks how much of the order has been paid.
type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "unpaid"
	PaymentStatusPartial   PaymentStatus = "partial"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// orderTransitions is the allowed state machine. Completed and refunded are
// terminal except for completed -> refunded.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusCompleted:  {OrderStatusRefunded},
	// A failed payment is retryable; a later successful one completes.
	OrderStatusFailed:     {OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted},
	OrderStatusRefunded:   {},
	OrderStatusCancelled:  {},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Order is a purchase of one or more courses, optionally paid in
// installments.
type Order struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderNumber string `gorm:"uniqueIndex;not null;type:varchar(32)" json:"order_number"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`

	Status        OrderStatus   `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);default:'unpaid'" json:"payment_status"`
	PaymentMethod string        `gorm:"type:varchar(30)" json:"payment_method,omitempty"`

	Subtotal       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"tax_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	Currency       string          `gorm:"type:varchar(3);default:'BDT'" json:"currency"`

	CouponID   *uuid.UUID `gorm:"type:uuid" json:"coupon_id,omitempty"`
	CouponCode string     `gorm:"type:varchar(50)" json:"coupon_code,omitempty"`

	// Billing details, snapshotted at checkout.
	BillingName     string `gorm:"type:varchar(100)" json:"billing_name"`
	BillingEmail    string `gorm:"type:varchar(100)" json:"billing_email"`
	BillingPhone    string `gorm:"type:varchar(20)" json:"billing_phone"`
	BillingAddress  string `gorm:"type:varchar(255)" json:"billing_address"`
	BillingCity     string `gorm:"type:varchar(50);default:'Dhaka'" json:"billing_city"`
	BillingCountry  string `gorm:"type:varchar(50);default:'Bangladesh'" json:"billing_country"`
	BillingPostcode string `gorm:"type:varchar(10);default:'1207'" json:"billing_postcode"`

	// Installment bookkeeping. NextInstallmentDate is nil until the first
	// installment is paid and after the last one.
	IsInstallment       bool       `gorm:"default:false" json:"is_installment"`
	InstallmentPlan     int        `gorm:"default:0" json:"installment_plan,omitempty"`
	InstallmentsPaid    int        `gorm:"default:0" json:"installments_paid"`
	NextInstallmentDate *time.Time `json:"next_installment_date,omitempty"`

	// Custom payments are staff-created orders with free-form pricing.
	IsCustomPayment bool   `gorm:"default:false" json:"is_custom_payment"`
	Description     string `gorm:"type:text" json:"description,omitempty"`

	Notes       string     `gorm:"type:text" json:"notes,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Items        []OrderItem        `gorm:"foreignKey:OrderID" json:"items"`
	Installments []OrderInstallment `gorm:"foreignKey:OrderID" json:"installments,omitempty"`
	Coupon       *Coupon            `gorm:"foreignKey:CouponID" json:"-"`
	User         User               `gorm:"foreignKey:UserID" json:"-"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.OrderNumber == "" {
		o.OrderNumber = GenerateOrderNumber(time.Now())
	}
	return nil
}

// TableName specifies the table name for Order
func (Order) TableName() string {
	return "orders"
}

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateOrderNumber builds an order number of the form ORD-YYYYMMDD-XXXXX
// with a random 5-character suffix. Uniqueness is enforced by the database
// index; callers retry on collision.
func GenerateOrderNumber(now time.Time) string {
	suffix := make([]byte, 5)
	max := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			suffix[i] = orderNumberAlphabet[int(now.UnixNano())%len(orderNumberAlphabet)]
			continue
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), string(suffix))
}

// Transition moves the order to a new status, enforcing the lifecycle table
// and stamping completion/cancellation times.
func (o *Order) Transition(to OrderStatus) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("invalid order status transition: %s -> %s", o.Status, to)
	}
	if o.Status == to {
		return nil
	}
	o.Status = to
	now := time.Now()
	switch to {
	case OrderStatusCompleted:
		o.CompletedAt = &now
	case OrderStatusCancelled:
		o.CancelledAt = &now
	}
	return nil
}

// IsFullyPaid reports whether nothing further is owed on the order.
func (o *Order) IsFullyPaid() bool {
	if o.IsInstallment {
		return o.InstallmentsPaid >= o.InstallmentPlan
	}
	return o.Status == OrderStatusCompleted
}

// CanBeCancelled reports whether the user may still cancel.
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

// RemainingAmount is the unpaid portion of an installment order.
func (o *Order) RemainingAmount() decimal.Decimal {
	if !o.IsInstallment {
		if o.Status == OrderStatusCompleted {
			return decimal.Zero
		}
		return o.TotalAmount
	}
	remaining := decimal.Zero
	for _, inst := range o.Installments {
		if inst.Status != InstallmentStatusPaid {
			remaining = remaining.Add(inst.Amount)
		}
	}
	return remaining
}

// NextPendingInstallment returns the earliest unpaid installment, or nil.
func (o *Order) NextPendingInstallment() *OrderInstallment {
	var next *OrderInstallment
	for i := range o.Installments {
		inst := &o.Installments[i]
		if inst.Status == InstallmentStatusPaid {
			continue
		}
		if next == nil || inst.InstallmentNumber < next.InstallmentNumber {
			next = inst
		}
	}
	return next
}

// OrderItem is a single course line on an order with its price snapshotted
// at checkout.
type OrderItem struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	OrderID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"order_id"`
	CourseID  uuid.UUID      `gorm:"type:uuid;not null" json:"course_id"`
	BatchID   *uuid.UUID     `gorm:"type:uuid" json:"batch_id,omitempty"`

	CourseTitle string          `gorm:"type:varchar(200);not null" json:"course_title"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	Quantity    int             `gorm:"default:1" json:"quantity"`

	Course Course       `gorm:"foreignKey:CourseID" json:"-"`
	Batch  *CourseBatch `gorm:"foreignKey:BatchID" json:"-"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for OrderItem
func (OrderItem) TableName() string {
	return "order_items"
}

// Total is price times quantity.
func (i *OrderItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// InstallmentStatus is the payment state of one installment.
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
	InstallmentStatusFailed  InstallmentStatus = "failed"
)

// OrderInstallment is one scheduled payment on an installment order.
type OrderInstallment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	OrderID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_order_installment_number" json:"order_id"`

	InstallmentNumber int               `gorm:"not null;uniqueIndex:idx_order_installment_number" json:"installment_number"`
	Amount            decimal.Decimal   `gorm:"type:numeric(10,2);not null" json:"amount"`
	DueDate           time.Time         `gorm:"not null;index" json:"due_date"`
	Status            InstallmentStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	PaidAt        *time.Time `json:"paid_at,omitempty"`
	PaymentID     string     `gorm:"type:varchar(255)" json:"payment_id,omitempty"`
	PaymentMethod string     `gorm:"type:varchar(30)" json:"payment_method,omitempty"`

	GatewayTransactionID string         `gorm:"type:varchar(255)" json:"gateway_transaction_id,omitempty"`
	ExtraData            datatypes.JSON `gorm:"type:jsonb" json:"extra_data,omitempty"`

	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (i *OrderInstallment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for OrderInstallment
func (OrderInstallment) TableName() string {
	return "order_installments"
}

// IsOverdue reports whether the installment is unpaid past its due date.
func (i *OrderInstallment) IsOverdue(now time.Time) bool {
	return i.Status != InstallmentStatusPaid && now.After(i.DueDate)
}

// DaysUntilDue is negative when the installment is overdue.
func (i *OrderInstallment) DaysUntilDue(now time.Time) int {
	return int(i.DueDate.Sub(now) / (24 * time.Hour))
}

// TransactionStatus is the state of a gateway payment transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// PaymentTransaction is the immutable ledger of gateway payments. The
// unique gateway transaction ID makes webhook processing idempotent.
type PaymentTransaction struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	InstallmentID *uuid.UUID `gorm:"type:uuid" json:"installment_id,omitempty"`

	PaymentID            string          `gorm:"uniqueIndex;not null;type:varchar(255)" json:"payment_id"`
	GatewayTransactionID string          `gorm:"uniqueIndex;not null;type:varchar(255)" json:"gateway_transaction_id"`
	Amount               decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency             string          `gorm:"type:varchar(3);default:'BDT'" json:"currency"`
	PaymentMethod        string          `gorm:"type:varchar(30)" json:"payment_method"`

	Status          TransactionStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	GatewayResponse datatypes.JSON    `gorm:"type:jsonb" json:"gateway_response,omitempty"`

	Order       Order             `gorm:"foreignKey:OrderID" json:"-"`
	Installment *OrderInstallment `gorm:"foreignKey:InstallmentID" json:"-"`
}

func (t *PaymentTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for PaymentTransaction
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// BuildPaymentID derives the internal payment identifier for an
// installment payment on an order.
func BuildPaymentID(orderNumber string, installmentNumber int) string {
	return fmt.Sprintf("PAY-%s-%d-%s", orderNumber, installmentNumber, uuid.NewString()[:8])
}
