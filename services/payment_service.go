package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"academy-backend/model"
	"academy-backend/services/sslcommerz"
)

var (
	ErrOrderNotPayable      = errors.New("order is not in a payable state")
	ErrNothingToPay         = errors.New("order has no pending installment")
	ErrPaymentIDRequired    = errors.New("payment id is required")
	ErrPaymentIDTooLong     = errors.New("payment id exceeds 255 characters")
	ErrGatewayTranRequired  = errors.New("gateway transaction id is required")
	ErrDuplicatePaymentID   = errors.New("payment id already used by another installment")
	ErrWebhookFieldsMissing = errors.New("webhook requires tran_id and val_id")
)

// PaymentService drives gateway sessions and webhook settlement.
type PaymentService struct {
	db      *gorm.DB
	gateway sslcommerz.Gateway
	orders  *OrderService

	backendURL  string
	frontendURL string
}

// NewPaymentService creates a new payment service
func NewPaymentService(db *gorm.DB, gateway sslcommerz.Gateway, orders *OrderService, backendURL, frontendURL string) *PaymentService {
	return &PaymentService{
		db:          db,
		gateway:     gateway,
		orders:      orders,
		backendURL:  backendURL,
		frontendURL: frontendURL,
	}
}

// Gateway exposes the underlying gateway, used by handlers to verify
// callback credentials.
func (s *PaymentService) Gateway() sslcommerz.Gateway {
	return s.gateway
}

// RedirectURL builds the frontend redirect for a payment outcome.
func (s *PaymentService) RedirectURL(outcome, tranID string) string {
	return fmt.Sprintf("%s/payment/%s?tran_id=%s", s.frontendURL, outcome, tranID)
}

// InitiationResult is returned to the client to start the hosted checkout.
type InitiationResult struct {
	GatewayPageURL string          `json:"gateway_page_url"`
	SessionKey     string          `json:"session_key"`
	OrderNumber    string          `json:"order_number"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// InitiatePayment opens a gateway session for an order. Installment orders
// charge only the next pending installment; the order moves to processing.
func (s *PaymentService) InitiatePayment(ctx context.Context, order *model.Order, user *model.User) (*InitiationResult, error) {
	switch order.Status {
	case model.OrderStatusPending, model.OrderStatusProcessing, model.OrderStatusFailed:
	default:
		return nil, ErrOrderNotPayable
	}

	amount := order.TotalAmount
	paymentKind := "full"
	installmentNumber := ""
	if order.IsInstallment {
		next := order.NextPendingInstallment()
		if next == nil {
			return nil, ErrNothingToPay
		}
		amount = next.Amount
		paymentKind = "installment"
		installmentNumber = fmt.Sprintf("%d", next.InstallmentNumber)
	}

	productName := order.Description
	if productName == "" {
		if len(order.Items) > 0 {
			productName = order.Items[0].CourseTitle
		} else {
			productName = "Course purchase"
		}
	}

	session, err := s.gateway.InitiateSession(ctx, sslcommerz.SessionRequest{
		TransactionID:     order.OrderNumber,
		Amount:            amount,
		Currency:          order.Currency,
		SuccessURL:        s.backendURL + "/api/v1/payments/success",
		FailURL:           s.backendURL + "/api/v1/payments/fail",
		CancelURL:         s.backendURL + "/api/v1/payments/cancel",
		IPNURL:            s.backendURL + "/api/v1/payments/webhook",
		CustomerName:      order.BillingName,
		CustomerEmail:     order.BillingEmail,
		CustomerPhone:     order.BillingPhone,
		CustomerAddress:   order.BillingAddress,
		CustomerCity:      order.BillingCity,
		CustomerCountry:   order.BillingCountry,
		ProductName:       productName,
		OrderID:           order.ID.String(),
		UserID:            fmt.Sprintf("%d", user.ID),
		PaymentKind:       paymentKind,
		OrderNumber:       order.OrderNumber,
		InstallmentNumber: installmentNumber,
		InstallmentAmount: amount.StringFixed(2),
	})
	if err != nil {
		return nil, err
	}

	// Failed orders re-enter processing on retry
	if order.Status == model.OrderStatusPending || order.Status == model.OrderStatusFailed {
		if err := order.Transition(model.OrderStatusProcessing); err != nil {
			return nil, err
		}
	}
	order.PaymentMethod = "ssl_commerce"
	if err := s.db.WithContext(ctx).Save(order).Error; err != nil {
		return nil, err
	}

	return &InitiationResult{
		GatewayPageURL: session.GatewayPageURL,
		SessionKey:     session.SessionKey,
		OrderNumber:    order.OrderNumber,
		Amount:         amount,
		Currency:       order.Currency,
	}, nil
}

// markInstallmentPaid settles one installment inside the caller's
// transaction. Already-paid installments are a no-op; a payment id reused
// across other installments is rejected. The order's paid counter is
// incremented atomically in SQL.
func (s *PaymentService) markInstallmentPaid(tx *gorm.DB, order *model.Order, installment *model.OrderInstallment, paymentID, method, gatewayTranID string) error {
	if installment.Status == model.InstallmentStatusPaid {
		return nil
	}
	if paymentID == "" {
		return ErrPaymentIDRequired
	}
	if len(paymentID) > 255 {
		return ErrPaymentIDTooLong
	}
	if gatewayTranID == "" {
		return ErrGatewayTranRequired
	}

	var duplicates int64
	err := tx.Model(&model.OrderInstallment{}).
		Where("payment_id = ? AND id <> ?", paymentID, installment.ID).
		Count(&duplicates).Error
	if err != nil {
		return err
	}
	if duplicates > 0 {
		return ErrDuplicatePaymentID
	}

	now := time.Now()
	installment.Status = model.InstallmentStatusPaid
	installment.PaidAt = &now
	installment.PaymentID = paymentID
	installment.PaymentMethod = method
	installment.GatewayTransactionID = gatewayTranID
	if err := tx.Save(installment).Error; err != nil {
		return err
	}

	err = tx.Model(&model.Order{}).
		Where("id = ?", order.ID).
		UpdateColumn("installments_paid", gorm.Expr("installments_paid + ?", 1)).Error
	if err != nil {
		return err
	}
	if err := tx.First(order, "id = ?", order.ID).Error; err != nil {
		return err
	}

	if order.InstallmentsPaid >= order.InstallmentPlan {
		order.NextInstallmentDate = nil
		if err := s.orders.MarkOrderCompleted(tx, order); err != nil {
			return err
		}
	} else {
		var nextDue time.Time
		err := tx.Model(&model.OrderInstallment{}).
			Where("order_id = ? AND status <> ?", order.ID, model.InstallmentStatusPaid).
			Select("MIN(due_date)").
			Scan(&nextDue).Error
		if err != nil {
			return err
		}
		order.NextInstallmentDate = &nextDue
		if err := tx.Save(order).Error; err != nil {
			return err
		}
	}

	return nil
}

// recordTransaction appends to the payment ledger, tolerating redelivery:
// an existing row for the gateway transaction is returned unchanged.
func (s *PaymentService) recordTransaction(tx *gorm.DB, order *model.Order, installment *model.OrderInstallment, validation *sslcommerz.ValidationResponse) (*model.PaymentTransaction, error) {
	var existing model.PaymentTransaction
	err := tx.Where("gateway_transaction_id = ?", validation.ValID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	amount, err := decimal.NewFromString(validation.Amount)
	if err != nil {
		return nil, fmt.Errorf("transaction amount %q: %w", validation.Amount, err)
	}

	installmentNumber := 0
	transaction := model.PaymentTransaction{
		OrderID:              order.ID,
		GatewayTransactionID: validation.ValID,
		Amount:               amount,
		Currency:             order.Currency,
		PaymentMethod:        "ssl_commerce",
		Status:               model.TransactionStatusCompleted,
	}
	if installment != nil {
		transaction.InstallmentID = &installment.ID
		installmentNumber = installment.InstallmentNumber
	}
	transaction.PaymentID = model.BuildPaymentID(order.OrderNumber, installmentNumber)

	if raw, err := json.Marshal(validation); err == nil {
		transaction.GatewayResponse = datatypes.JSON(raw)
	}

	if err := tx.Create(&transaction).Error; err != nil {
		if IsUniqueViolation(err) {
			// Concurrent delivery won; fetch its row
			if ferr := tx.Where("gateway_transaction_id = ?", validation.ValID).First(&existing).Error; ferr == nil {
				return &existing, nil
			}
		}
		return nil, err
	}
	return &transaction, nil
}

// WebhookResult reports what a webhook delivery did.
type WebhookResult struct {
	OrderNumber      string             `json:"order_number"`
	Status           model.OrderStatus  `json:"status"`
	InstallmentsPaid int                `json:"installments_paid"`
	FullyPaid        bool               `json:"fully_paid"`
	Duplicate        bool               `json:"duplicate"`
}

// ProcessWebhook settles an order payment from a gateway notification. The
// whole flow runs in one transaction with the order row locked, so
// concurrent deliveries of the same notification serialize and the second
// one sees the already-settled state and no-ops. The gateway validation
// call, not the notification payload, is what is trusted.
func (s *PaymentService) ProcessWebhook(ctx context.Context, tranID, valID string) (*WebhookResult, error) {
	if tranID == "" || valID == "" {
		return nil, ErrWebhookFieldsMissing
	}

	var result WebhookResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_number = ?", tranID).
			First(&order).Error
		if err != nil {
			return err
		}

		expected := order.TotalAmount
		var installment *model.OrderInstallment
		if order.IsInstallment {
			if err := tx.Where("order_id = ?", order.ID).
				Order("installment_number ASC").
				Find(&order.Installments).Error; err != nil {
				return err
			}
			installment = order.NextPendingInstallment()
			if installment == nil {
				// Everything already settled; duplicate delivery
				result = WebhookResult{
					OrderNumber:      order.OrderNumber,
					Status:           order.Status,
					InstallmentsPaid: order.InstallmentsPaid,
					FullyPaid:        order.IsFullyPaid(),
					Duplicate:        true,
				}
				return nil
			}
			expected = installment.Amount
		} else if order.Status == model.OrderStatusCompleted {
			result = WebhookResult{
				OrderNumber:      order.OrderNumber,
				Status:           order.Status,
				FullyPaid:        true,
				Duplicate:        true,
			}
			return nil
		}

		validation, err := s.gateway.ValidatePayment(ctx, valID, expected)
		if err != nil {
			// The gateway rejected the payment; record the failure on the
			// order but report success to stop redelivery.
			if errors.Is(err, sslcommerz.ErrValidationFailed) || errors.Is(err, sslcommerz.ErrAmountMismatch) {
				if terr := order.Transition(model.OrderStatusFailed); terr == nil {
					if serr := tx.Save(&order).Error; serr != nil {
						return serr
					}
				}
				if installment != nil && installment.Status == model.InstallmentStatusPending {
					installment.Status = model.InstallmentStatusFailed
					if serr := tx.Save(installment).Error; serr != nil {
						return serr
					}
				}
				result = WebhookResult{OrderNumber: order.OrderNumber, Status: order.Status}
				return nil
			}
			return err
		}

		if _, err := s.recordTransaction(tx, &order, installment, validation); err != nil {
			return err
		}

		if order.IsInstallment {
			paymentID := model.BuildPaymentID(order.OrderNumber, installment.InstallmentNumber)
			if err := s.markInstallmentPaid(tx, &order, installment, paymentID, "ssl_commerce", validation.ValID); err != nil {
				return err
			}

			// First installment unlocks the courses even though the order
			// is not fully paid yet.
			if order.InstallmentsPaid == 1 && order.Status != model.OrderStatusCompleted {
				if err := tx.Where("order_id = ?", order.ID).Find(&order.Items).Error; err != nil {
					return err
				}
				for _, item := range order.Items {
					var batch model.CourseBatch
					if item.BatchID != nil {
						if err := tx.First(&batch, "id = ?", item.BatchID).Error; err != nil {
							return err
						}
					} else {
						resolved, err := resolveEnrollmentBatch(tx, item.CourseID)
						if err != nil {
							return fmt.Errorf("course %s: %w", item.CourseID, err)
						}
						batch = *resolved
					}
					orderID := order.ID
					if _, _, err := s.orders.enrollments.GetOrCreate(tx, order.UserID, &batch, &orderID); err != nil {
						return err
					}
				}
				if order.Status == model.OrderStatusPending || order.Status == model.OrderStatusFailed {
					if err := order.Transition(model.OrderStatusProcessing); err != nil {
						return err
					}
				}
				order.PaymentStatus = model.PaymentStatusPartial
				if err := tx.Save(&order).Error; err != nil {
					return err
				}
			}
		} else {
			if err := s.orders.MarkOrderCompleted(tx, &order); err != nil {
				return err
			}
		}

		s.notifyPayment(tx, &order, installment)

		result = WebhookResult{
			OrderNumber:      order.OrderNumber,
			Status:           order.Status,
			InstallmentsPaid: order.InstallmentsPaid,
			FullyPaid:        order.IsFullyPaid(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Webhook processed for order %s (status=%s, paid=%d)", result.OrderNumber, result.Status, result.InstallmentsPaid)
	return &result, nil
}

// notifyPayment writes an in-app notification for the settled payment.
// Failures here never abort the settlement.
func (s *PaymentService) notifyPayment(tx *gorm.DB, order *model.Order, installment *model.OrderInstallment) {
	title := "Payment received"
	message := fmt.Sprintf("Your payment for order %s was received.", order.OrderNumber)
	category := model.NotificationCategoryOrderPayment
	if installment != nil {
		category = model.NotificationCategoryInstallment
		message = fmt.Sprintf("Installment %d of %d for order %s was received.",
			installment.InstallmentNumber, order.InstallmentPlan, order.OrderNumber)
	}

	orderID := order.ID
	notification := model.UserNotification{
		UserID:   order.UserID,
		Type:     model.NotificationTypeSuccess,
		Category: category,
		Title:    title,
		Message:  message,
		OrderID:  &orderID,
	}
	if err := tx.Create(&notification).Error; err != nil {
		log.Println("Failed to create payment notification:", err)
	}
}

// InstallmentSummary is the payment-progress view of an installment order.
type InstallmentSummary struct {
	OrderNumber      string              `json:"order_number"`
	InstallmentsPaid int                 `json:"installments_paid"`
	InstallmentPlan  int                 `json:"installment_plan"`
	Next             *NextInstallment    `json:"next_installment,omitempty"`
	RemainingAmount  decimal.Decimal     `json:"remaining_amount"`
	IsFullyPaid      bool                `json:"is_fully_paid"`
}

// NextInstallment describes the next charge due on an installment order.
type NextInstallment struct {
	InstallmentNumber int             `json:"installment_number"`
	Amount            decimal.Decimal `json:"amount"`
	DueDate           time.Time       `json:"due_date"`
	IsOverdue         bool            `json:"is_overdue"`
	DaysUntilDue      int             `json:"days_until_due"`
}

// BuildInstallmentSummary assembles the summary for an order with its
// installments preloaded.
func BuildInstallmentSummary(order *model.Order, now time.Time) InstallmentSummary {
	summary := InstallmentSummary{
		OrderNumber:      order.OrderNumber,
		InstallmentsPaid: order.InstallmentsPaid,
		InstallmentPlan:  order.InstallmentPlan,
		RemainingAmount:  order.RemainingAmount(),
		IsFullyPaid:      order.IsFullyPaid(),
	}

	if next := order.NextPendingInstallment(); next != nil {
		summary.Next = &NextInstallment{
			InstallmentNumber: next.InstallmentNumber,
			Amount:            next.Amount,
			DueDate:           next.DueDate,
			IsOverdue:         next.IsOverdue(now),
			DaysUntilDue:      next.DaysUntilDue(now),
		}
	}
	return summary
}
