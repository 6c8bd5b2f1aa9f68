package cron

import (
	"context"
	"fmt"
	"time"

	"academy-backend/model"
)

const jobTimeout = 5 * time.Minute

// guestCartMaxAge is how long an untouched guest cart survives
const guestCartMaxAge = 30 * 24 * time.Hour

// MarkOverdueInstallments flags unpaid installments past their due date.
func (m *CronManager) MarkOverdueInstallments() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	changed, err := m.orders.MarkOverdueInstallments(ctx, time.Now())
	if err != nil {
		m.logJobError("mark_overdue_installments", err)
		return
	}
	m.logJobComplete("mark_overdue_installments", fmt.Sprintf("%d installment(s) marked overdue", changed))
}

// RefreshBatchStatuses rolls batch statuses forward as dates pass.
func (m *CronManager) RefreshBatchStatuses() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	changed, err := m.catalog.RefreshBatchStatuses(ctx, time.Now())
	if err != nil {
		m.logJobError("refresh_batch_statuses", err)
		return
	}
	m.logJobComplete("refresh_batch_statuses", fmt.Sprintf("%d batch(es) updated", changed))
}

// CleanupGuestCarts removes abandoned guest carts.
func (m *CronManager) CleanupGuestCarts() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := m.carts.DeleteStaleGuestCarts(ctx, guestCartMaxAge)
	if err != nil {
		m.logJobError("cleanup_guest_carts", err)
		return
	}
	m.logJobComplete("cleanup_guest_carts", fmt.Sprintf("%d guest cart(s) removed", removed))
}

// CleanupExpiredTokens purges expired JWT blacklist entries and used or
// expired password reset tokens.
func (m *CronManager) CleanupExpiredTokens() {
	now := time.Now()

	if err := m.db.Where("expires_at < ?", now).Delete(&model.JWTTokenBlacklist{}).Error; err != nil {
		m.logJobError("cleanup_expired_tokens", err)
		return
	}
	if err := m.db.Where("expires_at < ? OR used_at IS NOT NULL", now).Delete(&model.PasswordResetToken{}).Error; err != nil {
		m.logJobError("cleanup_expired_tokens", err)
		return
	}

	m.logJobComplete("cleanup_expired_tokens", "expired tokens purged")
}
