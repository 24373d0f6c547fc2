package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeReceiptEmail is the task type for payment receipt emails.
	TaskTypeReceiptEmail = "mail:receipt"
	// TaskTypeOverdueScan is the nightly scan that moves past-due bills to
	// overdue and applies the late fee.
	TaskTypeOverdueScan = "billing:overdue_scan"
)

// ReceiptEmailPayload describes a recorded payment to acknowledge by mail.
type ReceiptEmailPayload struct {
	SocietyID     int64  `json:"societyId"`
	BillID        int64  `json:"billId"`
	BillingPeriod string `json:"billingPeriod"`
	Amount        int64  `json:"amount"`
	Method        string `json:"method"`
	Reference     string `json:"reference"`
}

// NewReceiptEmailTask constructs an Asynq task.
func NewReceiptEmailTask(payload ReceiptEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReceiptEmail, data), nil
}

// NewOverdueScanTask constructs the scheduler task for the overdue scan.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOverdueScan, nil)
}

// rupeePrinter groups digits the Indian way (1,00,000).
var rupeePrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatRupees renders a whole-rupee amount for receipts and reminders.
func FormatRupees(amount int64) string {
	return rupeePrinter.Sprintf("₹%d", amount)
}

// HandleReceiptEmailTask processes TaskTypeReceiptEmail tasks.
func HandleReceiptEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload ReceiptEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder delivery: integrate with SMTP/Mailpit in phase 2.
	fmt.Printf("[jobs] receipt bill=%d period=%s amount=%s method=%s ref=%s at=%s\n",
		payload.BillID, payload.BillingPeriod, FormatRupees(payload.Amount),
		payload.Method, payload.Reference, time.Now().Format(time.RFC3339))
	return nil
}
