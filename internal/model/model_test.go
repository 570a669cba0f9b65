package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPurchaseStatus(t *testing.T) {
	tests := []struct {
		status   PurchaseStatus
		valid    bool
		terminal bool
	}{
		{status: PurchaseStatusPending, valid: true},
		{status: PurchaseStatusApproved, valid: true, terminal: true},
		{status: PurchaseStatusRejected, valid: true, terminal: true},
		{status: "cancelled"},
		{status: ""},
		{status: "APPROVED"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.Valid())
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}
