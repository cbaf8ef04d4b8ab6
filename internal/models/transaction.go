package models

import "time"

// Transaction is a purchase request. The prize fields are a snapshot taken
// when the request was made; refunds use PrizeCost, never the live prize.
type Transaction struct {
	ID            int32      `json:"id"`
	Approved      bool       `json:"approved"`
	PrizeID       int32      `json:"prizeId"`
	PrizeName     string     `json:"prizeName"`
	PrizeImageURL string     `json:"prizeImageUrl"`
	PrizeCost     int32      `json:"prizeCost"`
	StudentID     int32      `json:"studentId"`
	ClassID       int32      `json:"classId"`
	GivenDate     *time.Time `json:"givenDate"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type Wish struct {
	ID        int32     `json:"id"`
	StudentID int32     `json:"studentId"`
	PrizeID   int32     `json:"prizeId"`
	CreatedAt time.Time `json:"createdAt"`
}

type WishAction string

const (
	WishActionCancel WishAction = "CANCEL"
	WishActionBuy    WishAction = "BUY"
)

// PurchaseEvent is published for every purchase lifecycle change.
type PurchaseEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	TransactionID int32     `json:"transaction_id,omitempty"`
	StudentID     int32     `json:"student_id"`
	ClassID       int32     `json:"class_id,omitempty"`
	PrizeID       int32     `json:"prize_id,omitempty"`
	Amount        int32     `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

type EventType string

const (
	EventTransactionRequested EventType = "transaction_requested"
	EventTransactionApproved  EventType = "transaction_approved"
	EventTransactionRejected  EventType = "transaction_rejected"
	EventTransactionCancelled EventType = "transaction_cancelled"
	EventTransactionGiven     EventType = "transaction_given"
	EventBalanceAdjusted      EventType = "balance_adjusted"
)
