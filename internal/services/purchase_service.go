package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/honeynil/KudosClassroom/internal/infrastructure/kafka"
	"github.com/honeynil/KudosClassroom/internal/models"
	"github.com/honeynil/KudosClassroom/internal/repository"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const purchaseTracer = "purchase-service"

// PurchaseService runs the purchase protocol: requests, approvals,
// refunds, wishes and the treasure box gate.
type PurchaseService struct {
	store  *repository.Store
	cache  PrizeCache
	events publisher
	now    Clock
}

func NewPurchaseService(store *repository.Store, cache PrizeCache, events kafka.EventPublisher, now Clock) *PurchaseService {
	if now == nil {
		now = time.Now
	}
	return &PurchaseService{
		store:  store,
		cache:  cache,
		events: publisher{events: events, now: now},
		now:    now,
	}
}

func (s *PurchaseService) PostTransaction(ctx context.Context, id models.StudentIdentity, prizeID int32) (*models.Transaction, error) {
	ctx, span := otel.Tracer(purchaseTracer).Start(ctx, "PostTransaction")
	defer span.End()

	tx, err := s.purchase(ctx, span, id, prizeID, nil)
	if err != nil {
		return nil, fail(span, "PostTransaction", err, "student_id", id.ID, "prize_id", prizeID)
	}
	return tx, nil
}

// purchase checks, in order: student, class, treasure box, prize, stock and
// balance. The repository repeats the stock and balance checks atomically.
func (s *PurchaseService) purchase(ctx context.Context, span trace.Span, id models.StudentIdentity, prizeID int32, wishID *int32) (*models.Transaction, error) {
	span.SetAttributes(attribute.Int("student_id", int(id.ID)), attribute.Int("prize_id", int(prizeID)))

	student, err := s.store.Students.GetByID(ctx, id.ID)
	if err != nil {
		return nil, err
	}
	if student.ClassID == nil {
		return nil, pkgerrors.NotFound("class", id.ClassID)
	}
	class, err := s.store.Classes.GetByID(ctx, *student.ClassID)
	if err != nil {
		return nil, err
	}
	if !class.TreasureBoxOpen {
		return nil, pkgerrors.ErrTreasureBoxClosed
	}
	prize, err := s.store.Prizes.GetByID(ctx, prizeID)
	if err != nil {
		return nil, err
	}
	if prize.ClassID != class.ID {
		return nil, pkgerrors.NotFound("prize", prizeID)
	}
	if !prize.Available() {
		return nil, pkgerrors.ErrPrizeUnavailable
	}
	if student.KudosBalance < prize.KudosCost {
		return nil, pkgerrors.ErrInsufficientFunds
	}

	tx := &models.Transaction{PrizeID: prize.ID, StudentID: student.ID, ClassID: class.ID}
	if err := s.store.Transactions.Purchase(ctx, tx, wishID); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, class.ID)
	s.events.publish(ctx, models.PurchaseEvent{
		Type:          models.EventTransactionRequested,
		TransactionID: tx.ID,
		StudentID:     tx.StudentID,
		ClassID:       tx.ClassID,
		PrizeID:       tx.PrizeID,
		Amount:        -tx.PrizeCost,
	})
	slog.Info("transaction requested", "transaction_id", tx.ID, "student_id", tx.StudentID, "prize_id", tx.PrizeID, "cost", tx.PrizeCost)
	return tx, nil
}

// ApproveTransaction approves a pending transaction, or rejects it and
// refunds the student when approved is false.
func (s *PurchaseService) ApproveTransaction(ctx context.Context, teacher models.TeacherIdentity, transactionID int32, approved bool) (*models.Transaction, error) {
	ctx, span := otel.Tracer(purchaseTracer).Start(ctx, "ApproveTransaction")
	defer span.End()

	tx, err := s.store.Transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, fail(span, "ApproveTransaction", err, "transaction_id", transactionID)
	}
	if _, err := ownClass(ctx, s.store, teacher, tx.ClassID); err != nil {
		return nil, fail(span, "ApproveTransaction", err, "transaction_id", transactionID)
	}

	if approved {
		if tx.Approved {
			return tx, nil
		}
		if err := s.store.Transactions.Approve(ctx, tx.ID); err != nil {
			return nil, fail(span, "ApproveTransaction", err, "transaction_id", transactionID)
		}
		tx.Approved = true
		s.events.publish(ctx, models.PurchaseEvent{
			Type:          models.EventTransactionApproved,
			TransactionID: tx.ID,
			StudentID:     tx.StudentID,
			ClassID:       tx.ClassID,
			PrizeID:       tx.PrizeID,
		})
		slog.Info("transaction approved", "transaction_id", tx.ID, "teacher_id", teacher.ID)
		return tx, nil
	}

	if tx.Approved {
		return nil, fail(span, "ApproveTransaction", pkgerrors.ErrTransactionAlreadyApproved, "transaction_id", transactionID)
	}
	if err := s.refund(ctx, tx, models.EventTransactionRejected); err != nil {
		return nil, fail(span, "ApproveTransaction", err, "transaction_id", transactionID)
	}
	return tx, nil
}

// CancelTransaction lets a student withdraw one of their pending requests.
func (s *PurchaseService) CancelTransaction(ctx context.Context, id models.StudentIdentity, transactionID int32) (*models.Transaction, error) {
	ctx, span := otel.Tracer(purchaseTracer).Start(ctx, "CancelTransaction")
	defer span.End()

	tx, err := s.store.Transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, fail(span, "CancelTransaction", err, "transaction_id", transactionID)
	}
	if tx.StudentID != id.ID {
		return nil, fail(span, "CancelTransaction", pkgerrors.Forbidden("transaction %d is not yours", transactionID), "student_id", id.ID)
	}
	if tx.Approved {
		return nil, fail(span, "CancelTransaction", pkgerrors.ErrTransactionAlreadyApproved, "transaction_id", transactionID)
	}
	if err := s.refund(ctx, tx, models.EventTransactionCancelled); err != nil {
		return nil, fail(span, "CancelTransaction", err, "transaction_id", transactionID)
	}
	return tx, nil
}

// refund is the single compensation path shared by rejection and
// cancellation.
func (s *PurchaseService) refund(ctx context.Context, tx *models.Transaction, event models.EventType) error {
	if err := s.store.Transactions.Refund(ctx, tx); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, tx.ClassID)
	s.events.publish(ctx, models.PurchaseEvent{
		Type:          event,
		TransactionID: tx.ID,
		StudentID:     tx.StudentID,
		ClassID:       tx.ClassID,
		PrizeID:       tx.PrizeID,
		Amount:        tx.PrizeCost,
	})
	slog.Info("transaction refunded", "transaction_id", tx.ID, "student_id", tx.StudentID, "amount", tx.PrizeCost, "reason", event)
	return nil
}

// AddToWishlist saves a prize of the student's class for later. Adding the
// same prize twice returns the existing wish.
func (s *PurchaseService) AddToWishlist(ctx context.Context, id models.StudentIdentity, prizeID int32) (*models.Wish, error) {
	ctx, span := otel.Tracer(purchaseTracer).Start(ctx, "AddToWishlist")
	defer span.End()

	prize, err := s.store.Prizes.GetByID(ctx, prizeID)
	if err != nil {
		return nil, fail(span, "AddToWishlist", err, "prize_id", prizeID)
	}
	if prize.ClassID != id.ClassID {
		return nil, fail(span, "AddToWishlist", pkgerrors.NotFound("prize", prizeID), "student_id", id.ID)
	}

	if existing, err := s.store.Wishes.GetByStudentAndPrize(ctx, id.ID, prizeID); err == nil {
		return existing, nil
	} else if pkgerrors.As(err).Kind != pkgerrors.KindNotFound {
		return nil, fail(span, "AddToWishlist", err, "prize_id", prizeID)
	}

	wish := &models.Wish{StudentID: id.ID, PrizeID: prizeID}
	if err := s.store.Wishes.Create(ctx, wish); err != nil {
		return nil, fail(span, "AddToWishlist", err, "prize_id", prizeID)
	}
	slog.Info("wish added", "wish_id", wish.ID, "student_id", id.ID, "prize_id", prizeID)
	return wish, nil
}

// CancelOrBuyWish drops a wish, or converts it into a purchase request. A
// failed BUY leaves the wish in place.
func (s *PurchaseService) CancelOrBuyWish(ctx context.Context, id models.StudentIdentity, wishID, prizeID int32, action models.WishAction) (*models.Transaction, error) {
	ctx, span := otel.Tracer(purchaseTracer).Start(ctx, "CancelOrBuyWish")
	defer span.End()

	if action != models.WishActionCancel && action != models.WishActionBuy {
		return nil, fail(span, "CancelOrBuyWish", pkgerrors.InvalidInput("unknown actionType %q", action))
	}
	wish, err := s.store.Wishes.GetByID(ctx, wishID)
	if err != nil {
		return nil, fail(span, "CancelOrBuyWish", err, "wish_id", wishID)
	}
	if wish.StudentID != id.ID {
		return nil, fail(span, "CancelOrBuyWish", pkgerrors.Forbidden("wish %d is not yours", wishID), "student_id", id.ID)
	}
	if wish.PrizeID != prizeID {
		return nil, fail(span, "CancelOrBuyWish", pkgerrors.InvalidInput("wish %d is not for prize %d", wishID, prizeID))
	}

	if action == models.WishActionCancel {
		if err := s.store.Wishes.Delete(ctx, wishID); err != nil {
			return nil, fail(span, "CancelOrBuyWish", err, "wish_id", wishID)
		}
		slog.Info("wish cancelled", "wish_id", wishID, "student_id", id.ID)
		return nil, nil
	}

	tx, err := s.purchase(ctx, span, id, prizeID, &wishID)
	if err != nil {
		return nil, fail(span, "CancelOrBuyWish", err, "wish_id", wishID, "prize_id", prizeID)
	}
	return tx, nil
}

// MarkTransactionGiven records that the prize was handed over. Calling it
// again overwrites the date.
func (s *PurchaseService) MarkTransactionGiven(ctx context.Context, teacher models.TeacherIdentity, transactionID int32) (*models.Transaction, error) {
	ctx, span := otel.Tracer(purchaseTracer).Start(ctx, "MarkTransactionGiven")
	defer span.End()

	tx, err := s.store.Transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, fail(span, "MarkTransactionGiven", err, "transaction_id", transactionID)
	}
	if _, err := ownClass(ctx, s.store, teacher, tx.ClassID); err != nil {
		return nil, fail(span, "MarkTransactionGiven", err, "transaction_id", transactionID)
	}

	at := s.now()
	if err := s.store.Transactions.MarkGiven(ctx, tx.ID, at); err != nil {
		return nil, fail(span, "MarkTransactionGiven", err, "transaction_id", transactionID)
	}
	tx.GivenDate = &at
	s.events.publish(ctx, models.PurchaseEvent{
		Type:          models.EventTransactionGiven,
		TransactionID: tx.ID,
		StudentID:     tx.StudentID,
		ClassID:       tx.ClassID,
		PrizeID:       tx.PrizeID,
	})
	slog.Info("transaction marked given", "transaction_id", tx.ID, "teacher_id", teacher.ID)
	return tx, nil
}

// AdjustStudentBalance replaces a student's balance. It bypasses the
// purchase bookkeeping.
func (s *PurchaseService) AdjustStudentBalance(ctx context.Context, teacher models.TeacherIdentity, studentID, newBalance int32) (*models.Student, error) {
	ctx, span := otel.Tracer(purchaseTracer).Start(ctx, "AdjustStudentBalance")
	defer span.End()

	if newBalance < 0 {
		return nil, fail(span, "AdjustStudentBalance", pkgerrors.InvalidInput("kudos balance cannot be negative"), "student_id", studentID)
	}
	student, err := ownStudent(ctx, s.store, teacher, studentID)
	if err != nil {
		return nil, fail(span, "AdjustStudentBalance", err, "student_id", studentID)
	}
	if err := s.store.Students.SetBalance(ctx, studentID, newBalance); err != nil {
		return nil, fail(span, "AdjustStudentBalance", err, "student_id", studentID)
	}

	delta := newBalance - student.KudosBalance
	student.KudosBalance = newBalance
	event := models.PurchaseEvent{Type: models.EventBalanceAdjusted, StudentID: studentID, Amount: delta}
	if student.ClassID != nil {
		event.ClassID = *student.ClassID
	}
	s.events.publish(ctx, event)
	slog.Info("balance adjusted", "student_id", studentID, "teacher_id", teacher.ID, "balance", newBalance, "delta", delta)
	return student, nil
}

// ToggleTreasureBox flips the purchase gate of a class and returns its new
// state. Pending transactions are not affected.
func (s *PurchaseService) ToggleTreasureBox(ctx context.Context, teacher models.TeacherIdentity, classID int32) (bool, error) {
	ctx, span := otel.Tracer(purchaseTracer).Start(ctx, "ToggleTreasureBox")
	defer span.End()

	if _, err := ownClass(ctx, s.store, teacher, classID); err != nil {
		return false, fail(span, "ToggleTreasureBox", err, "class_id", classID)
	}
	open, err := s.store.Classes.ToggleTreasureBox(ctx, classID)
	if err != nil {
		return false, fail(span, "ToggleTreasureBox", err, "class_id", classID)
	}
	slog.Info("treasure box toggled", "class_id", classID, "open", open)
	return open, nil
}
