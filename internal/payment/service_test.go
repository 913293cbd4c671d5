package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/batikstore/backend/internal/order"
	"github.com/batikstore/backend/internal/payment"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByOrderID(ctx context.Context, orderID int64) (*payment.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListPending(ctx context.Context, limit, offset int) ([]payment.Payment, int, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]payment.Payment), args.Int(1), args.Error(2)
}

func (m *MockPaymentRepository) Upsert(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) Verify(ctx context.Context, paymentID, adminID int64) (*payment.Payment, error) {
	args := m.Called(ctx, paymentID, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Reject(ctx context.Context, paymentID, adminID int64, reason string) (*payment.Payment, error) {
	args := m.Called(ctx, paymentID, adminID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

type mockNotifier struct {
	wakes int
}

func (n *mockNotifier) Wake() { n.wakes++ }

func validSubmit() payment.SubmitRequest {
	return payment.SubmitRequest{
		Method:        payment.MethodBankTransfer,
		BankName:      "BCA",
		AccountHolder: "Siti Rahayu",
		Amount:        decimal.NewFromInt(215000),
		ProofRef:      "uploads/proof-42.jpg",
	}
}

func TestPaymentService_SubmitPayment_Success(t *testing.T) {
	mockRepo := new(MockPaymentRepository)
	notifier := &mockNotifier{}
	svc := payment.NewService(mockRepo, notifier)

	mockRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*payment.Payment")).
		Run(func(args mock.Arguments) {
			p := args.Get(1).(*payment.Payment)
			require.Equal(t, int64(42), p.OrderID)
			require.Equal(t, payment.StatusPending, p.Status)
			require.NotNil(t, p.PaymentDate)
			p.ID = 7
		}).
		Return(nil).
		Once()

	p, err := svc.SubmitPayment(context.Background(), 42, validSubmit())

	require.NoError(t, err)
	require.Equal(t, int64(7), p.ID)
	require.Equal(t, 1, notifier.wakes)
	mockRepo.AssertExpectations(t)
}

func TestPaymentService_SubmitPayment_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(req *payment.SubmitRequest)
		wantErr error
	}{
		{
			name:    "unknown method",
			mutate:  func(req *payment.SubmitRequest) { req.Method = "barter" },
			wantErr: payment.ErrInvalidPaymentMethod,
		},
		{
			name:    "missing proof",
			mutate:  func(req *payment.SubmitRequest) { req.ProofRef = "" },
			wantErr: payment.ErrMissingProof,
		},
		{
			name:    "zero amount",
			mutate:  func(req *payment.SubmitRequest) { req.Amount = decimal.Zero },
			wantErr: payment.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			mutate:  func(req *payment.SubmitRequest) { req.Amount = decimal.NewFromInt(-100) },
			wantErr: payment.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockPaymentRepository)
			notifier := &mockNotifier{}
			svc := payment.NewService(mockRepo, notifier)

			req := validSubmit()
			tt.mutate(&req)

			p, err := svc.SubmitPayment(context.Background(), 42, req)

			require.ErrorIs(t, err, tt.wantErr)
			require.Nil(t, p)
			require.Zero(t, notifier.wakes)
			mockRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentService_SubmitPayment_OrderNotFound(t *testing.T) {
	mockRepo := new(MockPaymentRepository)
	svc := payment.NewService(mockRepo, &mockNotifier{})

	mockRepo.On("Upsert", mock.Anything, mock.AnythingOfType("*payment.Payment")).
		Return(order.ErrOrderNotFound).
		Once()

	p, err := svc.SubmitPayment(context.Background(), 404, validSubmit())

	require.ErrorIs(t, err, order.ErrOrderNotFound)
	require.Nil(t, p)
}

func TestPaymentService_VerifyPayment_Success(t *testing.T) {
	mockRepo := new(MockPaymentRepository)
	notifier := &mockNotifier{}
	svc := payment.NewService(mockRepo, notifier)

	now := time.Now().UTC()
	adminID := int64(3)
	verified := &payment.Payment{
		ID:         7,
		OrderID:    42,
		Status:     payment.StatusVerified,
		VerifiedBy: &adminID,
		VerifiedAt: &now,
	}

	mockRepo.On("Verify", mock.Anything, int64(7), int64(3)).
		Return(verified, nil).
		Once()

	p, err := svc.VerifyPayment(context.Background(), 7, 3)

	require.NoError(t, err)
	require.Equal(t, payment.StatusVerified, p.Status)
	require.Equal(t, 1, notifier.wakes)
	mockRepo.AssertExpectations(t)
}

func TestPaymentService_VerifyPayment_AlreadyReconciled(t *testing.T) {
	mockRepo := new(MockPaymentRepository)
	notifier := &mockNotifier{}
	svc := payment.NewService(mockRepo, notifier)

	mockRepo.On("Verify", mock.Anything, int64(7), int64(3)).
		Return(nil, payment.ErrAlreadyReconciled).
		Once()

	p, err := svc.VerifyPayment(context.Background(), 7, 3)

	require.ErrorIs(t, err, payment.ErrAlreadyReconciled)
	require.Nil(t, p)
	require.Zero(t, notifier.wakes)
}

func TestPaymentService_RejectPayment_MissingReason(t *testing.T) {
	mockRepo := new(MockPaymentRepository)
	svc := payment.NewService(mockRepo, &mockNotifier{})

	p, err := svc.RejectPayment(context.Background(), 7, 3, "")

	require.ErrorIs(t, err, payment.ErrMissingRejectionReason)
	require.Nil(t, p)
	mockRepo.AssertNotCalled(t, "Reject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_RejectPayment_Success(t *testing.T) {
	mockRepo := new(MockPaymentRepository)
	notifier := &mockNotifier{}
	svc := payment.NewService(mockRepo, notifier)

	rejected := &payment.Payment{
		ID:              7,
		OrderID:         42,
		Status:          payment.StatusRejected,
		RejectionReason: "proof image unreadable",
	}

	mockRepo.On("Reject", mock.Anything, int64(7), int64(3), "proof image unreadable").
		Return(rejected, nil).
		Once()

	p, err := svc.RejectPayment(context.Background(), 7, 3, "proof image unreadable")

	require.NoError(t, err)
	require.Equal(t, payment.StatusRejected, p.Status)
	require.Equal(t, 1, notifier.wakes)
	mockRepo.AssertExpectations(t)
}

func TestPaymentService_RejectPayment_AlreadyReconciled(t *testing.T) {
	mockRepo := new(MockPaymentRepository)
	notifier := &mockNotifier{}
	svc := payment.NewService(mockRepo, notifier)

	mockRepo.On("Reject", mock.Anything, int64(7), int64(3), "late").
		Return(nil, payment.ErrAlreadyReconciled).
		Once()

	p, err := svc.RejectPayment(context.Background(), 7, 3, "late")

	require.ErrorIs(t, err, payment.ErrAlreadyReconciled)
	require.Nil(t, p)
	require.Zero(t, notifier.wakes)
}

func TestPaymentService_GetPaymentByID(t *testing.T) {
	mockRepo := new(MockPaymentRepository)
	svc := payment.NewService(mockRepo, &mockNotifier{})

	mockRepo.On("GetByID", mock.Anything, int64(7)).
		Return(&payment.Payment{ID: 7, OrderID: 42, Status: payment.StatusPending}, nil).
		Once()

	p, err := svc.GetPaymentByID(context.Background(), 7)

	require.NoError(t, err)
	require.Equal(t, int64(42), p.OrderID)
	mockRepo.AssertExpectations(t)
}

func TestPaymentService_GetPaymentByID_NotFound(t *testing.T) {
	mockRepo := new(MockPaymentRepository)
	svc := payment.NewService(mockRepo, &mockNotifier{})

	mockRepo.On("GetByID", mock.Anything, int64(404)).
		Return(nil, payment.ErrPaymentNotFound).
		Once()

	p, err := svc.GetPaymentByID(context.Background(), 404)

	require.ErrorIs(t, err, payment.ErrPaymentNotFound)
	require.Nil(t, p)
}

func TestPaymentService_GetPaymentByOrderID_NotFound(t *testing.T) {
	mockRepo := new(MockPaymentRepository)
	svc := payment.NewService(mockRepo, &mockNotifier{})

	mockRepo.On("GetByOrderID", mock.Anything, int64(404)).
		Return(nil, payment.ErrPaymentNotFound).
		Once()

	p, err := svc.GetPaymentByOrderID(context.Background(), 404)

	require.ErrorIs(t, err, payment.ErrPaymentNotFound)
	require.Nil(t, p)
}
