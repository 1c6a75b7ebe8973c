package businessflow

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeflow/scrapeflow-api/app/dto"
	"github.com/scrapeflow/scrapeflow-api/config"
	"github.com/scrapeflow/scrapeflow-api/models"
	"github.com/scrapeflow/scrapeflow-api/utils"
)

const testWebhookSecret = "whsec_test_0123456789"

type creditFlowFixture struct {
	flow    CreditFlow
	users   *fakeUserRepo
	credits *fakeCreditRepo
	audits  *fakeAuditRepo
}

func newCreditFlowFixture(billing config.BillingConfig) *creditFlowFixture {
	f := &creditFlowFixture{
		users:   newFakeUserRepo(),
		credits: newFakeCreditRepo(),
		audits:  newFakeAuditRepo(),
	}
	f.flow = NewCreditFlow(f.users, f.credits, f.audits, &fakeTxRunner{}, billing)
	return f
}

// signedCallback marshals the payload the way the billing provider does and
// signs the raw bytes with HMAC-SHA256.
func signedCallback(t *testing.T, secret string, req dto.BillingCallbackRequest) *dto.BillingCallbackRequest {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)
	req.RawBody = body

	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		req.Signature = hex.EncodeToString(mac.Sum(nil))
	}
	return &req
}

func TestHandleBillingCallback(t *testing.T) {
	ctx := context.Background()
	billing := config.BillingConfig{WebhookSecret: testWebhookSecret}

	t.Run("PurchaseGrantsCredits", func(t *testing.T) {
		f := newCreditFlowFixture(billing)
		user := f.users.addUser(models.User{
			Email:             "buyer@example.com",
			Credits:           10,
			BillingCustomerID: utils.ToPtr("cus_100"),
		})

		req := signedCallback(t, testWebhookSecret, dto.BillingCallbackRequest{
			EventType:  BillingEventPaymentSucceeded,
			CustomerID: "cus_100",
			PaymentRef: "pay_001",
		})

		resp, err := f.flow.HandleBillingCallback(ctx, req, testMetadata())
		require.NoError(t, err)
		assert.Equal(t, int64(utils.CreditsPerPurchase), resp.CreditsGranted)
		assert.Equal(t, int64(60), f.users.credits(user.ID))

		purchases := f.credits.byType(user.ID, models.CreditTransactionTypePurchase)
		require.Len(t, purchases, 1)
		assert.Equal(t, int64(utils.CreditsPerPurchase), purchases[0].Amount)
		assert.Equal(t, int64(10), purchases[0].BalanceBefore)
		assert.Equal(t, int64(60), purchases[0].BalanceAfter)
		require.NotNil(t, purchases[0].PaymentRef)
		assert.Equal(t, "pay_001", *purchases[0].PaymentRef)
	})

	t.Run("DuplicatePaymentRefIsIgnored", func(t *testing.T) {
		f := newCreditFlowFixture(billing)
		user := f.users.addUser(models.User{
			Email:             "repeat@example.com",
			Credits:           10,
			BillingCustomerID: utils.ToPtr("cus_200"),
		})

		req := signedCallback(t, testWebhookSecret, dto.BillingCallbackRequest{
			EventType:  BillingEventPaymentSucceeded,
			CustomerID: "cus_200",
			PaymentRef: "pay_dup",
		})

		_, err := f.flow.HandleBillingCallback(ctx, req, testMetadata())
		require.NoError(t, err)

		resp, err := f.flow.HandleBillingCallback(ctx, req, testMetadata())
		require.NoError(t, err)
		assert.Equal(t, "Payment already applied", resp.Message)
		assert.Zero(t, resp.CreditsGranted)

		// Credits were granted exactly once
		assert.Equal(t, int64(60), f.users.credits(user.ID))
		assert.Len(t, f.credits.byType(user.ID, models.CreditTransactionTypePurchase), 1)
	})

	t.Run("PurchaseBindsSubscription", func(t *testing.T) {
		f := newCreditFlowFixture(billing)
		user := f.users.addUser(models.User{
			Email:             "sub@example.com",
			Credits:           0,
			BillingCustomerID: utils.ToPtr("cus_300"),
		})

		req := signedCallback(t, testWebhookSecret, dto.BillingCallbackRequest{
			EventType:      BillingEventPaymentSucceeded,
			CustomerID:     "cus_300",
			PaymentRef:     "pay_sub",
			SubscriptionID: "sub_42",
		})

		_, err := f.flow.HandleBillingCallback(ctx, req, testMetadata())
		require.NoError(t, err)

		stored, err := f.users.ByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.BillingSubscriptionID)
		assert.Equal(t, "sub_42", *stored.BillingSubscriptionID)
		require.NotNil(t, stored.AutoRenewal)
		assert.True(t, *stored.AutoRenewal)
	})

	t.Run("SubscriptionCancelled", func(t *testing.T) {
		f := newCreditFlowFixture(billing)
		user := f.users.addUser(models.User{
			Email:                 "cancel@example.com",
			Credits:               10,
			BillingCustomerID:     utils.ToPtr("cus_400"),
			BillingSubscriptionID: utils.ToPtr("sub_dead"),
			AutoRenewal:           utils.ToPtr(true),
		})

		req := signedCallback(t, testWebhookSecret, dto.BillingCallbackRequest{
			EventType:  BillingEventSubscriptionCancelled,
			CustomerID: "cus_400",
		})

		_, err := f.flow.HandleBillingCallback(ctx, req, testMetadata())
		require.NoError(t, err)

		stored, err := f.users.ByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.BillingSubscriptionID)
		require.NotNil(t, stored.AutoRenewal)
		assert.False(t, *stored.AutoRenewal)
		// Cancellation never touches the balance
		assert.Equal(t, int64(10), f.users.credits(user.ID))
	})

	t.Run("UnknownEventIsAcknowledged", func(t *testing.T) {
		f := newCreditFlowFixture(billing)
		f.users.addUser(models.User{
			Email:             "noop@example.com",
			Credits:           10,
			BillingCustomerID: utils.ToPtr("cus_500"),
		})

		req := signedCallback(t, testWebhookSecret, dto.BillingCallbackRequest{
			EventType:  "invoice_created",
			CustomerID: "cus_500",
		})

		resp, err := f.flow.HandleBillingCallback(ctx, req, testMetadata())
		require.NoError(t, err)
		assert.Equal(t, "Event ignored", resp.Message)
	})

	t.Run("MissingSignature", func(t *testing.T) {
		f := newCreditFlowFixture(billing)

		req := signedCallback(t, "", dto.BillingCallbackRequest{
			EventType:  BillingEventPaymentSucceeded,
			CustomerID: "cus_600",
			PaymentRef: "pay_x",
		})

		_, err := f.flow.HandleBillingCallback(ctx, req, testMetadata())
		require.Error(t, err)
		assert.True(t, IsCallbackSignatureNeeded(err))
	})

	t.Run("BadSignature", func(t *testing.T) {
		f := newCreditFlowFixture(billing)

		req := signedCallback(t, "wrong-secret", dto.BillingCallbackRequest{
			EventType:  BillingEventPaymentSucceeded,
			CustomerID: "cus_700",
			PaymentRef: "pay_x",
		})

		_, err := f.flow.HandleBillingCallback(ctx, req, testMetadata())
		require.Error(t, err)
		assert.True(t, IsCallbackSignatureBad(err))
	})

	t.Run("NoSecretSkipsVerification", func(t *testing.T) {
		f := newCreditFlowFixture(config.BillingConfig{})
		user := f.users.addUser(models.User{
			Email:             "dev@example.com",
			Credits:           0,
			BillingCustomerID: utils.ToPtr("cus_800"),
		})

		req := signedCallback(t, "", dto.BillingCallbackRequest{
			EventType:  BillingEventPaymentSucceeded,
			CustomerID: "cus_800",
			PaymentRef: "pay_dev",
		})

		_, err := f.flow.HandleBillingCallback(ctx, req, testMetadata())
		require.NoError(t, err)
		assert.Equal(t, int64(utils.CreditsPerPurchase), f.users.credits(user.ID))
	})

	t.Run("MissingPaymentRef", func(t *testing.T) {
		f := newCreditFlowFixture(billing)
		f.users.addUser(models.User{
			Email:             "noref@example.com",
			Credits:           10,
			BillingCustomerID: utils.ToPtr("cus_900"),
		})

		req := signedCallback(t, testWebhookSecret, dto.BillingCallbackRequest{
			EventType:  BillingEventPaymentSucceeded,
			CustomerID: "cus_900",
		})

		_, err := f.flow.HandleBillingCallback(ctx, req, testMetadata())
		require.Error(t, err)
		assert.True(t, IsPaymentRefRequired(err))
	})

	t.Run("UnknownCustomer", func(t *testing.T) {
		f := newCreditFlowFixture(billing)

		req := signedCallback(t, testWebhookSecret, dto.BillingCallbackRequest{
			EventType:  BillingEventPaymentSucceeded,
			CustomerID: "cus_nobody",
			PaymentRef: "pay_x",
		})

		_, err := f.flow.HandleBillingCallback(ctx, req, testMetadata())
		require.Error(t, err)
		assert.True(t, IsUserNotFound(err))
	})
}

func TestListTransactions(t *testing.T) {
	ctx := context.Background()

	f := newCreditFlowFixture(config.BillingConfig{})
	user := f.users.addUser(models.User{Email: "ledger@example.com", Credits: 10})
	for i := 0; i < 3; i++ {
		require.NoError(t, f.credits.Save(ctx, &models.CreditTransaction{
			UserID:        user.ID,
			Amount:        -10,
			Type:          models.CreditTransactionTypeUsage,
			Description:   "usage",
			BalanceBefore: 10,
			BalanceAfter:  0,
		}))
	}

	resp, err := f.flow.ListTransactions(ctx, &dto.ListCreditTransactionsRequest{UserID: user.ID}, testMetadata())
	require.NoError(t, err)
	assert.Len(t, resp.Transactions, 3)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 20, resp.PageSize)

	_, err = f.flow.ListTransactions(ctx, &dto.ListCreditTransactionsRequest{UserID: user.ID, PageSize: 500}, testMetadata())
	require.Error(t, err)
	assert.True(t, IsInvalidPageSize(err))
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()

	billing := config.BillingConfig{
		CheckoutURL: "https://billing.example.com/checkout",
		PriceID:     "price_monthly",
	}
	f := newCreditFlowFixture(billing)
	user := f.users.addUser(models.User{Email: "checkout@example.com", Credits: 10})

	resp, err := f.flow.Subscribe(ctx, &dto.SubscribeRequest{UserID: user.ID}, testMetadata())
	require.NoError(t, err)
	assert.Contains(t, resp.CheckoutURL, "https://billing.example.com/checkout")
	assert.Contains(t, resp.CheckoutURL, "price_id=price_monthly")
	assert.Contains(t, resp.CheckoutURL, user.UUID.String())

	// The billing customer identity sticks to the user
	stored, err := f.users.ByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.BillingCustomerID)
	assert.Equal(t, user.UUID.String(), *stored.BillingCustomerID)

	// A second call reuses the bound identity
	again, err := f.flow.Subscribe(ctx, &dto.SubscribeRequest{UserID: user.ID}, testMetadata())
	require.NoError(t, err)
	assert.Equal(t, resp.CheckoutURL, again.CheckoutURL)
}
