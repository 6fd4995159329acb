package payment

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pepu-name-service/internal/chain"
	"pepu-name-service/internal/chain/stub"
)

func fastPolicy(maxWait time.Duration) RetryPolicy {
	return RetryPolicy{MaxWait: maxWait, Interval: 10 * time.Millisecond}
}

func TestRetryPolicy_StopsWhenDone(t *testing.T) {
	calls := 0
	err := fastPolicy(time.Second).Run(context.Background(), func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	start := time.Now()
	err := fastPolicy(50*time.Millisecond).Run(context.Background(), func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryPolicy_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := fastPolicy(time.Second).Run(context.Background(), func(context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRetryPolicy_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastPolicy(time.Second).Run(ctx, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoller_FindsExistingPayment(t *testing.T) {
	client := stub.NewClient()
	older := addTokenPayment(client, 1, testSender, testRequired, 1, 100)
	newer := addTokenPayment(client, 2, testSender, testRequired, 1, 200)
	addTokenPayment(client, 3, testOther, testRequired, 1, 300)
	client.SetHead(500)

	v := newTestValidator(t, client, tokenConfig())
	p := NewPoller(v, fastPolicy(time.Second), 1000, nil)

	hash, err := p.FindPayment(context.Background(), testSender.Hex())
	require.NoError(t, err)
	assert.Equal(t, newer.Hex(), hash)
	assert.NotEqual(t, older.Hex(), hash)
}

func TestPoller_SkipsInvalidCandidates(t *testing.T) {
	client := stub.NewClient()
	addTokenPayment(client, 1, testSender, big.NewInt(1), 1, 100)
	addTokenPayment(client, 2, testSender, testRequired, 0, 110)
	client.SetHead(200)

	v := newTestValidator(t, client, tokenConfig())
	p := NewPoller(v, fastPolicy(60*time.Millisecond), 1000, nil)

	_, err := p.FindPayment(context.Background(), testSender.Hex())
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestPoller_PaymentArrivesLater(t *testing.T) {
	client := stub.NewClient()
	client.SetHead(50)

	v := newTestValidator(t, client, tokenConfig())
	p := NewPoller(v, fastPolicy(2*time.Second), 1000, nil)

	want := common.BytesToHash([]byte{0xab, 9}).Hex()
	go func() {
		time.Sleep(50 * time.Millisecond)
		addTokenPayment(client, 9, testSender, testRequired, 1, 60)
	}()

	hash, err := p.FindPayment(context.Background(), testSender.Hex())
	require.NoError(t, err)
	assert.Equal(t, want, hash)
}

func TestPoller_LookbackWindow(t *testing.T) {
	client := stub.NewClient()
	addTokenPayment(client, 1, testSender, testRequired, 1, 10)
	client.SetHead(5000)

	v := newTestValidator(t, client, tokenConfig())
	p := NewPoller(v, fastPolicy(50*time.Millisecond), 1000, nil)

	_, err := p.FindPayment(context.Background(), testSender.Hex())
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestPoller_RPCErrorsKeepPolling(t *testing.T) {
	client := stub.NewClient()
	client.Err = errors.New("node unavailable")

	v := newTestValidator(t, client, tokenConfig())
	p := NewPoller(v, fastPolicy(50*time.Millisecond), 1000, nil)

	_, err := p.FindPayment(context.Background(), testSender.Hex())
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

// receiptFailingClient fails receipt lookups for a single transaction.
type receiptFailingClient struct {
	*stub.Client
	fail common.Hash
}

func (c receiptFailingClient) GetReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error) {
	if hash == c.fail {
		return nil, errors.New("receipt unavailable")
	}
	return c.Client.GetReceipt(ctx, hash)
}

func TestPoller_CandidateErrorDoesNotHideOlderPayment(t *testing.T) {
	client := stub.NewClient()
	older := addTokenPayment(client, 1, testSender, testRequired, 1, 100)
	newer := addTokenPayment(client, 2, testSender, testRequired, 1, 200)
	client.SetHead(500)

	v := newTestValidator(t, receiptFailingClient{Client: client, fail: newer}, tokenConfig())
	p := NewPoller(v, fastPolicy(50*time.Millisecond), 1000, nil)

	hash, err := p.FindPayment(context.Background(), testSender.Hex())
	require.NoError(t, err)
	assert.Equal(t, older.Hex(), hash)
}

func TestPoller_NativeUnsupported(t *testing.T) {
	v := newTestValidator(t, stub.NewClient(), nativeConfig())
	p := NewPoller(v, fastPolicy(time.Second), 1000, nil)

	_, err := p.FindPayment(context.Background(), testSender.Hex())
	assert.ErrorIs(t, err, ErrPollingUnsupported)
}
