package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arbimind/arbbot/endpoint"
)

type gasClient struct {
	baseFee *big.Int
	tip     *big.Int
	headErr error
}

func (g *gasClient) HeaderByNumber(ctx context.Context, n *big.Int) (*gethtypes.Header, error) {
	if g.headErr != nil {
		return nil, g.headErr
	}
	return &gethtypes.Header{
		Number:  big.NewInt(1),
		Time:    uint64(time.Now().Unix()),
		BaseFee: g.baseFee,
	}, nil
}

func (g *gasClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return g.tip, nil
}

func (g *gasClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(15_000_000_000), nil
}

func (g *gasClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}
func (g *gasClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 0, nil
}
func (g *gasClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}
func (g *gasClient) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	return nil
}
func (g *gasClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	return nil, nil
}

func estimatorWith(t *testing.T, client endpoint.Client) *Estimator {
	t.Helper()
	reg, err := endpoint.NewWithClients([]string{"fake"}, []endpoint.Client{client}, 30*time.Minute, zap.NewNop())
	require.NoError(t, err)
	return NewEstimator(reg, zap.NewNop())
}

func TestGasPriceFallbackBeforeRefresh(t *testing.T) {
	e := estimatorWith(t, &gasClient{})
	assert.Equal(t, big.NewInt(20_000_000_000), e.GasPrice())
	assert.Equal(t, 20.0, e.GasPriceGwei())
}

func TestRefreshTracksBaseFeePlusTip(t *testing.T) {
	e := estimatorWith(t, &gasClient{
		baseFee: big.NewInt(30_000_000_000),
		tip:     big.NewInt(2_000_000_000),
	})
	e.refresh(context.Background())

	assert.Equal(t, big.NewInt(32_000_000_000), e.GasPrice())
	assert.Equal(t, 32.0, e.GasPriceGwei())
}

func TestRefreshWithoutBaseFeeUsesSuggestedPrice(t *testing.T) {
	// pre-London headers carry no base fee
	e := estimatorWith(t, &gasClient{tip: big.NewInt(1_000_000_000)})
	e.refresh(context.Background())

	assert.Equal(t, big.NewInt(16_000_000_000), e.GasPrice())
}

func TestRefreshFailureKeepsPreviousValues(t *testing.T) {
	client := &gasClient{
		baseFee: big.NewInt(30_000_000_000),
		tip:     big.NewInt(2_000_000_000),
	}
	e := estimatorWith(t, client)
	e.refresh(context.Background())

	client.headErr = errors.New("rpc down")
	e.refresh(context.Background())

	assert.Equal(t, big.NewInt(32_000_000_000), e.GasPrice())
}

func TestFeeCapsAbsorbOneBaseFeeDoubling(t *testing.T) {
	e := estimatorWith(t, &gasClient{
		baseFee: big.NewInt(10_000_000_000),
		tip:     big.NewInt(1_000_000_000),
	})
	e.refresh(context.Background())

	feeCap, tipCap := e.FeeCaps()
	assert.Equal(t, big.NewInt(21_000_000_000), feeCap)
	assert.Equal(t, big.NewInt(1_000_000_000), tipCap)
}

func TestEstimateCost(t *testing.T) {
	e := estimatorWith(t, &gasClient{
		baseFee: big.NewInt(10_000_000_000),
		tip:     big.NewInt(0),
	})
	e.refresh(context.Background())

	assert.Equal(t, big.NewInt(3_000_000_000_000_000), e.EstimateCost(300_000))
}

func TestCeilingExceeded(t *testing.T) {
	e := estimatorWith(t, &gasClient{
		baseFee: big.NewInt(49_000_000_000),
		tip:     big.NewInt(2_000_000_000),
	})
	e.refresh(context.Background())

	assert.True(t, e.CeilingExceeded(50))
	assert.False(t, e.CeilingExceeded(60))
}
