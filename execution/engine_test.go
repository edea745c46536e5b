package execution

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arbimind/arbbot/config"
	"github.com/arbimind/arbbot/endpoint"
	"github.com/arbimind/arbbot/gas"
	"github.com/arbimind/arbbot/types"
)

type fakeClient struct {
	estimateGas  uint64
	estimateErr  error
	sentTxs      []*gethtypes.Transaction
	receiptByTx  map[common.Hash]*gethtypes.Receipt
	callResponse []byte
}

func (f *fakeClient) HeaderByNumber(ctx context.Context, n *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{
		Number:  big.NewInt(1),
		Time:    uint64(time.Now().Unix()),
		BaseFee: big.NewInt(10_000_000_000),
	}, nil
}

func (f *fakeClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(11_000_000_000), nil
}

func (f *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f.callResponse, nil
}

func (f *fakeClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.estimateGas, f.estimateErr
}

func (f *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	f.sentTxs = append(f.sentTxs, tx)
	return nil
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	if r, ok := f.receiptByTx[txHash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func newTestEngine(t *testing.T, client *fakeClient, dryRun bool) (*Engine, *config.Config) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.DryRun = dryRun
	cfg.Chain.ExecutorAddress = "0x00000000000000000000000000000000000000EE"

	reg, err := endpoint.NewWithClients([]string{"fake"}, []endpoint.Client{client}, 30*time.Minute, zap.NewNop())
	require.NoError(t, err)

	eng, err := New(cfg, reg, gas.NewEstimator(reg, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	return eng, cfg
}

func crossVenueOpp() *types.Opportunity {
	return &types.Opportunity{
		TokenA:     common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		TokenB:     common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Venue1:     "UNISWAP_V2",
		Venue2:     "UNISWAP_V3",
		AmountIn:   big.NewInt(1e18),
		AmountOut1: big.NewInt(1700_000000),
		AmountOut2: big.NewInt(1800_000000),
		NetProfit:  big.NewInt(60_000000),
		Route:      "UNISWAP_V2 -> UNISWAP_V3",
		Timestamp:  time.Now(),
	}
}

func TestMinOutput(t *testing.T) {
	out := MinOutput(big.NewInt(10000), 50)
	assert.Equal(t, big.NewInt(9950), out)

	// never exceeds the quoted amount
	assert.True(t, MinOutput(big.NewInt(12345), 1).Cmp(big.NewInt(12345)) < 0)

	// zero tolerance passes the quote through
	assert.Equal(t, big.NewInt(12345), MinOutput(big.NewInt(12345), 0))
}

func TestSimulateBuildsCalldata(t *testing.T) {
	client := &fakeClient{estimateGas: 210_000}
	eng, _ := newTestEngine(t, client, true)

	gasUsed, err := eng.Simulate(context.Background(), crossVenueOpp())
	require.NoError(t, err)
	assert.Equal(t, uint64(210_000), gasUsed)
}

func TestExecuteDryRun(t *testing.T) {
	client := &fakeClient{estimateGas: 250_000}
	eng, _ := newTestEngine(t, client, true)

	res, err := eng.Execute(context.Background(), crossVenueOpp())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, uint64(250_000), res.GasUsed)
	assert.Empty(t, client.sentTxs, "dry-run must not broadcast")
}

func TestExecuteRejectsSameKindVenues(t *testing.T) {
	client := &fakeClient{}
	eng, _ := newTestEngine(t, client, true)

	opp := crossVenueOpp()
	opp.Venue2 = "SUSHISWAP"
	_, err := eng.Execute(context.Background(), opp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one V2 and one V3")
}

func TestExecuteRejectsUnknownVenue(t *testing.T) {
	client := &fakeClient{}
	eng, _ := newTestEngine(t, client, true)

	opp := crossVenueOpp()
	opp.Venue1 = "BANCOR"
	_, err := eng.Execute(context.Background(), opp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown venue")
}

func TestExecuteRequiresKeyOutsideDryRun(t *testing.T) {
	client := &fakeClient{}
	eng, _ := newTestEngine(t, client, false)

	_, err := eng.Execute(context.Background(), crossVenueOpp())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing key")
}
