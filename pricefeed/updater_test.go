package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sljivkov/nibifeed/domain"
	"github.com/sljivkov/nibifeed/sources"
)

// MockSource implements domain.RateSource for testing
type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchRates(ctx context.Context) (domain.TokenPrices, error) {
	args := m.Called(ctx)

	prices, _ := args.Get(0).(domain.TokenPrices)

	return prices, args.Error(1)
}

// MockSubmitter implements domain.PriceSubmitter and records the call order
type MockSubmitter struct {
	mock.Mock
	calls []domain.TokenID
}

func (m *MockSubmitter) UpdatePrice(ctx context.Context, id domain.TokenID, price string) (domain.TxResult, error) {
	m.calls = append(m.calls, id)
	args := m.Called(ctx, id, price)

	return args.Get(0).(domain.TxResult), args.Error(1)
}

var allPrices = domain.TokenPrices{
	5: "0.9998",
	3: "9.87",
	1: "65000.5",
	4: "1.0001",
	2: "3400.25",
}

func TestUpdateAll(t *testing.T) {
	source := new(MockSource)
	submitter := new(MockSubmitter)

	source.On("FetchRates", mock.Anything).Return(allPrices, nil).Once()
	for id, price := range allPrices {
		submitter.On("UpdatePrice", mock.Anything, id, price).Return(domain.TxResult{Hash: fmt.Sprint(id)}, nil).Once()
	}

	report, err := NewUpdater(source, submitter).UpdateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.TokenID{1, 2, 3, 4, 5}, report.Submitted)
	assert.Empty(t, report.Failed)
	assert.Equal(t, []domain.TokenID{1, 2, 3, 4, 5}, submitter.calls)

	source.AssertExpectations(t)
	submitter.AssertExpectations(t)
}

func TestUpdateAll_FetchFails(t *testing.T) {
	source := new(MockSource)
	submitter := new(MockSubmitter)

	source.On("FetchRates", mock.Anything).Return(nil, sources.ErrCommandExecution).Once()

	report, err := NewUpdater(source, submitter).UpdateAll(context.Background())
	assert.ErrorIs(t, err, sources.ErrCommandExecution)
	assert.Empty(t, report.Submitted)

	submitter.AssertNotCalled(t, "UpdatePrice", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateAll_SubmitFailureIsIsolated(t *testing.T) {
	source := new(MockSource)
	submitter := new(MockSubmitter)

	source.On("FetchRates", mock.Anything).Return(domain.TokenPrices{1: "65000.5", 2: "3400.25", 3: "9.87"}, nil)
	submitter.On("UpdatePrice", mock.Anything, domain.TokenID(1), "65000.5").Return(domain.TxResult{}, nil)
	submitter.On("UpdatePrice", mock.Anything, domain.TokenID(2), "3400.25").
		Return(domain.TxResult{}, errors.New("out of gas"))
	submitter.On("UpdatePrice", mock.Anything, domain.TokenID(3), "9.87").Return(domain.TxResult{}, nil)

	report, err := NewUpdater(source, submitter).UpdateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.TokenID{1, 3}, report.Submitted)
	assert.Equal(t, []domain.TokenID{2}, report.Failed)
	assert.Equal(t, []domain.TokenID{1, 2, 3}, submitter.calls)
}

func TestUpdateAll_NoKnownTokens(t *testing.T) {
	source := new(MockSource)
	submitter := new(MockSubmitter)

	source.On("FetchRates", mock.Anything).Return(domain.TokenPrices{}, nil)

	report, err := NewUpdater(source, submitter).UpdateAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Submitted)
	submitter.AssertNotCalled(t, "UpdatePrice", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateAll_SubmitSpacing(t *testing.T) {
	source := new(MockSource)
	submitter := new(MockSubmitter)

	source.On("FetchRates", mock.Anything).Return(domain.TokenPrices{1: "1", 2: "2", 3: "3"}, nil)
	submitter.On("UpdatePrice", mock.Anything, mock.Anything, mock.Anything).Return(domain.TxResult{}, nil)

	start := time.Now()
	report, err := NewUpdater(source, submitter, WithSubmitSpacing(20*time.Millisecond)).UpdateAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Submitted, 3)
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestUpdateAll_CancelledDuringSpacing(t *testing.T) {
	source := new(MockSource)
	submitter := new(MockSubmitter)

	source.On("FetchRates", mock.Anything).Return(domain.TokenPrices{1: "1", 2: "2"}, nil)
	submitter.On("UpdatePrice", mock.Anything, mock.Anything, mock.Anything).Return(domain.TxResult{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	report, err := NewUpdater(source, submitter, WithSubmitSpacing(time.Hour)).UpdateAll(ctx)
	assert.Error(t, err)
	assert.Equal(t, []domain.TokenID{1}, report.Submitted)
}

// TestHelperProcess is not a real test. It plays the nibid binary for the
// end to end test below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	fmt.Fprint(os.Stdout, `{"exchange_rates":[{"pair":"ubtc:uusd","exchange_rate":"65000.5"}]}`)
	os.Exit(0)
}

func TestUpdateAll_EndToEnd(t *testing.T) {
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")

	source, err := sources.NewNibidSource([]string{os.Args[0], "-test.run=TestHelperProcess", "--"})
	require.NoError(t, err)

	submitter := new(MockSubmitter)
	submitter.On("UpdatePrice", mock.Anything, domain.TokenID(1), "65000.5").
		Return(domain.TxResult{Hash: "ABC", Height: 10}, nil).Once()

	report, err := NewUpdater(source, submitter).UpdateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.TokenID{1}, report.Submitted)
	assert.Equal(t, []domain.TokenID{1}, submitter.calls)
	submitter.AssertExpectations(t)
}
