package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/baely/tab/internal/catalog"
	"github.com/baely/tab/internal/common/errors"
)

type memStore struct {
	mu    sync.Mutex
	saved []AccountView
	saves int
}

func (s *memStore) Load(ctx context.Context) ([]AccountView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, nil
}

func (s *memStore) Save(ctx context.Context, accounts []AccountView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = accounts
	s.saves++
	return nil
}

type storeMock struct{ mock.Mock }

func (m *storeMock) Load(ctx context.Context) ([]AccountView, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]AccountView)
	return v, args.Error(1)
}

func (m *storeMock) Save(ctx context.Context, accounts []AccountView) error {
	args := m.Called(ctx, accounts)
	return args.Error(0)
}

type recorder struct {
	mu       sync.Mutex
	payloads [][]Summary
}

func (r *recorder) Publish(accounts []Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, accounts)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func (r *recorder) last() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payloads[len(r.payloads)-1]
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireSummaries(t *testing.T, expected, actual []Summary) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		require.Equal(t, expected[i].Nick, actual[i].Nick)
		require.True(t, expected[i].Balance.Equal(actual[i].Balance), "balance of %s: %s != %s",
			expected[i].Nick, expected[i].Balance, actual[i].Balance)
	}
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func colaCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Beverage{{Name: "Cola", Price: dec("1.50")}})
	require.NoError(t, err)
	return c
}

func newTestLedger(t *testing.T) (*Ledger, *memStore, *recorder) {
	t.Helper()
	store := &memStore{}
	rec := &recorder{}
	return New(context.Background(), colaCatalog(t), store, rec, quiet()), store, rec
}

func TestLedger_Scenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	require.True(t, l.CreateAccount(ctx, "alice123").Ok())

	v, err := l.Topup(ctx, "alice123", dec("5.00")).Get()
	require.NoError(t, err)
	require.True(t, v.Balance.Equal(dec("5")))

	v, err = l.Drink(ctx, "alice123", "Cola").Get()
	require.NoError(t, err)
	require.True(t, v.Balance.Equal(dec("3.50")))
	require.Len(t, v.History, 2)

	err = l.Drink(ctx, "alice123", "Fanta").Err()
	require.ErrorIs(t, err, ErrNoSuchBeverage)
	v, err = l.GetAccount("alice123").Get()
	require.NoError(t, err)
	require.True(t, v.Balance.Equal(dec("3.50")))
	require.Equal(t, []string{"topped up 5.00", "drank Cola (1.50)"}, v.History)

	err = l.Drink(ctx, "bob", "Cola").Err()
	require.ErrorIs(t, err, ErrNoSuchAccount)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLedger_CreateAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var tests = []struct {
		name        string
		nick        string
		expectedErr error
	}{
		{name: "too short", nick: "ab", expectedErr: ErrInvalidNickname},
		{name: "underscores and digits", nick: "ab_valid_name_123"},
		{name: "twenty chars", nick: "abcdefghijklmnopqrst"},
		{name: "twenty one chars", nick: "abcdefghijklmnopqrstu", expectedErr: ErrInvalidNickname},
		{name: "valid prefix with trailing junk", nick: "alice!!", expectedErr: ErrInvalidNickname},
		{name: "whitespace", nick: "al ice", expectedErr: ErrInvalidNickname},
		{name: "empty", nick: "", expectedErr: ErrInvalidNickname},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, _, _ := newTestLedger(t)
			v, err := l.CreateAccount(ctx, tt.nick).Get()
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				require.ErrorIs(t, err, errors.ErrInvalidInput)
				require.Empty(t, l.ListAccounts())
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.nick, v.Nick)
			require.True(t, v.Balance.IsZero())
			require.Empty(t, v.History)
		})
	}
}

func TestLedger_CreateAccountExistsUnderContention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	require.True(t, l.CreateAccount(ctx, "carol").Ok())

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- l.CreateAccount(ctx, "dave_0").Err()
		}()
		go func() {
			defer wg.Done()
			_ = l.Topup(ctx, "carol", dec("1"))
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, ErrAccountExists)
		require.ErrorIs(t, err, errors.ErrAlreadyExists)
	}
	require.Equal(t, 1, created)
	require.ErrorIs(t, l.CreateAccount(ctx, "carol").Err(), ErrAccountExists)
}

func TestLedger_ConcurrentDrinksNeverOverdraw(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, store, _ := newTestLedger(t)

	require.True(t, l.CreateAccount(ctx, "erin").Ok())
	require.True(t, l.Topup(ctx, "erin", dec("10")).Ok())

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Drink(ctx, "erin", "Cola").Err()
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if errors.Is(err, ErrInsufficientBalance) {
				insufficient++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 6, succeeded)
	require.Equal(t, 94, insufficient)

	v, err := l.GetAccount("erin").Get()
	require.NoError(t, err)
	require.True(t, v.Balance.Equal(dec("1.00")))
	require.Len(t, v.History, 7)
	require.Equal(t, 8, store.saves)
}

func TestLedger_Topup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var tests = []struct {
		name        string
		nick        string
		amount      string
		expected    string
		expectedErr error
	}{
		{name: "credit", nick: "frank", amount: "2.25", expected: "2.25"},
		{name: "zero is allowed", nick: "frank", amount: "0", expected: "0"},
		{name: "negative is rejected", nick: "frank", amount: "-1", expectedErr: ErrInvalidAmount},
		{name: "unknown account", nick: "nobody", amount: "1", expectedErr: ErrNoSuchAccount},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, store, rec := newTestLedger(t)
			require.True(t, l.CreateAccount(ctx, "frank").Ok())
			saves, published := store.saves, rec.count()

			v, err := l.Topup(ctx, tt.nick, dec(tt.amount)).Get()
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				after, err := l.GetAccount("frank").Get()
				require.NoError(t, err)
				require.True(t, after.Balance.IsZero())
				require.Empty(t, after.History)
				require.Equal(t, saves, store.saves)
				require.Equal(t, published, rec.count())
				return
			}
			require.NoError(t, err)
			require.True(t, v.Balance.Equal(dec(tt.expected)))
			require.Len(t, v.History, 1)
		})
	}
}

func TestLedger_DrinkThenTopupRestoresBalance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	require.True(t, l.CreateAccount(ctx, "gina").Ok())
	require.True(t, l.Topup(ctx, "gina", dec("3.10")).Ok())
	before, _ := l.GetAccount("gina").Get()

	require.True(t, l.Drink(ctx, "gina", "Cola").Ok())
	after, err := l.Topup(ctx, "gina", dec("1.50")).Get()
	require.NoError(t, err)
	require.True(t, before.Balance.Equal(after.Balance))
}

func TestLedger_InsufficientBalanceLeavesAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, store, _ := newTestLedger(t)

	require.True(t, l.CreateAccount(ctx, "hank").Ok())
	saves := store.saves

	err := l.Drink(ctx, "hank", "Cola").Err()
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.True(t, IsFailure(err))

	v, _ := l.GetAccount("hank").Get()
	require.True(t, v.Balance.IsZero())
	require.Empty(t, v.History)
	require.Equal(t, saves, store.saves)
}

func TestLedger_SaveFailureDiscardsChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := new(storeMock)
	store.On("Load", mock.Anything).Return([]AccountView{{Nick: "ivan", Balance: dec("4"), History: []string{"topped up 4.00"}}}, nil)
	store.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	rec := &recorder{}

	l := New(ctx, colaCatalog(t), store, rec, quiet())
	require.Equal(t, 1, rec.count())

	err := l.Drink(ctx, "ivan", "Cola").Err()
	require.ErrorIs(t, err, errors.ErrInternal)
	require.False(t, IsFailure(err))

	err = l.CreateAccount(ctx, "judy").Err()
	require.ErrorIs(t, err, errors.ErrInternal)

	v, err := l.GetAccount("ivan").Get()
	require.NoError(t, err)
	require.True(t, v.Balance.Equal(dec("4")))
	require.Len(t, v.History, 1)
	require.False(t, l.HasAccount("judy"))
	require.Equal(t, 1, rec.count())
	store.AssertNumberOfCalls(t, "Save", 2)
}

func TestLedger_Restore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var tests = []struct {
		name     string
		views    []AccountView
		loadErr  error
		expected []Summary
	}{
		{
			name:     "load error starts empty",
			loadErr:  errors.New("corrupt"),
			expected: []Summary{},
		},
		{
			name: "skips bad records",
			views: []AccountView{
				{Nick: "kim", Balance: dec("2")},
				{Nick: "kim", Balance: dec("9")},
				{Nick: "neg", Balance: dec("-1")},
				{Nick: "", Balance: dec("1")},
				{Nick: "old!nick", Balance: dec("1")},
			},
			expected: []Summary{
				{Nick: "kim", Balance: dec("2")},
				{Nick: "old!nick", Balance: dec("1")},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := new(storeMock)
			store.On("Load", mock.Anything).Return(tt.views, tt.loadErr)
			rec := &recorder{}

			l := New(ctx, colaCatalog(t), store, rec, quiet())

			requireSummaries(t, tt.expected, l.ListAccounts())
			require.Equal(t, 1, rec.count())
			requireSummaries(t, tt.expected, rec.last())
		})
	}
}

func TestLedger_Deposit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, store, rec := newTestLedger(t)
	require.True(t, l.CreateAccount(ctx, "omar").Ok())

	v, err := l.Deposit(ctx, "omar", "tx1", dec("5")).Get()
	require.NoError(t, err)
	require.True(t, v.Balance.Equal(dec("5")))
	require.Equal(t, []string{"tx1"}, v.Deposits)
	saves, published := store.saves, rec.count()

	_, err = l.Deposit(ctx, "omar", "tx1", dec("5")).Get()
	require.ErrorIs(t, err, ErrDuplicateDeposit)
	require.ErrorIs(t, err, errors.ErrAlreadyExists)
	require.Equal(t, saves, store.saves)
	require.Equal(t, published, rec.count())

	_, err = l.Deposit(ctx, "nobody", "tx2", dec("1")).Get()
	require.ErrorIs(t, err, ErrNoSuchAccount)
	_, err = l.Deposit(ctx, "omar", "tx3", dec("-1")).Get()
	require.ErrorIs(t, err, ErrInvalidAmount)

	v, err = l.GetAccount("omar").Get()
	require.NoError(t, err)
	require.True(t, v.Balance.Equal(dec("5")))
	require.Equal(t, []string{"topped up 5.00"}, v.History)
	require.Equal(t, []string{"tx1"}, store.saved[0].Deposits)

	reloaded := New(ctx, colaCatalog(t), store, &recorder{}, quiet())
	_, err = reloaded.Deposit(ctx, "omar", "tx1", dec("5")).Get()
	require.ErrorIs(t, err, ErrDuplicateDeposit)
}

func TestAccount_DepositWindow(t *testing.T) {
	t.Parallel()
	a := newAccount("pia")
	for i := 0; i < maxDepositRefs+10; i++ {
		require.True(t, a.Deposit(fmt.Sprintf("tx%d", i), dec("1")).Ok())
	}
	v := a.View()
	require.Len(t, v.Deposits, maxDepositRefs)
	require.Equal(t, "tx10", v.Deposits[0])
	require.True(t, v.Balance.Equal(decimal.NewFromInt(maxDepositRefs+10)))

	require.False(t, a.Deposit(fmt.Sprintf("tx%d", maxDepositRefs+9), dec("1")).Ok())

	restored := restoreAccount(AccountView{Nick: "pia", Balance: dec("1"), Deposits: append([]string{"old"}, v.Deposits...)})
	require.Len(t, restored.View().Deposits, maxDepositRefs)
	require.True(t, restored.Deposit("old", dec("1")).Ok())
}

func TestLedger_SnapshotMatchesMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, store, _ := newTestLedger(t)

	require.True(t, l.CreateAccount(ctx, "zed").Ok())
	require.True(t, l.CreateAccount(ctx, "amy").Ok())
	require.True(t, l.Topup(ctx, "amy", dec("7.30")).Ok())
	require.True(t, l.Drink(ctx, "amy", "Cola").Ok())

	expected := []AccountView{}
	for _, s := range l.ListAccounts() {
		v, err := l.GetAccount(s.Nick).Get()
		require.NoError(t, err)
		expected = append(expected, v)
	}
	require.Equal(t, expected, store.saved)

	reloaded := New(ctx, colaCatalog(t), store, &recorder{}, quiet())
	requireSummaries(t, l.ListAccounts(), reloaded.ListAccounts())
	v, err := reloaded.GetAccount("amy").Get()
	require.NoError(t, err)
	require.Equal(t, []string{"topped up 7.30", "drank Cola (1.50)"}, v.History)
}

func TestLedger_PublishesOncePerMutation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	require.Equal(t, 1, rec.count())

	require.True(t, l.CreateAccount(ctx, "lena").Ok())
	require.True(t, l.Topup(ctx, "lena", dec("2")).Ok())
	require.True(t, l.Drink(ctx, "lena", "Cola").Ok())
	require.False(t, l.Drink(ctx, "lena", "Cola").Ok())
	require.False(t, l.CreateAccount(ctx, "lena").Ok())

	require.Equal(t, 4, rec.count())
	requireSummaries(t, []Summary{{Nick: "lena", Balance: dec("0.50")}}, rec.last())
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	var tests = []struct {
		text     string
		expected string
		ok       bool
	}{
		{text: "5", expected: "5", ok: true},
		{text: " 2.50\n", expected: "2.5", ok: true},
		{text: "-3", expected: "-3", ok: true},
		{text: "abc", ok: false},
		{text: "", ok: false},
		{text: "1.005", ok: false},
		{text: "10000", expected: "10000", ok: true},
		{text: "10000.01", ok: false},
		{text: "-10000.01", ok: false},
		{text: "1e2", ok: false},
		{text: "1e100", ok: false},
		{text: "1E2000000", ok: false},
		{text: "0000000000000000000000000000000000000000000000000001.50", expected: "1.5", ok: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			amount, err := ParseAmount(tt.text)
			if !tt.ok {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			require.True(t, amount.Equal(dec(tt.expected)))
		})
	}
}
