package discount

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDiscountRepo struct {
	code      *Code
	err       error
	requested string
	calls     int
}

func (m *mockDiscountRepo) FindByCode(_ context.Context, code string) (*Code, error) {
	m.calls++
	m.requested = code
	return m.code, m.err
}

func TestRepoLookup_Lookup(t *testing.T) {
	welcome := &Code{
		Code:   "WELCOME10",
		Name:   "Welcome 10%",
		Kind:   KindPercentage,
		Value:  decimal.NewFromInt(10),
		Active: true,
	}

	tests := []struct {
		name          string
		repo          *mockDiscountRepo
		code          string
		wantRequested string
		wantCode      *Code
		wantErr       error
		wantErrText   string
	}{
		{
			name:          "exact code",
			repo:          &mockDiscountRepo{code: welcome},
			code:          "WELCOME10",
			wantRequested: "WELCOME10",
			wantCode:      welcome,
		},
		{
			name:          "code is trimmed and upper-cased",
			repo:          &mockDiscountRepo{code: welcome},
			code:          "  welcome10 ",
			wantRequested: "WELCOME10",
			wantCode:      welcome,
		},
		{
			name:          "inactive code is returned as is",
			repo:          &mockDiscountRepo{code: &Code{Code: "OLD", Kind: KindFlat, Value: decimal.NewFromInt(50)}},
			code:          "old",
			wantRequested: "OLD",
			wantCode:      &Code{Code: "OLD", Kind: KindFlat, Value: decimal.NewFromInt(50)},
		},
		{
			name:          "unknown code",
			repo:          &mockDiscountRepo{err: ErrNotFound},
			code:          "BOGUS",
			wantRequested: "BOGUS",
			wantErr:       ErrNotFound,
		},
		{
			name:          "repository failure is wrapped",
			repo:          &mockDiscountRepo{err: errors.New("connection refused")},
			code:          "WELCOME10",
			wantRequested: "WELCOME10",
			wantErrText:   "lookup discount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewRepoLookup(tt.repo)

			got, err := l.Lookup(context.Background(), tt.code)
			assert.Equal(t, tt.wantRequested, tt.repo.requested)

			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			case tt.wantErrText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrText)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantCode, got)
			}
		})
	}
}

func TestRepoLookup_BlankCodeSkipsRepository(t *testing.T) {
	repo := &mockDiscountRepo{}
	l := NewRepoLookup(repo)

	_, err := l.Lookup(context.Background(), "   ")

	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, repo.calls)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"Percentage": KindPercentage,
		"percentage": KindPercentage,
		"FLAT":       KindFlat,
		"fixed":      KindFlat,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("free_lowest")
	require.ErrorIs(t, err, ErrUnknownKind)
}
