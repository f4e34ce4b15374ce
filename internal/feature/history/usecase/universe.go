package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"price_history/internal/feature/history/domain"
	"price_history/internal/feature/history/domain/entity"
)

// ErrEmptyUniverse は銘柄がまだ登録されていない場合に返されます。
var ErrEmptyUniverse = errors.New("ticker universe is empty")

// MembershipChange は指数の入れ替え台帳の1行です。
// 採用のみ、除外のみの行ではどちらかの銘柄が空になります。
type MembershipChange struct {
	Date            time.Time
	Added           string
	Removed         string
	RemovedSecurity string // 除外された銘柄の社名（台帳にある場合）
	Reason          string
}

// UniverseRepository は銘柄ユニバースを永続化します。
type UniverseRepository interface {
	UpsertAll(ctx context.Context, tickers []entity.TickerIdentity) error
	ListAll(ctx context.Context) ([]entity.TickerIdentity, error)
}

// UniverseUsecase は指数に一度でも含まれた銘柄の集合を導出し、保存します。
type UniverseUsecase struct {
	repo UniverseRepository
}

// NewUniverseUsecase は新しい UniverseUsecase を作成します。
func NewUniverseUsecase(repo UniverseRepository) *UniverseUsecase {
	return &UniverseUsecase{repo: repo}
}

// ImportLedger は現在の構成銘柄と入れ替え台帳からユニバースを導出して保存します。
func (u *UniverseUsecase) ImportLedger(ctx context.Context, current []string, changes []MembershipChange) ([]entity.TickerIdentity, error) {
	tickers := BuildUniverse(current, changes)
	if err := u.repo.UpsertAll(ctx, tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}

// Import は期間が判明している銘柄を保存します。
func (u *UniverseUsecase) Import(ctx context.Context, tickers []entity.TickerIdentity) error {
	unique, err := uniqueTickers(tickers)
	if err != nil {
		return err
	}
	return u.repo.UpsertAll(ctx, unique)
}

// uniqueTickers はシンボルごとに1件へまとめます。同じシンボルが複数あれば後の行が優先されます。
// 空のシンボルはエラーです。
func uniqueTickers(tickers []entity.TickerIdentity) ([]entity.TickerIdentity, error) {
	out := make([]entity.TickerIdentity, 0, len(tickers))
	index := make(map[string]int, len(tickers))
	for i, t := range tickers {
		t.Symbol = strings.TrimSpace(t.Symbol)
		if t.Symbol == "" {
			return nil, fmt.Errorf("entry %d: %w", i+1, domain.ErrInvalidTicker)
		}
		if j, ok := index[t.Symbol]; ok {
			out[j] = t
			continue
		}
		index[t.Symbol] = len(out)
		out = append(out, t)
	}
	return out, nil
}

// List は保存済みのユニバースを返します。空の場合は処理対象がないためエラーです。
func (u *UniverseUsecase) List(ctx context.Context) ([]entity.TickerIdentity, error) {
	tickers, err := u.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return nil, ErrEmptyUniverse
	}
	return tickers, nil
}

// BuildUniverse は現在の構成銘柄と台帳に現れるすべての銘柄を返します。
// Start は最初の採用日、End は最後の除外日です。現在の構成銘柄は End を持ちません。
// 結果はシンボル順です。
func BuildUniverse(current []string, changes []MembershipChange) []entity.TickerIdentity {
	byTicker := map[string]*entity.TickerIdentity{}
	get := func(symbol string) *entity.TickerIdentity {
		t, ok := byTicker[symbol]
		if !ok {
			t = &entity.TickerIdentity{Symbol: symbol}
			byTicker[symbol] = t
		}
		return t
	}

	for _, c := range changes {
		day := entity.Day(c.Date)
		if added := strings.TrimSpace(c.Added); added != "" {
			t := get(added)
			if t.Active.Start == nil || day.Before(*t.Active.Start) {
				t.Active.Start = &day
			}
		}
		if removed := strings.TrimSpace(c.Removed); removed != "" {
			t := get(removed)
			if t.Active.End == nil || day.After(*t.Active.End) {
				t.Active.End = &day
			}
		}
	}
	for _, symbol := range current {
		if symbol = strings.TrimSpace(symbol); symbol != "" {
			get(symbol).Active.End = nil
		}
	}

	out := make([]entity.TickerIdentity, 0, len(byTicker))
	for _, t := range byTicker {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b entity.TickerIdentity) int {
		return strings.Compare(a.Symbol, b.Symbol)
	})
	return out
}

// Removal は銘柄が最後に指数から除外されたときの情報です。
type Removal struct {
	Symbol  string
	Company string
	Added   *time.Time // 除外前の最後の採用日。台帳になければ nil
	Removed time.Time
	Reason  string
}

// FindRemoval は台帳から symbol の最新の除外と、それより前の最後の採用を探します。
// 一度も除外されていなければ false を返します。
func FindRemoval(symbol string, changes []MembershipChange) (Removal, bool) {
	out := Removal{Symbol: symbol}
	found := false
	for _, c := range changes {
		if c.Removed != symbol || (found && !c.Date.After(out.Removed)) {
			continue
		}
		out.Company, out.Removed, out.Reason = c.RemovedSecurity, c.Date, c.Reason
		found = true
	}
	if !found {
		return out, false
	}
	for _, c := range changes {
		if c.Added != symbol || !c.Date.Before(out.Removed) {
			continue
		}
		if out.Added == nil || c.Date.After(*out.Added) {
			d := c.Date
			out.Added = &d
		}
	}
	return out, true
}
