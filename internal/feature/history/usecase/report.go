package usecase

import (
	"slices"

	"price_history/internal/feature/history/domain/entity"
)

// FailedTicker は出力できなかった銘柄とその理由です。
type FailedTicker struct {
	Symbol string
	Reason error
}

// Report は1回の実行結果をまとめます。ユニバースの各銘柄は Succeeded に数えられるか
// Failed に載るかのどちらか一方です。
type Report struct {
	Universe    int
	Succeeded   int
	RowsWritten int
	BySource    map[entity.SourceKind]int // ソースごとの寄与銘柄数
	Failed      []FailedTicker            // 処理順（ソート順）
}

func newReport(universe int) Report {
	return Report{
		Universe: universe,
		BySource: make(map[entity.SourceKind]int, len(entity.SourceKinds)),
	}
}

// FailedSymbols は失敗した銘柄をソートして返します。
func (r Report) FailedSymbols() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Symbol)
	}
	slices.Sort(out)
	return out
}
