package usecase

import (
	"slices"
	"time"

	"price_history/internal/feature/history/domain/entity"
)

// Merge はベース系列と補完系列を1つの確定系列にまとめます。
// 同じ日付があればベースの行を、同じ入力内では最初の行を残します。
// 結果は日付の昇順（重複なし）です。営業日の欠けはそのままにします。
func Merge(base, supplement entity.PriceSeries) entity.PriceSeries {
	out := make(entity.PriceSeries, 0, len(base)+len(supplement))
	seen := make(map[time.Time]struct{}, len(base)+len(supplement))

	for _, part := range []entity.PriceSeries{base, supplement} {
		for _, row := range part {
			day := entity.Day(row.Date)
			if _, dup := seen[day]; dup {
				continue
			}
			seen[day] = struct{}{}
			row.Date = day
			out = append(out, row)
		}
	}

	slices.SortFunc(out, func(a, b entity.PriceRow) int {
		return a.Date.Compare(b.Date)
	})
	return out
}
