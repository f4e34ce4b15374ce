// Package usecase は複数ソースの株価履歴を突き合わせるユースケースを提供します。
package usecase

import (
	"price_history/internal/feature/history/domain/entity"
)

// AliasMap は正規の銘柄コードを各ソースが期待するシンボルに対応付けます。
// 種類株の表記はプロバイダごとに異なる（BRK.B, BRK_B, BRK-B）ため、上書きはソース単位です。
// ゼロ値はすべての銘柄をそのまま返します。
type AliasMap struct {
	overrides map[string]map[entity.SourceKind]string
}

// NewAliasMap は overrides をコピーして不変の AliasMap を生成します。
func NewAliasMap(overrides map[string]map[entity.SourceKind]string) AliasMap {
	m := AliasMap{overrides: make(map[string]map[entity.SourceKind]string, len(overrides))}
	for ticker, bySource := range overrides {
		inner := make(map[entity.SourceKind]string, len(bySource))
		for source, alias := range bySource {
			if alias != "" {
				inner[source] = alias
			}
		}
		m.overrides[ticker] = inner
	}
	return m
}

// Resolve は ticker を source に問い合わせる際のシンボルを返します。
// 上書きがなければ正規のシンボルを返します（エラーではありません）。
func (m AliasMap) Resolve(ticker string, source entity.SourceKind) string {
	if alias, ok := m.overrides[ticker][source]; ok {
		return alias
	}
	return ticker
}

// Len は上書きを持つ銘柄の数を返します。
func (m AliasMap) Len() int {
	return len(m.overrides)
}
