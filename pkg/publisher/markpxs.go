package publisher

// ConstructMarkRounds converts per-symbol mark values into submission rounds.
//
// The venue computes the final mark price as a median over the submitted
// rounds plus its own local mark, so a symbol with two values occupies rounds
// 0 and 1 while single-valued symbols appear in round 0 only. The number of
// rounds is the longest value list; empty input produces no rounds.
func ConstructMarkRounds(mark map[string][]string) []map[string]string {
	if len(mark) == 0 {
		return []map[string]string{}
	}

	rounds := []map[string]string{{}}
	for symbol, pxs := range mark {
		for len(rounds) < len(pxs) {
			rounds = append(rounds, map[string]string{})
		}
		for i, px := range pxs {
			rounds[i][symbol] = px
		}
	}
	return rounds
}
