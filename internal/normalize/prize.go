package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var prizeAmount = regexp.MustCompile(`\$?(\d[\d,]*)`)

// PrizeAmount extracts the first numeric run of a prize string, thousands
// separators removed. Strings without digits are worth 0.
func PrizeAmount(s string) int64 {
	m := prizeAmount.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// SumPrizes adds the PrizeAmount of every string. It is an approximation:
// currencies are ignored and only the first number of each string counts.
func SumPrizes(prizes []string) int64 {
	var total int64
	for _, p := range prizes {
		total += PrizeAmount(p)
	}
	return total
}
