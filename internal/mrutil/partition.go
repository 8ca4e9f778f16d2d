// Package mrutil holds the leaf helpers shared by the Worker's map and
// reduce task executors: key partitioning, sorted-file promotion and
// external k-way merge.
package mrutil

import (
	"crypto/md5"
	"math/big"
	"strings"
)

// Partition returns the partition index for key under numPartitions
// buckets: int(md5(key)) mod numPartitions, the routing rule for
// mapper output lines.
func Partition(key string, numPartitions int) int {
	sum := md5.Sum([]byte(key))
	asInt := new(big.Int).SetBytes(sum[:])
	mod := big.NewInt(int64(numPartitions))
	return int(new(big.Int).Mod(asInt, mod).Int64())
}

// LineKey returns the text before the first TAB in line, or the whole
// line if it contains no TAB.
func LineKey(line string) string {
	if idx := strings.IndexByte(line, '\t'); idx >= 0 {
		return line[:idx]
	}
	return line
}
