package mrutil

import (
	"bufio"
	"container/heap"
	"fmt"
	"io"
	"os"
	"sort"
)

// mergeItem is one live stream in the k-way merge heap.
type mergeItem struct {
	line    string
	scanner *bufio.Scanner
	file    *os.File
}

type mergeHeap []*mergeItem

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].line < h[j].line }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(*mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeSortedFiles performs an external k-way merge of paths, which are
// each already sorted in ascending byte order (the map stage's
// guarantee), and writes the merged, still-sorted stream of lines to
// w. Used to build a reduce task's stdin from its input partitions.
func MergeSortedFiles(paths []string, w io.Writer) error {
	h := &mergeHeap{}
	heap.Init(h)

	opened := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open merge input %s: %w", p, err)
		}
		opened = append(opened, f)

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		if scanner.Scan() {
			heap.Push(h, &mergeItem{line: scanner.Text(), scanner: scanner, file: f})
		} else if err := scanner.Err(); err != nil {
			return fmt.Errorf("scan merge input %s: %w", p, err)
		}
	}

	bw := bufio.NewWriter(w)
	for h.Len() > 0 {
		top := heap.Pop(h).(*mergeItem)
		if _, err := bw.WriteString(top.line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		if top.scanner.Scan() {
			heap.Push(h, top)
		} else if err := top.scanner.Err(); err != nil {
			return fmt.Errorf("scan merge input: %w", err)
		}
	}
	return bw.Flush()
}

// SortFileLines reads path, sorts its lines lexicographically, and
// rewrites it in place. Used to make a map task's partition files
// sorted before they are promoted into the job scratch directory.
func SortFileLines(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return fmt.Errorf("scan %s: %w", path, scanErr)
	}

	sort.Strings(lines)

	tmp := path + ".sorted"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	bw := bufio.NewWriter(out)
	for _, line := range lines {
		if _, err := bw.WriteString(line); err != nil {
			out.Close()
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			out.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
