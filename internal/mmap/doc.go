// Package mmap maps finalized table files read-only.
//
// A finalized group never changes, so local readers map the whole file once
// and decode rows straight out of the mapping. Range advice lets a reader
// mark the matrix body random-access while metadata sections are prefetched.
//
//	m, err := mmap.Open("features.rtb")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(dataOff, dataLen, mmap.AdviceRandom)
//	row, err := m.Slice(rowOff, rowLen)
//
// Slices returned by Bytes and Slice are invalid after Close.
package mmap
