//go:build rp2040 && !negicon_root

package main

const (
	isRootBoard = false
	boardName   = "negicon-leaf"
)
