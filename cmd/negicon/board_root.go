//go:build rp2040 && negicon_root

package main

const (
	isRootBoard = true
	boardName   = "negicon-root"
)
