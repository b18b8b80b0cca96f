package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

func parseHash(hex string) (common.Hash, error) {
	if len(hex) != 64 {
		return common.Hash{}, fmt.Errorf("hash must be 32 bytes (64 hex chars), got %d chars", len(hex))
	}
	return common.HexToHash(hex), nil
}
