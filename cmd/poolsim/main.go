package main

import (
	"flag"
	"log/slog"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/defistate/clmm-pool-go/fullmath"
	"github.com/defistate/clmm-pool-go/pool"
	"github.com/defistate/clmm-pool-go/token"
)

var (
	poolAddress = common.HexToAddress("0x0000000000000000000000000000000000000001")
	lpAddress   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	traderAddr  = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func main() {
	var (
		fee         = flag.Uint64("fee", 3000, "swap fee in pips (3000 = 0.30%)")
		tickSpacing = flag.Int64("tick-spacing", 60, "minimum tick granularity")
		liquidity   = flag.Int64("liquidity", 1_000_000, "liquidity to mint over the demo range")
		swapIn      = flag.Int64("swap-in", 1_000, "exact token0 input for the demo swap")
	)
	flag.Parse()

	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	rootLogger := slog.New(rootLogHandler)
	prometheusRegistry := prometheus.DefaultRegisterer

	fail := func(msg string, err error) {
		rootLogger.Error(msg, "error", err)
		os.Exit(1)
	}

	ledger0 := token.NewLedger("TK0")
	ledger1 := token.NewLedger("TK1")
	if err := ledger0.Mint(lpAddress, big.NewInt(1_000_000_000)); err != nil {
		fail("Failed to fund liquidity provider", err)
	}
	if err := ledger1.Mint(lpAddress, big.NewInt(1_000_000_000)); err != nil {
		fail("Failed to fund liquidity provider", err)
	}
	if err := ledger0.Mint(traderAddr, big.NewInt(1_000_000)); err != nil {
		fail("Failed to fund trader", err)
	}

	p, err := pool.New(&pool.Config{
		Token0:      token.NewAccount(ledger0, poolAddress),
		Token1:      token.NewAccount(ledger1, poolAddress),
		PoolAddress: poolAddress,
		Fee:         *fee,
		TickSpacing: *tickSpacing,
		Logger:      rootLogger,
		Registry:    prometheusRegistry,
	})
	if err != nil {
		fail("Failed to create pool", err)
	}

	// start at tick 0, a 1:1 price
	if err := p.Initialize(new(big.Int).Set(fullmath.Q96)); err != nil {
		fail("Failed to initialize pool", err)
	}

	tickLower := -10 * *tickSpacing
	tickUpper := 10 * *tickSpacing

	lp0 := token.NewAccount(ledger0, lpAddress)
	lp1 := token.NewAccount(ledger1, lpAddress)
	amount0, amount1, err := p.Mint(lpAddress, tickLower, tickUpper, big.NewInt(*liquidity),
		func(amount0Owed, amount1Owed *big.Int) error {
			if err := lp0.Transfer(poolAddress, amount0Owed); err != nil {
				return err
			}
			return lp1.Transfer(poolAddress, amount1Owed)
		})
	if err != nil {
		fail("Failed to mint liquidity", err)
	}
	rootLogger.Info("Minted liquidity",
		"tickLower", tickLower,
		"tickUpper", tickUpper,
		"amount0", amount0.String(),
		"amount1", amount1.String(),
	)

	reserve0, reserve1 := p.VirtualReserves()
	rootLogger.Info("Virtual reserves", "reserve0", reserve0.String(), "reserve1", reserve1.String())

	trader0 := token.NewAccount(ledger0, traderAddr)
	swapAmount0, swapAmount1, err := p.Swap(traderAddr, true, big.NewInt(*swapIn), nil,
		func(amount0Delta, amount1Delta *big.Int) error {
			return trader0.Transfer(poolAddress, amount0Delta)
		})
	if err != nil {
		fail("Failed to swap", err)
	}
	rootLogger.Info("Swapped token0 for token1",
		"amount0", swapAmount0.String(),
		"amount1", swapAmount1.String(),
		"tick", p.Tick(),
		"trader0", ledger0.BalanceOf(traderAddr).String(),
		"trader1", ledger1.BalanceOf(traderAddr).String(),
	)

	// settle fees into the position without touching liquidity, then collect
	if _, _, err := p.Burn(lpAddress, tickLower, tickUpper, new(big.Int)); err != nil {
		fail("Failed to poke position", err)
	}
	owed0, owed1, err := p.Collect(lpAddress, lpAddress, tickLower, tickUpper, nil, nil)
	if err != nil {
		fail("Failed to collect fees", err)
	}
	rootLogger.Info("Collected fees", "owed0", owed0.String(), "owed1", owed1.String())
}
