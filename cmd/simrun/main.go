// Package main - simrun
// Headless balance runner: fast-forwards the economy for N simulated days
// and prints a summary, so balance passes never need the full server.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/davigarmo/MercaderErrante/server/internal/clock"
	"github.com/davigarmo/MercaderErrante/server/internal/config"
	"github.com/davigarmo/MercaderErrante/server/internal/events"
	"github.com/davigarmo/MercaderErrante/server/internal/platform/logger"
	"github.com/davigarmo/MercaderErrante/server/internal/sim"
)

func main() {
	days := flag.Int("days", 30, "simulated days to run")
	seed := flag.Int64("seed", 1, "rng seed, fixed for reproducible balance runs")
	worldPath := flag.String("world", "", "optional YAML world override")
	flag.Parse()

	fmt.Println("🏜️  MERCADER ERRANTE - BALANCE RUN")
	fmt.Println("==================================")

	var world *config.World
	if *worldPath != "" {
		w, err := config.LoadWorld(*worldPath)
		if err != nil {
			fmt.Printf("❌ Mundo inválido: %v\n", err)
			os.Exit(1)
		}
		world = w
	} else {
		world = config.DefaultWorld()
	}

	journal := events.NewJournal(nil)
	simulation, err := sim.New(world, rand.New(rand.NewSource(*seed)), logger.NewLogger(), journal)
	if err != nil {
		fmt.Printf("❌ No se pudo construir la simulación: %v\n", err)
		os.Exit(1)
	}

	startGold := simulation.Player().Gold

	// veryfast is 10 sim-minutes per real second; feed whole simulated hours.
	simulation.SetSpeed(clock.SpeedVeryFast)
	hours := *days * clock.HoursPerDay
	for i := 0; i < hours; i++ {
		simulation.AdvanceTime(clock.MinutesPerHour * 100)
	}

	fmt.Printf("\n📅 %s\n", simulation.Clock().TimeInfo().Formatted)
	fmt.Printf("💰 Oro: %d (inicial %d)\n", simulation.Player().Gold, startGold)
	fmt.Printf("🎲 Eventos disparados: %d\n", len(journal.GetByType(events.EventTypeEventTriggered)))
	fmt.Printf("🏠 Pagos de renta: %d\n", len(journal.GetByType(events.EventTypeIncomePaid)))

	fmt.Println("\n📈 PRECIOS FINALES")
	for _, loc := range simulation.Market().Locations() {
		fmt.Printf("   %s (%s, reputación %.1f)\n", loc.Name, loc.Type, loc.Reputation)
		for id, l := range loc.Listings {
			trend, _ := simulation.Market().Trend(loc.ID, id)
			fmt.Printf("      %-12s precio %4d (base %4d) stock %3d  %s\n", id, l.Price, l.BasePrice, l.Stock, trend)
		}
	}

	fmt.Println("\n✅ Ejecución completada")
}
