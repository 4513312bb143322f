// Package main is the entry point for the Mercader Errante game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/davigarmo/MercaderErrante/server/internal/config"
	"github.com/davigarmo/MercaderErrante/server/internal/domain/item"
	"github.com/davigarmo/MercaderErrante/server/internal/events"
	"github.com/davigarmo/MercaderErrante/server/internal/infra/storage"
	"github.com/davigarmo/MercaderErrante/server/internal/market"
	"github.com/davigarmo/MercaderErrante/server/internal/network"
	"github.com/davigarmo/MercaderErrante/server/internal/platform/logger"
	"github.com/davigarmo/MercaderErrante/server/internal/platform/metrics"
	"github.com/davigarmo/MercaderErrante/server/internal/property"
	"github.com/davigarmo/MercaderErrante/server/internal/scheduler"
	"github.com/davigarmo/MercaderErrante/server/internal/sim"
)

// frameInterval is how often the real-time driver feeds elapsed time to the
// simulation. The clock itself accumulates fractional minutes, so the frame
// rate only bounds reaction latency, not simulation accuracy.
const frameInterval = 250 * time.Millisecond

func main() {
	log.Println("[MERCADER-SERVER] Initializing 'Mercader Errante' Simulation Server...")

	appLogger := logger.NewLogger()
	env := config.LoadEnv()

	// World: YAML override or the built-in campaign.
	var world *config.World
	if env.WorldPath != "" {
		appLogger.Info("Loading world from " + env.WorldPath)
		w, err := config.LoadWorld(env.WorldPath)
		if err != nil {
			appLogger.Error("Failed to load world: " + err.Error())
			os.Exit(1)
		}
		world = w
	} else {
		appLogger.Info("Using built-in world 'La Ruta del Levante'")
		world = config.DefaultWorld()
	}

	// Storage is optional: DB_DIALECT=none runs fully in memory.
	var saveRepo *storage.SaveRepository
	var persister events.Persister
	if env.DBDialect != "none" {
		dialect := storage.Dialect(env.DBDialect)
		dsn := env.DBPath
		if dialect == storage.DialectPostgres {
			dsn = env.DBDSN
		}
		appLogger.Info("Initializing " + env.DBDialect + " storage...")
		db, err := storage.Open(dialect, dsn)
		if err != nil {
			appLogger.Error("Failed to initialize storage: " + err.Error())
			os.Exit(1)
		}
		defer db.Close()
		saveRepo = storage.NewSaveRepository(db)
		persister = &storage.PersisterAdapter{Repo: storage.NewJournalRepository(db)}
	} else {
		appLogger.Warn("Running without persistence (DB_DIALECT=none)")
	}

	journal := events.NewJournal(persister)

	appLogger.Info("Bootstrapping Simulation...")
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	simulation, err := sim.New(world, rng, appLogger, journal)
	if err != nil {
		appLogger.Error("Failed to build simulation: " + err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(appLogger)
	go hub.Run(ctx)
	simulation.SetNotifier(hub)

	// All simulation access goes through this mutex: the frame driver and the
	// HTTP handlers share one authoritative state.
	var mu sync.Mutex

	// Real-time frame driver.
	go func() {
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				elapsed := now.Sub(last)
				last = now

				start := time.Now()
				mu.Lock()
				advanced := simulation.AdvanceTime(elapsed.Milliseconds())
				mu.Unlock()
				if advanced {
					metrics.Get().RecordTick(time.Since(start))
				}
			}
		}
	}()

	// Setup API Routes
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, w, r, appLogger)
	})

	http.HandleFunc("/metrics", metrics.Handler())
	http.HandleFunc("/metrics/prometheus", metrics.PrometheusHandler())

	http.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		view := simulation.View()
		mu.Unlock()
		writeJSON(w, view)
	})

	http.HandleFunc("/api/time/advance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		type requestParams struct {
			Millis int64 `json:"millis"`
		}
		var req requestParams
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Millis <= 0 {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		mu.Lock()
		advanced := simulation.AdvanceTime(req.Millis)
		info := simulation.Clock().TimeInfo()
		mu.Unlock()
		writeJSON(w, map[string]interface{}{"advanced": advanced, "time": info})
	})

	http.HandleFunc("/api/time/speed", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		type requestParams struct {
			Speed string `json:"speed"`
		}
		var req requestParams
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		mu.Lock()
		ok := simulation.SetSpeed(req.Speed)
		mu.Unlock()
		if !ok {
			http.Error(w, "Unknown speed preset", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]string{"status": "ok", "speed": req.Speed})
	})

	http.HandleFunc("/api/time/pause", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		mu.Lock()
		paused := simulation.TogglePause()
		mu.Unlock()
		writeJSON(w, map[string]interface{}{"status": "ok", "paused": paused})
	})

	http.HandleFunc("/api/market/buy", func(w http.ResponseWriter, r *http.Request) {
		handleTrade(w, r, &mu, simulation, simulation.Buy)
	})

	http.HandleFunc("/api/market/sell", func(w http.ResponseWriter, r *http.Request) {
		handleTrade(w, r, &mu, simulation, simulation.Sell)
	})

	http.HandleFunc("/api/events/trigger", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		type requestParams struct {
			Event   string            `json:"event"`
			Payload scheduler.Payload `json:"payload"`
		}
		var req requestParams
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Event == "" {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		mu.Lock()
		simulation.TriggerEvent(req.Event, req.Payload)
		mu.Unlock()
		writeJSON(w, map[string]string{"status": "ok"})
	})

	http.HandleFunc("/api/events/schedule", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		type requestParams struct {
			Event     string            `json:"event"`
			TriggerAt int64             `json:"trigger_at"` // absolute sim-minute
			Payload   scheduler.Payload `json:"payload"`
		}
		var req requestParams
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Event == "" {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		mu.Lock()
		simulation.ScheduleEvent(req.Event, req.TriggerAt, req.Payload)
		mu.Unlock()
		writeJSON(w, map[string]string{"status": "ok"})
	})

	http.HandleFunc("/api/travel", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		type requestParams struct {
			Destination string `json:"destination"`
		}
		var req requestParams
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Destination == "" {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		mu.Lock()
		arriveAt, err := simulation.Travel(req.Destination)
		mu.Unlock()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]interface{}{"status": "ok", "arrives_at_minute": arriveAt})
	})

	http.HandleFunc("/api/property/upgrade", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		type requestParams struct {
			Property string `json:"property"`
			Upgrade  string `json:"upgrade"`
		}
		var req requestParams
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		mu.Lock()
		err := simulation.UpgradeProperty(req.Property, req.Upgrade)
		mu.Unlock()
		if err != nil {
			http.Error(w, err.Error(), propertyStatus(err))
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	http.HandleFunc("/api/property/repair", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		type requestParams struct {
			Property string `json:"property"`
		}
		var req requestParams
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		mu.Lock()
		err := simulation.RepairProperty(req.Property)
		mu.Unlock()
		if err != nil {
			http.Error(w, err.Error(), propertyStatus(err))
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	http.HandleFunc("/api/property/tier", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		type requestParams struct {
			Property string `json:"property"`
		}
		var req requestParams
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		mu.Lock()
		err := simulation.UpgradePropertyTier(req.Property)
		mu.Unlock()
		if err != nil {
			http.Error(w, err.Error(), propertyStatus(err))
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	http.HandleFunc("/api/save", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if saveRepo == nil {
			http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
			return
		}
		type requestParams struct {
			Slot string `json:"slot"`
		}
		var req requestParams
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Slot == "" {
			req.Slot = "autosave"
		}
		mu.Lock()
		snap := simulation.Snapshot()
		mu.Unlock()
		saveID, err := saveRepo.Upsert(r.Context(), req.Slot, snap)
		if err != nil {
			appLogger.Error("Failed to save game: " + err.Error())
			http.Error(w, "Save failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "ok", "slot": req.Slot, "save_id": saveID})
	})

	http.HandleFunc("/api/load", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if saveRepo == nil {
			http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
			return
		}
		type requestParams struct {
			Slot string `json:"slot"`
		}
		var req requestParams
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Slot == "" {
			req.Slot = "autosave"
		}
		rec, err := saveRepo.Get(r.Context(), req.Slot)
		if err != nil {
			appLogger.Error("Failed to load game: " + err.Error())
			http.Error(w, "Load failed", http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.Error(w, "Empty save slot", http.StatusNotFound)
			return
		}
		var snap sim.Snapshot
		if err := json.Unmarshal(rec.Snapshot, &snap); err != nil {
			http.Error(w, "Corrupt save", http.StatusInternalServerError)
			return
		}
		mu.Lock()
		simulation.Restore(snap)
		mu.Unlock()
		writeJSON(w, map[string]string{"status": "ok", "slot": req.Slot, "save_id": rec.SaveID})
	})

	http.HandleFunc("/api/saves", func(w http.ResponseWriter, r *http.Request) {
		if saveRepo == nil {
			http.Error(w, "Persistence disabled", http.StatusServiceUnavailable)
			return
		}
		recs, err := saveRepo.List(r.Context())
		if err != nil {
			http.Error(w, "List failed", http.StatusInternalServerError)
			return
		}
		// Don't ship full snapshots in the listing.
		type summary struct {
			Slot      string    `json:"slot"`
			SaveID    string    `json:"save_id"`
			CreatedAt time.Time `json:"created_at"`
		}
		out := make([]summary, 0, len(recs))
		for _, rec := range recs {
			out = append(out, summary{Slot: rec.Slot, SaveID: rec.SaveID, CreatedAt: rec.CreatedAt})
		}
		writeJSON(w, out)
	})

	go func() {
		log.Printf("[MERCADER-SERVER] HTTP API & WS Server listening on :%s", env.Port)
		if err := http.ListenAndServe(":"+env.Port, nil); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[MERCADER-SERVER] Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[MERCADER-SERVER] Shutting down...")
}

// handleTrade shares the request shape and error mapping between buy and sell.
func handleTrade(w http.ResponseWriter, r *http.Request, mu *sync.Mutex, s *sim.Simulation,
	op func(string, item.ID, int) (market.TradeResult, error)) {

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type requestParams struct {
		Location string `json:"location"`
		Item     string `json:"item"`
		Quantity int    `json:"quantity"`
	}
	var req requestParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if req.Location == "" {
		mu.Lock()
		req.Location = s.Player().Location
		mu.Unlock()
	}

	mu.Lock()
	res, err := op(req.Location, item.ID(req.Item), req.Quantity)
	mu.Unlock()

	metrics.Get().RecordTrade(res.Total, err == nil)
	if err != nil {
		http.Error(w, err.Error(), tradeStatus(err))
		return
	}
	writeJSON(w, res)
}

func tradeStatus(err error) int {
	switch {
	case errors.Is(err, market.ErrUnknownLocation), errors.Is(err, market.ErrUnknownItem):
		return http.StatusNotFound
	case errors.Is(err, market.ErrBadQuantity):
		return http.StatusBadRequest
	default:
		// Stock/funds/goods shortfalls are rule violations, not client bugs.
		return http.StatusConflict
	}
}

func propertyStatus(err error) int {
	switch {
	case errors.Is(err, property.ErrUnknownProperty), errors.Is(err, property.ErrUnknownUpgrade):
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow cross-origin requests for the web client dev server
	},
}

// serveWs handles websocket requests from the peer.
func serveWs(hub *network.Hub, w http.ResponseWriter, r *http.Request, log *logger.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade websocket connection")
		return
	}

	client := network.NewClient(hub, conn)
	client.Register()

	go client.WritePump()
	go client.ReadPump()
}
