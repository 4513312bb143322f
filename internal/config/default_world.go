package config

import (
	"github.com/davigarmo/MercaderErrante/server/internal/domain/item"
	"github.com/davigarmo/MercaderErrante/server/internal/property"
	"github.com/davigarmo/MercaderErrante/server/internal/scheduler"
)

// ArrivalEventID is the reserved event type for travel completion. It carries
// no effects and never fires at random; the simulation's fire hook moves the
// merchant when it triggers.
const ArrivalEventID = "arrival"

// DefaultWorld returns the built-in campaign, used when no WORLD_PATH is set.
func DefaultWorld() *World {
	return &World{
		Name:          "La Ruta del Levante",
		StartLocation: "aldea_del_rio",
		StartGold:     500,

		Events: []scheduler.EventDef{
			{
				ID:          ArrivalEventID,
				Name:        "Llegada",
				Description: "La caravana alcanza su destino.",
				Duration:    0,
				Probability: 0,
			},
			{
				ID:          "market_boom",
				Name:        "Bonanza Comercial",
				Description: "Una flota mercante atraca y el dinero corre.",
				Effects:     map[string]float64{scheduler.CategoryPrice: 0.2},
				Duration:    2 * 24 * 60,
				Probability: 0.25,
			},
			{
				ID:          "market_crash",
				Name:        "Pánico en la Lonja",
				Description: "Rumores de guerra hunden los precios.",
				Effects:     map[string]float64{scheduler.CategoryPrice: -0.3},
				Duration:    2 * 24 * 60,
				Probability: 0.2,
			},
			{
				ID:          "bandit_raid",
				Name:        "Bandidos en los Caminos",
				Description: "Las rutas son peligrosas; viajar cuesta más tiempo.",
				Effects: map[string]float64{
					scheduler.CategoryTravel: 0.5,
					scheduler.CategoryPrice:  0.1,
				},
				Duration:    3 * 24 * 60,
				Probability: 0.2,
			},
			{
				ID:          "harvest_festival",
				Name:        "Fiesta de la Cosecha",
				Description: "Abundancia en los mercados y posadas llenas.",
				Effects: map[string]float64{
					scheduler.CategoryPrice:  -0.15,
					scheduler.CategoryIncome: 0.1,
				},
				Duration:    1 * 24 * 60,
				Probability: 0.25,
			},
			{
				ID:          "royal_tax",
				Name:        "Recaudador Real",
				Description: "La corona exige su parte; las rentas sufren.",
				Effects:     map[string]float64{scheduler.CategoryIncome: -0.25},
				Duration:    4 * 24 * 60,
				Probability: 0.1,
			},
		},

		Locations: []LocationDef{
			{
				ID: "aldea_del_rio", Name: "Aldea del Río", Type: "village",
				Listings: []ListingDef{
					{Item: string(item.ItemBread), Stock: 15},
					{Item: string(item.ItemGrain), Stock: 20},
					{Item: string(item.ItemWool), Stock: 12},
					{Item: string(item.ItemTimber), Stock: 10},
					{Item: string(item.ItemWine), BasePrice: 22, Stock: 6},
				},
			},
			{
				ID: "villa_mercado", Name: "Villa Mercado", Type: "town",
				Listings: []ListingDef{
					{Item: string(item.ItemBread), BasePrice: 5, Stock: 30},
					{Item: string(item.ItemWine), Stock: 25},
					{Item: string(item.ItemOliveOil), Stock: 20},
					{Item: string(item.ItemSalt), Stock: 18},
					{Item: string(item.ItemCloth), Stock: 15},
					{Item: string(item.ItemIron), Stock: 12},
					{Item: string(item.ItemTools), Stock: 8},
				},
			},
			{
				ID: "ciudad_del_puerto", Name: "Ciudad del Puerto", Type: "city",
				Listings: []ListingDef{
					{Item: string(item.ItemCloth), BasePrice: 26, Stock: 40},
					{Item: string(item.ItemSilk), Stock: 10},
					{Item: string(item.ItemSpices), Stock: 14},
					{Item: string(item.ItemJewelry), Stock: 5},
					{Item: string(item.ItemOliveOil), BasePrice: 30, Stock: 35},
					{Item: string(item.ItemSalt), BasePrice: 10, Stock: 50},
					{Item: string(item.ItemTools), BasePrice: 36, Stock: 20},
				},
			},
		},

		Routes: []RouteDef{
			{From: "aldea_del_rio", To: "villa_mercado", Minutes: 180},
			{From: "villa_mercado", To: "ciudad_del_puerto", Minutes: 300},
			{From: "aldea_del_rio", To: "ciudad_del_puerto", Minutes: 420},
		},

		PropertyTypes: []property.TypeDef{
			{
				ID: "market_stall", Name: "Puesto de Mercado",
				BasePrice: 400, BaseIncome: 12, NextTier: "shop",
				Materials:  nil,
				Storage:    20, Production: 0, Workers: 1, Merchants: 1, Guards: 0,
			},
			{
				ID: "shop", Name: "Tienda",
				BasePrice: 1500, BaseIncome: 45, NextTier: "trading_house",
				Materials: map[item.ID]int{
					item.ItemTimber: 10,
					item.ItemTools:  2,
				},
				Storage: 80, Production: 0, Workers: 2, Merchants: 1, Guards: 1,
			},
			{
				ID: "trading_house", Name: "Casa de Comercio",
				BasePrice: 6000, BaseIncome: 160, NextTier: "",
				Materials: map[item.ID]int{
					item.ItemTimber: 30,
					item.ItemIron:   15,
					item.ItemTools:  6,
				},
				Storage: 300, Production: 0, Workers: 5, Merchants: 3, Guards: 2,
			},
			{
				ID: "workshop", Name: "Taller Artesano",
				BasePrice: 2000, BaseIncome: 30, NextTier: "",
				Materials:  nil,
				Storage:    60, Production: 4, Workers: 3, Merchants: 0, Guards: 0,
			},
		},

		Upgrades: []property.UpgradeDef{
			{
				ID: property.UpgradeSecurity, Name: "Guardia Contratada",
				CostMultiplier: 0.4,
				Benefits:       map[string]float64{"guards": 2},
			},
			{
				ID: "warehouse_extension", Name: "Ampliación de Almacén",
				CostMultiplier: 0.5,
				Benefits:       map[string]float64{"storage": 50},
			},
			{
				ID: "counting_room", Name: "Sala de Cuentas",
				CostMultiplier: 0.8,
				Requires:       []string{"warehouse_extension"},
				Benefits:       map[string]float64{"income": 0.15, "merchants": 1},
			},
			{
				ID: "artisan_bench", Name: "Banco de Artesano",
				CostMultiplier: 0.6,
				Benefits:       map[string]float64{"production": 2, "workers": 1},
			},
		},

		StartingProperties: []StartingProperty{
			{ID: "prop_stall_1", Type: "market_stall", Location: "aldea_del_rio"},
		},
	}
}
