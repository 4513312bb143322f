// Package item defines the core domain entities for tradeable goods.
// This package is PURE and must NOT import any infrastructure packages.
package item

// Category groups goods for market behavior and property production.
type Category string

const (
	CategoryFood     Category = "FOOD"
	CategoryDrink    Category = "DRINK"
	CategoryTextile  Category = "TEXTILE"
	CategoryMaterial Category = "MATERIAL"
	CategoryLuxury   Category = "LUXURY"
)

// ID identifies a kind of good across the whole simulation.
type ID string

const (
	ItemBread    ID = "bread"
	ItemGrain    ID = "grain"
	ItemWine     ID = "wine"
	ItemOliveOil ID = "olive_oil"
	ItemSalt     ID = "salt"
	ItemWool     ID = "wool"
	ItemCloth    ID = "cloth"
	ItemSilk     ID = "silk"
	ItemSpices   ID = "spices"
	ItemIron     ID = "iron"
	ItemTimber   ID = "timber"
	ItemTools    ID = "tools"
	ItemJewelry  ID = "jewelry"
)

// Definition provides metadata about a kind of good.
type Definition struct {
	Name        string
	Description string
	Category    Category
	BaseValue   int // Default market base price in gold
}

// Registry contains all known goods and their properties.
var Registry = map[ID]Definition{
	ItemBread: {
		Name:        "Pan de Pueblo",
		Description: "Hogaza recién horneada. Se vende en todas partes.",
		Category:    CategoryFood,
		BaseValue:   4,
	},
	ItemGrain: {
		Name:        "Saco de Grano",
		Description: "Trigo de la última cosecha.",
		Category:    CategoryFood,
		BaseValue:   6,
	},
	ItemWine: {
		Name:        "Tinaja de Vino",
		Description: "Vino joven de la ribera.",
		Category:    CategoryDrink,
		BaseValue:   18,
	},
	ItemOliveOil: {
		Name:        "Aceite de Oliva",
		Description: "Oro líquido. Viaja bien y siempre encuentra comprador.",
		Category:    CategoryFood,
		BaseValue:   25,
	},
	ItemSalt: {
		Name:        "Bloque de Sal",
		Description: "De las salinas del sur. Conserva carne y fortunas.",
		Category:    CategoryMaterial,
		BaseValue:   12,
	},
	ItemWool: {
		Name:        "Fardo de Lana",
		Description: "Lana basta sin cardar.",
		Category:    CategoryTextile,
		BaseValue:   10,
	},
	ItemCloth: {
		Name:        "Rollo de Paño",
		Description: "Tejido de calidad media, teñido en tonos sobrios.",
		Category:    CategoryTextile,
		BaseValue:   30,
	},
	ItemSilk: {
		Name:        "Seda de Levante",
		Description: "Llegada en caravana. Los nobles pagan lo que pidas.",
		Category:    CategoryLuxury,
		BaseValue:   120,
	},
	ItemSpices: {
		Name:        "Cofre de Especias",
		Description: "Pimienta, azafrán y clavo. Peligroso de transportar.",
		Category:    CategoryLuxury,
		BaseValue:   90,
	},
	ItemIron: {
		Name:        "Lingote de Hierro",
		Description: "Materia prima para herreros y constructores.",
		Category:    CategoryMaterial,
		BaseValue:   22,
	},
	ItemTimber: {
		Name:        "Carga de Madera",
		Description: "Vigas serradas, listas para obra.",
		Category:    CategoryMaterial,
		BaseValue:   14,
	},
	ItemTools: {
		Name:        "Caja de Herramientas",
		Description: "Martillos, sierras y clavos. Todo oficio las necesita.",
		Category:    CategoryMaterial,
		BaseValue:   40,
	},
	ItemJewelry: {
		Name:        "Joyas Engastadas",
		Description: "Piezas menores de plata y granate.",
		Category:    CategoryLuxury,
		BaseValue:   200,
	},
}

// Get returns the definition for a good.
func Get(id ID) (Definition, bool) {
	def, ok := Registry[id]
	return def, ok
}
