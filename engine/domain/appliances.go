package domain

import "strings"

// Canonical appliance types served by the catalog.
const (
	ApplianceRefrigerator = "refrigerator"
	ApplianceDishwasher   = "dishwasher"
)

// ApplianceTypes is the set of canonical appliance types.
var ApplianceTypes = map[string]bool{
	ApplianceRefrigerator: true,
	ApplianceDishwasher:   true,
}

// applianceAliases maps colloquial names to canonical appliance types.
var applianceAliases = map[string]string{
	"fridge":        ApplianceRefrigerator,
	"refridgerator": ApplianceRefrigerator,
	"refrigerator":  ApplianceRefrigerator,
	"freezer":       ApplianceRefrigerator,
	"icebox":        ApplianceRefrigerator,
	"ice maker":     ApplianceRefrigerator,
	"icemaker":      ApplianceRefrigerator,
	"dishwasher":    ApplianceDishwasher,
	"dish washer":   ApplianceDishwasher,
	"dish-washer":   ApplianceDishwasher,
}

// CanonicalApplianceType resolves a user- or vendor-supplied appliance name
// to its canonical type. Returns false if the name is not recognised.
func CanonicalApplianceType(s string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", false
	}
	if t, ok := applianceAliases[key]; ok {
		return t, true
	}
	// Vendor feeds sometimes carry plural or suffixed forms ("Refrigerators",
	// "refrigerator parts").
	key = strings.TrimSuffix(key, " parts")
	key = strings.TrimSuffix(key, "s")
	if t, ok := applianceAliases[key]; ok {
		return t, true
	}
	return "", false
}

// KnownBrands lists the appliance brands present in the vendor catalog.
var KnownBrands = []string{
	"Admiral", "Amana", "Bosch", "Dacor", "Electrolux", "Frigidaire",
	"GE", "Gibson", "Haier", "Hotpoint", "Jenn-Air", "Kelvinator",
	"Kenmore", "KitchenAid", "LG", "Magic Chef", "Maytag", "Samsung",
	"Sharp", "Smeg", "Thermador", "Whirlpool",
}

// ModelNumberHelpURL returns the vendor help page for locating an
// appliance's model number.
func ModelNumberHelpURL(applianceType string) string {
	switch applianceType {
	case ApplianceRefrigerator:
		return "https://www.partselect.com/Find-Your-Refrigerator-Model-Number/"
	case ApplianceDishwasher:
		return "https://www.partselect.com/Find-Your-Dishwasher-Model-Number/"
	default:
		return "https://www.partselect.com/model-number-faq/"
	}
}
