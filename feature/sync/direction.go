package sync

import "fmt"

// Direction designates which side is the source of truth for a run.
type Direction string

const (
	// InfobloxToInventory treats Infoblox as desired state and writes the inventory.
	InfobloxToInventory Direction = "infoblox-to-inventory"
	// InventoryToInfoblox treats the inventory as desired state and writes Infoblox.
	InventoryToInfoblox Direction = "inventory-to-infoblox"
)

// ParseDirection validates a direction name. An empty name yields fallback.
func ParseDirection(s string, fallback Direction) (Direction, error) {
	if s == "" {
		return fallback, nil
	}
	switch d := Direction(s); d {
	case InfobloxToInventory, InventoryToInfoblox:
		return d, nil
	default:
		return "", fmt.Errorf("unknown sync direction %q (want %s or %s)", s, InfobloxToInventory, InventoryToInfoblox)
	}
}
