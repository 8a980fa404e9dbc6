package host

import (
	"sort"
	"sync"
)

// Armor slots
const (
	ArmorHelmet     = "helmet"
	ArmorChestplate = "chestplate"
	ArmorLeggings   = "leggings"
	ArmorBoots      = "boots"
)

// InventorySize is the number of main inventory slots
const InventorySize = 36

// Inventory holds a player's items and armor. It is safe for concurrent use
// since bridge goroutines read it while the tick goroutine mutates it.
type Inventory struct {
	mu    sync.Mutex
	items map[int]Item
	armor map[string]Item
}

// NewInventory returns an empty inventory
func NewInventory() *Inventory {
	return &Inventory{
		items: make(map[int]Item),
		armor: make(map[string]Item),
	}
}

// IsEmpty reports whether there are no non-air items or armor
func (inv *Inventory) IsEmpty() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, it := range inv.items {
		if !it.IsAir() {
			return false
		}
	}
	for _, it := range inv.armor {
		if !it.IsAir() {
			return false
		}
	}
	return true
}

// Item returns the item in a slot
func (inv *Inventory) Item(slot int) (Item, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	it, ok := inv.items[slot]
	return it, ok
}

// SetItem places an item in a slot, replacing what was there
func (inv *Inventory) SetItem(slot int, it Item) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if it.IsAir() {
		delete(inv.items, slot)
		return
	}
	if it.Count == 0 {
		it.Count = 1
	}
	inv.items[slot] = it
}

// AddItem puts an item into the first free slot. Returns false when full.
func (inv *Inventory) AddItem(it Item) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if it.Count == 0 {
		it.Count = 1
	}
	for slot := 0; slot < InventorySize; slot++ {
		if _, taken := inv.items[slot]; !taken {
			inv.items[slot] = it
			return true
		}
	}
	return false
}

// SetArmor equips an armor piece
func (inv *Inventory) SetArmor(slot string, it Item) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if it.IsAir() {
		delete(inv.armor, slot)
		return
	}
	inv.armor[slot] = it
}

// Armor returns the armor piece in a slot
func (inv *Inventory) Armor(slot string) (Item, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	it, ok := inv.armor[slot]
	return it, ok
}

// Clear removes all items and armor
func (inv *Inventory) Clear() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.items = make(map[int]Item)
	inv.armor = make(map[string]Item)
}

// Snapshot copies the inventory contents
func (inv *Inventory) Snapshot() *Inventory {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	cp := NewInventory()
	for k, v := range inv.items {
		cp.items[k] = v
	}
	for k, v := range inv.armor {
		cp.armor[k] = v
	}
	return cp
}

// Restore replaces the contents with those of a snapshot
func (inv *Inventory) Restore(from *Inventory) {
	snap := from.Snapshot()
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.items = snap.items
	inv.armor = snap.armor
}

// Slots returns the occupied slot numbers in ascending order
func (inv *Inventory) Slots() []int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	slots := make([]int, 0, len(inv.items))
	for s := range inv.items {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	return slots
}
