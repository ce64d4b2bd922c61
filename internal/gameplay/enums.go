package gameplay

import "slices"

// Cast lists the names a character may take.
var Cast = []string{"Lumpy", "Flops", "Theadora", "Stitch", "Piggle", "Lionel"}

// Die is a color die assigned to a character. The zero value means no die.
type Die string

const (
	NoDie     Die = ""
	DieGreen  Die = "green"
	DieYellow Die = "yellow"
	DieOrange Die = "orange"
	DiePurple Die = "purple"
	DieBlue   Die = "blue"
	DieWhite  Die = "white"
)

// Dice lists every die color in display order.
var Dice = []Die{DieGreen, DieYellow, DieOrange, DiePurple, DieBlue, DieWhite}

// Status is a condition tag carried by a character.
type Status string

const (
	Worried      Status = "worried"
	Scorched     Status = "scorched"
	Scared       Status = "scared"
	Soggy        Status = "soggy"
	Courageous   Status = "courageous"
	Trapped      Status = "trapped"
	Angry        Status = "angry"
	Torn         Status = "torn"
	SkreelasMark Status = "skreela's mark"
)

// Statuses lists every status in display order.
var Statuses = []Status{Worried, Scorched, Scared, Soggy, Courageous, Trapped, Angry, Torn, SkreelasMark}

// ItemSlot is a place a character can carry an item.
type ItemSlot string

const (
	SlotHead      ItemSlot = "head"
	SlotBody      ItemSlot = "body"
	SlotPaws      ItemSlot = "paws"
	SlotAccessory ItemSlot = "accessory"
)

// ItemSlots lists every slot in display order.
var ItemSlots = []ItemSlot{SlotHead, SlotBody, SlotPaws, SlotAccessory}

// Counter names a numeric character field.
type Counter string

const (
	Stuffing Counter = "stuffing"
	Heart    Counter = "heart"
	Buttons  Counter = "buttons"
)

// Counters lists the numeric fields in display order.
var Counters = []Counter{Stuffing, Heart, Buttons}

// MaxStuffing is the upper bound of the stuffing counter.
const MaxStuffing = 5

// IsCastName reports whether name is a member of Cast.
func IsCastName(name string) bool {
	return slices.Contains(Cast, name)
}

// Valid reports whether d is a known color. NoDie is not a color.
func (d Die) Valid() bool {
	return slices.Contains(Dice, d)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Valid reports whether s is a known item slot.
func (s ItemSlot) Valid() bool {
	return slices.Contains(ItemSlots, s)
}

// Valid reports whether c is a known counter.
func (c Counter) Valid() bool {
	return slices.Contains(Counters, c)
}

// bounds returns the inclusive range of c. A negative max means unbounded.
func (c Counter) bounds() (lo, hi int) {
	if c == Stuffing {
		return 0, MaxStuffing
	}
	return 0, -1
}
